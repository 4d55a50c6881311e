package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

var simpleContextPatterns = []string{
	"what is my name",
	"who am i",
	"what did i say",
	"what was my previous",
	"what did we discuss",
	"can you repeat",
	"what was the last",
}

const noContextAnswer = "I don't have any previous context to answer this question. Could you please provide more details?"

// IsSimpleContextQuestion reports whether the question is about the
// conversation itself rather than the law.
func IsSimpleContextQuestion(question string) bool {
	q := strings.ToLower(question)
	for _, p := range simpleContextPatterns {
		if strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// SimpleContextAnswer answers a context question from the history alone.
func SimpleContextAnswer(question string, messages []domain.Message) string {
	if len(messages) == 0 {
		return noContextAnswer
	}
	if strings.Contains(strings.ToLower(question), "name") {
		for _, m := range messages {
			if m.Role != domain.RoleUser {
				continue
			}
			_, after, ok := strings.Cut(m.Content, "I am")
			if !ok {
				continue
			}
			name, _, _ := strings.Cut(after, "I am")
			name, _, _ = strings.Cut(name, ",")
			if name = strings.TrimSpace(name); name != "" {
				return fmt.Sprintf("Your name is %s.", name)
			}
		}
	}
	last := messages
	if len(last) > 2 {
		last = last[len(last)-2:]
	}
	parts := make([]string, len(last))
	for i, m := range last {
		parts[i] = m.Content
	}
	return "From our previous conversation: " + strings.Join(parts, " ")
}

// ConversationContext renders the last n messages as "Role: content" lines.
func ConversationContext(messages []domain.Message, n int) string {
	if n > 0 && len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = capitalize(m.Role) + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

var (
	phraseLeadRe  = regexp.MustCompile(`^(?:\d+[.)]\s*|[-*•"'])`)
	phraseTrailRe = regexp.MustCompile(`\s*"$`)
)

// ExtractSearchPhrases turns a model's suggestion list into unique,
// lower-cased search phrases in their original order.
func ExtractSearchPhrases(suggestions string) []string {
	var phrases []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(suggestions, "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if line == "" || strings.HasPrefix(line, "here") || strings.HasPrefix(line, "these") || strings.HasPrefix(line, "you can") {
			continue
		}
		line = phraseLeadRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(phraseTrailRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		phrases = append(phrases, line)
	}
	return phrases
}

// DocumentContext renders matches as citation blocks separated by blank lines.
func DocumentContext(matches []domain.Match, label string) string {
	blocks := make([]string, len(matches))
	for i, m := range matches {
		blocks[i] = fmt.Sprintf("%s %s: %s\n%s", label, m.Section.Number, m.Section.Title, m.Section.Content)
	}
	return strings.Join(blocks, "\n\n")
}
