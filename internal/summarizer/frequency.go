package summarizer

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

// FrequencySummarizer ranks sentences by word frequency (stopwords filtered).
type FrequencySummarizer struct {
	tokenPattern    *regexp.Regexp
	sentencePattern *regexp.Regexp
	stopwords       map[string]struct{}
}

// NewFrequencySummarizer creates a frequency-based sentence ranker summarizer.
func NewFrequencySummarizer() *FrequencySummarizer {
	return &FrequencySummarizer{
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		// statute sentences also end at the em-dash that closes a heading
		sentencePattern: regexp.MustCompile(`[^.!?;—]+(?:[.!?;—]+|$)`),
		stopwords:       defaultStopwords(),
	}
}

// Summarize returns a short summary by ranking sentences using token frequency.
func (s *FrequencySummarizer) Summarize(text string, maxSentences int) (string, error) {
	if maxSentences <= 0 {
		maxSentences = 5
	}
	sentences := s.sentences(text)
	if len(sentences) == 0 {
		return strings.TrimSpace(text), nil
	}
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			if _, ok := s.stopwords[tok]; ok {
				continue
			}
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		sscore := 0.0
		for _, tok := range toks {
			sscore += freq[tok]
		}
		// dampen long sentences
		if l := float64(len(toks)); l > 0 {
			sscore /= math.Sqrt(l)
		}
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if maxSentences > len(scores) {
		maxSentences = len(scores)
	}
	selected := make([]int, maxSentences)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, len(selected))
	for _, idx := range selected {
		out = append(out, sentences[idx])
	}
	return strings.Join(out, " "), nil
}

// Digest summarizes an indexed corpus: a count line followed by the most
// representative sentences of the section bodies.
func Digest(s domain.Summarizer, sections []domain.Section, chapters, maxSentences int) (string, error) {
	if len(sections) == 0 {
		return "", domain.ErrNoSections
	}
	var b strings.Builder
	for _, sec := range sections {
		b.WriteString(sec.Content)
		b.WriteString("\n")
	}
	summary, err := s.Summarize(b.String(), maxSentences)
	if err != nil {
		return "", err
	}
	head := fmt.Sprintf("%d sections across %d chapters (sections %s to %s).",
		len(sections), chapters, sections[0].Number, sections[len(sections)-1].Number)
	if summary == "" {
		return head, nil
	}
	return head + "\n" + summary, nil
}

func (s *FrequencySummarizer) sentences(text string) []string {
	raw := s.sentencePattern.FindAllString(text, -1)
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.Join(strings.Fields(r), " ")
		if len(s.tokens(r)) == 0 {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (s *FrequencySummarizer) tokens(text string) []string {
	return s.tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"shall", "any", "may", "which", "who", "whoever", "whom", "his", "her", "he", "she", "not", "no", "other", "said", "section", "also", "either", "both", "thereof", "herein",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
