package statute

import (
	"bufio"
	"regexp"
	"strings"

	"github.com/aifinitydigital/groq-app-01/internal/domain"
)

// Splitter turns extracted statute text into numbered sections.
//
// A section starts on a line of the form "103. Murder.—text", a line starting
// with CHAPTER sets the chapter of the sections that follow, and every other
// line is content of the open section. Text before the first section heading
// is dropped.
type Splitter struct {
	heading       *regexp.Regexp
	chapterPrefix string
}

func NewSplitter() *Splitter {
	return &Splitter{
		heading:       regexp.MustCompile(`^(\d+)\.\s*(.*?)\s*\.—`),
		chapterPrefix: "CHAPTER",
	}
}

// Split parses text into sections in document order.
func (s *Splitter) Split(text string) []domain.Section {
	var (
		sections []domain.Section
		chapter  string
		current  *domain.Section
		content  []string
	)
	flush := func() {
		if current == nil {
			return
		}
		current.Content = strings.Join(content, " ")
		sections = append(sections, *current)
		current = nil
		content = nil
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, s.chapterPrefix) {
			chapter = line
			continue
		}
		if m := s.heading.FindStringSubmatchIndex(line); m != nil {
			flush()
			current = &domain.Section{
				Number:  line[m[2]:m[3]],
				Title:   line[m[4]:m[5]],
				Chapter: chapter,
			}
			if rest := strings.TrimSpace(line[m[1]:]); rest != "" {
				content = append(content, rest)
			}
			continue
		}
		if current != nil {
			content = append(content, line)
		}
	}
	flush()
	return sections
}

// Chapters counts the distinct chapters among sections.
func Chapters(sections []domain.Section) int {
	seen := make(map[string]struct{})
	for _, s := range sections {
		if s.Chapter != "" {
			seen[s.Chapter] = struct{}{}
		}
	}
	return len(seen)
}
