package statute

import "strings"

// WordChunker splits text into windows of at most size words, each window
// starting size-overlap words after the previous one.
type WordChunker struct {
	size    int
	overlap int
}

func NewWordChunker(size, overlap int) *WordChunker {
	if size <= 0 {
		size = 256
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return &WordChunker{size: size, overlap: overlap}
}

// Chunk returns the word windows of text. Empty text yields no chunks.
func (c *WordChunker) Chunk(text string) []string {
	words := strings.Fields(text)
	var chunks []string
	step := c.size - c.overlap
	for i := 0; i < len(words); i += step {
		end := i + c.size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return chunks
}

// Head returns the first window of text with whitespace collapsed.
func (c *WordChunker) Head(text string) string {
	chunks := c.Chunk(text)
	if len(chunks) == 0 {
		return ""
	}
	return chunks[0]
}
