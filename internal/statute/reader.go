package statute

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one statute text file.
type Document struct {
	Path    string
	Content string
}

var textExtensions = map[string]bool{".txt": true, ".md": true}

// ReadFiles expands globs and reads every plain-text statute file.
// Paths that are not globs are taken literally; other file types are skipped.
func ReadFiles(paths []string) ([]Document, error) {
	var files []string
	seen := make(map[string]bool)
	for _, p := range paths {
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		if matches == nil {
			matches = []string{p}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if seen[m] || !textExtensions[strings.ToLower(filepath.Ext(m))] {
				continue
			}
			seen[m] = true
			files = append(files, m)
		}
	}
	docs := make([]Document, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		docs = append(docs, Document{Path: f, Content: string(data)})
	}
	return docs, nil
}
