// Package diff prepares a staged diff for the model: conflict markers are
// stripped, import runs are collapsed and the result is fitted into a
// character budget with the most relevant files first.
package diff

import (
	"regexp"
	"strings"
)

var (
	fileHeaderRe = regexp.MustCompile(`(?m)^diff --git `)
	gitPathRe    = regexp.MustCompile(`^diff --git a/.* b/(.+)$`)
)

// Chunk is the slice of a unified diff that belongs to one file
type Chunk struct {
	Path  string // Destination path, empty for text outside any file section
	Text  string // Raw text, including the trailing newline when present
	Order int    // Position in the original diff
}

// Header returns the first line of the chunk
func (c Chunk) Header() string {
	header, _, _ := strings.Cut(c.Text, "\n")
	return header
}

// SplitChunks splits a git diff into per-file chunks. Text before the first
// "diff --git" line becomes its own chunk with an empty path. A diff without
// any file header is returned as a single chunk.
func SplitChunks(text string) []Chunk {
	if text == "" {
		return nil
	}

	starts := fileHeaderRe.FindAllStringIndex(text, -1)
	if len(starts) == 0 {
		return []Chunk{{Text: text}}
	}

	var chunks []Chunk
	if starts[0][0] > 0 {
		chunks = append(chunks, Chunk{Text: text[:starts[0][0]]})
	}

	for i, loc := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1][0]
		}
		part := text[loc[0]:end]
		chunks = append(chunks, Chunk{
			Path:  chunkPath(part),
			Text:  part,
			Order: len(chunks),
		})
	}

	return chunks
}

// JoinChunks concatenates chunk texts, inserting a newline where a chunk
// does not end with one.
func JoinChunks(chunks []Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		b.WriteString(c.Text)
		if i < len(chunks)-1 && !strings.HasSuffix(c.Text, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// chunkPath extracts the destination path from the "diff --git a/x b/y"
// header, falling back to the "+++ b/y" line.
func chunkPath(part string) string {
	lines := strings.Split(part, "\n")
	if m := gitPathRe.FindStringSubmatch(lines[0]); len(m) == 2 {
		return strings.Trim(m[1], `"`)
	}
	for _, line := range lines[1:] {
		if strings.HasPrefix(line, "@@") {
			break
		}
		if p, ok := strings.CutPrefix(line, "+++ b/"); ok {
			return strings.TrimSpace(p)
		}
	}
	return ""
}
