package diff

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
)

// Language is the key used to pick an import pattern for a file
type Language string

const (
	LangUnknown    Language = ""
	LangGo         Language = "go"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangJava       Language = "java"
	LangRust       Language = "rust"
	LangC          Language = "c"
	LangCSharp     Language = "csharp"
	LangPHP        Language = "php"
	LangRuby       Language = "ruby"
	LangSwift      Language = "swift"
)

var extLanguages = map[string]Language{
	".go":    LangGo,
	".js":    LangJavaScript,
	".jsx":   LangJavaScript,
	".mjs":   LangJavaScript,
	".cjs":   LangJavaScript,
	".ts":    LangJavaScript,
	".tsx":   LangJavaScript,
	".vue":   LangJavaScript,
	".py":    LangPython,
	".java":  LangJava,
	".kt":    LangJava,
	".scala": LangJava,
	".rs":    LangRust,
	".c":     LangC,
	".h":     LangC,
	".cc":    LangC,
	".cpp":   LangC,
	".hpp":   LangC,
	".cs":    LangCSharp,
	".php":   LangPHP,
	".rb":    LangRuby,
	".swift": LangSwift,
}

// Import predicates run against the trimmed line content, without the diff sign.
// They are heuristics: a Go line holding only a quoted string also matches,
// unless it starts with a keyword.
var defaultImportPatterns = map[Language]*regexp.Regexp{
	LangGo:         regexp.MustCompile(`^(import\s*\(?$|import\s+(\w+\s+|_\s+|\.\s+)?"[^"]+"$|(\w+\s+|_\s+|\.\s+)?"[^"]+"$)`),
	LangJavaScript: regexp.MustCompile(`^(import\s.+|import\s*['"].+|(const|let|var)\s+.+=\s*require\(.+\);?|export\s+.+\s+from\s+['"].+)$`),
	LangPython:     regexp.MustCompile(`^(import\s+[\w.]+.*|from\s+[\w.]+\s+import\s+.+)$`),
	LangJava:       regexp.MustCompile(`^import\s+(static\s+)?[\w.]+(\.\*)?;?$`),
	LangRust:       regexp.MustCompile(`^((pub(\([\w:]+\))?\s+)?use\s+.+;|extern\s+crate\s+\w+;)$`),
	LangC:          regexp.MustCompile(`^#\s*include\s*[<"].+[>"]$`),
	LangCSharp:     regexp.MustCompile(`^(global\s+)?using\s+(static\s+)?[\w.]+(\s*=\s*[\w.<>]+)?;$`),
	LangPHP:        regexp.MustCompile(`^(use\s+[\w\\]+.*;|(require|include)(_once)?\s*\(?['"].+)$`),
	LangRuby:       regexp.MustCompile(`^(require|require_relative|load)\s*\(?['"].+['"]\)?$`),
	LangSwift:      regexp.MustCompile(`^(@testable\s+)?import\s+\w+(\.\w+)*$`),
}

// neverMatch is the predicate for languages without an import pattern.
var neverMatch = regexp.MustCompile(`[^\s\S]`)

// importExclusions reject lines that an import pattern matches but that start
// with a keyword, e.g. `return "ok"` in Go.
var importExclusions = map[Language]*regexp.Regexp{
	LangGo: regexp.MustCompile(`^(break|case|chan|const|continue|default|defer|else|fallthrough|for|func|go|goto|if|interface|map|package|range|return|select|struct|switch|type|var)\b`),
}

// LanguageForPath derives the language key from the file extension
func LanguageForPath(path string) Language {
	return extLanguages[strings.ToLower(filepath.Ext(path))]
}

// ImportCollapser replaces runs of added or removed import lines with a placeholder
type ImportCollapser struct {
	enabled  bool
	patterns map[Language]*regexp.Regexp
}

// NewImportCollapser builds a collapser. overrides maps a language key to a
// regular expression replacing the built-in predicate; invalid expressions
// and unknown languages are skipped.
func NewImportCollapser(enabled bool, overrides map[string]string) *ImportCollapser {
	patterns := make(map[Language]*regexp.Regexp, len(defaultImportPatterns))
	for lang, re := range defaultImportPatterns {
		patterns[lang] = re
	}
	for key, expr := range overrides {
		lang := Language(strings.ToLower(key))
		if _, ok := defaultImportPatterns[lang]; !ok {
			slog.Warn("ignoring import pattern for unknown language", "language", key)
			continue
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			slog.Warn("ignoring invalid import pattern", "language", key, "error", err)
			continue
		}
		patterns[lang] = re
	}
	return &ImportCollapser{enabled: enabled, patterns: patterns}
}

// IsImport reports whether content (a diff line without its sign) is an import in lang
func (c *ImportCollapser) IsImport(lang Language, content string) bool {
	re, ok := c.patterns[lang]
	if !ok {
		re = neverMatch
	}
	content = strings.TrimSpace(content)
	if !re.MatchString(content) {
		return false
	}
	if ex, ok := importExclusions[lang]; ok && ex.MatchString(content) {
		return false
	}
	return true
}

// CollapseAll applies Collapse to every chunk of a diff
func (c *ImportCollapser) CollapseAll(text string) string {
	if !c.enabled {
		return text
	}
	chunks := SplitChunks(text)
	for i := range chunks {
		chunks[i] = c.Collapse(chunks[i])
	}
	return JoinChunks(chunks)
}

// Collapse replaces each maximal run of consecutive same-sign import lines
// inside the chunk's hunks with one placeholder line naming the run length.
func (c *ImportCollapser) Collapse(chunk Chunk) Chunk {
	if !c.enabled {
		return chunk
	}
	lang := LanguageForPath(chunk.Path)
	if lang == LangUnknown {
		return chunk
	}

	trailing := strings.HasSuffix(chunk.Text, "\n")
	lines := strings.Split(strings.TrimSuffix(chunk.Text, "\n"), "\n")
	out := make([]string, 0, len(lines))

	var (
		runSign  byte
		runCount int
		inHunk   bool
	)
	flush := func() {
		if runCount > 0 {
			out = append(out, fmt.Sprintf("%c[%d import %s collapsed]", runSign, runCount, plural(runCount, "line", "lines")))
		}
		runCount = 0
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			flush()
			inHunk = true
			out = append(out, line)
			continue
		}
		if inHunk && len(line) > 0 && (line[0] == '+' || line[0] == '-') && c.IsImport(lang, line[1:]) {
			if runCount > 0 && line[0] != runSign {
				flush()
			}
			runSign = line[0]
			runCount++
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()

	text := strings.Join(out, "\n")
	if trailing {
		text += "\n"
	}
	chunk.Text = text
	return chunk
}
