package ai

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/johnstilia/commitron/pkg/config"
)

// DefaultCommitType is used when the subject carries no conventional prefix
const DefaultCommitType = "chore"

// DefaultEmoji prefixes non-conventional subjects when emoji are enabled
const DefaultEmoji = "📝"

const ellipsis = "..."

var (
	conventionalRe = regexp.MustCompile(`^([A-Za-z]+)(?:\(([^()]*)\))?(!)?:\s*(.+)$`)
	shortcodeRe    = regexp.MustCompile(`^:[a-z0-9_+-]+:\s*`)
)

// TypeEmoji maps conventional commit types to gitmoji
var TypeEmoji = map[string]string{
	"feat":     "✨",
	"fix":      "🐛",
	"docs":     "📝",
	"style":    "💄",
	"refactor": "♻️",
	"perf":     "⚡",
	"test":     "✅",
	"build":    "📦",
	"ci":       "👷",
	"chore":    "🔧",
	"revert":   "⏪",
}

// GeneratedMessage is a parsed commit message
type GeneratedMessage struct {
	Subject     string
	Body        string
	Type        string
	Scope       string
	Breaking    bool
	FullMessage string
}

// ParseMessage turns raw model output into a commit message formatted
// according to the commit configuration.
func ParseMessage(raw string, cfg *config.Config) (*GeneratedMessage, error) {
	var (
		subject string
		body    []string
	)
	for _, line := range strings.Split(stripFences(raw), "\n") {
		line = strings.TrimRight(line, " \t\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if subject == "" {
			subject = cleanSubject(line)
			continue
		}
		body = append(body, line)
	}
	if subject == "" {
		return nil, errors.WithHint(ErrEmptyMessage, "regenerate, or add an instruction describing the change")
	}

	msg := &GeneratedMessage{
		Type: DefaultCommitType,
		Body: strings.Join(body, "\n"),
	}

	description := subject
	if m := conventionalRe.FindStringSubmatch(subject); m != nil {
		msg.Type = strings.ToLower(m[1])
		msg.Scope = strings.TrimSpace(m[2])
		msg.Breaking = m[3] != ""
		description = strings.TrimSpace(m[4])
	}

	msg.Subject = truncateSubject(formatSubject(msg, subject, description, cfg), cfg.Commit.MaxLength)
	msg.FullMessage = msg.Subject
	if msg.Body != "" {
		msg.FullMessage += "\n\n" + msg.Body
	}
	return msg, nil
}

func formatSubject(msg *GeneratedMessage, subject, description string, cfg *config.Config) string {
	if !cfg.Conventional() {
		if cfg.Commit.IncludeEmoji {
			return DefaultEmoji + " " + subject
		}
		return subject
	}

	var b strings.Builder
	if cfg.Commit.IncludeEmoji {
		if emoji, ok := TypeEmoji[msg.Type]; ok {
			b.WriteString(emoji)
			b.WriteByte(' ')
		}
	}
	b.WriteString(msg.Type)
	if cfg.Commit.IncludeScope && msg.Scope != "" {
		b.WriteString("(" + msg.Scope + ")")
	}
	if msg.Breaking {
		b.WriteByte('!')
	}
	b.WriteString(": ")
	b.WriteString(description)
	return b.String()
}

// stripFences removes markdown code fence lines
func stripFences(raw string) string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

// cleanSubject drops quoting and a leading emoji or :shortcode: the model
// may have added on its own.
func cleanSubject(line string) string {
	s := strings.TrimSpace(line)
	s = strings.Trim(s, "`\"'")
	s = strings.TrimPrefix(s, "Subject:")
	s = shortcodeRe.ReplaceAllString(strings.TrimSpace(s), "")
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return unicode.Is(unicode.So, r) || unicode.Is(unicode.Sk, r) ||
			r == '\u200d' || r == '\ufe0f' || unicode.IsSpace(r)
	})
	return strings.TrimSpace(s)
}

// truncateSubject cuts s to at most max runes, ending with an ellipsis when cut
func truncateSubject(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	if max <= len(ellipsis) {
		return string(runes[:max])
	}
	return string(runes[:max-len(ellipsis)]) + ellipsis
}
