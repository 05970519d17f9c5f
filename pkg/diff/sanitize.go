package diff

import (
	"fmt"
	"regexp"
	"strings"
)

// conflictMarkerRe matches merge-conflict marker lines, with or without a diff sign.
var conflictMarkerRe = regexp.MustCompile(`^[+\- ]?(<{7}|={7}|>{7}|\|{7})( .*)?$`)

const conflictNotice = "[%d merge conflict marker %s removed]"

// Sanitize removes merge-conflict marker lines and, when any were removed,
// appends a single notice line. It returns the cleaned text and the number of
// removed lines.
func Sanitize(text string) (string, int) {
	trailing := strings.HasSuffix(text, "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")

	kept := make([]string, 0, len(lines))
	removed := 0
	for _, line := range lines {
		if conflictMarkerRe.MatchString(line) {
			removed++
			continue
		}
		kept = append(kept, line)
	}

	if removed == 0 {
		return text, 0
	}

	kept = append(kept, fmt.Sprintf(conflictNotice, removed, plural(removed, "line", "lines")))
	out := strings.Join(kept, "\n")
	if trailing {
		out += "\n"
	}
	return out, removed
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
