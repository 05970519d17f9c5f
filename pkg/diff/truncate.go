package diff

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// MinViableRemainder is the smallest remaining budget worth spending on a
// partial chunk.
const MinViableRemainder = 100

const truncatedMarker = "... [truncated]"

// PreparedDiff is the diff text actually sent to the model
type PreparedDiff struct {
	Content      string
	WasTruncated bool
}

// Truncate fits text into budget characters. Chunks are kept whole in order
// of effective tier (highest first, then original order) while they fit. The
// first chunk that does not fit is elided to its header plus as many trailing
// lines as fit, provided its tier is at least TierDefault and more than
// MinViableRemainder characters remain; nothing after it is considered. A diff
// with a single chunk is cut line by line from the start instead.
func Truncate(text string, budget int, elevated ElevatedSet) PreparedDiff {
	if len(text) <= budget {
		return PreparedDiff{Content: text}
	}

	chunks := SplitChunks(text)
	if len(chunks) <= 1 {
		return PreparedDiff{Content: truncateLines(text, budget), WasTruncated: true}
	}

	type rankedChunk struct {
		Chunk
		tier Tier
	}
	ranked := make([]rankedChunk, len(chunks))
	for i, c := range chunks {
		ranked[i] = rankedChunk{Chunk: c, tier: EffectiveTier(c.Path, elevated)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].tier != ranked[j].tier {
			return ranked[i].tier > ranked[j].tier
		}
		return ranked[i].Order < ranked[j].Order
	})

	var b strings.Builder
	for _, rc := range ranked {
		piece := rc.Text
		if !strings.HasSuffix(piece, "\n") {
			piece += "\n"
		}
		if b.Len()+len(piece) <= budget {
			b.WriteString(piece)
			continue
		}

		remaining := budget - b.Len()
		if rc.tier >= TierDefault && remaining > MinViableRemainder {
			b.WriteString(elideChunk(rc.Text, remaining))
		}
		break
	}

	if b.Len() == 0 {
		return PreparedDiff{Content: truncateLines(ranked[0].Text, budget), WasTruncated: true}
	}
	return PreparedDiff{Content: b.String(), WasTruncated: true}
}

func elisionMarker(omitted int) string {
	return fmt.Sprintf("... [%d %s omitted] ...", omitted, plural(omitted, "line", "lines"))
}

// elideChunk keeps the header line, an elision marker and the longest tail
// of the chunk that fits in budget.
func elideChunk(text string, budget int) string {
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	header, body := lines[0], lines[1:]

	fixed := len(header) + 1
	if fixed+len(elisionMarker(len(body)))+1 > budget {
		return truncateLines(text, budget)
	}

	keep, size := 0, 0
	for i := len(body) - 1; i >= 0; i-- {
		lineSize := len(body[i]) + 1
		marker := elisionMarker(len(body) - keep - 1)
		if fixed+len(marker)+1+size+lineSize > budget {
			break
		}
		size += lineSize
		keep++
	}

	var b strings.Builder
	b.WriteString(header)
	b.WriteByte('\n')
	b.WriteString(elisionMarker(len(body) - keep))
	b.WriteByte('\n')
	for _, line := range body[len(body)-keep:] {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// truncateLines keeps whole lines from the start and ends with a marker.
// When even the first line does not fit it is cut at a rune boundary.
func truncateLines(text string, budget int) string {
	if len(text) <= budget {
		return text
	}
	if budget <= len(truncatedMarker)+1 {
		return cutRunes(text, budget)
	}

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	var kept []string
	size := 0
	for _, line := range lines {
		if size+len(line)+1+len(truncatedMarker) > budget {
			break
		}
		kept = append(kept, line)
		size += len(line) + 1
	}

	if len(kept) == 0 {
		return cutRunes(lines[0], budget-len(truncatedMarker)-1) + "\n" + truncatedMarker
	}
	return strings.Join(kept, "\n") + "\n" + truncatedMarker
}

// cutRunes returns the longest prefix of s of at most n bytes that ends on a rune boundary
func cutRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
