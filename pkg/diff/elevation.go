package diff

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	statLineRe = regexp.MustCompile(`^\s*(.+?)\s+\|\s+(\d+)\s*([+-]*)\s*$`)
	statBinRe  = regexp.MustCompile(`^\s*(.+?)\s+\|\s+Bin\b`)
	renameRe   = regexp.MustCompile(`^(.*)\{(.*) => (.*)\}(.*)$`)
)

// FileStat is one line of a "git diff --stat" summary
type FileStat struct {
	Path    string
	Added   int
	Removed int
}

// Changed returns the number of changed lines
func (f FileStat) Changed() int {
	return f.Added + f.Removed
}

// ParseStat parses "<path> | <N> <bar>" lines. The trailing "files changed"
// summary is ignored. The count is split between added and removed in
// proportion to the bar; a bar without +/- attributes everything to added.
func ParseStat(stat string) []FileStat {
	var stats []FileStat
	for _, line := range strings.Split(stat, "\n") {
		if m := statBinRe.FindStringSubmatch(line); m != nil {
			stats = append(stats, FileStat{Path: resolveRename(m[1])})
			continue
		}
		m := statLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		total, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		plus := strings.Count(m[3], "+")
		minus := strings.Count(m[3], "-")

		fs := FileStat{Path: resolveRename(m[1])}
		if plus+minus == 0 {
			fs.Added = total
		} else {
			fs.Added = (total*plus + (plus+minus)/2) / (plus + minus)
			fs.Removed = total - fs.Added
		}
		stats = append(stats, fs)
	}
	return stats
}

// resolveRename maps "old => new" and "dir/{old => new}/file" to the new path
func resolveRename(p string) string {
	p = strings.TrimSpace(p)
	if m := renameRe.FindStringSubmatch(p); m != nil {
		return strings.ReplaceAll(m[1]+m[3]+m[4], "//", "/")
	}
	if _, after, ok := strings.Cut(p, " => "); ok {
		return strings.TrimSpace(after)
	}
	return p
}

// ElevatedSet holds the paths treated as maximum priority for one diff
type ElevatedSet map[string]struct{}

// Contains reports whether p is elevated. Entries abbreviated by git with a
// leading ".../" match by suffix.
func (s ElevatedSet) Contains(p string) bool {
	if len(s) == 0 {
		return false
	}
	if _, ok := s[p]; ok {
		return true
	}
	for entry := range s {
		if suffix, ok := strings.CutPrefix(entry, "..."); ok && strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

// Elevate returns every tier 0/1 path when those files account for more than
// threshold of all changed lines and the total reaches minLines. Otherwise it
// returns an empty set.
func Elevate(stats []FileStat, threshold float64, minLines int) ElevatedSet {
	total, low := 0, 0
	for _, fs := range stats {
		total += fs.Changed()
		if Classify(fs.Path) <= TierDefault {
			low += fs.Changed()
		}
	}

	if total == 0 || total < minLines {
		return ElevatedSet{}
	}
	if float64(low)/float64(total) <= threshold {
		return ElevatedSet{}
	}

	elevated := ElevatedSet{}
	for _, fs := range stats {
		if Classify(fs.Path) <= TierDefault {
			elevated[fs.Path] = struct{}{}
		}
	}
	return elevated
}
