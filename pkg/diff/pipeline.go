package diff

import (
	"log/slog"
	"strings"

	"github.com/johnstilia/commitron/pkg/config"
	"github.com/johnstilia/commitron/pkg/tokenizer"
)

// RawDiff is the staged change set as read from version control
type RawDiff struct {
	Diff  string   // Unified diff text
	Files []string // Changed file paths
	Stat  string   // Optional "git diff --stat" summary
}

// Budget returns the effective character budget for the prepared diff:
// diff.max_chars, lowered to floor(max_tokens * chars_per_token) when a token
// limit is configured.
func Budget(cfg *config.Config) int {
	budget := cfg.Diff.MaxChars
	if cfg.Diff.MaxTokens > 0 {
		if fromTokens := tokenizer.CharBudget(cfg.Diff.MaxTokens, cfg.Diff.CharsPerToken); fromTokens < budget {
			budget = fromTokens
		}
	}
	return budget
}

// Prepare sanitizes the diff, collapses import runs, computes the elevated
// paths from the stat summary when one is available, and truncates the result
// to the configured budget.
func Prepare(raw RawDiff, cfg *config.Config) PreparedDiff {
	sanitized, removed := Sanitize(raw.Diff)

	collapser := NewImportCollapser(cfg.Diff.CollapseImports, cfg.Diff.ImportPatterns)
	collapsed := collapser.CollapseAll(sanitized)

	var elevated ElevatedSet
	if strings.TrimSpace(raw.Stat) != "" {
		elevated = Elevate(ParseStat(raw.Stat), cfg.Diff.ElevationThreshold, cfg.Diff.ElevationMinLines)
	}

	budget := Budget(cfg)
	prepared := Truncate(collapsed, budget, elevated)

	slog.Debug("prepared diff",
		"raw_chars", len(raw.Diff),
		"conflict_lines_removed", removed,
		"collapsed_chars", len(collapsed),
		"budget", budget,
		"elevated", len(elevated),
		"chars", len(prepared.Content),
		"truncated", prepared.WasTruncated)

	return prepared
}
