package diff

import (
	"path"
	"strings"
)

// Tier is the relevance class of a file when the diff must be trimmed.
// Higher tiers are kept first.
type Tier int

const (
	TierLow      Tier = 0 // Lock files, generated and build output, data blobs
	TierDefault  Tier = 1
	TierHigh     Tier = 2 // Source files and package manifests
	TierElevated Tier = 3 // Low-tier files dominating the change set, for one diff only
)

var lockFileNames = map[string]bool{
	"package-lock.json":   true,
	"npm-shrinkwrap.json": true,
	"yarn.lock":           true,
	"pnpm-lock.yaml":      true,
	"bun.lockb":           true,
	"go.sum":              true,
	"cargo.lock":          true,
	"gemfile.lock":        true,
	"poetry.lock":         true,
	"pipfile.lock":        true,
	"composer.lock":       true,
	"podfile.lock":        true,
	"flake.lock":          true,
	"mix.lock":            true,
	"pubspec.lock":        true,
}

var generatedDirs = map[string]bool{
	"node_modules":  true,
	"vendor":        true,
	"dist":          true,
	"build":         true,
	"out":           true,
	"target":        true,
	".next":         true,
	".nuxt":         true,
	"coverage":      true,
	"__pycache__":   true,
	"generated":     true,
	"__generated__": true,
	".gradle":       true,
	"bin":           true,
	"obj":           true,
}

var generatedSuffixes = []string{
	".min.js", ".min.css", ".map", ".pb.go", "_generated.go", ".gen.go", ".snap",
	".json", ".csv", ".svg", ".lock",
}

var manifestNames = map[string]bool{
	"package.json":     true,
	"go.mod":           true,
	"cargo.toml":       true,
	"pyproject.toml":   true,
	"requirements.txt": true,
	"setup.py":         true,
	"gemfile":          true,
	"pom.xml":          true,
	"build.gradle":     true,
	"build.gradle.kts": true,
	"composer.json":    true,
	"package.swift":    true,
	"mix.exs":          true,
	"pubspec.yaml":     true,
	"dockerfile":       true,
	"makefile":         true,
	"cmakelists.txt":   true,
}

var sourceExtensions = map[string]bool{
	".go": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true, ".mjs": true,
	".py": true, ".rs": true, ".java": true, ".kt": true, ".scala": true, ".swift": true,
	".c": true, ".h": true, ".cc": true, ".cpp": true, ".hpp": true, ".cs": true,
	".rb": true, ".php": true, ".vue": true, ".svelte": true, ".sql": true, ".sh": true,
	".ex": true, ".exs": true, ".dart": true, ".lua": true,
}

// Classify returns the relevance tier of a path
func Classify(p string) Tier {
	lower := strings.ToLower(strings.TrimSpace(p))
	if lower == "" {
		return TierDefault
	}
	base := path.Base(lower)

	if lockFileNames[base] {
		return TierLow
	}
	dirs := strings.Split(path.Dir(lower), "/")
	for _, dir := range dirs {
		if generatedDirs[dir] {
			return TierLow
		}
	}
	if manifestNames[base] {
		return TierHigh
	}
	for _, suffix := range generatedSuffixes {
		if strings.HasSuffix(base, suffix) {
			return TierLow
		}
	}
	if sourceExtensions[path.Ext(base)] {
		return TierHigh
	}
	return TierDefault
}

// EffectiveTier is the tier used for ordering: elevated paths outrank everything
func EffectiveTier(p string, elevated ElevatedSet) Tier {
	if elevated.Contains(p) {
		return TierElevated
	}
	return Classify(p)
}
