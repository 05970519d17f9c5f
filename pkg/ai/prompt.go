package ai

import (
	"fmt"
	"strings"

	"github.com/johnstilia/commitron/pkg/config"
	"github.com/johnstilia/commitron/pkg/diff"
)

// PromptContext is repository context that helps the model match house style
type PromptContext struct {
	RecentCommits []string
	Branch        string
}

// commitTypeDescriptions lists the conventional types offered to the model
const commitTypeDescriptions = `Choose the type that best describes the change:
- feat: A new feature
- fix: A bug fix
- docs: Documentation only changes
- style: Changes that do not affect the meaning of the code (whitespace, formatting, etc)
- refactor: A code change that neither fixes a bug nor adds a feature
- perf: A code change that improves performance
- test: Adding missing tests or correcting existing tests
- build: Changes that affect the build system or external dependencies
- ci: Changes to CI configuration files and scripts
- chore: Other changes that don't modify source or test files
- revert: Reverts a previous commit`

// SystemInstructions returns the fixed instructions every session is created with
func SystemInstructions(cfg *config.Config) string {
	if cfg.AI.SystemPrompt != "" {
		return cfg.AI.SystemPrompt
	}

	parts := []string{
		"You are an expert developer who writes clear, concise git commit messages in the imperative mood.",
		"Reply with the commit message only: the subject on the first line, then an optional body after a blank line.",
		"Do not wrap the message in quotes or markdown and do not add explanations.",
		fmt.Sprintf("The subject line MUST NOT exceed %d characters.", cfg.Commit.MaxLength),
	}

	if cfg.Conventional() {
		parts = append(parts,
			"Format the subject as a conventional commit: type(optional-scope): description",
			"Types MUST be lowercase. Mark breaking changes with '!' before the colon.",
			commitTypeDescriptions,
		)
	}

	parts = append(parts, "When instructions conflict, the later instruction takes precedence.")
	return strings.Join(parts, "\n")
}

// BuildPrompt assembles the request text. Sections appear in a fixed order
// and later sections override earlier ones.
func BuildPrompt(prepared diff.PreparedDiff, cfg *config.Config, pctx PromptContext, instruction, stat string) string {
	var sections []string

	if stat = strings.TrimRight(stat, "\n"); strings.TrimSpace(stat) != "" {
		sections = append(sections, "Files changed:\n"+stat)
	}

	sections = append(sections, "Analyze this diff and write a commit message for it:\n```diff\n"+
		strings.TrimRight(prepared.Content, "\n")+"\n```")

	if prepared.WasTruncated {
		sections = append(sections, "Note: the diff was truncated to fit the size limit. "+
			"Less relevant files were shortened or left out; use the file list to describe the whole change.")
	}

	if len(pctx.RecentCommits) > 0 {
		var b strings.Builder
		b.WriteString("Recent commits in this repository, for style reference only:")
		for _, c := range pctx.RecentCommits {
			b.WriteString("\n- ")
			b.WriteString(c)
		}
		sections = append(sections, b.String())
	}

	if pctx.Branch != "" {
		sections = append(sections, fmt.Sprintf("Current branch: %s. It may hint at the purpose of the change.", pctx.Branch))
	}

	if directives := configDirectives(cfg); len(directives) > 0 {
		sections = append(sections, strings.Join(directives, "\n"))
	}

	if instruction = strings.TrimSpace(instruction); instruction != "" {
		sections = append(sections, "Additional instruction from the user. It takes precedence over everything above:\n"+instruction)
	}

	return strings.Join(sections, "\n\n")
}

func configDirectives(cfg *config.Config) []string {
	var directives []string

	if !cfg.Conventional() {
		directives = append(directives, "Do not start the subject with a conventional commit type prefix.")
	} else if !cfg.Commit.IncludeScope {
		directives = append(directives, "Do not include a scope in the subject.")
	}

	switch cfg.Commit.Verbosity {
	case config.VerbosityConcise:
		directives = append(directives, "Write only the subject line, without a body.")
	case config.VerbosityDetailed:
		directives = append(directives, "Add a body that explains what changed and why, wrapped at 72 columns.")
	default:
		directives = append(directives, "Add a short body of one to three lines only when the subject alone is not enough.")
	}

	directives = append(directives, fmt.Sprintf("Keep the subject under %d characters.", cfg.Commit.MaxLength))
	return directives
}
