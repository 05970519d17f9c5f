package ai_test

import (
	"strings"

	"github.com/johnstilia/commitron/pkg/ai"
	"github.com/johnstilia/commitron/pkg/config"
	"github.com/johnstilia/commitron/pkg/diff"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BuildPrompt", func() {
	var (
		cfg      *config.Config
		prepared diff.PreparedDiff
	)

	BeforeEach(func() {
		cfg = config.DefaultConfig()
		prepared = diff.PreparedDiff{Content: "diff --git a/main.go b/main.go\n+func main() {}\n", WasTruncated: true}
	})

	It("assembles every section in order", func() {
		prompt := ai.BuildPrompt(prepared, cfg, ai.PromptContext{
			RecentCommits: []string{"feat: add login", "fix: typo"},
			Branch:        "feature/auth",
		}, "mention the ticket ABC-1", " main.go | 1 +\n")

		markers := []string{
			"Files changed:\n main.go | 1 +",
			"Analyze this diff",
			"```diff\ndiff --git a/main.go b/main.go\n+func main() {}\n```",
			"the diff was truncated",
			"Recent commits in this repository",
			"- feat: add login\n- fix: typo",
			"Current branch: feature/auth",
			"Keep the subject under 72 characters.",
			"takes precedence over everything above:\nmention the ticket ABC-1",
		}
		last := -1
		for _, m := range markers {
			idx := strings.Index(prompt, m)
			Expect(idx).To(BeNumerically(">", last), "section %q out of order", m)
			last = idx
		}
		Expect(prompt).To(HaveSuffix("mention the ticket ABC-1"))
	})

	It("omits optional sections", func() {
		prepared.WasTruncated = false
		prompt := ai.BuildPrompt(prepared, cfg, ai.PromptContext{}, "  ", "")
		Expect(prompt).To(HavePrefix("Analyze this diff"))
		Expect(prompt).NotTo(ContainSubstring("truncated"))
		Expect(prompt).NotTo(ContainSubstring("Recent commits"))
		Expect(prompt).NotTo(ContainSubstring("Current branch"))
		Expect(prompt).NotTo(ContainSubstring("precedence"))
	})

	DescribeTable("configuration directives",
		func(mutate func(*config.Config), expected, unexpected string) {
			mutate(cfg)
			prompt := ai.BuildPrompt(prepared, cfg, ai.PromptContext{}, "", "")
			Expect(prompt).To(ContainSubstring(expected))
			if unexpected != "" {
				Expect(prompt).NotTo(ContainSubstring(unexpected))
			}
		},
		Entry("no convention", func(c *config.Config) { c.Commit.Convention = config.NoConvention },
			"Do not start the subject with a conventional commit type prefix.", "Do not include a scope"),
		Entry("no scope", func(c *config.Config) { c.Commit.IncludeScope = false },
			"Do not include a scope in the subject.", "type prefix"),
		Entry("concise", func(c *config.Config) { c.Commit.Verbosity = config.VerbosityConcise },
			"Write only the subject line, without a body.", ""),
		Entry("detailed", func(c *config.Config) { c.Commit.Verbosity = config.VerbosityDetailed },
			"explains what changed and why", "Write only the subject line"),
	)
})

var _ = Describe("SystemInstructions", func() {
	It("describes conventional types when the convention is enabled", func() {
		cfg := config.DefaultConfig()
		Expect(ai.SystemInstructions(cfg)).To(ContainSubstring("- feat: A new feature"))

		cfg.Commit.Convention = config.NoConvention
		Expect(ai.SystemInstructions(cfg)).NotTo(ContainSubstring("- feat: A new feature"))
	})

	It("uses a configured system prompt verbatim", func() {
		cfg := config.DefaultConfig()
		cfg.AI.SystemPrompt = "Write haiku commits."
		Expect(ai.SystemInstructions(cfg)).To(Equal("Write haiku commits."))
	})
})
