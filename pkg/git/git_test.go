package git_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/johnstilia/commitron/pkg/git"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Repo", func() {
	var (
		dir  string
		repo *git.Repo
		ctx  context.Context
	)

	gitIn := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		out, err := cmd.CombinedOutput()
		Expect(err).NotTo(HaveOccurred(), string(out))
	}

	write := func(name, content string) {
		Expect(os.MkdirAll(filepath.Dir(filepath.Join(dir, name)), 0o755)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		if _, err := exec.LookPath("git"); err != nil {
			Skip("git is not installed")
		}
		dir = GinkgoT().TempDir()
		ctx = context.Background()
		repo = git.NewRepo(dir)

		gitIn("init", "-q", "-b", "main")
		gitIn("config", "user.name", "Test")
		gitIn("config", "user.email", "test@example.com")
		gitIn("config", "commit.gpgsign", "false")
	})

	It("reads a snapshot of a fresh repository", func() {
		Expect(repo.IsGitRepo(ctx)).To(BeTrue())

		write("src/main.go", "package main\n")
		gitIn("add", "src/main.go")

		snap, err := repo.Snapshot(ctx, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(snap.Files).To(Equal([]string{"src/main.go"}))
		Expect(snap.Diff).To(ContainSubstring("+package main"))
		Expect(snap.Stat).To(ContainSubstring("src/main.go | 1 +"))
		Expect(snap.Branch).To(Equal("main"))
		Expect(snap.RecentCommits).To(BeEmpty())
	})

	It("commits and lists recent subjects", func() {
		write("a.txt", "one\n")
		gitIn("add", "a.txt")
		Expect(repo.Commit(ctx, "feat: first\n\nbody text")).To(Succeed())

		write("a.txt", "two\n")
		gitIn("add", "a.txt")
		Expect(repo.Commit(ctx, "fix: second")).To(Succeed())

		commits, err := repo.RecentCommits(ctx, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(commits).To(Equal([]string{"fix: second", "feat: first"}))

		staged, err := repo.GetStagedFiles(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(staged).To(BeEmpty())
	})

	It("stages modified tracked files", func() {
		write("a.txt", "one\n")
		gitIn("add", "a.txt")
		Expect(repo.Commit(ctx, "chore: init")).To(Succeed())

		write("a.txt", "changed\n")
		write("untracked.txt", "new\n")

		staged, err := repo.StageAllModified(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(staged).To(Equal([]string{"a.txt"}))

		files, err := repo.GetStagedFiles(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(files).To(Equal([]string{"a.txt"}))
	})

	It("rejects empty messages and reports git failures", func() {
		Expect(repo.Commit(ctx, "  \n")).To(MatchError(ContainSubstring("empty")))

		err := repo.Commit(ctx, "feat: nothing staged")
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("git commit"))
	})

	It("returns the repository root", func() {
		root, err := repo.RepoRoot(ctx)
		Expect(err).NotTo(HaveOccurred())
		resolved, err := filepath.EvalSymlinks(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(filepath.EvalSymlinks(root)).To(Equal(resolved))
	})
})
