package diff_test

import (
	"fmt"
	"strings"

	"github.com/johnstilia/commitron/pkg/diff"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func dataJSONChunk(lines int) string {
	var b strings.Builder
	b.WriteString("diff --git a/data.json b/data.json\n--- a/data.json\n+++ b/data.json\n")
	fmt.Fprintf(&b, "@@ -0,0 +1,%d @@\n", lines)
	for i := 0; i < lines; i++ {
		fmt.Fprintf(&b, "+  \"key_%03d\": \"value\",\n", i)
	}
	return b.String()
}

const fooTSChunk = "diff --git a/src/foo.ts b/src/foo.ts\n--- a/src/foo.ts\n+++ b/src/foo.ts\n@@ -1 +1 @@\n-const a = 1;\n+const a = 2;\n"

var _ = Describe("Truncate", func() {
	It("returns text within budget unchanged", func() {
		text := dataJSONChunk(3) + fooTSChunk
		prepared := diff.Truncate(text, len(text), nil)
		Expect(prepared.Content).To(Equal(text))
		Expect(prepared.WasTruncated).To(BeFalse())
	})

	It("falls back to forward line truncation for a single chunk", func() {
		var b strings.Builder
		for i := 0; i < 40; i++ {
			fmt.Fprintf(&b, "line %02d\n", i)
		}
		prepared := diff.Truncate(b.String(), 60, nil)
		Expect(prepared.WasTruncated).To(BeTrue())
		Expect(len(prepared.Content)).To(BeNumerically("<=", 60))
		Expect(prepared.Content).To(HavePrefix("line 00\nline 01\n"))
		Expect(prepared.Content).To(HaveSuffix("... [truncated]"))
	})

	It("orders by tier and drops low-tier chunks that do not fit", func() {
		text := dataJSONChunk(100) + fooTSChunk
		prepared := diff.Truncate(text, 500, nil)
		Expect(prepared.WasTruncated).To(BeTrue())
		Expect(prepared.Content).To(Equal(fooTSChunk))
	})

	It("includes a fragment of an elevated low-tier file", func() {
		text := dataJSONChunk(100) + fooTSChunk
		elevated := diff.Elevate([]diff.FileStat{
			{Path: "data.json", Added: 100},
			{Path: "src/foo.ts", Added: 1, Removed: 1},
		}, 0.8, 0)
		Expect(elevated).To(HaveKey("data.json"))

		prepared := diff.Truncate(text, 500, elevated)
		Expect(prepared.WasTruncated).To(BeTrue())
		Expect(len(prepared.Content)).To(BeNumerically("<=", 500))
		Expect(prepared.Content).To(HavePrefix("diff --git a/data.json b/data.json\n... ["))
		Expect(prepared.Content).To(MatchRegexp(`\.\.\. \[\d+ lines omitted\] \.\.\.`))
		Expect(prepared.Content).To(ContainSubstring(`"key_099": "value",`))
		Expect(prepared.Content).NotTo(ContainSubstring("src/foo.ts"))
	})

	It("skips partial output when too little budget remains", func() {
		readme := strings.Replace(dataJSONChunk(20), "data.json", "README.md", -1)
		src := strings.Replace(fooTSChunk, "foo.ts", "bar.ts", -1)
		text := fooTSChunk + readme + src
		budget := len(fooTSChunk) + len(src) + 50
		prepared := diff.Truncate(text, budget, nil)
		Expect(prepared.Content).To(Equal(fooTSChunk + src))
	})

	It("never exceeds the budget for multi-chunk diffs", func() {
		text := dataJSONChunk(30) + fooTSChunk + strings.Replace(dataJSONChunk(50), "data.json", "README.md", -1)
		for _, budget := range []int{10, 40, 90, 150, 333, 700, 1500} {
			prepared := diff.Truncate(text, budget, nil)
			Expect(len(prepared.Content)).To(BeNumerically("<=", budget), "budget %d", budget)
			Expect(prepared.WasTruncated).To(BeTrue())
		}
	})
})

var _ = Describe("SplitChunks", func() {
	It("keeps text before the first file header as its own chunk", func() {
		chunks := diff.SplitChunks("preamble\n" + fooTSChunk + dataJSONChunk(1))
		Expect(chunks).To(HaveLen(3))
		Expect(chunks[0].Path).To(BeEmpty())
		Expect(chunks[1].Path).To(Equal("src/foo.ts"))
		Expect(chunks[1].Header()).To(Equal("diff --git a/src/foo.ts b/src/foo.ts"))
		Expect(chunks[2].Path).To(Equal("data.json"))
		Expect(chunks[2].Order).To(Equal(2))
		Expect(diff.JoinChunks(chunks)).To(Equal("preamble\n" + fooTSChunk + dataJSONChunk(1)))
	})

	It("returns a single chunk for text without headers", func() {
		chunks := diff.SplitChunks("just text\n")
		Expect(chunks).To(Equal([]diff.Chunk{{Text: "just text\n"}}))
	})
})
