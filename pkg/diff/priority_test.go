package diff_test

import (
	"github.com/johnstilia/commitron/pkg/diff"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Classify", func() {
	DescribeTable("assigns tiers",
		func(path string, expected diff.Tier) {
			Expect(diff.Classify(path)).To(Equal(expected))
		},
		Entry("npm lock file", "package-lock.json", diff.TierLow),
		Entry("nested lock file", "services/api/go.sum", diff.TierLow),
		Entry("case-insensitive lock file", "Cargo.lock", diff.TierLow),
		Entry("vendored dependency", "node_modules/left-pad/index.js", diff.TierLow),
		Entry("build output", "web/dist/app.js", diff.TierLow),
		Entry("generated protobuf", "api/types.pb.go", diff.TierLow),
		Entry("minified asset", "static/app.min.js", diff.TierLow),
		Entry("data file", "data.json", diff.TierLow),
		Entry("go source", "pkg/diff/chunk.go", diff.TierHigh),
		Entry("typescript source", "src/foo.ts", diff.TierHigh),
		Entry("package manifest", "package.json", diff.TierHigh),
		Entry("go manifest", "go.mod", diff.TierHigh),
		Entry("dockerfile", "deploy/Dockerfile", diff.TierHigh),
		Entry("markdown", "README.md", diff.TierDefault),
		Entry("plain text", "docs/guide.txt", diff.TierDefault),
		Entry("empty path", "", diff.TierDefault),
	)

	It("puts elevated paths above every base tier", func() {
		elevated := diff.ElevatedSet{"data.json": {}}
		Expect(diff.EffectiveTier("data.json", elevated)).To(Equal(diff.TierElevated))
		Expect(diff.EffectiveTier("src/foo.ts", elevated)).To(Equal(diff.TierHigh))
		Expect(diff.EffectiveTier("data.json", nil)).To(Equal(diff.TierLow))
	})
})
