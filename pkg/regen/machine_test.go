package regen_test

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/johnstilia/commitron/pkg/ai"
	"github.com/johnstilia/commitron/pkg/diff"
	"github.com/johnstilia/commitron/pkg/regen"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type generateCall struct {
	req   ai.Request
	reply chan generateReply
}

type generateReply struct {
	msg *ai.GeneratedMessage
	err error
}

func (c *generateCall) succeed(subject string) {
	c.reply <- generateReply{msg: &ai.GeneratedMessage{Subject: subject, Type: "fix", FullMessage: subject}}
}

func (c *generateCall) fail(err error) {
	c.reply <- generateReply{err: err}
}

// blockingGenerator hands every call to the test, which decides when and how it completes
type blockingGenerator struct {
	calls chan *generateCall
}

func (g *blockingGenerator) Generate(ctx context.Context, req ai.Request) (*ai.GeneratedMessage, error) {
	call := &generateCall{req: req, reply: make(chan generateReply, 1)}
	g.calls <- call
	select {
	case r := <-call.reply:
		return r.msg, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type generatorFunc func(ctx context.Context, req ai.Request) (*ai.GeneratedMessage, error)

func (f generatorFunc) Generate(ctx context.Context, req ai.Request) (*ai.GeneratedMessage, error) {
	return f(ctx, req)
}

type recordingCommitter struct {
	mu       sync.Mutex
	messages []string
	errs     []error
}

func (c *recordingCommitter) Commit(_ context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message)
	if len(c.errs) > 0 {
		err := c.errs[0]
		c.errs = c.errs[1:]
		return err
	}
	return nil
}

func (c *recordingCommitter) committed() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.messages...)
}

var _ = Describe("Machine", func() {
	var (
		gen       *blockingGenerator
		committer *recordingCommitter
		machine   *regen.Machine
		result    chan regen.Snapshot
		cancel    context.CancelFunc
		base      ai.Request
		observed  []regen.State
		obsMu     sync.Mutex
	)

	state := func() regen.State { return machine.Snapshot().State }

	nextCall := func() *generateCall {
		var call *generateCall
		Eventually(gen.calls).Should(Receive(&call))
		return call
	}

	start := func(opts ...regen.Option) {
		opts = append(opts, regen.WithObserver(func(s regen.Snapshot) {
			obsMu.Lock()
			observed = append(observed, s.State)
			obsMu.Unlock()
		}))
		machine = regen.New(gen, committer, base, opts...)

		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(func() { cancel() })

		result = make(chan regen.Snapshot, 1)
		go func() {
			snap, _ := machine.Run(ctx)
			result <- snap
		}()
	}

	readyWith := func(subject string) {
		call := nextCall()
		call.succeed(subject)
		Eventually(state).Should(Equal(regen.StateReady))
		Expect(machine.Snapshot().Message.Subject).To(Equal(subject))
	}

	BeforeEach(func() {
		gen = &blockingGenerator{calls: make(chan *generateCall, 8)}
		committer = &recordingCommitter{}
		base = ai.Request{Diff: diff.PreparedDiff{Content: "diff --git a/a.go b/a.go\n"}, Stat: " a.go | 1 +"}
		observed = nil
	})

	It("generates, then commits the message", func() {
		start()
		call := nextCall()
		Expect(call.req.Instruction).To(BeEmpty())
		Expect(call.req.ModelOverride).To(BeEmpty())
		Expect(call.req.Stat).To(Equal(base.Stat))
		Expect(state()).To(Equal(regen.StateGenerating))

		call.req.OnProgress(ai.PhaseStreaming)
		call.req.OnChunk("fix: ")
		call.req.OnChunk("bug")
		Eventually(func() string { return machine.Snapshot().Streamed }).Should(Equal("fix: bug"))
		Expect(machine.Snapshot().Phase).To(Equal(ai.PhaseStreaming))

		call.succeed("fix: bug")
		Eventually(state).Should(Equal(regen.StateReady))

		machine.Commit()
		var final regen.Snapshot
		Eventually(result).Should(Receive(&final))
		Expect(final.State).To(Equal(regen.StateCommitted))
		Expect(committer.committed()).To(Equal([]string{"fix: bug"}))

		obsMu.Lock()
		defer obsMu.Unlock()
		Expect(observed).NotTo(BeEmpty())
		Expect(observed[len(observed)-1]).To(Equal(regen.StateCommitted))
	})

	It("starts with the instruction and model of the base request", func() {
		base.Instruction = "mention the ticket"
		base.ModelOverride = "gpt-4o"
		start()
		first := nextCall()
		Expect(first.req.Instruction).To(Equal("mention the ticket"))
		Expect(first.req.ModelOverride).To(Equal("gpt-4o"))
		first.succeed("fix: one")
		Eventually(state).Should(Equal(regen.StateReady))

		machine.Regenerate()
		machine.ChooseStyle(regen.StyleSame)
		again := nextCall()
		Expect(again.req.Instruction).To(Equal("mention the ticket"))
		Expect(again.req.ModelOverride).To(BeEmpty())
	})

	It("ignores regenerate while a generation is in flight", func() {
		start()
		first := nextCall()

		machine.Regenerate()
		Consistently(state, 100*time.Millisecond).Should(Equal(regen.StateGenerating))
		Consistently(gen.calls, 50*time.Millisecond).ShouldNot(Receive())

		first.succeed("fix: only")
		Eventually(state).Should(Equal(regen.StateReady))
		Expect(machine.Snapshot().Message.Subject).To(Equal("fix: only"))

		machine.Regenerate()
		Eventually(state).Should(Equal(regen.StateStyleSelection))
	})

	It("discards callbacks from a finished generation", func() {
		start()
		first := nextCall()
		first.succeed("fix: one")
		Eventually(state).Should(Equal(regen.StateReady))

		first.req.OnChunk("late text")
		first.req.OnProgress(ai.PhaseStreaming)
		Consistently(func() string { return machine.Snapshot().Streamed }, 100*time.Millisecond).Should(BeEmpty())
		Expect(machine.Snapshot().Phase).To(BeEmpty())
		Expect(state()).To(Equal(regen.StateReady))
	})

	It("keeps accepting commands while the observer lags behind a burst of chunks", func() {
		burst := generatorFunc(func(_ context.Context, req ai.Request) (*ai.GeneratedMessage, error) {
			for i := 0; i < 200; i++ {
				req.OnChunk("x")
			}
			return &ai.GeneratedMessage{Subject: "fix: burst", FullMessage: "fix: burst"}, nil
		})

		handoff := make(chan regen.Snapshot)
		machine = regen.New(burst, committer, base, regen.WithObserver(func(s regen.Snapshot) {
			handoff <- s
		}))

		ctx, stop := context.WithCancel(context.Background())
		DeferCleanup(stop)
		result = make(chan regen.Snapshot, 1)
		go func() {
			snap, _ := machine.Run(ctx)
			result <- snap
		}()

		uiDone := make(chan struct{})
		go func() {
			defer close(uiDone)
			time.Sleep(20 * time.Millisecond)
			for s := range handoff {
				if s.State == regen.StateCommitted {
					return
				}
				machine.Back()
				if s.State == regen.StateReady {
					machine.Commit()
				}
			}
		}()

		Eventually(uiDone, 2*time.Second).Should(BeClosed())
		var final regen.Snapshot
		Eventually(result).Should(Receive(&final))
		Expect(final.State).To(Equal(regen.StateCommitted))
		Expect(committer.committed()).To(Equal([]string{"fix: burst"}))
	})

	It("replays the last custom instruction for the same style", func() {
		start()
		readyWith("fix: one")

		machine.Regenerate()
		machine.ChooseStyle(regen.StyleCustom)
		Eventually(state).Should(Equal(regen.StateCustomInstruction))
		machine.SubmitInstruction("  mention the ticket  ")
		call := nextCall()
		Expect(call.req.Instruction).To(Equal("mention the ticket"))
		call.succeed("fix: two")
		Eventually(state).Should(Equal(regen.StateReady))

		machine.Regenerate()
		machine.ChooseStyle(regen.StyleSame)
		call = nextCall()
		Expect(call.req.Instruction).To(Equal("mention the ticket"))
		call.succeed("fix: three")
		Eventually(state).Should(Equal(regen.StateReady))

		machine.Regenerate()
		machine.ChooseStyle(regen.StyleDetailed)
		call = nextCall()
		Expect(call.req.Instruction).To(ContainSubstring("more detailed"))
		call.succeed("fix: four")
		Eventually(state).Should(Equal(regen.StateReady))
		Expect(machine.Snapshot().Instruction).To(BeEmpty())

		machine.Regenerate()
		machine.ChooseStyle(regen.StyleSame)
		call = nextCall()
		Expect(call.req.Instruction).To(BeEmpty())
	})

	It("runs the premium style with the premium model", func() {
		start(regen.WithPremiumModel("gpt-4o"))
		readyWith("fix: one")

		machine.Regenerate()
		machine.ChooseStyle(regen.StylePremium)
		call := nextCall()
		Expect(call.req.ModelOverride).To(Equal("gpt-4o"))
		Expect(call.req.Instruction).To(BeEmpty())
	})

	It("reports a missing premium model", func() {
		start()
		readyWith("fix: one")

		machine.Regenerate()
		machine.ChooseStyle(regen.StylePremium)
		Eventually(func() error { return machine.Snapshot().Err }).Should(MatchError(regen.ErrNoPremiumModel))
		Expect(state()).To(Equal(regen.StateReady))
		Expect(machine.Snapshot().Message.Subject).To(Equal("fix: one"))
	})

	It("returns to ready with the message after a commit failure", func() {
		committer.errs = []error{errors.New("hook rejected")}
		start()
		readyWith("fix: one")

		machine.Commit()
		Eventually(func() error { return machine.Snapshot().Err }).Should(HaveOccurred())
		Expect(errors.Is(machine.Snapshot().Err, regen.ErrCommitFailure)).To(BeTrue())
		Expect(state()).To(Equal(regen.StateReady))
		Expect(machine.Snapshot().Message.Subject).To(Equal("fix: one"))

		machine.Commit()
		var final regen.Snapshot
		Eventually(result).Should(Receive(&final))
		Expect(final.State).To(Equal(regen.StateCommitted))
		Expect(committer.committed()).To(HaveLen(2))
	})

	It("keeps the previous message when a generation fails", func() {
		start()
		readyWith("fix: one")

		machine.Regenerate()
		machine.ChooseStyle(regen.StyleSame)
		nextCall().fail(errors.Mark(errors.New("timeout"), ai.ErrSessionTimeout))

		Eventually(func() error { return machine.Snapshot().Err }).Should(HaveOccurred())
		Expect(state()).To(Equal(regen.StateReady))
		Expect(machine.Snapshot().Message.Subject).To(Equal("fix: one"))
	})

	It("refuses to commit without a message", func() {
		start()
		nextCall().fail(errors.New("backend down"))
		Eventually(state).Should(Equal(regen.StateReady))

		machine.Commit()
		Eventually(func() error { return machine.Snapshot().Err }).Should(MatchError(regen.ErrNoMessage))
		Expect(committer.committed()).To(BeEmpty())
	})

	It("backs out of the style menus", func() {
		start()
		readyWith("fix: one")

		machine.Regenerate()
		machine.ChooseStyle(regen.StyleCustom)
		Eventually(state).Should(Equal(regen.StateCustomInstruction))
		machine.Back()
		Eventually(state).Should(Equal(regen.StateStyleSelection))
		machine.Back()
		Eventually(state).Should(Equal(regen.StateReady))
	})

	It("cancels from any state", func() {
		start()
		nextCall()
		machine.Cancel()

		var final regen.Snapshot
		Eventually(result).Should(Receive(&final))
		Expect(final.State).To(Equal(regen.StateCancelled))
		Expect(committer.committed()).To(BeEmpty())
	})

	It("cancels when the context ends", func() {
		start()
		nextCall()
		cancel()

		var final regen.Snapshot
		Eventually(result).Should(Receive(&final))
		Expect(final.State).To(Equal(regen.StateCancelled))
	})
})
