package regen

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/johnstilia/commitron/pkg/ai"
)

// Generator produces commit messages
type Generator interface {
	Generate(ctx context.Context, req ai.Request) (*ai.GeneratedMessage, error)
}

// Committer records a commit with the given message
type Committer interface {
	Commit(ctx context.Context, message string) error
}

// Snapshot is the observable state of the machine
type Snapshot struct {
	State       State
	Message     *ai.GeneratedMessage // Last successful generation, kept across failures
	Streamed    string               // Text streamed so far by the live request
	Phase       ai.Phase
	Err         error  // Error of the last generation or commit attempt
	Style       Style  // Style of the live or last regeneration
	Instruction string // Recorded custom instruction replayed by StyleSame
	Attempts    int
}

type (
	regenerateCmd struct{}
	styleCmd      struct{ style Style }
	instructCmd   struct{ text string }
	commitCmd     struct{}
	cancelCmd     struct{}
	backCmd       struct{}

	chunkMsg struct {
		token Token
		text  string
	}
	progressMsg struct {
		token Token
		phase ai.Phase
	}
	resultMsg struct {
		token Token
		msg   *ai.GeneratedMessage
		err   error
	}
	commitDoneMsg struct {
		err error
	}
)

// Option configures a Machine
type Option func(*Machine)

// WithPremiumModel sets the model used by StylePremium
func WithPremiumModel(model string) Option {
	return func(m *Machine) {
		m.premiumModel = model
	}
}

// WithObserver registers fn to receive the latest snapshot after changes. It
// runs on its own goroutine, so a slow observer never stalls the machine;
// snapshots published while it is busy collapse into the most recent one.
func WithObserver(fn func(Snapshot)) Option {
	return func(m *Machine) {
		m.observer = fn
	}
}

// Machine coordinates generation attempts, regeneration styles and the final
// commit. All state is owned by the goroutine executing Run; other goroutines
// interact through the command methods.
type Machine struct {
	gen          Generator
	committer    Committer
	base         ai.Request
	premiumModel string
	observer     func(Snapshot)

	queue  chan any
	done   chan struct{}
	notify chan struct{}

	tokens tokenSource
	snap   Snapshot

	mu   sync.Mutex
	last Snapshot
}

// New creates a machine that regenerates base with varying instructions
func New(gen Generator, committer Committer, base ai.Request, opts ...Option) *Machine {
	m := &Machine{
		gen:       gen,
		committer: committer,
		base:      base,
		queue:     make(chan any, 64),
		done:      make(chan struct{}),
		notify:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Regenerate opens the style selection
func (m *Machine) Regenerate() { m.post(regenerateCmd{}) }

// ChooseStyle picks a regenerate style while the style selection is open
func (m *Machine) ChooseStyle(s Style) { m.post(styleCmd{style: s}) }

// SubmitInstruction regenerates with a custom instruction
func (m *Machine) SubmitInstruction(text string) { m.post(instructCmd{text: text}) }

// Commit commits the current message
func (m *Machine) Commit() { m.post(commitCmd{}) }

// Cancel stops the machine without committing
func (m *Machine) Cancel() { m.post(cancelCmd{}) }

// Back leaves the style selection or the custom instruction prompt
func (m *Machine) Back() { m.post(backCmd{}) }

// Snapshot returns the latest published state
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Machine) post(msg any) {
	select {
	case m.queue <- msg:
	case <-m.done:
	}
}

// Run starts the first generation and processes commands until the machine
// reaches a terminal state or ctx is cancelled.
func (m *Machine) Run(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(m.done)

	stopForward := make(chan struct{})
	forwarded := make(chan struct{})
	go m.forward(stopForward, forwarded)
	defer func() {
		close(stopForward)
		<-forwarded
	}()

	// the first attempt honours the instruction and model the caller started with
	m.snap.Instruction = m.base.Instruction
	m.generate(ctx, StateGenerating, m.base.Instruction, m.base.ModelOverride)
	m.publish()

	for {
		select {
		case msg := <-m.queue:
			m.handle(ctx, msg)
			if m.snap.State.Terminal() {
				return m.snap, nil
			}
		case <-ctx.Done():
			m.tokens.Revoke()
			m.snap.State = StateCancelled
			m.publish()
			return m.snap, ctx.Err()
		}
	}
}

func (m *Machine) handle(ctx context.Context, msg any) {
	switch msg := msg.(type) {
	case chunkMsg:
		if !m.tokens.Current(msg.token) {
			return
		}
		m.snap.Streamed += msg.text

	case progressMsg:
		if !m.tokens.Current(msg.token) {
			return
		}
		m.snap.Phase = msg.phase

	case resultMsg:
		if !m.tokens.Current(msg.token) {
			slog.Debug("discarding stale generation result", "error", msg.err)
			return
		}
		m.tokens.Revoke()
		m.snap.State = StateReady
		m.snap.Phase = ""
		if msg.err != nil {
			m.snap.Err = msg.err
		} else {
			m.snap.Message = msg.msg
			m.snap.Err = nil
			m.snap.Attempts++
		}

	case regenerateCmd:
		// one request at a time: the reusable session is never shared
		if m.snap.State != StateReady {
			return
		}
		m.snap.State = StateStyleSelection

	case styleCmd:
		if m.snap.State != StateStyleSelection {
			return
		}
		m.chooseStyle(ctx, msg.style)

	case instructCmd:
		if m.snap.State != StateCustomInstruction {
			return
		}
		text := strings.TrimSpace(msg.text)
		if text == "" {
			m.snap.State = StateStyleSelection
			break
		}
		m.snap.Instruction = text
		m.generate(ctx, StateRegenerating, text, "")

	case backCmd:
		switch m.snap.State {
		case StateStyleSelection:
			m.snap.State = StateReady
		case StateCustomInstruction:
			m.snap.State = StateStyleSelection
		default:
			return
		}

	case commitCmd:
		if m.snap.State != StateReady {
			return
		}
		if m.snap.Message == nil {
			m.snap.Err = errors.WithHint(ErrNoMessage, "press r to generate a message first")
			break
		}
		m.snap.State = StateCommitting
		m.snap.Err = nil
		message := m.snap.Message.FullMessage
		go func() {
			m.post(commitDoneMsg{err: m.committer.Commit(ctx, message)})
		}()

	case commitDoneMsg:
		if m.snap.State != StateCommitting {
			return
		}
		if msg.err != nil {
			m.snap.State = StateReady
			m.snap.Err = errors.Mark(errors.Wrap(msg.err, "commit"), ErrCommitFailure)
			break
		}
		m.snap.State = StateCommitted

	case cancelCmd:
		if m.snap.State.Terminal() {
			return
		}
		m.tokens.Revoke()
		m.snap.State = StateCancelled
	}

	m.publish()
}

func (m *Machine) chooseStyle(ctx context.Context, style Style) {
	m.snap.Style = style

	switch style {
	case StyleSame:
		m.generate(ctx, StateRegenerating, m.snap.Instruction, "")
	case StyleConcise, StyleDetailed:
		m.snap.Instruction = ""
		m.generate(ctx, StateRegenerating, styleInstructions[style], "")
	case StylePremium:
		m.snap.Instruction = ""
		if m.premiumModel == "" {
			m.snap.State = StateReady
			m.snap.Err = errors.WithHint(ErrNoPremiumModel, "set ai.premium_model or COMMITRON_PREMIUM_MODEL")
			return
		}
		m.generate(ctx, StateRegenerating, "", m.premiumModel)
	case StyleCustom:
		m.snap.State = StateCustomInstruction
	default:
		slog.Warn("unknown regenerate style", "style", style)
	}
}

// generate issues a fresh token and starts a request in the background.
// Callbacks and the result are posted back tagged with the token.
func (m *Machine) generate(ctx context.Context, state State, instruction, modelOverride string) {
	token := m.tokens.Issue()

	m.snap.State = state
	m.snap.Streamed = ""
	m.snap.Phase = ""
	m.snap.Err = nil

	req := m.base
	req.Instruction = instruction
	req.ModelOverride = modelOverride
	req.OnChunk = func(text string) {
		m.post(chunkMsg{token: token, text: text})
	}
	req.OnProgress = func(phase ai.Phase) {
		m.post(progressMsg{token: token, phase: phase})
	}

	slog.Debug("starting generation", "state", state, "instruction", instruction != "", "model_override", modelOverride)

	go func() {
		msg, err := m.gen.Generate(ctx, req)
		m.post(resultMsg{token: token, msg: msg, err: err})
	}()
}

func (m *Machine) publish() {
	m.mu.Lock()
	m.last = m.snap
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// forward hands published snapshots to the observer until stop is closed,
// then delivers any snapshot still pending.
func (m *Machine) forward(stop <-chan struct{}, finished chan<- struct{}) {
	defer close(finished)
	if m.observer == nil {
		return
	}
	for {
		select {
		case <-m.notify:
			m.observer(m.Snapshot())
		case <-stop:
			select {
			case <-m.notify:
				m.observer(m.Snapshot())
			default:
			}
			return
		}
	}
}
