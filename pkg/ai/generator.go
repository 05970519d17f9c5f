package ai

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/johnstilia/commitron/pkg/config"
	"github.com/johnstilia/commitron/pkg/diff"
	"github.com/johnstilia/commitron/pkg/tokenizer"
)

const (
	defaultTimeout = 60 * time.Second
	cleanupTimeout = 3 * time.Second
)

// Phase is a progress milestone of one generation
type Phase string

const (
	PhaseSession   Phase = "session"   // Session being created
	PhaseSending   Phase = "sending"   // Prompt dispatched
	PhaseStreaming Phase = "streaming" // First delta received
)

// Request describes one generation
type Request struct {
	Diff        diff.PreparedDiff
	Context     PromptContext
	Instruction string
	Stat        string

	// ModelOverride runs the request on a disposable session with this model
	ModelOverride string

	OnChunk    func(text string)
	OnProgress func(phase Phase)
}

func (r Request) progress(p Phase) {
	if r.OnProgress != nil {
		r.OnProgress(p)
	}
}

// Generator turns prepared diffs into commit messages. It owns at most one
// reusable session, created on first use and torn down after any failure.
type Generator struct {
	backend Backend
	cfg     *config.Config
	timeout time.Duration

	// callMu serializes generations on the reusable session
	callMu sync.Mutex

	mu      sync.Mutex
	session Session
}

// GeneratorOption configures a Generator
type GeneratorOption func(*Generator)

// WithTimeout overrides the per-generation time budget
func WithTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// NewGenerator creates a generator on top of backend
func NewGenerator(backend Backend, cfg *config.Config, opts ...GeneratorOption) *Generator {
	g := &Generator{
		backend: backend,
		cfg:     cfg,
		timeout: defaultTimeout,
	}
	if cfg.AI.TimeoutSeconds > 0 {
		g.timeout = time.Duration(cfg.AI.TimeoutSeconds) * time.Second
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds the prompt, runs it and parses the response
func (g *Generator) Generate(ctx context.Context, req Request) (*GeneratedMessage, error) {
	prompt := BuildPrompt(req.Diff, g.cfg, req.Context, req.Instruction, req.Stat)

	model := g.cfg.AI.Model
	if req.ModelOverride != "" {
		model = req.ModelOverride
	}
	if slog.Default().Enabled(ctx, slog.LevelDebug) {
		slog.DebugContext(ctx, "prompt built",
			"model", model,
			"chars", len(prompt),
			"tokens", tokenizer.CountTokens(prompt, model),
			"truncated", req.Diff.WasTruncated,
			"instruction", req.Instruction != "")
	}

	if req.ModelOverride != "" {
		return g.generateOnce(ctx, req, prompt)
	}

	g.callMu.Lock()
	defer g.callMu.Unlock()

	session, err := g.reusableSession(ctx, req)
	if err != nil {
		return nil, err
	}

	msg, err := g.runAndParse(ctx, session, prompt, req)
	if err != nil {
		g.reset(ctx)
		return nil, err
	}
	return msg, nil
}

// generateOnce runs req on a disposable session that never outlives the call
func (g *Generator) generateOnce(ctx context.Context, req Request, prompt string) (*GeneratedMessage, error) {
	req.progress(PhaseSession)
	session, err := g.backend.CreateSession(ctx, SessionConfig{
		Model:              req.ModelOverride,
		Streaming:          true,
		SystemInstructions: SystemInstructions(g.cfg),
	})
	if err != nil {
		return nil, backendError(err, "create session")
	}
	defer g.destroy(ctx, session)

	return g.runAndParse(ctx, session, prompt, req)
}

func (g *Generator) reusableSession(ctx context.Context, req Request) (Session, error) {
	g.mu.Lock()
	session := g.session
	g.mu.Unlock()
	if session != nil {
		return session, nil
	}

	req.progress(PhaseSession)
	session, err := g.backend.CreateSession(ctx, SessionConfig{
		Model:              g.cfg.AI.Model,
		Streaming:          true,
		SystemInstructions: SystemInstructions(g.cfg),
	})
	if err != nil {
		return nil, backendError(err, "create session")
	}

	g.mu.Lock()
	g.session = session
	g.mu.Unlock()
	return session, nil
}

func (g *Generator) runAndParse(ctx context.Context, session Session, prompt string, req Request) (*GeneratedMessage, error) {
	text, err := g.run(ctx, session, prompt, req)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.WithHint(ErrEmptyResponse, "press r to regenerate")
	}
	slog.DebugContext(ctx, "raw response", "session", session.ID(), "text", text)
	return ParseMessage(text, g.cfg)
}

// run sends prompt and collects the response, racing the stream against the timeout
func (g *Generator) run(ctx context.Context, session Session, prompt string, req Request) (string, error) {
	req.progress(PhaseSending)
	events, err := session.Send(ctx, prompt)
	if err != nil {
		return "", backendError(err, "send prompt")
	}

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	var (
		acc       strings.Builder
		final     string
		streaming bool
	)
	result := func() string {
		if streaming {
			return acc.String()
		}
		return final
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return "", backendError(errors.New("response stream closed before completion"), "stream response")
			}
			switch ev.Kind {
			case EventDelta:
				if !streaming {
					streaming = true
					req.progress(PhaseStreaming)
				}
				acc.WriteString(ev.Text)
				if req.OnChunk != nil {
					req.OnChunk(ev.Text)
				}
			case EventMessage:
				final = ev.Text
			case EventIdle:
				return result(), nil
			case EventError:
				return "", backendError(ev.Err, "stream response")
			}
		case <-timer.C:
			return "", errors.WithHint(
				errors.Wrapf(ErrSessionTimeout, "no response within %s", g.timeout),
				"raise ai.timeout_seconds or pick a faster model",
			)
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "generation aborted")
		}
	}
}

// reset destroys the reusable session so the next call starts clean
func (g *Generator) reset(ctx context.Context) {
	g.mu.Lock()
	session := g.session
	g.session = nil
	g.mu.Unlock()

	if session != nil {
		g.destroy(ctx, session)
	}
}

// destroy tears session down under a bounded context. Errors are logged and dropped.
func (g *Generator) destroy(ctx context.Context, session Session) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := session.Destroy(ctx); err != nil {
		slog.DebugContext(ctx, "session cleanup failed", "session", session.ID(), "error", err)
	}
}

// Stop tears down the reusable session and the backend client. It never
// blocks past the cleanup timeout and swallows every error.
func (g *Generator) Stop(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		g.reset(ctx)
		if err := g.backend.Stop(ctx); err != nil {
			slog.DebugContext(ctx, "backend stop failed", "error", err)
		}
	}()

	select {
	case <-done:
	case <-ctx.Done():
		slog.DebugContext(ctx, "backend stop timed out")
	}
}
