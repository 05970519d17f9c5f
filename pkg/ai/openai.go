package ai

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cockroachdb/errors"
	"github.com/johnstilia/commitron/pkg/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIBackend talks to OpenAI or any OpenAI-compatible endpoint (Ollama included)
type OpenAIBackend struct {
	client      openai.Client
	temperature float64
	maxTokens   int
	ids         *snowflake.Node

	mu       sync.Mutex
	stopped  bool
	sessions map[string]*openaiSession
}

// NewOpenAIBackend creates a backend from the AI section of the configuration
func NewOpenAIBackend(cfg *config.Config) (*OpenAIBackend, error) {
	apiKey := cfg.AI.APIKey
	baseURL := cfg.AI.BaseURL

	if cfg.AI.Provider == config.Ollama {
		if baseURL == "" {
			baseURL = config.DefaultOllamaBaseURL
		}
		if apiKey == "" {
			apiKey = "ollama"
		}
	}
	if apiKey == "" {
		return nil, errors.WithHint(
			errors.New("no API key configured"),
			"set COMMITRON_API_KEY or OPENAI_API_KEY, or ai.api_key in ~/.commitronrc",
		)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, errors.Wrap(err, "create session id generator")
	}

	return &OpenAIBackend{
		client:      openai.NewClient(opts...),
		temperature: cfg.AI.Temperature,
		maxTokens:   cfg.AI.MaxTokens,
		ids:         node,
		sessions:    make(map[string]*openaiSession),
	}, nil
}

// CreateSession opens a new conversation. The system instructions become the
// first message of its history.
func (b *OpenAIBackend) CreateSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return nil, errors.New("backend client stopped")
	}

	sessionCtx, cancel := context.WithCancel(context.Background())
	s := &openaiSession{
		backend: b,
		id:      b.ids.Generate().String(),
		cfg:     cfg,
		ctx:     sessionCtx,
		cancel:  cancel,
	}
	if cfg.SystemInstructions != "" {
		s.history = append(s.history, openai.SystemMessage(cfg.SystemInstructions))
	}
	b.sessions[s.id] = s

	slog.Debug("session created", "session", s.id, "model", cfg.Model, "streaming", cfg.Streaming)
	return s, nil
}

// Stop destroys every live session and rejects new ones
func (b *OpenAIBackend) Stop(ctx context.Context) error {
	b.mu.Lock()
	b.stopped = true
	live := make([]*openaiSession, 0, len(b.sessions))
	for _, s := range b.sessions {
		live = append(live, s)
	}
	b.mu.Unlock()

	for _, s := range live {
		if err := s.Destroy(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (b *OpenAIBackend) forget(id string) {
	b.mu.Lock()
	delete(b.sessions, id)
	b.mu.Unlock()
}

type openaiSession struct {
	backend *OpenAIBackend
	id      string
	cfg     SessionConfig

	// ctx is cancelled by Destroy and aborts every in-flight request
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	history []openai.ChatCompletionMessageParamUnion
}

func (s *openaiSession) ID() string {
	return s.id
}

// Send dispatches prompt and returns the response stream. Completed
// exchanges are appended to the session history.
func (s *openaiSession) Send(ctx context.Context, prompt string) (<-chan Event, error) {
	if err := s.ctx.Err(); err != nil {
		return nil, errors.Newf("session %s destroyed", s.id)
	}

	s.mu.Lock()
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(s.history)+1)
	messages = append(messages, s.history...)
	s.mu.Unlock()
	messages = append(messages, openai.UserMessage(prompt))

	params := openai.ChatCompletionNewParams{
		Model:    s.cfg.Model,
		Messages: messages,
	}
	if s.backend.temperature > 0 {
		params.Temperature = openai.Float(s.backend.temperature)
	}
	if s.backend.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(s.backend.maxTokens))
	}

	sendCtx, cancel := context.WithCancel(ctx)
	stopOnDestroy := context.AfterFunc(s.ctx, cancel)

	events := make(chan Event, 16)
	emit := func(ev Event) bool {
		select {
		case events <- ev:
			return true
		case <-sendCtx.Done():
			return false
		}
	}
	// fail always delivers the terminal error. Once the reader may have gone
	// away, the oldest buffered deltas are discarded to make room for it.
	fail := func(err error) {
		ev := Event{Kind: EventError, Err: err}
		for {
			select {
			case events <- ev:
				return
			case <-sendCtx.Done():
			}
			select {
			case events <- ev:
				return
			case <-events:
			default:
			}
		}
	}

	go func() {
		defer close(events)
		defer stopOnDestroy()
		defer cancel()

		start := time.Now()
		var (
			text string
			err  error
		)
		if s.cfg.Streaming {
			text, err = s.stream(sendCtx, params, emit)
		} else {
			text, err = s.complete(sendCtx, params)
		}
		if err == nil && sendCtx.Err() != nil {
			err = sendCtx.Err()
		}
		if err != nil {
			if s.ctx.Err() != nil {
				err = errors.Wrapf(err, "session %s destroyed", s.id)
			}
			fail(err)
			return
		}

		s.mu.Lock()
		s.history = append(s.history, openai.UserMessage(prompt), openai.AssistantMessage(text))
		s.mu.Unlock()

		slog.Debug("response received",
			"session", s.id,
			"model", s.cfg.Model,
			"duration_ms", time.Since(start).Milliseconds(),
			"chars", len(text))

		if !emit(Event{Kind: EventMessage, Text: text}) || !emit(Event{Kind: EventIdle}) {
			fail(sendCtx.Err())
		}
	}()

	return events, nil
}

func (s *openaiSession) stream(ctx context.Context, params openai.ChatCompletionNewParams, emit func(Event) bool) (string, error) {
	stream := s.backend.client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	var b strings.Builder
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		b.WriteString(delta)
		if !emit(Event{Kind: EventDelta, Text: delta}) {
			return "", ctx.Err()
		}
	}
	if err := stream.Err(); err != nil {
		return "", errors.Wrap(err, "openai stream")
	}
	return b.String(), nil
}

func (s *openaiSession) complete(ctx context.Context, params openai.ChatCompletionNewParams) (string, error) {
	resp, err := s.backend.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", errors.Wrap(err, "openai chat")
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Destroy cancels in-flight requests and releases the session
func (s *openaiSession) Destroy(ctx context.Context) error {
	s.cancel()
	s.backend.forget(s.id)
	slog.DebugContext(ctx, "session destroyed", "session", s.id)
	return nil
}
