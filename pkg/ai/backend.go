package ai

import (
	"context"
)

// EventKind identifies the kind of a session event
type EventKind int

const (
	// EventDelta carries an incremental piece of the response
	EventDelta EventKind = iota
	// EventMessage carries the complete response text
	EventMessage
	// EventIdle signals that the session finished processing the prompt
	EventIdle
	// EventError carries a failure; no further events follow
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventMessage:
		return "message"
	case EventIdle:
		return "idle"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item of a session's response stream
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

// SessionConfig describes a conversational session
type SessionConfig struct {
	Model              string
	Streaming          bool
	SystemInstructions string
}

// Session is a conversational handle on the backend. The event channel
// returned by Send is closed after an EventIdle or EventError.
type Session interface {
	ID() string
	Send(ctx context.Context, prompt string) (<-chan Event, error)
	Destroy(ctx context.Context) error
}

// Backend creates sessions and owns the underlying client
type Backend interface {
	CreateSession(ctx context.Context, cfg SessionConfig) (Session, error)
	Stop(ctx context.Context) error
}
