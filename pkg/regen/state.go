// Package regen drives the interactive generate, review and commit loop as an
// explicit state machine fed by a command queue.
package regen

import (
	"github.com/cockroachdb/errors"
)

var (
	ErrCommitFailure  = errors.New("commit failed")
	ErrNoMessage      = errors.New("no commit message to commit")
	ErrNoPremiumModel = errors.New("no premium model configured")
)

// State is a node of the regeneration state machine
type State int

const (
	StateGenerating State = iota
	StateReady
	StateStyleSelection
	StateCustomInstruction
	StateRegenerating
	StateCommitting
	StateCommitted
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateGenerating:
		return "generating"
	case StateReady:
		return "ready"
	case StateStyleSelection:
		return "style-selection"
	case StateCustomInstruction:
		return "custom-instruction"
	case StateRegenerating:
		return "regenerating"
	case StateCommitting:
		return "committing"
	case StateCommitted:
		return "committed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether the machine stops in this state
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateCancelled
}

// Busy reports whether a generation is in flight
func (s State) Busy() bool {
	return s == StateGenerating || s == StateRegenerating
}

// Style selects how a regeneration differs from the previous attempt
type Style string

const (
	StyleSame     Style = "same"
	StyleConcise  Style = "concise"
	StyleDetailed Style = "detailed"
	StylePremium  Style = "premium"
	StyleCustom   Style = "custom"
)

// Styles lists the regenerate styles in menu order
var Styles = []Style{StyleSame, StyleConcise, StyleDetailed, StylePremium, StyleCustom}

// Description is the menu label of a style
func (s Style) Description() string {
	switch s {
	case StyleSame:
		return "Same style (repeats the last custom instruction)"
	case StyleConcise:
		return "More concise"
	case StyleDetailed:
		return "More detailed"
	case StylePremium:
		return "Premium model"
	case StyleCustom:
		return "Custom instruction..."
	default:
		return string(s)
	}
}

var styleInstructions = map[Style]string{
	StyleConcise:  "Make the message more concise: a short subject and at most one line of body.",
	StyleDetailed: "Make the message more detailed: add a body that explains what changed and why.",
}
