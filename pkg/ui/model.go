package ui

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/johnstilia/commitron/pkg/ai"
	"github.com/johnstilia/commitron/pkg/regen"
)

// Controller receives user actions
type Controller interface {
	Regenerate()
	ChooseStyle(s regen.Style)
	SubmitInstruction(text string)
	Commit()
	Cancel()
	Back()
}

// SnapshotMsg delivers a state machine update to the program
type SnapshotMsg struct {
	Snapshot regen.Snapshot
}

// Model renders the regeneration loop and forwards key presses to the controller
type Model struct {
	ctrl   Controller
	branch string
	files  []string

	snap    regen.Snapshot
	spinner spinner.Model
	input   textinput.Model
	keys    keyMap
	width   int
}

// NewModel creates the interactive view
func NewModel(ctrl Controller, branch string, files []string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	ti := textinput.New()
	ti.Placeholder = "e.g. mention the issue number, focus on the API change"
	ti.CharLimit = 500
	ti.Prompt = "› "

	return Model{
		ctrl:    ctrl,
		branch:  branch,
		files:   files,
		snap:    regen.Snapshot{State: regen.StateGenerating},
		spinner: s,
		input:   ti,
		keys:    defaultKeyMap(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SnapshotMsg:
		prev := m.snap.State
		m.snap = msg.Snapshot
		if m.snap.State.Terminal() {
			return m, tea.Quit
		}
		if m.snap.State == regen.StateCustomInstruction && prev != regen.StateCustomInstruction {
			m.input.Reset()
			return m, m.input.Focus()
		}
		if m.snap.State != regen.StateCustomInstruction {
			m.input.Blur()
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = msg.Width - 8
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Interrupt) {
		m.ctrl.Cancel()
		return m, nil
	}

	switch m.snap.State {
	case regen.StateCustomInstruction:
		switch {
		case key.Matches(msg, m.keys.Submit):
			m.ctrl.SubmitInstruction(m.input.Value())
			return m, nil
		case key.Matches(msg, m.keys.Back):
			m.ctrl.Back()
			return m, nil
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd

	case regen.StateReady:
		switch {
		case key.Matches(msg, m.keys.Commit):
			m.ctrl.Commit()
		case key.Matches(msg, m.keys.Regenerate):
			m.ctrl.Regenerate()
		case key.Matches(msg, m.keys.Quit):
			m.ctrl.Cancel()
		}

	case regen.StateStyleSelection:
		for i, b := range m.keys.Styles {
			if key.Matches(msg, b) && i < len(regen.Styles) {
				m.ctrl.ChooseStyle(regen.Styles[i])
				return m, nil
			}
		}
		switch {
		case key.Matches(msg, m.keys.Back):
			m.ctrl.Back()
		case msg.String() == "q":
			m.ctrl.Cancel()
		}

	default:
		if m.snap.State.Busy() && key.Matches(msg, m.keys.Quit) {
			m.ctrl.Cancel()
		}
	}

	return m, nil
}

func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render("commitron")
	if m.branch != "" {
		header += " " + branchStyle.Render(fmt.Sprintf("(%s|●%d)", m.branch, len(m.files)))
	}
	b.WriteString(header + "\n│\n")

	switch m.snap.State {
	case regen.StateGenerating, regen.StateRegenerating:
		fmt.Fprintf(&b, "%s %s\n", m.spinner.View(), phaseLabel(m.snap))
		if m.snap.Streamed != "" {
			b.WriteString(streamStyle.Render(m.snap.Streamed) + "\n")
		}
		b.WriteString("\n" + helpLine(m.keys.Quit))

	case regen.StateReady:
		m.writeMessage(&b)
		m.writeError(&b)
		b.WriteString("\n" + helpLine(m.keys.Commit, m.keys.Regenerate, m.keys.Quit))

	case regen.StateStyleSelection:
		b.WriteString("◆  Regenerate with which style?\n\n")
		for i, style := range regen.Styles {
			fmt.Fprintf(&b, "   %s %s\n", selectStyle.Render(fmt.Sprintf("%d.", i+1)), style.Description())
		}
		if m.snap.Instruction != "" {
			b.WriteString(helpStyle.Render("\n   last instruction: "+m.snap.Instruction) + "\n")
		}
		b.WriteString("\n" + helpStyle.Render("1-5 choose • esc back • q cancel"))

	case regen.StateCustomInstruction:
		b.WriteString("◆  Instruction for the next attempt:\n\n")
		b.WriteString("   " + m.input.View() + "\n")
		b.WriteString("\n" + helpLine(m.keys.Submit, m.keys.Back))

	case regen.StateCommitting:
		fmt.Fprintf(&b, "%s Committing...\n", m.spinner.View())

	case regen.StateCommitted:
		b.WriteString(successStyle.Render("✔  Committed") + "\n")

	case regen.StateCancelled:
		b.WriteString("✗  Cancelled\n")
	}

	return b.String() + "\n"
}

func (m Model) writeMessage(b *strings.Builder) {
	msg := m.snap.Message
	if msg == nil {
		b.WriteString("◇  No commit message yet\n")
		return
	}

	b.WriteString("◆  Use this commit message?\n")
	content := subjectStyle.Render(msg.Subject)
	if msg.Body != "" {
		content += "\n\n" + msg.Body
	}
	box := messageBox
	if m.width > 4 {
		box = box.MaxWidth(m.width - 2)
	}
	b.WriteString(box.Render(content) + "\n")
}

func (m Model) writeError(b *strings.Builder) {
	if m.snap.Err == nil {
		return
	}
	b.WriteString(errorStyle.Render("✗  "+m.snap.Err.Error()) + "\n")
	for _, hint := range errors.GetAllHints(m.snap.Err) {
		b.WriteString(helpStyle.Render("   hint: "+hint) + "\n")
	}
}

func phaseLabel(s regen.Snapshot) string {
	switch s.Phase {
	case ai.PhaseSession:
		return "Starting session..."
	case ai.PhaseSending:
		return "Analyzing changes..."
	case ai.PhaseStreaming:
		return "Writing commit message..."
	}
	if s.State == regen.StateRegenerating {
		return "Regenerating..."
	}
	return "Generating..."
}

// Run shows the interactive view until the machine reaches a terminal state.
// newMachine receives the observer that forwards snapshots to the view.
func Run(ctx context.Context, branch string, files []string, newMachine func(observe func(regen.Snapshot)) *regen.Machine) (regen.Snapshot, error) {
	var p *tea.Program
	machine := newMachine(func(s regen.Snapshot) {
		p.Send(SnapshotMsg{Snapshot: s})
	})
	p = tea.NewProgram(NewModel(machine, branch, files), tea.WithContext(ctx), tea.WithOutput(os.Stderr))

	type outcome struct {
		snap regen.Snapshot
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		snap, err := machine.Run(ctx)
		done <- outcome{snap: snap, err: err}
	}()

	_, uiErr := p.Run()

	// the program may exit before the machine, e.g. when the terminal closes
	machine.Cancel()
	result := <-done

	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return result.snap, errors.Wrap(uiErr, "run interactive view")
	}
	return result.snap, result.err
}
