// Package input implements the command-line widget's autocomplete logic.
// It holds no I/O: every method runs synchronously to completion.
package input

import (
	"strings"

	"termfolio/pkg/domain"
)

type State int

const (
	// Idle: the buffer is empty or does not start with "/".
	Idle State = iota
	// Listing: the buffer is exactly "/" and every command is offered.
	Listing
	// Filtering: the buffer is "/" plus at least one character.
	Filtering
)

func (s State) String() string {
	switch s {
	case Listing:
		return "listing"
	case Filtering:
		return "filtering"
	default:
		return "idle"
	}
}

// NoHighlight is the highlighted index when no candidate is selected.
const NoHighlight = -1

// Machine tracks the input buffer, the filtered candidates and the
// highlighted suggestion. Candidates match by case-insensitive prefix of
// the full command name, slash included.
type Machine struct {
	commands   []domain.Command
	buffer     string
	state      State
	candidates []domain.Command
	highlight  int
	open       bool
	scroll     bool
}

// New returns an idle machine over cmds, which should already be sorted.
func New(cmds []domain.Command) *Machine {
	m := &Machine{highlight: NoHighlight}
	m.SetCommands(cmds)
	return m
}

// SetCommands replaces the command set and refilters the current buffer.
func (m *Machine) SetCommands(cmds []domain.Command) {
	m.commands = append([]domain.Command(nil), cmds...)
	m.recompute()
}

func (m *Machine) State() State                 { return m.state }
func (m *Machine) Buffer() string               { return m.buffer }
func (m *Machine) Highlighted() int             { return m.highlight }
func (m *Machine) PanelVisible() bool           { return m.open }
func (m *Machine) Candidates() []domain.Command { return m.candidates }

// ConsumeScroll reports, once, that the view should scroll the suggestion
// panel into view after entering Listing.
func (m *Machine) ConsumeScroll() bool {
	s := m.scroll
	m.scroll = false
	return s
}

// SetBuffer applies a printable-character or backspace edit.
func (m *Machine) SetBuffer(text string) {
	m.buffer = text
	m.recompute()
}

// Down moves the highlight forward, wrapping to the first candidate.
func (m *Machine) Down() {
	if !m.navigable() {
		return
	}
	m.highlight = (m.highlight + 1) % len(m.candidates)
}

// Up moves the highlight backward, wrapping to the last candidate.
func (m *Machine) Up() {
	if !m.navigable() {
		return
	}
	if m.highlight <= 0 {
		m.highlight = len(m.candidates) - 1
		return
	}
	m.highlight--
}

// Tab completes the highlighted candidate into the buffer and closes the
// panel. Without a highlight it does nothing.
func (m *Machine) Tab() {
	if !m.navigable() || m.highlight == NoHighlight {
		return
	}
	m.buffer = m.candidates[m.highlight].Name
	m.recompute()
	m.open = false
}

// Escape closes the panel and clears the highlight, keeping the buffer.
func (m *Machine) Escape() {
	m.open = false
	m.highlight = NoHighlight
}

// Enter returns the command to execute: the highlighted candidate if any,
// otherwise the trimmed raw buffer. It reports false when there is nothing
// to execute, in which case the state is untouched.
func (m *Machine) Enter() (string, bool) {
	if m.open && m.highlight >= 0 && m.highlight < len(m.candidates) {
		return m.commit(m.candidates[m.highlight].Name)
	}
	raw := strings.TrimSpace(m.buffer)
	if raw == "" {
		return "", false
	}
	return m.commit(raw)
}

// Click executes the candidate at index, as if highlighted then entered.
func (m *Machine) Click(index int) (string, bool) {
	if !m.open || index < 0 || index >= len(m.candidates) {
		return "", false
	}
	m.highlight = index
	return m.Enter()
}

func (m *Machine) commit(command string) (string, bool) {
	m.buffer = ""
	m.recompute()
	return command, true
}

func (m *Machine) navigable() bool {
	return m.open && len(m.candidates) > 0
}

func (m *Machine) recompute() {
	prev := m.state
	m.highlight = NoHighlight
	switch {
	case m.buffer == "/":
		m.state = Listing
		m.candidates = m.commands
	case strings.HasPrefix(m.buffer, "/"):
		m.state = Filtering
		m.candidates = filterPrefix(m.commands, m.buffer)
	default:
		m.state = Idle
		m.candidates = nil
	}
	m.open = m.state != Idle && len(m.candidates) > 0
	if m.state == Listing && prev != Listing {
		m.scroll = true
	}
}

func filterPrefix(cmds []domain.Command, prefix string) []domain.Command {
	prefix = strings.ToLower(prefix)
	out := make([]domain.Command, 0, len(cmds))
	for _, cmd := range cmds {
		if strings.HasPrefix(strings.ToLower(cmd.Name), prefix) {
			out = append(out, cmd)
		}
	}
	return out
}
