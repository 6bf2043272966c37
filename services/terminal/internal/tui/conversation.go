package tui

import (
	"strings"
	"unicode/utf8"

	"termfolio/pkg/commands"
)

const maxNicknameLen = 100

const (
	askNicknameText = "Hello there! 👋\n\nBefore we continue, how should I address you?\nPlease type your preferred name/nickname:"
	nicknameHint    = "Nickname must be between 1 and 100 characters. Please try again:"
)

func nicknameAck(name string) string {
	return "Nice to meet you, " + name + "! 👋\n\nNow you can explore all the available commands. Type '/help' to get started!"
}

// Entry is one command and its output in the history.
type Entry struct {
	Command string
	Output  string
	Pending bool
	Failed  bool
}

// Step is what the terminal must do after a submission.
type Step int

const (
	// StepNone: nothing to run.
	StepNone Step = iota
	// StepExecute: send the command to the backend.
	StepExecute
	// StepAskNickname: the visitor was asked for a nickname.
	StepAskNickname
	// StepNicknameSet: the nickname was accepted and should be persisted.
	StepNicknameSet
)

// Conversation holds the terminal history and the nickname prompt.
type Conversation struct {
	Nickname string
	Waiting  bool
	Entries  []Entry
	executed int
}

// Submit records input and reports the next step. For StepExecute the
// returned index points at the pending entry to fill in.
func (c *Conversation) Submit(input string) (Step, int) {
	input = strings.TrimSpace(input)
	if c.Waiting {
		return c.acceptNickname(input)
	}
	if input == "" {
		return StepNone, -1
	}
	if c.executed == 0 && c.Nickname == "" && commands.Normalize(input) != commands.HelpCommand {
		c.Waiting = true
		c.Entries = append(c.Entries, Entry{Command: input, Output: askNicknameText})
		return StepAskNickname, len(c.Entries) - 1
	}
	c.executed++
	c.Entries = append(c.Entries, Entry{Command: input, Pending: true})
	return StepExecute, len(c.Entries) - 1
}

func (c *Conversation) acceptNickname(input string) (Step, int) {
	if input == "" || utf8.RuneCountInString(input) > maxNicknameLen {
		c.Entries = append(c.Entries, Entry{Command: input, Output: nicknameHint, Failed: true})
		return StepNone, len(c.Entries) - 1
	}
	c.Nickname = input
	c.Waiting = false
	c.executed++
	c.Entries = append(c.Entries, Entry{Command: "nickname: " + input, Output: nicknameAck(input)})
	return StepNicknameSet, len(c.Entries) - 1
}

// Resolve fills the pending entry at index.
func (c *Conversation) Resolve(index int, output string, failed bool) {
	if index < 0 || index >= len(c.Entries) {
		return
	}
	c.Entries[index].Output = output
	c.Entries[index].Pending = false
	c.Entries[index].Failed = failed
}

// Append adds text under the entry at index.
func (c *Conversation) Append(index int, text string) {
	if index < 0 || index >= len(c.Entries) {
		return
	}
	if c.Entries[index].Output == "" {
		c.Entries[index].Output = text
		return
	}
	c.Entries[index].Output += "\n\n" + text
}

// Clear wipes the history. The nickname survives.
func (c *Conversation) Clear() {
	c.Entries = nil
}
