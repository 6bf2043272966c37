package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"termfolio/pkg/domain"
)

func testCommands() []domain.Command {
	return []domain.Command{
		{Name: "/about", Description: "about me"},
		{Name: "/clear", Description: "clear"},
		{Name: "/contact", Description: "contact"},
		{Name: "/help", Description: "help"},
	}
}

func names(cmds []domain.Command) []string {
	out := make([]string, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.Name)
	}
	return out
}

func TestSlashAlwaysLists(t *testing.T) {
	for _, prior := range []string{"", "hello", "/co", "/nomatch", "/"} {
		m := New(testCommands())
		m.SetBuffer(prior)
		m.Down()
		m.SetBuffer("/")

		assert.Equal(t, Listing, m.State(), "prior %q", prior)
		assert.Equal(t, names(testCommands()), names(m.Candidates()))
		assert.Equal(t, NoHighlight, m.Highlighted())
		assert.True(t, m.PanelVisible())
	}
}

func TestClearingBufferGoesIdle(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/c")
	require.Equal(t, Filtering, m.State())
	m.SetBuffer("")
	assert.Equal(t, Idle, m.State())
	assert.Empty(t, m.Candidates())
	assert.False(t, m.PanelVisible())
}

func TestNonSlashIsIdle(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("about")
	assert.Equal(t, Idle, m.State())
	assert.False(t, m.PanelVisible())
}

func TestPrefixFilter(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/ab")
	assert.Equal(t, Filtering, m.State())
	assert.Equal(t, []string{"/about"}, names(m.Candidates()))
	assert.Equal(t, NoHighlight, m.Highlighted())

	m.SetBuffer("/C")
	assert.Equal(t, []string{"/clear", "/contact"}, names(m.Candidates()))

	// prefix, not substring
	m.SetBuffer("/out")
	assert.Empty(t, m.Candidates())
	assert.False(t, m.PanelVisible())
}

func TestArrowWrap(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/")

	m.Up()
	assert.Equal(t, 3, m.Highlighted(), "up from none goes to last")
	m.Down()
	assert.Equal(t, 0, m.Highlighted(), "down from last wraps to first")
	m.Up()
	assert.Equal(t, 3, m.Highlighted(), "up from first wraps to last")
	m.Down()
	m.Down()
	assert.Equal(t, 1, m.Highlighted())
}

func TestArrowNoopWithoutCandidates(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/zzz")
	m.Down()
	assert.Equal(t, NoHighlight, m.Highlighted())
	m.Up()
	assert.Equal(t, NoHighlight, m.Highlighted())

	empty := New(nil)
	empty.SetBuffer("/")
	empty.Down()
	assert.Equal(t, NoHighlight, empty.Highlighted())
}

func TestTypingResetsHighlight(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/")
	m.Down()
	require.Equal(t, 0, m.Highlighted())
	m.SetBuffer("/c")
	assert.Equal(t, NoHighlight, m.Highlighted())
}

func TestTabCompletesHighlighted(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/c")
	m.Down()
	m.Down()
	m.Tab()

	assert.Equal(t, "/contact", m.Buffer())
	assert.False(t, m.PanelVisible())
	assert.Equal(t, NoHighlight, m.Highlighted())
}

func TestTabWithoutHighlightIsNoop(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/c")
	m.Tab()
	assert.Equal(t, "/c", m.Buffer())
	assert.True(t, m.PanelVisible())
}

func TestEscapeKeepsBuffer(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/a")
	m.Down()
	m.Escape()
	assert.Equal(t, "/a", m.Buffer())
	assert.False(t, m.PanelVisible())
	assert.Equal(t, NoHighlight, m.Highlighted())

	// arrows do nothing while the panel is closed
	m.Down()
	assert.Equal(t, NoHighlight, m.Highlighted())
}

func TestEnterHighlighted(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/")
	m.Down()
	m.Down()

	cmd, ok := m.Enter()
	require.True(t, ok)
	assert.Equal(t, "/clear", cmd)
	assert.Equal(t, "", m.Buffer())
	assert.Equal(t, NoHighlight, m.Highlighted())
	assert.Equal(t, Idle, m.State())
}

func TestEnterRawBufferEvenIfUnknown(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/unknowncmd ")

	cmd, ok := m.Enter()
	require.True(t, ok)
	assert.Equal(t, "/unknowncmd", cmd)
	assert.Equal(t, "", m.Buffer())

	m.SetBuffer("hello there")
	cmd, ok = m.Enter()
	require.True(t, ok)
	assert.Equal(t, "hello there", cmd)
}

func TestEnterEmptyIsNoop(t *testing.T) {
	m := New(testCommands())
	before := *m
	cmd, ok := m.Enter()
	assert.False(t, ok)
	assert.Equal(t, "", cmd)
	assert.Equal(t, before, *m)

	m.SetBuffer("   ")
	_, ok = m.Enter()
	assert.False(t, ok)
	assert.Equal(t, "   ", m.Buffer())
}

func TestClick(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/c")

	cmd, ok := m.Click(1)
	require.True(t, ok)
	assert.Equal(t, "/contact", cmd)
	assert.Equal(t, Idle, m.State())

	_, ok = m.Click(0)
	assert.False(t, ok, "nothing is listed after execution")
}

func TestScrollRequestedOnceOnListing(t *testing.T) {
	m := New(testCommands())
	m.SetBuffer("/")
	assert.True(t, m.ConsumeScroll())
	assert.False(t, m.ConsumeScroll())

	m.SetBuffer("/a")
	m.SetBuffer("/")
	assert.True(t, m.ConsumeScroll())
}

func TestSetCommandsRefilters(t *testing.T) {
	m := New(nil)
	m.SetBuffer("/h")
	assert.Empty(t, m.Candidates())
	m.SetCommands(testCommands())
	assert.Equal(t, []string{"/help"}, names(m.Candidates()))
	assert.True(t, m.PanelVisible())
}
