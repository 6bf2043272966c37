package tui

import (
	"strings"

	"termfolio/pkg/input"
)

// maxVisible caps how many candidates the panel shows at once.
const maxVisible = 8

// visibleRange returns the window of n candidates to draw so that selected
// stays in view.
func visibleRange(n, selected, limit int) (int, int) {
	if n <= limit {
		return 0, n
	}
	start := 0
	if selected >= 0 {
		start = selected - limit/2
	}
	if start < 0 {
		start = 0
	}
	end := start + limit
	if end > n {
		end = n
		start = end - limit
	}
	return start, end
}

// renderPanel draws the suggestion panel, or "" when it is closed.
func renderPanel(m *input.Machine, width int) string {
	if !m.PanelVisible() {
		return ""
	}
	cands := m.Candidates()
	start, end := visibleRange(len(cands), m.Highlighted(), maxVisible)
	rows := make([]string, 0, end-start+1)
	for i := start; i < end; i++ {
		style := candidateStyle
		marker := "  "
		if i == m.Highlighted() {
			style = highlightedStyle
			marker = promptStyle.Render("› ")
		}
		rows = append(rows, marker+style.Render(cands[i].Name)+descriptionStyle.Render(cands[i].Description))
	}
	if hidden := len(cands) - (end - start); hidden > 0 {
		rows = append(rows, mutedStyle.Render("  ↑↓ more"))
	}
	style := panelStyle
	if width > 4 {
		style = style.MaxWidth(width)
	}
	return style.Render(strings.Join(rows, "\n"))
}

// candidateAt maps a panel row (0 is the first row inside the border) to a
// candidate index.
func candidateAt(m *input.Machine, row int) (int, bool) {
	if !m.PanelVisible() || row < 0 {
		return 0, false
	}
	cands := m.Candidates()
	start, end := visibleRange(len(cands), m.Highlighted(), maxVisible)
	if start+row >= end {
		return 0, false
	}
	return start + row, true
}
