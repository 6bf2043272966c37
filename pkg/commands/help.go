package commands

import (
	"fmt"
	"strings"

	"termfolio/pkg/domain"
)

const helpNameWidth = 25

const helpHeader = "🔧 AVAILABLE COMMANDS\n\n"

const helpFooter = `

💡 Tips:
• Type '/' to see all commands
• Use arrow keys to navigate suggestions
• Press Tab to autocomplete
• Press Enter to execute

Happy exploring! 🚀`

// RenderListing renders one "name - description" line per command, in the
// order given.
func RenderListing(cmds []domain.Command) string {
	lines := make([]string, 0, len(cmds))
	for _, cmd := range cmds {
		lines = append(lines, fmt.Sprintf("%-*s - %s", helpNameWidth, cmd.Name, cmd.Description))
	}
	return strings.Join(lines, "\n")
}

// RenderHelp wraps the listing with the help header and usage tips.
func RenderHelp(cmds []domain.Command) string {
	return helpHeader + RenderListing(cmds) + helpFooter
}
