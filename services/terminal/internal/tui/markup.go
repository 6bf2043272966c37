package tui

import (
	"bytes"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// skipped elements contribute no text at all.
var skipped = map[string]bool{"svg": true, "script": true, "style": true}

// StripMarkup drops tags from content and keeps the text between them.
// Inline icons such as <svg> are removed along with their children; a <br>
// becomes a newline. Plain text passes through unchanged.
func StripMarkup(content string) string {
	if !strings.Contains(content, "<") {
		return content
	}
	z := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	depth := 0
	trimNext := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return b.String()
			}
			return content
		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if skipped[tag] {
				depth++
			} else if tag == "br" && depth == 0 {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skipped[string(name)] && depth > 0 {
				depth--
				trimNext = depth == 0
			}
		case html.SelfClosingTagToken:
			name, _ := z.TagName()
			if string(name) == "br" && depth == 0 {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if depth == 0 {
				text := z.Text()
				if trimNext {
					text = bytes.TrimLeft(text, " ")
					trimNext = false
				}
				b.Write(text)
			}
		}
	}
}
