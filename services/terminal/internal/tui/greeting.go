package tui

import (
	"strings"
	"time"
)

// LastLoginLayout formats the "Last login" line.
const LastLoginLayout = "Mon Jan 02 15:04:05"

const domainLine = "domain: zhenkai-dev.com"

// Greeting returns the time-of-day salutation and its emoji for t's hour.
func Greeting(t time.Time) (string, string) {
	switch h := t.Hour(); {
	case h >= 6 && h < 12:
		return "Good morning", "☀️"
	case h >= 12 && h < 18:
		return "Good afternoon", "☕"
	default:
		return "Good evening", "🌙"
	}
}

// WelcomeLines is the content of the welcome box. Visitors without a
// nickname get the plain welcome.
func WelcomeLines(nickname string, now time.Time) []string {
	title := "✳️ Welcome!"
	if nick := strings.TrimSpace(nickname); nick != "" {
		greeting, emoji := Greeting(now)
		title = "✳️ " + greeting + ", " + nick + " " + emoji
	}
	return []string{title, "", "/help for help", "", domainLine}
}

// LastLoginLine renders the previous visit, or "" for a first visit.
func LastLoginLine(last time.Time) string {
	if last.IsZero() {
		return ""
	}
	return "Last login: " + last.Local().Format(LastLoginLayout)
}
