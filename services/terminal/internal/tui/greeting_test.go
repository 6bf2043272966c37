package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGreetingByHour(t *testing.T) {
	cases := []struct {
		hour  int
		text  string
		emoji string
	}{
		{0, "Good evening", "🌙"},
		{5, "Good evening", "🌙"},
		{6, "Good morning", "☀️"},
		{11, "Good morning", "☀️"},
		{12, "Good afternoon", "☕"},
		{17, "Good afternoon", "☕"},
		{18, "Good evening", "🌙"},
		{23, "Good evening", "🌙"},
	}
	for _, tc := range cases {
		text, emoji := Greeting(time.Date(2025, 3, 1, tc.hour, 30, 0, 0, time.Local))
		require.Equal(t, tc.text, text, "hour %d", tc.hour)
		require.Equal(t, tc.emoji, emoji, "hour %d", tc.hour)
	}
}

func TestWelcomeLines(t *testing.T) {
	morning := time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)
	require.Equal(t, "✳️ Welcome!", WelcomeLines("", morning)[0])
	require.Equal(t, "✳️ Welcome!", WelcomeLines("   ", morning)[0])

	lines := WelcomeLines("Ada", morning)
	require.Equal(t, "✳️ Good morning, Ada ☀️", lines[0])
	require.Contains(t, strings.Join(lines, "\n"), "/help for help")
	require.Contains(t, strings.Join(lines, "\n"), "domain: zhenkai-dev.com")
}

func TestLastLoginLine(t *testing.T) {
	require.Empty(t, LastLoginLine(time.Time{}))
	at := time.Date(2025, 1, 2, 15, 4, 5, 0, time.Local)
	require.Equal(t, "Last login: Thu Jan 02 15:04:05", LastLoginLine(at))
}
