package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"termfolio/internal/util"
	"termfolio/pkg/localstate"
	"termfolio/services/terminal/internal/client"
	"termfolio/services/terminal/internal/tui"
)

const (
	sessionKey   = "session"
	lastLoginKey = "last_login"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		apiURL      string
		offline     bool
		stateDir    string
		downloadDir string
		logLevel    string
	)
	cmd := &cobra.Command{
		Use:           "terminal",
		Short:         "Browse the portfolio from your terminal",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(apiURL, offline, stateDir, downloadDir, logLevel)
		},
	}
	apiDefault := os.Getenv("TERMFOLIO_API_URL")
	if apiDefault == "" {
		apiDefault = "http://localhost:8080"
	}
	cmd.Flags().StringVar(&apiURL, "api", apiDefault, "portfolio API base URL (env TERMFOLIO_API_URL)")
	cmd.Flags().BoolVar(&offline, "offline", false, "answer from the built-in command catalog without the API")
	cmd.Flags().StringVar(&stateDir, "state-dir", localstate.DefaultDir(), "where the session, nickname and log are kept")
	cmd.Flags().StringVar(&downloadDir, "download-dir", ".", "where downloaded resumes are saved")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level for terminal.log")
	return cmd
}

func run(apiURL string, offline bool, stateDir, downloadDir, logLevel string) error {
	session, err := localstate.NewFileStore(stateDir, 0)
	if err != nil {
		return err
	}
	prefs, err := localstate.NewFileStore(filepath.Join(stateDir, "prefs"), localstate.NicknameTTL)
	if err != nil {
		return err
	}

	logFile, err := os.OpenFile(filepath.Join(stateDir, "terminal.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()
	logger := util.InitLoggerTo(logFile, "terminal", logLevel)

	sessionID, ok := session.Load(sessionKey)
	if !ok {
		sessionID = uuid.NewString()
		if err := session.Save(sessionKey, sessionID); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
	}

	var lastLogin time.Time
	if raw, ok := session.Load(lastLoginKey); ok {
		lastLogin, _ = time.Parse(time.RFC3339, raw)
	}
	if err := session.Save(lastLoginKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		logger.Warn("save last login failed", "err", err)
	}

	var backend tui.Backend
	if offline {
		backend = tui.NewOffline()
	} else {
		dir, err := filepath.Abs(downloadDir)
		if err != nil {
			return err
		}
		backend = tui.NewRemote(client.NewClient(apiURL), sessionID, localTimezone(), dir)
	}
	logger.Info("terminal started", "offline", offline, "api", apiURL, "session", sessionID)

	model := tui.New(tui.Options{Backend: backend, Prefs: prefs, LastLogin: lastLogin})
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run(); err != nil {
		logger.Error("terminal exited", "err", err)
		return err
	}
	slog.Info("terminal stopped")
	return nil
}

// localTimezone is the IANA zone name if the process knows it.
func localTimezone() string {
	if tz := os.Getenv("TZ"); tz != "" {
		return tz
	}
	if name := time.Local.String(); name != "Local" {
		return name
	}
	return ""
}
