package tui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"termfolio/pkg/commands"
	"termfolio/pkg/domain"
	"termfolio/services/terminal/internal/client"
)

// ErrOffline is returned for operations that need the API.
var ErrOffline = errors.New("downloads need the API; run without --offline")

// Reply is what the terminal shows for one executed command.
type Reply struct {
	Command  string
	Text     string
	Download *commands.DownloadInfo
	// Nickname is the name the backend knows the visitor by, if any.
	Nickname string
}

// Clear reports whether the reply asks the terminal to wipe its history.
func (r Reply) Clear() bool {
	return r.Text == commands.ClearSentinel || commands.Normalize(r.Command) == commands.ClearCommand
}

// Backend executes commands for the terminal.
type Backend interface {
	Commands(ctx context.Context) ([]domain.Command, error)
	Execute(ctx context.Context, command, nickname string) (Reply, error)
	SetNickname(ctx context.Context, nickname string) error
	// Download fetches info and returns where the file was written.
	Download(ctx context.Context, info commands.DownloadInfo) (string, error)
}

// Remote executes commands through the portfolio API.
type Remote struct {
	client    *client.Client
	sessionID string
	timezone  string
	dir       string
}

// NewRemote returns a backend bound to sessionID. Downloads are saved into dir.
func NewRemote(c *client.Client, sessionID, timezone, dir string) *Remote {
	return &Remote{client: c, sessionID: sessionID, timezone: timezone, dir: dir}
}

func (r *Remote) Commands(ctx context.Context) ([]domain.Command, error) {
	return r.client.ListCommands(ctx)
}

func (r *Remote) Execute(ctx context.Context, command, nickname string) (Reply, error) {
	res, err := r.client.Execute(ctx, client.ExecuteRequest{
		Command:   command,
		SessionID: r.sessionID,
		Nickname:  nickname,
		Timezone:  r.timezone,
	})
	if err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return Reply{Command: command, Text: apiErr.Message}, nil
		}
		return Reply{}, err
	}
	return Reply{
		Command:  res.Command,
		Text:     res.Response,
		Download: res.DownloadInfo,
		Nickname: res.User.Nickname,
	}, nil
}

// SetNickname stores the nickname on the visitor profile. A visitor the API
// has not seen yet is created by the next execute, which carries the name.
func (r *Remote) SetNickname(ctx context.Context, nickname string) error {
	_, err := r.client.UpdateProfile(ctx, r.sessionID, nickname, r.timezone)
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

func (r *Remote) Download(ctx context.Context, info commands.DownloadInfo) (string, error) {
	tmp, err := os.CreateTemp(r.dir, ".termfolio-download-*")
	if err != nil {
		return "", fmt.Errorf("create download file: %w", err)
	}
	name, _, err := r.client.Download(ctx, info, r.sessionID, tmp)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	dest := filepath.Join(r.dir, name)
	if err := os.Rename(tmp.Name(), dest); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("save download: %w", err)
	}
	return dest, nil
}

// Offline resolves commands against the built-in catalog.
type Offline struct {
	catalog  *commands.StaticCatalog
	resolver *commands.Resolver
}

func NewOffline() *Offline {
	catalog := commands.DefaultCatalog()
	return &Offline{catalog: catalog, resolver: commands.NewResolver(catalog, nil)}
}

func (o *Offline) Commands(ctx context.Context) ([]domain.Command, error) {
	return o.catalog.ListActiveCommands(ctx)
}

func (o *Offline) Execute(ctx context.Context, command, nickname string) (Reply, error) {
	outcome, err := o.resolver.Resolve(ctx, command)
	if err != nil {
		return Reply{}, err
	}
	reply := Reply{Command: commands.Normalize(command), Text: outcome.Text(), Nickname: nickname}
	if dl, ok := outcome.(commands.FileDownloadTriggered); ok {
		info := dl.Info
		reply.Download = &info
	}
	return reply, nil
}

func (o *Offline) SetNickname(context.Context, string) error { return nil }

func (o *Offline) Download(context.Context, commands.DownloadInfo) (string, error) {
	return "", ErrOffline
}
