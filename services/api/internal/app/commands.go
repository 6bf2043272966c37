package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"termfolio/internal/util"
	"termfolio/pkg/commands"
	"termfolio/pkg/domain"
	"termfolio/pkg/storage"
)

const (
	maxNicknameLen = 100
	maxCommandLen  = 100
)

var commandNamePattern = regexp.MustCompile(`^/[a-z][a-z0-9-]*$`)

// ExecuteRequest is one command submitted by a visitor.
type ExecuteRequest struct {
	Command   string
	SessionID string
	Nickname  string
	Timezone  string
	Country   string
	IPAddress string
	UserAgent string
}

type ExecuteUser struct {
	Nickname      string `json:"nickname"`
	TotalCommands int64  `json:"totalCommands"`
}

type ExecuteResult struct {
	Command      string                 `json:"command"`
	Response     string                 `json:"response"`
	ResponseTime string                 `json:"responseTime"`
	DownloadInfo *commands.DownloadInfo `json:"downloadInfo"`
	User         ExecuteUser            `json:"user"`
}

// ListCommands returns the active registry sorted by name.
func (a *App) ListCommands(ctx context.Context) ([]domain.Command, error) {
	cmds, err := a.store.ListActiveCommands(ctx)
	if err != nil {
		return nil, fmt.Errorf("list commands: %w", err)
	}
	return cmds, nil
}

// Execute resolves a command for a visitor and records the attempt. Unknown
// commands are recorded as failed executions and reported as
// *CommandNotFoundError.
func (a *App) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	v := validation{}
	if strings.TrimSpace(req.Command) == "" {
		v.add("command", "Command is required")
	} else if utf8.RuneCountInString(req.Command) > maxCommandLen {
		v.add("command", "Command must be at most 100 characters")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		v.add("sessionId", "Session ID is required")
	}
	if utf8.RuneCountInString(req.Nickname) > maxNicknameLen {
		v.add("nickname", "Nickname must be at most 100 characters")
	}
	if err := v.err(); err != nil {
		return ExecuteResult{}, err
	}

	start := time.Now()
	name := commands.Normalize(req.Command)
	visit := domain.Visit{
		SessionID: strings.TrimSpace(req.SessionID),
		Nickname:  strings.TrimSpace(req.Nickname),
		Timezone:  strings.TrimSpace(req.Timezone),
		Country:   strings.TrimSpace(req.Country),
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		At:        a.now().UTC(),
	}
	user, known := a.recorder.Touch(ctx, visit)

	outcome, err := a.resolver.Resolve(ctx, name)
	if err != nil {
		a.metrics.RecordCommand("error")
		if errors.Is(err, commands.ErrResponseMissing) {
			return ExecuteResult{}, err
		}
		return ExecuteResult{}, fmt.Errorf("resolve %s: %w", name, err)
	}

	exec := domain.CommandExecution{
		ID:             util.NewID(),
		CommandName:    name,
		ExecutionTime:  visit.At,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Success:        true,
		IPAddress:      req.IPAddress,
		UserAgent:      req.UserAgent,
	}
	var pending *domain.Visit
	if known {
		exec.UserID = &user.ID
	} else {
		pending = &visit
	}

	if nf, ok := outcome.(commands.NotFound); ok {
		exec.Success = false
		exec.ErrorMessage = "Command not found"
		a.recorder.Execution(ctx, exec, pending)
		a.metrics.RecordCommand("not_found")
		return ExecuteResult{}, &CommandNotFoundError{Outcome: nf}
	}

	total, counted := a.recorder.Execution(ctx, exec, pending)
	if !counted {
		total = user.TotalCommands + 1
	}
	a.metrics.RecordCommand("success")

	res := ExecuteResult{
		Command:      name,
		Response:     outcome.Text(),
		ResponseTime: fmt.Sprintf("%dms", exec.ResponseTimeMs),
		User: ExecuteUser{
			Nickname:      firstNonEmpty(user.Nickname, visit.Nickname),
			TotalCommands: total,
		},
	}
	if dl, ok := outcome.(commands.FileDownloadTriggered); ok {
		info := a.withAssetMeta(dl.Info)
		res.DownloadInfo = &info
	}
	return res, nil
}

// CommandResponse is the current response row of one command.
type CommandResponse struct {
	Command     string `json:"command"`
	Response    string `json:"response"`
	ContentType string `json:"contentType"`
	Version     int    `json:"version"`
}

// GetResponse returns the highest active response version for name.
func (a *App) GetResponse(ctx context.Context, name string) (CommandResponse, error) {
	name = commands.Normalize(name)
	if !commandNamePattern.MatchString(name) {
		return CommandResponse{}, &ValidationError{Fields: map[string]string{"commandName": "Invalid command name"}}
	}
	resp, ok, err := a.store.LatestResponse(ctx, name)
	if err != nil {
		return CommandResponse{}, fmt.Errorf("lookup response %s: %w", name, err)
	}
	if !ok {
		return CommandResponse{}, fmt.Errorf("%w: %s", commands.ErrResponseMissing, name)
	}
	return CommandResponse{
		Command:     name,
		Response:    resp.Content,
		ContentType: resp.ContentType,
		Version:     resp.Version,
	}, nil
}

// DownloadRequest asks for one asset on behalf of a visitor session.
type DownloadRequest struct {
	FileType  string
	SessionID string
	IPAddress string
	UserAgent string
}

// DownloadFile describes a streamed asset.
type DownloadFile struct {
	FileName    string
	ContentType string
	Size        int64
}

// Download opens the asset for fileType. The caller must close the reader.
// Every attempt by a known session is logged, failed ones included.
func (a *App) Download(ctx context.Context, req DownloadRequest) (io.ReadCloser, DownloadFile, error) {
	v := validation{}
	if req.FileType != "pdf" && req.FileType != "md" {
		v.add("fileType", "File type must be either pdf or md")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		v.add("sessionId", "Session ID is required")
	}
	if err := v.err(); err != nil {
		return nil, DownloadFile{}, err
	}

	user, ok, err := a.store.GetUserBySession(ctx, req.SessionID)
	if err != nil {
		return nil, DownloadFile{}, fmt.Errorf("lookup session: %w", err)
	}
	if !ok {
		return nil, DownloadFile{}, ErrSessionNotFound
	}
	spec, ok := a.resolver.DownloadByType(req.FileType)
	if !ok || a.objects == nil {
		return nil, DownloadFile{}, ErrFileNotFound
	}

	record := domain.FileDownload{
		UserID:       user.ID,
		FileName:     spec.FileName,
		FileType:     spec.FileType,
		DownloadTime: a.now().UTC(),
		IPAddress:    req.IPAddress,
		UserAgent:    req.UserAgent,
	}
	rc, info, err := a.objects.Get(ctx, spec.FileName)
	if err != nil {
		a.recorder.Download(ctx, record)
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, DownloadFile{}, ErrFileNotFound
		}
		return nil, DownloadFile{}, fmt.Errorf("open asset %s: %w", spec.FileName, err)
	}
	record.Success = true
	a.recorder.Download(ctx, record)

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeFor(spec.FileName)
	}
	return rc, DownloadFile{FileName: spec.FileName, ContentType: contentType, Size: info.Size}, nil
}

// UpsertCommandRequest is an admin write to the registry.
type UpsertCommandRequest struct {
	Description  string
	Category     string
	ResponseKind string
	Active       *bool
}

// UpsertCommand creates or replaces a registry entry keyed by name.
func (a *App) UpsertCommand(ctx context.Context, name string, req UpsertCommandRequest) (domain.Command, error) {
	name = commands.Normalize(name)
	v := validation{}
	if !commandNamePattern.MatchString(name) {
		v.add("name", "Command name must match /[a-z][a-z0-9-]*")
	}
	if strings.TrimSpace(req.Description) == "" {
		v.add("description", "Description is required")
	}
	if !domain.Category(req.Category).Valid() {
		v.add("category", "Unknown category")
	}
	if !domain.ResponseKind(req.ResponseKind).Valid() {
		v.add("responseType", "Unknown response type")
	}
	if err := v.err(); err != nil {
		return domain.Command{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	cmd := domain.Command{
		Name:         name,
		Description:  strings.TrimSpace(req.Description),
		Category:     domain.Category(req.Category),
		ResponseKind: domain.ResponseKind(req.ResponseKind),
		Active:       active,
		UpdatedAt:    a.now().UTC(),
	}
	if err := a.store.UpsertCommand(ctx, cmd); err != nil {
		return domain.Command{}, fmt.Errorf("upsert command %s: %w", name, err)
	}
	return cmd, nil
}

// AddResponseRequest is a new response version for a command.
type AddResponseRequest struct {
	Content     string
	ContentType string
	Active      *bool
}

// AddResponse stores content as the next version of name's response.
func (a *App) AddResponse(ctx context.Context, name string, req AddResponseRequest) (domain.CommandResponse, error) {
	name = commands.Normalize(name)
	v := validation{}
	if !commandNamePattern.MatchString(name) {
		v.add("name", "Command name must match /[a-z][a-z0-9-]*")
	}
	if strings.TrimSpace(req.Content) == "" {
		v.add("content", "Content is required")
	}
	if err := v.err(); err != nil {
		return domain.CommandResponse{}, err
	}
	if _, ok, err := a.store.GetActiveCommand(ctx, name); err != nil {
		return domain.CommandResponse{}, fmt.Errorf("lookup command %s: %w", name, err)
	} else if !ok {
		return domain.CommandResponse{}, &CommandNotFoundError{Outcome: commands.NotFound{Command: name}}
	}
	version, err := a.store.NextResponseVersion(ctx, name)
	if err != nil {
		return domain.CommandResponse{}, fmt.Errorf("next version %s: %w", name, err)
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "text/plain"
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	resp := domain.CommandResponse{
		ID:          util.NewID(),
		CommandName: name,
		Version:     version,
		Content:     req.Content,
		ContentType: contentType,
		Active:      active,
		CreatedAt:   a.now().UTC(),
	}
	if err := a.store.UpsertCommandResponse(ctx, resp); err != nil {
		return domain.CommandResponse{}, fmt.Errorf("store response %s v%d: %w", name, version, err)
	}
	return resp, nil
}

// UploadAsset stores the asset served for fileType and refreshes its
// metadata.
func (a *App) UploadAsset(ctx context.Context, fileType string, r io.Reader, size int64) (storage.AssetMeta, error) {
	if a.objects == nil {
		return storage.AssetMeta{}, ErrStorageDisabled
	}
	spec, ok := a.resolver.DownloadByType(fileType)
	if !ok {
		return storage.AssetMeta{}, &ValidationError{Fields: map[string]string{"fileType": "File type must be either pdf or md"}}
	}
	if err := a.objects.Put(ctx, spec.FileName, r, size, storage.ContentTypeFor(spec.FileName)); err != nil {
		return storage.AssetMeta{}, fmt.Errorf("store asset %s: %w", spec.FileName, err)
	}
	meta, err := storage.Inspect(ctx, a.objects, spec.FileName)
	if err != nil {
		return storage.AssetMeta{}, fmt.Errorf("inspect asset %s: %w", spec.FileName, err)
	}
	a.setAssetMeta(spec.FileType, meta)
	return meta, nil
}

// InspectAssets reads size and page count of every served asset. Missing
// or unreadable assets are skipped.
func (a *App) InspectAssets(ctx context.Context) error {
	if a.objects == nil {
		return nil
	}
	for _, spec := range a.resolver.Downloads() {
		meta, err := storage.Inspect(ctx, a.objects, spec.FileName)
		if errors.Is(err, storage.ErrObjectNotFound) {
			util.LoggerFromContext(ctx).Warn("asset_missing", "file", spec.FileName)
			continue
		}
		if err != nil {
			// Size is still known when only the PDF parse failed.
			util.LoggerFromContext(ctx).Warn("asset_inspect_failed", "file", spec.FileName, "err", err)
			if meta.Size == 0 {
				continue
			}
		}
		a.setAssetMeta(spec.FileType, meta)
	}
	return nil
}

func (a *App) setAssetMeta(fileType string, meta storage.AssetMeta) {
	a.assetsMu.Lock()
	defer a.assetsMu.Unlock()
	a.assets[fileType] = meta
}

func (a *App) withAssetMeta(info commands.DownloadInfo) commands.DownloadInfo {
	a.assetsMu.RLock()
	defer a.assetsMu.RUnlock()
	if meta, ok := a.assets[info.FileType]; ok {
		info.SizeBytes = meta.Size
		info.Pages = meta.Pages
	}
	return info
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
