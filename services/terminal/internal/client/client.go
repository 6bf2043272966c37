// Package client calls the portfolio API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"termfolio/pkg/commands"
	"termfolio/pkg/domain"
)

// Client calls the portfolio API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError represents an error envelope returned by the API.
type APIError struct {
	Status    int
	Message   string
	Code      string
	RequestID string
}

func (e *APIError) Error() string {
	return e.Message
}

// NewClient constructs an API client rooted at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// ExecuteRequest is the body of POST /api/commands/execute.
type ExecuteRequest struct {
	Command   string `json:"command"`
	SessionID string `json:"sessionId"`
	Nickname  string `json:"nickname,omitempty"`
	Timezone  string `json:"timezone,omitempty"`
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

type Profile struct {
	SessionID     string    `json:"sessionId"`
	Nickname      string    `json:"nickname"`
	Timezone      string    `json:"timezone"`
	Country       string    `json:"country"`
	TotalCommands int64     `json:"totalCommands"`
	FirstVisitAt  time.Time `json:"firstVisitAt"`
	LastVisitAt   time.Time `json:"lastVisitAt"`
}

func (c *Client) ListCommands(ctx context.Context) ([]domain.Command, error) {
	var resp struct {
		Commands []domain.Command `json:"commands"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/commands", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

func (c *Client) Execute(ctx context.Context, req ExecuteRequest) (ExecuteResult, error) {
	var resp ExecuteResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/commands/execute", req, &resp); err != nil {
		return ExecuteResult{}, err
	}
	return resp, nil
}

func (c *Client) Profile(ctx context.Context, sessionID string) (Profile, error) {
	var resp struct {
		User Profile `json:"user"`
	}
	path := fmt.Sprintf("/api/users/%s/profile", url.PathEscape(sessionID))
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return Profile{}, err
	}
	return resp.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, sessionID, nickname, timezone string) (Profile, error) {
	payload := map[string]string{}
	if nickname != "" {
		payload["nickname"] = nickname
	}
	if timezone != "" {
		payload["timezone"] = timezone
	}
	var resp struct {
		User Profile `json:"user"`
	}
	path := fmt.Sprintf("/api/users/%s/profile", url.PathEscape(sessionID))
	if err := c.doJSON(ctx, http.MethodPut, path, payload, &resp); err != nil {
		return Profile{}, err
	}
	return resp.User, nil
}

// Download streams the file behind info into w and returns the file name the
// server suggested, falling back to info.FileName.
func (c *Client) Download(ctx context.Context, info commands.DownloadInfo, sessionID string, w io.Writer) (string, int64, error) {
	path := info.DownloadURL
	if path == "" {
		path = commands.DownloadURL(info.FileType)
	}
	endpoint := c.baseURL + path + "?sessionId=" + url.QueryEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("X-Session-ID", sessionID)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", 0, decodeError(resp)
	}
	name := info.FileName
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = filepath.Base(params["filename"])
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return "", n, fmt.Errorf("read download: %w", err)
	}
	return name, n, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	var env struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return err
	}
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func decodeError(resp *http.Response) error {
	var errResp struct {
		Message   string `json:"message"`
		Code      string `json:"code"`
		RequestID string `json:"requestId"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&errResp)
	msg := errResp.Message
	if msg == "" {
		msg = resp.Status
	}
	return &APIError{
		Status:    resp.StatusCode,
		Message:   msg,
		Code:      strings.TrimSpace(errResp.Code),
		RequestID: errResp.RequestID,
	}
}
