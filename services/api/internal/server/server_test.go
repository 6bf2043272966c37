package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"termfolio/internal/ratelimit"
	"termfolio/internal/scheduler"
	"termfolio/pkg/auth"
	"termfolio/pkg/domain"
	"termfolio/pkg/queue"
	"termfolio/pkg/storage"
	"termfolio/pkg/store"
	"termfolio/services/api/internal/app"
)

const testAdminPassword = "Portfolio#Admin2025"

type envelope struct {
	Status    string            `json:"status"`
	Message   string            `json:"message"`
	Code      int               `json:"code"`
	RequestID string            `json:"requestId"`
	Errors    map[string]string `json:"errors"`
	Data      json.RawMessage   `json:"data"`
}

type testServer struct {
	url     string
	objects *storage.FileStore
}

type serverOptions struct {
	store       store.Store
	limiter     ratelimit.Limiter
	environment string
	scheduler   *scheduler.Scheduler
	deadLetters DeadLetterReader
	admin       bool
}

func newTestServer(t *testing.T, opts serverOptions) testServer {
	t.Helper()
	dataStore := opts.store
	if dataStore == nil {
		dataStore = store.NewMemoryStore()
	}
	objects, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	cfg := app.Config{
		Store:       dataStore,
		Objects:     objects,
		Environment: opts.environment,
	}
	if opts.admin {
		hash, err := auth.HashPassword(testAdminPassword)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		tokens, err := auth.NewAdminTokens(strings.Repeat("s", 32), time.Hour, auth.NewMemoryTokenRevoker())
		if err != nil {
			t.Fatalf("admin tokens: %v", err)
		}
		cfg.AdminPasswordHash = hash
		cfg.AdminTokens = tokens
	}
	core, err := app.New(cfg)
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	if _, _, err := core.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	limiter := opts.limiter
	if limiter == nil {
		limiter, err = ratelimit.NewMemoryFixedWindowLimiter(1000, time.Minute)
		if err != nil {
			t.Fatalf("limiter: %v", err)
		}
	}
	srv, err := New(Config{App: core, Limiter: limiter, Scheduler: opts.scheduler, DeadLetters: opts.deadLetters})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	hs := httptest.NewServer(srv.Router())
	t.Cleanup(hs.Close)
	return testServer{url: hs.URL, objects: objects}
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode %s %s: %v", method, url, err)
	}
	return resp, env
}

func TestExecuteProfileAndDelete(t *testing.T) {
	ts := newTestServer(t, serverOptions{})

	for _, want := range []int64{1, 2} {
		resp, env := doJSON(t, http.MethodPost, ts.url+"/api/commands/execute", "", map[string]string{
			"command":   "about",
			"sessionId": "sess-http",
			"nickname":  "ada",
		})
		if resp.StatusCode != http.StatusOK || env.Status != "success" {
			t.Fatalf("execute: status %d env %+v", resp.StatusCode, env)
		}
		var data struct {
			Command string `json:"command"`
			User    struct {
				TotalCommands int64 `json:"totalCommands"`
			} `json:"user"`
		}
		if err := json.Unmarshal(env.Data, &data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
		if data.Command != "/about" || data.User.TotalCommands != want {
			t.Fatalf("unexpected execute data: %+v", data)
		}
	}

	resp, env := doJSON(t, http.MethodGet, ts.url+"/api/users/sess-http/profile", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("profile: status %d", resp.StatusCode)
	}
	if !strings.Contains(string(env.Data), `"nickname":"ada"`) {
		t.Fatalf("profile missing nickname: %s", env.Data)
	}

	resp, env = doJSON(t, http.MethodPut, ts.url+"/api/users/sess-http/profile", "", map[string]string{"timezone": "Mars/Olympus"})
	if resp.StatusCode != http.StatusBadRequest || env.Errors["timezone"] == "" {
		t.Fatalf("expected timezone validation error, got %d %+v", resp.StatusCode, env)
	}

	resp, env = doJSON(t, http.MethodDelete, ts.url+"/api/users/sess-http", "", nil)
	if resp.StatusCode != http.StatusOK || env.Message != "All user data has been permanently deleted" {
		t.Fatalf("delete: status %d env %+v", resp.StatusCode, env)
	}

	resp, env = doJSON(t, http.MethodGet, ts.url+"/api/users/sess-http/profile", "", nil)
	if resp.StatusCode != http.StatusNotFound || env.Status != "fail" || env.Message != "User not found" {
		t.Fatalf("expected 404 after delete, got %d %+v", resp.StatusCode, env)
	}
}

func TestExecuteUnknownCommandIs404(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	resp, env := doJSON(t, http.MethodPost, ts.url+"/api/commands/execute", "", map[string]string{
		"command":   "/nope",
		"sessionId": "sess-x",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	want := "Command not found: /nope. Type '/help' to see all available commands."
	if env.Message != want || env.Code != http.StatusNotFound {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.RequestID == "" {
		t.Fatalf("expected request id in error envelope")
	}
}

func TestExecuteValidation(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	resp, env := doJSON(t, http.MethodPost, ts.url+"/api/commands/execute", "", map[string]string{"command": ""})
	if resp.StatusCode != http.StatusBadRequest || env.Status != "fail" {
		t.Fatalf("expected 400 fail, got %d %+v", resp.StatusCode, env)
	}
	if env.Errors["command"] == "" || env.Errors["sessionId"] == "" {
		t.Fatalf("expected field errors, got %+v", env.Errors)
	}
	if !strings.HasPrefix(env.Message, "Validation failed: ") {
		t.Fatalf("unexpected message %q", env.Message)
	}
}

func TestExecuteFallsBackToSessionHeader(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	req, _ := http.NewRequest(http.MethodPost, ts.url+"/api/commands/execute", strings.NewReader(`{"command":"/skill"}`))
	req.Header.Set("X-Session-ID", "sess-header")
	req.Header.Set("CF-IPCountry", "se")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	_, env := doJSON(t, http.MethodGet, ts.url+"/api/users/sess-header/profile", "", nil)
	if !strings.Contains(string(env.Data), `"country":"SE"`) {
		t.Fatalf("expected country from proxy header: %s", env.Data)
	}
}

func TestListCommandsAndResponse(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	resp, env := doJSON(t, http.MethodGet, ts.url+"/api/commands", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status %d", resp.StatusCode)
	}
	var data struct {
		Commands []domain.Command `json:"commands"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(data.Commands) == 0 {
		t.Fatalf("expected seeded commands")
	}
	for i := 1; i < len(data.Commands); i++ {
		if data.Commands[i-1].Name > data.Commands[i].Name {
			t.Fatalf("commands not sorted: %s before %s", data.Commands[i-1].Name, data.Commands[i].Name)
		}
	}

	resp, env = doJSON(t, http.MethodGet, ts.url+"/api/commands/contact/response", "", nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), `"command":"/contact"`) {
		t.Fatalf("response: status %d data %s", resp.StatusCode, env.Data)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.url+"/api/commands/BAD_NAME/response", "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed name, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.url+"/api/commands", "", nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestDownloadStreamsAsset(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	content := "# Resume\n"
	if err := ts.objects.Put(context.Background(), "wzhenkai_resume.md", strings.NewReader(content), int64(len(content)), "text/markdown"); err != nil {
		t.Fatalf("put asset: %v", err)
	}

	resp, env := doJSON(t, http.MethodGet, ts.url+"/api/commands/download/md?sessionId=unknown", "", nil)
	if resp.StatusCode != http.StatusNotFound || env.Message != "User session not found" {
		t.Fatalf("expected unknown session 404, got %d %+v", resp.StatusCode, env)
	}

	doJSON(t, http.MethodPost, ts.url+"/api/commands/execute", "", map[string]string{"command": "/help", "sessionId": "sess-dl"})

	dl, err := http.Get(ts.url + "/api/commands/download/md?sessionId=sess-dl")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer dl.Body.Close()
	if dl.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", dl.StatusCode)
	}
	if got := dl.Header.Get("Content-Disposition"); got != `attachment; filename="wzhenkai_resume.md"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	body, _ := io.ReadAll(dl.Body)
	if string(body) != content {
		t.Fatalf("unexpected body %q", body)
	}

	resp, env = doJSON(t, http.MethodGet, ts.url+"/api/commands/download/exe?sessionId=sess-dl", "", nil)
	if resp.StatusCode != http.StatusBadRequest || env.Errors["fileType"] == "" {
		t.Fatalf("expected fileType validation, got %d %+v", resp.StatusCode, env)
	}

	resp, env = doJSON(t, http.MethodGet, ts.url+"/api/commands/download/pdf?sessionId=sess-dl", "", nil)
	if resp.StatusCode != http.StatusNotFound || env.Message != "File not found" {
		t.Fatalf("expected missing pdf 404, got %d %+v", resp.StatusCode, env)
	}
}

func TestRateLimitWithRedisExemptsHealth(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := ratelimit.NewRedisFixedWindowLimiter(client, "termfolio:test:ratelimit", 2, time.Minute)
	if err != nil {
		t.Fatalf("limiter: %v", err)
	}
	ts := newTestServer(t, serverOptions{limiter: limiter})

	for i := 0; i < 2; i++ {
		resp, _ := doJSON(t, http.MethodGet, ts.url+"/api/commands", "", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, resp.StatusCode)
		}
	}
	resp, env := doJSON(t, http.MethodGet, ts.url+"/api/commands", "", nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}
	if env.Message != "Too many requests from this IP, please try again later." {
		t.Fatalf("unexpected message %q", env.Message)
	}

	health, err := http.Get(ts.url + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health should bypass the limiter, got %d", health.StatusCode)
	}
}

type brokenStore struct {
	store.Store
}

func (brokenStore) Ping(context.Context) error { return errors.New("connection refused") }

func (brokenStore) ListActiveCommands(context.Context) ([]domain.Command, error) {
	return nil, errors.New("pq: relation \"commands\" does not exist")
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	resp, err := http.Get(ts.url + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var body healthResponse
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || body.Status != "healthy" || body.Database.Status != "connected" {
		t.Fatalf("unexpected health: %d %+v", resp.StatusCode, body)
	}
	if body.Environment != "development" || body.Uptime.Human == "" {
		t.Fatalf("unexpected health metadata: %+v", body)
	}

	down := newTestServer(t, serverOptions{store: brokenStore{Store: store.NewMemoryStore()}})
	resp, err = http.Get(down.url + "/health")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	body = healthResponse{}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || body.Status != "unhealthy" || body.Error != "Database connection failed" {
		t.Fatalf("unexpected unhealthy response: %d %+v", resp.StatusCode, body)
	}
}

func TestProductionMasksInternalErrors(t *testing.T) {
	dev := newTestServer(t, serverOptions{store: brokenStore{Store: store.NewMemoryStore()}})
	resp, env := doJSON(t, http.MethodGet, dev.url+"/api/commands", "", nil)
	if resp.StatusCode != http.StatusInternalServerError || env.Status != "error" {
		t.Fatalf("expected 500 error, got %d %+v", resp.StatusCode, env)
	}
	if !strings.Contains(env.Message, "does not exist") {
		t.Fatalf("development should show the cause, got %q", env.Message)
	}

	prod := newTestServer(t, serverOptions{store: brokenStore{Store: store.NewMemoryStore()}, environment: "production"})
	_, env = doJSON(t, http.MethodGet, prod.url+"/api/commands", "", nil)
	if env.Message != "Something went wrong!" {
		t.Fatalf("production leaked %q", env.Message)
	}
}

func TestUnknownRouteIs404Envelope(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	resp, env := doJSON(t, http.MethodGet, ts.url+"/api/nowhere", "", nil)
	if resp.StatusCode != http.StatusNotFound || env.Message != "Route /api/nowhere not found" {
		t.Fatalf("unexpected: %d %+v", resp.StatusCode, env)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	doJSON(t, http.MethodPost, ts.url+"/api/commands/execute", "", map[string]string{"command": "/about", "sessionId": "a"})
	doJSON(t, http.MethodPost, ts.url+"/api/commands/execute", "", map[string]string{"command": "/nope", "sessionId": "a"})

	for _, path := range []string{
		"/api/analytics/dashboard",
		"/api/analytics/summary?period=hourly",
		"/api/analytics/commands?limit=5",
		"/api/analytics/users",
		"/api/analytics/engagement?days=7",
		"/api/analytics/daily",
	} {
		resp, env := doJSON(t, http.MethodGet, ts.url+path, "", nil)
		if resp.StatusCode != http.StatusOK || env.Status != "success" {
			t.Fatalf("%s: status %d env %+v", path, resp.StatusCode, env)
		}
	}

	for path, field := range map[string]string{
		"/api/analytics/summary?period=yearly":    "period",
		"/api/analytics/commands?limit=0":         "limit",
		"/api/analytics/users?startDate=tomorrow": "startDate",
		"/api/analytics/engagement?days=400":      "days",
	} {
		resp, env := doJSON(t, http.MethodGet, ts.url+path, "", nil)
		if resp.StatusCode != http.StatusBadRequest || env.Errors[field] == "" {
			t.Fatalf("%s: expected %s validation error, got %d %+v", path, field, resp.StatusCode, env)
		}
	}
}

func TestAdminFlow(t *testing.T) {
	ran := make(chan struct{}, 1)
	sched := scheduler.New()
	if err := sched.Register("noop", "@every 1h", func(context.Context) error {
		ran <- struct{}{}
		return nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	ts := newTestServer(t, serverOptions{admin: true, scheduler: sched})

	resp, _ := doJSON(t, http.MethodPut, ts.url+"/api/admin/commands/ping", "", map[string]string{})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.url+"/api/admin/login", "", map[string]string{"password": "wrong"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", resp.StatusCode)
	}

	resp, env := doJSON(t, http.MethodPost, ts.url+"/api/admin/login", "", map[string]string{"password": testAdminPassword})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d %+v", resp.StatusCode, env)
	}
	var session app.AdminSession
	if err := json.Unmarshal(env.Data, &session); err != nil || session.Token == "" {
		t.Fatalf("decode session: %v %s", err, env.Data)
	}

	resp, env = doJSON(t, http.MethodPut, ts.url+"/api/admin/commands/ping", session.Token, map[string]string{
		"description":  "Replies with pong",
		"category":     "system",
		"responseType": "STATIC",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert: status %d %+v", resp.StatusCode, env)
	}
	resp, env = doJSON(t, http.MethodPost, ts.url+"/api/admin/commands/ping/responses", session.Token, map[string]string{"content": "pong"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add response: status %d %+v", resp.StatusCode, env)
	}

	_, env = doJSON(t, http.MethodPost, ts.url+"/api/commands/execute", "", map[string]string{"command": "/ping", "sessionId": "s"})
	if !strings.Contains(string(env.Data), `"response":"pong"`) {
		t.Fatalf("expected new command to resolve, got %s", env.Data)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.url+"/api/admin/jobs/noop/run", session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("run job: status %d", resp.StatusCode)
	}
	select {
	case <-ran:
	default:
		t.Fatalf("job did not run")
	}
	resp, _ = doJSON(t, http.MethodPost, ts.url+"/api/admin/jobs/missing/run", session.Token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", resp.StatusCode)
	}
	resp, env = doJSON(t, http.MethodGet, ts.url+"/api/admin/jobs", session.Token, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(env.Data), `"name":"noop"`) {
		t.Fatalf("job status: %d %s", resp.StatusCode, env.Data)
	}

	resp, _ = doJSON(t, http.MethodPost, ts.url+"/api/admin/logout", session.Token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, ts.url+"/api/admin/jobs", session.Token, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected revoked token to be rejected, got %d", resp.StatusCode)
	}
}

func TestAdminDisabled(t *testing.T) {
	ts := newTestServer(t, serverOptions{})
	resp, _ := doJSON(t, http.MethodPost, ts.url+"/api/admin/login", "", map[string]string{"password": "x"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when admin is not configured, got %d", resp.StatusCode)
	}
}

type stubDeadLetters []queue.Job

func (s stubDeadLetters) DeadLetters(_ context.Context, n int64) ([]queue.Job, error) {
	if int64(len(s)) > n {
		return s[:n], nil
	}
	return s, nil
}

func adminToken(t *testing.T, ts testServer) string {
	t.Helper()
	resp, env := doJSON(t, http.MethodPost, ts.url+"/api/admin/login", "", map[string]string{"password": testAdminPassword})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d %+v", resp.StatusCode, env)
	}
	var session app.AdminSession
	if err := json.Unmarshal(env.Data, &session); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return session.Token
}

func TestAdminDeadLetters(t *testing.T) {
	dead := stubDeadLetters{
		{ID: "j1", Kind: "execution", Attempt: 5, LastError: "db down"},
		{ID: "j2", Kind: "download", Attempt: 5, LastError: "db down"},
	}
	ts := newTestServer(t, serverOptions{admin: true, deadLetters: dead})
	token := adminToken(t, ts)

	resp, env := doJSON(t, http.MethodGet, ts.url+"/api/admin/retries/dead?limit=1", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dead letters: status %d %+v", resp.StatusCode, env)
	}
	var out struct {
		Jobs  []queue.Job `json:"jobs"`
		Count int         `json:"count"`
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 1 || out.Jobs[0].ID != "j1" || out.Jobs[0].LastError != "db down" {
		t.Fatalf("unexpected dead letters: %+v", out)
	}

	resp, _ = doJSON(t, http.MethodGet, ts.url+"/api/admin/retries/dead?limit=0", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for limit=0, got %d", resp.StatusCode)
	}

	plain := newTestServer(t, serverOptions{admin: true})
	resp, _ = doJSON(t, http.MethodGet, plain.url+"/api/admin/retries/dead", adminToken(t, plain), nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a retry queue, got %d", resp.StatusCode)
	}
}
