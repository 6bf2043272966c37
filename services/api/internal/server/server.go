package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"termfolio/internal/metrics"
	"termfolio/internal/ratelimit"
	"termfolio/internal/scheduler"
	"termfolio/internal/util"
	"termfolio/pkg/queue"
	"termfolio/services/api/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiter        ratelimit.Limiter
	Metrics        *metrics.Metrics
	Scheduler      *scheduler.Scheduler
	// DeadLetters lists analytics writes the retry queue gave up on.
	DeadLetters    DeadLetterReader
	TrustedProxies *util.TrustedProxies
	AllowedOrigins []string
	MaxUploadBytes int64
}

// DeadLetterReader is implemented by queue.RetryQueue.
type DeadLetterReader interface {
	DeadLetters(ctx context.Context, n int64) ([]queue.Job, error)
}

// Server exposes the portfolio HTTP API.
type Server struct {
	app            *app.App
	limiter        ratelimit.Limiter
	metrics        *metrics.Metrics
	scheduler      *scheduler.Scheduler
	deadLetters    DeadLetterReader
	trustedProxies *util.TrustedProxies
	cors           *util.CORSPolicy
	maxUploadBytes int64
	mux            *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, fmt.Errorf("app is required")
	}
	if cfg.Limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	s := &Server{
		app:            cfg.App,
		limiter:        cfg.Limiter,
		metrics:        cfg.Metrics,
		scheduler:      cfg.Scheduler,
		deadLetters:    cfg.DeadLetters,
		trustedProxies: cfg.TrustedProxies,
		cors:           util.NewCORSPolicy(cfg.AllowedOrigins),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		mux:            http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.withRateLimit(s.mux)
	h = s.metrics.WithHTTPMetrics(h)
	h = util.WithCORS(s.cors, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog("api", h)
	return util.WithRequestID(h)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}

	// commands
	s.mux.HandleFunc("/api/commands", s.handleCommands)
	s.mux.HandleFunc("/api/commands/execute", s.handleExecute)
	s.mux.HandleFunc("/api/commands/", s.handleCommandByName)

	// visitors
	s.mux.HandleFunc("/api/users/", s.handleUserBySession)

	// analytics
	s.mux.HandleFunc("/api/analytics/dashboard", s.handleDashboard)
	s.mux.HandleFunc("/api/analytics/summary", s.handleSummary)
	s.mux.HandleFunc("/api/analytics/commands", s.handleCommandAnalytics)
	s.mux.HandleFunc("/api/analytics/users", s.handleUserAnalytics)
	s.mux.HandleFunc("/api/analytics/engagement", s.handleEngagement)
	s.mux.HandleFunc("/api/analytics/daily", s.handleDailyRollups)

	// admin
	s.mux.HandleFunc("/api/admin/login", s.handleAdminLogin)
	s.mux.HandleFunc("/api/admin/logout", s.handleAdminLogout)
	s.mux.Handle("/api/admin/commands/", s.adminOnly(s.handleAdminCommand))
	s.mux.Handle("/api/admin/assets/", s.adminOnly(s.handleAdminAsset))
	s.mux.Handle("/api/admin/jobs", s.adminOnly(s.handleAdminJobs))
	s.mux.Handle("/api/admin/jobs/", s.adminOnly(s.handleAdminJobByName))
	s.mux.Handle("/api/admin/retries/dead", s.adminOnly(s.handleDeadLetters))

	s.mux.HandleFunc("/", s.handleNotFound)
}

type healthUptime struct {
	Seconds int64  `json:"seconds"`
	Human   string `json:"human"`
}

type healthDatabase struct {
	Status       string `json:"status"`
	ResponseTime string `json:"responseTime,omitempty"`
}

type healthResponse struct {
	Status      string         `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
	Uptime      healthUptime   `json:"uptime"`
	Version     string         `json:"version"`
	Environment string         `json:"environment"`
	Database    healthDatabase `json:"database"`
	Error       string         `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w, r)
		return
	}
	h := s.app.CheckHealth(r.Context())
	resp := healthResponse{
		Status:    h.Status,
		Timestamp: h.Timestamp,
		Uptime: healthUptime{
			Seconds: int64(h.Uptime / time.Second),
			Human:   app.FormatUptime(h.Uptime),
		},
		Version:     h.Version,
		Environment: h.Environment,
	}
	if !h.Healthy {
		resp.Database = healthDatabase{Status: "disconnected"}
		resp.Error = h.DBError
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Database = healthDatabase{
		Status:       "connected",
		ResponseTime: fmt.Sprintf("%dms", h.DBLatency.Milliseconds()),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeFail(w, r, http.StatusNotFound, "Route "+r.URL.RequestURI()+" not found")
}

// withRateLimit applies the per-IP fixed window to everything except probes
// and CORS preflights.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if !s.allowRate(w, r, "api") {
			s.audit(r, "api.rate_limit", "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, scope string) bool {
	key := scope + "|" + s.clientIP(r)
	decision := s.limiter.Allow(r.Context(), key)
	w.Header().Set("RateLimit-Remaining", strconv.Itoa(decision.Remaining))
	if decision.Allowed {
		return true
	}
	s.metrics.RecordRateLimited(scope)
	retryAfter := int(decision.RetryAfter.Round(time.Second) / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	writeFail(w, r, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trustedProxies)
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

// pathSegments splits the escaped remainder of r's path after prefix and
// unescapes each segment, so "%2Fabout" survives as "/about".
func pathSegments(r *http.Request, prefix string) ([]string, bool) {
	rest := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	rest = strings.Trim(rest, "/")
	if rest == "" {
		return nil, true
	}
	raw := strings.Split(rest, "/")
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		v, err := url.PathUnescape(seg)
		if err != nil {
			return nil, false
		}
		out = append(out, v)
	}
	return out, true
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		slog.Debug("missing bearer prefix", "path", r.URL.Path)
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 20 * 1024 * 1024
	}
	return value
}
