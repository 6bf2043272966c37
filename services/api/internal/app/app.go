package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"termfolio/internal/metrics"
	"termfolio/pkg/auth"
	"termfolio/pkg/commands"
	"termfolio/pkg/events"
	"termfolio/pkg/queue"
	"termfolio/pkg/storage"
	"termfolio/pkg/store"
)

// Enqueuer hands failed analytics writes to the retry queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, kind string, payload any) (queue.Job, error)
}

// Config holds runtime dependencies for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store

	Objects   storage.ObjectStore
	Downloads map[string]commands.DownloadSpec

	Retry     Enqueuer
	Publisher events.Publisher
	Metrics   *metrics.Metrics

	AdminPasswordHash string
	AdminTokens       *auth.AdminTokens

	RetentionDays int
	Environment   string
	Version       string
	Now           func() time.Time
}

// App is the core application service wiring storage and domain logic.
type App struct {
	store    store.Store
	resolver *commands.Resolver
	recorder *Recorder
	objects  storage.ObjectStore
	metrics  *metrics.Metrics

	adminHash   string
	adminTokens *auth.AdminTokens

	retentionDays int
	environment   string
	version       string
	startedAt     time.Time
	now           func() time.Time

	assetsMu sync.RWMutex
	assets   map[string]storage.AssetMeta // key: file type
}

// New constructs the application. When no store is given it connects to
// Postgres using DatabaseURL.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	retention := cfg.RetentionDays
	if retention <= 0 {
		retention = 365
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	environment := cfg.Environment
	if environment == "" {
		environment = "development"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	a := &App{
		store:         dataStore,
		resolver:      commands.NewResolver(dataStore, cfg.Downloads),
		objects:       cfg.Objects,
		metrics:       cfg.Metrics,
		adminHash:     cfg.AdminPasswordHash,
		adminTokens:   cfg.AdminTokens,
		retentionDays: retention,
		environment:   environment,
		version:       version,
		startedAt:     now(),
		now:           now,
		assets:        make(map[string]storage.AssetMeta),
	}
	a.recorder = newRecorder(dataStore, cfg.Retry, publisher, cfg.Metrics)
	return a, nil
}

// Recorder exposes the analytics recorder, used by the retry worker.
func (a *App) Recorder() *Recorder { return a.recorder }

func (a *App) Environment() string { return a.environment }

// Production reports whether internal error details must be hidden.
func (a *App) Production() bool { return a.environment == "production" }

// Health is the result of a readiness probe.
type Health struct {
	Healthy     bool          `json:"-"`
	Status      string        `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	Uptime      time.Duration `json:"-"`
	Version     string        `json:"version"`
	Environment string        `json:"environment"`
	DBLatency   time.Duration `json:"-"`
	DBError     string        `json:"-"`
}

// CheckHealth pings the database with a short timeout.
func (a *App) CheckHealth(ctx context.Context) Health {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	start := time.Now()
	err := a.store.Ping(ctx)
	h := Health{
		Healthy:     err == nil,
		Status:      "healthy",
		Timestamp:   a.now().UTC(),
		Uptime:      a.now().Sub(a.startedAt),
		Version:     a.version,
		Environment: a.environment,
		DBLatency:   time.Since(start),
	}
	if err != nil {
		h.Status = "unhealthy"
		h.DBError = "Database connection failed"
		slog.Error("health_check_failed", "err", err)
	}
	return h
}

// Seed upserts the built-in commands and their version-1 responses.
func (a *App) Seed(ctx context.Context) (int, int, error) {
	for _, cmd := range commands.SeedCommands {
		if err := a.store.UpsertCommand(ctx, cmd); err != nil {
			return 0, 0, fmt.Errorf("seed command %s: %w", cmd.Name, err)
		}
	}
	for _, resp := range commands.SeedResponses {
		if err := a.store.UpsertCommandResponse(ctx, resp); err != nil {
			return 0, 0, fmt.Errorf("seed response %s v%d: %w", resp.CommandName, resp.Version, err)
		}
	}
	return len(commands.SeedCommands), len(commands.SeedResponses), nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}

// FormatUptime renders d as "1d 2h 3m 4s", omitting leading zero units.
func FormatUptime(d time.Duration) string {
	secs := int64(d / time.Second)
	days := secs / 86400
	hours := secs % 86400 / 3600
	mins := secs % 3600 / 60
	secs %= 60
	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, mins, secs)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, mins, secs)
	case mins > 0:
		return fmt.Sprintf("%dm %ds", mins, secs)
	default:
		return fmt.Sprintf("%ds", secs)
	}
}
