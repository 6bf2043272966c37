package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"termfolio/internal/metrics"
	"termfolio/internal/ratelimit"
	"termfolio/internal/scheduler"
	"termfolio/internal/util"
	"termfolio/pkg/auth"
	"termfolio/pkg/events"
	"termfolio/pkg/queue"
	"termfolio/pkg/storage"
	"termfolio/services/api/internal/app"
	"termfolio/services/api/internal/config"
	"termfolio/services/api/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := util.InitLogger("api", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rateWindow, _ := config.ParseDuration("rateLimitWindow", cfg.RateLimitWindow)
	adminTTL, _ := config.ParseDuration("adminTokenTTL", cfg.AdminTokenTTL)
	jobTimeout, _ := config.ParseDuration("jobTimeout", cfg.JobTimeout)

	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	m := metrics.New()

	var (
		limiter ratelimit.Limiter
		revoker auth.TokenRevoker
		retry   *queue.RetryQueue
	)
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer client.Close()
		redisLimiter, err := ratelimit.NewRedisFixedWindowLimiter(client, "termfolio:api:ratelimit", cfg.RateLimitMaxRequests, rateWindow)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
		limiter = redisLimiter
		revoker = auth.NewRedisTokenRevoker(client, "termfolio:admin:revoked")
		retry, err = queue.NewRetryQueue(queue.Config{
			Client: client,
			Stream: "termfolio:analytics:retry",
			Group:  "api",
			Logger: logger,
		})
		if err != nil {
			log.Fatalf("failed to init retry queue: %v", err)
		}
	} else {
		slog.Warn("redis not configured, using in-process rate limiting and no analytics retry queue")
		memLimiter, err := ratelimit.NewMemoryFixedWindowLimiter(cfg.RateLimitMaxRequests, rateWindow)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
		limiter = memLimiter
		revoker = auth.NewMemoryTokenRevoker()
	}

	var objects storage.ObjectStore
	switch {
	case cfg.MinioEndpoint != "":
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
	case cfg.AssetsDir != "":
		objects, err = storage.NewFileStore(cfg.AssetsDir)
		if err != nil {
			log.Fatalf("failed to init assets dir: %v", err)
		}
	default:
		slog.Warn("no asset storage configured, downloads are disabled")
	}

	var publisher events.Publisher = events.Nop{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		publisher = amqpPublisher
	}
	defer publisher.Close()

	var adminTokens *auth.AdminTokens
	if cfg.AdminEnabled() {
		adminTokens, err = auth.NewAdminTokens(cfg.AdminTokenSecret, adminTTL, revoker)
		if err != nil {
			log.Fatalf("failed to init admin tokens: %v", err)
		}
	}

	appCfg := app.Config{
		DatabaseURL:       cfg.DatabaseURL,
		Objects:           objects,
		Publisher:         publisher,
		Metrics:           m,
		AdminPasswordHash: cfg.AdminPasswordHash,
		AdminTokens:       adminTokens,
		RetentionDays:     cfg.AnalyticsRetentionDays,
		Environment:       cfg.Environment,
		Version:           cfg.Version,
	}
	if retry != nil {
		appCfg.Retry = retry
	}
	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}
	if err := appCore.InspectAssets(ctx); err != nil {
		log.Fatalf("failed to inspect assets: %v", err)
	}

	if retry != nil {
		retry.Start(ctx, cfg.RetryWorkers, appCore.Recorder().HandleRetry)
	}

	sched := scheduler.New(
		scheduler.WithTimeout(jobTimeout),
		scheduler.WithLogger(logger),
		scheduler.WithObserver(func(job string, err error, took time.Duration) {
			m.RecordJobRun(job, err == nil, took)
		}),
	)
	if err := appCore.RegisterJobs(sched); err != nil {
		log.Fatalf("failed to register jobs: %v", err)
	}
	if cfg.SchedulerOn() {
		sched.StartAll()
	}

	serverCfg := server.Config{
		App:            appCore,
		Limiter:        limiter,
		Metrics:        m,
		Scheduler:      sched,
		TrustedProxies: trusted,
		AllowedOrigins: cfg.AllowedOrigins,
	}
	if retry != nil {
		serverCfg.DeadLetters = retry
	}
	httpServer, err := server.New(serverCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown error", "err", err)
		}
		if err := sched.Shutdown(shutdownCtx); err != nil {
			logger.Error("scheduler shutdown error", "err", err)
		}
	}()

	slog.Info("api server listening", "addr", addr, "environment", cfg.Environment)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		return
	}
	<-drained
	slog.Info("api server stopped")
}
