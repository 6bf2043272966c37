package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"termfolio/internal/scheduler"
	"termfolio/pkg/domain"
	"termfolio/pkg/store"
)

const (
	JobDailyAnalytics = "daily-analytics"
	JobCleanupLogs    = "cleanup-logs"

	dailyAnalyticsSchedule = "0 * * * *"
	cleanupLogsSchedule    = "0 2 * * *"
	rollupTopCommands      = 5
)

// RegisterJobs adds the maintenance jobs to s. They start stopped.
func (a *App) RegisterJobs(s *scheduler.Scheduler) error {
	if err := s.Register(JobDailyAnalytics, dailyAnalyticsSchedule, a.RunDailyRollup); err != nil {
		return fmt.Errorf("register %s: %w", JobDailyAnalytics, err)
	}
	if err := s.Register(JobCleanupLogs, cleanupLogsSchedule, func(ctx context.Context) error {
		_, _, err := a.CleanupLogs(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("register %s: %w", JobCleanupLogs, err)
	}
	return nil
}

// RunDailyRollup refreshes yesterday's and today's rollups.
func (a *App) RunDailyRollup(ctx context.Context) error {
	today := a.now().UTC().Truncate(day)
	g, gctx := errgroup.WithContext(ctx)
	for _, d := range []time.Time{today.Add(-day), today} {
		g.Go(func() error {
			_, err := a.RollupDay(gctx, d)
			return err
		})
	}
	return g.Wait()
}

// RollupDay computes and stores the aggregate for the UTC day containing
// date.
func (a *App) RollupDay(ctx context.Context, date time.Time) (domain.DailyRollup, error) {
	start := date.UTC().Truncate(day)
	r := store.TimeRange{From: start, To: start.Add(day)}
	rollup := domain.DailyRollup{Date: start}

	var top []domain.CommandStat
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rollup.UniqueVisitors, err = a.store.CountUsers(gctx, store.UserQuery{LastVisit: r})
		return err
	})
	g.Go(func() error {
		var err error
		rollup.TotalCommands, err = a.store.CountExecutions(gctx, store.ExecutionQuery{Range: r, SuccessOnly: true})
		return err
	})
	g.Go(func() error {
		var err error
		rollup.TotalDownloads, err = a.store.CountDownloads(gctx, store.DownloadQuery{Range: r, SuccessOnly: true})
		return err
	})
	g.Go(func() error {
		var err error
		top, err = a.store.CommandStats(gctx, store.ExecutionQuery{Range: r, SuccessOnly: true}, rollupTopCommands)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.DailyRollup{}, fmt.Errorf("rollup %s: %w", start.Format("2006-01-02"), err)
	}

	rollup.TopCommands = make([]domain.CommandCount, 0, len(top))
	for _, st := range top {
		rollup.TopCommands = append(rollup.TopCommands, domain.CommandCount{Command: st.Command, Count: st.Executions})
	}
	if len(top) > 0 {
		rollup.MostPopularCommand = top[0].Command
	}
	rollup.UpdatedAt = a.now().UTC()
	if err := a.store.UpsertDailyRollup(ctx, rollup); err != nil {
		return domain.DailyRollup{}, fmt.Errorf("store rollup %s: %w", start.Format("2006-01-02"), err)
	}
	slog.Info("daily analytics updated",
		"date", start.Format("2006-01-02"),
		"unique_visitors", rollup.UniqueVisitors,
		"total_commands", rollup.TotalCommands,
		"total_downloads", rollup.TotalDownloads,
		"most_popular_command", rollup.MostPopularCommand,
	)
	return rollup, nil
}

// CleanupLogs deletes failed executions and downloads older than the
// retention window. Successful rows are kept for analytics.
func (a *App) CleanupLogs(ctx context.Context) (int64, int64, error) {
	cutoff := a.now().UTC().Add(-time.Duration(a.retentionDays) * day)
	executions, downloads, err := a.store.PurgeFailedBefore(ctx, cutoff)
	if err != nil {
		return 0, 0, fmt.Errorf("purge failed logs: %w", err)
	}
	slog.Info("cleanup completed",
		"deleted_executions", executions,
		"deleted_downloads", downloads,
		"cutoff", cutoff,
	)
	return executions, downloads, nil
}
