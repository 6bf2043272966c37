package app

import (
	"context"
	"testing"
	"time"

	"termfolio/internal/scheduler"
	"termfolio/pkg/domain"
	"termfolio/pkg/store"
)

func TestRollupDay(t *testing.T) {
	env := newTestEnv(t, nil)
	seedActivity(t, env.store)
	ctx := context.Background()

	rollup, err := env.app.RollupDay(ctx, testNow)
	if err != nil {
		t.Fatalf("rollup: %v", err)
	}
	if !rollup.Date.Equal(time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected rollup date %s", rollup.Date)
	}
	if rollup.TotalCommands != 2 || rollup.TotalDownloads != 1 || rollup.UniqueVisitors != 1 {
		t.Fatalf("unexpected rollup %+v", rollup)
	}
	if rollup.MostPopularCommand != "/about" || len(rollup.TopCommands) != 1 {
		t.Fatalf("unexpected top commands %+v", rollup)
	}

	if err := env.app.RunDailyRollup(ctx); err != nil {
		t.Fatalf("run daily rollup: %v", err)
	}
	r, _ := env.app.ParseDateRange("2025-06-01", "2025-06-04")
	rollups, err := env.app.DailyRollups(ctx, r)
	if err != nil {
		t.Fatalf("list rollups: %v", err)
	}
	if len(rollups) != 2 || rollups[0].MostPopularCommand != "/skill" {
		t.Fatalf("expected yesterday and today rollups, got %+v", rollups)
	}
}

func TestCleanupLogsKeepsSuccessfulRows(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	old := testNow.Add(-400 * 24 * time.Hour)
	_ = env.store.AppendExecution(ctx, domain.CommandExecution{CommandName: "/x", ExecutionTime: old, Success: false})
	_ = env.store.AppendExecution(ctx, domain.CommandExecution{CommandName: "/about", ExecutionTime: old, Success: true})
	_ = env.store.AppendExecution(ctx, domain.CommandExecution{CommandName: "/y", ExecutionTime: testNow, Success: false})

	execs, downloads, err := env.app.CleanupLogs(ctx)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if execs != 1 || downloads != 0 {
		t.Fatalf("unexpected purge counts %d/%d", execs, downloads)
	}
	n, _ := env.store.CountExecutions(ctx, store.ExecutionQuery{})
	if n != 2 {
		t.Fatalf("expected 2 executions left, got %d", n)
	}
}

func TestRegisterJobs(t *testing.T) {
	env := newTestEnv(t, nil)
	s := scheduler.New()
	defer s.Shutdown(context.Background())
	if err := env.app.RegisterJobs(s); err != nil {
		t.Fatalf("register: %v", err)
	}
	statuses := s.Status()
	if len(statuses) != 2 || statuses[0].Name != JobCleanupLogs || statuses[1].Name != JobDailyAnalytics {
		t.Fatalf("unexpected jobs %+v", statuses)
	}
	if err := s.RunNow(context.Background(), JobDailyAnalytics); err != nil {
		t.Fatalf("run now: %v", err)
	}
	if err := env.app.RegisterJobs(s); err == nil {
		t.Fatalf("expected duplicate registration to fail")
	}
}
