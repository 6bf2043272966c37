package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"termfolio/pkg/domain"
)

func TestMemoryStoreTouchUserMergesVisits(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	first, err := s.TouchUser(ctx, domain.Visit{SessionID: "sess-1", Nickname: "ada", Country: "SE", At: t0})
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	if !first.FirstVisitAt.Equal(t0) || !first.LastVisitAt.Equal(t0) {
		t.Fatalf("unexpected visit times: %+v", first)
	}

	second, err := s.TouchUser(ctx, domain.Visit{SessionID: "sess-1", Timezone: "Europe/Stockholm", At: t0.Add(time.Hour)})
	if err != nil {
		t.Fatalf("touch again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same user, got %s and %s", first.ID, second.ID)
	}
	if second.Nickname != "ada" || second.Country != "SE" || second.Timezone != "Europe/Stockholm" {
		t.Fatalf("expected merged profile, got %+v", second)
	}
	if !second.LastVisitAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("expected last visit to advance, got %s", second.LastVisitAt)
	}

	// An out-of-order visit must not move lastVisit backwards.
	third, err := s.TouchUser(ctx, domain.Visit{SessionID: "sess-1", At: t0.Add(-time.Hour)})
	if err != nil {
		t.Fatalf("touch stale: %v", err)
	}
	if !third.LastVisitAt.Equal(t0.Add(time.Hour)) {
		t.Fatalf("last visit regressed to %s", third.LastVisitAt)
	}
	if !third.FirstVisitAt.Equal(t0) {
		t.Fatalf("first visit changed to %s", third.FirstVisitAt)
	}
}

func TestMemoryStoreDeleteUserKeepsAnonymizedExecutions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	u, err := s.TouchUser(ctx, domain.Visit{SessionID: "sess-2", At: now})
	if err != nil {
		t.Fatalf("touch: %v", err)
	}
	for i := 0; i < 2; i++ {
		uid := u.ID
		if err := s.AppendExecution(ctx, domain.CommandExecution{UserID: &uid, CommandName: "/about", ExecutionTime: now, Success: true}); err != nil {
			t.Fatalf("append execution: %v", err)
		}
		if _, err := s.IncrementUserCommands(ctx, u.ID); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := s.AppendDownload(ctx, domain.FileDownload{UserID: u.ID, FileName: "cv.pdf", FileType: "pdf", DownloadTime: now, Success: true}); err != nil {
		t.Fatalf("append download: %v", err)
	}

	got, ok, err := s.GetUserBySession(ctx, "sess-2")
	if err != nil || !ok {
		t.Fatalf("get user: ok=%v err=%v", ok, err)
	}
	if got.TotalCommands != 2 {
		t.Fatalf("expected 2 commands, got %d", got.TotalCommands)
	}

	if err := s.DeleteUserData(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetUserBySession(ctx, "sess-2"); ok {
		t.Fatalf("expected user to be gone")
	}
	execs := s.Executions()
	if len(execs) != 2 {
		t.Fatalf("expected executions to survive, got %d", len(execs))
	}
	for _, e := range execs {
		if e.UserID != nil {
			t.Fatalf("expected anonymized execution, got user %s", *e.UserID)
		}
	}
	if n := len(s.Downloads()); n != 0 {
		t.Fatalf("expected downloads removed, got %d", n)
	}
	if err := s.DeleteUserData(ctx, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStoreLatestResponsePicksHighestActiveVersion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, r := range []domain.CommandResponse{
		{CommandName: "/about", Version: 1, Content: "v1", Active: true},
		{CommandName: "/about", Version: 3, Content: "v3", Active: false},
		{CommandName: "/about", Version: 2, Content: "v2", Active: true},
	} {
		if err := s.UpsertCommandResponse(ctx, r); err != nil {
			t.Fatalf("upsert response: %v", err)
		}
	}
	resp, ok, err := s.LatestResponse(ctx, "/about")
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if resp.Content != "v2" {
		t.Fatalf("expected v2, got %q", resp.Content)
	}
	next, err := s.NextResponseVersion(ctx, "/about")
	if err != nil {
		t.Fatalf("next version: %v", err)
	}
	if next != 4 {
		t.Fatalf("expected next version 4, got %d", next)
	}
}

func TestMemoryStoreCommandStatsAndRanges(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2025, 5, 10, 0, 0, 0, 0, time.UTC)
	add := func(name string, at time.Time, ok bool, ms int64) {
		t.Helper()
		if err := s.AppendExecution(ctx, domain.CommandExecution{CommandName: name, ExecutionTime: at, Success: ok, ResponseTimeMs: ms}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	add("/about", base.Add(time.Hour), true, 10)
	add("/about", base.Add(2*time.Hour), false, 30)
	add("/skills", base.Add(3*time.Hour), true, 5)
	add("/skills", base.Add(25*time.Hour), true, 5)

	day := TimeRange{From: base, To: base.Add(24 * time.Hour)}
	stats, err := s.CommandStats(ctx, ExecutionQuery{Range: day}, 0)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 2 || stats[0].Command != "/about" {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats[0].Executions != 2 || stats[0].Successful != 1 || stats[0].TotalResponseTimeMs != 40 {
		t.Fatalf("unexpected /about stat: %+v", stats[0])
	}

	n, err := s.CountExecutions(ctx, ExecutionQuery{Range: day, SuccessOnly: true})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 successful executions in range, got %d", n)
	}

	// The upper bound is exclusive.
	edge := TimeRange{From: base, To: base.Add(time.Hour)}
	if n, _ := s.CountExecutions(ctx, ExecutionQuery{Range: edge}); n != 0 {
		t.Fatalf("expected exclusive upper bound, got %d", n)
	}
}

func TestMemoryStorePurgeFailedBefore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	old := time.Now().UTC().Add(-48 * time.Hour)
	fresh := time.Now().UTC()
	_ = s.AppendExecution(ctx, domain.CommandExecution{CommandName: "/x", ExecutionTime: old, Success: false})
	_ = s.AppendExecution(ctx, domain.CommandExecution{CommandName: "/about", ExecutionTime: old, Success: true})
	_ = s.AppendExecution(ctx, domain.CommandExecution{CommandName: "/y", ExecutionTime: fresh, Success: false})
	_ = s.AppendDownload(ctx, domain.FileDownload{FileName: "a.pdf", DownloadTime: old, Success: false})

	execs, downloads, err := s.PurgeFailedBefore(ctx, fresh.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if execs != 1 || downloads != 1 {
		t.Fatalf("unexpected purge counts: %d executions, %d downloads", execs, downloads)
	}
	if n := len(s.Executions()); n != 2 {
		t.Fatalf("expected 2 executions left, got %d", n)
	}
}

func TestMemoryStoreUserDistribution(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()
	_, _ = s.TouchUser(ctx, domain.Visit{SessionID: "a", Country: "US", At: now})
	_, _ = s.TouchUser(ctx, domain.Visit{SessionID: "b", Country: "US", At: now})
	_, _ = s.TouchUser(ctx, domain.Visit{SessionID: "c", Country: "CN", At: now})
	_, _ = s.TouchUser(ctx, domain.Visit{SessionID: "d", At: now})

	buckets, err := s.UserDistribution(ctx, DistributionCountry, TimeRange{})
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if len(buckets) != 2 || buckets[0].Key != "US" || buckets[0].Count != 2 {
		t.Fatalf("unexpected buckets: %+v", buckets)
	}
	if _, err := s.UserDistribution(ctx, DistributionField("ip"), TimeRange{}); err == nil {
		t.Fatalf("expected error for unknown field")
	}
}

func TestMemoryStoreExecutionTimeline(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	// 2025-06-04 is a Wednesday; its week starts on Sunday 2025-06-01.
	wed := time.Date(2025, 6, 4, 9, 30, 0, 0, time.UTC)
	for _, at := range []time.Time{wed, wed.Add(10 * time.Minute), wed.Add(26 * time.Hour)} {
		_ = s.AppendExecution(ctx, domain.CommandExecution{CommandName: "/about", ExecutionTime: at, Success: true})
	}

	daily, err := s.ExecutionTimeline(ctx, ExecutionQuery{}, PeriodDaily)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(daily) != 2 || daily[0].Key != "2025-06-04" || daily[0].Count != 2 || daily[1].Key != "2025-06-05" {
		t.Fatalf("unexpected daily timeline: %+v", daily)
	}
	weekly, _ := s.ExecutionTimeline(ctx, ExecutionQuery{}, PeriodWeekly)
	if len(weekly) != 1 || weekly[0].Key != "2025-06-01" || weekly[0].Count != 3 {
		t.Fatalf("unexpected weekly timeline: %+v", weekly)
	}
	hourly, _ := s.ExecutionTimeline(ctx, ExecutionQuery{}, PeriodHourly)
	if hourly[0].Key != "2025-06-04 09:00" {
		t.Fatalf("unexpected hourly key %q", hourly[0].Key)
	}
	if _, err := s.ExecutionTimeline(ctx, ExecutionQuery{}, Period("yearly")); err == nil {
		t.Fatalf("expected unknown period error")
	}
}
