package app

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"termfolio/pkg/domain"
	"termfolio/pkg/store"
)

const (
	day                  = 24 * time.Hour
	defaultAnalyticsSpan = 30 * day
	defaultCommandLimit  = 10
	defaultUserLimit     = 50
	maxAnalyticsLimit    = 100
)

// DateRange is an analytics window. End is exclusive.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (r DateRange) timeRange() store.TimeRange {
	return store.TimeRange{From: r.Start, To: r.End}
}

// ParseDateRange reads optional startDate/endDate values. Both accept
// RFC 3339 timestamps or YYYY-MM-DD; a date-only end includes that whole day.
// Missing bounds default to the last 30 days.
func (a *App) ParseDateRange(startRaw, endRaw string) (DateRange, error) {
	now := a.now().UTC()
	v := validation{}
	r := DateRange{Start: now.Add(-defaultAnalyticsSpan), End: now}
	if startRaw != "" {
		t, _, err := parseDateParam(startRaw)
		if err != nil {
			v.add("startDate", "Start date must be a valid ISO 8601 date")
		} else {
			r.Start = t
		}
	}
	if endRaw != "" {
		t, dateOnly, err := parseDateParam(endRaw)
		switch {
		case err != nil:
			v.add("endDate", "End date must be a valid ISO 8601 date")
		case dateOnly:
			r.End = t.Add(day)
		default:
			// Timestamps are inclusive; stored times have microsecond precision.
			r.End = t.Add(time.Microsecond)
		}
	}
	if err := v.err(); err != nil {
		return DateRange{}, err
	}
	if !r.End.After(r.Start) {
		return DateRange{}, &ValidationError{Fields: map[string]string{"endDate": "End date must be after start date"}}
	}
	return r, nil
}

func parseDateParam(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

// ParseLimit reads an optional limit bounded to 1..100.
func ParseLimit(raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > maxAnalyticsLimit {
		return 0, &ValidationError{Fields: map[string]string{"limit": "Limit must be between 1 and 100"}}
	}
	return n, nil
}

// ParsePeriod reads an optional timeline period, daily by default.
func ParsePeriod(raw string) (store.Period, error) {
	if raw == "" {
		return store.PeriodDaily, nil
	}
	p := store.Period(raw)
	if !p.Valid() {
		return "", &ValidationError{Fields: map[string]string{"period": "Period must be one of hourly, daily, weekly, monthly"}}
	}
	return p, nil
}

type DashboardOverview struct {
	TotalUsers         int64  `json:"totalUsers"`
	TotalCommands      int64  `json:"totalCommands"`
	TotalDownloads     int64  `json:"totalDownloads"`
	TodayUsers         int64  `json:"todayUsers"`
	TodayCommands      int64  `json:"todayCommands"`
	WeeklyActiveUsers  int64  `json:"weeklyActiveUsers"`
	MonthlyActiveUsers int64  `json:"monthlyActiveUsers"`
	UserGrowthRate     string `json:"userGrowthRate"`
}

type CommandPopularity struct {
	Command    string `json:"command"`
	Executions int64  `json:"executions"`
}

type ActivityUser struct {
	Nickname string `json:"nickname"`
	Country  string `json:"country"`
}

type Activity struct {
	ID            string       `json:"id"`
	Command       string       `json:"command"`
	ExecutionTime time.Time    `json:"executionTime"`
	User          ActivityUser `json:"user"`
	ResponseTime  int64        `json:"responseTime"`
	Success       bool         `json:"success"`
}

type Dashboard struct {
	Overview        DashboardOverview   `json:"overview"`
	PopularCommands []CommandPopularity `json:"popularCommands"`
	RecentActivity  []Activity          `json:"recentActivity"`
}

// Dashboard returns headline counts, the week's top commands and the last
// day's activity.
func (a *App) Dashboard(ctx context.Context) (Dashboard, error) {
	now := a.now().UTC()
	today := now.Truncate(day)
	yesterday := today.Add(-day)
	weekAgo := today.Add(-7 * day)
	monthAgo := today.Add(-30 * day)

	var (
		d              Dashboard
		yesterdayUsers int64
		popular        []domain.CommandStat
		recent         []domain.ActivityEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	count := func(dst *int64, fn func(context.Context) (int64, error)) {
		g.Go(func() error {
			n, err := fn(gctx)
			*dst = n
			return err
		})
	}
	o := &d.Overview
	count(&o.TotalUsers, func(ctx context.Context) (int64, error) {
		return a.store.CountUsers(ctx, store.UserQuery{})
	})
	count(&o.TotalCommands, func(ctx context.Context) (int64, error) {
		return a.store.CountExecutions(ctx, store.ExecutionQuery{})
	})
	count(&o.TotalDownloads, func(ctx context.Context) (int64, error) {
		return a.store.CountDownloads(ctx, store.DownloadQuery{})
	})
	count(&o.TodayUsers, func(ctx context.Context) (int64, error) {
		return a.store.CountUsers(ctx, store.UserQuery{LastVisit: store.TimeRange{From: today}})
	})
	count(&o.TodayCommands, func(ctx context.Context) (int64, error) {
		return a.store.CountExecutions(ctx, store.ExecutionQuery{Range: store.TimeRange{From: today}})
	})
	count(&o.WeeklyActiveUsers, func(ctx context.Context) (int64, error) {
		return a.store.CountUsers(ctx, store.UserQuery{LastVisit: store.TimeRange{From: weekAgo}})
	})
	count(&o.MonthlyActiveUsers, func(ctx context.Context) (int64, error) {
		return a.store.CountUsers(ctx, store.UserQuery{LastVisit: store.TimeRange{From: monthAgo}})
	})
	count(&yesterdayUsers, func(ctx context.Context) (int64, error) {
		return a.store.CountUsers(ctx, store.UserQuery{LastVisit: store.TimeRange{From: yesterday, To: today}})
	})
	g.Go(func() error {
		var err error
		popular, err = a.store.CommandStats(gctx, store.ExecutionQuery{Range: store.TimeRange{From: weekAgo}, SuccessOnly: true}, 5)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = a.store.RecentActivity(gctx, store.ExecutionQuery{Range: store.TimeRange{From: yesterday}}, 10)
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("dashboard: %w", err)
	}

	o.UserGrowthRate = "0%"
	if yesterdayUsers > 0 {
		o.UserGrowthRate = percent(o.TodayUsers-yesterdayUsers, yesterdayUsers) + "%"
	}
	d.PopularCommands = make([]CommandPopularity, 0, len(popular))
	for _, s := range popular {
		d.PopularCommands = append(d.PopularCommands, CommandPopularity{Command: s.Command, Executions: s.Executions})
	}
	d.RecentActivity = make([]Activity, 0, len(recent))
	for _, e := range recent {
		d.RecentActivity = append(d.RecentActivity, Activity{
			ID:            e.ID,
			Command:       e.CommandName,
			ExecutionTime: e.ExecutionTime,
			User:          ActivityUser{Nickname: firstNonEmpty(e.Nickname, "Anonymous"), Country: e.Country},
			ResponseTime:  e.ResponseTimeMs,
			Success:       e.Success,
		})
	}
	return d, nil
}

type SummaryTotals struct {
	TotalCommands   int64        `json:"totalCommands"`
	UniqueUsers     int64        `json:"uniqueUsers"`
	FileDownloads   int64        `json:"fileDownloads"`
	AvgResponseTime int64        `json:"avgResponseTime"`
	Period          store.Period `json:"period"`
	DateRange       DateRange    `json:"dateRange"`
}

type TimelinePoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

type Summary struct {
	Summary  SummaryTotals   `json:"summary"`
	Timeline []TimelinePoint `json:"timeline"`
}

// Summary aggregates successful executions in r and buckets them by period.
func (a *App) Summary(ctx context.Context, r DateRange, period store.Period) (Summary, error) {
	q := store.ExecutionQuery{Range: r.timeRange(), SuccessOnly: true}
	var (
		s        = Summary{Summary: SummaryTotals{Period: period, DateRange: r}}
		stats    []domain.CommandStat
		timeline []domain.Bucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stats, err = a.store.CommandStats(gctx, q, 0)
		return err
	})
	g.Go(func() error {
		var err error
		timeline, err = a.store.ExecutionTimeline(gctx, q, period)
		return err
	})
	g.Go(func() error {
		var err error
		s.Summary.UniqueUsers, err = a.store.CountUsers(gctx, store.UserQuery{LastVisit: r.timeRange()})
		return err
	})
	g.Go(func() error {
		var err error
		s.Summary.FileDownloads, err = a.store.CountDownloads(gctx, store.DownloadQuery{Range: r.timeRange()})
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("summary: %w", err)
	}

	var total, totalMs int64
	for _, st := range stats {
		total += st.Executions
		totalMs += st.TotalResponseTimeMs
	}
	s.Summary.TotalCommands = total
	if total > 0 {
		s.Summary.AvgResponseTime = int64(math.Round(float64(totalMs) / float64(total)))
	}
	s.Timeline = make([]TimelinePoint, 0, len(timeline))
	for _, b := range timeline {
		s.Timeline = append(s.Timeline, TimelinePoint{Date: b.Key, Count: b.Count})
	}
	return s, nil
}

type CommandAnalytics struct {
	Command           string `json:"command"`
	Executions        int64  `json:"executions"`
	AvgResponseTime   int64  `json:"avgResponseTime"`
	TotalResponseTime int64  `json:"totalResponseTime"`
	SuccessRate       string `json:"successRate"`
}

type CommandReport struct {
	Commands  []CommandAnalytics `json:"commands"`
	DateRange DateRange          `json:"dateRange"`
}

// CommandAnalytics ranks commands executed in r, failures included.
func (a *App) CommandAnalytics(ctx context.Context, r DateRange, limit int) (CommandReport, error) {
	stats, err := a.store.CommandStats(ctx, store.ExecutionQuery{Range: r.timeRange()}, limit)
	if err != nil {
		return CommandReport{}, fmt.Errorf("command analytics: %w", err)
	}
	out := CommandReport{Commands: make([]CommandAnalytics, 0, len(stats)), DateRange: r}
	for _, st := range stats {
		c := CommandAnalytics{
			Command:           st.Command,
			Executions:        st.Executions,
			TotalResponseTime: st.TotalResponseTimeMs,
			SuccessRate:       "0%",
		}
		if st.Executions > 0 {
			c.AvgResponseTime = int64(math.Round(float64(st.TotalResponseTimeMs) / float64(st.Executions)))
			c.SuccessRate = percent(st.Successful, st.Executions) + "%"
		}
		out.Commands = append(out.Commands, c)
	}
	return out, nil
}

type UserReportEntry struct {
	ID                string    `json:"id"`
	Nickname          string    `json:"nickname"`
	TotalCommands     int64     `json:"totalCommands"`
	CommandsInPeriod  int64     `json:"commandsInPeriod"`
	DownloadsInPeriod int64     `json:"downloadsInPeriod"`
	FirstVisit        time.Time `json:"firstVisit"`
	LastVisit         time.Time `json:"lastVisit"`
	Country           string    `json:"country"`
	Timezone          string    `json:"timezone"`
}

type CountryCount struct {
	Country   string `json:"country"`
	UserCount int64  `json:"userCount"`
}

type TimezoneCount struct {
	Timezone  string `json:"timezone"`
	UserCount int64  `json:"userCount"`
}

type UserReport struct {
	Users                []UserReportEntry `json:"users"`
	GeoDistribution      []CountryCount    `json:"geoDistribution"`
	TimezoneDistribution []TimezoneCount   `json:"timezoneDistribution"`
	DateRange            DateRange         `json:"dateRange"`
}

// UserAnalytics lists visitors active in r with their country and timezone
// distributions.
func (a *App) UserAnalytics(ctx context.Context, r DateRange, limit int) (UserReport, error) {
	var (
		users     []domain.UserActivity
		countries []domain.Bucket
		zones     []domain.Bucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = a.store.ActiveUsers(gctx, r.timeRange(), limit)
		return err
	})
	g.Go(func() error {
		var err error
		countries, err = a.store.UserDistribution(gctx, store.DistributionCountry, r.timeRange())
		return err
	})
	g.Go(func() error {
		var err error
		zones, err = a.store.UserDistribution(gctx, store.DistributionTimezone, r.timeRange())
		return err
	})
	if err := g.Wait(); err != nil {
		return UserReport{}, fmt.Errorf("user analytics: %w", err)
	}

	out := UserReport{
		Users:                make([]UserReportEntry, 0, len(users)),
		GeoDistribution:      make([]CountryCount, 0, len(countries)),
		TimezoneDistribution: make([]TimezoneCount, 0, len(zones)),
		DateRange:            r,
	}
	for _, u := range users {
		out.Users = append(out.Users, UserReportEntry{
			ID:                u.ID,
			Nickname:          firstNonEmpty(u.Nickname, "Anonymous"),
			TotalCommands:     u.TotalCommands,
			CommandsInPeriod:  u.PeriodCommands,
			DownloadsInPeriod: u.PeriodDownloads,
			FirstVisit:        u.FirstVisitAt,
			LastVisit:         u.LastVisitAt,
			Country:           u.Country,
			Timezone:          u.Timezone,
		})
	}
	for _, b := range countries {
		out.GeoDistribution = append(out.GeoDistribution, CountryCount{Country: b.Key, UserCount: b.Count})
	}
	for _, b := range zones {
		out.TimezoneDistribution = append(out.TimezoneDistribution, TimezoneCount{Timezone: b.Key, UserCount: b.Count})
	}
	return out, nil
}

type Engagement struct {
	Days               int    `json:"days"`
	TotalUsers         int64  `json:"totalUsers"`
	ActiveUsers        int64  `json:"activeUsers"`
	AvgCommandsPerUser int64  `json:"avgCommandsPerUser"`
	UserRetention      string `json:"userRetention"`
	EngagementRate     string `json:"engagementRate"`
}

// ParseDays reads the engagement window in days, 30 by default.
func ParseDays(raw string) (int, error) {
	if raw == "" {
		return 30, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > 365 {
		return 0, &ValidationError{Fields: map[string]string{"days": "Days must be between 1 and 365"}}
	}
	return n, nil
}

// Engagement reports how many visitors came back within the last days.
// Retention counts active visitors with more than one command.
func (a *App) Engagement(ctx context.Context, days int) (Engagement, error) {
	since := store.TimeRange{From: a.now().UTC().Add(-time.Duration(days) * day)}
	e := Engagement{Days: days}
	var (
		returning int64
		avg       float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		e.TotalUsers, err = a.store.CountUsers(gctx, store.UserQuery{})
		return err
	})
	g.Go(func() error {
		var err error
		e.ActiveUsers, err = a.store.CountUsers(gctx, store.UserQuery{LastVisit: since})
		return err
	})
	g.Go(func() error {
		var err error
		avg, err = a.store.AverageUserCommands(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		returning, err = a.store.CountUsers(gctx, store.UserQuery{LastVisit: since, MinCommands: 1})
		return err
	})
	if err := g.Wait(); err != nil {
		return Engagement{}, fmt.Errorf("engagement: %w", err)
	}
	e.AvgCommandsPerUser = int64(math.Round(avg))
	e.UserRetention = "0"
	if e.ActiveUsers > 0 {
		e.UserRetention = percent(returning, e.ActiveUsers)
	}
	e.EngagementRate = "0"
	if e.TotalUsers > 0 {
		e.EngagementRate = percent(e.ActiveUsers, e.TotalUsers)
	}
	return e, nil
}

// DailyRollups returns the stored rollups whose date falls in r.
func (a *App) DailyRollups(ctx context.Context, r DateRange) ([]domain.DailyRollup, error) {
	rollups, err := a.store.ListDailyRollups(ctx, store.TimeRange{From: r.Start.Truncate(day), To: r.End})
	if err != nil {
		return nil, fmt.Errorf("list rollups: %w", err)
	}
	return rollups, nil
}

// percent formats part/whole*100 with one decimal.
func percent(part, whole int64) string {
	return strconv.FormatFloat(float64(part)/float64(whole)*100, 'f', 1, 64)
}
