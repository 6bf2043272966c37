package store

import (
	"context"
	"time"

	"termfolio/pkg/commands"
	"termfolio/pkg/domain"
)

// Store defines persistence for the command registry, visitors, usage logs
// and rollups.
type Store interface {
	commands.Catalog

	// registry
	UpsertCommand(ctx context.Context, cmd domain.Command) error
	UpsertCommandResponse(ctx context.Context, resp domain.CommandResponse) error
	NextResponseVersion(ctx context.Context, commandName string) (int, error)

	// visitors
	TouchUser(ctx context.Context, visit domain.Visit) (domain.User, error)
	GetUserBySession(ctx context.Context, sessionID string) (domain.User, bool, error)
	UpdateUserProfile(ctx context.Context, sessionID string, update ProfileUpdate) (domain.User, bool, error)
	IncrementUserCommands(ctx context.Context, userID string) (int64, error)
	CountUserActivity(ctx context.Context, userID string) (executions, downloads int64, err error)
	DeleteUserData(ctx context.Context, userID string) error

	// logs
	AppendExecution(ctx context.Context, exec domain.CommandExecution) error
	AppendDownload(ctx context.Context, dl domain.FileDownload) error

	// analytics
	CountUsers(ctx context.Context, q UserQuery) (int64, error)
	AverageUserCommands(ctx context.Context) (float64, error)
	CountExecutions(ctx context.Context, q ExecutionQuery) (int64, error)
	CountDownloads(ctx context.Context, q DownloadQuery) (int64, error)
	CommandStats(ctx context.Context, q ExecutionQuery, limit int) ([]domain.CommandStat, error)
	// ExecutionTimeline counts executions per period key, keys ascending.
	ExecutionTimeline(ctx context.Context, q ExecutionQuery, period Period) ([]domain.Bucket, error)
	RecentActivity(ctx context.Context, q ExecutionQuery, limit int) ([]domain.ActivityEntry, error)
	ActiveUsers(ctx context.Context, r TimeRange, limit int) ([]domain.UserActivity, error)
	UserDistribution(ctx context.Context, field DistributionField, r TimeRange) ([]domain.Bucket, error)

	// maintenance
	UpsertDailyRollup(ctx context.Context, rollup domain.DailyRollup) error
	ListDailyRollups(ctx context.Context, r TimeRange) ([]domain.DailyRollup, error)
	PurgeFailedBefore(ctx context.Context, cutoff time.Time) (executions, downloads int64, err error)
	Ping(ctx context.Context) error
}

// TimeRange is the half-open interval [From, To). Zero bounds are open.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the range.
func (r TimeRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

type UserQuery struct {
	LastVisit TimeRange
	// MinCommands, when positive, keeps users whose totalCommands exceed it.
	MinCommands int64
}

type ExecutionQuery struct {
	Range       TimeRange
	SuccessOnly bool
}

type DownloadQuery struct {
	Range       TimeRange
	SuccessOnly bool
}

// ProfileUpdate holds optional profile fields; nil leaves a field as is.
type ProfileUpdate struct {
	Nickname *string
	Timezone *string
}

type DistributionField string

const (
	DistributionCountry  DistributionField = "country"
	DistributionTimezone DistributionField = "timezone"
)

// Period is the bucket width of a timeline. Buckets are computed in UTC.
type Period string

const (
	PeriodHourly  Period = "hourly"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodHourly, PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	default:
		return false
	}
}

// Key formats t as the bucket key for p. Weeks start on Sunday.
func (p Period) Key(t time.Time) string {
	t = t.UTC()
	switch p {
	case PeriodHourly:
		return t.Format("2006-01-02 15") + ":00"
	case PeriodWeekly:
		return t.AddDate(0, 0, -int(t.Weekday())).Format("2006-01-02")
	case PeriodMonthly:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}
