package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"termfolio/internal/metrics"
	"termfolio/internal/util"
	"termfolio/pkg/domain"
	"termfolio/pkg/events"
	"termfolio/pkg/queue"
	"termfolio/pkg/store"
)

// Retry job kinds.
const (
	RetryExecution = "execution"
	RetryIncrement = "increment"
	RetryDownload  = "download"
)

type executionRetry struct {
	Visit     *domain.Visit           `json:"visit,omitempty"`
	Execution domain.CommandExecution `json:"execution"`
}

type incrementRetry struct {
	UserID string `json:"userId"`
}

type downloadRetry struct {
	Download domain.FileDownload `json:"download"`
}

// Recorder writes usage facts without failing the request that produced
// them. Writes that fail are handed to the retry queue when one is set.
type Recorder struct {
	store     store.Store
	retry     Enqueuer
	publisher events.Publisher
	metrics   *metrics.Metrics
}

func newRecorder(s store.Store, retry Enqueuer, publisher events.Publisher, m *metrics.Metrics) *Recorder {
	return &Recorder{store: s, retry: retry, publisher: publisher, metrics: m}
}

// Touch upserts the visitor. On failure the caller continues anonymously
// and the returned visit must travel with the execution retry.
func (r *Recorder) Touch(ctx context.Context, visit domain.Visit) (domain.User, bool) {
	user, err := r.store.TouchUser(ctx, visit)
	if err != nil {
		util.LoggerFromContext(ctx).Warn("touch_user_failed", "session_id", visit.SessionID, "err", err)
		return domain.User{}, false
	}
	return user, true
}

// Execution appends exec and, for successful runs by a known user, bumps the
// user's counter. pending carries the visit when the user could not be
// touched. It returns the counter value when it is known.
func (r *Recorder) Execution(ctx context.Context, exec domain.CommandExecution, pending *domain.Visit) (int64, bool) {
	if exec.ID == "" {
		exec.ID = util.NewID()
	}
	if pending != nil && r.retry != nil {
		r.fail(ctx, RetryExecution, executionRetry{Visit: pending, Execution: exec}, fmt.Errorf("visitor not recorded"))
		r.publish(ctx, events.TypeCommandExecuted, exec)
		return 0, false
	}
	// Without a retry queue an unknown visitor's execution is kept anonymously.
	if err := r.store.AppendExecution(ctx, exec); err != nil {
		r.fail(ctx, RetryExecution, executionRetry{Execution: exec}, err)
		r.publish(ctx, events.TypeCommandExecuted, exec)
		return 0, false
	}
	r.publish(ctx, events.TypeCommandExecuted, exec)
	if !exec.Success || exec.UserID == nil {
		return 0, false
	}
	total, err := r.store.IncrementUserCommands(ctx, *exec.UserID)
	if err != nil {
		r.fail(ctx, RetryIncrement, incrementRetry{UserID: *exec.UserID}, err)
		return 0, false
	}
	return total, true
}

// Download appends one download log row.
func (r *Recorder) Download(ctx context.Context, dl domain.FileDownload) {
	if dl.ID == "" {
		dl.ID = util.NewID()
	}
	r.metrics.RecordDownload(dl.FileType, dl.Success)
	if err := r.store.AppendDownload(ctx, dl); err != nil {
		r.fail(ctx, RetryDownload, downloadRetry{Download: dl}, err)
	}
	r.publish(ctx, events.TypeFileDownloaded, dl)
}

// UserDeleted announces an erased visitor.
func (r *Recorder) UserDeleted(ctx context.Context, userID string) {
	r.publish(ctx, events.TypeUserDeleted, map[string]string{"userId": userID})
}

func (r *Recorder) fail(ctx context.Context, kind string, payload any, cause error) {
	logger := util.LoggerFromContext(ctx)
	enqueued := false
	if r.retry != nil {
		if job, err := r.retry.Enqueue(context.WithoutCancel(ctx), kind, payload); err != nil {
			logger.Error("analytics_retry_enqueue_failed", "kind", kind, "cause", cause, "err", err)
		} else {
			enqueued = true
			logger.Warn("analytics_write_deferred", "kind", kind, "job_id", job.ID, "err", cause)
		}
	} else {
		logger.Error("analytics_write_dropped", "kind", kind, "err", cause)
	}
	r.metrics.RecordRecorderFailure(kind, enqueued)
}

func (r *Recorder) publish(ctx context.Context, eventType string, data any) {
	ev, err := events.New(eventType, data)
	if err == nil {
		err = r.publisher.Publish(ctx, ev)
	}
	if err != nil {
		r.metrics.RecordPublishFailure()
		util.LoggerFromContext(ctx).Warn("event_publish_failed", "type", eventType, "err", err)
	}
}

// HandleRetry replays a deferred write. It is the retry queue's handler.
func (r *Recorder) HandleRetry(ctx context.Context, job queue.Job) error {
	switch job.Kind {
	case RetryExecution:
		var p executionRetry
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode execution retry: %w", err)
		}
		exec := p.Execution
		if p.Visit != nil && exec.UserID == nil {
			user, err := r.store.TouchUser(ctx, *p.Visit)
			if err != nil {
				return fmt.Errorf("touch user: %w", err)
			}
			exec.UserID = &user.ID
		}
		if err := r.store.AppendExecution(ctx, exec); err != nil {
			return fmt.Errorf("append execution: %w", err)
		}
		// The row is in; only the counter is left to retry.
		if exec.Success && exec.UserID != nil {
			if _, err := r.store.IncrementUserCommands(ctx, *exec.UserID); err != nil && !isNotFound(err) {
				r.fail(ctx, RetryIncrement, incrementRetry{UserID: *exec.UserID}, err)
			}
		}
		return nil
	case RetryIncrement:
		var p incrementRetry
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode increment retry: %w", err)
		}
		if _, err := r.store.IncrementUserCommands(ctx, p.UserID); err != nil && !isNotFound(err) {
			return fmt.Errorf("increment user commands: %w", err)
		}
		return nil
	case RetryDownload:
		var p downloadRetry
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decode download retry: %w", err)
		}
		if err := r.store.AppendDownload(ctx, p.Download); err != nil {
			return fmt.Errorf("append download: %w", err)
		}
		return nil
	default:
		slog.Warn("unknown retry kind dropped", "kind", job.Kind, "job_id", job.ID)
		return nil
	}
}
