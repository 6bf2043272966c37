// Package queue replays analytics writes that failed on the request path.
// Entries live in a Redis stream read by a consumer group; a write that keeps
// failing is parked on a dead-letter stream instead of being dropped.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"termfolio/internal/util"
)

// Job is one deferred write. Payload is the JSON-encoded record.
type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	LastError  string          `json:"lastError,omitempty"`
}

// Handler applies one job. A returned error schedules another attempt.
type Handler func(context.Context, Job) error

type Config struct {
	Client redis.UniversalClient
	Stream string
	Group  string
	// Consumer prefixes the consumer names; a random id when empty.
	Consumer    string
	MaxAttempts int
	// BaseDelay doubles after every failed attempt up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Block     time.Duration
	ClaimIdle time.Duration
	MaxLen    int64
	Logger    *slog.Logger
}

// RetryQueue is a Redis stream of pending analytics writes.
type RetryQueue struct {
	client    redis.UniversalClient
	stream    string
	dead      string
	group     string
	consumer  string
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	block     time.Duration
	claimIdle time.Duration
	maxLen    int64
	logger    *slog.Logger
	now       func() time.Time
}

func NewRetryQueue(cfg Config) (*RetryQueue, error) {
	if cfg.Client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("retry stream required")
	}
	q := &RetryQueue{
		client:    cfg.Client,
		stream:    stream,
		dead:      stream + ":dead",
		group:     orDefault(strings.TrimSpace(cfg.Group), "analytics"),
		consumer:  orDefault(strings.TrimSpace(cfg.Consumer), util.NewID()),
		attempts:  cfg.MaxAttempts,
		baseDelay: cfg.BaseDelay,
		maxDelay:  cfg.MaxDelay,
		block:     cfg.Block,
		claimIdle: cfg.ClaimIdle,
		maxLen:    cfg.MaxLen,
		now:       time.Now,
	}
	if q.attempts <= 0 {
		q.attempts = 5
	}
	if q.baseDelay <= 0 {
		q.baseDelay = time.Second
	}
	if q.maxDelay < q.baseDelay {
		q.maxDelay = max(time.Minute, q.baseDelay)
	}
	if q.block <= 0 {
		q.block = 5 * time.Second
	}
	if q.claimIdle <= 0 {
		q.claimIdle = 30 * time.Second
	}
	if q.maxLen <= 0 {
		q.maxLen = 10000
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	q.logger = logger.With("component", "retry_queue", "stream", stream)
	return q, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Enqueue encodes payload and appends it to the stream as attempt zero.
func (q *RetryQueue) Enqueue(ctx context.Context, kind string, payload any) (Job, error) {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return Job{}, errors.New("job kind required")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s payload: %w", kind, err)
	}
	job := Job{ID: util.NewID(), Kind: kind, Payload: raw, EnqueuedAt: q.now().UTC()}
	if err := q.client.XAdd(ctx, q.entry(q.stream, job)).Err(); err != nil {
		return Job{}, fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return job, nil
}

// Backoff is the wait before attempt n+1 after attempt n failed.
func (q *RetryQueue) Backoff(attempt int) time.Duration {
	d := q.baseDelay
	for i := 1; i < attempt && d < q.maxDelay; i++ {
		d *= 2
	}
	return min(d, q.maxDelay)
}

// Start runs workers consumers until ctx is done. Entries left pending by a
// crashed consumer are claimed after ClaimIdle.
func (q *RetryQueue) Start(ctx context.Context, workers int, handler Handler) {
	err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		q.logger.Warn("retry_queue_group_create_failed", "err", err)
	}
	for i := range max(workers, 1) {
		go q.consume(ctx, fmt.Sprintf("%s-%d", q.consumer, i), handler)
	}
}

func (q *RetryQueue) consume(ctx context.Context, consumer string, handler Handler) {
	for ctx.Err() == nil {
		claimed, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.stream,
			Group:    q.group,
			Consumer: consumer,
			MinIdle:  q.claimIdle,
			Start:    "0-0",
			Count:    10,
		}).Result()
		if err == nil {
			for _, msg := range claimed {
				q.process(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    10,
			Block:    q.block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				q.logger.Warn("retry_queue_read_failed", "consumer", consumer, "err", err)
				sleepCtx(ctx, q.baseDelay)
			}
			continue
		}
		for _, s := range streams {
			for _, msg := range s.Messages {
				q.process(ctx, msg, handler)
			}
		}
	}
}

func (q *RetryQueue) process(ctx context.Context, msg redis.XMessage, handler Handler) {
	job, ok := decodeEntry(msg)
	if !ok {
		q.logger.Warn("retry_queue_bad_entry", "msg_id", msg.ID)
		q.settle(ctx, msg.ID)
		return
	}
	job.Attempt++
	err := handler(ctx, job)
	if err == nil {
		q.settle(ctx, msg.ID)
		return
	}
	job.LastError = err.Error()
	if job.Attempt >= q.attempts {
		q.logger.Error("retry_queue_dead_letter", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "err", err)
		if err := q.move(ctx, msg.ID, q.dead, job); err != nil {
			q.logger.Error("retry_queue_dead_letter_failed", "job_id", job.ID, "err", err)
		}
		return
	}
	q.logger.Warn("retry_queue_attempt_failed", "job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt, "err", err)
	if !sleepCtx(ctx, q.Backoff(job.Attempt)) {
		return
	}
	if err := q.move(ctx, msg.ID, q.stream, job); err != nil {
		q.logger.Warn("retry_queue_requeue_failed", "job_id", job.ID, "err", err)
	}
}

// move appends job to stream and retires msgID in one transaction, so a
// failure leaves the original entry pending for a later claim.
func (q *RetryQueue) move(ctx context.Context, msgID, stream string, job Job) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, q.entry(stream, job))
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RetryQueue) settle(ctx context.Context, msgID string) {
	pipe := q.client.TxPipeline()
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, _ = pipe.Exec(ctx)
}

// DeadLetters returns up to n parked jobs, oldest first.
func (q *RetryQueue) DeadLetters(ctx context.Context, n int64) ([]Job, error) {
	msgs, err := q.client.XRangeN(ctx, q.dead, "-", "+", n).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Job, 0, len(msgs))
	for _, msg := range msgs {
		if job, ok := decodeEntry(msg); ok {
			out = append(out, job)
		}
	}
	return out, nil
}

func (q *RetryQueue) entry(stream string, job Job) *redis.XAddArgs {
	return &redis.XAddArgs{
		Stream: stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: map[string]any{
			"id":       job.ID,
			"kind":     job.Kind,
			"payload":  string(job.Payload),
			"attempt":  strconv.Itoa(job.Attempt),
			"enqueued": job.EnqueuedAt.Format(time.RFC3339Nano),
			"error":    job.LastError,
		},
	}
}

func decodeEntry(msg redis.XMessage) (Job, bool) {
	field := func(k string) string {
		v, _ := msg.Values[k].(string)
		return v
	}
	job := Job{
		ID:        field("id"),
		Kind:      field("kind"),
		Payload:   json.RawMessage(field("payload")),
		LastError: field("error"),
	}
	if job.ID == "" || job.Kind == "" {
		return Job{}, false
	}
	job.Attempt, _ = strconv.Atoi(field("attempt"))
	job.EnqueuedAt, _ = time.Parse(time.RFC3339Nano, field("enqueued"))
	return job, true
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
