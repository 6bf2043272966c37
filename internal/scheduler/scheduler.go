// Package scheduler runs named background jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var (
	ErrUnknownJob   = errors.New("unknown job")
	ErrDuplicateJob = errors.New("job already registered")
)

// Task is the unit of work run by a job.
type Task func(ctx context.Context) error

// RunObserver is notified after every run.
type RunObserver func(job string, err error, took time.Duration)

// Status reports one job's state.
type Status struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Running   bool      `json:"running"`
	LastRun   time.Time `json:"lastRun,omitempty"`
	LastError string    `json:"lastError,omitempty"`
	NextRun   time.Time `json:"nextRun,omitempty"`
}

type job struct {
	name     string
	spec     string
	schedule cron.Schedule
	task     Task
	entry    cron.EntryID
	running  bool
	lastRun  time.Time
	lastErr  error
	inFlight sync.Mutex
}

// Scheduler owns a cron runner in UTC. Jobs are registered stopped.
type Scheduler struct {
	mu       sync.Mutex
	cron     *cron.Cron
	jobs     map[string]*job
	timeout  time.Duration
	logger   *slog.Logger
	observer RunObserver
	baseCtx  context.Context
	cancel   context.CancelFunc
}

type Option func(*Scheduler)

// WithTimeout bounds each run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

func WithObserver(o RunObserver) Option {
	return func(s *Scheduler) { s.observer = o }
}

func New(opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		jobs:    make(map[string]*job),
		timeout: 10 * time.Minute,
		logger:  slog.Default(),
		baseCtx: ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "scheduler")
	s.cron.Start()
	return s
}

// Register adds a job with a standard five-field cron spec.
func (s *Scheduler) Register(name, spec string, task Task) error {
	if name == "" || task == nil {
		return errors.New("job name and task are required")
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("parse schedule for %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrDuplicateJob)
	}
	s.jobs[name] = &job{name: name, spec: spec, schedule: sched, task: task}
	return nil
}

// Start schedules a registered job. Starting a running job is a no-op.
func (s *Scheduler) Start(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownJob)
	}
	if j.running {
		return nil
	}
	j.entry = s.cron.Schedule(j.schedule, cron.FuncJob(func() { s.run(j) }))
	j.running = true
	s.logger.Info("job_started", "job", name, "schedule", j.spec)
	return nil
}

// Stop unschedules a job. A run already in progress finishes.
func (s *Scheduler) Stop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownJob)
	}
	if !j.running {
		return nil
	}
	s.cron.Remove(j.entry)
	j.running = false
	j.entry = 0
	s.logger.Info("job_stopped", "job", name)
	return nil
}

func (s *Scheduler) StartAll() {
	for _, name := range s.names() {
		_ = s.Start(name)
	}
}

func (s *Scheduler) StopAll() {
	for _, name := range s.names() {
		_ = s.Stop(name)
	}
}

// Shutdown stops all jobs, cancels in-flight runs and waits for them.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.StopAll()
	s.cancel()
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status lists jobs sorted by name.
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]Status, 0, len(s.jobs))
	for _, j := range s.jobs {
		st := Status{
			Name:     j.name,
			Schedule: j.spec,
			Running:  j.running,
			LastRun:  j.lastRun,
		}
		if j.lastErr != nil {
			st.LastError = j.lastErr.Error()
		}
		if j.running {
			st.NextRun = s.cron.Entry(j.entry).Next
		}
		res = append(res, st)
	}
	sort.Slice(res, func(i, k int) bool { return res[i].Name < res[k].Name })
	return res
}

// RunNow executes a job synchronously, regardless of whether it is started.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	j, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownJob)
	}
	return s.execute(ctx, j)
}

func (s *Scheduler) run(j *job) {
	_ = s.execute(s.baseCtx, j)
}

// execute serializes runs of the same job.
func (s *Scheduler) execute(ctx context.Context, j *job) error {
	j.inFlight.Lock()
	defer j.inFlight.Unlock()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := j.task(ctx)
	took := time.Since(start)

	s.mu.Lock()
	j.lastRun = start.UTC()
	j.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("job_failed", "job", j.name, "duration_ms", took.Milliseconds(), "err", err)
	} else {
		s.logger.Info("job_completed", "job", j.name, "duration_ms", took.Milliseconds())
	}
	if s.observer != nil {
		s.observer(j.name, err, took)
	}
	return err
}

func (s *Scheduler) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
