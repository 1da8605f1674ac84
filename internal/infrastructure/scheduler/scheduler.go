// Package scheduler runs the ledger's background maintenance tasks on a small
// worker pool with per-attempt timeouts and bounded retries.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrNotRunning = errors.New("scheduler: not running")
	// ErrQueueFull means every worker is busy and the queue is at capacity.
	ErrQueueFull     = errors.New("scheduler: queue full")
	ErrUnknownTask   = errors.New("scheduler: unknown task")
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")
)

// Task names.
const (
	TaskBonusRecovery = "bonus_recovery"
	TaskStockAudit    = "stock_audit"
)

// Task is one unit of maintenance work. It must return when ctx ends.
type Task func(ctx context.Context) error

// Run records one submission of a task, retries included.
type Run struct {
	ID       uuid.UUID
	Task     string
	Attempts int
	Err      error
	Queued   time.Time
	Started  time.Time
	Finished time.Time
}

func (r Run) OK() bool { return !r.Finished.IsZero() && r.Err == nil }

type Config struct {
	Workers    int
	JobTimeout time.Duration // per attempt
	// RetryAttempts is how many times a failed run is tried again, RetryDelay apart.
	RetryAttempts int
	RetryDelay    time.Duration
	QueueSize     int
}

func DefaultConfig() Config {
	return Config{Workers: 2, JobTimeout: 5 * time.Minute, RetryAttempts: 3, RetryDelay: time.Minute, QueueSize: 32}
}

func (c Config) validate() error {
	switch {
	case c.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	case c.JobTimeout <= 0:
		return fmt.Errorf("%w: job timeout must be positive", ErrInvalidConfig)
	case c.RetryAttempts < 0:
		return fmt.Errorf("%w: retry attempts cannot be negative", ErrInvalidConfig)
	}
	return nil
}

type registration struct {
	task  Task
	every time.Duration
}

// Scheduler runs registered tasks on demand and on fixed intervals.
type Scheduler struct {
	cfg Config
	log *zap.Logger
	now func() time.Time

	mu      sync.Mutex
	tasks   map[string]registration
	queue   chan *Run
	stop    context.CancelFunc
	running bool
	wg      sync.WaitGroup

	// observe sees every run once it is final.
	observe func(Run)
}

func New(cfg Config, log *zap.Logger) (*Scheduler, error) {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		tasks: make(map[string]registration),
		queue: make(chan *Run, cfg.QueueSize),
	}, nil
}

// Register adds a task before Start. A positive every also runs it on that
// interval, the first time right after Start.
func (s *Scheduler) Register(name string, task Task, every time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[name] = registration{task: task, every: every}
}

// Start launches the workers and interval triggers. It is a no-op when running.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	ctx, s.stop = context.WithCancel(ctx)
	s.running = true

	for range s.cfg.Workers {
		s.wg.Go(func() { s.work(ctx) })
	}
	periodic := 0
	for name, reg := range s.tasks {
		if reg.every > 0 {
			periodic++
			s.wg.Go(func() { s.tick(ctx, name, reg.every) })
		}
	}
	s.log.Info("Maintenance scheduler started",
		zap.Int("workers", s.cfg.Workers),
		zap.Int("periodic_tasks", periodic),
		zap.Duration("job_timeout", s.cfg.JobTimeout),
	)
	return nil
}

// Stop cancels running work and waits for it until ctx ends.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.stop()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.log.Info("Maintenance scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("Maintenance scheduler stop timed out")
		return ctx.Err()
	}
}

// Submit queues one run of a registered task without waiting for it.
func (s *Scheduler) Submit(name string) (uuid.UUID, error) {
	s.mu.Lock()
	running := s.running
	_, known := s.tasks[name]
	s.mu.Unlock()
	switch {
	case !running:
		return uuid.Nil, ErrNotRunning
	case !known:
		return uuid.Nil, fmt.Errorf("%w: %s", ErrUnknownTask, name)
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	run := &Run{ID: id, Task: name, Queued: s.now()}
	select {
	case s.queue <- run:
		s.log.Debug("Job queued", zap.Stringer("job_id", id), zap.String("task", name))
		return id, nil
	default:
		return uuid.Nil, ErrQueueFull
	}
}

func (s *Scheduler) tick(ctx context.Context, name string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if _, err := s.Submit(name); err != nil && ctx.Err() == nil {
			s.log.Warn("Periodic task not queued", zap.String("task", name), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case run := <-s.queue:
			s.execute(ctx, run)
		}
	}
}

// execute runs the task until it succeeds, retries are exhausted or the
// scheduler stops.
func (s *Scheduler) execute(ctx context.Context, run *Run) {
	s.mu.Lock()
	task := s.tasks[run.Task].task
	s.mu.Unlock()
	log := s.log.With(zap.Stringer("job_id", run.ID), zap.String("task", run.Task))

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.RetryDelay), uint64(s.cfg.RetryAttempts)),
		ctx,
	)
	run.Started = s.now()
	run.Err = backoff.RetryNotify(func() error {
		run.Attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
		defer cancel()
		return guard(attemptCtx, task)
	}, policy, func(err error, wait time.Duration) {
		log.Warn("Job attempt failed", zap.Int("attempt", run.Attempts), zap.Duration("retry_in", wait), zap.Error(err))
	})
	run.Finished = s.now()

	if run.Err != nil {
		log.Error("Job failed", zap.Int("attempts", run.Attempts), zap.Error(run.Err))
	} else {
		log.Debug("Job completed", zap.Int("attempts", run.Attempts), zap.Duration("took", run.Finished.Sub(run.Started)))
	}
	if s.observe != nil {
		s.observe(*run)
	}
}

// guard turns a panicking task into an error.
func guard(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return task(ctx)
}
