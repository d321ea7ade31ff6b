package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/OFF-rtk/sentinel-auditor/internal/event"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

// Runner executes one run. *Orchestrator is the production Runner.
type Runner interface {
	Run(ctx context.Context, ev *event.AuditEvent) Result
}

// Handle identifies a submitted run. Done receives exactly one Result and is
// then closed.
type Handle struct {
	ID      uuid.UUID
	EventID string
	Done    <-chan Result
}

type job struct {
	ctx  context.Context
	ev   *event.AuditEvent
	done chan Result
}

const (
	defaultWorkers   = 8
	defaultQueueSize = 256
)

// Scheduler runs submitted events on a fixed pool of workers fed by a bounded
// queue. Submit never blocks: a full queue is reported to the caller.
type Scheduler struct {
	runner  Runner
	workers int
	queue   chan job
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	closed  bool
	started bool
	group   errgroup.Group
}

type SchedulerOption func(*Scheduler)

func WithWorkers(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithQueueSize(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.queue = make(chan job, n)
		}
	}
}

func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithSchedulerMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func NewScheduler(runner Runner, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		runner:  runner,
		workers: defaultWorkers,
		queue:   make(chan job, defaultQueueSize),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the workers. Calling it again has no effect.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.startLocked()
}

func (s *Scheduler) startLocked() {
	if s.started {
		return
	}
	s.started = true
	for i := 0; i < s.workers; i++ {
		s.group.Go(func() error {
			for j := range s.queue {
				s.metrics.SetQueueDepth(len(s.queue))
				j.done <- s.execute(j)
				close(j.done)
			}
			return nil
		})
	}
}

// Submit queues ev for a run. The run keeps ctx's values but not its
// cancellation, so it outlives the request that submitted it.
func (s *Scheduler) Submit(ctx context.Context, ev *event.AuditEvent) (Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return Handle{}, sentinel.ErrClosed
	}

	done := make(chan Result, 1)
	j := job{ctx: context.WithoutCancel(ctx), ev: ev, done: done}
	select {
	case s.queue <- j:
	default:
		s.metrics.IncQueueRejection()
		return Handle{}, sentinel.ErrQueueFull
	}
	s.metrics.SetQueueDepth(len(s.queue))
	return Handle{ID: uuid.New(), EventID: ev.EventID, Done: done}, nil
}

// Shutdown stops accepting events and waits for queued and running events to
// finish, or for ctx to end.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	// Events queued before Start still get run.
	s.startLocked()
	s.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		_ = s.group.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}

func (s *Scheduler) execute(j job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("pipeline run panicked",
				"event_id", j.ev.EventID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			res = Result{EventID: j.ev.EventID, UserID: j.ev.UserID(), Err: fmt.Errorf("run panicked: %v", r)}
		}
	}()
	return s.runner.Run(j.ctx, j.ev)
}
