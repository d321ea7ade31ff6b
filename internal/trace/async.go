package trace

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

const (
	defaultBufferSize   = 4096
	defaultBatchSize    = 64
	defaultWriteTimeout = 5 * time.Second
)

// AsyncSink decouples a slow sink from the pipeline. Write only enqueues; a
// single worker drains the buffer into the wrapped sink. Under sustained
// overload the oldest records are dropped and counted.
type AsyncSink struct {
	next    Sink
	buf     *ringBuffer
	batch   int
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics

	wake   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
	closed atomic.Bool
}

type AsyncOption func(*AsyncSink)

func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(a *AsyncSink) {
		a.logger = logger
	}
}

func WithAsyncMetrics(m *metrics.Metrics) AsyncOption {
	return func(a *AsyncSink) {
		a.metrics = m
	}
}

// WithBatchSize sets how many records the worker takes per pass.
func WithBatchSize(n int) AsyncOption {
	return func(a *AsyncSink) {
		if n > 0 {
			a.batch = n
		}
	}
}

// WithWriteTimeout bounds each write to the wrapped sink.
func WithWriteTimeout(d time.Duration) AsyncOption {
	return func(a *AsyncSink) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAsyncSink starts the worker. Close must be called to flush and stop it.
func NewAsyncSink(next Sink, capacity int, opts ...AsyncOption) *AsyncSink {
	a := &AsyncSink{
		next:    next,
		buf:     newRingBuffer(capacity),
		batch:   defaultBatchSize,
		timeout: defaultWriteTimeout,
		logger:  slog.Default(),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	go a.run()
	return a
}

func (a *AsyncSink) Name() string { return a.next.Name() }

func (a *AsyncSink) Write(_ context.Context, r Record) error {
	if a.closed.Load() {
		return sentinel.ErrClosed
	}
	if a.buf.enqueue(r) {
		a.metrics.IncTraceDropped(a.next.Name())
	}
	select {
	case a.wake <- struct{}{}:
	default:
	}
	return nil
}

// Close stops accepting records, drains what is buffered and waits for the
// worker until ctx ends.
func (a *AsyncSink) Close(ctx context.Context) error {
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.stop)
	})
	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pending is the number of buffered records.
func (a *AsyncSink) Pending() int { return a.buf.len() }

// Dropped is the number of records lost to overflow.
func (a *AsyncSink) Dropped() int64 { return a.buf.droppedCount() }

func (a *AsyncSink) run() {
	defer close(a.done)
	for {
		select {
		case <-a.wake:
			a.drain()
		case <-a.stop:
			a.drain()
			return
		}
	}
}

func (a *AsyncSink) drain() {
	for {
		batch := a.buf.dequeueBatch(a.batch)
		if len(batch) == 0 {
			return
		}
		for _, r := range batch {
			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			err := a.next.Write(ctx, r)
			cancel()
			if err != nil {
				a.metrics.IncTraceSinkError(a.next.Name())
				a.logger.Warn("async trace write failed",
					"sink", a.next.Name(),
					"event_id", r.EventID,
					"error", err,
				)
			}
		}
	}
}
