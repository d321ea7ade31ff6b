// Package trace records one entry per pipeline stage transition and fans it out
// to the configured sinks. A failing sink never affects the run being traced.
package trace

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
)

type Stage string

const (
	StageShield   Stage = "SHIELD"
	StageTriage   Stage = "TRIAGE"
	StageIntel    Stage = "INTEL"
	StageJudge    Stage = "JUDGE"
	StageEnforcer Stage = "ENFORCER"
)

type Status string

const (
	StatusThinking              Status = "THINKING"
	StatusCompleted             Status = "COMPLETED"
	StatusBlocked               Status = "BLOCKED"
	StatusDuplicate             Status = "DUPLICATE"
	StatusFailed                Status = "FAILED"
	StatusBlockConfirmed        Status = "BLOCK_CONFIRMED"
	StatusFalsePositivePardoned Status = "FALSE_POSITIVE_PARDONED"
	StatusIdle                  Status = "IDLE"
)

// Detail is free-form context attached to a record.
type Detail map[string]any

type Record struct {
	ID      uuid.UUID `json:"id"`
	EventID string    `json:"event_id"`
	Stage   Stage     `json:"stage"`
	Status  Status    `json:"status"`
	Detail  Detail    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

// Sink persists or forwards records.
type Sink interface {
	Name() string
	Write(ctx context.Context, r Record) error
}

// Closer is implemented by sinks holding background work.
type Closer interface {
	Close(ctx context.Context) error
}

type Recorder struct {
	sinks   []Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Recorder)

func WithSink(s Sink) Option {
	return func(r *Recorder) {
		if s != nil {
			r.sinks = append(r.sinks, s)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record builds a record and writes it to every sink in order.
func (r *Recorder) Record(ctx context.Context, eventID string, stage Stage, status Status, detail Detail) Record {
	rec := Record{
		ID:      uuid.New(),
		EventID: eventID,
		Stage:   stage,
		Status:  status,
		Detail:  detail,
		At:      r.now().UTC(),
	}
	for _, s := range r.sinks {
		if err := s.Write(ctx, rec); err != nil {
			r.metrics.IncTraceSinkError(s.Name())
			r.logger.WarnContext(ctx, "trace sink write failed",
				"sink", s.Name(),
				"event_id", eventID,
				"error", err,
			)
		}
	}
	return rec
}

// Close flushes sinks that buffer records.
func (r *Recorder) Close(ctx context.Context) error {
	var first error
	for _, s := range r.sinks {
		if c, ok := s.(Closer); ok {
			if err := c.Close(ctx); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}
