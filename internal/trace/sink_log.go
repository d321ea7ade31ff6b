package trace

import (
	"context"
	"log/slog"
)

// LogSink writes each record as a structured log line.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(ctx context.Context, r Record) error {
	level := slog.LevelInfo
	if r.Status == StatusFailed {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "agent trace",
		"trace_id", r.ID.String(),
		"event_id", r.EventID,
		"stage", string(r.Stage),
		"status", string(r.Status),
		"detail", map[string]any(r.Detail),
	)
	return nil
}
