package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// SeenMarker records event ids. MarkSeen reports true on the first call for an
// id; ForgetSeen undoes it.
type SeenMarker interface {
	MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	ForgetSeen(ctx context.Context, eventID string) error
}

// RedeliveryGuard drops events whose id was already processed within ttl.
// Store errors let the event through. A run that fails is released so the
// sender's retry is processed.
type RedeliveryGuard struct {
	store  SeenMarker
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedeliveryGuard(store SeenMarker, ttl time.Duration, logger *slog.Logger) *RedeliveryGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedeliveryGuard{store: store, ttl: ttl, logger: logger}
}

// FirstDelivery reports whether eventID should be processed. Events without an
// id are always processed.
func (g *RedeliveryGuard) FirstDelivery(ctx context.Context, eventID string) bool {
	if eventID == "" {
		return true
	}
	first, err := g.store.MarkSeen(ctx, eventID, g.ttl)
	if err != nil {
		g.logger.WarnContext(ctx, "redelivery check failed, processing event", "event_id", eventID, "error", err)
		return true
	}
	return first
}

// Release forgets eventID after a failed run.
func (g *RedeliveryGuard) Release(ctx context.Context, eventID string) {
	if eventID == "" {
		return
	}
	if err := g.store.ForgetSeen(ctx, eventID); err != nil {
		g.logger.WarnContext(ctx, "redelivery release failed, retries will be dropped until the marker expires",
			"event_id", eventID, "error", err)
	}
}
