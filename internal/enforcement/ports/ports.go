// Package ports defines the interfaces shared by the shield gate, the enforcer
// and the admin CLI.
package ports

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

// Store is the shared key-value store. Every method takes a user or event id and
// builds the cross-service key itself. Errors wrap sentinel.ErrUnavailable when
// the store could not be reached.
type Store interface {
	// IncrRateWindow counts one event in the user's window. The window TTL is
	// set only when the count becomes 1.
	IncrRateWindow(ctx context.Context, userID string, window time.Duration) (int64, error)

	// BanExists reports whether blacklist:{user_id} is present.
	BanExists(ctx context.Context, userID string) (bool, error)

	// IncrStrikes increments global_strikes:{user_id} and refreshes its TTL in
	// one transaction, returning the new count.
	IncrStrikes(ctx context.Context, userID string, ttl time.Duration) (int64, error)

	// SetBan writes blacklist:{user_id}, replacing any existing value and TTL.
	SetBan(ctx context.Context, userID, value string, ttl time.Duration) error

	// DeleteBan removes blacklist:{user_id} and reports whether it existed.
	DeleteBan(ctx context.Context, userID string) (bool, error)

	// Strikes returns the current strike count, 0 when absent.
	Strikes(ctx context.Context, userID string) (int64, error)

	// Ban returns the ban value and remaining TTL. sentinel.ErrNotFound when absent.
	Ban(ctx context.Context, userID string) (string, time.Duration, error)

	// MarkSeen records eventID and reports whether this is its first delivery.
	MarkSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// ForgetSeen drops the marker so a later delivery of eventID runs again.
	ForgetSeen(ctx context.Context, eventID string) error

	Ping(ctx context.Context) error
}

// Notifier delivers best-effort pardon notices.
type Notifier interface {
	SendPardonNotice(ctx context.Context, email, reason string) bool
}

// LogAudit logs a security-relevant transition with log_type=audit so it can
// be routed separately from operational logs.
func LogAudit(ctx context.Context, logger *slog.Logger, event string, attrs ...any) {
	if logger == nil {
		return
	}
	if requestID := middleware.GetReqID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "audit")
	logger.InfoContext(ctx, event, args...)
}
