// Package shield is the pre-filter that drops rate-limited and already banned
// users before any reasoning work is spent on them.
//
// The gate fails open. A store error admits the event and logs a warning; after
// repeated errors the breaker opens and the store is only probed once per
// probe interval until it answers again.
package shield

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/circuit"
)

// Store is the read side of the shared store the gate needs.
type Store interface {
	IncrRateWindow(ctx context.Context, userID string, window time.Duration) (int64, error)
	BanExists(ctx context.Context, userID string) (bool, error)
}

const (
	ReasonRateLimited = "Rate Limit Exceeded"
	ReasonBlacklisted = "User Blacklisted"

	defaultLimit         = 5
	defaultWindow        = 60 * time.Second
	defaultProbeInterval = 5 * time.Second
)

// Admission is the gate's answer for one event.
type Admission struct {
	Admitted bool
	Reason   string
	// Count is the rate window count after this event, 0 when unknown.
	Count int64
	// Degraded is set when a check was skipped or failed and the gate failed open.
	Degraded bool
}

type Gate struct {
	store         Store
	limit         int64
	window        time.Duration
	breaker       *circuit.Breaker
	probeInterval time.Duration
	logger        *slog.Logger
	metrics       *metrics.Metrics
	now           func() time.Time

	mu        sync.Mutex
	lastProbe time.Time
}

type Option func(*Gate)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithRateLimit admits at most limit events per user per window.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(g *Gate) {
		if limit > 0 {
			g.limit = int64(limit)
		}
		if window > 0 {
			g.window = window
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(g *Gate) {
		if b != nil {
			g.breaker = b
		}
	}
}

func WithProbeInterval(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.probeInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

func New(store Store, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, errors.New("shield store is required")
	}
	g := &Gate{
		store:         store,
		limit:         defaultLimit,
		window:        defaultWindow,
		breaker:       circuit.New("shield"),
		probeInterval: defaultProbeInterval,
		logger:        slog.Default(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CheckRateLimit counts the event and reports whether it is within the limit.
// Exactly limit events pass per window; store errors allow.
func (g *Gate) CheckRateLimit(ctx context.Context, userID string) bool {
	count, ok := g.rateCount(ctx, userID)
	return !ok || count <= g.limit
}

// IsBlacklisted reports whether the user has a ban. Store errors report false.
func (g *Gate) IsBlacklisted(ctx context.Context, userID string) bool {
	banned, _ := g.banned(ctx, userID)
	return banned
}

// Admit runs the rate limit and then the blacklist check. A denied rate limit
// short-circuits before the blacklist read.
func (g *Gate) Admit(ctx context.Context, userID string) Admission {
	count, ok := g.rateCount(ctx, userID)
	if ok && count > g.limit {
		g.metrics.IncShieldDenial("rate_limited")
		g.logger.InfoContext(ctx, "shield denied event", "user_id", userID, "reason", ReasonRateLimited, "count", count, "limit", g.limit)
		return Admission{Reason: ReasonRateLimited, Count: count}
	}

	banned, banOK := g.banned(ctx, userID)
	if banned {
		g.metrics.IncShieldDenial("blacklisted")
		g.logger.InfoContext(ctx, "shield denied event", "user_id", userID, "reason", ReasonBlacklisted)
		return Admission{Reason: ReasonBlacklisted, Count: count}
	}
	return Admission{Admitted: true, Count: count, Degraded: !ok || !banOK}
}

func (g *Gate) rateCount(ctx context.Context, userID string) (int64, bool) {
	if !g.attempt() {
		g.failOpen(ctx, "rate_limit", userID, nil)
		return 0, false
	}
	count, err := g.store.IncrRateWindow(ctx, userID, g.window)
	if err != nil {
		g.record(ctx, err)
		g.failOpen(ctx, "rate_limit", userID, err)
		return 0, false
	}
	g.record(ctx, nil)
	return count, true
}

func (g *Gate) banned(ctx context.Context, userID string) (bool, bool) {
	if !g.attempt() {
		g.failOpen(ctx, "blacklist", userID, nil)
		return false, false
	}
	banned, err := g.store.BanExists(ctx, userID)
	if err != nil {
		g.record(ctx, err)
		g.failOpen(ctx, "blacklist", userID, err)
		return false, false
	}
	g.record(ctx, nil)
	return banned, true
}

// attempt reports whether the store should be called. While the breaker is
// open only one call per probe interval goes through.
func (g *Gate) attempt() bool {
	if !g.breaker.IsOpen() {
		return true
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if now.Sub(g.lastProbe) < g.probeInterval {
		return false
	}
	g.lastProbe = now
	return true
}

func (g *Gate) record(ctx context.Context, err error) {
	if err == nil {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "shield store recovered, circuit closed", "breaker", g.breaker.Name())
		}
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.mu.Lock()
		g.lastProbe = g.now()
		g.mu.Unlock()
		g.logger.WarnContext(ctx, "shield store failing, circuit opened", "breaker", g.breaker.Name(), "error", err)
	}
}

func (g *Gate) failOpen(ctx context.Context, check, userID string, err error) {
	g.metrics.IncShieldFailOpen(check)
	if err != nil {
		g.logger.WarnContext(ctx, "shield store unavailable, failing open", "check", check, "user_id", userID, "error", err)
	}
}
