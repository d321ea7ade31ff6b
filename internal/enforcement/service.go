// Package enforcement turns verdicts into ban and strike writes in the store
// shared with the upstream detector.
//
// Enforcement fails closed: when the store cannot be written, ConfirmBlock
// returns an error and the block is reported as decided but not enforced. The
// shield gate, which reads the same store, fails open instead.
package enforcement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/models"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/ports"
	"github.com/OFF-rtk/sentinel-auditor/internal/event"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
	"github.com/OFF-rtk/sentinel-auditor/internal/verdict"
)

// Store is the subset of ports.Store the enforcer writes to.
type Store interface {
	IncrStrikes(ctx context.Context, userID string, ttl time.Duration) (int64, error)
	SetBan(ctx context.Context, userID, value string, ttl time.Duration) error
	DeleteBan(ctx context.Context, userID string) (bool, error)
}

const (
	defaultStrikeTTL   = 7 * 24 * time.Hour
	defaultBlockReason = "Blocked by Sentinel"
	defaultPardonNote  = "False positive"

	// upstreamBlock is the detector decision a pardon overrides.
	upstreamBlock = "BLOCK"
)

// ErrNotEnforced marks a BLOCK verdict that could not be written.
var ErrNotEnforced = errors.New("block decided but not enforced")

type Service struct {
	store     Store
	notifier  ports.Notifier
	tiers     models.TierPolicy
	strikeTTL time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithNotifier(n ports.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

func WithTierPolicy(p models.TierPolicy) Option {
	return func(s *Service) {
		s.tiers = p
	}
}

func WithStrikeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.strikeTTL = ttl
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("enforcement store is required")
	}
	svc := &Service{
		store:     store,
		tiers:     models.DefaultTierPolicy,
		strikeTTL: defaultStrikeTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ConfirmBlock records a strike and writes a ban sized by the new strike count,
// replacing any ban already present (including a provisional one set upstream).
// The strike is kept even if the ban write then fails.
func (s *Service) ConfirmBlock(ctx context.Context, userID, reason string) (*models.BlockOutcome, error) {
	if reason == "" {
		reason = defaultBlockReason
	}
	strikes, err := s.store.IncrStrikes(ctx, userID, s.strikeTTL)
	if err != nil {
		s.metrics.IncEnforcement("block", "error")
		s.metrics.IncUnenforcedBlock()
		s.logger.ErrorContext(ctx, "block not enforced", "user_id", userID, "stage", "strikes", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotEnforced, err)
	}

	tier, ttl := s.tiers.For(strikes)
	value := models.BanValue(tier, strikes, reason)
	if err := s.store.SetBan(ctx, userID, value, ttl); err != nil {
		s.metrics.IncEnforcement("block", "error")
		s.metrics.IncUnenforcedBlock()
		s.logger.ErrorContext(ctx, "block not enforced", "user_id", userID, "stage", "ban", "strikes", strikes, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrNotEnforced, err)
	}

	out := &models.BlockOutcome{
		UserID:  userID,
		Strikes: strikes,
		Tier:    tier,
		TTL:     ttl,
		Key:     models.BlacklistKey(userID),
		Value:   value,
	}
	s.metrics.IncEnforcement("block", "ok")
	ports.LogAudit(ctx, s.logger, "ban_confirmed",
		"user_id", userID,
		"strikes", strikes,
		"tier", string(tier),
		"ttl_seconds", int64(ttl.Seconds()),
	)
	return out, nil
}

// Pardon removes the user's ban. It succeeds whether or not a ban existed and
// never touches strikes. A notice is sent when email is known; its result is
// reported but cannot fail the pardon.
func (s *Service) Pardon(ctx context.Context, userID, email, reason string) (*models.PardonOutcome, error) {
	existed, err := s.store.DeleteBan(ctx, userID)
	if err != nil {
		s.metrics.IncEnforcement("pardon", "error")
		s.logger.ErrorContext(ctx, "pardon failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("pardon %s: %w", userID, err)
	}
	s.metrics.IncEnforcement("pardon", "ok")

	out := &models.PardonOutcome{
		UserID:  userID,
		Key:     models.BlacklistKey(userID),
		Existed: existed,
	}
	ports.LogAudit(ctx, s.logger, "ban_pardoned", "user_id", userID, "ban_existed", existed)

	if email != "" && s.notifier != nil {
		if reason == "" {
			reason = defaultPardonNote
		}
		out.Notified = s.notifier.SendPardonNotice(ctx, email, reason)
		if !out.Notified {
			s.logger.WarnContext(ctx, "pardon notice not delivered", "user_id", userID)
		}
	}
	return out, nil
}

// Action is what Apply did.
type Action string

const (
	ActionBlockConfirmed Action = "BLOCK_CONFIRMED"
	ActionPardoned       Action = "FALSE_POSITIVE_PARDONED"
	ActionIdle           Action = "IDLE"
)

// Outcome is the result of Apply. Exactly one of Block and Pardon is set
// unless Action is ActionIdle.
type Outcome struct {
	Action Action
	Block  *models.BlockOutcome
	Pardon *models.PardonOutcome
}

// Apply enforces a verdict: BLOCK confirms a ban; ALLOW pardons only when the
// detector itself had decided BLOCK, otherwise nothing changes.
func (s *Service) Apply(ctx context.Context, ev *event.AuditEvent, v verdict.Verdict) (*Outcome, error) {
	userID := ev.UserID()
	if v.Decision == verdict.Block {
		block, err := s.ConfirmBlock(ctx, userID, v.Reasoning)
		if err != nil {
			return nil, err
		}
		return &Outcome{Action: ActionBlockConfirmed, Block: block}, nil
	}

	if ev.SentinelAnalysis.Decision == upstreamBlock {
		pardon, err := s.Pardon(ctx, userID, ev.Actor.Email, v.Reasoning)
		if err != nil {
			return nil, err
		}
		return &Outcome{Action: ActionPardoned, Pardon: pardon}, nil
	}
	return &Outcome{Action: ActionIdle}, nil
}
