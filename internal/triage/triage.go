// Package triage decides whether an event needs investigation and, if so,
// which policy topics to look up.
package triage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/OFF-rtk/sentinel-auditor/internal/event"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/tracing"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/strings"
)

//go:generate mockgen -source=triage.go -destination=mocks/mocks.go -package=mocks

// Reasoner extracts policy search phrases from an event.
type Reasoner interface {
	ExtractSearchTerms(ctx context.Context, ev *event.AuditEvent) ([]string, error)
}

type Status string

const (
	StatusSafe        Status = "SAFE"
	StatusInvestigate Status = "INVESTIGATE"
)

const (
	safeReason       = "Low risk score and no anomalies."
	defaultThreshold = 0.5
	maxTerms         = 5
)

// DefaultTerms are searched when the reasoner cannot supply terms.
var DefaultTerms = []string{"general security policy", "suspicious activity"}

// Plan is the triage outcome. SearchTerms is set only for INVESTIGATE.
type Plan struct {
	Status      Status
	Reason      string
	SearchTerms []string
	// Fallback is set when DefaultTerms replaced the reasoner's answer.
	Fallback bool
}

type Stage struct {
	reasoner  Reasoner
	threshold float64
	logger    *slog.Logger
}

type Option func(*Stage)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		s.logger = logger
	}
}

// WithRiskThreshold sets the risk score below which an event with no anomaly
// vectors is SAFE.
func WithRiskThreshold(t float64) Option {
	return func(s *Stage) {
		if t > 0 {
			s.threshold = t
		}
	}
}

func New(reasoner Reasoner, opts ...Option) (*Stage, error) {
	if reasoner == nil {
		return nil, errors.New("triage reasoner is required")
	}
	s := &Stage{reasoner: reasoner, threshold: defaultThreshold, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Evaluate never fails: reasoner problems degrade to DefaultTerms and the event
// is still investigated.
func (s *Stage) Evaluate(ctx context.Context, ev *event.AuditEvent) Plan {
	sa := ev.SentinelAnalysis
	if sa.RiskScore < s.threshold && len(sa.AnomalyVectors) == 0 {
		return Plan{Status: StatusSafe, Reason: safeReason}
	}

	ctx, end := tracing.StartSpan(ctx, "triage.extract_terms")
	terms, err := s.reasoner.ExtractSearchTerms(ctx, ev)
	end(err)
	if err != nil {
		s.logger.WarnContext(ctx, "triage reasoner failed, using default terms", "event_id", ev.EventID, "error", err)
		return fallbackPlan()
	}

	terms = strings.DedupeAndTrim(terms)
	if len(terms) == 0 {
		s.logger.WarnContext(ctx, "triage reasoner returned no terms, using default terms", "event_id", ev.EventID)
		return fallbackPlan()
	}
	if len(terms) > maxTerms {
		terms = terms[:maxTerms]
	}
	return Plan{Status: StatusInvestigate, SearchTerms: terms}
}

func fallbackPlan() Plan {
	return Plan{
		Status:      StatusInvestigate,
		SearchTerms: append([]string(nil), DefaultTerms...),
		Fallback:    true,
	}
}
