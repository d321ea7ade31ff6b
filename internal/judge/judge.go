// Package judge decides ALLOW or BLOCK with a two-tier reasoner: a junior
// analyst answers first and a senior one takes over when the junior is unsure.
package judge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/OFF-rtk/sentinel-auditor/internal/event"
	"github.com/OFF-rtk/sentinel-auditor/internal/intel"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/tracing"
	"github.com/OFF-rtk/sentinel-auditor/internal/reasoner"
	"github.com/OFF-rtk/sentinel-auditor/internal/verdict"
)

//go:generate mockgen -source=judge.go -destination=mocks/mocks.go -package=mocks

// Reasoner produces raw judge replies. SeniorJudge may return an unparsable
// reply as Raw.Text together with an error.
type Reasoner interface {
	JuniorJudge(ctx context.Context, ev *event.AuditEvent, policies []string) (reasoner.Raw, error)
	SeniorJudge(ctx context.Context, ev *event.AuditEvent, policies []string, prior string) (reasoner.Raw, error)
}

const (
	defaultEscalation  = 90
	salvageConfidence  = 80
	noJuniorReasoning  = "Junior analyst returned no usable verdict."
	inconclusiveReason = "CISO analysis inconclusive, defaulting to BLOCK based on anomaly evidence"
)

var (
	decisionPattern   = regexp.MustCompile(`(?i)decision"?\s*[:=]?\s*"?(BLOCK|ALLOW|CHALLENGE)\b`)
	confidencePattern = regexp.MustCompile(`(?i)confidence"?\s*[:=]?\s*"?(\d+)`)
	reasoningPattern  = regexp.MustCompile(`(?i)reasoning"?\s*[:=]?\s*"([^"]+)"`)
)

type Stage struct {
	reasoner   Reasoner
	escalation int
	logger     *slog.Logger
}

type Option func(*Stage)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Stage) {
		s.logger = logger
	}
}

// WithEscalationThreshold sets the junior confidence at or above which no
// senior call is made.
func WithEscalationThreshold(t int) Option {
	return func(s *Stage) {
		if t >= 0 && t <= 100 {
			s.escalation = t
		}
	}
}

func New(r Reasoner, opts ...Option) (*Stage, error) {
	if r == nil {
		return nil, errors.New("judge reasoner is required")
	}
	s := &Stage{reasoner: r, escalation: defaultEscalation, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Judge always returns a verdict. A junior failure escalates; a senior failure
// salvages what it can from the reply and otherwise blocks.
func (s *Stage) Judge(ctx context.Context, ev *event.AuditEvent, excerpts []intel.Excerpt) verdict.Verdict {
	policies := intel.Texts(excerpts)

	jctx, end := tracing.StartSpan(ctx, "judge.junior")
	raw, err := s.reasoner.JuniorJudge(jctx, ev, policies)
	end(err)

	prior := noJuniorReasoning
	if err != nil {
		s.logger.WarnContext(ctx, "junior judge failed, escalating", "event_id", ev.EventID, "error", err)
	} else {
		junior := Normalize(raw, verdict.Junior)
		if junior.Confidence >= s.escalation {
			return junior
		}
		s.logger.InfoContext(ctx, "escalating to senior judge",
			"event_id", ev.EventID,
			"junior_confidence", junior.Confidence,
		)
		prior = junior.Reasoning
	}

	sctx, end := tracing.StartSpan(ctx, "judge.senior")
	raw, err = s.reasoner.SeniorJudge(sctx, ev, policies, prior)
	end(err)
	if err != nil {
		text := raw.Text
		if text == "" {
			text = err.Error()
		}
		s.logger.WarnContext(ctx, "senior judge reply unusable, salvaging", "event_id", ev.EventID, "error", err)
		return Salvage(text)
	}
	return Normalize(raw, verdict.Senior)
}

// Normalize turns a decoded reply into a strict verdict. It accepts "verdict"
// for "decision" and "reason" for "reasoning". A missing decision is BLOCK and
// missing reasoning is synthesized.
func Normalize(raw reasoner.Raw, model verdict.Model) verdict.Verdict {
	f := raw.Fields
	decision := verdict.ParseDecision(firstString(f, "decision", "verdict"))
	confidence := verdict.ClampConfidence(intField(f["confidence"]))
	reasoning := firstString(f, "reasoning", "reason")
	if strings.TrimSpace(reasoning) == "" {
		reasoning = fmt.Sprintf("%s verdict: %s with confidence %d%%", label(model), decision, confidence)
	}
	return verdict.Verdict{
		Decision:   decision,
		Confidence: confidence,
		Reasoning:  reasoning,
		Model:      model,
	}
}

// Salvage scans a senior reply that was not valid JSON. No decision found
// means BLOCK; CHALLENGE also means BLOCK.
func Salvage(text string) verdict.Verdict {
	v := verdict.Verdict{
		Decision:   verdict.Block,
		Confidence: salvageConfidence,
		Reasoning:  inconclusiveReason,
		Model:      verdict.Senior,
	}
	if m := decisionPattern.FindStringSubmatch(text); m != nil {
		v.Decision = verdict.ParseDecision(m[1])
	}
	if m := confidencePattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			v.Confidence = verdict.ClampConfidence(n)
		}
	}
	if m := reasoningPattern.FindStringSubmatch(text); m != nil {
		v.Reasoning = m[1]
	}
	return v
}

func label(m verdict.Model) string {
	if m == verdict.Senior {
		return "CISO"
	}
	return "Analyst"
}

func firstString(f map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := f[k]; ok && v != nil {
			if s, ok := v.(string); ok {
				return s
			}
			return fmt.Sprint(v)
		}
	}
	return ""
}

// intField reads a confidence that may arrive as a number, a numeric string
// or a percentage string.
func intField(v any) int {
	switch n := v.(type) {
	case float64:
		return int(math.Round(n))
	case int:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(n), "%"), 64)
		if err != nil {
			return 0
		}
		return int(math.Round(f))
	default:
		return 0
	}
}
