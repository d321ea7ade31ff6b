// Package pipeline runs one audit event through the shield, triage, intel,
// judge and enforcer stages, and schedules runs on a bounded worker pool.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement"
	"github.com/OFF-rtk/sentinel-auditor/internal/event"
	"github.com/OFF-rtk/sentinel-auditor/internal/intel"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/tracing"
	"github.com/OFF-rtk/sentinel-auditor/internal/shield"
	"github.com/OFF-rtk/sentinel-auditor/internal/trace"
	"github.com/OFF-rtk/sentinel-auditor/internal/triage"
	"github.com/OFF-rtk/sentinel-auditor/internal/verdict"
	pkgstrings "github.com/OFF-rtk/sentinel-auditor/pkg/platform/strings"
)

//go:generate mockgen -source=pipeline.go -destination=mocks/mocks.go -package=mocks

type Shield interface {
	Admit(ctx context.Context, userID string) shield.Admission
}

type Triage interface {
	Evaluate(ctx context.Context, ev *event.AuditEvent) triage.Plan
}

type Intel interface {
	Retrieve(ctx context.Context, terms []string) []intel.Excerpt
}

type Judge interface {
	Judge(ctx context.Context, ev *event.AuditEvent, excerpts []intel.Excerpt) verdict.Verdict
}

type Enforcer interface {
	Apply(ctx context.Context, ev *event.AuditEvent, v verdict.Verdict) (*enforcement.Outcome, error)
}

// Stages are the collaborators of a run. All are required.
type Stages struct {
	Shield   Shield
	Triage   Triage
	Intel    Intel
	Judge    Judge
	Enforcer Enforcer
}

const (
	unknownEvent      = "unknown_event"
	topPolicyPreview  = 50
	msgTriageThinking = "Analyzing intent..."
	msgIntelThinking  = "Searching policy store..."
	msgJudgeThinking  = "Deliberating..."
	msgEnforcerBlock  = "Confirming block, escalating strikes..."
	msgIdle           = "User allowed. No action taken."
)

// Result is what one run did. Stage and Status are the last trace transition.
// Err is a *StageError when a stage failed.
type Result struct {
	EventID     string
	UserID      string
	Stage       trace.Stage
	Status      trace.Status
	Plan        *triage.Plan
	Excerpts    []intel.Excerpt
	Verdict     *verdict.Verdict
	Enforcement *enforcement.Outcome
	Err         error
}

type Orchestrator struct {
	stages   Stages
	guard    *RedeliveryGuard
	recorder *trace.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

type Option func(*Orchestrator)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

func WithRecorder(r *trace.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithRedeliveryGuard drops events whose id was already seen.
func WithRedeliveryGuard(g *RedeliveryGuard) Option {
	return func(o *Orchestrator) {
		o.guard = g
	}
}

func New(stages Stages, opts ...Option) (*Orchestrator, error) {
	var missing []string
	if stages.Shield == nil {
		missing = append(missing, "shield")
	}
	if stages.Triage == nil {
		missing = append(missing, "triage")
	}
	if stages.Intel == nil {
		missing = append(missing, "intel")
	}
	if stages.Judge == nil {
		missing = append(missing, "judge")
	}
	if stages.Enforcer == nil {
		missing = append(missing, "enforcer")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline stages missing: %s", strings.Join(missing, ", "))
	}
	o := &Orchestrator{stages: stages, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.recorder == nil {
		o.recorder = trace.NewRecorder(trace.WithSink(trace.NewLogSink(o.logger)), trace.WithLogger(o.logger))
	}
	return o, nil
}

// Run takes one event as far as the stages allow. It never panics; a failing
// stage ends the run with Result.Err set.
func (o *Orchestrator) Run(ctx context.Context, ev *event.AuditEvent) Result {
	res := Result{EventID: ev.EventID, UserID: ev.UserID()}
	if res.EventID == "" {
		res.EventID = unknownEvent
	}
	ctx, end := tracing.StartSpan(ctx, "pipeline.run",
		attribute.String("event.id", res.EventID),
		attribute.String("user.id", res.UserID),
	)
	defer func() { end(res.Err) }()
	log := o.logger.With("event_id", res.EventID, "user_id", res.UserID)
	log.InfoContext(ctx, "analyzing event")

	if o.guard != nil {
		if !o.guard.FirstDelivery(ctx, ev.EventID) {
			o.emit(ctx, &res, trace.StageShield, trace.StatusDuplicate, trace.Detail{"reason": "Event already processed"})
			return res
		}
		defer func() {
			if res.Err != nil {
				o.guard.Release(context.WithoutCancel(ctx), ev.EventID)
			}
		}()
	}

	var adm shield.Admission
	if o.step(ctx, &res, trace.StageShield, func(ctx context.Context) error {
		adm = o.stages.Shield.Admit(ctx, res.UserID)
		return nil
	}) {
		return res
	}
	if !adm.Admitted {
		o.emit(ctx, &res, trace.StageShield, trace.StatusBlocked, trace.Detail{"reason": adm.Reason})
		return res
	}
	if adm.Degraded {
		log.WarnContext(ctx, "shield degraded, event admitted without full checks")
	}

	o.emit(ctx, &res, trace.StageTriage, trace.StatusThinking, trace.Detail{"msg": msgTriageThinking})
	var plan triage.Plan
	if o.step(ctx, &res, trace.StageTriage, func(ctx context.Context) error {
		plan = o.stages.Triage.Evaluate(ctx, ev)
		return nil
	}) {
		return res
	}
	res.Plan = &plan
	if plan.Status == triage.StatusSafe {
		o.emit(ctx, &res, trace.StageTriage, trace.StatusCompleted, trace.Detail{"risk": "LOW", "reason": plan.Reason})
		log.InfoContext(ctx, "event cleared by triage")
		return res
	}
	o.emit(ctx, &res, trace.StageTriage, trace.StatusCompleted, trace.Detail{
		"risk":           "HIGH",
		"search_vectors": plan.SearchTerms,
		"fallback_terms": plan.Fallback,
	})

	o.emit(ctx, &res, trace.StageIntel, trace.StatusThinking, trace.Detail{"msg": msgIntelThinking})
	if o.step(ctx, &res, trace.StageIntel, func(ctx context.Context) error {
		res.Excerpts = o.stages.Intel.Retrieve(ctx, plan.SearchTerms)
		return nil
	}) {
		return res
	}
	intelDetail := trace.Detail{"found_docs": len(res.Excerpts), "default_policy": intel.IsDefault(res.Excerpts)}
	if len(res.Excerpts) > 0 {
		intelDetail["top_policy"] = pkgstrings.Preview(res.Excerpts[0].Text, topPolicyPreview)
	}
	o.emit(ctx, &res, trace.StageIntel, trace.StatusCompleted, intelDetail)

	o.emit(ctx, &res, trace.StageJudge, trace.StatusThinking, trace.Detail{"msg": msgJudgeThinking})
	var v verdict.Verdict
	if o.step(ctx, &res, trace.StageJudge, func(ctx context.Context) error {
		v = o.stages.Judge.Judge(ctx, ev, res.Excerpts)
		return nil
	}) {
		return res
	}
	res.Verdict = &v
	o.metrics.IncVerdict(string(v.Model), string(v.Decision))
	o.emit(ctx, &res, trace.StageJudge, trace.StatusCompleted, trace.Detail{
		"verdict":    string(v.Decision),
		"confidence": v.Confidence,
		"reason":     v.Reasoning,
		"model":      string(v.Model),
	})
	log.InfoContext(ctx, "final decision", "decision", string(v.Decision), "confidence", v.Confidence, "model", string(v.Model))

	if v.Decision == verdict.Block {
		o.emit(ctx, &res, trace.StageEnforcer, trace.StatusThinking, trace.Detail{"msg": msgEnforcerBlock})
	}
	var out *enforcement.Outcome
	if o.step(ctx, &res, trace.StageEnforcer, func(ctx context.Context) error {
		var err error
		out, err = o.stages.Enforcer.Apply(ctx, ev, v)
		return err
	}) {
		return res
	}
	res.Enforcement = out
	o.emitEnforcement(ctx, &res, v, out)
	return res
}

func (o *Orchestrator) emitEnforcement(ctx context.Context, res *Result, v verdict.Verdict, out *enforcement.Outcome) {
	switch out.Action {
	case enforcement.ActionBlockConfirmed:
		b := out.Block
		o.emit(ctx, res, trace.StageEnforcer, trace.StatusBlockConfirmed, trace.Detail{
			"action":      "STRIKE_ESCALATED",
			"redis_key":   b.Key,
			"strikes":     b.Strikes,
			"tier":        string(b.Tier),
			"ttl_seconds": int64(b.TTL / time.Second),
			"reasoning":   v.Reasoning,
		})
	case enforcement.ActionPardoned:
		p := out.Pardon
		o.emit(ctx, res, trace.StageEnforcer, trace.StatusFalsePositivePardoned, trace.Detail{
			"msg":         fmt.Sprintf("Judge overrode sentinel BLOCK to ALLOW for %s", res.UserID),
			"redis_key":   p.Key,
			"ban_existed": p.Existed,
			"notified":    p.Notified,
			"reasoning":   v.Reasoning,
		})
	default:
		o.emit(ctx, res, trace.StageEnforcer, trace.StatusIdle, trace.Detail{"msg": msgIdle})
	}
}

// step runs fn as stage and reports whether the run must stop. Errors and
// panics are converted into a StageError, traced as FAILED and stored in res.
func (o *Orchestrator) step(ctx context.Context, res *Result, stage trace.Stage, fn func(context.Context) error) (halted bool) {
	ctx, end := tracing.StartSpan(ctx, "pipeline."+strings.ToLower(string(stage)))
	start := time.Now()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				o.logger.ErrorContext(ctx, "stage panicked",
					"event_id", res.EventID,
					"stage", string(stage),
					"panic", r,
					"stack", string(debug.Stack()),
				)
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn(ctx)
	}()

	o.metrics.ObserveStage(string(stage), time.Since(start))
	end(err)
	if err == nil {
		return false
	}

	res.Err = &StageError{Stage: stage, Err: err}
	detail := trace.Detail{"error": err.Error()}
	if errors.Is(err, enforcement.ErrNotEnforced) {
		detail["unenforced_block"] = true
	}
	o.emit(ctx, res, stage, trace.StatusFailed, detail)
	o.logger.ErrorContext(ctx, "stage failed, run halted",
		"event_id", res.EventID,
		"stage", string(stage),
		"error", err,
	)
	return true
}

func (o *Orchestrator) emit(ctx context.Context, res *Result, stage trace.Stage, status trace.Status, detail trace.Detail) {
	res.Stage, res.Status = stage, status
	o.metrics.IncStage(string(stage), string(status))
	o.recorder.Record(ctx, res.EventID, stage, status, detail)
}
