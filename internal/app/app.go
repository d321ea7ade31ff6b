// Package app assembles the auditor from configuration. cmd/server and the
// admin CLI share the store wiring so both talk to the same keys.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/models"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/ports"
	"github.com/OFF-rtk/sentinel-auditor/internal/intel"
	"github.com/OFF-rtk/sentinel-auditor/internal/judge"
	"github.com/OFF-rtk/sentinel-auditor/internal/notify"
	"github.com/OFF-rtk/sentinel-auditor/internal/pipeline"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/httpserver"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/tracing"
	"github.com/OFF-rtk/sentinel-auditor/internal/reasoner"
	"github.com/OFF-rtk/sentinel-auditor/internal/shield"
	"github.com/OFF-rtk/sentinel-auditor/internal/trace"
	"github.com/OFF-rtk/sentinel-auditor/internal/triage"
	"github.com/OFF-rtk/sentinel-auditor/internal/webhook"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/circuit"
)

// App is a fully wired auditor.
type App struct {
	Server    *http.Server
	Scheduler *pipeline.Scheduler
	Store     ports.Store

	logger  *slog.Logger
	tracing *tracing.Provider
	closers []closer
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// Build wires every component. On error, whatever was opened is closed.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg *prometheus.Registry) (_ *App, err error) {
	a := &App{logger: logger}
	defer func() {
		if err != nil {
			_ = a.close(context.WithoutCancel(ctx))
		}
	}()

	a.tracing, err = tracing.NewProvider(ctx, cfg.Tracing, logger)
	if err != nil {
		return nil, fmt.Errorf("tracing: %w", err)
	}
	a.push("tracing", a.tracing.Shutdown)

	m := metrics.New(reg)

	st, closeStore, err := OpenStore(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, err
	}
	a.Store = st
	a.push("store", func(context.Context) error { return closeStore() })

	policies, closePolicies, err := OpenPolicyStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.push("policy store", func(context.Context) error { closePolicies(); return nil })

	sinks, err := openTraceSinks(ctx, cfg, logger, m)
	for _, s := range sinks.closers {
		a.push(s.name, s.fn)
	}
	if err != nil {
		return nil, err
	}
	recorder := trace.NewRecorder(append(sinks.options,
		trace.WithLogger(logger),
		trace.WithMetrics(m),
	)...)
	// Flush buffered sinks before their clients close.
	a.push("trace recorder", recorder.Close)

	orch, err := buildOrchestrator(cfg, logger, m, st, policies, recorder)
	if err != nil {
		return nil, err
	}

	a.Scheduler = pipeline.NewScheduler(orch,
		pipeline.WithWorkers(cfg.Pipeline.Workers),
		pipeline.WithQueueSize(cfg.Pipeline.QueueSize),
		pipeline.WithSchedulerLogger(logger),
		pipeline.WithSchedulerMetrics(m),
	)

	handler, err := webhook.New(cfg.Server.WebhookSecret, a.Scheduler,
		webhook.WithLogger(logger),
		webhook.WithMetrics(m),
		webhook.WithGatherer(reg),
		webhook.WithHealth(st),
		webhook.WithMaxBodyBytes(cfg.Server.MaxBodyBytes),
	)
	if err != nil {
		return nil, err
	}
	if cfg.Server.WebhookSecret == "" {
		logger.Warn("webhook secret not configured; deliveries will be refused")
	}
	a.Server = httpserver.New(cfg.Server, handler.Router())
	return a, nil
}

func buildOrchestrator(
	cfg *config.Config,
	logger *slog.Logger,
	m *metrics.Metrics,
	st ports.Store,
	policies intel.PolicyStore,
	recorder *trace.Recorder,
) (*pipeline.Orchestrator, error) {
	gate, err := shield.New(st,
		shield.WithLogger(logger),
		shield.WithMetrics(m),
		shield.WithRateLimit(cfg.Shield.RateLimit, cfg.Shield.RateWindow),
		shield.WithProbeInterval(cfg.Shield.ProbeInterval),
		shield.WithBreaker(circuit.New("shared-store")),
	)
	if err != nil {
		return nil, err
	}

	client, err := reasoner.New(cfg.Reasoner, reasoner.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	triageStage, err := triage.New(client,
		triage.WithLogger(logger),
		triage.WithRiskThreshold(cfg.Pipeline.TriageRiskThreshold),
	)
	if err != nil {
		return nil, err
	}
	intelStage, err := intel.New(policies,
		intel.WithLogger(logger),
		intel.WithMatch(cfg.Pipeline.PolicyMatchCount, cfg.Pipeline.PolicyMatchScore),
	)
	if err != nil {
		return nil, err
	}
	judgeStage, err := judge.New(client,
		judge.WithLogger(logger),
		judge.WithEscalationThreshold(cfg.Pipeline.EscalationThreshold),
	)
	if err != nil {
		return nil, err
	}
	enforcer, err := enforcement.New(st,
		enforcement.WithLogger(logger),
		enforcement.WithMetrics(m),
		enforcement.WithNotifier(NewNotifier(cfg.SMTP, logger)),
		enforcement.WithStrikeTTL(cfg.Enforcer.StrikeTTL),
		enforcement.WithTierPolicy(models.TierPolicy{
			StandardTTL:     cfg.Enforcer.StandardBanTTL,
			ExtendedTTL:     cfg.Enforcer.ExtendedBanTTL,
			ExtendedStrikes: int64(cfg.Enforcer.ExtendedStrikes),
		}),
	)
	if err != nil {
		return nil, err
	}

	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithMetrics(m),
		pipeline.WithRecorder(recorder),
	}
	if cfg.Pipeline.DedupeRedeliveries {
		opts = append(opts, pipeline.WithRedeliveryGuard(
			pipeline.NewRedeliveryGuard(st, cfg.Pipeline.DedupeTTL, logger)))
	}
	return pipeline.New(pipeline.Stages{
		Shield:   gate,
		Triage:   triageStage,
		Intel:    intelStage,
		Judge:    judgeStage,
		Enforcer: enforcer,
	}, opts...)
}

// NewNotifier mails pardon notices when SMTP credentials are configured and
// only logs them otherwise.
func NewNotifier(cfg config.SMTPConfig, logger *slog.Logger) ports.Notifier {
	if cfg.SMTPEnabled() {
		n, err := notify.NewSMTPNotifier(cfg, notify.WithLogger(logger))
		if err == nil {
			return n
		}
		logger.Warn("smtp notifier disabled", "error", err)
	}
	return notify.NewLogNotifier(logger)
}

// Start launches the scheduler workers. The HTTP server is started by the caller.
func (a *App) Start() {
	a.Scheduler.Start()
}

// Shutdown stops the HTTP server, drains queued runs, then closes everything
// in reverse order of opening.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http server: %w", err))
		}
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (a *App) push(name string, fn func(context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", "component", c.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
