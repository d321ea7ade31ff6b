package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the auditor's Prometheus collectors. Every method is safe on a
// nil receiver so components can run without metrics in tests.
type Metrics struct {
	// Trace transitions by stage and status
	StageOutcome *prometheus.CounterVec

	// Wall time spent in each stage
	StageLatency *prometheus.HistogramVec

	// Final verdicts by model tier and decision
	Verdicts *prometheus.CounterVec

	ShieldDenials  *prometheus.CounterVec
	ShieldFailOpen *prometheus.CounterVec

	// Enforcement writes by action (block, pardon) and result (ok, error)
	Enforcement      *prometheus.CounterVec
	UnenforcedBlocks prometheus.Counter

	QueueDepth      prometheus.Gauge
	QueueRejections prometheus.Counter

	WebhookRejections *prometheus.CounterVec

	TraceDropped    *prometheus.CounterVec
	TraceSinkErrors *prometheus.CounterVec
}

// New registers all collectors with reg. Main passes prometheus.DefaultRegisterer;
// tests pass a fresh registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		StageOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_stage_transitions_total",
			Help: "Pipeline trace transitions by stage and status",
		}, []string{"stage", "status"}),

		StageLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "auditor_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"stage"}),

		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_verdicts_total",
			Help: "Judge verdicts by model tier and decision",
		}, []string{"model", "decision"}),

		ShieldDenials: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_shield_denials_total",
			Help: "Events rejected by the shield gate",
		}, []string{"reason"}),

		ShieldFailOpen: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_shield_fail_open_total",
			Help: "Shield checks that admitted an event because the store was unavailable",
		}, []string{"check"}),

		Enforcement: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_enforcement_total",
			Help: "Enforcement store writes by action and result",
		}, []string{"action", "result"}),

		UnenforcedBlocks: f.NewCounter(prometheus.CounterOpts{
			Name: "auditor_unenforced_blocks_total",
			Help: "BLOCK verdicts that could not be written to the shared store",
		}),

		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "auditor_scheduler_queue_depth",
			Help: "Events waiting for a pipeline worker",
		}),

		QueueRejections: f.NewCounter(prometheus.CounterOpts{
			Name: "auditor_scheduler_rejections_total",
			Help: "Events refused because the scheduler queue was full",
		}),

		WebhookRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_webhook_rejections_total",
			Help: "Webhook requests rejected before scheduling",
		}, []string{"reason"}),

		TraceDropped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_trace_records_dropped_total",
			Help: "Trace records dropped by a full async sink buffer",
		}, []string{"sink"}),

		TraceSinkErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "auditor_trace_sink_errors_total",
			Help: "Trace records a sink failed to write",
		}, []string{"sink"}),
	}
}

func (m *Metrics) IncStage(stage, status string) {
	if m != nil {
		m.StageOutcome.WithLabelValues(stage, status).Inc()
	}
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m != nil {
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) IncVerdict(model, decision string) {
	if m != nil {
		m.Verdicts.WithLabelValues(model, decision).Inc()
	}
}

func (m *Metrics) IncShieldDenial(reason string) {
	if m != nil {
		m.ShieldDenials.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncShieldFailOpen(check string) {
	if m != nil {
		m.ShieldFailOpen.WithLabelValues(check).Inc()
	}
}

func (m *Metrics) IncEnforcement(action, result string) {
	if m != nil {
		m.Enforcement.WithLabelValues(action, result).Inc()
	}
}

func (m *Metrics) IncUnenforcedBlock() {
	if m != nil {
		m.UnenforcedBlocks.Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) IncQueueRejection() {
	if m != nil {
		m.QueueRejections.Inc()
	}
}

func (m *Metrics) IncWebhookRejection(reason string) {
	if m != nil {
		m.WebhookRejections.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncTraceDropped(sink string) {
	if m != nil {
		m.TraceDropped.WithLabelValues(sink).Inc()
	}
}

func (m *Metrics) IncTraceSinkError(sink string) {
	if m != nil {
		m.TraceSinkErrors.WithLabelValues(sink).Inc()
	}
}
