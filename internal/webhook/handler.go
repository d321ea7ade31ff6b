// Package webhook is the HTTP boundary of the auditor. It authenticates audit
// deliveries, hands them to the run scheduler and answers before any pipeline
// work happens.
package webhook

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/OFF-rtk/sentinel-auditor/internal/event"
	"github.com/OFF-rtk/sentinel-auditor/internal/pipeline"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/httputil"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
)

const (
	ServiceName = "Sentinel Auditor"

	defaultMaxBodyBytes = 1 << 20
	retryAfter          = 5 * time.Second
	healthTimeout       = 2 * time.Second
)

// Submitter schedules a run for an accepted event.
type Submitter interface {
	Submit(ctx context.Context, ev *event.AuditEvent) (pipeline.Handle, error)
}

// Pinger reports whether the shared store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the webhook and the operational endpoints.
type Handler struct {
	secret    string
	submitter Submitter
	health    Pinger
	logger    *slog.Logger
	metrics   *metrics.Metrics
	gatherer  prometheus.Gatherer
	maxBody   int64
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithHealth sets the store checked by /healthz. Without it /healthz always
// answers 200.
func WithHealth(p Pinger) Option {
	return func(h *Handler) {
		h.health = p
	}
}

// WithGatherer sets the registry exposed on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(h *Handler) {
		if g != nil {
			h.gatherer = g
		}
	}
}

func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// New builds the handler. An empty secret is accepted so the service can start,
// but every delivery is then refused with 500.
func New(secret string, submitter Submitter, opts ...Option) (*Handler, error) {
	if submitter == nil {
		return nil, errors.New("submitter is required")
	}
	h := &Handler{
		secret:    secret,
		submitter: submitter,
		logger:    slog.Default(),
		gatherer:  prometheus.DefaultGatherer,
		maxBody:   defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Router returns the full HTTP surface.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleRoot)
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Post("/webhook/audit", h.handleAudit)

	return otelhttp.NewHandler(r, "auditor.http")
}

func (h *Handler) handleRoot(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "active",
		"service": ServiceName,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "error", err)
			httputil.WriteError(w, httputil.Unavailable("store unreachable"))
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetReqID(ctx)

	if h.secret == "" {
		h.logger.ErrorContext(ctx, "webhook secret not configured", "request_id", requestID)
		h.metrics.IncWebhookRejection("no_secret")
		httputil.WriteError(w, httputil.Internal("webhook secret not configured"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.IncWebhookRejection("too_large")
			httputil.WriteError(w, httputil.NewError(http.StatusRequestEntityTooLarge, "payload_too_large",
				"body exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes"))
			return
		}
		httputil.WriteError(w, httputil.BadRequest("unreadable body"))
		return
	}

	secretHeader := r.Header.Get(SecretHeader)
	signatureHeader := r.Header.Get(SignatureHeader)
	if secretHeader == "" && signatureHeader == "" {
		h.reject(ctx, w, requestID, "missing_credentials", "missing webhook credentials")
		return
	}
	if !Verify(body, secretHeader, signatureHeader, h.secret) {
		h.reject(ctx, w, requestID, "invalid_credentials", "invalid webhook credentials")
		return
	}

	ev, err := event.Decode(body)
	switch {
	case errors.Is(err, event.ErrNoPayload):
		h.logger.InfoContext(ctx, "webhook carried no audit record", "request_id", requestID)
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	case err != nil:
		h.logger.WarnContext(ctx, "malformed webhook body", "request_id", requestID, "error", err)
		h.metrics.IncWebhookRejection("malformed")
		httputil.WriteError(w, httputil.BadRequest("malformed JSON body"))
		return
	}

	handle, err := h.submitter.Submit(ctx, ev)
	if err != nil {
		if errors.Is(err, sentinel.ErrQueueFull) || errors.Is(err, sentinel.ErrClosed) {
			h.logger.WarnContext(ctx, "run not scheduled",
				"request_id", requestID,
				"event_id", ev.EventID,
				"error", err,
			)
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			httputil.WriteError(w, httputil.Unavailable("auditor at capacity"))
			return
		}
		h.logger.ErrorContext(ctx, "submit failed", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "audit event accepted",
		"request_id", requestID,
		"event_id", ev.EventID,
		"user_id", ev.UserID(),
		"run_id", handle.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "processing"})
}

func (h *Handler) reject(ctx context.Context, w http.ResponseWriter, requestID, reason, description string) {
	h.logger.WarnContext(ctx, "webhook rejected", "request_id", requestID, "reason", reason)
	h.metrics.IncWebhookRejection(reason)
	httputil.WriteError(w, httputil.Unauthorized(description))
}
