package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/models"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/store"
	"github.com/OFF-rtk/sentinel-auditor/internal/event"
	"github.com/OFF-rtk/sentinel-auditor/internal/event/eventtest"
	"github.com/OFF-rtk/sentinel-auditor/internal/pipeline"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/logger"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/metrics"
	"github.com/OFF-rtk/sentinel-auditor/internal/webhook/mocks"
	"github.com/OFF-rtk/sentinel-auditor/pkg/platform/sentinel"
	"github.com/OFF-rtk/sentinel-auditor/pkg/testutil"
)

const testSecret = "whsec_test"

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks
type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	submitter *mocks.MockSubmitter
	pinger    *mocks.MockPinger
	router    http.Handler
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.submitter = mocks.NewMockSubmitter(s.ctrl)
	s.pinger = mocks.NewMockPinger(s.ctrl)
	s.router = s.newRouter(testSecret)
}

func (s *HandlerSuite) newRouter(secret string) http.Handler {
	reg := prometheus.NewRegistry()
	h, err := New(secret, s.submitter,
		WithLogger(logger.Discard()),
		WithMetrics(metrics.New(reg)),
		WithGatherer(reg),
		WithHealth(s.pinger),
		WithMaxBodyBytes(64<<10),
	)
	s.Require().NoError(err)
	return h.Router()
}

func signed(body []byte) map[string]string {
	return map[string]string{SignatureHeader: SignatureValue(body, testSecret)}
}

func wrapped(record []byte) []byte {
	return []byte(`{"type":"INSERT","record":{"payload":` + string(record) + `}}`)
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) TestRoot() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/", nil, nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONField(s.T(), rr, "status", "active")
	testutil.AssertJSONField(s.T(), rr, "service", "Sentinel Auditor")
}

func (s *HandlerSuite) TestHealth() {
	s.Run("store answers", func() {
		s.pinger.EXPECT().Ping(gomock.Any()).Return(nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz", nil, nil))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	})
	s.Run("store unreachable", func() {
		s.pinger.EXPECT().Ping(gomock.Any()).Return(sentinel.ErrUnavailable)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/healthz", nil, nil))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "service_unavailable")
	})
}

func (s *HandlerSuite) TestMetricsEndpoint() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/metrics", nil, nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *HandlerSuite) TestAudit_Accepted() {
	record := eventtest.JSON(eventtest.WithEventID("evt_accept"))

	s.Run("signed envelope", func() {
		body := wrapped(record)
		s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, ev *event.AuditEvent) (pipeline.Handle, error) {
				s.Equal("evt_accept", ev.EventID)
				s.Equal("usr_10001", ev.UserID())
				return pipeline.Handle{ID: uuid.New(), EventID: ev.EventID}, nil
			})
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/webhook/audit", body, signed(body)))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONField(s.T(), rr, "status", "processing")
	})

	s.Run("bare record with shared secret", func() {
		s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(pipeline.Handle{ID: uuid.New()}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/webhook/audit", record,
			map[string]string{SecretHeader: testSecret}))
		testutil.AssertJSONField(s.T(), rr, "status", "processing")
	})
}

func (s *HandlerSuite) TestAudit_Rejected() {
	body := wrapped(eventtest.JSON())

	tests := []struct {
		name    string
		headers map[string]string
	}{
		{"no credentials", nil},
		{"wrong shared secret", map[string]string{SecretHeader: "nope"}},
		{"wrong signature", map[string]string{SignatureHeader: "sha256=" + strings.Repeat("0", 64)}},
		{"signature over other body", map[string]string{SignatureHeader: SignatureValue([]byte("{}"), testSecret)}},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/webhook/audit", body, tt.headers))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func (s *HandlerSuite) TestAudit_NoSecretConfigured() {
	router := s.newRouter("")
	body := wrapped(eventtest.JSON())
	rr := testutil.DoRequest(router, testutil.NewRequest(s.T(), http.MethodPost, "/webhook/audit", body,
		map[string]string{SecretHeader: ""}))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
}

func (s *HandlerSuite) TestAudit_Malformed() {
	body := []byte(`{"record": {"payload": `)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/webhook/audit", body, signed(body)))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "bad_request")
}

func (s *HandlerSuite) TestAudit_Ignored() {
	for _, raw := range []string{
		`{"type":"DELETE","record":{"id":7}}`,
		`{"record":{"payload":""}}`,
		`{"record":{"payload":{}}}`,
	} {
		body := []byte(raw)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/webhook/audit", body, signed(body)))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		testutil.AssertJSONField(s.T(), rr, "status", "ignored")
	}
}

func (s *HandlerSuite) TestAudit_TooLarge() {
	body := wrapped([]byte(`{"actor":{"user_id":"` + strings.Repeat("a", 70<<10) + `"}}`))
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/webhook/audit", body, signed(body)))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusRequestEntityTooLarge, "payload_too_large")
}

func (s *HandlerSuite) TestAudit_SchedulerUnavailable() {
	body := wrapped(eventtest.JSON())
	for _, err := range []error{sentinel.ErrQueueFull, sentinel.ErrClosed} {
		s.Run(err.Error(), func() {
			s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(pipeline.Handle{}, err)
			rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/webhook/audit", body, signed(body)))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusServiceUnavailable, "service_unavailable")
			s.Equal("5", rr.Header().Get("Retry-After"))
		})
	}
}

func (s *HandlerSuite) TestAudit_SubmitError() {
	body := wrapped(eventtest.JSON())
	s.submitter.EXPECT().Submit(gomock.Any(), gomock.Any()).Return(pipeline.Handle{}, errors.New("boom"))
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/webhook/audit", body, signed(body)))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusInternalServerError, "internal_error")
}

type runnerFunc func(ctx context.Context, ev *event.AuditEvent) pipeline.Result

func (f runnerFunc) Run(ctx context.Context, ev *event.AuditEvent) pipeline.Result { return f(ctx, ev) }

func TestBadSignatureSchedulesNothing(t *testing.T) {
	st := store.NewMemoryStore()
	var runs atomic.Int32
	sched := pipeline.NewScheduler(runnerFunc(func(ctx context.Context, ev *event.AuditEvent) pipeline.Result {
		runs.Add(1)
		_, _ = st.IncrRateWindow(ctx, ev.UserID(), time.Minute)
		return pipeline.Result{EventID: ev.EventID}
	}), pipeline.WithSchedulerLogger(logger.Discard()))
	sched.Start()

	h, err := New(testSecret, sched, WithLogger(logger.Discard()), WithHealth(st))
	require.NoError(t, err)
	router := h.Router()

	body := wrapped(eventtest.JSON(eventtest.WithUser("usr_forged")))
	testutil.Given(t, "a body signed with the wrong secret", func(t *testing.T) {
		headers := map[string]string{SignatureHeader: SignatureValue(body, "other_secret")}
		testutil.When(t, "it is delivered", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodPost, "/webhook/audit", body, headers))
			testutil.Then(t, "it is refused and nothing runs", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusUnauthorized)
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				require.NoError(t, sched.Shutdown(ctx))
				assert.Zero(t, runs.Load())
				assert.Equal(t, time.Duration(-2), st.TTL(models.RateLimitKey("usr_forged")))
			})
		})
	})
}

func TestNew_RequiresSubmitter(t *testing.T) {
	_, err := New(testSecret, nil)
	require.Error(t, err)
}
