package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/models"
	"github.com/OFF-rtk/sentinel-auditor/internal/enforcement/store"
	"github.com/OFF-rtk/sentinel-auditor/internal/event/eventtest"
	"github.com/OFF-rtk/sentinel-auditor/internal/notify"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/config"
	"github.com/OFF-rtk/sentinel-auditor/internal/platform/logger"
	"github.com/OFF-rtk/sentinel-auditor/internal/webhook"
	"github.com/OFF-rtk/sentinel-auditor/pkg/testutil"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("AUDITOR_STORE", "memory")
	t.Setenv("AUDITOR_POLICY_FILE", "../../configs/policies.yaml")
	t.Setenv("SUPABASE_WEBHOOK_SECRET", "whsec_app")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("SMTP_USER", "")
	t.Setenv("SMTP_PASS", "")

	cfg, errs := config.Load("")
	require.Empty(t, errs)
	return cfg
}

func TestBuild_MemoryBackend(t *testing.T) {
	cfg := memoryConfig(t)
	a, err := Build(context.Background(), cfg, logger.Discard(), prometheus.NewRegistry())
	require.NoError(t, err)
	a.Start()

	handler := a.Server.Handler
	rr := testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodGet, "/healthz", nil, nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	// A low-risk record stops at triage, so no reasoner is called.
	body := eventtest.JSON(eventtest.WithUser("usr_app"), eventtest.WithEventID("evt_app"))
	rr = testutil.DoRequest(handler, testutil.NewRequest(t, http.MethodPost, "/webhook/audit", body,
		map[string]string{webhook.SignatureHeader: webhook.SignatureValue(body, "whsec_app")}))
	testutil.AssertJSONField(t, rr, "status", "processing")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))

	mem, ok := a.Store.(*store.MemoryStore)
	require.True(t, ok)
	assert.Positive(t, mem.TTL(models.RateLimitKey("usr_app")), "shield counted the event")
}

func TestBuild_MissingPolicyFile(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Database.PolicyFile = "does-not-exist.yaml"
	_, err := Build(context.Background(), cfg, logger.Discard(), prometheus.NewRegistry())
	require.Error(t, err)
}

func TestNewNotifier(t *testing.T) {
	_, isLog := NewNotifier(config.SMTPConfig{}, logger.Discard()).(*notify.LogNotifier)
	assert.True(t, isLog)

	_, isSMTP := NewNotifier(config.SMTPConfig{
		Host: "smtp.example.com", Port: 587, User: "bot@example.com", Password: "pw",
	}, logger.Discard()).(*notify.SMTPNotifier)
	assert.True(t, isSMTP)
}
