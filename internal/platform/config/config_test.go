package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, errs := Load("")
	require.Empty(t, errs)
	assert.Equal(t, DefaultAddr, cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Shield.RateLimit)
	assert.Equal(t, time.Minute, cfg.Shield.RateWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.Enforcer.StrikeTTL)
	assert.Equal(t, time.Hour, cfg.Enforcer.StandardBanTTL)
	assert.Equal(t, 24*time.Hour, cfg.Enforcer.ExtendedBanTTL)
	assert.Equal(t, 3, cfg.Enforcer.ExtendedStrikes)
	assert.Equal(t, 90, cfg.Pipeline.EscalationThreshold)
	assert.False(t, cfg.Pipeline.DedupeRedeliveries)
	assert.Empty(t, cfg.Redis.RateLimitURL)
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "auditor.yaml")
	content := []byte(`
server:
  addr: ":9000"
redis:
  url: redis://shared:6379/0
  rate_limit_url: redis://local:6379/0
shield:
  rate_limit: 10
  rate_window: 30s
kafka:
  brokers: ["k1:9092", "k2:9092"]
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("AUDITOR_RATE_LIMIT", "7")
	t.Setenv("SUPABASE_WEBHOOK_SECRET", "s3cret")

	cfg, errs := Load(path)
	require.Empty(t, errs)
	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "s3cret", cfg.Server.WebhookSecret)
	assert.Equal(t, "redis://local:6379/0", cfg.Redis.RateLimitURL)
	assert.Equal(t, 7, cfg.Shield.RateLimit, "env wins over file")
	assert.Equal(t, 30*time.Second, cfg.Shield.RateWindow)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoadDurationsAcceptSeconds(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("AUDITOR_RATE_WINDOW", "120")

	cfg, errs := Load("")
	require.Empty(t, errs)
	assert.Equal(t, 2*time.Minute, cfg.Shield.RateWindow)
}

func TestLoadCollectsValidationErrors(t *testing.T) {
	t.Setenv("REDIS_URL", "")
	t.Setenv("AUDITOR_STORE", "")
	t.Setenv("AUDITOR_RATE_LIMIT", "zero")
	t.Setenv("AUDITOR_STANDARD_BAN_TTL", "48h")
	t.Setenv("AUDITOR_ESCALATION_THRESHOLD", "120")

	_, errs := Load("")
	require.NotEmpty(t, errs)
	assert.Contains(t, errs, ErrMissingRedisURL)
	assert.Contains(t, errs, ErrBanTiersOutOfOrder)
	assert.Contains(t, errs, ErrInvalidEscalation)
}

func TestLoadMissingFile(t *testing.T) {
	_, errs := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "failed to load config file")
}

func TestMemoryBackendNeedsNoRedis(t *testing.T) {
	t.Setenv("AUDITOR_STORE", "memory")

	_, errs := Load("")
	assert.Empty(t, errs)
}
