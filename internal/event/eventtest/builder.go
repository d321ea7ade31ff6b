// Package eventtest builds audit records for tests.
package eventtest

import (
	"encoding/json"

	"github.com/OFF-rtk/sentinel-auditor/internal/event"
)

type Option func(map[string]any)

func WithUser(id string) Option {
	return func(m map[string]any) { m["actor"].(map[string]any)["user_id"] = id }
}

func WithEmail(email string) Option {
	return func(m map[string]any) { m["actor"].(map[string]any)["email"] = email }
}

func WithRisk(score float64, vectors ...string) Option {
	return func(m map[string]any) {
		sa := m["sentinel_analysis"].(map[string]any)
		sa["risk_score"] = score
		if vectors == nil {
			vectors = []string{}
		}
		sa["anomaly_vectors"] = vectors
	}
}

// WithUpstreamDecision sets sentinel_analysis.decision.
func WithUpstreamDecision(d string) Option {
	return func(m map[string]any) { m["sentinel_analysis"].(map[string]any)["decision"] = d }
}

func WithEventID(id string) Option {
	return func(m map[string]any) { m["event_id"] = id }
}

func WithField(key string, v any) Option {
	return func(m map[string]any) { m[key] = v }
}

// JSON returns a low-risk record with opts applied.
func JSON(opts ...Option) []byte {
	m := map[string]any{
		"event_id":       "evt_test",
		"correlation_id": "corr_test",
		"timestamp":      "2026-01-01T00:00:00Z",
		"environment":    "production",
		"actor": map[string]any{
			"user_id":             "usr_10001",
			"role":                "analyst",
			"session_id":          "sess_100001",
			"session_age_seconds": 600,
		},
		"network_context": map[string]any{
			"ip_address":    "203.0.113.7",
			"ip_reputation": "clean",
			"geo_location":  map[string]any{"country": "US", "city": "Austin", "asn": "AS1234 Example"},
			"client_fingerprint": map[string]any{
				"user_agent_raw": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"ja3_hash":       "e7d705a3286e19ea42f587b344ee6865",
				"device_id":      "dev_0123456789abcdef",
			},
		},
		"action_context": map[string]any{
			"service":         "transfer_service",
			"action_type":     "fund_transfer",
			"resource_target": "acct_1",
			"details":         map[string]any{"amount": 120, "currency": "USD"},
		},
		"sentinel_analysis": map[string]any{
			"engine_version":  "2.1.0",
			"risk_score":      0.1,
			"decision":        "ALLOW",
			"anomaly_vectors": []string{},
		},
		"security_enforcement": map[string]any{
			"mfa_status":     "verified_biometric",
			"policy_applied": "POLICY_TRANSFER_02",
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return b
}

// New parses JSON(opts...) into an event.
func New(opts ...Option) *event.AuditEvent {
	e, err := event.Parse(JSON(opts...))
	if err != nil {
		panic(err)
	}
	return e
}
