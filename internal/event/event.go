// Package event holds the audit record delivered by the upstream risk detector.
//
// An AuditEvent keeps the bytes it was decoded from. The typed fields are the
// view the pipeline branches on; Raw is what the reasoner is shown, so fields
// this service does not model still reach it unchanged.
package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// UnknownUser is used when a record carries no actor.user_id.
const UnknownUser = "unknown"

var (
	// ErrNoPayload means the body parsed but held no audit record.
	ErrNoPayload = errors.New("no log payload found")
	// ErrMalformed means the body was not valid JSON.
	ErrMalformed = errors.New("malformed event body")
)

type AuditEvent struct {
	EventID             string              `json:"event_id"`
	CorrelationID       string              `json:"correlation_id"`
	Timestamp           string              `json:"timestamp"`
	Environment         string              `json:"environment"`
	Actor               Actor               `json:"actor"`
	NetworkContext      NetworkContext      `json:"network_context"`
	ActionContext       ActionContext       `json:"action_context"`
	SentinelAnalysis    SentinelAnalysis    `json:"sentinel_analysis"`
	SecurityEnforcement SecurityEnforcement `json:"security_enforcement"`

	raw json.RawMessage
}

type Actor struct {
	UserID            string `json:"user_id"`
	Role              string `json:"role"`
	SessionID         string `json:"session_id"`
	SessionAgeSeconds int    `json:"session_age_seconds"`
	Email             string `json:"email,omitempty"`
}

type NetworkContext struct {
	IPAddress         string            `json:"ip_address"`
	IPReputation      string            `json:"ip_reputation"`
	GeoLocation       GeoLocation       `json:"geo_location"`
	ClientFingerprint ClientFingerprint `json:"client_fingerprint"`
}

type GeoLocation struct {
	Country string `json:"country"`
	City    string `json:"city"`
	ASN     string `json:"asn"`
}

type ClientFingerprint struct {
	UserAgentRaw string `json:"user_agent_raw"`
	JA3Hash      string `json:"ja3_hash"`
	DeviceID     string `json:"device_id"`
}

// ActionContext.Details is free-form and kept as raw JSON.
type ActionContext struct {
	Service        string          `json:"service"`
	ActionType     string          `json:"action_type"`
	ResourceTarget string          `json:"resource_target"`
	Details        json.RawMessage `json:"details,omitempty"`
}

// SentinelAnalysis is the upstream detector's own assessment. Decision is the
// detector's decision (ALLOW, CHALLENGE, BLOCK, ...), not this service's verdict.
type SentinelAnalysis struct {
	EngineVersion  string   `json:"engine_version"`
	RiskScore      float64  `json:"risk_score"`
	Decision       string   `json:"decision"`
	AnomalyVectors []string `json:"anomaly_vectors"`
}

type SecurityEnforcement struct {
	MFAStatus     string `json:"mfa_status"`
	PolicyApplied string `json:"policy_applied"`
}

// Parse decodes a bare audit record and keeps a private copy of its bytes.
func Parse(data []byte) (*AuditEvent, error) {
	var e AuditEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	e.raw = bytes.Clone(data)
	return &e, nil
}

// UserID returns actor.user_id, or UnknownUser when the record has none.
func (e *AuditEvent) UserID() string {
	if e.Actor.UserID == "" {
		return UnknownUser
	}
	return e.Actor.UserID
}

// Raw returns a copy of the record exactly as delivered.
func (e *AuditEvent) Raw() json.RawMessage {
	if len(e.raw) == 0 {
		b, _ := json.Marshal(e)
		return b
	}
	return bytes.Clone(e.raw)
}

// Vectors returns a copy of the anomaly vectors.
func (e *AuditEvent) Vectors() []string {
	return append([]string(nil), e.SentinelAnalysis.AnomalyVectors...)
}
