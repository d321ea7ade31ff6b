package event

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope is the database webhook shape: {"record": {"payload": {...}}}.
type envelope struct {
	Record struct {
		Payload json.RawMessage `json:"payload"`
	} `json:"record"`
	Actor json.RawMessage `json:"actor"`
}

// Decode extracts the audit record from a webhook body. The record is taken
// from record.payload when present, otherwise the body itself is the record if
// it has an actor. Empty payloads and anything else yield ErrNoPayload.
func Decode(body []byte) (*AuditEvent, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	payload := bytes.TrimSpace(env.Record.Payload)
	if len(payload) > 0 && !bytes.Equal(payload, []byte("null")) {
		// Some writers store the payload as a JSON-encoded string.
		if payload[0] == '"' {
			var inner string
			if err := json.Unmarshal(payload, &inner); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
			}
			payload = bytes.TrimSpace([]byte(inner))
		}
		if len(payload) == 0 || payload[0] != '{' {
			return nil, ErrNoPayload
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if len(fields) == 0 {
			return nil, ErrNoPayload
		}
		return Parse(payload)
	}

	if len(env.Actor) > 0 && !bytes.Equal(env.Actor, []byte("null")) {
		return Parse(body)
	}
	return nil, ErrNoPayload
}
