package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		code     string
		describe string // empty means the field must be absent
	}{
		{"store outage hides detail", Internal("redis: connection refused"), http.StatusInternalServerError, "internal_error", ""},
		{"unavailable hides detail", Unavailable("queue full"), http.StatusServiceUnavailable, "service_unavailable", ""},
		{"malformed delivery explains itself", BadRequest("malformed"), http.StatusBadRequest, "bad_request", "malformed"},
		{"bad signature explains itself", Unauthorized("invalid_credentials"), http.StatusUnauthorized, "unauthorized", "invalid_credentials"},
		{"plain error becomes internal", errors.New("pgx: closed pool"), http.StatusInternalServerError, "internal_error", ""},
		{"wrapped typed error keeps its code", fmt.Errorf("decode: %w", BadRequest("no actor")), http.StatusBadRequest, "bad_request", "no actor"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tc.err)

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tc.code, body["error"])
			desc, present := body["error_description"]
			if tc.describe == "" {
				assert.False(t, present, "description leaked: %q", desc)
			} else {
				assert.Equal(t, tc.describe, desc)
			}
		})
	}
}

func TestError_String(t *testing.T) {
	assert.Equal(t, "bad_request: malformed", BadRequest("malformed").Error())
	assert.Equal(t, "internal_error", Internal("").Error())
}
