package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serveWithRequestID sends one intake-shaped request through RequestID and
// returns the ID the downstream handler saw plus the response header.
func serveWithRequestID(t *testing.T, incoming string) (seen, echoed string) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/intake/dockerAgentEvents.json", strings.NewReader(`{"a":1}`))
	if incoming != "" {
		req.Header.Set("X-Request-ID", incoming)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
	return seen, rec.Header().Get("X-Request-ID")
}

func TestRequestID_KeepsOrReplacesIncoming(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"agent uuid", "0190b6a4-7c1e-7b3a-9f5e-2d8c4a1b6e90", true},
		{"underscores and dashes", "agent_42-batch_7", true},
		{"at length limit", strings.Repeat("r", maxRequestIDLen), true},
		{"over length limit", strings.Repeat("r", maxRequestIDLen+1), false},
		{"log line forgery", "abc\nlevel=ERROR msg=forged", false},
		{"spaces", "agent 42", false},
		{"json breakout", `abc","admin":true`, false},
		{"non ascii", "agént", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, echoed := serveWithRequestID(t, tt.incoming)

			assert.Equal(t, seen, echoed, "context and response carry the same ID")
			if tt.keep {
				assert.Equal(t, tt.incoming, seen)
				return
			}
			assert.NotEqual(t, tt.incoming, seen)
			_, err := uuid.Parse(seen)
			assert.NoError(t, err, "replacement is a generated UUID")
		})
	}
}

func TestRequestID_GeneratesUUIDWhenMissing(t *testing.T) {
	first, echoed := serveWithRequestID(t, "")
	second, _ := serveWithRequestID(t, "")

	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, first, echoed)
	assert.NotEqual(t, first, second)
}

func TestValidRequestID(t *testing.T) {
	assert.False(t, validRequestID(""))
	assert.True(t, validRequestID("a"))
	assert.True(t, validRequestID(strings.Repeat("Z", maxRequestIDLen)))
	assert.False(t, validRequestID(strings.Repeat("Z", maxRequestIDLen+1)))
	assert.False(t, validRequestID("a.b"))
	assert.False(t, validRequestID("a\tb"))
}

func TestRequestIDFromContext_Absent(t *testing.T) {
	assert.Empty(t, RequestIDFromContext(context.Background()))
}
