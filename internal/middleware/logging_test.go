package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logRequest(t *testing.T, target string, status int) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := SecureLogger(logger, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	req := httptest.NewRequest("GET", target, nil)
	req.RemoteAddr = "203.0.113.7:4000"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	entry := logRequest(t, "/api/auth/google/callback?state=abc&code=xyz", http.StatusFound)

	assert.Equal(t, "/api/auth/google/callback?[REDACTED]", entry["path"])
	assert.Equal(t, float64(http.StatusFound), entry["status"])
	assert.Equal(t, "203.0.113.7", entry["client_ip"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestSecureLogger_KeepsPlainQuery(t *testing.T) {
	entry := logRequest(t, "/api/tasks?search=report&sortBy=title", http.StatusOK)
	assert.Equal(t, "/api/tasks?search=report&sortBy=title", entry["path"])
}

func TestSecureLogger_ServerErrorsLoggedAsError(t *testing.T) {
	entry := logRequest(t, "/api/tasks", http.StatusInternalServerError)
	assert.Equal(t, "ERROR", entry["level"])
}
