package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredLoggerLevels(t *testing.T) {
	cases := map[int]string{
		http.StatusOK:                  "INFO",
		http.StatusTooManyRequests:     "WARN",
		http.StatusInternalServerError: "ERROR",
	}
	for status, level := range cases {
		var buf bytes.Buffer
		h := middleware.RequestID(StructuredLogger(NewLogger(&buf, false))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/auth/login", nil))

		var entry map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, level, entry["level"])
		assert.Equal(t, float64(status), entry["status"])
		assert.Equal(t, "/auth/login", entry["path"])
		assert.NotEmpty(t, entry["req_id"])
	}
}

func TestNewLoggerDevelopment(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, true).Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}
