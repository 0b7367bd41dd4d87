package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ssargent/flatjson/pkg/codec"
	"github.com/ssargent/flatjson/pkg/logger"
)

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		requestHeader  string
		expectedStatus int
	}{
		{"valid API key", "test-key", http.StatusOK},
		{"missing API key header", "", http.StatusUnauthorized},
		{"invalid API key", "wrong-key", http.StatusUnauthorized},
		{"prefix of API key", "test", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			handler := apiKeyMiddleware("test-key")(testHandler)

			req := httptest.NewRequest("GET", "/test", nil)
			if tt.requestHeader != "" {
				req.Header.Set("X-API-Key", tt.requestHeader)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestInstrumentAuthMiddleware(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	handler := m.InstrumentAuthMiddleware(apiKeyMiddleware("k"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, key := range []string{"k", "bad", ""} {
		req := httptest.NewRequest("GET", "/", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.authRequestsTotal.WithLabelValues(statusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authRequestsTotal.WithLabelValues(statusError)))
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	inner := requestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.FromContext(r.Context()).Info("handled")
		w.WriteHeader(http.StatusTeapot)
	}))
	handler := middleware.RequestID(inner)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/api/v1/encode/Monster", nil))

	require.Equal(t, 2, logs.Len())
	entries := logs.All()

	handled := entries[0].ContextMap()
	assert.Equal(t, "handled", entries[0].Message)
	requestID, ok := handled["request_id"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, requestID)

	fields := entries[1].ContextMap()
	assert.Equal(t, "request", entries[1].Message)
	assert.Equal(t, "POST", fields["method"])
	assert.Equal(t, "/api/v1/encode/Monster", fields["path"])
	assert.Equal(t, int64(http.StatusTeapot), fields["status"])
	assert.Equal(t, requestID, fields["request_id"])
}

func TestSendSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	sendSuccess(w, map[string]string{"message": "test"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response APIResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.True(t, response.Success)
}

func TestSendError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			w := httptest.NewRecorder()
			sendError(w, "failure", status)

			assert.Equal(t, status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var response APIResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.False(t, response.Success)
			assert.Equal(t, "failure", response.Error)
		})
	}
}

func TestSendCodecError(t *testing.T) {
	root := loadTestSchema(t).RootTable()
	_, err := codec.Encode(`{ "hp": 1, "hp": 2 }`, root, codec.EncodeOptions{})
	require.Error(t, err)

	w := httptest.NewRecorder()
	sendCodecError(w, fmt.Errorf("wrapped: %w", err))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response APIResponse
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&response))
	assert.Equal(t, "duplicate field", response.Kind)
	assert.Equal(t, "hp", response.Field)

	assert.Equal(t, "duplicate field", errorKind(err))
	assert.Equal(t, "internal", errorKind(fmt.Errorf("other")))
}
