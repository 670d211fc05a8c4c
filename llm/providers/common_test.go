package providers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/BaSui01/cortex/llm"
	"github.com/stretchr/testify/assert"
)

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		msg       string
		wantCode  llm.ErrorCode
		retryable bool
	}{
		{"401", http.StatusUnauthorized, "bad key", llm.ErrUnauthorized, false},
		{"403", http.StatusForbidden, "denied", llm.ErrForbidden, false},
		{"429", http.StatusTooManyRequests, "slow down", llm.ErrRateLimited, true},
		{"400 quota", http.StatusBadRequest, "Quota exceeded for project", llm.ErrQuotaExceeded, false},
		{"400 plain", http.StatusBadRequest, "invalid argument", llm.ErrInvalidRequest, false},
		{"504", http.StatusGatewayTimeout, "timeout", llm.ErrUpstreamTimeout, true},
		{"503", http.StatusServiceUnavailable, "overloaded", llm.ErrUpstreamError, true},
		{"500", http.StatusInternalServerError, "boom", llm.ErrUpstreamError, true},
		{"404", http.StatusNotFound, "no model", llm.ErrUpstreamError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapHTTPError(tt.status, tt.msg, "gemini")
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, "gemini", err.Provider)
			assert.Equal(t, tt.retryable, llm.IsRetryable(err))
		})
	}
}

func TestReadErrorMessage(t *testing.T) {
	gemini := `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`
	assert.Equal(t, "API key not valid (type: INVALID_ARGUMENT)", ReadErrorMessage(strings.NewReader(gemini)))

	plain := `{"error":{"message":"nope"}}`
	assert.Equal(t, "nope", ReadErrorMessage(strings.NewReader(plain)))

	assert.Equal(t, "upstream exploded", ReadErrorMessage(strings.NewReader(" upstream exploded\n")))
}

func TestChooseModel(t *testing.T) {
	assert.Equal(t, "req", ChooseModel(&llm.ChatRequest{Model: "req"}, "def", "fb"))
	assert.Equal(t, "def", ChooseModel(&llm.ChatRequest{}, "def", "fb"))
	assert.Equal(t, "fb", ChooseModel(nil, "", "fb"))
}

func TestTransportError(t *testing.T) {
	err := TransportError(errors.New("connection refused"), "gemini")
	assert.True(t, err.Retryable)
	assert.Equal(t, llm.ErrUpstreamError, err.Code)
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus)
}
