package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("gemini")

	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.Contains(t, err.Error(), "UPSTREAM_ERROR")
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewDecompositionError("empty sub-query list", nil)
	wrapped := fmt.Errorf("reason: %w", inner)

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrDecomposition, e.Code)
	assert.True(t, IsErrorCode(wrapped, ErrDecomposition))
	assert.False(t, IsErrorCode(wrapped, ErrComposition))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestError_Constructors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		err    *Error
		code   ErrorCode
		status int
	}{
		{"parse", NewParseError("no content"), ErrParse, http.StatusInternalServerError},
		{"backend", NewBackendIndexError("sparse", errors.New("disk full")), ErrBackendIndex, http.StatusInternalServerError},
		{"retrieval", NewRetrievalError("vector path", nil), ErrRetrieval, http.StatusInternalServerError},
		{"graph", NewKnowledgeGraphRetrieverError("graph absent", nil), ErrKnowledgeGraphRetrieval, http.StatusInternalServerError},
		{"composition", NewCompositionError("keys differ", nil), ErrComposition, http.StatusInternalServerError},
		{"state", NewConversationStateError("two tool calls"), ErrConversationState, http.StatusInternalServerError},
		{"not found", NewNotFoundError("conversation"), ErrNotFound, http.StatusNotFound},
		{"invalid", NewInvalidRequestError("missing user_id"), ErrInvalidRequest, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
		})
	}
}

func TestBackendIndexError_MessageNamesBackend(t *testing.T) {
	t.Parallel()

	err := NewBackendIndexError("graph", errors.New("boom"))
	assert.Contains(t, err.Error(), "graph backend failed")
	assert.Contains(t, err.Error(), "boom")
}
