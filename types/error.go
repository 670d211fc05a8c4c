package types

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unified error code across the service.
type ErrorCode string

// Pipeline error codes
const (
	ErrParse                     ErrorCode = "PARSE_ERROR"
	ErrBackendIndex              ErrorCode = "BACKEND_INDEX_ERROR"
	ErrRetrieval                 ErrorCode = "RETRIEVAL_ERROR"
	ErrKnowledgeGraphRetrieval   ErrorCode = "KNOWLEDGE_GRAPH_RETRIEVER_ERROR"
	ErrDecomposition             ErrorCode = "DECOMPOSITION_ERROR"
	ErrComposition               ErrorCode = "COMPOSITION_ERROR"
	ErrConversationState         ErrorCode = "CONVERSATION_STATE_ERROR"
	ErrMemoryConsolidation       ErrorCode = "MEMORY_CONSOLIDATION_ERROR"
	ErrStructuredOutputViolation ErrorCode = "STRUCTURED_OUTPUT_VIOLATION"
)

// Generic error codes
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrAuthentication     ErrorCode = "AUTHENTICATION"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// =============================================================================
// Constructors
// =============================================================================

// NewParseError reports that no content could be extracted from an input.
func NewParseError(message string) *Error {
	return NewError(ErrParse, message).WithHTTPStatus(http.StatusInternalServerError)
}

// NewBackendIndexError reports a failed index backend.
func NewBackendIndexError(backend string, cause error) *Error {
	return NewError(ErrBackendIndex, fmt.Sprintf("%s backend failed", backend)).
		WithCause(cause).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewRetrievalError reports a failed retrieval path.
func NewRetrievalError(message string, cause error) *Error {
	return NewError(ErrRetrieval, message).
		WithCause(cause).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewKnowledgeGraphRetrieverError reports a failure of the graph store.
func NewKnowledgeGraphRetrieverError(message string, cause error) *Error {
	return NewError(ErrKnowledgeGraphRetrieval, message).
		WithCause(cause).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewDecompositionError reports an unusable query decomposition.
func NewDecompositionError(message string, cause error) *Error {
	return NewError(ErrDecomposition, message).
		WithCause(cause).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewCompositionError reports a malformed or non-uniform composed output.
func NewCompositionError(message string, cause error) *Error {
	return NewError(ErrComposition, message).
		WithCause(cause).
		WithHTTPStatus(http.StatusInternalServerError)
}

// NewConversationStateError reports an illegal agent turn.
func NewConversationStateError(message string) *Error {
	return NewError(ErrConversationState, message).WithHTTPStatus(http.StatusInternalServerError)
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(message string) *Error {
	return NewError(ErrNotFound, message).WithHTTPStatus(http.StatusNotFound)
}

// NewInvalidRequestError reports malformed caller input.
func NewInvalidRequestError(message string) *Error {
	return NewError(ErrInvalidRequest, message).WithHTTPStatus(http.StatusBadRequest)
}

// NewInternalError wraps an unexpected failure.
func NewInternalError(message string, cause error) *Error {
	return NewError(ErrInternalError, message).
		WithCause(cause).
		WithHTTPStatus(http.StatusInternalServerError)
}

// =============================================================================
// Helpers
// =============================================================================

// AsError finds the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorCode reports whether err carries the given code anywhere in its chain.
func IsErrorCode(err error, code ErrorCode) bool {
	if e, ok := AsError(err); ok {
		return e.Code == code
	}
	return false
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if e, ok := AsError(err); ok {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}
