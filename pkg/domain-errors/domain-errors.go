package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents a domain error category independent of transport layer.
// These codes describe what went wrong in business logic terms, not HTTP terms.
type Code string

const (
	CodeNotFound          Code = "not_found"
	CodeBadRequest        Code = "bad_request"
	CodeInvalidArgument   Code = "invalid_argument"
	CodeCacheUnavailable  Code = "cache_unavailable"
	CodeUnknownChain      Code = "unknown_chain"
	CodeUnsupportedOption Code = "unsupported_option"
	CodeInternal          Code = "internal_error"
	CodeTimeout           Code = "timeout"
)

// Error wraps domain or infrastructure failures with a stable code.
// It is transport-agnostic and can be used across service, store, and other layers.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

// Unwrap implements error unwrapping for error chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is enables errors.Is() to match errors by code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new domain error with the given code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap creates a new domain error wrapping an existing error.
// If the wrapped error is already a domain error, the original code is preserved.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode checks if an error is a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// Sentinels usable with errors.Is.
var (
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrCacheUnavailable  = &Error{Code: CodeCacheUnavailable}
	ErrInvalidArgument   = &Error{Code: CodeInvalidArgument}
	ErrUnknownChain      = &Error{Code: CodeUnknownChain}
	ErrUnsupportedOption = &Error{Code: CodeUnsupportedOption}
)

// UpstreamError reports a failure returned by the durable table or the search index.
// StatusCode carries the backend status, 500 when the backend did not provide one.
type UpstreamError struct {
	StatusCode int
	Message    string
	Err        error
}

// NewUpstream builds an UpstreamError, defaulting the status to 500.
func NewUpstream(statusCode int, msg string, err error) *UpstreamError {
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	return &UpstreamError{StatusCode: statusCode, Message: msg, Err: err}
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %d: %s: %v", e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %d: %s", e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ProxyError reports an outbound call that failed or answered with a status above 304.
// Header and Body hold what the backend sent; bytes may already have reached the caller's sink.
type ProxyError struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URI        string
	Err        error
}

func (e *ProxyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("proxy %s: status %d: %v", e.URI, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("proxy %s: status %d", e.URI, e.StatusCode)
}

func (e *ProxyError) Unwrap() error {
	return e.Err
}

// StatusCode extracts a backend status from upstream or proxy errors.
// Returns 0 when err carries no status.
func StatusCode(err error) int {
	var up *UpstreamError
	if errors.As(err, &up) {
		return up.StatusCode
	}
	var px *ProxyError
	if errors.As(err, &px) {
		return px.StatusCode
	}
	return 0
}
