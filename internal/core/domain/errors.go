package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Common domain errors
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotAuthenticated   = errors.New("library session not authenticated")
)

// ============================================================
// Sync failure taxonomy
// ============================================================

// FailureKind is the closed set of fatal sync failure classifications
// surfaced to the HTTP trigger and the scheduler.
type FailureKind string

const (
	FailureAuth                FailureKind = "AUTH_FAILED"
	FailureUpstreamUnavailable FailureKind = "UPSTREAM_UNAVAILABLE"
	FailureUpstreamRejected    FailureKind = "UPSTREAM_REJECTED"
	FailureExternalTimeout     FailureKind = "EXTERNAL_TIMEOUT"
	FailureUnknown             FailureKind = "UNKNOWN"
)

// HTTPStatus maps a failure kind to the status code returned by the sync
// trigger endpoint.
func (k FailureKind) HTTPStatus() int {
	switch k {
	case FailureAuth:
		return http.StatusUnauthorized
	case FailureUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case FailureUpstreamRejected:
		return http.StatusBadGateway
	case FailureExternalTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// AuthError is raised when the circulation system rejects a login.
// StatusCode carries the upstream HTTP status (401 for bad credentials).
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("library login failed (status %d): %s", e.StatusCode, e.Message)
}

// UpstreamError is raised when the circulation system returns a non-2xx
// response after the transport's retry budget is exhausted.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("library upstream error (status %d): %s", e.StatusCode, e.Body)
}

// IsServerError reports whether the upstream failure was a 5xx
func (e *UpstreamError) IsServerError() bool {
	return e.StatusCode >= 500
}

// RenewalRejectedError is raised when the circulation system refuses a
// renewal (e.g. the title is reserved by another patron).
type RenewalRejectedError struct {
	Reason string
}

func (e *RenewalRejectedError) Error() string {
	return fmt.Sprintf("renewal rejected: %s", e.Reason)
}

// Classify maps an error from a sync run onto the failure taxonomy.
// Per-loan errors never reach this point; only fatal run-level errors do.
func Classify(err error) FailureKind {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return FailureAuth
	}

	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		if upErr.IsServerError() {
			return FailureUpstreamUnavailable
		}
		return FailureUpstreamRejected
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return FailureExternalTimeout
	}

	return FailureUnknown
}
