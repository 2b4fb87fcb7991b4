// Package apierrors provides shared error types for the Hearthside client.
package apierrors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingBaseURL is returned when no API base URL could be determined.
	ErrMissingBaseURL = errors.New("API base URL is required")

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = errors.New("client has been closed")

	// ErrNetwork is matched by failures where no response was received.
	ErrNetwork = errors.New("network error")

	// ErrTimeout is matched when a request exceeded its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrUnauthorized is matched by HTTP 401 responses.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrReauthRequired is matched by a 401 that could not be recovered by a
	// token refresh. The session has been cleared.
	ErrReauthRequired = errors.New("session expired, please log in again")

	// ErrForbidden is matched by HTTP 403 responses.
	ErrForbidden = errors.New("forbidden")

	// ErrNotFound is matched by HTTP 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is matched by HTTP 429 responses.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrServer is matched by HTTP 5xx responses.
	ErrServer = errors.New("server error")

	// ErrClient is matched by any other HTTP 4xx response.
	ErrClient = errors.New("client error")
)

// Kind is the classification of a failed call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindRateLimited
	KindServer
	KindClient
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindServer:
		return "server"
	case KindClient:
		return "client"
	default:
		return "unknown"
	}
}

// KindForStatus maps an HTTP status code to its classification.
// Status codes below 400 return KindUnknown.
func KindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindUnauthorized
	case status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusTooManyRequests:
		return KindRateLimited
	case status >= 500 && status <= 599:
		return KindServer
	case status >= 400:
		return KindClient
	}
	return KindUnknown
}

// APIError represents an HTTP error from the Hearthside API.
type APIError struct {
	StatusCode int
	Message    string
	RequestID  string
	// RetryAfter is the server supplied wait hint on 429 responses.
	// Zero when the header was absent.
	RetryAfter time.Duration
	// SessionCleared is set on a 401 that could not be recovered.
	SessionCleared bool
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		if e.Message != "" {
			return fmt.Sprintf("API error %d: %s (request_id: %s)", e.StatusCode, e.Message, e.RequestID)
		}
		return fmt.Sprintf("API error %d (request_id: %s)", e.StatusCode, e.RequestID)
	}
	if e.Message != "" {
		return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d", e.StatusCode)
}

// Kind returns the classification of the error. An error envelope carried
// by a 2xx response is a client error.
func (e *APIError) Kind() Kind {
	if k := KindForStatus(e.StatusCode); k != KindUnknown {
		return k
	}
	return KindClient
}

// RetryAfterSeconds returns the Retry-After hint in whole seconds.
func (e *APIError) RetryAfterSeconds() (int, bool) {
	if e.RetryAfter <= 0 {
		return 0, false
	}
	return int(e.RetryAfter.Round(time.Second) / time.Second), true
}

// Is implements errors.Is for sentinel error matching.
func (e *APIError) Is(target error) bool {
	switch e.Kind() {
	case KindUnauthorized:
		return target == ErrUnauthorized || (e.SessionCleared && target == ErrReauthRequired)
	case KindForbidden:
		return target == ErrForbidden
	case KindNotFound:
		return target == ErrNotFound
	case KindRateLimited:
		return target == ErrRateLimited
	case KindServer:
		return target == ErrServer
	case KindClient:
		return target == ErrClient
	}
	return false
}

// NetworkError represents a network-level failure.
type NetworkError struct {
	Err     error
	URL     string
	Attempt int
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is for sentinel error matching.
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// TimeoutError represents an operation that exceeded its deadline.
type TimeoutError struct {
	Operation string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Timeout)
}

// Is implements errors.Is for sentinel error matching. A timeout is also a
// network error for retry purposes.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout || target == ErrNetwork
}

// KindOf classifies any error returned by the client.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	var timeoutErr *TimeoutError
	if errors.As(err, &timeoutErr) {
		return KindTimeout
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnknown
}

// Retryable reports whether err is a transient failure that may succeed if
// the request is sent again.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindRateLimited, KindServer:
		return true
	}
	return false
}

const genericMessage = "something went wrong, please try again"

// UserMessage returns a short message suitable for a transient notification.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	hasAPI := errors.As(err, &apiErr)

	switch KindOf(err) {
	case KindNetwork, KindTimeout:
		return "check your connection"
	case KindServer:
		return "server error, try later"
	case KindRateLimited:
		if secs, ok := apiErr.RetryAfterSeconds(); ok {
			return fmt.Sprintf("rate limited, retry after %d seconds", secs)
		}
		return "rate limited, retry later"
	case KindForbidden:
		return "you do not have permission to do that"
	case KindUnauthorized:
		return "please log in to continue"
	case KindNotFound:
		if hasAPI && apiErr.Message != "" {
			return apiErr.Message
		}
		return "not found"
	case KindClient:
		if hasAPI && apiErr.Message != "" {
			return apiErr.Message
		}
	}
	return genericMessage
}
