package apierrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "status code only",
			err:      &APIError{StatusCode: 500},
			expected: "API error 500",
		},
		{
			name:     "with message",
			err:      &APIError{StatusCode: 400, Message: "title is required"},
			expected: "API error 400: title is required",
		},
		{
			name:     "with request ID",
			err:      &APIError{StatusCode: 502, RequestID: "req-1"},
			expected: "API error 502 (request_id: req-1)",
		},
		{
			name:     "with message and request ID",
			err:      &APIError{StatusCode: 404, Message: "post not found", RequestID: "req-2"},
			expected: "API error 404: post not found (request_id: req-2)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestKindForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Kind
	}{
		{200, KindUnknown},
		{302, KindUnknown},
		{400, KindClient},
		{401, KindUnauthorized},
		{403, KindForbidden},
		{404, KindNotFound},
		{409, KindClient},
		{422, KindClient},
		{429, KindRateLimited},
		{500, KindServer},
		{503, KindServer},
		{599, KindServer},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			if got := KindForStatus(tt.status); got != tt.want {
				t.Errorf("KindForStatus(%d) = %v, want %v", tt.status, got, tt.want)
			}
		})
	}
}

func TestAPIError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    *APIError
		target error
		want   bool
	}{
		{"401 is unauthorized", &APIError{StatusCode: 401}, ErrUnauthorized, true},
		{"401 is not reauth", &APIError{StatusCode: 401}, ErrReauthRequired, false},
		{"cleared 401 is reauth", &APIError{StatusCode: 401, SessionCleared: true}, ErrReauthRequired, true},
		{"cleared 401 is still unauthorized", &APIError{StatusCode: 401, SessionCleared: true}, ErrUnauthorized, true},
		{"403 is forbidden", &APIError{StatusCode: 403}, ErrForbidden, true},
		{"403 is not unauthorized", &APIError{StatusCode: 403}, ErrUnauthorized, false},
		{"404 is not found", &APIError{StatusCode: 404}, ErrNotFound, true},
		{"429 is rate limited", &APIError{StatusCode: 429}, ErrRateLimited, true},
		{"500 is server", &APIError{StatusCode: 500}, ErrServer, true},
		{"504 is server", &APIError{StatusCode: 504}, ErrServer, true},
		{"422 is client", &APIError{StatusCode: 422}, ErrClient, true},
		{"error envelope on 200 is client", &APIError{StatusCode: 200}, ErrClient, true},
		{"500 is not client", &APIError{StatusCode: 500}, ErrClient, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestAPIError_WrappedIs(t *testing.T) {
	err := fmt.Errorf("list posts: %w", &APIError{StatusCode: 404})
	if !errors.Is(err, ErrNotFound) {
		t.Error("wrapped 404 should match ErrNotFound")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Errorf("errors.As failed: %v", apiErr)
	}
}

func TestAPIError_RetryAfterSeconds(t *testing.T) {
	e := &APIError{StatusCode: 429, RetryAfter: 30 * time.Second}
	secs, ok := e.RetryAfterSeconds()
	if !ok || secs != 30 {
		t.Errorf("RetryAfterSeconds() = %d, %v, want 30, true", secs, ok)
	}

	e = &APIError{StatusCode: 429}
	if _, ok := e.RetryAfterSeconds(); ok {
		t.Error("RetryAfterSeconds() should report absence")
	}
}

func TestNetworkError(t *testing.T) {
	inner := errors.New("connection refused")
	err := &NetworkError{Err: inner, URL: "http://api/posts", Attempt: 2}

	if got := err.Error(); got != "network error: connection refused" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("NetworkError should unwrap to the cause")
	}
	if !errors.Is(err, ErrNetwork) {
		t.Error("NetworkError should match ErrNetwork")
	}
	if KindOf(err) != KindNetwork {
		t.Errorf("KindOf = %v, want network", KindOf(err))
	}
}

func TestTimeoutError(t *testing.T) {
	err := &TimeoutError{Operation: "GET /posts", Timeout: 10 * time.Second}

	if got := err.Error(); got != "GET /posts timed out after 10s" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, ErrNetwork) {
		t.Error("TimeoutError should match ErrTimeout and ErrNetwork")
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("KindOf = %v, want timeout", KindOf(err))
	}
}

func TestKindOf(t *testing.T) {
	if KindOf(nil) != KindUnknown {
		t.Error("KindOf(nil) should be unknown")
	}
	if KindOf(errors.New("boom")) != KindUnknown {
		t.Error("plain error should be unknown")
	}
	if KindOf(fmt.Errorf("wrap: %w", &APIError{StatusCode: 503})) != KindServer {
		t.Error("wrapped 503 should be server")
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network", &NetworkError{Err: errors.New("reset")}, true},
		{"timeout", &TimeoutError{Operation: "GET /"}, true},
		{"429", &APIError{StatusCode: 429}, true},
		{"500", &APIError{StatusCode: 500}, true},
		{"503", &APIError{StatusCode: 503}, true},
		{"400", &APIError{StatusCode: 400}, false},
		{"401", &APIError{StatusCode: 401}, false},
		{"403", &APIError{StatusCode: 403}, false},
		{"404", &APIError{StatusCode: 404}, false},
		{"canceled", context.Canceled, false},
		{"canceled network", &NetworkError{Err: context.Canceled}, false},
		{"unknown", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Retryable(tt.err); got != tt.want {
				t.Errorf("Retryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"network", &NetworkError{Err: errors.New("dial")}, "check your connection"},
		{"timeout", &TimeoutError{Operation: "GET /"}, "check your connection"},
		{"server", &APIError{StatusCode: 502}, "server error, try later"},
		{"rate limited with hint", &APIError{StatusCode: 429, RetryAfter: 30 * time.Second}, "rate limited, retry after 30 seconds"},
		{"rate limited without hint", &APIError{StatusCode: 429}, "rate limited, retry later"},
		{"forbidden", &APIError{StatusCode: 403, Message: "admins only"}, "you do not have permission to do that"},
		{"unauthorized", &APIError{StatusCode: 401, SessionCleared: true}, "please log in to continue"},
		{"not found with message", &APIError{StatusCode: 404, Message: "course not found"}, "course not found"},
		{"not found bare", &APIError{StatusCode: 404}, "not found"},
		{"validation", &APIError{StatusCode: 422, Message: "title is required"}, "title is required"},
		{"client without message", &APIError{StatusCode: 400}, "something went wrong, please try again"},
		{"unknown", errors.New("boom"), "something went wrong, please try again"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	tests := map[Kind]string{
		KindUnknown:      "unknown",
		KindNetwork:      "network",
		KindTimeout:      "timeout",
		KindUnauthorized: "unauthorized",
		KindForbidden:    "forbidden",
		KindNotFound:     "not_found",
		KindRateLimited:  "rate_limited",
		KindServer:       "server",
		KindClient:       "client",
	}
	for k, want := range tests {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(k), got, want)
		}
	}
}
