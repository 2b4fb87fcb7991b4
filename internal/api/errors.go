package api

import (
	"io"
	"net/http"
	"time"

	"github.com/hearthside/client-go/internal/apierrors"
)

// Re-exported so callers inside the module can stay on one import.
type (
	APIError     = apierrors.APIError
	NetworkError = apierrors.NetworkError
	TimeoutError = apierrors.TimeoutError
)

var (
	ErrUnauthorized   = apierrors.ErrUnauthorized
	ErrReauthRequired = apierrors.ErrReauthRequired
	ErrForbidden      = apierrors.ErrForbidden
	ErrNotFound       = apierrors.ErrNotFound
	ErrRateLimited    = apierrors.ErrRateLimited
	ErrServer         = apierrors.ErrServer
	ErrClient         = apierrors.ErrClient
	ErrMissingBaseURL = apierrors.ErrMissingBaseURL
	ErrNetwork        = apierrors.ErrNetwork
	ErrTimeout        = apierrors.ErrTimeout
)

// maxErrorBody bounds how much of an error body is read.
const maxErrorBody = 64 << 10

func parseErrorResponse(resp *http.Response, now time.Time) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    errorMessage(body, http.StatusText(resp.StatusCode)),
		RequestID:  requestIDFrom(resp, body),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), now)
	}
	return apiErr
}

func kindOf(err error) apierrors.Kind {
	return apierrors.KindOf(err)
}
