package hearthside

import (
	"github.com/hearthside/client-go/internal/apierrors"
	"github.com/hearthside/client-go/internal/session"
)

// Sentinel errors for errors.Is() checks
var (
	// ErrMissingBaseURL is returned when no API base URL could be determined.
	ErrMissingBaseURL = apierrors.ErrMissingBaseURL

	// ErrClientClosed is returned when operations are attempted on a closed client.
	ErrClientClosed = apierrors.ErrClientClosed

	// ErrNetwork is matched when no response was received.
	ErrNetwork = apierrors.ErrNetwork

	// ErrTimeout is matched when a request attempt exceeded its deadline.
	ErrTimeout = apierrors.ErrTimeout

	// ErrUnauthorized is matched by 401 responses.
	ErrUnauthorized = apierrors.ErrUnauthorized

	// ErrReauthRequired is matched when the server rejected the session and
	// it has been cleared. The user must log in again.
	ErrReauthRequired = apierrors.ErrReauthRequired

	// ErrForbidden is matched by 403 responses.
	ErrForbidden = apierrors.ErrForbidden

	// ErrNotFound is matched by 404 responses.
	ErrNotFound = apierrors.ErrNotFound

	// ErrRateLimited is matched by 429 responses.
	ErrRateLimited = apierrors.ErrRateLimited

	// ErrServer is matched by 5xx responses.
	ErrServer = apierrors.ErrServer

	// ErrClient is matched by other 4xx responses and by error envelopes.
	ErrClient = apierrors.ErrClient

	// ErrNotAuthenticated is returned by operations that need a session
	// when there is none.
	ErrNotAuthenticated = session.ErrNotAuthenticated
)

// APIError is an HTTP error from the Hearthside API.
type APIError = apierrors.APIError

// NetworkError is a failure where no response was received.
type NetworkError = apierrors.NetworkError

// TimeoutError is a request attempt that exceeded its deadline.
type TimeoutError = apierrors.TimeoutError

// ErrorKind classifies a failed call.
type ErrorKind = apierrors.Kind

// Error kinds.
const (
	KindUnknown      = apierrors.KindUnknown
	KindNetwork      = apierrors.KindNetwork
	KindTimeout      = apierrors.KindTimeout
	KindUnauthorized = apierrors.KindUnauthorized
	KindForbidden    = apierrors.KindForbidden
	KindNotFound     = apierrors.KindNotFound
	KindRateLimited  = apierrors.KindRateLimited
	KindServer       = apierrors.KindServer
	KindClient       = apierrors.KindClient
)

// KindOf classifies any error returned by the client.
func KindOf(err error) ErrorKind {
	return apierrors.KindOf(err)
}

// UserMessage returns a short text describing err, suitable for a transient
// notification.
func UserMessage(err error) string {
	return apierrors.UserMessage(err)
}

// Retryable reports whether err is transient.
func Retryable(err error) bool {
	return apierrors.Retryable(err)
}
