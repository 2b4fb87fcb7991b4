// Package api provides the HTTP request executor for the Hearthside API. It
// handles bearer authentication with token refresh, the response envelope,
// and automatic retries with exponential backoff for transient failures.
//
// # Client Creation
//
// The package provides two ways to create a client:
//
//   - [NewClient]: Struct-based configuration for explicit, type-safe setup.
//   - [New]: Functional options pattern for flexible configuration.
//
// Both need a base URL, either fixed or from a [BaseURLSource].
//
// # Retry Behavior
//
// GET, HEAD and OPTIONS requests are retried up to 3 times after network
// errors, timeouts, 429 and 5xx responses. The delay doubles with each
// attempt (1s, 2s, 4s). Other methods are attempted once. Configure retries
// with [Config.Retry].
//
// # Authentication
//
// When [Config.Credentials] holds an access token it is sent as a bearer
// token. A 401 triggers one refresh through [RefreshPath] and one replay of
// the request. Concurrent 401s share a single refresh. If the refresh fails
// the credentials are expired and the error matches [ErrReauthRequired].
//
// # De-duplication
//
// Identical GET requests in flight at the same time share one network call.
// Each caller decodes its own copy of the response.
//
// # Error Handling
//
// Errors are classified by the apierrors package:
//
//	if errors.Is(err, api.ErrNotFound) {
//	    // Handle missing resource
//	}
//
// # Thread Safety
//
// The [Client] type is safe for concurrent use.
package api
