package hearthside

import (
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/hearthside/client-go/internal/storage"
)

// Environment variables consulted when the matching option is not set.
const (
	EnvAPIURL      = "HEARTHSIDE_API_URL"
	EnvOrigin      = "HEARTHSIDE_ORIGIN"
	EnvDevelopment = "HEARTHSIDE_DEV"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultRetries    = 3
	defaultRetryDelay = time.Second
)

// clientConfig holds configuration for the client.
type clientConfig struct {
	baseURL          string
	origin           string
	development      *bool
	store            storage.Store
	httpClient       *http.Client
	timeout          time.Duration
	retries          *int
	retryDelay       time.Duration
	logger           *zerolog.Logger
	registerer       prometheus.Registerer
	limiter          *rate.Limiter
	disableDiscovery bool
	disableDedup     bool
	userAgent        string
	onReauthRequired func()
	onError          func(error)
}

// Option configures the client.
type Option func(*clientConfig)

// WithBaseURL sets the API base URL, for example "https://example.com/api".
// It takes precedence over the default and over config discovery, but not
// over a base URL already remembered in the store.
func WithBaseURL(url string) Option {
	return func(c *clientConfig) {
		c.baseURL = url
	}
}

// WithOrigin sets the origin the default base URL is derived from.
// Default: http://localhost
func WithOrigin(origin string) Option {
	return func(c *clientConfig) {
		c.origin = origin
	}
}

// WithDevelopment selects the development default base URL, "<origin>/api".
// Outside development the default is "<scheme>://<hostname>:5000/api".
func WithDevelopment(dev bool) Option {
	return func(c *clientConfig) {
		c.development = &dev
	}
}

// WithStore sets where the session and the base URL are persisted. The
// client takes ownership and closes it on Close.
// Default: in-memory.
func WithStore(store Store) Option {
	return func(c *clientConfig) {
		c.store = store
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *clientConfig) {
		c.httpClient = client
	}
}

// WithTimeout sets the per-attempt request deadline.
// Default: 10 seconds
func WithTimeout(timeout time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = timeout
	}
}

// WithRetries sets how many times an idempotent request is retried after a
// transient failure. Zero disables retries.
// Default: 3
func WithRetries(count int) Option {
	return func(c *clientConfig) {
		c.retries = &count
	}
}

// WithRetryDelay sets the delay before the first retry. Each further retry
// doubles it.
// Default: 1 second
func WithRetryDelay(delay time.Duration) Option {
	return func(c *clientConfig) {
		c.retryDelay = delay
	}
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = &logger
	}
}

// WithMetricsRegisterer registers the client's Prometheus collectors on reg.
func WithMetricsRegisterer(reg prometheus.Registerer) Option {
	return func(c *clientConfig) {
		c.registerer = reg
	}
}

// WithRateLimit limits outgoing attempts to r per second with the given
// burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *clientConfig) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithoutDiscovery disables the background probe of the backend's config
// endpoint.
func WithoutDiscovery() Option {
	return func(c *clientConfig) {
		c.disableDiscovery = true
	}
}

// WithoutDedup disables sharing of identical in-flight GET requests.
func WithoutDedup() Option {
	return func(c *clientConfig) {
		c.disableDedup = true
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *clientConfig) {
		c.userAgent = ua
	}
}

// WithOnReauthRequired sets a callback invoked after the session was
// cleared because the server rejected it and a refresh could not recover.
// Hosts use it to send the user to the login screen.
func WithOnReauthRequired(fn func()) Option {
	return func(c *clientConfig) {
		c.onReauthRequired = fn
	}
}

// WithOnError sets a callback invoked with every terminal request failure,
// suitable for a transient notification built from UserMessage. Cancelled
// requests are not reported.
func WithOnError(fn func(error)) Option {
	return func(c *clientConfig) {
		c.onError = fn
	}
}

// applyEnv fills unset options from the environment.
func (c *clientConfig) applyEnv() {
	if c.baseURL == "" {
		c.baseURL = os.Getenv(EnvAPIURL)
	}
	if c.origin == "" {
		c.origin = os.Getenv(EnvOrigin)
	}
	if c.development == nil {
		if v, err := strconv.ParseBool(os.Getenv(EnvDevelopment)); err == nil {
			c.development = &v
		}
	}
}

func (c *clientConfig) isDevelopment() bool {
	return c.development != nil && *c.development
}
