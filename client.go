package hearthside

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/hearthside/client-go/internal/api"
	"github.com/hearthside/client-go/internal/baseurl"
	"github.com/hearthside/client-go/internal/session"
	"github.com/hearthside/client-go/internal/storage"
	"github.com/hearthside/client-go/internal/storage/memory"
)

// Session is a snapshot of the authenticated state.
type Session = session.Session

// User is the summary of the signed-in user kept with the session.
type User = session.UserSummary

// Pagination is the pagination block of a list response.
type Pagination = api.Pagination

// SessionEvent identifies a session change.
type SessionEvent = session.Event

// Session change events.
const (
	SessionLogin       = session.EventLogin
	SessionRefreshed   = session.EventRefresh
	SessionUserUpdated = session.EventUserUpdated
	SessionCleared     = session.EventCleared
)

// Client is the Hearthside API client. It is safe for concurrent use.
type Client struct {
	api      *api.Client
	session  *session.Manager
	resolver *baseurl.Resolver
	store    storage.Store
	logger   zerolog.Logger
	onError  func(error)

	mu     sync.RWMutex
	closed bool

	Posts         *Resource
	Comments      *Resource
	Users         *Resource
	Events        *Resource
	Courses       *Resource
	Podcasts      *Resource
	Communities   *Resource
	Payments      *Resource
	Gamification  *Resource
	Notifications *Resource
}

// buildAPIClient creates and configures an API client from the given config.
func buildAPIClient(cfg *clientConfig, src api.BaseURLSource, creds api.Credentials) (*api.Client, error) {
	retry := api.DefaultRetryConfig()
	retry.MaxRetries = defaultRetries
	if cfg.retries != nil {
		retry.MaxRetries = *cfg.retries
	}
	if cfg.retryDelay > 0 {
		retry.BaseDelay = cfg.retryDelay
	}

	apiCfg := api.Config{
		BaseURLSource:    src,
		Credentials:      creds,
		HTTPClient:       cfg.httpClient,
		Timeout:          cfg.timeout,
		Retry:            retry,
		DisableDedup:     cfg.disableDedup,
		Limiter:          cfg.limiter,
		Logger:           cfg.logger,
		UserAgent:        cfg.userAgent,
		OnSessionExpired: cfg.onReauthRequired,
	}
	if cfg.registerer != nil {
		metrics, err := api.NewMetrics(cfg.registerer)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		apiCfg.Metrics = metrics
	}
	return api.NewClient(apiCfg)
}

// New creates a new Hearthside client and restores any session persisted in
// the store.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		timeout:    defaultTimeout,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.applyEnv()

	store := cfg.store
	if store == nil {
		store = memory.New()
	}

	logger := zerolog.Nop()
	if cfg.logger != nil {
		logger = *cfg.logger
	}

	resolver, err := baseurl.New(baseurl.Config{
		Store:            store,
		Override:         cfg.baseURL,
		Origin:           cfg.origin,
		Development:      cfg.isDevelopment(),
		HTTPClient:       cfg.httpClient,
		DisableDiscovery: cfg.disableDiscovery,
		Logger:           cfg.logger,
	})
	if err != nil {
		return nil, err
	}

	sess := session.NewManager(store, session.WithLogger(logger))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()
	if err := sess.Load(ctx); err != nil {
		resolver.Close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	apiClient, err := buildAPIClient(cfg, resolver, sess)
	if err != nil {
		resolver.Close()
		return nil, err
	}

	c := &Client{
		api:      apiClient,
		session:  sess,
		resolver: resolver,
		store:    store,
		logger:   logger.With().Str("component", "client").Logger(),
		onError:  cfg.onError,
	}
	c.Posts = c.Resource("posts")
	c.Comments = c.Resource("comments")
	c.Users = c.Resource("users")
	c.Events = c.Resource("events")
	c.Courses = c.Resource("courses")
	c.Podcasts = c.Resource("podcasts")
	c.Communities = c.Resource("communities")
	c.Payments = c.Resource("payments")
	c.Gamification = c.Resource("gamification")
	c.Notifications = c.Resource("notifications")
	return c, nil
}

// checkClosed returns ErrClientClosed if the client has been closed.
func (c *Client) checkClosed() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// report hands a terminal failure to the error callback and returns it.
func (c *Client) report(err error) error {
	if err == nil || c.onError == nil {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrClientClosed) {
		return err
	}
	c.onError(err)
	return err
}

// BaseURL returns the API base URL in effect, resolving it on first use.
func (c *Client) BaseURL(ctx context.Context) (string, error) {
	return c.resolver.Resolve(ctx)
}

// ForgetBaseURL drops the remembered base URL so the next request resolves
// it again.
func (c *Client) ForgetBaseURL(ctx context.Context) error {
	return c.resolver.Forget(ctx)
}

// Subscribe registers fn to be called after every session change and
// returns a function that removes it.
func (c *Client) Subscribe(fn func(SessionEvent, Session)) func() {
	return c.session.Subscribe(fn)
}

// Close releases the store. Further calls fail with ErrClientClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.resolver.Close()
	c.session.Close()
	return c.store.Close()
}
