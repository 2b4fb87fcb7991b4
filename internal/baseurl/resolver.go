// Package baseurl determines the URL prefix used for every API call.
//
// A Resolver picks the first available of: the value remembered in the
// store, the configured override, or a default derived from the host origin.
// The chosen value is remembered immediately. Once per Resolver, a
// background probe of the backend's config document may replace it.
package baseurl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/hearthside/client-go/internal/storage"
)

const (
	// ConfigPath is the config discovery endpoint, relative to the origin.
	ConfigPath = "/api/config"
	// DefaultPort is the backend port used outside development.
	DefaultPort = 5000
	// DefaultProbeTimeout bounds the config discovery request.
	DefaultProbeTimeout = 5 * time.Second
	// DefaultOrigin is assumed when no origin is configured.
	DefaultOrigin = "http://localhost"
)

// Source records where the current base URL came from.
type Source string

const (
	SourceNone       Source = ""
	SourceStored     Source = "stored"
	SourceOverride   Source = "override"
	SourceDefault    Source = "default"
	SourceDiscovered Source = "discovered"
)

// Config configures a Resolver.
type Config struct {
	// Store remembers the chosen base URL. Required.
	Store storage.Store
	// Override is an externally supplied base URL. It takes precedence over
	// discovery.
	Override string
	// Origin is the scheme and host the client runs on behalf of, such as
	// the page origin of a web front end.
	Origin string
	// Development selects the same-origin "/api" default.
	Development bool
	// Port is the backend port for the non-development default.
	Port         int
	HTTPClient   *http.Client
	ProbeTimeout time.Duration
	// DisableDiscovery turns off the background config probe.
	DisableDiscovery bool
	Logger           *zerolog.Logger
}

// Resolver resolves and remembers the API base URL. It is safe for
// concurrent use.
type Resolver struct {
	store        storage.Store
	override     string
	origin       string
	development  bool
	port         int
	httpClient   *http.Client
	probeTimeout time.Duration
	discovery    bool
	logger       zerolog.Logger

	mu      sync.Mutex
	current string
	source  Source

	refineOnce sync.Once
	refined    chan struct{}

	// ctx bounds the background probe. Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Resolver.
func New(cfg Config) (*Resolver, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("baseurl: store is required")
	}
	origin := strings.TrimSuffix(cfg.Origin, "/")
	if origin == "" {
		origin = DefaultOrigin
	}
	if _, err := url.Parse(origin); err != nil {
		return nil, fmt.Errorf("baseurl: invalid origin %q: %w", cfg.Origin, err)
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "baseurl").Logger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Resolver{
		store:        cfg.Store,
		override:     strings.TrimSuffix(cfg.Override, "/"),
		origin:       origin,
		development:  cfg.Development,
		port:         port,
		httpClient:   httpClient,
		probeTimeout: probeTimeout,
		discovery:    !cfg.DisableDiscovery,
		logger:       logger,
		refined:      make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

// BaseURL implements api.BaseURLSource.
func (r *Resolver) BaseURL(ctx context.Context) (string, error) {
	return r.Resolve(ctx)
}

// Resolve returns the base URL, choosing and remembering one on first use.
// The first call also starts the background discovery probe. Resolve never
// fails because of the store or the network; the worst case is a stale or
// default value.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	r.mu.Lock()
	if r.current == "" {
		r.current, r.source = r.choose(ctx)
		r.remember(ctx, r.current)
		r.logger.Debug().Str("base_url", r.current).Str("source", string(r.source)).Msg("base URL chosen")
	}
	current := r.current
	r.mu.Unlock()

	r.startDiscovery()
	return current, nil
}

// Current returns the base URL in effect and where it came from, without
// triggering resolution.
func (r *Resolver) Current() (string, Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.source
}

// Discovered is closed once the background discovery probe has finished,
// or immediately after the first Resolve when discovery is disabled.
func (r *Resolver) Discovered() <-chan struct{} {
	return r.refined
}

// Close stops a running discovery probe and waits for it to return. No probe
// starts after Close; Resolve keeps serving the chosen value.
func (r *Resolver) Close() {
	r.cancel()
	r.refineOnce.Do(func() { close(r.refined) })
	<-r.refined
}

// Forget drops the remembered value so the next Resolve starts over.
func (r *Resolver) Forget(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = ""
	r.source = SourceNone
	if err := r.store.Delete(ctx, storage.KeyAPIBaseURL); err != nil {
		return fmt.Errorf("forget base URL: %w", err)
	}
	return nil
}

func (r *Resolver) choose(ctx context.Context) (string, Source) {
	stored, err := storage.GetOptional(ctx, r.store, storage.KeyAPIBaseURL)
	if err != nil {
		r.logger.Warn().Err(err).Msg("reading remembered base URL")
	}
	if stored != "" {
		return strings.TrimSuffix(stored, "/"), SourceStored
	}
	if r.override != "" {
		return r.override, SourceOverride
	}
	return r.defaultURL(), SourceDefault
}

// defaultURL is "<origin>/api" in development and
// "<scheme>://<hostname>:<port>/api" otherwise.
func (r *Resolver) defaultURL() string {
	if r.development {
		return r.origin + "/api"
	}
	u, err := url.Parse(r.origin)
	if err != nil || u.Hostname() == "" {
		return fmt.Sprintf("http://localhost:%d/api", r.port)
	}
	scheme := u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s:%d/api", scheme, u.Hostname(), r.port)
}

func (r *Resolver) remember(ctx context.Context, value string) {
	if err := r.store.Set(ctx, storage.KeyAPIBaseURL, value); err != nil {
		r.logger.Warn().Err(err).Msg("remembering base URL")
	}
}

func (r *Resolver) startDiscovery() {
	r.refineOnce.Do(func() {
		if !r.discovery || r.override != "" {
			close(r.refined)
			return
		}
		go func() {
			defer close(r.refined)
			if _, err := r.Discover(r.ctx); err != nil {
				r.logger.Debug().Err(err).Msg("config discovery failed")
			}
		}()
	})
}

// Discover fetches the backend's config document and adopts the base URL it
// names, if different. It returns the base URL in effect afterwards.
func (r *Resolver) Discover(ctx context.Context) (string, error) {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()
	if current == "" {
		return "", fmt.Errorf("discover: base URL not resolved yet")
	}

	probeURL, err := configURL(current, r.origin)
	if err != nil {
		return current, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, probeURL, nil)
	if err != nil {
		return current, fmt.Errorf("discover: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return current, fmt.Errorf("discover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return current, fmt.Errorf("discover: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return current, fmt.Errorf("discover: %w", err)
	}

	discovered := gjson.GetBytes(body, "data.apiBaseUrl").String()
	if discovered == "" {
		discovered = gjson.GetBytes(body, "apiBaseUrl").String()
	}
	discovered = strings.TrimSuffix(discovered, "/")
	if discovered == "" {
		return current, nil
	}
	if _, err := url.Parse(discovered); err != nil {
		return current, fmt.Errorf("discover: invalid apiBaseUrl %q: %w", discovered, err)
	}

	if err := ctx.Err(); err != nil {
		return current, fmt.Errorf("discover: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if discovered == r.current {
		return r.current, nil
	}
	r.logger.Info().Str("from", r.current).Str("to", discovered).Msg("adopting discovered base URL")
	r.current = discovered
	r.source = SourceDiscovered
	r.remember(ctx, discovered)
	return r.current, nil
}

// configURL places the config path on the origin of base. A relative base
// is resolved against origin.
func configURL(base, origin string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("discover: invalid base URL %q: %w", base, err)
	}
	if u.Host == "" {
		o, err := url.Parse(origin)
		if err != nil {
			return "", fmt.Errorf("discover: invalid origin %q: %w", origin, err)
		}
		u = o
	}
	return u.Scheme + "://" + u.Host + ConfigPath, nil
}
