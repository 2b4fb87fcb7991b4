package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
	DefaultUserAgent  = "hearthside-client-go"
)

// BaseURLSource supplies the base URL prepended to every relative path.
type BaseURLSource interface {
	BaseURL(ctx context.Context) (string, error)
}

// Credentials is the view of the session the client needs. Token returns
// the current access and refresh tokens; an error or an empty access token
// means the request is sent without an Authorization header.
type Credentials interface {
	oauth2.TokenSource
	// SetTokens replaces the tokens after a successful refresh.
	SetTokens(ctx context.Context, accessToken, refreshToken string) error
	// Expire clears the session after an unrecoverable 401.
	Expire(ctx context.Context) error
}

// Config holds the client configuration.
type Config struct {
	// BaseURL is a fixed base URL. Ignored when BaseURLSource is set.
	BaseURL       string
	BaseURLSource BaseURLSource
	Credentials   Credentials
	HTTPClient    *http.Client
	// Timeout is the per-attempt deadline.
	Timeout time.Duration
	// Retry is the retry policy. Nil uses DefaultRetryConfig.
	Retry *RetryConfig
	// DisableDedup turns off joining of identical in-flight GET requests.
	DisableDedup bool
	// Limiter, when set, is waited on before every attempt.
	Limiter   *rate.Limiter
	Logger    *zerolog.Logger
	Metrics   *Metrics
	UserAgent string
	// OnSessionExpired is called after the session was cleared because of
	// an unrecoverable 401.
	OnSessionExpired func()
}

// Client is the HTTP API client.
type Client struct {
	baseURL          string
	baseURLSource    BaseURLSource
	creds            Credentials
	httpClient       *http.Client
	timeout          time.Duration
	retry            *RetryConfig
	dedup            bool
	limiter          *rate.Limiter
	logger           zerolog.Logger
	metrics          *Metrics
	userAgent        string
	onSessionExpired func()

	inflight singleflight.Group
	refresh  singleflight.Group
	now      func() time.Time
}

// NewClient creates a new API client from a Config.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" && cfg.BaseURLSource == nil {
		return nil, ErrMissingBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	retry := cfg.Retry
	if retry == nil {
		retry = DefaultRetryConfig()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "api").Logger()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	return &Client{
		baseURL:          strings.TrimSuffix(cfg.BaseURL, "/"),
		baseURLSource:    cfg.BaseURLSource,
		creds:            cfg.Credentials,
		httpClient:       httpClient,
		timeout:          timeout,
		retry:            retry,
		dedup:            !cfg.DisableDedup,
		limiter:          cfg.Limiter,
		logger:           logger,
		metrics:          cfg.Metrics,
		userAgent:        userAgent,
		onSessionExpired: cfg.OnSessionExpired,
		now:              time.Now,
	}, nil
}

// BaseURL returns the base URL currently in effect.
func (c *Client) BaseURL(ctx context.Context) (string, error) {
	if c.baseURLSource == nil {
		return c.baseURL, nil
	}
	base, err := c.baseURLSource.BaseURL(ctx)
	if err != nil {
		return "", err
	}
	if base == "" {
		return "", ErrMissingBaseURL
	}
	return strings.TrimSuffix(base, "/"), nil
}

// Request describes one logical API call.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any
	// SkipAuth sends the request without an Authorization header.
	SkipAuth bool
	// SkipRefresh disables the refresh-and-replay on 401. Used by the auth
	// endpoints themselves.
	SkipRefresh bool
}

// Meta carries the response metadata that accompanies the decoded data.
type Meta struct {
	Pagination *Pagination
	Message    string
	RequestID  string
	Attempts   int
	// Shared is set when the result came from an identical in-flight GET.
	Shared bool
}

// Do performs a request, decodes the data member of the response envelope
// into out and returns the response metadata along with any classified
// error.
func (c *Client) Do(ctx context.Context, req Request, out any) (*Meta, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	start := c.now()

	env, meta, err := c.execute(ctx, req)
	if err == nil {
		err = env.Decode(out)
	}

	outcome := "success"
	if err != nil {
		outcome = outcomeOf(err)
	}
	c.metrics.observeRequest(req.Method, outcome, c.now().Sub(start))

	if meta == nil {
		meta = &Meta{}
	}
	return meta, err
}

func (c *Client) execute(ctx context.Context, req Request) (*Envelope, *Meta, error) {
	base, err := c.BaseURL(ctx)
	if err != nil {
		return nil, nil, err
	}
	fullURL, err := joinURL(base, req.Path, req.Query)
	if err != nil {
		return nil, nil, err
	}

	var payload []byte
	if req.Body != nil {
		if payload, err = jsonBody(req.Body); err != nil {
			return nil, nil, err
		}
	}

	cl := &call{
		req:       req,
		url:       fullURL,
		payload:   payload,
		requestID: newRequestID(),
	}

	refreshed := false
	if !req.SkipAuth && !req.SkipRefresh {
		tok := c.currentToken()
		if tok != nil && tok.AccessToken != "" && tok.RefreshToken != "" && c.tokenExpired(tok) {
			refreshed = true
			if err := c.refreshToken(ctx, tok.AccessToken); err != nil {
				if ctx.Err() != nil {
					return nil, nil, ctx.Err()
				}
				return nil, nil, c.reauthError(err)
			}
		}
	}

	rejoined := false
	for {
		cl.accessToken = ""
		if !req.SkipAuth {
			if tok := c.currentToken(); tok != nil {
				cl.accessToken = tok.AccessToken
			}
		}

		env, meta, sent, err := c.dispatch(ctx, cl)
		if err == nil || !errors.Is(err, ErrUnauthorized) {
			return env, meta, err
		}

		// Anonymous calls and the auth endpoints surface the 401 as is.
		if cl.accessToken == "" || req.SkipRefresh {
			return nil, meta, err
		}
		// A joined GET may have been answered for an older token than ours.
		// Replay once with our own token before treating it as expired.
		if sent != cl.accessToken && !rejoined {
			rejoined = true
			continue
		}
		if refreshed {
			return nil, meta, c.sessionExpired(ctx, sent, err)
		}
		refreshed = true

		if err := c.refreshToken(ctx, sent); err != nil {
			if ctx.Err() != nil {
				return nil, meta, ctx.Err()
			}
			return nil, meta, c.reauthError(err)
		}
		c.logger.Debug().Str("method", req.Method).Str("url", cl.url).Msg("replaying request after token refresh")
	}
}

// call is one logical request: its target, encoded body and the token it is
// sent with.
type call struct {
	req         Request
	url         string
	payload     []byte
	requestID   string
	accessToken string
}

type sharedResult struct {
	env   *Envelope
	meta  Meta
	token string
}

// dispatch sends the call through the retry loop, joining an identical
// in-flight GET when one exists. It also returns the access token the
// answering request carried, which differs from cl's when the call joined.
func (c *Client) dispatch(ctx context.Context, cl *call) (*Envelope, *Meta, string, error) {
	if !c.dedup || cl.req.Method != http.MethodGet {
		env, meta, err := c.withRetry(ctx, cl)
		return env, meta, cl.accessToken, err
	}

	key := cl.req.Method + ":" + cl.url
	executed := false
	ch := c.inflight.DoChan(key, func() (interface{}, error) {
		executed = true
		// The shared call outlives any single caller's cancellation.
		env, meta, err := c.withRetry(context.WithoutCancel(ctx), cl)
		res := &sharedResult{env: env, token: cl.accessToken}
		if meta != nil {
			res.meta = *meta
		}
		return res, err
	})

	select {
	case <-ctx.Done():
		return nil, nil, cl.accessToken, ctx.Err()
	case r := <-ch:
		res, _ := r.Val.(*sharedResult)
		meta := &Meta{}
		var env *Envelope
		sent := cl.accessToken
		if res != nil {
			*meta = res.meta
			env = res.env
			sent = res.token
		}
		meta.Shared = r.Shared
		if !executed {
			c.metrics.incDedupJoin()
			c.logger.Debug().Str("key", key).Msg("joined in-flight request")
		}
		return env, meta, sent, r.Err
	}
}

// withRetry runs attempts until one succeeds, a non-retryable error occurs
// or the retry budget is spent.
func (c *Client) withRetry(ctx context.Context, cl *call) (*Envelope, *Meta, error) {
	state := RetryState{}
	for {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, &Meta{Attempts: state.Attempt}, err
			}
		}

		env, err := c.attempt(ctx, cl, state)
		meta := &Meta{Attempts: state.Attempts(), RequestID: cl.requestID}
		if err == nil {
			meta.Pagination = env.Pagination
			meta.Message = env.Message
			return env, meta, nil
		}
		if ctx.Err() != nil {
			return nil, meta, ctx.Err()
		}
		if !c.retry.ShouldRetry(state, cl.req.Method, err) {
			return nil, meta, err
		}

		c.metrics.incRetry()
		c.logger.Warn().Err(err).
			Str("method", cl.req.Method).
			Str("url", cl.url).
			Int("attempt", state.Attempts()).
			Dur("delay", c.retry.Delay(state.Attempt)).
			Msg("retrying request")

		if err := c.retry.Wait(ctx, state); err != nil {
			return nil, meta, err
		}
		state = state.Next()
	}
}

// attempt performs a single HTTP exchange.
func (c *Client) attempt(ctx context.Context, cl *call, state RetryState) (*Envelope, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var bodyReader io.Reader
	if cl.payload != nil {
		bodyReader = bytes.NewReader(cl.payload)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, cl.req.Method, cl.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if cl.accessToken != "" {
		tok := &oauth2.Token{AccessToken: cl.accessToken, TokenType: "Bearer"}
		tok.SetAuthHeader(httpReq)
	}
	if cl.payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-ID", cl.requestID)

	c.logger.Debug().
		Str("method", cl.req.Method).
		Str("url", cl.url).
		Int("attempt", state.Attempts()).
		Msg("sending request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, c.transportError(ctx, attemptCtx, cl, state, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, parseErrorResponse(resp, c.now())
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, attemptCtx, cl, state, err)
	}

	env, err := decodeEnvelope(body)
	if err != nil {
		return nil, err
	}
	if env.Status == StatusError {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(body, "request failed"),
			RequestID:  requestIDFrom(resp, body),
		}
	}
	return env, nil
}

func (c *Client) transportError(ctx, attemptCtx context.Context, cl *call, state RetryState, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{
			Operation: cl.req.Method + " " + cl.req.Path,
			Timeout:   c.timeout,
		}
	}
	return &NetworkError{Err: err, URL: cl.url, Attempt: state.Attempts()}
}

func (c *Client) currentToken() *oauth2.Token {
	if c.creds == nil {
		return nil
	}
	tok, err := c.creds.Token()
	if err != nil {
		return nil
	}
	return tok
}

func (c *Client) tokenExpired(tok *oauth2.Token) bool {
	return !tok.Expiry.IsZero() && !c.now().Before(tok.Expiry)
}

// sessionExpired clears the session after an unrecoverable 401 and returns
// the error the caller should see.
func (c *Client) sessionExpired(ctx context.Context, stale string, cause error) error {
	c.expireSession(context.WithoutCancel(ctx), stale, cause)
	return c.reauthError(cause)
}

// expireSession clears the session unless it has already moved past the
// stale token, so a replaced or already cleared session is left alone.
func (c *Client) expireSession(ctx context.Context, stale string, cause error) {
	if c.creds == nil {
		return
	}
	if tok := c.currentToken(); tok == nil || tok.AccessToken != stale {
		return
	}
	if err := c.creds.Expire(ctx); err != nil {
		c.logger.Error().Err(err).Msg("failed to clear session")
	}
	c.logger.Warn().Err(cause).Msg("session expired")
	if c.onSessionExpired != nil {
		c.onSessionExpired()
	}
}

func (c *Client) reauthError(cause error) error {
	out := &APIError{StatusCode: http.StatusUnauthorized, SessionCleared: true}
	var apiErr *APIError
	if errors.As(cause, &apiErr) {
		out.Message = apiErr.Message
		out.RequestID = apiErr.RequestID
	}
	if out.Message == "" {
		out.Message = ErrReauthRequired.Error()
	}
	return out
}

func jsonBody(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return data, nil
}

// newRequestID returns the X-Request-ID shared by all attempts of one call.
func newRequestID() string {
	return uuid.NewString()
}

// joinURL builds the absolute request URL. Paths that are already absolute
// URLs are used as is.
func joinURL(base, path string, query url.Values) (string, error) {
	var raw string
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		raw = path
	} else {
		raw = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", raw, err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func outcomeOf(err error) string {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return kindOf(err).String()
}
