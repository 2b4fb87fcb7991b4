package hearthside

import (
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

func TestDefaultConstants(t *testing.T) {
	if defaultTimeout != 10*time.Second {
		t.Errorf("defaultTimeout = %v, want 10s", defaultTimeout)
	}
	if defaultRetries != 3 {
		t.Errorf("defaultRetries = %d, want 3", defaultRetries)
	}
	if defaultRetryDelay != time.Second {
		t.Errorf("defaultRetryDelay = %v, want 1s", defaultRetryDelay)
	}
}

func TestWithBaseURL(t *testing.T) {
	cfg := &clientConfig{}
	WithBaseURL("https://custom.example.com/api")(cfg)
	if cfg.baseURL != "https://custom.example.com/api" {
		t.Errorf("baseURL = %s, want https://custom.example.com/api", cfg.baseURL)
	}
}

func TestWithOriginAndDevelopment(t *testing.T) {
	cfg := &clientConfig{}
	if cfg.isDevelopment() {
		t.Error("isDevelopment() = true before WithDevelopment")
	}
	WithOrigin("http://app.local:3000")(cfg)
	WithDevelopment(true)(cfg)
	if cfg.origin != "http://app.local:3000" {
		t.Errorf("origin = %s, want http://app.local:3000", cfg.origin)
	}
	if !cfg.isDevelopment() {
		t.Error("isDevelopment() = false after WithDevelopment(true)")
	}
}

func TestWithStore(t *testing.T) {
	cfg := &clientConfig{}
	store := NewMemoryStore()
	WithStore(store)(cfg)
	if cfg.store != store {
		t.Error("store was not set")
	}
}

func TestWithHTTPClient(t *testing.T) {
	cfg := &clientConfig{}
	customClient := &http.Client{Timeout: 99 * time.Second}
	WithHTTPClient(customClient)(cfg)
	if cfg.httpClient != customClient {
		t.Error("httpClient was not set")
	}
}

func TestWithTimeout(t *testing.T) {
	cfg := &clientConfig{}
	WithTimeout(3 * time.Second)(cfg)
	if cfg.timeout != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", cfg.timeout)
	}
}

func TestWithRetries(t *testing.T) {
	tests := []int{0, 1, 5}
	for _, n := range tests {
		cfg := &clientConfig{}
		WithRetries(n)(cfg)
		if cfg.retries == nil || *cfg.retries != n {
			t.Errorf("WithRetries(%d) did not set retries", n)
		}
	}

	cfg := &clientConfig{}
	if cfg.retries != nil {
		t.Error("retries set without WithRetries")
	}
}

func TestWithRetryDelay(t *testing.T) {
	cfg := &clientConfig{}
	WithRetryDelay(250 * time.Millisecond)(cfg)
	if cfg.retryDelay != 250*time.Millisecond {
		t.Errorf("retryDelay = %v, want 250ms", cfg.retryDelay)
	}
}

func TestWithLogger(t *testing.T) {
	cfg := &clientConfig{}
	WithLogger(zerolog.Nop())(cfg)
	if cfg.logger == nil {
		t.Error("logger was not set")
	}
}

func TestWithMetricsRegisterer(t *testing.T) {
	cfg := &clientConfig{}
	reg := prometheus.NewRegistry()
	WithMetricsRegisterer(reg)(cfg)
	if cfg.registerer != reg {
		t.Error("registerer was not set")
	}
}

func TestWithRateLimit(t *testing.T) {
	cfg := &clientConfig{}
	WithRateLimit(rate.Limit(5), 2)(cfg)
	if cfg.limiter == nil {
		t.Fatal("limiter was not set")
	}
	if cfg.limiter.Limit() != 5 || cfg.limiter.Burst() != 2 {
		t.Errorf("limiter = %v/%d, want 5/2", cfg.limiter.Limit(), cfg.limiter.Burst())
	}
}

func TestSwitches(t *testing.T) {
	cfg := &clientConfig{}
	WithoutDiscovery()(cfg)
	WithoutDedup()(cfg)
	WithUserAgent("cli/1.0")(cfg)
	if !cfg.disableDiscovery {
		t.Error("disableDiscovery = false")
	}
	if !cfg.disableDedup {
		t.Error("disableDedup = false")
	}
	if cfg.userAgent != "cli/1.0" {
		t.Errorf("userAgent = %s, want cli/1.0", cfg.userAgent)
	}
}

func TestCallbacks(t *testing.T) {
	cfg := &clientConfig{}
	var reauth, errs int
	WithOnReauthRequired(func() { reauth++ })(cfg)
	WithOnError(func(error) { errs++ })(cfg)
	cfg.onReauthRequired()
	cfg.onError(ErrNetwork)
	if reauth != 1 || errs != 1 {
		t.Errorf("callbacks called %d/%d times, want 1/1", reauth, errs)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://env.example.com/api")
	t.Setenv(EnvOrigin, "https://env.example.com")
	t.Setenv(EnvDevelopment, "true")

	cfg := &clientConfig{}
	cfg.applyEnv()
	if cfg.baseURL != "https://env.example.com/api" {
		t.Errorf("baseURL = %s, want env value", cfg.baseURL)
	}
	if cfg.origin != "https://env.example.com" {
		t.Errorf("origin = %s, want env value", cfg.origin)
	}
	if !cfg.isDevelopment() {
		t.Error("isDevelopment() = false, want true from env")
	}
}

func TestApplyEnv_OptionsWin(t *testing.T) {
	t.Setenv(EnvAPIURL, "https://env.example.com/api")
	t.Setenv(EnvDevelopment, "true")

	cfg := &clientConfig{}
	WithBaseURL("https://option.example.com/api")(cfg)
	WithDevelopment(false)(cfg)
	cfg.applyEnv()
	if cfg.baseURL != "https://option.example.com/api" {
		t.Errorf("baseURL = %s, want option value", cfg.baseURL)
	}
	if cfg.isDevelopment() {
		t.Error("isDevelopment() = true, want option value false")
	}
}

func TestApplyEnv_InvalidDevelopment(t *testing.T) {
	t.Setenv(EnvAPIURL, "")
	t.Setenv(EnvOrigin, "")
	t.Setenv(EnvDevelopment, "maybe")

	cfg := &clientConfig{}
	cfg.applyEnv()
	if cfg.development != nil {
		t.Error("development set from unparsable value")
	}
}
