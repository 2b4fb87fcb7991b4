package api

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/hearthside/client-go/internal/apierrors"
)

// RetryConfig configures retry behavior for failed HTTP requests.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts after the first one.
	MaxRetries int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// MaxDelay caps a single delay.
	MaxDelay time.Duration
	// Multiplier is the factor by which the delay increases after each attempt.
	Multiplier float64
	// Jitter is the randomization factor (0.0 to 1.0) added to delays.
	// Zero keeps the schedule deterministic.
	Jitter float64
	// Methods lists the HTTP methods that may be retried.
	Methods []string
}

// DefaultRetryConfig returns the default retry configuration: three retries
// at 1s, 2s and 4s, without jitter, for idempotent reads only.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultRetryDelay,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
		Jitter:     0,
		Methods:    []string{http.MethodGet, http.MethodHead, http.MethodOptions},
	}
}

// RetryState tracks a single logical request through the retry loop.
// It is a value: advancing it returns a new state.
type RetryState struct {
	// Attempt is the zero-based index of the attempt about to be made.
	Attempt int
}

// Next returns the state for the following attempt.
func (s RetryState) Next() RetryState {
	return RetryState{Attempt: s.Attempt + 1}
}

// Attempts returns how many attempts have been made once the current one completes.
func (s RetryState) Attempts() int {
	return s.Attempt + 1
}

// RetriesMethod reports whether requests with the given method are eligible
// for retries.
func (r *RetryConfig) RetriesMethod(method string) bool {
	for _, m := range r.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// ShouldRetry determines if a request should be retried after err.
func (r *RetryConfig) ShouldRetry(state RetryState, method string, err error) bool {
	if state.Attempt >= r.MaxRetries {
		return false
	}
	if !r.RetriesMethod(method) {
		return false
	}
	return apierrors.Retryable(err)
}

// Delay calculates the delay before the retry that follows the given attempt.
func (r *RetryConfig) Delay(attempt int) time.Duration {
	multiplier := r.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	delay := float64(r.BaseDelay) * math.Pow(multiplier, float64(attempt))
	if r.MaxDelay > 0 && delay > float64(r.MaxDelay) {
		delay = float64(r.MaxDelay)
	}

	if r.Jitter > 0 {
		jitterAmount := delay * r.Jitter
		delay = delay - jitterAmount + (rand.Float64() * 2 * jitterAmount)
	}

	return time.Duration(delay)
}

// Wait waits for the appropriate delay before retrying.
func (r *RetryConfig) Wait(ctx context.Context, state RetryState) error {
	delay := r.Delay(state.Attempt)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
