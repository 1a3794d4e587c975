// Package transport provides the shared rate-limited, retrying HTTP
// transport used by both CMS clients. All network I/O goes through a single
// Limiter so pacing and backoff state are global to the process.
package transport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxAttempts = 5
	defaultMaxDelay    = 30 * time.Second
	defaultRate        = 4.0

	// drainLimit bounds how much of a failed response body is read before
	// the connection is released for reuse.
	drainLimit = 4096
)

// Policy controls request pacing and retry behaviour.
type Policy struct {
	// BaseDelay is the initial backoff delay, doubled per attempt.
	BaseDelay time.Duration

	// MaxAttempts is the total number of attempts per request (initial
	// attempt plus retries).
	MaxAttempts int

	// MaxDelay caps the backoff delay.
	MaxDelay time.Duration

	// RequestsPerSecond is the sustained request rate.
	RequestsPerSecond float64
}

// DefaultPolicy returns a Policy with sensible defaults for the Webflow API
// (60 requests/minute general limit, with headroom).
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:         defaultBaseDelay,
		MaxAttempts:       defaultMaxAttempts,
		MaxDelay:          defaultMaxDelay,
		RequestsPerSecond: defaultRate,
	}
}

// RateLimitError indicates the remote API kept returning 429 until retries
// were exhausted.
type RateLimitError struct {
	// Attempts is the number of attempts made before giving up.
	Attempts int

	// URL is the request URL.
	URL string
}

// Error returns the error message.
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded after %d attempts: %s", e.Attempts, e.URL)
}

// APIError represents a non-2xx response from a remote API. It is
// constructed by the API clients, not by the Limiter, since the Limiter only
// retries statuses it knows to be transient.
type APIError struct {
	// Body is the response body, truncated.
	Body string

	// StatusCode is the HTTP status code.
	StatusCode int
}

// Error returns the error message.
func (e *APIError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// Fatal reports whether the error is a non-retryable client error such as
// bad credentials or a schema mismatch.
func (e *APIError) Fatal() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// IsFatal reports whether err wraps a fatal (non-retryable) API error.
// Fatal errors abort a sync run immediately.
func IsFatal(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Fatal()
}

// retryableStatusError is returned inside the retry loop for 429/5xx so the
// terminal error can distinguish rate limiting from server failures.
type retryableStatusError struct {
	statusCode int
}

// Error returns the error message.
func (e *retryableStatusError) Error() string {
	return fmt.Sprintf("retryable status %d", e.statusCode)
}

// Limiter is an http.RoundTripper enforcing a token-bucket request rate and
// retrying 429/5xx responses with exponential backoff. It is safe for
// concurrent use.
type Limiter struct {
	// base is the underlying round tripper.
	base http.RoundTripper

	// limiter is the shared token bucket.
	limiter *rate.Limiter

	// logger is the structured logger.
	logger *slog.Logger

	// policy holds pacing and retry settings.
	policy Policy
}

// New creates a Limiter wrapping base. A nil base uses
// http.DefaultTransport.
func New(base http.RoundTripper, policy Policy, logger *slog.Logger) *Limiter {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = defaultBaseDelay
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaultMaxAttempts
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = defaultMaxDelay
	}
	if policy.RequestsPerSecond <= 0 {
		policy.RequestsPerSecond = defaultRate
	}

	return &Limiter{
		base:    base,
		limiter: rate.NewLimiter(rate.Limit(policy.RequestsPerSecond), 1),
		logger:  logger,
		policy:  policy,
	}
}

// RoundTrip executes the request, waiting for rate-limit tokens and retrying
// transient failures. Requests with a body must be replayable via GetBody
// (requests built by http.NewRequest from a bytes.Reader are).
func (l *Limiter) RoundTrip(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	attempts := 0
	lastStatus := 0

	operation := func() error {
		attempts++

		if err := l.limiter.Wait(req.Context()); err != nil {
			return backoff.Permanent(err)
		}

		attempt := req
		if attempts > 1 && req.Body != nil {
			if req.GetBody == nil {
				return backoff.Permanent(errors.New("request body cannot be replayed for retry"))
			}
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(fmt.Errorf("replaying request body: %w", err))
			}
			attempt = req.Clone(req.Context())
			attempt.Body = body
		}

		res, err := l.base.RoundTrip(attempt)
		if err != nil {
			lastStatus = 0
			l.logger.Warn("transient network error, will retry",
				"url", req.URL.String(),
				"attempt", attempts,
				"error", err)
			return err
		}

		if res.StatusCode == http.StatusTooManyRequests || res.StatusCode >= 500 {
			lastStatus = res.StatusCode
			_, _ = io.CopyN(io.Discard, res.Body, drainLimit)
			_ = res.Body.Close()
			l.logger.Warn("retryable status, backing off",
				"url", req.URL.String(),
				"status", res.StatusCode,
				"attempt", attempts)
			return &retryableStatusError{statusCode: res.StatusCode}
		}

		resp = res
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(l.newBackOff(), uint64(l.policy.MaxAttempts-1)),
		req.Context(),
	)

	if err := backoff.Retry(operation, policy); err != nil {
		if lastStatus == http.StatusTooManyRequests {
			return nil, &RateLimitError{Attempts: attempts, URL: req.URL.String()}
		}
		return nil, fmt.Errorf("request failed after %d attempts: %w", attempts, err)
	}

	return resp, nil
}

// newBackOff builds the exponential backoff schedule from the policy.
func (l *Limiter) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.policy.BaseDelay
	b.MaxInterval = l.policy.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	return b
}

// Client returns an http.Client that routes all requests through the
// Limiter.
func (l *Limiter) Client(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: l,
	}
}
