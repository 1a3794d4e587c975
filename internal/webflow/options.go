package webflow

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Option configures optional Client settings.
type Option func(*options) error

// options holds optional configuration for creating a Client.
type options struct {
	// baseURL is the base URL for API requests.
	baseURL string

	// httpClient is a custom HTTP client.
	httpClient *http.Client

	// pageSize is the number of items requested per page.
	pageSize int

	// timeout is the HTTP client timeout.
	timeout time.Duration
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(baseURL string) Option {
	return func(o *options) error {
		baseURL = strings.TrimSpace(baseURL)
		if baseURL == "" {
			return fmt.Errorf("base URL cannot be empty")
		}
		o.baseURL = strings.TrimSuffix(baseURL, "/")
		return nil
	}
}

// WithHTTPClient sets a custom HTTP client. Overrides WithTimeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) error {
		if httpClient == nil {
			return fmt.Errorf("HTTP client cannot be nil")
		}
		o.httpClient = httpClient
		return nil
	}
}

// WithPageSize sets the number of items requested per page.
func WithPageSize(pageSize int) Option {
	return func(o *options) error {
		if pageSize <= 0 || pageSize > MaxBatchSize {
			return fmt.Errorf("page size must be between 1 and %d, got %d", MaxBatchSize, pageSize)
		}
		o.pageSize = pageSize
		return nil
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		o.timeout = timeout
		return nil
	}
}

// defaultOptions returns options with sensible defaults. The timeout is
// generous because retries with backoff run inside a single request from the
// HTTP client's point of view, and asset uploads can be large.
func defaultOptions() *options {
	return &options{
		baseURL:  "https://api.webflow.com",
		pageSize: 100,
		timeout:  3 * time.Minute,
	}
}
