package transport

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testPolicy returns a policy with near-zero delays so retry tests run fast.
func testPolicy() Policy {
	return Policy{
		BaseDelay:         time.Millisecond,
		MaxAttempts:       5,
		MaxDelay:          5 * time.Millisecond,
		RequestsPerSecond: 10000,
	}
}

func TestRoundTripRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`ok`))
	}))
	defer server.Close()

	client := New(nil, testPolicy(), slog.Default()).Client(time.Minute)

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.EqualValues(t, 3, calls.Load())
}

func TestRoundTripRateLimitExhausted(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	limiter := New(nil, testPolicy(), slog.Default())

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = limiter.RoundTrip(req)
	require.Error(t, err)

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	require.Equal(t, 5, rateErr.Attempts)
	require.EqualValues(t, 5, calls.Load())
}

func TestRoundTripDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	limiter := New(nil, testPolicy(), slog.Default())

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := limiter.RoundTrip(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	// 4xx other than 429 surfaces to the caller without retries.
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.EqualValues(t, 1, calls.Load())
}

func TestRoundTripReplaysBodyOnRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var lastBody atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		lastBody.Store(string(body))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(nil, testPolicy(), slog.Default()).Client(time.Minute)

	resp, err := client.Post(server.URL, "application/json", bytes.NewReader([]byte(`{"a":1}`)))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	require.EqualValues(t, 2, calls.Load())
	require.Equal(t, `{"a":1}`, lastBody.Load())
}

func TestAPIErrorFatal(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		statusCode int
		wantFatal  bool
	}{
		"unauthorized":      {statusCode: http.StatusUnauthorized, wantFatal: true},
		"validation error":  {statusCode: http.StatusBadRequest, wantFatal: true},
		"too many requests": {statusCode: http.StatusTooManyRequests, wantFatal: false},
		"server error":      {statusCode: http.StatusInternalServerError, wantFatal: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			err := &APIError{StatusCode: tc.statusCode}
			require.Equal(t, tc.wantFatal, err.Fatal())
			require.Equal(t, tc.wantFatal, IsFatal(err))
		})
	}
}

func TestIsFatalNonAPIError(t *testing.T) {
	t.Parallel()

	require.False(t, IsFatal(errors.New("boom")))
	require.False(t, IsFatal(nil))
}
