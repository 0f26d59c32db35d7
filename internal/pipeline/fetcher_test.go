package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noWait records backoff delays instead of sleeping
func noWait(t *testing.T) *[]time.Duration {
	t.Helper()
	var waits []time.Duration
	orig := waitFunc
	waitFunc = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { waitFunc = orig })
	return &waits
}

func newTestFetcher() *Fetcher {
	return NewFetcher(5*time.Second, "surveyfill-test/1.0", 1<<20, false, "", "", "")
}

// flakyServer answers failures with status until n requests have been seen
func flakyServer(t *testing.T, failures int32, status int, header http.Header) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) <= failures {
			for k, v := range header {
				w.Header()[k] = v
			}
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, `<form><input type="radio" name="q1"></form>`)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestFetch_SendsBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "surveyfill-test/1.0", r.Header.Get("User-Agent"))
		assert.Contains(t, r.Header.Get("Accept"), "text/html")
		assert.True(t, strings.HasPrefix(r.Header.Get("Accept-Language"), "id-ID"))
		w.Header().Set("ETag", `"v1"`)
		_, _ = fmt.Fprint(w, "<html></html>")
	}))
	defer server.Close()

	result, err := newTestFetcher().Fetch(context.Background(), server.URL+"/survey/kuesioner_dosen.php")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, result.Meta.StatusCode)
	assert.Equal(t, `"v1"`, result.Meta.ETag)
	assert.Equal(t, "kuesioner dosen", result.Subject)
}

func TestFetch_TruncatesAtMaxBytes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer server.Close()

	fetcher := NewFetcher(5*time.Second, "t", 10, false, "", "", "")
	result, err := fetcher.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Len(t, result.HTML, 10)
}

func TestFetch_RobotsDisallowed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /survey\n")
			return
		}
		t.Errorf("page %s fetched despite robots.txt", r.URL.Path)
	}))
	defer server.Close()

	_, err := newTestFetcher().WithRobots().Fetch(context.Background(), server.URL+"/survey/1")
	assert.ErrorIs(t, err, ErrRobotsDisallowed)
}

func TestFetchWithRetry(t *testing.T) {
	tests := []struct {
		name      string
		failures  int32
		status    int
		wantErr   bool
		wantCalls int32
	}{
		{"succeeds first time", 0, 0, false, 1},
		{"recovers from 503", 2, http.StatusServiceUnavailable, false, 3},
		{"recovers from 429", 1, http.StatusTooManyRequests, false, 2},
		{"gives up after max attempts", 10, http.StatusBadGateway, true, maxFetchAttempts},
		{"does not retry 404", 10, http.StatusNotFound, true, 1},
		{"does not retry 403", 10, http.StatusForbidden, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			noWait(t)
			server, hits := flakyServer(t, tt.failures, tt.status, nil)

			result, err := newTestFetcher().FetchWithRetry(context.Background(), server.URL)
			if tt.wantErr {
				var se *StatusError
				require.ErrorAs(t, err, &se)
				assert.Equal(t, tt.status, se.Code)
			} else {
				require.NoError(t, err)
				assert.Contains(t, result.HTML, `type="radio"`)
			}
			assert.Equal(t, tt.wantCalls, hits.Load())
		})
	}
}

func TestFetchWithRetry_HonorsRetryAfter(t *testing.T) {
	waits := noWait(t)
	server, _ := flakyServer(t, 2, http.StatusTooManyRequests, http.Header{"Retry-After": {"3"}})

	_, err := newTestFetcher().FetchWithRetry(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, *waits)
}

func TestFetchWithRetry_ConnectionErrorRetried(t *testing.T) {
	waits := noWait(t)
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	_, err := newTestFetcher().FetchWithRetry(context.Background(), addr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errTransport))
	assert.Len(t, *waits, maxFetchAttempts-1)
}

func TestFetchWithRetry_StopsOnCancel(t *testing.T) {
	server, hits := flakyServer(t, 10, http.StatusServiceUnavailable, nil)

	ctx, cancel := context.WithCancel(context.Background())
	orig := waitFunc
	waitFunc = func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	t.Cleanup(func() { waitFunc = orig })

	_, err := newTestFetcher().FetchWithRetry(ctx, server.URL)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), hits.Load())
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, backoff(1, errTransport))
	assert.Equal(t, time.Second, backoff(2, &StatusError{Code: 503}))
	assert.Equal(t, 4*time.Second, backoff(1, &StatusError{Code: 429, RetryAfter: 4 * time.Second}))
	assert.Equal(t, maxRetryWait, backoff(1, &StatusError{Code: 429, RetryAfter: time.Hour}))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 7*time.Second, parseRetryAfter(" 7 "))
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Zero(t, parseRetryAfter("-1"))
	assert.Zero(t, parseRetryAfter(""))
}
