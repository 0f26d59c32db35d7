package pipeline

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/surveyfill/internal/cache"
	"github.com/ppiankov/surveyfill/internal/model"
	"github.com/ppiankov/surveyfill/internal/util"
)

const (
	maxFetchAttempts = 3
	maxRetryWait     = 5 * time.Second
)

// ErrRobotsDisallowed is returned for pages robots.txt excludes
var ErrRobotsDisallowed = errors.New("disallowed by robots.txt")

// errTransport marks failures before any HTTP status was received
var errTransport = errors.New("transport")

// StatusError is a non-2xx answer for a survey page
type StatusError struct {
	URL        string
	Code       int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Temporary reports whether the server may answer differently later
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// waitFunc pauses between attempts; replaced in tests
var waitFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Fetcher downloads survey pages
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64

	robots *util.RobotsChecker // nil disables robots.txt checks
	pages  cache.Store         // nil disables caching
}

// NewFetcher creates a Fetcher. Empty proxy settings fall back to the environment.
func NewFetcher(timeout time.Duration, userAgent string, maxBytes int64, insecureTLS bool, httpProxy, httpsProxy, noProxy string) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(httpProxy, httpsProxy, noProxy)
	if insecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed campus portals
	}

	return &Fetcher{
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
	}
}

// WithRobots checks robots.txt, fetched through the same client, before every page
func (f *Fetcher) WithRobots() *Fetcher {
	f.robots = util.NewRobotsChecker(f.httpClient, f.userAgent)
	return f
}

// WithCache serves repeat fetches from pages
func (f *Fetcher) WithCache(pages cache.Store) *Fetcher {
	f.pages = pages
	return f
}

// FetchResult contains the fetched HTML and metadata
type FetchResult struct {
	HTML     string          `json:"html"`
	Meta     model.FetchMeta `json:"meta"`
	Subject  string          `json:"subject"`
	FinalURL string          `json:"final_url"`
}

// Fetch retrieves a page once, consulting the cache and robots.txt first
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	if cached := f.fromCache(rawURL); cached != nil {
		return cached, nil
	}

	if f.robots != nil {
		verdict, err := f.robots.Check(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("check robots.txt: %w", err)
		}
		if !verdict.Allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrRobotsDisallowed)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	meta := model.FetchMeta{
		StatusCode:   resp.StatusCode,
		ContentType:  resp.Header.Get("Content-Type"),
		LastModified: resp.Header.Get("Last-Modified"),
		ETag:         resp.Header.Get("ETag"),
		Headers:      make(map[string]string),
	}

	for _, key := range []string{"Content-Length", "Server", "Cache-Control"} {
		if val := resp.Header.Get(key); val != "" {
			meta.Headers[key] = val
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{
			URL:        rawURL,
			Code:       resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	finalURL := resp.Request.URL.String()
	result := &FetchResult{
		HTML:     string(body),
		Meta:     meta,
		Subject:  extractSubject(finalURL),
		FinalURL: finalURL,
	}

	f.toCache(rawURL, result)
	return result, nil
}

// FetchWithRetry retries transient failures (5xx, 429, connection errors)
// with linear backoff, waiting at least as long as a Retry-After header asks
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		result, err := f.Fetch(ctx, rawURL)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryable(err) || attempt == maxFetchAttempts {
			break
		}
		if err := waitFunc(ctx, backoff(attempt, err)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return errors.Is(err, errTransport)
}

func backoff(attempt int, err error) time.Duration {
	d := time.Duration(attempt) * 500 * time.Millisecond
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > d {
		d = se.RetryAfter
	}
	return min(d, maxRetryWait)
}

// parseRetryAfter reads the delay-seconds form of Retry-After
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (f *Fetcher) fromCache(rawURL string) *FetchResult {
	if f.pages == nil {
		return nil
	}
	page, ok := f.pages.Get(rawURL)
	if !ok {
		return nil
	}
	meta := page.Meta
	meta.FromCache = true
	return &FetchResult{
		HTML:     page.HTML,
		Meta:     meta,
		Subject:  page.Subject,
		FinalURL: page.FinalURL,
	}
}

func (f *Fetcher) toCache(rawURL string, result *FetchResult) {
	if f.pages == nil {
		return
	}
	_ = f.pages.Put(&cache.Page{
		URL:      rawURL,
		FinalURL: result.FinalURL,
		Subject:  result.Subject,
		HTML:     result.HTML,
		Meta:     result.Meta,
	})
}

// extractSubject derives a readable page name from a URL
func extractSubject(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	trimmed := strings.Trim(parsed.Path, "/")
	if trimmed == "" {
		return parsed.Host
	}

	last := path.Base(trimmed)
	last = strings.TrimSuffix(last, path.Ext(last))
	last = strings.NewReplacer("_", " ", "-", " ").Replace(last)
	if last == "" {
		return parsed.Host
	}
	return last
}
