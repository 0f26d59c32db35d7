package util

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// robotsTTL is how long a host's parsed robots.txt is reused
const robotsTTL = time.Hour

// RobotsVerdict is the robots.txt answer for one survey URL
type RobotsVerdict struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker answers whether survey pages may be fetched
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	token     string
	hosts     *gocache.Cache
}

// NewRobotsChecker creates a checker that fetches robots.txt through client
func NewRobotsChecker(client *http.Client, userAgent string) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		token:     NormalizeUserAgent(userAgent),
		hosts:     gocache.New(robotsTTL, 2*robotsTTL),
	}
}

// Check returns the verdict for rawURL. A robots.txt that cannot be
// fetched allows everything; a malformed URL is an error.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (RobotsVerdict, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return RobotsVerdict{}, fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return RobotsVerdict{}, fmt.Errorf("parse URL: %q has no host", rawURL)
	}

	data := r.rulesFor(ctx, u)
	if data == nil {
		return RobotsVerdict{Allowed: true}, nil
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	verdict := RobotsVerdict{Allowed: data.TestAgent(path, r.token)}
	if group := data.FindGroup(r.token); group != nil {
		verdict.CrawlDelay = group.CrawlDelay
	}
	return verdict, nil
}

// rulesFor returns the host's parsed robots.txt, or nil when unavailable
func (r *RobotsChecker) rulesFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host
	if v, ok := r.hosts.Get(origin); ok {
		data, _ := v.(*robotstxt.RobotsData)
		return data
	}

	data, err := r.fetch(ctx, origin+"/robots.txt")
	if err != nil && ctx.Err() != nil {
		// Cancellation says nothing about the host
		return nil
	}
	r.hosts.SetDefault(origin, data)
	return data
}

func (r *RobotsChecker) fetch(ctx context.Context, robotsURL string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	return robotstxt.FromResponse(resp)
}

// NormalizeUserAgent reduces a user agent to the product token robots.txt groups name
func NormalizeUserAgent(ua string) string {
	product, _, _ := strings.Cut(strings.TrimSpace(ua), " ")
	token, _, _ := strings.Cut(product, "/")
	return token
}
