package util

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsChecker_CanFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: surveyfill\nDisallow: /private\nCrawl-delay: 2\n")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "surveyfill/0.3 (+https://example.com)")
	ctx := context.Background()

	verdict, err := checker.Check(ctx, server.URL+"/survey/1?step=2")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !verdict.Allowed {
		t.Error("expected /survey/1 to be allowed")
	}
	if verdict.CrawlDelay != 2*time.Second {
		t.Errorf("expected crawl delay 2s, got %v", verdict.CrawlDelay)
	}

	verdict, err = checker.Check(ctx, server.URL+"/private/form")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if verdict.Allowed {
		t.Error("expected /private/form to be disallowed")
	}
}

func TestRobotsChecker_FetchesOncePerHost(t *testing.T) {
	var robotsHits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			robotsHits.Add(1)
			_, _ = fmt.Fprint(w, "User-agent: *\nAllow: /\n")
		}
	}))
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "surveyfill")
	for _, path := range []string{"/a", "/b", "/c"} {
		if _, err := checker.Check(context.Background(), server.URL+path); err != nil {
			t.Fatalf("Check(%s) failed: %v", path, err)
		}
	}
	if robotsHits.Load() != 1 {
		t.Errorf("expected robots.txt to be fetched once, got %d", robotsHits.Load())
	}
}

func TestRobotsChecker_UnreachableAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	checker := NewRobotsChecker(&http.Client{Timeout: time.Second}, "surveyfill")
	verdict, err := checker.Check(context.Background(), addr+"/survey")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !verdict.Allowed {
		t.Error("expected fetch to be allowed when robots.txt is unreachable")
	}
}

func TestRobotsChecker_BadURL(t *testing.T) {
	checker := NewRobotsChecker(nil, "surveyfill")
	if _, err := checker.Check(context.Background(), "not a url"); err == nil {
		t.Error("expected an error for a URL without a host")
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker(server.Client(), "surveyfill")
	verdict, err := checker.Check(context.Background(), server.URL+"/anything")
	if err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if !verdict.Allowed {
		t.Error("expected fetch to be allowed without robots.txt")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	tests := map[string]string{
		"surveyfill/0.3 (+https://x)": "surveyfill",
		"curl":                        "curl",
		"  Mozilla/5.0 (X11)":         "Mozilla",
		"":                            "",
	}
	for in, want := range tests {
		if got := NormalizeUserAgent(in); got != want {
			t.Errorf("NormalizeUserAgent(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:8080", "http://secure:8443", "internal.local")

	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "survey.example.com"}}
	got, err := proxy(req)
	if err != nil || got == nil || got.Host != "secure:8443" {
		t.Errorf("expected https proxy, got %v (%v)", got, err)
	}

	req = &http.Request{URL: &url.URL{Scheme: "http", Host: "survey.example.com"}}
	got, err = proxy(req)
	if err != nil || got == nil || got.Host != "proxy:8080" {
		t.Errorf("expected http proxy, got %v (%v)", got, err)
	}

	req = &http.Request{URL: &url.URL{Scheme: "http", Host: "internal.local"}}
	got, err = proxy(req)
	if err != nil || got != nil {
		t.Errorf("expected bypass for no_proxy host, got %v (%v)", got, err)
	}
}
