package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONAPI_ErrorsAreTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(" overloaded \n"))
	}))
	defer server.Close()

	api := newJSONAPI(server.URL+"/", defaultTimeout, Config{}, nil, decodeOllamaError)
	err := api.call(context.Background(), http.MethodPost, "/x", map[string]string{"a": "b"}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusServiceUnavailable || apiErr.Message != "overloaded" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestTokenBudget(t *testing.T) {
	tests := []struct {
		requested, configured, want int
	}{
		{200, 100, 200},
		{0, 100, 100},
		{0, 0, 800},
	}
	for _, tt := range tests {
		if got := tokenBudget(tt.requested, tt.configured); got != tt.want {
			t.Errorf("tokenBudget(%d, %d) = %d, want %d", tt.requested, tt.configured, got, tt.want)
		}
	}
}
