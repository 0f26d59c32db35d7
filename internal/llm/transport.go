package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ppiankov/surveyfill/internal/util"
)

// maxReplyBytes bounds a provider reply
const maxReplyBytes = 4 << 20

// APIError is a non-2xx reply from a provider API
type APIError struct {
	Status  int
	Kind    string
	Message string
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("API error (%d): %s - %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.Status, e.Message)
}

// errorDecoder extracts kind and message from an error body; ok=false keeps the raw body
type errorDecoder func(body []byte) (kind, message string, ok bool)

// jsonAPI talks JSON to one provider base URL over net/http
type jsonAPI struct {
	baseURL    string
	header     http.Header
	httpClient *http.Client
	decodeErr  errorDecoder
}

func newJSONAPI(baseURL string, timeout time.Duration, config Config, header http.Header, decodeErr errorDecoder) *jsonAPI {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy)

	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/json")

	return &jsonAPI{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		header:     header,
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		decodeErr:  decodeErr,
	}
}

// call sends in (nil for no body) to path and decodes the reply into out
func (a *jsonAPI) call(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, v := range a.header {
		req.Header[k] = v
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	reply, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(reply))}
		if a.decodeErr != nil {
			if kind, msg, ok := a.decodeErr(reply); ok {
				apiErr.Kind, apiErr.Message = kind, msg
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// tokenBudget picks the request's max tokens, then the config's, then the default
func tokenBudget(requested, configured int) int {
	switch {
	case requested > 0:
		return requested
	case configured > 0:
		return configured
	default:
		return DefaultConfig().MaxTokens
	}
}
