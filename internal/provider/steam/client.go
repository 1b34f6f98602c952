// Package steam provides the upstream fetch capability for tracked games:
// concurrent-player counts from the Steam Web API and review summaries from
// the storefront appreviews endpoint.
//
// Rate limiting is handled via a token bucket limiter shared across all
// concurrent fetches; callers block in Wait until a token is available.
package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIBaseURL   = "https://api.steampowered.com"
	defaultStoreBaseURL = "https://store.steampowered.com"
)

// Client is the shared HTTP client for all Steam endpoints.
type Client struct {
	httpClient   *http.Client
	apiBaseURL   string
	storeBaseURL string
	apiKey       string
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewClient creates a Steam HTTP client with rate limiting. requestsPerSec
// is the steady rate; burst is the bucket size.
func NewClient(apiKey string, requestsPerSec float64, burst int, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		apiBaseURL:   defaultAPIBaseURL,
		storeBaseURL: defaultStoreBaseURL,
		apiKey:       apiKey,
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSec), burst),
		logger:       logger,
	}
}

// get performs a rate-limited GET request and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, base, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := base + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("steam %s returned %d: %s", path, resp.StatusCode, truncate(body, 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
