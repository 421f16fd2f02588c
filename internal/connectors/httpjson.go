package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/quillfeed/quillfeed-backend/internal/platform/envutil"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
)

const maxErrorBodyBytes = 512

// apiClient is the JSON-over-HTTP transport shared by all connectors. It
// classifies provider responses into the typed connector errors and keeps a
// running call/error count for health reporting.
type apiClient struct {
	source     string
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *logger.Logger

	mu    sync.Mutex
	calls int64
	fails int64
}

func newAPIClient(source, defaultBaseURL string, log *logger.Logger) (*apiClient, error) {
	envPrefix := strings.ToUpper(source)
	apiKey := envutil.GetEnv(envPrefix+"_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("missing %s_API_KEY", envPrefix)
	}
	baseURL := strings.TrimRight(envutil.GetEnv(envPrefix+"_BASE_URL", defaultBaseURL, log), "/")
	timeout := envutil.GetEnvAsDuration(envPrefix+"_TIMEOUT", 30*time.Second, log)

	return &apiClient{
		source:     source,
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		log:        log.With("connector", source),
	}, nil
}

func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	err := c.doOnce(ctx, path, query, out)
	if err != nil {
		c.mu.Lock()
		c.fails++
		c.mu.Unlock()
	}
	return err
}

func (c *apiClient) doOnce(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &NetworkError{Source: c.source, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &NetworkError{Source: c.source, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &NetworkError{Source: c.source, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{Source: c.source, Err: httpStatusError(resp.StatusCode, raw)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{
			Source:     c.source,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        httpStatusError(resp.StatusCode, raw),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return &NetworkError{Source: c.source, Err: httpStatusError(resp.StatusCode, raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &NetworkError{Source: c.source, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// health probes the given path and reports latency plus the client's
// lifetime error rate.
func (c *apiClient) health(ctx context.Context, path string) Health {
	start := time.Now()
	err := c.getJSON(ctx, path, nil, nil)
	h := Health{
		Healthy:   err == nil,
		Latency:   time.Since(start),
		ErrorRate: c.errorRate(),
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}

func (c *apiClient) errorRate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == 0 {
		return 0
	}
	return float64(c.fails) / float64(c.calls)
}

func httpStatusError(code int, body []byte) error {
	b := strings.TrimSpace(string(body))
	if len(b) > maxErrorBodyBytes {
		b = b[:maxErrorBodyBytes]
	}
	return fmt.Errorf("http %d: %s", code, b)
}

func parseRetryAfter(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
