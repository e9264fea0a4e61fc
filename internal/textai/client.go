// Package textai provides the HTTP client for the external text-analysis
// provider.
package textai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/jonesrussell/linkguard/internal/config"
	"github.com/jonesrussell/linkguard/internal/logger"
	"github.com/jonesrussell/linkguard/internal/metrics"
)

// Sentinel errors for provider failures that must not be retried.
var (
	// ErrUnauthorized indicates the provider rejected our credentials.
	ErrUnauthorized = errors.New("text-analysis provider rejected credentials")
	// ErrMalformedResponse indicates the provider returned an unparseable body.
	ErrMalformedResponse = errors.New("text-analysis provider returned malformed response")
)

// RateLimitError indicates the provider throttled the request. It is
// transient; RetryAfter carries the provider's suggested wait when present.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("text-analysis provider rate limited, retry after %s", e.RetryAfter)
	}
	return "text-analysis provider rate limited"
}

// IsRateLimit reports whether err is a provider rate limit, and if so the
// suggested wait.
func IsRateLimit(err error) (time.Duration, bool) {
	var rle *RateLimitError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}

// Client calls the text-analysis provider's completion endpoint.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        logger.Logger
}

// NewClient creates a provider client from configuration.
func NewClient(cfg config.AnalysisConfig, log logger.Logger) *Client {
	return &Client{
		baseURL: cfg.ProviderURL,
		token:   cfg.ProviderToken,
		httpClient: &http.Client{
			Timeout: cfg.ProviderTimeout,
		},
		log: log,
	}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Text string `json:"text"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Generate sends a prompt to the provider and returns its text completion.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(generateRequest{Prompt: prompt})
	if err != nil {
		return "", fmt.Errorf("marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/generate", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("provider request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("read provider response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// handled below
	case resp.StatusCode == http.StatusTooManyRequests:
		metrics.ProviderCallsTotal.WithLabelValues("rate_limited").Inc()
		return "", &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		metrics.ProviderCallsTotal.WithLabelValues("unauthorized").Inc()
		return "", ErrUnauthorized
	case resp.StatusCode >= 500:
		metrics.ProviderCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("provider returned status %d: %s", resp.StatusCode, errorMessage(body))
	default:
		metrics.ProviderCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: status %d: %s", ErrMalformedResponse, resp.StatusCode, errorMessage(body))
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		metrics.ProviderCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if out.Text == "" {
		metrics.ProviderCallsTotal.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: empty completion", ErrMalformedResponse)
	}

	metrics.ProviderCallsTotal.WithLabelValues("ok").Inc()
	return out.Text, nil
}

// parseRetryAfter parses a Retry-After header value in seconds. HTTP-date
// values are not supported; they produce 0 and the caller falls back to its
// configured wait.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func errorMessage(body []byte) string {
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		return er.Error
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
