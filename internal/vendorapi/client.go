// Package vendorapi wraps the upstream catalog/trade HTTP API with a circuit
// breaker, bounded exponential-backoff retry, client-side rate limiting and
// typed error normalization.
package vendorapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/observability"
)

// Default configuration values.
const (
	DefaultTimeout    = 10 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = 500 * time.Millisecond
	DefaultMaxDelay   = 10 * time.Second
	DefaultRateLimit  = 10 // requests per second
	DefaultRateBurst  = 20
	apiKeyHeader      = "X-API-Key"
)

// CatalogPage is one page of the vendor catalog listing.
type CatalogPage struct {
	Items []domain.Quote
	// NextToken resumes the listing after this page. Empty on the last
	// page. Tokens are opaque and passed back to the vendor unmodified.
	NextToken string
}

// Client is the HTTP client for the vendor catalog/trade API.
type Client struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	maxRetries int
	retryDelay time.Duration
	maxDelay   time.Duration
	breaker    *CircuitBreaker
	limiter    *rate.Limiter
	logger     *log.Logger
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of attempts per call.
func WithMaxRetries(n int) ClientOption {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets the initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithMaxDelay sets the maximum retry delay.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *Client) {
		c.maxDelay = d
	}
}

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithBreaker sets a custom circuit breaker.
func WithBreaker(b *CircuitBreaker) ClientOption {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithRateLimit sets the client-side request throttle.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a vendor API client.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		client:     &http.Client{Timeout: DefaultTimeout},
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		maxDelay:   DefaultMaxDelay,
		breaker:    NewCircuitBreaker(DefaultBreakerThreshold, DefaultBreakerCooldown),
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateBurst),
		logger:     log.New(os.Stdout, "[vendor] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// catalogItem is the raw catalog listing entry.
type catalogItem struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Exchange  string  `json:"exchange"`
	Timestamp int64   `json:"timestamp"` // unix milliseconds
}

// catalogResponse is the raw response for GET /catalog.
type catalogResponse struct {
	Items     []catalogItem `json:"items"`
	NextToken string        `json:"nextToken,omitempty"`
}

// tradeRequest is the body for POST /catalog/{symbol}/trade.
type tradeRequest struct {
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

// errorResponse is the vendor error payload shape.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ListCatalogPage fetches one catalog page. An empty token starts from the
// beginning; otherwise the listing resumes after the token's position.
func (c *Client) ListCatalogPage(ctx context.Context, token string) (*CatalogPage, error) {
	endpoint := c.baseURL + "/catalog"
	if token != "" {
		endpoint += "?cursor=" + url.QueryEscape(token)
	}

	var resp catalogResponse
	if err := c.do(ctx, "catalog", http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}

	page := &CatalogPage{
		Items:     make([]domain.Quote, 0, len(resp.Items)),
		NextToken: resp.NextToken,
	}
	for _, item := range resp.Items {
		page.Items = append(page.Items, domain.Quote{
			Symbol:     item.Symbol,
			Name:       item.Name,
			Price:      item.Price,
			Exchange:   item.Exchange,
			ObservedAt: time.UnixMilli(item.Timestamp).UTC(),
		})
	}
	return page, nil
}

// ExecuteTrade submits a trade for symbol at the given price and quantity.
// Input validation happens before any network call and is never retried.
func (c *Client) ExecuteTrade(ctx context.Context, symbol string, price float64, quantity int) (*domain.TradeResult, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol must not be empty", ErrInvalidInput)
	}
	if price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ErrInvalidInput)
	}

	endpoint := c.baseURL + "/catalog/" + url.PathEscape(symbol) + "/trade"
	body := tradeRequest{Price: price, Quantity: quantity}

	var result domain.TradeResult
	if err := c.do(ctx, "trade", http.MethodPost, endpoint, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// do performs an HTTP call with circuit breaker accounting, rate limiting
// and bounded exponential-backoff retry. Only retryable failures (network
// errors, 5xx, 429) are retried; client errors surface immediately.
func (c *Client) do(ctx context.Context, endpoint, method, rawURL string, body, result interface{}) error {
	var reqBody []byte
	if body != nil {
		var err error
		reqBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if attempt > 1 {
			observability.RecordVendorRetry(endpoint)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			// Exponential backoff: delay = min(initial * 2^(attempt-1), max)
			delay *= 2
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		if err := c.breaker.Allow(); err != nil {
			observability.RecordVendorCall(endpoint, 0, err)
			return err
		}

		if err := c.limiter.Wait(ctx); err != nil {
			c.breaker.ReleaseTrial()
			return err
		}

		start := time.Now()
		err := c.attempt(ctx, method, rawURL, reqBody, result)
		observability.RecordVendorCall(endpoint, time.Since(start).Seconds(), err)

		if err == nil {
			c.breaker.OnSuccess()
			observability.SetCircuitOpen(false)
			return nil
		}

		if !IsRetryable(err) {
			// A non-retryable HTTP response still proves the upstream is
			// reachable; local failures just give the trial slot back.
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				c.breaker.OnSuccess()
				observability.SetCircuitOpen(false)
			} else {
				c.breaker.ReleaseTrial()
			}
			return err
		}

		c.breaker.OnFailure()
		if c.breaker.IsOpen() {
			observability.SetCircuitOpen(true)
		}
		lastErr = err
		c.logger.Printf("%s %s attempt %d/%d failed: %v", method, rawURL, attempt, c.maxRetries, err)
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// attempt performs a single HTTP request and normalizes the outcome.
func (c *Client) attempt(ctx context.Context, method, rawURL string, reqBody []byte, result interface{}) error {
	var bodyReader io.Reader
	if reqBody != nil {
		bodyReader = bytes.NewReader(reqBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(apiKeyHeader, c.apiKey)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// Timeouts land here and are classified as retryable network failures.
		return networkError(err)
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return networkError(err)
	}

	if resp.StatusCode != http.StatusOK {
		var vendorErr errorResponse
		_ = json.Unmarshal(respBody, &vendorErr)
		return statusError(resp.StatusCode, vendorErr.Code, vendorErr.Message)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}
