// Package marketdata is the boundary to the external quote/search provider.
// The import pipeline consumes the Client interface; the HTTP implementation
// here adds a request rate limit, per-call timeouts, and a circuit breaker
// so a degraded provider slows analysis down instead of hanging it.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Quote is one instrument row from the provider.
type Quote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	QuoteType string  `json:"quoteType"` // EQUITY, ETF, CRYPTOCURRENCY
	Exchange  string  `json:"exchange"`
	Currency  string  `json:"currency"`
	Price     float64 `json:"price"`
}

// Client is what the import pipeline needs from a market-data provider.
type Client interface {
	// Search returns candidate instruments for a free-text query.
	Search(ctx context.Context, query string) ([]Quote, error)
	// Quotes resolves a batch of symbols in one call.
	Quotes(ctx context.Context, symbols []string) ([]Quote, error)
	// USDRate returns how many USD one unit of currency was worth on date.
	USDRate(ctx context.Context, currency string, date time.Time) (float64, error)
}

// ErrUnavailable is returned while the circuit breaker is open.
var ErrUnavailable = errors.New("marketdata: provider unavailable")

const (
	defaultTimeout = 15 * time.Second

	breakerThreshold = 5
	breakerCooldown  = 2 * time.Minute
)

// HTTPClient talks JSON to the provider.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	breaker *breaker
	logger  *slog.Logger
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithRateLimit overrides the default request rate (5 rps, burst 10).
func WithRateLimit(rps float64, burst int) Option {
	return func(c *HTTPClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithHTTPClient swaps the underlying http.Client (tests).
func WithHTTPClient(h *http.Client) Option {
	return func(c *HTTPClient) { c.http = h }
}

// NewHTTPClient builds a provider client for the given base URL.
func NewHTTPClient(baseURL, apiKey string, logger *slog.Logger, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		breaker: newBreaker(breakerThreshold, breakerCooldown),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search queries the provider's symbol search endpoint.
func (c *HTTPClient) Search(ctx context.Context, query string) ([]Quote, error) {
	var payload struct {
		Quotes []Quote `json:"quotes"`
	}
	params := url.Values{"q": {query}}
	if err := c.get(ctx, "/v1/search", params, &payload); err != nil {
		return nil, err
	}
	return payload.Quotes, nil
}

// Quotes fetches a comma-joined symbol batch in a single request.
func (c *HTTPClient) Quotes(ctx context.Context, symbols []string) ([]Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}
	var payload struct {
		Quotes []Quote `json:"quotes"`
	}
	params := url.Values{"symbols": {strings.Join(symbols, ",")}}
	if err := c.get(ctx, "/v1/quotes", params, &payload); err != nil {
		return nil, err
	}
	return payload.Quotes, nil
}

// USDRate fetches the close rate for currency/USD on the given day.
func (c *HTTPClient) USDRate(ctx context.Context, currency string, date time.Time) (float64, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "USD" {
		return 1, nil
	}
	var payload struct {
		Rate float64 `json:"rate"`
	}
	params := url.Values{
		"base":  {currency},
		"quote": {"USD"},
		"date":  {date.Format("2006-01-02")},
	}
	if err := c.get(ctx, "/v1/fx", params, &payload); err != nil {
		return 0, err
	}
	if payload.Rate <= 0 {
		return 0, fmt.Errorf("marketdata: no rate for %s on %s", currency, date.Format("2006-01-02"))
	}
	return payload.Rate, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, out any) error {
	if !c.breaker.allow() {
		return ErrUnavailable
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if c.apiKey != "" {
		params.Set("api_token", c.apiKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.breaker.failure()
		return fmt.Errorf("marketdata: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		c.breaker.failure()
		return fmt.Errorf("marketdata: provider returned %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		// Client-side errors (bad symbol etc) don't trip the breaker.
		return fmt.Errorf("marketdata: provider returned %s", resp.Status)
	}

	c.breaker.success()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("marketdata: decode response: %w", err)
	}
	return nil
}

// ResetBreaker force-closes the circuit breaker. Called by the cache
// janitor so a long cooldown never outlives the incident.
func (c *HTTPClient) ResetBreaker() {
	c.breaker.reset()
}
