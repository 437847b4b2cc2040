// Package fiat looks up exchange rates used to show fiat equivalents of
// native amounts. Rates are display-only and never enter funds checks.
package fiat

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrz1836/satchel/internal/chain"
	"github.com/mrz1836/satchel/internal/metrics"
	satchelerr "github.com/mrz1836/satchel/pkg/errors"
)

const (
	// DefaultBaseURL is CryptoCompare's single-price endpoint.
	DefaultBaseURL = "https://min-api.cryptocompare.com/data/price"

	// DefaultCurrency is the quote currency.
	DefaultCurrency = "USD"

	httpTimeout     = 15 * time.Second
	maxResponseBody = 64 << 10
)

// RateSource returns the price of one unit of symbol in the source's quote
// currency.
type RateSource interface {
	Rate(ctx context.Context, symbol string) (float64, error)
	Currency() string
}

// CryptoCompare queries min-api.cryptocompare.com.
type CryptoCompare struct {
	baseURL    string
	currency   string
	httpClient *http.Client
	limiter    *chain.RateLimiter
	metrics    *metrics.Metrics
}

// Options configures CryptoCompare. Zero values select defaults.
type Options struct {
	BaseURL    string
	Currency   string
	HTTPClient *http.Client
	Metrics    *metrics.Metrics
}

// NewCryptoCompare creates a CryptoCompare source.
func NewCryptoCompare(opts *Options) *CryptoCompare {
	c := &CryptoCompare{
		baseURL:  DefaultBaseURL,
		currency: DefaultCurrency,
		httpClient: &http.Client{
			Timeout: httpTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		limiter: chain.NewRateLimiter(2, 4),
		metrics: metrics.Global,
	}

	if opts != nil {
		if opts.BaseURL != "" {
			c.baseURL = opts.BaseURL
		}
		if opts.Currency != "" {
			c.currency = strings.ToUpper(opts.Currency)
		}
		if opts.HTTPClient != nil {
			c.httpClient = opts.HTTPClient
		}
		if opts.Metrics != nil {
			c.metrics = opts.Metrics
		}
	}
	return c
}

// Currency returns the quote currency.
func (c *CryptoCompare) Currency() string {
	return c.currency
}

// Rate returns the price of symbol.
func (c *CryptoCompare) Rate(ctx context.Context, symbol string) (float64, error) {
	rate, err := c.fetch(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
	c.metrics.RecordFiatLookup(err)
	return rate, err
}

func (c *CryptoCompare) fetch(ctx context.Context, symbol string) (float64, error) {
	if symbol == "" {
		return 0, satchelerr.WithDetails(satchelerr.ErrFiatUnavailable, map[string]string{"reason": "empty symbol"})
	}
	if err := c.limiter.Wait(ctx, "cryptocompare"); err != nil {
		return 0, satchelerr.WithCause(satchelerr.ErrFiatUnavailable, err)
	}

	params := url.Values{}
	params.Set("fsym", symbol)
	params.Set("tsyms", c.currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G107: base URL comes from config
	if err != nil {
		return 0, satchelerr.WithCause(satchelerr.ErrFiatUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return 0, satchelerr.WithCause(satchelerr.ErrFiatUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, satchelerr.WithDetails(satchelerr.ErrFiatUnavailable, map[string]string{
			"status": fmt.Sprintf("%d", resp.StatusCode),
		})
	}

	// Success is {"USD": 1234.5}; failures carry Response/Message instead.
	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return 0, satchelerr.WithCause(satchelerr.ErrFiatUnavailable, err)
	}
	raw, ok := payload[c.currency]
	if !ok {
		var msg string
		_ = json.Unmarshal(payload["Message"], &msg)
		return 0, satchelerr.WithDetails(satchelerr.ErrFiatUnavailable, map[string]string{
			"symbol":  symbol,
			"message": msg,
		})
	}

	var rate float64
	if err := json.Unmarshal(raw, &rate); err != nil {
		return 0, satchelerr.WithCause(satchelerr.ErrFiatUnavailable, err)
	}
	return rate, nil
}

// Static serves fixed rates; unknown symbols are ErrFiatUnavailable.
type Static struct {
	Quote string
	Rates map[string]float64
}

// Rate implements RateSource.
func (s Static) Rate(_ context.Context, symbol string) (float64, error) {
	r, ok := s.Rates[strings.ToUpper(symbol)]
	if !ok {
		return 0, satchelerr.WithDetails(satchelerr.ErrFiatUnavailable, map[string]string{"symbol": symbol})
	}
	return r, nil
}

// Currency implements RateSource.
func (s Static) Currency() string {
	if s.Quote == "" {
		return DefaultCurrency
	}
	return s.Quote
}

// Disabled is used when fiat display is turned off. It reports a zero rate.
type Disabled struct{}

// Rate implements RateSource.
func (Disabled) Rate(context.Context, string) (float64, error) { return 0, nil }

// Currency implements RateSource.
func (Disabled) Currency() string { return "" }

// Format renders value in currency with two decimals, or "" when there is
// no rate.
func Format(value float64, currency string) string {
	if currency == "" {
		return ""
	}
	return fmt.Sprintf("%.2f %s", value, currency)
}
