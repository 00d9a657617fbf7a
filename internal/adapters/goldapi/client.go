// Package goldapi reads spot prices from goldapi.io and converts them to a
// price per gram.
package goldapi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"metal-pricer/internal/adapters/goldapi/dto"
	"metal-pricer/internal/config"
	"metal-pricer/internal/logging"
)

const (
	TroyOunceGrams = 31.1035

	defaultBaseURL  = "https://www.goldapi.io/api"
	defaultCacheTTL = 60 * time.Second
)

// PriceSource returns price per gram keyed by metal code.
type PriceSource interface {
	FetchPrices(ctx context.Context, currency, apiKey string, codes []string) (map[string]float64, error)
}

type cacheEntry struct {
	pricePerGram float64
	expiresAt    time.Time
}

type Client struct {
	config     config.GoldAPIConfig
	httpClient *http.Client
	logger     logging.LoggerService
	now        func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
	group singleflight.Group
}

type Option func(*Client)

// WithClock replaces time.Now for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func NewClient(cfg config.GoldAPIConfig, httpClient *http.Client, logger logging.LoggerService, opts ...Option) *Client {
	if strings.TrimSpace(cfg.BaseUrl) == "" {
		cfg.BaseUrl = defaultBaseURL
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = defaultCacheTTL
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = logging.Nop()
	}
	c := &Client{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger,
		now:        time.Now,
		cache:      make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchPrices returns the price per gram for every code it could fetch.
// An empty apiKey falls back to the configured key. It fails only when no
// code could be priced.
func (c *Client) FetchPrices(ctx context.Context, currency, apiKey string, codes []string) (map[string]float64, error) {
	key := strings.TrimSpace(apiKey)
	if key == "" {
		key = strings.TrimSpace(c.config.Key)
	}
	if key == "" {
		return nil, &SourceError{Reason: ReasonKeyNotConfigured}
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		currency = "USD"
	}

	prices := make(map[string]float64)
	var firstErr error
	for _, code := range normalizeCodes(codes) {
		price, err := c.pricePerGram(ctx, code, currency, key)
		if err != nil {
			c.logger.LogWarning(fmt.Sprintf("goldapi price skipped metal=%s currency=%s reason=%s: %v", code, currency, ReasonOf(err), err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		prices[code] = price
	}

	if len(prices) == 0 && firstErr != nil {
		return nil, firstErr
	}
	return prices, nil
}

func (c *Client) pricePerGram(ctx context.Context, code, currency, apiKey string) (float64, error) {
	cacheKey := code + "/" + currency + "/" + keyFingerprint(apiKey)
	if price, ok := c.cached(cacheKey); ok {
		return price, nil
	}

	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		if price, ok := c.cached(cacheKey); ok {
			return price, nil
		}
		perOunce, err := c.fetchQuote(ctx, code, currency, apiKey)
		if err != nil {
			return 0.0, err
		}
		price := perOunce / TroyOunceGrams
		c.mu.Lock()
		c.cache[cacheKey] = cacheEntry{pricePerGram: price, expiresAt: c.now().Add(c.config.CacheTTL)}
		c.mu.Unlock()
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// keyFingerprint scopes cached quotes to the API key that fetched them.
func keyFingerprint(apiKey string) string {
	sum := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(sum[:8])
}

func (c *Client) cached(key string) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.cache[key]
	if !ok {
		return 0, false
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.cache, key)
		return 0, false
	}
	return entry.pricePerGram, true
}

func (c *Client) fetchQuote(ctx context.Context, code, currency, apiKey string) (float64, error) {
	url := strings.TrimRight(c.config.BaseUrl, "/") + "/" + code + "/" + currency
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, &SourceError{Reason: ReasonUnknown, Metal: code, Err: err}
	}
	req.Header.Set("x-access-token", apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &SourceError{Reason: ReasonConnectionFailed, Metal: code, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, &SourceError{Reason: ReasonConnectionFailed, Metal: code, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, &SourceError{Reason: ReasonUnauthorized, Metal: code, Err: errors.New(resp.Status)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return 0, &SourceError{Reason: ReasonRateLimited, Metal: code, Err: errors.New(resp.Status)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return 0, &SourceError{Reason: ReasonUnknown, Metal: code, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	var quote dto.PriceResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return 0, &SourceError{Reason: ReasonInvalidResponse, Metal: code, Err: err}
	}
	if quote.Price == nil {
		return 0, &SourceError{Reason: ReasonInvalidResponse, Metal: code, Err: errors.New("missing price field")}
	}
	price := *quote.Price
	if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
		return 0, &SourceError{Reason: ReasonInvalidResponse, Metal: code, Err: fmt.Errorf("invalid price %v", price)}
	}
	return price, nil
}

func normalizeCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		code = strings.ToUpper(strings.TrimSpace(code))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
