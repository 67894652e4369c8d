// Package cms is the Wagtail API v2 client the site reads its content through.
//
// Requests are retried a fixed number of times with a doubling delay, and
// every GET is resolved through a strategy.Manager so repeated page loads are
// served from the memory and persistent caches.
package cms

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"sitefront/internal/core"
	"sitefront/internal/httpclient"
	"sitefront/internal/observability"
	"sitefront/internal/strategy"
)

const (
	upstreamName     = "cms"
	maxResponseBytes = 8 << 20

	// DefaultBaseURL is where a local Wagtail instance listens.
	DefaultBaseURL = "http://localhost:8000"
)

// Config holds CMS client settings.
type Config struct {
	BaseURL    string        `yaml:"base_url"`
	Timeout    time.Duration `yaml:"timeout"`
	Retries    int           `yaml:"retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`

	// CircuitBreaker is optional; nil disables it.
	CircuitBreaker *BreakerConfig `yaml:"circuit_breaker"`
}

// DefaultConfig returns the client defaults: 10s timeout, 3 retries, 1s initial delay.
func DefaultConfig() Config {
	return Config{
		BaseURL:    DefaultBaseURL,
		Timeout:    10 * time.Second,
		Retries:    3,
		RetryDelay: time.Second,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the client built from Config.Timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithCache routes GET requests through m.
func WithCache(m *strategy.Manager[json.RawMessage]) Option {
	return func(c *Client) { c.cache = m }
}

// Client talks to the CMS.
type Client struct {
	cfg     Config
	http    *http.Client
	cache   *strategy.Manager[json.RawMessage]
	breaker *breaker
}

// New creates a Client. Zero config fields take DefaultConfig values.
func New(cfg Config, opts ...Option) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}

	c := &Client{cfg: cfg}
	if cfg.CircuitBreaker != nil {
		c.breaker = newBreaker(*cfg.CircuitBreaker, nil)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		hc := httpclient.WithTimeout(cfg.Timeout)
		hc.DisableCompression = true
		c.http = httpclient.NewHTTPClient(&hc)
	}
	return c
}

// BaseURL returns the CMS origin the client talks to.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Cache returns the manager GETs are resolved through, or nil.
func (c *Client) Cache() *strategy.Manager[json.RawMessage] {
	return c.cache
}

// BreakerState reports the circuit breaker state, or "disabled".
func (c *Client) BreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.String()
}

// CacheKey returns the manager key a CMS cache key is stored under.
func CacheKey(key string) string {
	return "api/" + key
}

// CallOption adjusts a single read.
type CallOption func(*callOptions)

type callOptions struct {
	skipCache bool
	strategy  strategy.Options
}

// SkipCache sends the request straight to the CMS, leaving the caches untouched.
func SkipCache() CallOption {
	return func(o *callOptions) { o.skipCache = true }
}

// WithStrategy overrides the binding matched for this read.
func WithStrategy(opts strategy.Options) CallOption {
	return func(o *callOptions) { o.strategy = opts }
}

// Get reads endpoint, resolving it through the cache under cacheKey.
// A cache-only read that finds nothing falls back to a direct request.
func (c *Client) Get(ctx context.Context, endpoint, cacheKey string, opts ...CallOption) (json.RawMessage, error) {
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}

	fetch := func(ctx context.Context) (json.RawMessage, error) {
		return c.do(ctx, http.MethodGet, endpoint, nil)
	}
	if c.cache == nil || co.skipCache {
		return fetch(ctx)
	}

	data, err := c.cache.GetWithOptions(ctx, CacheKey(cacheKey), fetch, co.strategy)
	if errors.Is(err, strategy.ErrNoCachedData) {
		slog.Warn("cms cache empty, falling back to direct request", "key", cacheKey)
		return fetch(ctx)
	}
	return data, err
}

// Post sends payload as JSON. Posts are never cached.
func (c *Client) Post(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to encode request body", err)
	}
	return c.do(ctx, http.MethodPost, endpoint, body)
}

// do executes a request with retries and circuit breaking. The breaker is
// consulted before every attempt, so a circuit that opens mid-retry stops
// the remaining attempts.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff(attempt)):
			}
		}

		if c.breaker != nil && !c.breaker.allow() {
			observability.CMSRequests.WithLabelValues("rejected").Inc()
			return nil, core.NewUpstreamError(upstreamName, http.StatusServiceUnavailable,
				"circuit breaker is open - CMS temporarily unavailable", lastErr)
		}

		data, err := c.attempt(ctx, method, endpoint, body)
		if err == nil {
			if c.breaker != nil {
				c.breaker.success()
			}
			return data, nil
		}
		lastErr = err

		// The caller gave up; that says nothing about the CMS.
		if ctx.Err() != nil {
			return nil, err
		}
		var cmsErr *core.Error
		if errors.As(err, &cmsErr) && !cmsErr.Retryable() {
			return nil, err
		}
		if c.breaker != nil {
			c.breaker.failure()
		}
		slog.Debug("cms request failed", "method", method, "endpoint", endpoint, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

// backoff returns the wait before the given retry: RetryDelay, then doubling.
func (c *Client) backoff(attempt int) time.Duration {
	return c.cfg.RetryDelay << (attempt - 1)
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+endpoint, reader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to build CMS request", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "br, gzip")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.CMSRequests.WithLabelValues("error").Inc()
		return nil, core.NewUpstreamError(upstreamName, 0, "failed to reach CMS", err)
	}
	defer resp.Body.Close()
	observability.CMSRequests.WithLabelValues(statusClass(resp.StatusCode)).Inc()

	payload, err := readBody(resp)
	if err != nil {
		return nil, core.NewUpstreamError(upstreamName, 0, "failed to read CMS response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.ParseUpstreamError(upstreamName, resp.StatusCode, payload)
	}
	if !json.Valid(payload) {
		return nil, core.NewUpstreamError(upstreamName, resp.StatusCode, "CMS returned invalid JSON", nil)
	}
	return payload, nil
}

// readBody decodes the body according to its Content-Encoding.
func readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))); enc {
	case "", "identity":
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", enc)
	}
	return io.ReadAll(io.LimitReader(r, maxResponseBytes))
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
