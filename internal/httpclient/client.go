// Package httpclient provides the http.Client factory shared by the CMS and lead clients.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"sitefront/internal/version"
)

// ClientConfig describes the transport used to reach the CMS and the lead endpoint.
type ClientConfig struct {
	// Pool sizing. The CMS is a single host, so the per-host limit matters most.
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration

	// Timeout bounds a whole request including the body read.
	Timeout time.Duration

	DialTimeout           time.Duration
	KeepAlive             time.Duration
	TLSHandshakeTimeout   time.Duration
	ResponseHeaderTimeout time.Duration

	// DisableCompression stops the transport from requesting gzip on its own.
	// The CMS client negotiates br/gzip itself and sets it.
	DisableCompression bool

	// UserAgent is sent on requests that do not set one. Empty means
	// "sitefront/<version>".
	UserAgent string
}

// envDuration reads a duration override. Plain integers are seconds; Go
// duration strings ("1m30s") are accepted too. Anything else keeps def.
func envDuration(key string, def time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return def
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return def
}

// DefaultConfig returns settings for a CMS on the same network as the site.
// SITEFRONT_HTTP_TIMEOUT and SITEFRONT_HTTP_HEADER_TIMEOUT override the two
// timeouts (default 10s each).
func DefaultConfig() ClientConfig {
	return ClientConfig{
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		Timeout:               envDuration("SITEFRONT_HTTP_TIMEOUT", 10*time.Second),
		DialTimeout:           5 * time.Second,
		KeepAlive:             30 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: envDuration("SITEFRONT_HTTP_HEADER_TIMEOUT", 10*time.Second),
	}
}

// WithTimeout returns DefaultConfig with the overall and header timeouts set to d.
// A non-positive d keeps the defaults.
func WithTimeout(d time.Duration) ClientConfig {
	cfg := DefaultConfig()
	if d > 0 {
		cfg.Timeout = d
		cfg.ResponseHeaderTimeout = d
	}
	return cfg
}

// NewHTTPClient builds a pooled client. A nil config means DefaultConfig().
func NewHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: config.KeepAlive,
		}).DialContext,
		MaxIdleConns:          config.MaxIdleConns,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       config.IdleConnTimeout,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ResponseHeaderTimeout: config.ResponseHeaderTimeout,
		DisableCompression:    config.DisableCompression,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: time.Second,
	}

	ua := config.UserAgent
	if ua == "" {
		ua = "sitefront/" + version.Version
	}

	return &http.Client{
		Transport: &userAgentTransport{base: transport, userAgent: ua},
		Timeout:   config.Timeout,
	}
}

// userAgentTransport stamps outgoing requests so CMS and form-endpoint logs
// can tell site traffic apart.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	r := req.Clone(req.Context())
	r.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(r)
}
