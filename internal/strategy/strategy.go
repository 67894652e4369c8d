// Package strategy resolves cached reads through a memory cache, a persistent
// cache and a caller-supplied fetch function, choosing one of five strategies
// per key.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Strategy names how a Manager combines the caches with the network.
type Strategy string

const (
	CacheFirst           Strategy = "cache-first"
	NetworkFirst         Strategy = "network-first"
	StaleWhileRevalidate Strategy = "stale-while-revalidate"
	NetworkOnly          Strategy = "network-only"
	CacheOnly            Strategy = "cache-only"
)

// Valid reports whether s is one of the known strategies.
func (s Strategy) Valid() bool {
	switch s {
	case CacheFirst, NetworkFirst, StaleWhileRevalidate, NetworkOnly, CacheOnly:
		return true
	}
	return false
}

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(strings.TrimSpace(strings.ToLower(s)))
	if !st.Valid() {
		return "", fmt.Errorf("unknown cache strategy %q (valid: cache-first, network-first, stale-while-revalidate, network-only, cache-only)", s)
	}
	return st, nil
}

// ErrNoCachedData is returned (wrapped with the key) when a cache-only read
// finds nothing in either cache.
var ErrNoCachedData = errors.New("no cached data")

// Fetcher loads a fresh value from the source of truth.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Binding associates keys containing KeyPattern with a strategy.
// StaleWindow is carried for configuration parity and reporting; freshness is
// decided by the caches' own TTLs.
type Binding struct {
	KeyPattern  string        `json:"key_pattern" yaml:"key_pattern"`
	Strategy    Strategy      `json:"strategy" yaml:"strategy"`
	TTL         time.Duration `json:"ttl" yaml:"ttl"`
	StaleWindow time.Duration `json:"stale_window" yaml:"stale_window"`
}

// Matches reports whether key falls under this binding.
func (b Binding) Matches(key string) bool {
	return strings.Contains(key, b.KeyPattern)
}

// Options overrides the matched binding for a single call. Zero fields keep
// the binding's value.
type Options struct {
	Strategy    Strategy
	TTL         time.Duration
	StaleWindow time.Duration
}

func (o Options) apply(b Binding) Binding {
	if o.Strategy != "" {
		b.Strategy = o.Strategy
	}
	if o.TTL > 0 {
		b.TTL = o.TTL
	}
	if o.StaleWindow > 0 {
		b.StaleWindow = o.StaleWindow
	}
	return b
}

// DefaultBinding applies when no registered binding matches a key.
func DefaultBinding() Binding {
	return Binding{
		Strategy:    StaleWhileRevalidate,
		TTL:         5 * time.Minute,
		StaleWindow: 2 * time.Minute,
	}
}

// DefaultBindings returns the site's standard bindings, in match order.
func DefaultBindings() []Binding {
	return []Binding{
		{KeyPattern: "api/", Strategy: StaleWhileRevalidate, TTL: 5 * time.Minute, StaleWindow: 2 * time.Minute},
		{KeyPattern: "feature-flags", Strategy: NetworkFirst, TTL: time.Hour, StaleWindow: 30 * time.Minute},
		{KeyPattern: "user-preferences", Strategy: CacheFirst, TTL: 24 * time.Hour, StaleWindow: 12 * time.Hour},
		{KeyPattern: "static-data", Strategy: CacheFirst, TTL: 7 * 24 * time.Hour, StaleWindow: 24 * time.Hour},
	}
}
