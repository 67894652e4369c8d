// Package observability holds the Prometheus collectors shared across sitefront.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for CacheLookups.
const (
	LayerMemory     = "memory"
	LayerPersistent = "persistent"

	ResultHit  = "hit"
	ResultMiss = "miss"
)

var (
	// CacheLookups counts strategy-level cache reads by layer and result.
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefront_cache_lookups_total",
			Help: "Cache lookups performed by the strategy manager, by layer and result",
		},
		[]string{"layer", "result"},
	)

	// StrategyOutcomes counts how each strategy resolved a request.
	StrategyOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefront_cache_strategy_outcomes_total",
			Help: "Strategy resolutions by strategy and outcome (cache, network, fallback, error)",
		},
		[]string{"strategy", "outcome"},
	)

	// BackgroundRefreshes counts stale-while-revalidate refreshes by result.
	BackgroundRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefront_cache_background_refreshes_total",
			Help: "Background cache refreshes by result",
		},
		[]string{"result"},
	)

	// BlocksRendered counts blocks emitted by the render pipeline by block type.
	BlocksRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefront_blocks_rendered_total",
			Help: "Content blocks resolved to a component",
		},
		[]string{"type"},
	)

	// BlocksSkipped counts blocks dropped by the render pipeline by reason.
	BlocksSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefront_blocks_skipped_total",
			Help: "Content blocks dropped from render output, by reason",
		},
		[]string{"reason"},
	)

	// CMSRequests counts upstream CMS requests by HTTP status class.
	CMSRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefront_cms_requests_total",
			Help: "Requests sent to the CMS API, by status class",
		},
		[]string{"status"},
	)

	// LeadSubmissions counts lead submissions by result.
	LeadSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitefront_lead_submissions_total",
			Help: "Lead form submissions by result",
		},
		[]string{"result"},
	)
)
