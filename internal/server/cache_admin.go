package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"sitefront/internal/core"
)

// Invalidation scopes accepted by POST /api/cache/invalidate.
const (
	ScopePages        = "pages"
	ScopeBlog         = "blog"
	ScopeFeatureFlags = "feature-flags"
)

// invalidateRequest selects cache entries to drop. Exactly one of Pattern
// and Scope must be set.
type invalidateRequest struct {
	Pattern  string `json:"pattern"`
	Scope    string `json:"scope"`
	PageType string `json:"page_type"`
}

// CacheStats handles GET /api/cache/stats
func (h *Handler) CacheStats(c echo.Context) error {
	body := map[string]any{
		"enabled": h.cache != nil,
		"breaker": h.content.BreakerState(),
	}
	if h.cache != nil {
		stats := h.cache.Stats(c.Request().Context())
		body["memory"] = stats.Memory
		body["persistent"] = stats.Persistent
	}
	return c.JSON(http.StatusOK, body)
}

// InvalidateCache handles POST /api/cache/invalidate
func (h *Handler) InvalidateCache(c echo.Context) error {
	var req invalidateRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	req.Pattern = strings.TrimSpace(req.Pattern)
	req.Scope = strings.TrimSpace(req.Scope)

	if (req.Pattern == "") == (req.Scope == "") {
		return handleError(c, core.NewInvalidRequestError("exactly one of pattern or scope is required", nil))
	}

	ctx := c.Request().Context()
	var removed int
	switch req.Scope {
	case "":
		if h.cache != nil {
			removed = h.cache.InvalidateMatching(ctx, req.Pattern)
		}
	case ScopePages:
		removed = h.content.ClearPageCache(ctx, strings.TrimSpace(req.PageType))
	case ScopeBlog:
		removed = h.content.ClearBlogCache(ctx)
	case ScopeFeatureFlags:
		h.content.ClearFeatureFlagCache(ctx)
	default:
		return handleError(c, core.NewInvalidRequestError("unknown scope: "+req.Scope, nil))
	}
	return c.JSON(http.StatusOK, map[string]int{"removed": removed})
}

// CleanupCache handles POST /api/cache/cleanup
func (h *Handler) CleanupCache(c echo.Context) error {
	if h.cache != nil {
		h.cache.Cleanup(c.Request().Context())
	}
	return c.NoContent(http.StatusNoContent)
}

// ClearCache handles DELETE /api/cache
func (h *Handler) ClearCache(c echo.Context) error {
	if h.cache != nil {
		h.cache.Clear(c.Request().Context())
	}
	return c.NoContent(http.StatusNoContent)
}
