// Package server provides the HTTP surface of the site: rendered pages, the
// JSON content API, lead submission and cache administration.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"sitefront/internal/blocks"
	"sitefront/internal/cms"
	"sitefront/internal/components"
	"sitefront/internal/core"
	"sitefront/internal/leads"
	"sitefront/internal/render"
	"sitefront/internal/strategy"
)

// ContentSource reads CMS content. *cms.Client satisfies it.
type ContentSource interface {
	Page(ctx context.Context, name string, opts ...cms.CallOption) (*core.Page, error)
	PageBySlug(ctx context.Context, slug, pageType string, opts ...cms.CallOption) (*core.PageList, error)
	BlogPosts(ctx context.Context, page, limit int, opts ...cms.CallOption) (*core.PageList, error)
	BlogPost(ctx context.Context, slug string, opts ...cms.CallOption) (*core.Page, error)
	Search(ctx context.Context, query, pageType string, opts ...cms.CallOption) (*core.PageList, error)
	FeatureFlags(ctx context.Context, opts ...cms.CallOption) (map[string]bool, error)
	ClearPageCache(ctx context.Context, pageType string) int
	ClearBlogCache(ctx context.Context) int
	ClearFeatureFlagCache(ctx context.Context)
	BreakerState() string
}

// LeadSubmitter relays contact form submissions. *leads.Client satisfies it.
type LeadSubmitter interface {
	Submit(ctx context.Context, lead core.Lead) (*core.LeadResult, error)
}

// CacheAdmin exposes cache maintenance. *strategy.Manager satisfies it.
type CacheAdmin interface {
	Stats(ctx context.Context) strategy.Stats
	InvalidateMatching(ctx context.Context, substr string) int
	Clear(ctx context.Context)
	Cleanup(ctx context.Context)
}

// Site describes the rendered site.
type Site struct {
	Name string
	// PublicURL prefixes canonical links. Empty omits them.
	PublicURL string
}

// Handler holds the HTTP handlers
type Handler struct {
	content  ContentSource
	leads    LeadSubmitter
	cache    CacheAdmin
	registry *blocks.Registry
	pipeline *render.Pipeline
	library  *components.Library
	site     Site
}

// NewHandler creates a handler. cache may be nil when caching is disabled.
func NewHandler(content ContentSource, leadClient LeadSubmitter, cache CacheAdmin, registry *blocks.Registry,
	pipeline *render.Pipeline, library *components.Library, site Site) *Handler {
	return &Handler{
		content:  content,
		leads:    leadClient,
		cache:    cache,
		registry: registry,
		pipeline: pipeline,
		library:  library,
		site:     site,
	}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// pageResponse is a page with its resolved render list.
type pageResponse struct {
	Page    *core.Page        `json:"page"`
	Blocks  []render.Rendered `json:"blocks"`
	Skipped []render.Skip     `json:"skipped,omitempty"`
}

func (h *Handler) pageResponse(ctx context.Context, page *core.Page) pageResponse {
	result := h.pipeline.Resolve(ctx, page.Content)
	blocks := result.Blocks
	if blocks == nil {
		blocks = []render.Rendered{}
	}
	return pageResponse{Page: page, Blocks: blocks, Skipped: result.Skipped}
}

// PageJSON handles GET /api/pages/:page
func (h *Handler) PageJSON(c echo.Context) error {
	ctx := c.Request().Context()
	page, err := h.content.Page(ctx, c.Param("page"), callOptions(c)...)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, h.pageResponse(ctx, page))
}

// PageBySlugJSON handles GET /api/pages/slug/:slug?type=
func (h *Handler) PageBySlugJSON(c echo.Context) error {
	list, err := h.content.PageBySlug(c.Request().Context(), c.Param("slug"), c.QueryParam("type"), callOptions(c)...)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// BlogPostsJSON handles GET /api/blog?page=&limit=
func (h *Handler) BlogPostsJSON(c echo.Context) error {
	page, limit, err := pagination(c)
	if err != nil {
		return handleError(c, err)
	}
	list, err := h.content.BlogPosts(c.Request().Context(), page, limit, callOptions(c)...)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// BlogPostJSON handles GET /api/blog/:slug
func (h *Handler) BlogPostJSON(c echo.Context) error {
	ctx := c.Request().Context()
	post, err := h.content.BlogPost(ctx, c.Param("slug"), callOptions(c)...)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, h.pageResponse(ctx, post))
}

// SearchJSON handles GET /api/search?q=&type=
func (h *Handler) SearchJSON(c echo.Context) error {
	list, err := h.content.Search(c.Request().Context(), c.QueryParam("q"), c.QueryParam("type"), callOptions(c)...)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// FeatureFlags handles GET /api/feature-flags
func (h *Handler) FeatureFlags(c echo.Context) error {
	flags, err := h.content.FeatureFlags(c.Request().Context(), callOptions(c)...)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]any{"flags": flags})
}

// SubmitLead handles POST /api/leads
func (h *Handler) SubmitLead(c echo.Context) error {
	var lead core.Lead
	if err := c.Bind(&lead); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body", err))
	}
	result, err := h.leads.Submit(c.Request().Context(), lead)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(http.StatusCreated, result)
}

// ListBlocks handles GET /api/blocks?category=
func (h *Handler) ListBlocks(c echo.Context) error {
	var infos []blocks.Info
	if category := c.QueryParam("category"); category != "" {
		cat := blocks.Category(category)
		if !cat.Valid() {
			return handleError(c, core.NewInvalidRequestError("unknown block category: "+category, nil))
		}
		for _, d := range h.registry.ByCategory(cat) {
			infos = append(infos, d.Info())
		}
	} else {
		for _, name := range h.registry.Names() {
			d, _ := h.registry.Lookup(name)
			infos = append(infos, d.Info())
		}
	}
	if infos == nil {
		infos = []blocks.Info{}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"blocks": infos,
		"stats":  h.registry.Stats(),
	})
}

// GetBlock handles GET /api/blocks/:name
func (h *Handler) GetBlock(c echo.Context) error {
	d, ok := h.registry.Lookup(c.Param("name"))
	if !ok {
		return handleError(c, core.NewNotFoundError("unknown block type: "+c.Param("name")))
	}
	return c.JSON(http.StatusOK, d.Info())
}

// callOptions maps ?fresh=1 to a cache bypass.
func callOptions(c echo.Context) []cms.CallOption {
	if fresh, _ := strconv.ParseBool(c.QueryParam("fresh")); fresh {
		return []cms.CallOption{cms.SkipCache()}
	}
	return nil
}

func pagination(c echo.Context) (page, limit int, err error) {
	page, limit = 1, cms.DefaultBlogPageSize
	if v := c.QueryParam("page"); v != "" {
		if page, err = strconv.Atoi(v); err != nil || page < 1 {
			return 0, 0, core.NewInvalidRequestError("page must be a positive integer", nil)
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 1 || limit > 100 {
			return 0, 0, core.NewInvalidRequestError("limit must be between 1 and 100", nil)
		}
	}
	return page, limit, nil
}

// errorStatus maps an error to the status and body served for it.
func errorStatus(err error) (int, *core.Error) {
	if errors.Is(err, strategy.ErrNoCachedData) {
		return http.StatusServiceUnavailable, &core.Error{
			Type:    core.ErrorTypeUpstream,
			Message: "content is not available right now",
		}
	}

	var siteErr *core.Error
	if errors.As(err, &siteErr) {
		if siteErr.Type == core.ErrorTypeUpstream {
			if siteErr.StatusCode == http.StatusServiceUnavailable {
				return http.StatusServiceUnavailable, siteErr
			}
			return http.StatusBadGateway, siteErr
		}
		return siteErr.HTTPStatusCode(), siteErr
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, &core.Error{
			Type:    core.ErrorTypeUpstream,
			Message: "request timed out",
		}
	}

	return http.StatusInternalServerError, &core.Error{
		Type:    core.ErrorTypeInternal,
		Message: "an unexpected error occurred",
	}
}

// handleError converts site errors to JSON responses
func handleError(c echo.Context, err error) error {
	status, siteErr := errorStatus(err)
	body := siteErr.ToJSON()

	var vErr *leads.ValidationError
	if errors.As(err, &vErr) {
		body["fields"] = vErr.Fields
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.Request().URL.Path, "error", err)
	}
	return c.JSON(status, body)
}

func isNotFound(err error) bool {
	var siteErr *core.Error
	return errors.As(err, &siteErr) && siteErr.Type == core.ErrorTypeNotFound
}
