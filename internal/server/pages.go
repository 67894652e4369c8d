package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"

	"sitefront/internal/cms"
	"sitefront/internal/components"
	"sitefront/internal/core"
	"sitefront/internal/render"
)

// navigation is the site menu in display order.
var navigation = []struct {
	label, page string
}{
	{"Home", "home"},
	{"About", "about"},
	{"Services", "services"},
	{"Portfolio", "portfolio"},
	{"Blog", "blog"},
	{"Contact", "contact"},
}

func pagePath(name string) string {
	if name == "home" {
		return "/"
	}
	return "/" + name
}

func (h *Handler) nav(active string) []components.NavItem {
	items := make([]components.NavItem, 0, len(navigation))
	for _, n := range navigation {
		items = append(items, components.NavItem{
			Label:  n.label,
			Path:   pagePath(n.page),
			Active: n.page == active,
		})
	}
	return items
}

func (h *Handler) canonical(path string) string {
	if h.site.PublicURL == "" {
		return ""
	}
	return strings.TrimRight(h.site.PublicURL, "/") + path
}

// view builds the layout model for a CMS page. SEO fields win over the
// page's own title and description.
func (h *Handler) view(ctx context.Context, page *core.Page, active, path string) components.PageView {
	v := components.PageView{
		SiteName:  h.site.Name,
		Title:     page.Title,
		Canonical: h.canonical(path),
		Intro:     page.Intro,
		Nav:       h.nav(active),
		Sections:  render.Sections(h.pipeline.Resolve(ctx, page.Content)),
	}
	v.Description = firstNonEmpty(page.Meta.SearchDescription, page.Intro)
	if page.SEO != nil {
		v.Title = firstNonEmpty(page.SEO.Title, v.Title)
		v.Description = firstNonEmpty(page.SEO.Description, v.Description)
		v.OGImage = page.SEO.OGImage
	}
	return v
}

// Home handles GET /
func (h *Handler) Home(c echo.Context) error {
	return h.renderSitePage(c, "home")
}

// SitePage handles GET /:page
func (h *Handler) SitePage(c echo.Context) error {
	name := c.Param("page")
	if name == "home" {
		return c.Redirect(http.StatusMovedPermanently, "/")
	}
	if _, ok := cms.LookupSitePage(name); !ok {
		return h.errorPage(c, core.NewNotFoundError("page not found"))
	}
	return h.renderSitePage(c, name)
}

func (h *Handler) renderSitePage(c echo.Context, name string) error {
	ctx := c.Request().Context()
	page, err := h.content.Page(ctx, name)
	if err != nil {
		return h.errorPage(c, err)
	}

	v := h.view(ctx, page, name, pagePath(name))
	if name == "blog" {
		if err := h.addPostList(c, &v); err != nil {
			return h.errorPage(c, err)
		}
	}
	return h.writePage(c, v)
}

// addPostList fills the blog listing for the ?page= requested. A failed
// listing leaves the index page without posts.
func (h *Handler) addPostList(c echo.Context, v *components.PageView) error {
	pageNum := 1
	if raw := c.QueryParam("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return core.NewInvalidRequestError("page must be a positive integer", nil)
		}
		pageNum = n
	}

	limit := cms.DefaultBlogPageSize
	list, err := h.content.BlogPosts(c.Request().Context(), pageNum, limit)
	if err != nil {
		slog.Warn("blog listing unavailable", "page", pageNum, "error", err)
		return nil
	}

	for _, p := range list.Items {
		slug := firstNonEmpty(p.Slug, p.Meta.Slug)
		if slug == "" {
			continue
		}
		v.Posts = append(v.Posts, components.PostSummary{
			Title: p.Title,
			URL:   "/blog/" + slug,
			Date:  firstNonEmpty(p.Date, p.Meta.FirstPublishedAt),
			Intro: p.Intro,
		})
	}

	if pageNum > 1 {
		v.PrevURL = blogPageURL(pageNum - 1)
		v.Canonical = h.canonical(blogPageURL(pageNum))
	}
	if list.Meta.Next != nil || list.Meta.TotalCount > pageNum*limit {
		v.NextURL = blogPageURL(pageNum + 1)
	}
	return nil
}

func blogPageURL(n int) string {
	if n <= 1 {
		return "/blog"
	}
	return "/blog?page=" + strconv.Itoa(n)
}

// BlogPost handles GET /blog/:slug
func (h *Handler) BlogPost(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")
	post, err := h.content.BlogPost(ctx, slug)
	if err != nil {
		return h.errorPage(c, err)
	}

	v := h.view(ctx, post, "blog", "/blog/"+slug)
	v.Date = firstNonEmpty(post.Date, post.Meta.FirstPublishedAt)
	return h.writePage(c, v)
}

// writePage renders v and answers conditional requests with 304 when the
// document is unchanged.
func (h *Handler) writePage(c echo.Context, v components.PageView) error {
	var buf bytes.Buffer
	if err := h.library.RenderPage(&buf, v); err != nil {
		return h.errorPage(c, err)
	}

	etag := `"` + strconv.FormatUint(xxhash.Sum64(buf.Bytes()), 16) + `"`
	res := c.Response()
	res.Header().Set("ETag", etag)
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	if etagMatches(c.Request().Header.Get("If-None-Match"), etag) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// etagMatches applies the weak comparison If-None-Match uses.
func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// errorPage renders err inside the site layout.
func (h *Handler) errorPage(c echo.Context, err error) error {
	status, siteErr := errorStatus(err)

	title := "Something went wrong"
	message := "We could not load this page. Please try again shortly."
	switch {
	case isNotFound(err):
		title = "Page not found"
		message = "The page you are looking for does not exist."
	case status == http.StatusBadRequest:
		title = "Bad request"
		message = siteErr.Message
	}
	if status >= http.StatusInternalServerError {
		slog.Error("page failed", "path", c.Request().URL.Path, "error", err)
	}

	var buf bytes.Buffer
	renderErr := h.library.RenderPage(&buf, components.PageView{
		SiteName: h.site.Name,
		Title:    title,
		Intro:    message,
		Nav:      h.nav(""),
	})
	if renderErr != nil {
		return c.String(status, title)
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
