package cms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"sitefront/internal/core"
	"sitefront/internal/strategy"
)

const (
	pagesEndpoint        = "/api/v2/pages/"
	featureFlagsEndpoint = "/api/feature-flags/"
	featureMetaEndpoint  = "/api/wagtail-transition/"

	blogPageType = "pages.BlogPage"

	// DefaultBlogPageSize is used when BlogPosts gets a non-positive limit.
	DefaultBlogPageSize = 10
)

var (
	blogListFields = []string{"id", "title", "slug", "intro", "date", "featured_image", "first_published_at"}
	blogPostFields = []string{"id", "title", "slug", "intro", "date", "featured_image", "content"}
)

// SitePage describes one of the named pages the site serves.
type SitePage struct {
	Type   string
	Fields []string
}

var sitePages = map[string]SitePage{
	"home":      {Type: "pages.HomePage", Fields: []string{"content", "meta"}},
	"about":     {Type: "pages.AboutPage", Fields: []string{"content", "meta"}},
	"services":  {Type: "pages.ServicesPage", Fields: []string{"content", "meta"}},
	"portfolio": {Type: "pages.PortfolioPage", Fields: []string{"content", "meta"}},
	"contact":   {Type: "pages.ContactPage", Fields: []string{"content", "meta"}},
	"blog":      {Type: "pages.BlogIndexPage", Fields: []string{"content", "intro", "blog_posts"}},
}

// SitePages returns the names accepted by Page, sorted.
func SitePages() []string {
	names := make([]string, 0, len(sitePages))
	for name := range sitePages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupSitePage returns the page type and fields behind a site page name.
func LookupSitePage(name string) (SitePage, bool) {
	p, ok := sitePages[name]
	return p, ok
}

// PageByType lists pages of a Wagtail page type. With no fields the API's
// default field set is returned.
func (c *Client) PageByType(ctx context.Context, pageType string, fields []string, opts ...CallOption) (*core.PageList, error) {
	if pageType == "" {
		return nil, core.NewInvalidRequestError("page type is required", nil)
	}
	q := url.Values{}
	q.Set("type", pageType)
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}
	key := fmt.Sprintf("page-%s-%s", pageType, orDefault(strings.Join(fields, ","), "all"))
	return c.pageList(ctx, pagesEndpoint+"?"+q.Encode(), key, opts...)
}

// PageBySlug lists pages with the given slug, optionally narrowed to a type.
func (c *Client) PageBySlug(ctx context.Context, slug, pageType string, opts ...CallOption) (*core.PageList, error) {
	if slug == "" {
		return nil, core.NewInvalidRequestError("slug is required", nil)
	}
	q := url.Values{}
	q.Set("slug", slug)
	if pageType != "" {
		q.Set("type", pageType)
	}
	key := fmt.Sprintf("page-slug-%s-%s", slug, orDefault(pageType, "any"))
	return c.pageList(ctx, pagesEndpoint+"?"+q.Encode(), key, opts...)
}

// Page returns the first published page behind a site page name
// (home, about, services, portfolio, contact, blog).
func (c *Client) Page(ctx context.Context, name string, opts ...CallOption) (*core.Page, error) {
	sp, ok := sitePages[name]
	if !ok {
		return nil, core.NewNotFoundError(fmt.Sprintf("unknown page %q", name))
	}
	list, err := c.PageByType(ctx, sp.Type, sp.Fields, opts...)
	if err != nil {
		return nil, err
	}
	page, ok := list.First()
	if !ok {
		return nil, core.NewNotFoundError(fmt.Sprintf("no %s page published", name))
	}
	return page, nil
}

// BlogIndex returns the blog index page.
func (c *Client) BlogIndex(ctx context.Context, opts ...CallOption) (*core.Page, error) {
	return c.Page(ctx, "blog", opts...)
}

// BlogPosts lists blog posts newest first. page is 1-based.
func (c *Client) BlogPosts(ctx context.Context, page, limit int, opts ...CallOption) (*core.PageList, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultBlogPageSize
	}
	q := url.Values{}
	q.Set("type", blogPageType)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa((page-1)*limit))
	q.Set("order", "-date")
	q.Set("fields", strings.Join(blogListFields, ","))
	key := fmt.Sprintf("blog-posts-%d-%d", page, limit)
	return c.pageList(ctx, pagesEndpoint+"?"+q.Encode(), key, opts...)
}

// BlogPost returns a single blog post with its content.
func (c *Client) BlogPost(ctx context.Context, slug string, opts ...CallOption) (*core.Page, error) {
	if slug == "" {
		return nil, core.NewInvalidRequestError("slug is required", nil)
	}
	q := url.Values{}
	q.Set("type", blogPageType)
	q.Set("slug", slug)
	q.Set("fields", strings.Join(blogPostFields, ","))
	list, err := c.pageList(ctx, pagesEndpoint+"?"+q.Encode(), "blog-post-"+slug, opts...)
	if err != nil {
		return nil, err
	}
	post, ok := list.First()
	if !ok {
		return nil, core.NewNotFoundError(fmt.Sprintf("blog post %q not found", slug))
	}
	return post, nil
}

// Search runs a full-text search, optionally narrowed to a page type.
func (c *Client) Search(ctx context.Context, query, pageType string, opts ...CallOption) (*core.PageList, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, core.NewInvalidRequestError("search query is required", nil)
	}
	q := url.Values{}
	q.Set("search", query)
	if pageType != "" {
		q.Set("type", pageType)
	}
	key := fmt.Sprintf("search-%s-%s", query, orDefault(pageType, "all"))
	return c.pageList(ctx, pagesEndpoint+"?"+q.Encode(), key, opts...)
}

// FeatureFlags returns the active flags published by the CMS. The read uses
// the binding for "feature-flags" unless the caller overrides it.
func (c *Client) FeatureFlags(ctx context.Context, opts ...CallOption) (map[string]bool, error) {
	if c.cache != nil {
		b := c.cache.Resolve("feature-flags")
		opts = append([]CallOption{WithStrategy(strategy.Options{Strategy: b.Strategy, TTL: b.TTL})}, opts...)
	}
	data, err := c.Get(ctx, featureFlagsEndpoint, "feature-flags", opts...)
	if err != nil {
		return nil, err
	}

	flags := make(map[string]bool)
	gjson.GetBytes(data, "flags").ForEach(func(name, value gjson.Result) bool {
		flags[name.String()] = value.Bool()
		return true
	})
	return flags, nil
}

// FeatureMetadata returns the CMS migration metadata document as-is.
func (c *Client) FeatureMetadata(ctx context.Context, opts ...CallOption) (json.RawMessage, error) {
	return c.Get(ctx, featureMetaEndpoint, "feature-metadata", opts...)
}

// ClearPageCache drops cached pages of one type, or every cached page and
// blog listing when pageType is empty. It returns the number of keys removed.
func (c *Client) ClearPageCache(ctx context.Context, pageType string) int {
	if c.cache == nil {
		return 0
	}
	if pageType != "" {
		return c.cache.InvalidateMatching(ctx, CacheKey("page-"+pageType))
	}
	return c.cache.InvalidateMatching(ctx, CacheKey("page-")) +
		c.cache.InvalidateMatching(ctx, CacheKey("blog-"))
}

// ClearBlogCache drops cached blog listings and posts.
func (c *Client) ClearBlogCache(ctx context.Context) int {
	if c.cache == nil {
		return 0
	}
	return c.cache.InvalidateMatching(ctx, CacheKey("blog-"))
}

// ClearFeatureFlagCache drops the cached flags and flag metadata.
func (c *Client) ClearFeatureFlagCache(ctx context.Context) {
	if c.cache == nil {
		return
	}
	c.cache.Invalidate(ctx, CacheKey("feature-flags"))
	c.cache.Invalidate(ctx, CacheKey("feature-metadata"))
}

func (c *Client) pageList(ctx context.Context, endpoint, cacheKey string, opts ...CallOption) (*core.PageList, error) {
	data, err := c.Get(ctx, endpoint, cacheKey, opts...)
	if err != nil {
		return nil, err
	}
	var list core.PageList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, core.NewUpstreamError(upstreamName, 0, "unexpected pages response", err)
	}
	return &list, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
