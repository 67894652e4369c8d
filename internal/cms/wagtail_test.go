package cms

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitefront/internal/core"
	"sitefront/internal/strategy"
)

const homeResponse = `{
  "items": [{
    "id": 3,
    "title": "Home",
    "content": [
      {"type": "hero", "value": {"title": "Build faster"}, "id": "b1"},
      {"type": "cta", "value": {"title": "Talk to us"}, "id": "b2"}
    ],
    "meta": {"type": "pages.HomePage", "slug": "home"}
  }],
  "meta": {"total_count": 1}
}`

// recorder serves a canned body and records the last request URL.
type recorder struct {
	calls atomic.Int32
	last  atomic.Pointer[url.URL]
	body  string
}

func (rec *recorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.calls.Add(1)
		rec.last.Store(r.URL)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(rec.body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (rec *recorder) query(t *testing.T) map[string]string {
	t.Helper()
	u := rec.last.Load()
	require.NotNil(t, u)
	assert.Equal(t, "/api/v2/pages/", u.Path)
	got := make(map[string]string)
	for k, v := range u.Query() {
		got[k] = v[0]
	}
	return got
}

func TestPage(t *testing.T) {
	rec := &recorder{body: homeResponse}
	srv := rec.server(t)
	c := New(testConfig(srv.URL))

	page, err := c.Page(context.Background(), "home")
	require.NoError(t, err)
	assert.Equal(t, "Home", page.Title)
	require.Len(t, page.Content, 2)
	assert.Equal(t, "hero", page.Content[0].Type)
	assert.JSONEq(t, `{"title":"Build faster"}`, string(page.Content[0].Value))
}

func TestPageUnknownName(t *testing.T) {
	c := New(testConfig("http://127.0.0.1:1"))
	_, err := c.Page(context.Background(), "careers")

	var cmsErr *core.Error
	require.ErrorAs(t, err, &cmsErr)
	assert.Equal(t, core.ErrorTypeNotFound, cmsErr.Type)
}

func TestPageNotPublished(t *testing.T) {
	rec := &recorder{body: `{"items":[],"meta":{"total_count":0}}`}
	c := New(testConfig(rec.server(t).URL))

	_, err := c.Page(context.Background(), "about")
	var cmsErr *core.Error
	require.ErrorAs(t, err, &cmsErr)
	assert.Equal(t, http.StatusNotFound, cmsErr.HTTPStatusCode())
}

func TestQueries(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		want map[string]string
	}{
		{
			name: "page by type",
			call: func(c *Client) error {
				_, err := c.PageByType(context.Background(), "pages.AboutPage", []string{"content", "meta"})
				return err
			},
			want: map[string]string{"type": "pages.AboutPage", "fields": "content,meta"},
		},
		{
			name: "page by slug",
			call: func(c *Client) error {
				_, err := c.PageBySlug(context.Background(), "pricing", "")
				return err
			},
			want: map[string]string{"slug": "pricing"},
		},
		{
			name: "blog posts",
			call: func(c *Client) error {
				_, err := c.BlogPosts(context.Background(), 3, 5)
				return err
			},
			want: map[string]string{
				"type":   "pages.BlogPage",
				"limit":  "5",
				"offset": "10",
				"order":  "-date",
				"fields": "id,title,slug,intro,date,featured_image,first_published_at",
			},
		},
		{
			name: "search",
			call: func(c *Client) error {
				_, err := c.Search(context.Background(), " go caching ", "pages.BlogPage")
				return err
			},
			want: map[string]string{"search": "go caching", "type": "pages.BlogPage"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{body: homeResponse}
			c := New(testConfig(rec.server(t).URL))

			require.NoError(t, tt.call(c))
			assert.Equal(t, tt.want, rec.query(t))
		})
	}
}

func TestBlogPostsDefaults(t *testing.T) {
	rec := &recorder{body: homeResponse}
	c := New(testConfig(rec.server(t).URL))

	_, err := c.BlogPosts(context.Background(), 0, 0)
	require.NoError(t, err)
	q := rec.query(t)
	assert.Equal(t, "10", q["limit"])
	assert.Equal(t, "0", q["offset"])
}

func TestBlogPost(t *testing.T) {
	rec := &recorder{body: `{"items":[{"id":9,"title":"Caching","slug":"caching","date":"2025-02-01"}],"meta":{"total_count":1}}`}
	c := New(testConfig(rec.server(t).URL))

	post, err := c.BlogPost(context.Background(), "caching")
	require.NoError(t, err)
	assert.Equal(t, 9, post.ID)
	assert.Equal(t, "caching", rec.query(t)["slug"])

	_, err = c.BlogPost(context.Background(), "")
	var cmsErr *core.Error
	require.ErrorAs(t, err, &cmsErr)
	assert.Equal(t, core.ErrorTypeInvalidRequest, cmsErr.Type)
}

func TestSearchRequiresQuery(t *testing.T) {
	_, err := New(testConfig("http://127.0.0.1:1")).Search(context.Background(), "  ", "")
	var cmsErr *core.Error
	require.ErrorAs(t, err, &cmsErr)
	assert.Equal(t, http.StatusBadRequest, cmsErr.HTTPStatusCode())
}

func TestFeatureFlags(t *testing.T) {
	rec := &recorder{body: `{"flags":{"WAGTAIL_LAYOUT":true,"WAGTAIL_SEO":false},"metadata":{"total_flags":2}}`}
	c := newCachedClient(t, rec.server(t).URL, strategy.DefaultBindings()...)
	ctx := context.Background()

	flags, err := c.FeatureFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"WAGTAIL_LAYOUT": true, "WAGTAIL_SEO": false}, flags)

	// network-first always asks the CMS when it is reachable
	_, err = c.FeatureFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), rec.calls.Load())
}

func TestClearCaches(t *testing.T) {
	rec := &recorder{body: homeResponse}
	c := newCachedClient(t, rec.server(t).URL, cacheFirst())
	ctx := context.Background()

	_, err := c.Page(ctx, "home")
	require.NoError(t, err)
	_, err = c.Page(ctx, "about")
	require.NoError(t, err)
	_, err = c.BlogPosts(ctx, 1, 10)
	require.NoError(t, err)
	_, err = c.FeatureMetadata(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, c.ClearPageCache(ctx, "pages.HomePage"))
	assert.Equal(t, 1, c.ClearBlogCache(ctx))
	assert.Equal(t, 1, c.ClearPageCache(ctx, ""))

	c.ClearFeatureFlagCache(ctx)
	assert.Zero(t, c.Cache().Stats(ctx).Memory.Size)

	calls := rec.calls.Load()
	_, err = c.Page(ctx, "home")
	require.NoError(t, err)
	assert.Equal(t, calls+1, rec.calls.Load())
}

func TestClearWithoutCache(t *testing.T) {
	c := New(testConfig("http://127.0.0.1:1"))
	assert.Zero(t, c.ClearPageCache(context.Background(), ""))
	assert.Zero(t, c.ClearBlogCache(context.Background()))
	c.ClearFeatureFlagCache(context.Background())
}

func TestSitePages(t *testing.T) {
	assert.Equal(t, []string{"about", "blog", "contact", "home", "portfolio", "services"}, SitePages())
	sp, ok := LookupSitePage("blog")
	require.True(t, ok)
	assert.Equal(t, "pages.BlogIndexPage", sp.Type)
}
