// Package components is the server-side view layer: one html/template per
// block component, a generic fallback and the page layout.
package components

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"sort"
	"strings"

	"sitefront/internal/blocks"
)

//go:embed templates/*.html
var content embed.FS

const layoutTemplate = "layout"

// partials are shared templates that are not block components.
var partials = map[string]bool{
	layoutTemplate:    true,
	"section-heading": true,
}

// ErrUnknownComponent is returned by Load for names with no template.
var ErrUnknownComponent = errors.New("unknown component")

// NavItem is one entry of the site navigation.
type NavItem struct {
	Label  string
	Path   string
	Active bool
}

// PostSummary is one entry of a blog listing.
type PostSummary struct {
	Title string
	URL   string
	Date  string
	Intro string
}

// PageView is everything the layout needs to render a page.
type PageView struct {
	SiteName    string
	Title       string
	Description string
	Canonical   string
	OGImage     string
	Intro       string
	Date        string
	Nav         []NavItem
	Sections    []template.HTML
	Posts       []PostSummary
	PrevURL     string
	NextURL     string
}

// Library holds the parsed component templates.
type Library struct {
	tmpl  *template.Template
	names map[string]bool
}

// New parses the embedded templates.
func New() (*Library, error) {
	tmpl, err := template.New("components").Funcs(funcs).ParseFS(content, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse component templates: %w", err)
	}

	names := make(map[string]bool)
	for _, t := range tmpl.Templates() {
		name := t.Name()
		if partials[name] || name == "components" || strings.HasSuffix(name, ".html") {
			continue
		}
		names[name] = true
	}
	return &Library{tmpl: tmpl, names: names}, nil
}

// Names lists the loadable component names, sorted.
func (l *Library) Names() []string {
	out := make([]string, 0, len(l.names))
	for n := range l.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Load returns the named component. It implements blocks.ComponentLoader.
func (l *Library) Load(_ context.Context, name string) (blocks.Component, error) {
	if !l.names[name] {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComponent, name)
	}
	return &component{name: name, tmpl: l.tmpl}, nil
}

// RenderPage writes the full HTML document for view.
func (l *Library) RenderPage(w io.Writer, view PageView) error {
	return l.tmpl.ExecuteTemplate(w, layoutTemplate, view)
}

type component struct {
	name string
	tmpl *template.Template
}

func (c *component) Name() string {
	return c.name
}

func (c *component) Render(w io.Writer, props blocks.Props) error {
	return c.tmpl.ExecuteTemplate(w, c.name, props)
}

var funcs = template.FuncMap{
	"richtext": richText,
	"display":  display,
	"list":     asList,
	"item":     unwrapItem,
	"get":      getField,
	"humanize": humanize,
}

// richText marks CMS-authored rich text as safe HTML.
func richText(v any) template.HTML {
	s, _ := v.(string)
	return template.HTML(s)
}

func humanize(s string) string {
	return strings.ReplaceAll(s, "_", " ")
}

// display formats scalars as text and anything else as compact JSON.
func display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool, float64, int:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func asList(v any) []any {
	items, _ := v.([]any)
	return items
}

// getField returns m[key] when v is an object, nil otherwise.
func getField(v any, key string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}

// unwrapItem returns the value of a list item in the {"type","value","id"}
// shape newer Wagtail versions emit, and the item itself otherwise.
func unwrapItem(v any) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	if inner, ok := m["value"]; ok {
		if _, typed := m["type"]; typed {
			return inner
		}
	}
	return v
}
