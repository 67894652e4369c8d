package blocks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type stubComponent struct{ name string }

func (c stubComponent) Name() string { return c.name }

func (c stubComponent) Render(w io.Writer, props Props) error {
	_, err := fmt.Fprintf(w, "<%s>", c.name)
	return err
}

// stubLoader loads any name except those listed in missing.
type stubLoader struct {
	missing map[string]bool
}

func (l stubLoader) Load(_ context.Context, name string) (Component, error) {
	if l.missing[name] {
		return nil, fmt.Errorf("component %q not found", name)
	}
	return stubComponent{name: name}, nil
}

func staticResolver(c Component, err error) ComponentResolver {
	return func(context.Context) (Component, error) { return c, err }
}

func TestDefaultRegistryContents(t *testing.T) {
	r := NewDefaultRegistry(stubLoader{})

	names := r.Names()
	assert.Len(t, names, 26)
	assert.Contains(t, names, "hero")
	assert.Contains(t, names, "progress_bars")

	hero, ok := r.Lookup("hero")
	require.True(t, ok)
	assert.Equal(t, []string{"heading"}, hero.RequiredFields())
	assert.Equal(t, []string{"subheading", "cta_text", "cta_link", "background_image"}, hero.OptionalFields())

	cmp, ok := r.Lookup("comparison_table")
	require.True(t, ok)
	assert.Equal(t, []string{"columns", "rows"}, cmp.RequiredFields())
}

func TestValidate(t *testing.T) {
	r := NewDefaultRegistry(stubLoader{})

	tests := []struct {
		name    string
		block   string
		payload string
		want    bool
	}{
		{"hero with heading", "hero", `{"heading":"x"}`, true},
		{"hero empty", "hero", `{}`, false},
		{"hero null heading", "hero", `{"heading":null}`, false},
		{"hero empty-string heading", "hero", `{"heading":""}`, false},
		{"hero zero-ish heading is present", "hero", `{"heading":0}`, true},
		{"unknown type", "nonexistent-type", `{"heading":"x"}`, false},
		{"invalid json", "hero", `{"heading":`, false},
		{"not an object", "hero", `["heading"]`, false},
		{"cta missing link", "cta", `{"heading":"h","button_text":"go"}`, false},
		{"cta complete", "cta", `{"heading":"h","button_text":"go","button_link":"/x"}`, true},
		{"comparison needs both", "comparison_table", `{"columns":[1]}`, false},
		{"empty list is present", "features", `{"features":[]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Validate(tt.block, []byte(tt.payload)))
		})
	}
}

func TestValidateCustomValidator(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("rating", Descriptor{
		Category:  CategoryContent,
		Props:     []PropMapping{{Source: "stars", Target: "stars", Required: true}},
		Validate:  func(p gjson.Result) bool { return p.Get("stars").Int() <= 5 },
		Component: staticResolver(stubComponent{name: "rating"}, nil),
	}))

	assert.True(t, r.Validate("rating", []byte(`{"stars":4}`)))
	assert.False(t, r.Validate("rating", []byte(`{"stars":9}`)), "custom validator is ANDed with required fields")
	assert.False(t, r.Validate("rating", []byte(`{}`)))
}

func TestTransformProps(t *testing.T) {
	r := NewDefaultRegistry(stubLoader{})

	t.Run("RenamesAndOmitsMissing", func(t *testing.T) {
		props := r.TransformProps("hero", []byte(`{"heading":"Welcome","cta_text":"Go"}`))
		assert.Equal(t, Props{"title": "Welcome", "ctaText": "Go"}, props)
	})

	t.Run("ImageTransform", func(t *testing.T) {
		props := r.TransformProps("hero", []byte(`{"heading":"h","background_image":{"url":"/img.png","id":3}}`))
		assert.Equal(t, "/img.png", props["backgroundImage"])

		props = r.TransformProps("hero", []byte(`{"heading":"h","background_image":"/plain.png"}`))
		assert.Equal(t, "/plain.png", props["backgroundImage"])
	})

	t.Run("ImageListTransform", func(t *testing.T) {
		props := r.TransformProps("gallery", []byte(`{"images":[{"url":"/a.png"},"/b.png",{"id":1}]}`))
		assert.Equal(t, []any{"/a.png", "/b.png", map[string]any{"id": float64(1)}}, props["images"])
		assert.Equal(t, "grid", props["layout"])
		assert.Equal(t, "3", props["columns"])
	})

	t.Run("DefaultsForMissingNullAndEmpty", func(t *testing.T) {
		props := r.TransformProps("cta", []byte(`{"heading":"h","button_text":"b","button_link":"/l"}`))
		assert.Equal(t, "primary", props["backgroundColor"])

		props = r.TransformProps("cta", []byte(`{"background_color":null}`))
		assert.Equal(t, "primary", props["backgroundColor"])

		props = r.TransformProps("cta", []byte(`{"background_color":""}`))
		assert.Equal(t, "primary", props["backgroundColor"])

		props = r.TransformProps("cta", []byte(`{"background_color":"dark"}`))
		assert.Equal(t, "dark", props["backgroundColor"])
	})

	t.Run("FalseDefaultIsKept", func(t *testing.T) {
		props := r.TransformProps("video", []byte(`{"video_url":"https://v"}`))
		assert.Equal(t, false, props["autoplay"])
		assert.Equal(t, true, props["controls"])
	})

	t.Run("EmptyWithoutDefaultIsOmitted", func(t *testing.T) {
		props := r.TransformProps("hero", []byte(`{"heading":"h","subheading":""}`))
		_, ok := props["subtitle"]
		assert.False(t, ok)
	})

	t.Run("UnknownTypeYieldsEmpty", func(t *testing.T) {
		assert.Empty(t, r.TransformProps("nope", []byte(`{"heading":"h"}`)))
	})

	t.Run("Idempotent", func(t *testing.T) {
		payload := []byte(`{"images":[{"url":"/a.png"}],"heading":"Gallery"}`)
		first := r.TransformProps("gallery", payload)
		second := r.TransformProps("gallery", payload)
		assert.Equal(t, first, second)
		assert.Equal(t, `{"images":[{"url":"/a.png"}],"heading":"Gallery"}`, string(payload))
	})
}

func TestTransformPropsDefaultForAbsentField(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("animated", Descriptor{
		Category: CategoryLayout,
		Props: []PropMapping{
			{Source: "fill_mode", Target: "fillMode", Default: "forwards"},
			{Source: "style.duration", Target: "duration"},
		},
		Component: staticResolver(stubComponent{name: "animated"}, nil),
	}))

	props := r.TransformProps("animated", []byte(`{"style":{"duration":300}}`))
	assert.Equal(t, "forwards", props["fillMode"])
	assert.Equal(t, float64(300), props["duration"], "dotted sources read nested fields")
}

func TestResolveComponent(t *testing.T) {
	ctx := context.Background()

	t.Run("Primary", func(t *testing.T) {
		r := NewDefaultRegistry(stubLoader{})
		c, ok := r.ResolveComponent(ctx, "hero")
		require.True(t, ok)
		assert.Equal(t, "hero", c.Name())
	})

	t.Run("FallbackWhenPrimaryFails", func(t *testing.T) {
		r := NewDefaultRegistry(stubLoader{missing: map[string]bool{"hero": true}})
		c, ok := r.ResolveComponent(ctx, "hero")
		require.True(t, ok)
		assert.Equal(t, FallbackComponent, c.Name())
	})

	t.Run("AbsentWhenBothFail", func(t *testing.T) {
		r := NewDefaultRegistry(stubLoader{missing: map[string]bool{"hero": true, FallbackComponent: true}})
		c, ok := r.ResolveComponent(ctx, "hero")
		assert.False(t, ok)
		assert.Nil(t, c)
	})

	t.Run("AbsentWithoutFallback", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("broken", Descriptor{
			Component: staticResolver(nil, errors.New("load failed")),
		}))
		_, ok := r.ResolveComponent(ctx, "broken")
		assert.False(t, ok)
	})

	t.Run("NilComponentCountsAsFailure", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("nil", Descriptor{
			Component: staticResolver(nil, nil),
			Fallback:  staticResolver(stubComponent{name: "fb"}, nil),
		}))
		c, ok := r.ResolveComponent(ctx, "nil")
		require.True(t, ok)
		assert.Equal(t, "fb", c.Name())
	})

	t.Run("UnknownType", func(t *testing.T) {
		r := NewDefaultRegistry(stubLoader{})
		_, ok := r.ResolveComponent(ctx, "nope")
		assert.False(t, ok)
	})

	t.Run("FallbackWhenPrimaryPanics", func(t *testing.T) {
		r := NewRegistry()
		require.NoError(t, r.Register("plugin", Descriptor{
			Component: func(context.Context) (Component, error) { panic("loader bug") },
			Fallback:  staticResolver(stubComponent{name: "fb"}, nil),
		}))
		c, ok := r.ResolveComponent(ctx, "plugin")
		require.True(t, ok)
		assert.Equal(t, "fb", c.Name())
	})

	t.Run("AbsentWhenBothPanic", func(t *testing.T) {
		r := NewRegistry()
		boom := func(context.Context) (Component, error) { panic("loader bug") }
		require.NoError(t, r.Register("plugin", Descriptor{Component: boom, Fallback: boom}))
		c, ok := r.ResolveComponent(ctx, "plugin")
		assert.False(t, ok)
		assert.Nil(t, c)
	})
}

func TestPanickingHooksAreContained(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("widget", Descriptor{
		Props: []PropMapping{
			{Source: "size", Target: "size", Default: "medium", Transform: func(any) any { panic("bad transform") }},
			{Source: "label", Target: "label"},
		},
		Validate:  func(gjson.Result) bool { panic("bad validator") },
		Component: staticResolver(stubComponent{name: "widget"}, nil),
	}))

	assert.False(t, r.Validate("widget", []byte(`{"size":"large","label":"Go"}`)))
	assert.Equal(t, Props{"size": "medium", "label": "Go"},
		r.TransformProps("widget", []byte(`{"size":"large","label":"Go"}`)))
}

func TestRegisterAndUnregister(t *testing.T) {
	r := NewRegistry()

	assert.Error(t, r.Register("", Descriptor{Component: staticResolver(stubComponent{}, nil)}))
	assert.Error(t, r.Register("x", Descriptor{}))
	assert.Error(t, r.Register("x", Descriptor{Category: "sideways", Component: staticResolver(stubComponent{}, nil)}))

	require.NoError(t, r.Register("x", Descriptor{Name: "ignored", Component: staticResolver(stubComponent{}, nil)}))
	d, ok := r.Lookup("x")
	require.True(t, ok)
	assert.Equal(t, "x", d.Name)

	assert.True(t, r.Unregister("x"))
	assert.False(t, r.Unregister("x"))
	_, ok = r.Lookup("x")
	assert.False(t, ok)
}

func TestIntrospection(t *testing.T) {
	r := NewDefaultRegistry(stubLoader{})

	media := r.ByCategory(CategoryMedia)
	var names []string
	for _, d := range media {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"gallery", "image", "video"}, names)

	stats := r.Stats()
	assert.Equal(t, 26, stats.TotalBlocks)
	assert.Equal(t, 1, stats.Categories[CategoryForms])
	assert.Equal(t, 1, stats.Categories[CategoryNavigation])
	assert.Equal(t, 0, stats.Categories[CategoryLayout])

	sum := 0
	for _, c := range stats.ByCategory {
		sum += c.Count
		assert.Len(t, c.Blocks, c.Count)
	}
	assert.Equal(t, 26, sum)

	info := mustLookup(t, r, "form").Info()
	assert.Equal(t, []string{"fields"}, info.RequiredFields)
	assert.True(t, info.HasFallback)
	assert.Equal(t, "form", info.Component)
}

func TestRegistryConcurrentUse(t *testing.T) {
	r := NewDefaultRegistry(stubLoader{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("custom-%d", i)
			for range 50 {
				_ = r.Validate("hero", []byte(`{"heading":"x"}`))
				_ = r.TransformProps("gallery", []byte(`{"images":[]}`))
				_, _ = r.ResolveComponent(ctx, "hero")
				_ = r.Register(name, Descriptor{Component: staticResolver(stubComponent{name: name}, nil)})
				_ = r.Names()
				r.Unregister(name)
			}
		}()
	}
	wg.Wait()
	assert.Len(t, r.Names(), 26)
}

func TestStubComponentRenders(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, stubComponent{name: "x"}.Render(&buf, nil))
	assert.Equal(t, "<x>", buf.String())
}

func mustLookup(t *testing.T, r *Registry, name string) Descriptor {
	t.Helper()
	d, ok := r.Lookup(name)
	require.True(t, ok)
	return d
}
