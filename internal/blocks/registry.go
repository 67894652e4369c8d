package blocks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/tidwall/gjson"
)

// Registry holds block descriptors by name. It is populated at startup and
// read concurrently afterwards; Register and Unregister remain available for
// extensions.
type Registry struct {
	mu          sync.RWMutex
	descriptors map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{descriptors: make(map[string]Descriptor)}
}

// Register adds or replaces the descriptor for name.
func (r *Registry) Register(name string, d Descriptor) error {
	if name == "" {
		return errors.New("block name is required")
	}
	if d.Component == nil {
		return fmt.Errorf("block %q: component resolver is required", name)
	}
	if d.Category != "" && !d.Category.Valid() {
		return fmt.Errorf("block %q: unknown category %q", name, d.Category)
	}
	d.Name = name
	d.Props = append([]PropMapping(nil), d.Props...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.descriptors[name] = d
	return nil
}

// Unregister removes name and reports whether it was registered.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.descriptors[name]
	delete(r.descriptors, name)
	return ok
}

// Lookup returns the descriptor for name.
func (r *Registry) Lookup(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.descriptors[name]
	return d, ok
}

// Validate reports whether payload is acceptable for block type name.
// Unknown types, payloads that are not JSON objects and payloads missing a
// required field are invalid. A required field counts as missing when it is
// absent, null or the empty string.
func (r *Registry) Validate(name string, payload []byte) bool {
	d, ok := r.Lookup(name)
	if !ok {
		return false
	}
	if !gjson.ValidBytes(payload) {
		return false
	}
	doc := gjson.ParseBytes(payload)
	if !doc.IsObject() {
		return false
	}

	for _, field := range d.RequiredFields() {
		if isEmpty(doc.Get(field)) {
			return false
		}
	}
	if d.Validate != nil {
		return runValidator(name, d.Validate, doc)
	}
	return true
}

// runValidator treats a panicking validator as a rejection.
func runValidator(name string, validate func(gjson.Result) bool, doc gjson.Result) (valid bool) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("block validator panicked", "block", name, "panic", rec)
			valid = false
		}
	}()
	return validate(doc)
}

// TransformProps maps payload into component props for block type name.
// Mappings that resolve to nothing and carry no default are omitted. The
// result depends only on the inputs.
func (r *Registry) TransformProps(name string, payload []byte) Props {
	props := Props{}

	d, ok := r.Lookup(name)
	if !ok || !gjson.ValidBytes(payload) {
		return props
	}
	doc := gjson.ParseBytes(payload)

	for _, m := range d.Props {
		field := doc.Get(m.Source)
		if !field.Exists() {
			if m.Default != nil {
				props[m.Target] = m.Default
			}
			continue
		}

		value := field.Value()
		if m.Transform != nil {
			value = runTransform(name, m, value)
		}
		if isEmptyValue(value) {
			value = m.Default
		}
		if value != nil {
			props[m.Target] = value
		}
	}
	return props
}

// runTransform applies m.Transform. A panicking transform yields nil, so the
// mapping falls back to its default.
func runTransform(name string, m PropMapping, value any) (out any) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Warn("prop transform panicked", "block", name, "source", m.Source, "panic", rec)
			out = nil
		}
	}()
	return m.Transform(value)
}

// ResolveComponent loads the component for block type name. When the primary
// resolver fails the fallback is tried. Failures are logged, never returned.
func (r *Registry) ResolveComponent(ctx context.Context, name string) (Component, bool) {
	d, ok := r.Lookup(name)
	if !ok {
		return nil, false
	}

	c, err := load(ctx, d.Component)
	if err == nil && c != nil {
		return c, true
	}
	slog.Warn("failed to load block component", "block", name, "error", err)

	if d.Fallback == nil {
		return nil, false
	}
	c, err = load(ctx, d.Fallback)
	if err == nil && c != nil {
		return c, true
	}
	slog.Warn("fallback component also failed", "block", name, "error", err)
	return nil, false
}

// load calls resolve and turns a panic into an error.
func load(ctx context.Context, resolve ComponentResolver) (c Component, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			c, err = nil, fmt.Errorf("component resolver panicked: %v", rec)
		}
	}()
	return resolve(ctx)
}

// Names returns every registered block name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.descriptors))
	for name := range r.descriptors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByCategory returns the descriptors in category c, sorted by name.
func (r *Registry) ByCategory(c Category) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Descriptor
	for _, d := range r.descriptors {
		if d.Category == c {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// CategoryStats summarizes one category.
type CategoryStats struct {
	Category Category `json:"category"`
	Count    int      `json:"count"`
	Blocks   []string `json:"blocks"`
}

// Stats summarizes the registry contents.
type Stats struct {
	TotalBlocks int              `json:"total_blocks"`
	Categories  map[Category]int `json:"categories"`
	ByCategory  []CategoryStats  `json:"blocks_by_category"`
}

// Stats returns block counts per category.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalBlocks: len(r.descriptors),
		Categories:  make(map[Category]int),
	}
	grouped := make(map[Category][]string)
	for _, d := range r.descriptors {
		stats.Categories[d.Category]++
		grouped[d.Category] = append(grouped[d.Category], d.Name)
	}
	for _, c := range Categories() {
		names, ok := grouped[c]
		if !ok {
			continue
		}
		sort.Strings(names)
		stats.ByCategory = append(stats.ByCategory, CategoryStats{Category: c, Count: len(names), Blocks: names})
	}
	return stats
}

func isEmpty(r gjson.Result) bool {
	if !r.Exists() || r.Type == gjson.Null {
		return true
	}
	return r.Type == gjson.String && r.Str == ""
}

func isEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}
