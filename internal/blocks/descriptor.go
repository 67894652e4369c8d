// Package blocks maps CMS stream blocks to renderable components.
//
// A Registry holds one Descriptor per block type. A descriptor says which
// payload fields are required, how payload fields become component props and
// how to obtain the component that renders them, with an optional fallback
// when the primary component cannot be loaded.
package blocks

import (
	"context"
	"io"

	"github.com/tidwall/gjson"
)

// Category groups block types for listing and filtering.
type Category string

const (
	CategoryContent     Category = "content"
	CategoryLayout      Category = "layout"
	CategoryInteractive Category = "interactive"
	CategoryMedia       Category = "media"
	CategoryForms       Category = "forms"
	CategoryNavigation  Category = "navigation"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{
		CategoryContent,
		CategoryLayout,
		CategoryInteractive,
		CategoryMedia,
		CategoryForms,
		CategoryNavigation,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Props are the transformed inputs handed to a Component.
type Props map[string]any

// Component renders a block's props.
type Component interface {
	Name() string
	Render(w io.Writer, props Props) error
}

// ComponentResolver produces a component, possibly loading it on demand.
type ComponentResolver func(ctx context.Context) (Component, error)

// ComponentLoader loads components by name.
type ComponentLoader interface {
	Load(ctx context.Context, name string) (Component, error)
}

// ResolverFor returns a resolver that loads name from loader.
func ResolverFor(loader ComponentLoader, name string) ComponentResolver {
	return func(ctx context.Context) (Component, error) {
		return loader.Load(ctx, name)
	}
}

// PropMapping moves one payload field into one component prop.
//
// Source may address nested fields with dots (background_image.url).
// Transform, when set, is applied to the raw value. Default replaces a
// missing, null or empty-string result.
type PropMapping struct {
	Source    string
	Target    string
	Transform func(any) any
	Default   any
	Required  bool
}

// Descriptor describes one block type.
type Descriptor struct {
	Name        string
	DisplayName string
	Description string
	Category    Category
	Icon        string
	// ComponentName is informational; Component does the actual resolution.
	ComponentName string
	Props         []PropMapping

	// Validate runs after the required-field check; both must pass.
	Validate func(payload gjson.Result) bool

	Component ComponentResolver
	Fallback  ComponentResolver
}

// RequiredFields lists the payload fields that must be present and non-empty.
func (d Descriptor) RequiredFields() []string {
	var fields []string
	for _, p := range d.Props {
		if p.Required {
			fields = append(fields, p.Source)
		}
	}
	return fields
}

// OptionalFields lists the mapped payload fields that may be omitted.
func (d Descriptor) OptionalFields() []string {
	var fields []string
	for _, p := range d.Props {
		if !p.Required {
			fields = append(fields, p.Source)
		}
	}
	return fields
}

// Info is the serializable view of a descriptor.
type Info struct {
	Name           string   `json:"name"`
	DisplayName    string   `json:"display_name"`
	Description    string   `json:"description"`
	Category       Category `json:"category"`
	Icon           string   `json:"icon"`
	Component      string   `json:"component,omitempty"`
	RequiredFields []string `json:"required_fields"`
	OptionalFields []string `json:"optional_fields"`
	HasFallback    bool     `json:"has_fallback"`
}

// Info returns the serializable view of d.
func (d Descriptor) Info() Info {
	required := d.RequiredFields()
	if required == nil {
		required = []string{}
	}
	optional := d.OptionalFields()
	if optional == nil {
		optional = []string{}
	}
	return Info{
		Name:           d.Name,
		DisplayName:    d.DisplayName,
		Description:    d.Description,
		Category:       d.Category,
		Icon:           d.Icon,
		Component:      d.ComponentName,
		RequiredFields: required,
		OptionalFields: optional,
		HasFallback:    d.Fallback != nil,
	}
}
