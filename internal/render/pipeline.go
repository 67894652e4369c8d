// Package render turns a page's ordered CMS blocks into components and props.
package render

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"sitefront/internal/blocks"
	"sitefront/internal/core"
	"sitefront/internal/observability"
)

// DefaultConcurrency bounds how many blocks resolve at once.
const DefaultConcurrency = 8

// Reasons a block is left out of the output.
const (
	ReasonUnknownType = "unknown_type"
	ReasonInvalid     = "invalid"
	ReasonUnresolved  = "unresolved"
)

// Rendered is a block ready for the view layer.
type Rendered struct {
	ID        string           `json:"id"`
	Type      string           `json:"type"`
	Component blocks.Component `json:"-"`
	Props     blocks.Props     `json:"props"`
}

// ComponentName returns the resolved component's name.
func (r Rendered) ComponentName() string {
	if r.Component == nil {
		return ""
	}
	return r.Component.Name()
}

// Skip records a block that was dropped and why.
type Skip struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Result holds the surviving blocks in input order and the dropped ones.
type Result struct {
	Blocks  []Rendered `json:"blocks"`
	Skipped []Skip     `json:"skipped,omitempty"`
}

// Pipeline resolves content blocks through a block registry.
type Pipeline struct {
	registry    *blocks.Registry
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency bounds parallel block resolution. Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New creates a pipeline over registry.
func New(registry *blocks.Registry, opts ...Option) *Pipeline {
	p := &Pipeline{registry: registry, concurrency: DefaultConcurrency}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type outcome struct {
	rendered *Rendered
	skip     *Skip
}

// Resolve maps each block to a component and props. Unknown, invalid and
// unresolvable blocks are dropped and logged; the rest keep their order.
// Resolve never fails.
func (p *Pipeline) Resolve(ctx context.Context, content []core.ContentBlock) Result {
	outcomes := make([]outcome, len(content))

	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, block := range content {
		g.Go(func() error {
			outcomes[i] = p.resolveOne(ctx, block)
			return nil
		})
	}
	_ = g.Wait()

	result := Result{Blocks: make([]Rendered, 0, len(content))}
	for _, o := range outcomes {
		switch {
		case o.rendered != nil:
			result.Blocks = append(result.Blocks, *o.rendered)
			observability.BlocksRendered.WithLabelValues(o.rendered.Type).Inc()
		case o.skip != nil:
			result.Skipped = append(result.Skipped, *o.skip)
			observability.BlocksSkipped.WithLabelValues(o.skip.Reason).Inc()
		}
	}
	return result
}

func (p *Pipeline) resolveOne(ctx context.Context, block core.ContentBlock) (out outcome) {
	skip := func(reason string) outcome {
		slog.Warn("skipping content block", "type", block.Type, "id", block.ID, "reason", reason)
		return outcome{skip: &Skip{ID: block.ID, Type: block.Type, Reason: reason}}
	}
	// Runs on an errgroup goroutine: an unrecovered panic ends the process.
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("content block resolution panicked", "type", block.Type, "id", block.ID, "panic", rec)
			out = skip(ReasonUnresolved)
		}
	}()

	if _, ok := p.registry.Lookup(block.Type); !ok {
		return skip(ReasonUnknownType)
	}
	if !p.registry.Validate(block.Type, block.Value) {
		return skip(ReasonInvalid)
	}
	props := p.registry.TransformProps(block.Type, block.Value)

	component, ok := p.registry.ResolveComponent(ctx, block.Type)
	if !ok {
		return skip(ReasonUnresolved)
	}

	return outcome{rendered: &Rendered{
		ID:        block.ID,
		Type:      block.Type,
		Component: component,
		Props:     props,
	}}
}

// Sections executes each rendered block's component. A component that fails
// while rendering is logged and left out, like any other bad block.
func Sections(result Result) []template.HTML {
	sections := make([]template.HTML, 0, len(result.Blocks))
	for _, b := range result.Blocks {
		var buf bytes.Buffer
		if err := renderSection(&buf, b); err != nil {
			slog.Warn("component failed to render", "type", b.Type, "id", b.ID, "component", b.ComponentName(), "error", err)
			observability.BlocksSkipped.WithLabelValues("render_error").Inc()
			continue
		}
		sections = append(sections, template.HTML(buf.String()))
	}
	return sections
}

func renderSection(buf *bytes.Buffer, b Rendered) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("component panicked: %v", rec)
		}
	}()
	return b.Component.Render(buf, b.Props)
}
