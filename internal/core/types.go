// Package core provides the CMS content types and typed errors shared across sitefront.
package core

import "encoding/json"

// ContentBlock is one CMS stream-field block.
// Value is kept as raw JSON so each block type can address its own fields.
type ContentBlock struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
	ID    string          `json:"id"`
}

// PageMeta is the Wagtail page metadata subset the site uses.
type PageMeta struct {
	Type              string `json:"type,omitempty"`
	Slug              string `json:"slug,omitempty"`
	FirstPublishedAt  string `json:"first_published_at,omitempty"`
	SearchDescription string `json:"search_description,omitempty"`
	HTMLURL           string `json:"html_url,omitempty"`
}

// SEO holds optional search metadata attached to a page.
type SEO struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	OGImage     string `json:"og_image,omitempty"`
}

// Page is a CMS page with its ordered content blocks.
type Page struct {
	ID            int            `json:"id"`
	Title         string         `json:"title"`
	Slug          string         `json:"slug,omitempty"`
	Intro         string         `json:"intro,omitempty"`
	Date          string         `json:"date,omitempty"`
	FeaturedImage json.RawMessage `json:"featured_image,omitempty"`
	Content       []ContentBlock `json:"content,omitempty"`
	Meta          PageMeta       `json:"meta"`
	SEO           *SEO           `json:"seo,omitempty"`
}

// ListMeta is the pagination envelope returned by the pages API.
type ListMeta struct {
	TotalCount int     `json:"total_count"`
	Next       *string `json:"next,omitempty"`
	Previous   *string `json:"previous,omitempty"`
}

// PageList is the pages API response: {items: [...], meta: {...}}.
type PageList struct {
	Items []Page   `json:"items"`
	Meta  ListMeta `json:"meta"`
}

// First returns the first page in the list.
func (l *PageList) First() (*Page, bool) {
	if l == nil || len(l.Items) == 0 {
		return nil, false
	}
	return &l.Items[0], true
}

// Lead is a contact form submission.
type Lead struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Message  string `json:"message"`
	Source   string `json:"source,omitempty"`
	Budget   string `json:"budget,omitempty"`
	Timeline string `json:"timeline,omitempty"`
}

// LeadResult is returned to form handlers after a submission attempt.
type LeadResult struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}
