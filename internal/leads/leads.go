// Package leads validates contact form submissions and relays them to a form
// endpoint (Formspree) or the CMS lead API.
package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"sitefront/internal/core"
	"sitefront/internal/httpclient"
	"sitefront/internal/observability"
)

const (
	upstreamName = "leads"

	// CMSEndpoint is the CMS path leads are posted to when no form endpoint is configured.
	CMSEndpoint = "/api/leads/"

	DefaultSource      = "Website Contact Form"
	DefaultUnspecified = "Not specified"
	DefaultMessage     = "Thank you! Your message has been sent successfully."

	minNameLength    = 2
	minMessageLength = 10
)

// Poster sends a JSON payload to a CMS path. *cms.Client satisfies it.
type Poster interface {
	Post(ctx context.Context, endpoint string, payload any) (json.RawMessage, error)
}

// Config holds lead submission settings.
type Config struct {
	// Endpoint is an external form endpoint. Empty sends leads to the CMS.
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, e.Fields[name])
	}
	return strings.Join(parts, " ")
}

// Client submits leads.
type Client struct {
	endpoint string
	http     *http.Client
	cms      Poster
	newID    func() string
}

// New creates a lead client. cms is used when cfg.Endpoint is empty.
func New(cfg Config, cms Poster) *Client {
	hc := httpclient.WithTimeout(cfg.Timeout)
	return &Client{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		http:     httpclient.NewHTTPClient(&hc),
		cms:      cms,
		newID:    func() string { return uuid.NewString() },
	}
}

// Target names where submissions go, for startup logging.
func (c *Client) Target() string {
	if c.endpoint != "" {
		return c.endpoint
	}
	return "cms" + CMSEndpoint
}

// Normalize trims the lead and fills in the defaults for optional fields.
func Normalize(lead core.Lead) core.Lead {
	lead.Name = strings.TrimSpace(lead.Name)
	lead.Email = strings.TrimSpace(lead.Email)
	lead.Message = strings.TrimSpace(lead.Message)
	lead.Source = orDefault(strings.TrimSpace(lead.Source), DefaultSource)
	lead.Budget = orDefault(strings.TrimSpace(lead.Budget), DefaultUnspecified)
	lead.Timeline = orDefault(strings.TrimSpace(lead.Timeline), DefaultUnspecified)
	return lead
}

// Validate checks a normalized lead.
func Validate(lead core.Lead) error {
	fields := make(map[string]string)

	switch {
	case lead.Name == "":
		fields["name"] = "Name is required."
	case len([]rune(lead.Name)) < minNameLength:
		fields["name"] = "Name must be at least 2 characters long."
	}

	if lead.Email == "" {
		fields["email"] = "Email is required."
	} else if addr, err := mail.ParseAddress(lead.Email); err != nil || addr.Address != lead.Email {
		fields["email"] = "Please provide a valid email address."
	}

	switch {
	case lead.Message == "":
		fields["message"] = "Message is required."
	case len([]rune(lead.Message)) < minMessageLength:
		fields["message"] = "Message must be at least 10 characters long."
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Submit validates lead and relays it. Invalid leads return an
// invalid_request_error wrapping a *ValidationError; relay failures return an
// upstream_error.
func (c *Client) Submit(ctx context.Context, lead core.Lead) (*core.LeadResult, error) {
	lead = Normalize(lead)
	if err := Validate(lead); err != nil {
		observability.LeadSubmissions.WithLabelValues("invalid").Inc()
		return nil, core.NewInvalidRequestError(err.Error(), err)
	}

	id := c.newID()
	var (
		body json.RawMessage
		err  error
	)
	if c.endpoint != "" {
		body, err = c.postForm(ctx, id, lead)
	} else if c.cms != nil {
		body, err = c.cms.Post(ctx, CMSEndpoint, lead)
	} else {
		err = core.NewUpstreamError(upstreamName, 0, "no lead endpoint configured", nil)
	}
	if err != nil {
		observability.LeadSubmissions.WithLabelValues("error").Inc()
		slog.Warn("lead submission failed", "id", id, "target", c.Target(), "error", err)
		return nil, err
	}

	observability.LeadSubmissions.WithLabelValues("success").Inc()
	slog.Info("lead submitted", "id", id, "source", lead.Source)

	message := gjson.GetBytes(body, "message").String()
	return &core.LeadResult{
		Success: true,
		ID:      id,
		Message: orDefault(message, DefaultMessage),
	}, nil
}

func (c *Client) postForm(ctx context.Context, id string, lead core.Lead) (json.RawMessage, error) {
	payload, err := json.Marshal(lead)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to encode lead", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, core.NewUpstreamError(upstreamName, 0, "invalid lead endpoint", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Submission-ID", id)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, core.NewUpstreamError(upstreamName, 0, "failed to reach lead endpoint", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, core.NewUpstreamError(upstreamName, 0, "failed to read lead endpoint response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		parsed := core.ParseUpstreamError(upstreamName, resp.StatusCode, body)
		return nil, core.NewUpstreamError(upstreamName, resp.StatusCode,
			fmt.Sprintf("form submission failed: %s", parsed.Message), nil)
	}
	return body, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
