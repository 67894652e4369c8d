package blocks

// FallbackComponent is the generic component every default block falls back to.
const FallbackComponent = "fallback"

// sectionProps is the common heading/subheading/list shape.
func sectionProps(listField, listProp string) []PropMapping {
	return []PropMapping{
		{Source: "heading", Target: "title"},
		{Source: "subheading", Target: "subtitle"},
		{Source: listField, Target: listProp, Required: true},
	}
}

// headedProps is the heading/list shape without a subheading.
func headedProps(listField, listProp string) []PropMapping {
	return []PropMapping{
		{Source: "heading", Target: "title"},
		{Source: listField, Target: listProp, Required: true},
	}
}

// DefaultDescriptors returns the site's block types. Component and Fallback
// are left nil; NewDefaultRegistry binds them to a loader.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		// content
		{
			Name:          "hero",
			DisplayName:   "Hero Section",
			Description:   "Large hero section with heading, subheading, CTA and background image",
			Category:      CategoryContent,
			Icon:          "image",
			ComponentName: "hero",
			Props: []PropMapping{
				{Source: "heading", Target: "title", Required: true},
				{Source: "subheading", Target: "subtitle"},
				{Source: "cta_text", Target: "ctaText"},
				{Source: "cta_link", Target: "ctaLink"},
				{Source: "background_image", Target: "backgroundImage", Transform: ImageURL},
			},
		},
		{
			Name:          "features",
			DisplayName:   "Feature Grid",
			Description:   "Grid of features with icons, titles and descriptions",
			Category:      CategoryContent,
			Icon:          "list-ul",
			ComponentName: "feature-grid",
			Props:         sectionProps("features", "features"),
		},
		{
			Name:          "testimonial",
			DisplayName:   "Testimonial",
			Description:   "Customer testimonial with quote, author and company",
			Category:      CategoryContent,
			Icon:          "openquote",
			ComponentName: "testimonial",
			Props: []PropMapping{
				{Source: "quote", Target: "quote", Required: true},
				{Source: "author_name", Target: "authorName", Required: true},
				{Source: "author_title", Target: "authorTitle"},
				{Source: "company", Target: "company"},
				{Source: "author_image", Target: "authorImage", Transform: ImageURL},
			},
		},
		{
			Name:          "cta",
			DisplayName:   "Call to Action",
			Description:   "Call-to-action section with heading, text and button",
			Category:      CategoryInteractive,
			Icon:          "plus-inverse",
			ComponentName: "cta",
			Props: []PropMapping{
				{Source: "heading", Target: "title", Required: true},
				{Source: "text", Target: "subtitle"},
				{Source: "button_text", Target: "primaryCtaText", Required: true},
				{Source: "button_link", Target: "primaryCtaLink", Required: true},
				{Source: "background_color", Target: "backgroundColor", Default: "primary"},
			},
		},
		{
			Name:          "text",
			DisplayName:   "Rich Text",
			Description:   "Rich text content with formatting options",
			Category:      CategoryContent,
			Icon:          "doc-full",
			ComponentName: "text-block",
			Props: []PropMapping{
				{Source: "content", Target: "content", Required: true},
			},
		},
		{
			Name:          "image",
			DisplayName:   "Image",
			Description:   "Image with optional caption and alignment",
			Category:      CategoryMedia,
			Icon:          "image",
			ComponentName: "image-block",
			Props: []PropMapping{
				{Source: "image", Target: "src", Required: true, Transform: ImageURL},
				{Source: "caption", Target: "caption"},
				{Source: "alignment", Target: "alignment", Default: "center"},
			},
		},

		// metrics
		{
			Name:          "statistics",
			DisplayName:   "Statistics",
			Description:   "Display key metrics and statistics",
			Category:      CategoryContent,
			Icon:          "chart-line",
			ComponentName: "statistics-section",
			Props:         headedProps("metrics", "metrics"),
		},

		// services
		{
			Name:          "service_packages",
			DisplayName:   "Service Packages",
			Description:   "Service packages with pricing and features",
			Category:      CategoryContent,
			Icon:          "list-ul",
			ComponentName: "service-packages",
			Props:         sectionProps("packages", "packages"),
		},
		{
			Name:          "ala_carte_services",
			DisplayName:   "A La Carte Services",
			Description:   "Individual services with pricing and categories",
			Category:      CategoryContent,
			Icon:          "list-ul",
			ComponentName: "ala-carte-services",
			Props:         sectionProps("services", "services"),
		},
		{
			Name:          "faq_section",
			DisplayName:   "FAQ Section",
			Description:   "Frequently asked questions with expandable answers",
			Category:      CategoryInteractive,
			Icon:          "help",
			ComponentName: "faq-section",
			Props:         sectionProps("faqs", "faqs"),
		},

		// portfolio
		{
			Name:          "portfolio_projects",
			DisplayName:   "Portfolio Projects",
			Description:   "Showcase of portfolio projects with filters",
			Category:      CategoryContent,
			Icon:          "image",
			ComponentName: "portfolio-projects",
			Props:         sectionProps("projects", "projects"),
		},
		{
			Name:          "case_studies",
			DisplayName:   "Case Studies",
			Description:   "Success stories and case studies",
			Category:      CategoryContent,
			Icon:          "doc-full",
			ComponentName: "case-studies",
			Props:         sectionProps("case_studies", "caseStudies"),
		},
		{
			Name:          "technologies",
			DisplayName:   "Technologies",
			Description:   "Technology stack showcase",
			Category:      CategoryContent,
			Icon:          "cog",
			ComponentName: "technologies",
			Props:         sectionProps("technologies", "technologies"),
		},

		// contact
		{
			Name:          "contact_info",
			DisplayName:   "Contact Information",
			Description:   "Company contact details and information",
			Category:      CategoryContent,
			Icon:          "mail",
			ComponentName: "contact-info",
			Props: []PropMapping{
				{Source: "company_name", Target: "companyName", Required: true},
				{Source: "company_description", Target: "companyDescription"},
				{Source: "phone", Target: "phone"},
				{Source: "email", Target: "email"},
				{Source: "address_line_1", Target: "addressLine1"},
				{Source: "address_line_2", Target: "addressLine2"},
			},
		},
		{
			Name:          "social_links",
			DisplayName:   "Social Media Links",
			Description:   "Social media links and profiles",
			Category:      CategoryNavigation,
			Icon:          "group",
			ComponentName: "social-links",
			Props:         headedProps("social_links", "socialLinks"),
		},

		// advanced
		{
			Name:          "video",
			DisplayName:   "Video",
			Description:   "Video embed with optional poster image",
			Category:      CategoryMedia,
			Icon:          "media",
			ComponentName: "video",
			Props: []PropMapping{
				{Source: "video_url", Target: "videoUrl", Required: true},
				{Source: "title", Target: "title"},
				{Source: "description", Target: "description"},
				{Source: "poster_image", Target: "posterImage", Transform: ImageURL},
				{Source: "autoplay", Target: "autoplay", Default: false},
				{Source: "controls", Target: "controls", Default: true},
			},
		},
		{
			Name:          "gallery",
			DisplayName:   "Image Gallery",
			Description:   "Image gallery with multiple layouts",
			Category:      CategoryMedia,
			Icon:          "image",
			ComponentName: "gallery",
			Props: []PropMapping{
				{Source: "heading", Target: "title"},
				{Source: "images", Target: "images", Required: true, Transform: ImageURLs},
				{Source: "layout", Target: "layout", Default: "grid"},
				{Source: "columns", Target: "columns", Default: "3"},
			},
		},
		{
			Name:          "code",
			DisplayName:   "Code Block",
			Description:   "Code block with syntax highlighting",
			Category:      CategoryContent,
			Icon:          "code",
			ComponentName: "code",
			Props: []PropMapping{
				{Source: "code", Target: "code", Required: true},
				{Source: "language", Target: "language", Default: "javascript"},
				{Source: "show_line_numbers", Target: "showLineNumbers", Default: true},
				{Source: "copy_button", Target: "copyButton", Default: true},
			},
		},
		{
			Name:          "accordion",
			DisplayName:   "Accordion",
			Description:   "Expandable accordion with multiple items",
			Category:      CategoryInteractive,
			Icon:          "list-ol",
			ComponentName: "accordion",
			Props:         headedProps("items", "items"),
		},
		{
			Name:          "tabs",
			DisplayName:   "Tabs",
			Description:   "Tabbed content interface",
			Category:      CategoryInteractive,
			Icon:          "list-ol",
			ComponentName: "tabs",
			Props:         headedProps("tabs", "tabs"),
		},
		{
			Name:          "pricing_table",
			DisplayName:   "Pricing Table",
			Description:   "Pricing table with multiple tiers",
			Category:      CategoryContent,
			Icon:          "list-ul",
			ComponentName: "pricing-table",
			Props:         sectionProps("plans", "plans"),
		},
		{
			Name:          "timeline",
			DisplayName:   "Timeline",
			Description:   "Timeline with events and milestones",
			Category:      CategoryContent,
			Icon:          "list-ol",
			ComponentName: "timeline",
			Props:         headedProps("events", "events"),
		},
		{
			Name:          "comparison_table",
			DisplayName:   "Comparison Table",
			Description:   "Comparison table for features or products",
			Category:      CategoryContent,
			Icon:          "table",
			ComponentName: "comparison-table",
			Props: []PropMapping{
				{Source: "heading", Target: "title"},
				{Source: "columns", Target: "columns", Required: true},
				{Source: "rows", Target: "rows", Required: true},
			},
		},
		{
			Name:          "form",
			DisplayName:   "Form",
			Description:   "Contact or lead generation form",
			Category:      CategoryForms,
			Icon:          "form",
			ComponentName: "form",
			Props: []PropMapping{
				{Source: "heading", Target: "title"},
				{Source: "description", Target: "description"},
				{Source: "fields", Target: "fields", Required: true},
				{Source: "submit_text", Target: "submitText", Default: "Submit"},
				{Source: "success_message", Target: "successMessage", Default: "Thank you for your submission!"},
			},
		},
		{
			Name:          "map",
			DisplayName:   "Map",
			Description:   "Interactive map with location marker",
			Category:      CategoryInteractive,
			Icon:          "site",
			ComponentName: "map",
			Props: []PropMapping{
				{Source: "address", Target: "address", Required: true},
				{Source: "zoom", Target: "zoom", Default: 15},
				{Source: "height", Target: "height", Default: 400},
				{Source: "show_marker", Target: "showMarker", Default: true},
				{Source: "marker_title", Target: "markerTitle"},
			},
		},
		{
			Name:          "progress_bars",
			DisplayName:   "Progress Bars",
			Description:   "Progress bars for skills or completion",
			Category:      CategoryContent,
			Icon:          "chart-line",
			ComponentName: "progress-bars",
			Props:         headedProps("bars", "bars"),
		},
	}
}

// NewDefaultRegistry returns a registry holding DefaultDescriptors, each
// loading its component from loader and falling back to FallbackComponent.
func NewDefaultRegistry(loader ComponentLoader) *Registry {
	r := NewRegistry()
	fallback := ResolverFor(loader, FallbackComponent)
	for _, d := range DefaultDescriptors() {
		d.Component = ResolverFor(loader, d.ComponentName)
		d.Fallback = fallback
		if err := r.Register(d.Name, d); err != nil {
			// DefaultDescriptors is static; a failure here is a programming error.
			panic(err)
		}
	}
	return r
}
