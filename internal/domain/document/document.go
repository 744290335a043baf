package document

import (
	"fmt"
	"regexp"
	"sort"
	"time"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Category is the article category dimension of the KB schema.
type Category string

// Known article categories.
const (
	Authentication Category = "authentication"
	Billing        Category = "billing"
	Deployment     Category = "deployment"
	Networking     Category = "networking"
)

// ParseCategory validates and returns a Category.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case Authentication, Billing, Deployment, Networking:
		return Category(s), nil
	default:
		return "", fmt.Errorf("unknown category %q", s)
	}
}

// Document is an immutable KB article record. Identity is the doc_id; every
// other field is an attribute used for filtering or display, never for
// identity comparison.
type Document struct {
	id             string
	title          string
	body           string
	region         string
	productVersion string
	effectiveDate  time.Time
	errorCodes     []string
	category       Category
	deprecated     bool
	topicGroup     string
}

// Attrs holds the metadata attributes of a document under construction.
type Attrs struct {
	Region         string
	ProductVersion string
	EffectiveDate  time.Time
	ErrorCodes     []string
	Category       string
	Deprecated     bool
	TopicGroup     string
}

// New validates and creates a Document.
// ID: ^[a-zA-Z0-9_-]+$, 1-256 chars. Title is required, body may be empty.
// Error codes are deduplicated and stored sorted so the set has one canonical form.
func New(id, title, body string, attrs Attrs) (Document, error) {
	if id == "" {
		return Document{}, fmt.Errorf("doc_id is required")
	}
	if len(id) > 256 {
		return Document{}, fmt.Errorf("doc_id too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Document{}, fmt.Errorf("doc_id must be alphanumeric with underscores and hyphens")
	}
	if title == "" {
		return Document{}, fmt.Errorf("title is required for %s", id)
	}

	cat, err := ParseCategory(attrs.Category)
	if err != nil {
		return Document{}, fmt.Errorf("document %s: %w", id, err)
	}

	return Document{
		id:             id,
		title:          title,
		body:           body,
		region:         attrs.Region,
		productVersion: attrs.ProductVersion,
		effectiveDate:  attrs.EffectiveDate,
		errorCodes:     normalizeCodes(attrs.ErrorCodes),
		category:       cat,
		deprecated:     attrs.Deprecated,
		topicGroup:     attrs.TopicGroup,
	}, nil
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Title returns the article title.
func (d *Document) Title() string { return d.title }

// Body returns the article body.
func (d *Document) Body() string { return d.body }

// Text returns the full searchable text (title + body).
func (d *Document) Text() string { return d.title + " " + d.body }

// Region returns the region attribute.
func (d *Document) Region() string { return d.region }

// ProductVersion returns the product version attribute.
func (d *Document) ProductVersion() string { return d.productVersion }

// EffectiveDate returns the effective date.
func (d *Document) EffectiveDate() time.Time { return d.effectiveDate }

// ErrorCodes returns the sorted error code set.
func (d *Document) ErrorCodes() []string { return d.errorCodes }

// HasErrorCode reports whether the document mentions the given error code.
func (d *Document) HasErrorCode(code string) bool {
	i := sort.SearchStrings(d.errorCodes, code)
	return i < len(d.errorCodes) && d.errorCodes[i] == code
}

// Category returns the article category.
func (d *Document) Category() Category { return d.category }

// Deprecated reports whether the article is deprecated.
func (d *Document) Deprecated() bool { return d.deprecated }

// TopicGroup returns the optional topic group ("" when unset).
func (d *Document) TopicGroup() string { return d.topicGroup }

func normalizeCodes(codes []string) []string {
	if len(codes) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
