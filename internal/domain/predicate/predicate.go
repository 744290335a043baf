// Package predicate defines the validated metadata constraint applied to every
// retrieval branch. A predicate is a conjunction of equality/membership
// constraints over a fixed field set; anything outside that set is rejected at
// construction, never silently ignored.
package predicate

import (
	"fmt"
	"time"

	"github.com/clearhelm/kbsearch/internal/domain"
	"github.com/clearhelm/kbsearch/internal/domain/document"
)

// Field names accepted by the predicate schema.
const (
	FieldRegion         = "region"
	FieldProductVersion = "product_version"
	FieldCategory       = "category"
	FieldDeprecated     = "deprecated"
	FieldErrorCodes     = "error_codes"
	FieldEffectiveDate  = "effective_date"
)

// Predicate is a conjunction of metadata constraints. The zero value is the
// empty predicate (no filtering).
type Predicate struct {
	region         *string
	productVersion *string
	category       *document.Category
	deprecated     *bool
	errorCode      *string
	dateFrom       *time.Time
	dateTo         *time.Time
}

// Spec holds the raw constraint values for building a Predicate.
// Nil pointers mean "no constraint on this field".
type Spec struct {
	Region         *string
	ProductVersion *string
	Category       *string
	Deprecated     *bool
	ErrorCode      *string
	DateFrom       *time.Time
	DateTo         *time.Time
}

// New validates and creates a Predicate.
// Empty constraint values and inverted date ranges are rejected with
// domain.ErrInvalidPredicate.
func New(spec Spec) (Predicate, error) {
	var p Predicate

	if spec.Region != nil {
		if *spec.Region == "" {
			return Predicate{}, fmt.Errorf("%w: empty region", domain.ErrInvalidPredicate)
		}
		p.region = spec.Region
	}
	if spec.ProductVersion != nil {
		if *spec.ProductVersion == "" {
			return Predicate{}, fmt.Errorf("%w: empty product_version", domain.ErrInvalidPredicate)
		}
		p.productVersion = spec.ProductVersion
	}
	if spec.Category != nil {
		cat, err := document.ParseCategory(*spec.Category)
		if err != nil {
			return Predicate{}, fmt.Errorf("%w: %w", domain.ErrInvalidPredicate, err)
		}
		p.category = &cat
	}
	if spec.Deprecated != nil {
		p.deprecated = spec.Deprecated
	}
	if spec.ErrorCode != nil {
		if *spec.ErrorCode == "" {
			return Predicate{}, fmt.Errorf("%w: empty error code", domain.ErrInvalidPredicate)
		}
		p.errorCode = spec.ErrorCode
	}
	if spec.DateFrom != nil && spec.DateTo != nil && spec.DateTo.Before(*spec.DateFrom) {
		return Predicate{}, fmt.Errorf("%w: effective_date range end before start", domain.ErrInvalidPredicate)
	}
	p.dateFrom = spec.DateFrom
	p.dateTo = spec.DateTo

	return p, nil
}

// ParseFields builds a Predicate from a loosely-typed field map (the shape a
// language model produces). Unknown field names and mistyped values are
// rejected with domain.ErrInvalidPredicate.
func ParseFields(fields map[string]any) (Predicate, error) {
	spec := Spec{}
	for key, raw := range fields {
		switch key {
		case FieldRegion, FieldProductVersion, FieldCategory, FieldErrorCodes:
			s, ok := raw.(string)
			if !ok {
				return Predicate{}, fmt.Errorf("%w: field %s must be a string", domain.ErrInvalidPredicate, key)
			}
			switch key {
			case FieldRegion:
				spec.Region = &s
			case FieldProductVersion:
				spec.ProductVersion = &s
			case FieldCategory:
				spec.Category = &s
			case FieldErrorCodes:
				spec.ErrorCode = &s
			}
		case FieldDeprecated:
			b, ok := raw.(bool)
			if !ok {
				return Predicate{}, fmt.Errorf("%w: field %s must be a bool", domain.ErrInvalidPredicate, key)
			}
			spec.Deprecated = &b
		default:
			return Predicate{}, fmt.Errorf("%w: unknown field %q", domain.ErrInvalidPredicate, key)
		}
	}
	return New(spec)
}

// IsEmpty reports whether the predicate constrains nothing.
func (p Predicate) IsEmpty() bool {
	return p.region == nil && p.productVersion == nil && p.category == nil &&
		p.deprecated == nil && p.errorCode == nil && p.dateFrom == nil && p.dateTo == nil
}

// Region returns the region constraint, or nil.
func (p Predicate) Region() *string { return p.region }

// ProductVersion returns the product version constraint, or nil.
func (p Predicate) ProductVersion() *string { return p.productVersion }

// Category returns the category constraint, or nil.
func (p Predicate) Category() *document.Category { return p.category }

// Deprecated returns the deprecation constraint, or nil.
func (p Predicate) Deprecated() *bool { return p.deprecated }

// ErrorCode returns the error code membership constraint, or nil.
func (p Predicate) ErrorCode() *string { return p.errorCode }

// DateFrom returns the inclusive lower effective_date bound, or nil.
func (p Predicate) DateFrom() *time.Time { return p.dateFrom }

// DateTo returns the inclusive upper effective_date bound, or nil.
func (p Predicate) DateTo() *time.Time { return p.dateTo }

// Matches evaluates the conjunction against a document's metadata.
func (p Predicate) Matches(doc *document.Document) bool {
	if p.region != nil && doc.Region() != *p.region {
		return false
	}
	if p.productVersion != nil && doc.ProductVersion() != *p.productVersion {
		return false
	}
	if p.category != nil && doc.Category() != *p.category {
		return false
	}
	if p.deprecated != nil && doc.Deprecated() != *p.deprecated {
		return false
	}
	if p.errorCode != nil && !doc.HasErrorCode(*p.errorCode) {
		return false
	}
	if p.dateFrom != nil && doc.EffectiveDate().Before(*p.dateFrom) {
		return false
	}
	if p.dateTo != nil && doc.EffectiveDate().After(*p.dateTo) {
		return false
	}
	return true
}
