package scope

import (
	"time"

	"brandreport-service/internal/model"
)

// Scope is the row-level access predicate computed for a caller and
// operation: the authoritative definition of "what this caller may see".
// Listing, aggregation and export all consume the same Scope through one
// filter-composition routine, so their results can never diverge for the
// same caller and filters.
type Scope struct {
	// AllBrands is true for admins: every brand row is visible, including
	// events that carry no brand at all.
	AllBrands bool
	// BrandIDs is the caller's allocated brand set when AllBrands is false.
	BrandIDs []uint
	// BrandID is the caller-supplied brand filter, already validated against
	// the allocation set. A regular user can only narrow scope with it,
	// never broaden it.
	BrandID   *uint
	StartDate *time.Time
	EndDate   *time.Time
}

// Filters are the caller-supplied narrowing parameters of a read or export.
type Filters struct {
	BrandID   *uint
	StartDate *time.Time
	EndDate   *time.Time
}

// IsEmpty reports whether the scope can match no rows at all: a non-admin
// with no visible brands, or a brand filter outside the allocation set.
// Listing under an empty scope returns no rows rather than an error.
func (s Scope) IsEmpty() bool {
	return !s.AllBrands && len(s.BrandIDs) == 0
}

// VisibleBrandIDs returns the brand ids to enumerate for brand-level views.
// all is true when every brand is visible (admin with no brand filter).
func (s Scope) VisibleBrandIDs() (ids []uint, all bool) {
	if s.AllBrands {
		if s.BrandID != nil {
			return []uint{*s.BrandID}, false
		}
		return nil, true
	}
	if s.BrandID != nil {
		return []uint{*s.BrandID}, false
	}
	return s.BrandIDs, false
}

// AllowsBrand reports whether an event with the given brand id falls inside
// the scope. Events without a brand are visible only under an admin scope
// with no explicit brand filter.
func (s Scope) AllowsBrand(brandID *uint) bool {
	if s.BrandID != nil {
		if brandID == nil || *brandID != *s.BrandID {
			return false
		}
	}
	if s.AllBrands {
		return true
	}
	if brandID == nil {
		return false
	}
	for _, id := range s.BrandIDs {
		if id == *brandID {
			return true
		}
	}
	return false
}

// Matches evaluates the full predicate against a single event. The SQL
// composition in the store must agree with this definition; tests hold the
// two to the same behavior.
func (s Scope) Matches(e *model.LoginEvent) bool {
	if !s.AllowsBrand(e.BrandID) {
		return false
	}
	if s.StartDate != nil && e.LoginDate.Before(*s.StartDate) {
		return false
	}
	if s.EndDate != nil && e.LoginDate.After(*s.EndDate) {
		return false
	}
	return true
}
