package scope

import (
	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"
)

// Directory is the slice of the credential store the resolver needs: fresh
// user lookups and allocation membership. FindUserByID returns (nil, nil)
// when no such user exists.
type Directory interface {
	FindUserByID(id uint) (*model.User, error)
	BrandIDsForUser(userID uint) ([]uint, error)
}

// Resolver is the single place where "can this caller see/do X" is decided.
// Every handler routes permission decisions through here; nothing else may
// compose its own visibility rule.
type Resolver struct {
	dir Directory
}

// NewResolver creates a resolver backed by the given directory.
func NewResolver(dir Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Identify re-fetches the current user record for a token subject id.
// Token claims are never trusted for authorization: a deleted or role-changed
// user is reflected immediately instead of waiting for token expiry.
func (r *Resolver) Identify(userID uint) (*model.User, error) {
	user, err := r.dir.FindUserByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.IdentityNotFound(userID)
	}
	return user, nil
}

// AuthorizeWrite permits mutating operations (brand create/update/delete,
// allocation changes, user management) to admins only.
func (r *Resolver) AuthorizeWrite(userID uint) (*model.User, error) {
	user, err := r.Identify(userID)
	if err != nil {
		return nil, err
	}
	if user.Role != model.RoleAdmin {
		return nil, apperr.InsufficientRole("admin role required")
	}
	return user, nil
}

// AuthorizeRead computes the scope for listing and aggregate reads.
// Admins see everything, narrowed by caller filters. Regular users see the
// brands allocated to them, always conjoined with caller filters; a brand
// filter outside the allocation set yields an empty scope, not an error.
func (r *Resolver) AuthorizeRead(userID uint, f Filters) (*model.User, Scope, error) {
	user, err := r.Identify(userID)
	if err != nil {
		return nil, Scope{}, err
	}

	sc := Scope{
		BrandID:   f.BrandID,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
	}

	if user.Role == model.RoleAdmin {
		sc.AllBrands = true
		return user, sc, nil
	}

	allocated, err := r.dir.BrandIDsForUser(user.ID)
	if err != nil {
		return nil, Scope{}, err
	}
	sc.BrandIDs = allocated

	if f.BrandID != nil && !containsID(allocated, *f.BrandID) {
		// Degrade to "nothing found" for bulk listing.
		sc.BrandIDs = nil
		sc.BrandID = nil
	}

	return user, sc, nil
}

// AuthorizeBrand computes the scope for operations that name a specific
// brand directly (brand detail, single-brand export). Unlike listing, a
// pointed request to a brand outside the allocation set is rejected with
// AccessDenied rather than silently emptied.
func (r *Resolver) AuthorizeBrand(userID uint, brandID uint, f Filters) (*model.User, Scope, error) {
	user, err := r.Identify(userID)
	if err != nil {
		return nil, Scope{}, err
	}

	sc := Scope{
		BrandID:   &brandID,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
	}

	if user.Role == model.RoleAdmin {
		sc.AllBrands = true
		return user, sc, nil
	}

	allocated, err := r.dir.BrandIDsForUser(user.ID)
	if err != nil {
		return nil, Scope{}, err
	}
	if !containsID(allocated, brandID) {
		return nil, Scope{}, apperr.AccessDenied("brand is not allocated to this user")
	}
	sc.BrandIDs = allocated

	return user, sc, nil
}

// AuthorizeOwn computes the scope over the caller's own allocations,
// regardless of role. Used by the "mine" export target: an admin exporting
// "mine" gets their allocated brands, not everything.
func (r *Resolver) AuthorizeOwn(userID uint, f Filters) (*model.User, Scope, error) {
	user, err := r.Identify(userID)
	if err != nil {
		return nil, Scope{}, err
	}
	allocated, err := r.dir.BrandIDsForUser(user.ID)
	if err != nil {
		return nil, Scope{}, err
	}
	return user, Scope{
		BrandIDs:  allocated,
		StartDate: f.StartDate,
		EndDate:   f.EndDate,
	}, nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
