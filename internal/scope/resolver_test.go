package scope

import (
	"testing"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDirectory is a Directory over fixed maps.
type fakeDirectory struct {
	users       map[uint]*model.User
	allocations map[uint][]uint
}

func (d *fakeDirectory) FindUserByID(id uint) (*model.User, error) {
	u, ok := d.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (d *fakeDirectory) BrandIDsForUser(userID uint) ([]uint, error) {
	return d.allocations[userID], nil
}

func newTestResolver() *Resolver {
	return NewResolver(&fakeDirectory{
		users: map[uint]*model.User{
			1: {ID: 1, Username: "admin", Role: model.RoleAdmin},
			2: {ID: 2, Username: "acme_user", Role: model.RoleUser},
			3: {ID: 3, Username: "bare_user", Role: model.RoleUser},
		},
		allocations: map[uint][]uint{
			1: {10},
			2: {10, 11},
		},
	})
}

func TestIdentifyUnknownSubject(t *testing.T) {
	r := newTestResolver()

	// A valid token whose subject was deleted must fail identification.
	_, err := r.Identify(99)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeIdentityNotFound, apperr.CodeOf(err))
}

func TestAuthorizeWrite(t *testing.T) {
	r := newTestResolver()

	admin, err := r.AuthorizeWrite(1)
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, admin.Role)

	_, err = r.AuthorizeWrite(2)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeInsufficientRole, apperr.CodeOf(err))
}

func TestAuthorizeReadAdmin(t *testing.T) {
	r := newTestResolver()

	_, sc, err := r.AuthorizeRead(1, Filters{})
	require.NoError(t, err)
	assert.True(t, sc.AllBrands)
	assert.False(t, sc.IsEmpty())

	// An admin's brand filter narrows but never empties the scope.
	_, sc, err = r.AuthorizeRead(1, Filters{BrandID: uintPtr(999)})
	require.NoError(t, err)
	assert.True(t, sc.AllBrands)
	require.NotNil(t, sc.BrandID)
	assert.Equal(t, uint(999), *sc.BrandID)
}

func TestAuthorizeReadUser(t *testing.T) {
	r := newTestResolver()

	_, sc, err := r.AuthorizeRead(2, Filters{})
	require.NoError(t, err)
	assert.False(t, sc.AllBrands)
	assert.ElementsMatch(t, []uint{10, 11}, sc.BrandIDs)

	// Filter inside the allocation set narrows.
	_, sc, err = r.AuthorizeRead(2, Filters{BrandID: uintPtr(11)})
	require.NoError(t, err)
	require.NotNil(t, sc.BrandID)
	assert.Equal(t, uint(11), *sc.BrandID)

	// Filter outside the allocation set degrades to an empty scope for
	// listing rather than an error, and must not fall back to the full
	// allocation set.
	_, sc, err = r.AuthorizeRead(2, Filters{BrandID: uintPtr(12)})
	require.NoError(t, err)
	assert.True(t, sc.IsEmpty())
	assert.Nil(t, sc.BrandID)
}

func TestAuthorizeReadUserWithoutAllocations(t *testing.T) {
	r := newTestResolver()

	_, sc, err := r.AuthorizeRead(3, Filters{})
	require.NoError(t, err)
	assert.True(t, sc.IsEmpty())
}

func TestAuthorizeBrandPointedDenial(t *testing.T) {
	r := newTestResolver()

	// In set: allowed.
	_, sc, err := r.AuthorizeBrand(2, 10, Filters{})
	require.NoError(t, err)
	require.NotNil(t, sc.BrandID)
	assert.Equal(t, uint(10), *sc.BrandID)

	// Out of set: a pointed request is refused, not silently emptied.
	_, _, err = r.AuthorizeBrand(2, 12, Filters{})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeAccessDenied, apperr.CodeOf(err))

	// Admins may point at any brand.
	_, sc, err = r.AuthorizeBrand(1, 12, Filters{})
	require.NoError(t, err)
	assert.True(t, sc.AllBrands)
}

func TestAuthorizeOwnIgnoresRole(t *testing.T) {
	r := newTestResolver()

	// An admin's "own" scope is their allocations, not everything.
	_, sc, err := r.AuthorizeOwn(1, Filters{})
	require.NoError(t, err)
	assert.False(t, sc.AllBrands)
	assert.Equal(t, []uint{10}, sc.BrandIDs)

	_, sc, err = r.AuthorizeOwn(3, Filters{})
	require.NoError(t, err)
	assert.True(t, sc.IsEmpty())
}
