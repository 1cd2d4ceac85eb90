package store

import (
	"context"
	"testing"
	"time"

	"brandreport-service/internal/apperr"
	"brandreport-service/internal/model"
	"brandreport-service/internal/scope"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uintPtr(v uint) *uint { return &v }

func day(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

// seededStore builds two brands with events, one brand-less event, and a
// user allocated to brand 1 only.
func seededStore(t *testing.T) *MemoryStore {
	t.Helper()
	st := NewMemoryStore()

	require.NoError(t, st.CreateUser(&model.User{ID: 1, Username: "admin", Role: model.RoleAdmin}))
	require.NoError(t, st.CreateUser(&model.User{ID: 2, Username: "acme_user", Role: model.RoleUser}))

	require.NoError(t, st.CreateBrand(&model.Brand{ID: 10, Name: "Acme", MasterOutletID: "MO-A", CreatedBy: 1}))
	require.NoError(t, st.CreateBrand(&model.Brand{ID: 11, Name: "Bolt", MasterOutletID: "MO-B", CreatedBy: 1}))

	require.NoError(t, st.CreateAllocation(&model.Allocation{UserID: 2, BrandID: 10, AllocatedBy: 1}))

	add := func(brand *uint, store string, lt model.LoginType, d string) {
		st.AddEvent(&model.LoginEvent{
			BrandID:       brand,
			StoreID:       store,
			ClientStoreID: "C-" + store,
			ManagerName:   "Manager " + store,
			ManagerNumber: "07-" + store,
			LoginType:     lt,
			LoginDate:     day(d),
		})
	}
	add(uintPtr(10), "S1", model.LoginTypeParent, "2026-03-01")
	add(uintPtr(10), "S1", model.LoginTypeTeamMember, "2026-03-02")
	add(uintPtr(10), "S2", model.LoginTypeParent, "2026-03-03")
	add(uintPtr(11), "S3", model.LoginTypeParent, "2026-03-01")
	add(uintPtr(11), "S3", model.LoginTypeTeamMember, "2026-03-05")
	add(nil, "S4", model.LoginTypeParent, "2026-03-04")

	return st
}

func TestListAndSummarizeAgree(t *testing.T) {
	st := seededStore(t)

	scopes := []scope.Scope{
		{AllBrands: true},
		{AllBrands: true, BrandID: uintPtr(10)},
		{BrandIDs: []uint{10}},
		{BrandIDs: []uint{10, 11}, StartDate: timePtr(day("2026-03-02"))},
		{},
	}

	for _, sc := range scopes {
		rows, err := st.ListEvents(sc, 0, 0)
		require.NoError(t, err)
		summary, err := st.Summarize(sc)
		require.NoError(t, err)
		// The listing and the aggregate must describe the same row set.
		assert.Equal(t, int64(len(rows)), summary.TotalLogins)
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestAdminSeesBrandlessEvents(t *testing.T) {
	st := seededStore(t)

	summary, err := st.Summarize(scope.Scope{AllBrands: true})
	require.NoError(t, err)
	assert.Equal(t, int64(6), summary.TotalLogins)

	// A brand filter excludes the brand-less event even for admins.
	summary, err = st.Summarize(scope.Scope{AllBrands: true, BrandID: uintPtr(10)})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalLogins)

	// Non-admin scopes never include brand-less events.
	summary, err = st.Summarize(scope.Scope{BrandIDs: []uint{10, 11}})
	require.NoError(t, err)
	assert.Equal(t, int64(5), summary.TotalLogins)
}

func TestSummaryCounters(t *testing.T) {
	st := seededStore(t)

	summary, err := st.Summarize(scope.Scope{BrandIDs: []uint{10}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), summary.TotalLogins)
	assert.Equal(t, int64(2), summary.UniqueStores)
	assert.Equal(t, int64(2), summary.ParentLogins)
	assert.Equal(t, int64(1), summary.TeamMemberLogins)
}

func TestDailySummariesSumToTotal(t *testing.T) {
	st := seededStore(t)
	sc := scope.Scope{AllBrands: true}

	days, err := st.DailySummaries(sc)
	require.NoError(t, err)
	summary, err := st.Summarize(sc)
	require.NoError(t, err)

	var total int64
	for _, d := range days {
		total += d.TotalLogins
	}
	assert.Equal(t, summary.TotalLogins, total)

	// Newest day first.
	for i := 1; i < len(days); i++ {
		assert.True(t, days[i-1].LoginDate.After(days[i].LoginDate))
	}
}

func TestBrandSummariesKeepZeroRows(t *testing.T) {
	st := seededStore(t)

	// Date range with no events at all: visible brands still appear.
	sc := scope.Scope{
		AllBrands: true,
		StartDate: timePtr(day("2027-01-01")),
	}
	brands, err := st.BrandSummaries(sc)
	require.NoError(t, err)
	require.Len(t, brands, 2)
	for _, b := range brands {
		assert.Equal(t, int64(0), b.TotalLogins)
	}

	// A regular user's brand summary only enumerates allocated brands.
	brands, err = st.BrandSummaries(scope.Scope{BrandIDs: []uint{10}})
	require.NoError(t, err)
	require.Len(t, brands, 1)
	assert.Equal(t, "Acme", brands[0].BrandName)
	assert.Equal(t, int64(3), brands[0].TotalLogins)
}

func TestStreamEventsMatchesList(t *testing.T) {
	st := seededStore(t)
	sc := scope.Scope{AllBrands: true}

	listed, err := st.ListEvents(sc, 0, 0)
	require.NoError(t, err)

	var streamed []EventRow
	err = st.StreamEvents(context.Background(), sc, 2, func(rows []EventRow) error {
		streamed = append(streamed, rows...)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, listed, streamed)
}

func TestCreateAllocationConflict(t *testing.T) {
	st := seededStore(t)

	err := st.CreateAllocation(&model.Allocation{UserID: 2, BrandID: 10, AllocatedBy: 1})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestDeleteBrandCascadesAllocations(t *testing.T) {
	st := seededStore(t)

	require.NoError(t, st.DeleteBrand(10))

	ids, err := st.BrandIDsForUser(2)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// Events survive; they just lose brand visibility for non-admins.
	summary, err := st.Summarize(scope.Scope{AllBrands: true})
	require.NoError(t, err)
	assert.Equal(t, int64(6), summary.TotalLogins)
}

func TestDeleteAllocationNotFound(t *testing.T) {
	st := seededStore(t)

	err := st.DeleteAllocation(2, 11)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
}

func TestCreateUserDuplicateUsername(t *testing.T) {
	st := seededStore(t)

	err := st.CreateUser(&model.User{Username: "admin", Role: model.RoleUser})
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestListEventsPaging(t *testing.T) {
	st := seededStore(t)
	sc := scope.Scope{AllBrands: true}

	page1, err := st.ListEvents(sc, 4, 0)
	require.NoError(t, err)
	page2, err := st.ListEvents(sc, 4, 4)
	require.NoError(t, err)
	assert.Len(t, page1, 4)
	assert.Len(t, page2, 2)

	beyond, err := st.ListEvents(sc, 4, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)
}
