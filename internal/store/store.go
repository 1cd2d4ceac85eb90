package store

import (
	"context"
	"time"

	"brandreport-service/internal/model"
	"brandreport-service/internal/scope"
)

// EventRow is a login event joined with its brand columns, the shape shared
// by interactive listing and CSV export.
type EventRow struct {
	ID             uint            `json:"id"`
	BrandID        *uint           `json:"brand_id"`
	BrandName      string          `json:"brand_name"`
	MasterOutletID string          `json:"master_outlet_id"`
	StoreID        string          `json:"store_id"`
	ClientStoreID  string          `json:"client_store_id"`
	ManagerName    string          `json:"manager_name"`
	ManagerNumber  string          `json:"manager_number"`
	LoginType      model.LoginType `json:"login_type"`
	LoginDate      time.Time       `json:"-"`
	Date           string          `json:"login_date" gorm:"-"`
}

// Summary holds the aggregate counters for a scoped event set. It is always
// computed from the same filtered row set definition as the listing.
type Summary struct {
	TotalLogins      int64 `json:"total_logins"`
	UniqueStores     int64 `json:"unique_stores"`
	UniqueManagers   int64 `json:"unique_managers"`
	ParentLogins     int64 `json:"parent_logins"`
	TeamMemberLogins int64 `json:"team_member_logins"`
}

// DailySummary is a Summary grouped by login date.
type DailySummary struct {
	LoginDate time.Time `json:"-"`
	Date      string    `json:"login_date" gorm:"-"`
	Summary
}

// BrandSummary is a Summary per visible brand. Brands with no events in
// range keep their row with zero counts rather than being omitted.
type BrandSummary struct {
	BrandID        uint   `json:"brand_id"`
	BrandName      string `json:"brand_name"`
	MasterOutletID string `json:"master_outlet_id"`
	Summary
}

// AllocatedBrand is a brand as seen through an allocation.
type AllocatedBrand struct {
	BrandID        uint      `json:"id"`
	BrandName      string    `json:"name"`
	MasterOutletID string    `json:"master_outlet_id"`
	AllocatedAt    time.Time `json:"allocated_at"`
}

// AllocatedUser is a user as seen through an allocation.
type AllocatedUser struct {
	UserID      uint      `json:"id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	AllocatedAt time.Time `json:"allocated_at"`
}

// Store is the contract against the credential and event store. Finders
// return (nil, nil) when the record does not exist; write methods return
// apperr-coded errors (Conflict for uniqueness violations, NotFound for
// absent targets, StoreUnavailable for store failures).
type Store interface {
	// Users
	FindUserByUsername(username string) (*model.User, error)
	FindUserByID(id uint) (*model.User, error)
	CreateUser(user *model.User) error
	ListUsers() ([]model.User, error)

	// Brands
	FindBrandByID(id uint) (*model.Brand, error)
	AllBrands() ([]model.Brand, error)
	BrandsByIDs(ids []uint) ([]model.Brand, error)
	CreateBrand(brand *model.Brand) error
	UpdateBrand(brand *model.Brand) error
	// DeleteBrand removes the brand and every allocation referencing it in
	// one transaction, so no dangling allocation can grant or deny access.
	DeleteBrand(id uint) error

	// Allocations
	CreateAllocation(alloc *model.Allocation) error
	DeleteAllocation(userID, brandID uint) error
	BrandIDsForUser(userID uint) ([]uint, error)
	BrandsForUser(userID uint) ([]AllocatedBrand, error)
	UsersForBrand(brandID uint) ([]AllocatedUser, error)

	// Events. All four consume the same scope predicate through a single
	// composition routine; they can never disagree for the same scope.
	ListEvents(sc scope.Scope, limit, offset int) ([]EventRow, error)
	Summarize(sc scope.Scope) (*Summary, error)
	DailySummaries(sc scope.Scope) ([]DailySummary, error)
	BrandSummaries(sc scope.Scope) ([]BrandSummary, error)
	// StreamEvents feeds matching rows to fn in bounded batches, in the same
	// order as ListEvents, stopping promptly when ctx is canceled.
	StreamEvents(ctx context.Context, sc scope.Scope, batchSize int, fn func([]EventRow) error) error
}
