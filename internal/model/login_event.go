package model

import (
	"time"
)

// LoginType classifies who logged in at the store.
type LoginType string

const (
	LoginTypeParent     LoginType = "parent"
	LoginTypeTeamMember LoginType = "team_member"
)

// LoginEvent is an immutable record of a store-level login, the unit of data
// being reported on and exported. Events are append-only: the API surface
// never mutates or deletes them.
// BrandID is nullable; events without a brand are only visible to admins.
type LoginEvent struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	StoreID       string    `json:"store_id" gorm:"type:varchar(100);not null"`
	ClientStoreID string    `json:"client_store_id" gorm:"type:varchar(100);not null"`
	ManagerName   string    `json:"manager_name" gorm:"type:varchar(100);not null"`
	ManagerNumber string    `json:"manager_number" gorm:"type:varchar(50);not null"`
	LoginType     LoginType `json:"login_type" gorm:"type:varchar(20);not null"`
	LoginDate     time.Time `json:"login_date" gorm:"type:date;index;not null"`
	BrandID       *uint     `json:"brand_id" gorm:"index"`
	CreatedAt     time.Time `json:"created_at"`

	// Relations
	Brand *Brand `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
}

// DateLayout is the wire format for login dates, a calendar date with no
// time component.
const DateLayout = "2006-01-02"
