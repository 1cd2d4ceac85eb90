package model

import (
	"time"
)

// Allocation represents the association between users and brands.
// It is the sole source of truth for non-admin visibility: a regular user
// sees exactly the brands allocated to them, nothing else.
// A given (user, brand) pair appears at most once, enforced by the
// composite unique index rather than an application-level check.
type Allocation struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	UserID      uint      `json:"user_id" gorm:"uniqueIndex:idx_allocations_user_brand;not null"`
	BrandID     uint      `json:"brand_id" gorm:"uniqueIndex:idx_allocations_user_brand;index;not null"`
	AllocatedBy uint      `json:"allocated_by" gorm:"not null"`
	CreatedAt   time.Time `json:"created_at"`

	// Relations
	User  User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Brand Brand `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
}
