package model

import (
	"time"

	"gorm.io/gorm"
)

// Brand represents a client brand whose store logins are reported on.
// Brand names are unique; the scoping layer assumes at most one brand per name.
type Brand struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	Name           string         `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	MasterOutletID string         `json:"master_outlet_id" gorm:"type:varchar(100);not null"`
	CreatedBy      uint           `json:"created_by" gorm:"index;not null"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Creator User `json:"creator,omitempty" gorm:"foreignKey:CreatedBy"`
}
