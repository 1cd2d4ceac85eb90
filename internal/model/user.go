package model

import (
	"time"

	"gorm.io/gorm"
)

// Role determines what a user may do: admins manage brands, users and
// allocations; regular users only see data for brands allocated to them.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether the role is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// User represents the user model stored in the database
type User struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Username  string         `json:"username" gorm:"type:varchar(100);uniqueIndex;not null"`
	Password  string         `json:"-" gorm:"type:varchar(255);not null"`
	Role      Role           `json:"role" gorm:"type:varchar(20);not null;default:'user'"`
	Email     string         `json:"email,omitempty" gorm:"type:varchar(100)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}
