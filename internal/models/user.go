package models

import (
	"time"
)

const (
	RoleDoctor  = "doctor"
	RolePatient = "patient"
)

// User is a clinic account. Role is fixed at registration.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"not null;size:255;uniqueIndex" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	FullName  string    `gorm:"not null;size:255" json:"full_name"`
	Role      string    `gorm:"size:20;not null;index" json:"role"`
	Phone     *string   `gorm:"size:50" json:"phone,omitempty"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) IsDoctor() bool  { return u.Role == RoleDoctor }
func (u *User) IsPatient() bool { return u.Role == RolePatient }

// ValidRole reports whether role is one of the account roles.
func ValidRole(role string) bool {
	return role == RoleDoctor || role == RolePatient
}
