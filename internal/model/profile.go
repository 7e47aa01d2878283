package model

import (
	"time"

	"gorm.io/gorm"
)

// Role decides which parts of the API a profile may use.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Profile is the account record shared with the authentication identity.
type Profile struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	FullName     string    `gorm:"size:128" json:"full_name"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Phone        string    `gorm:"size:32" json:"phone"`
	Role         Role      `gorm:"size:16;index;not null" json:"role"`
	RoomNumber   string    `gorm:"size:32" json:"room_number"`
	StudentID    string    `gorm:"size:64" json:"student_id"`
	PasswordHash []byte    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate assigns an id and defaults the role to student.
func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	if p.Role == "" {
		p.Role = RoleStudent
	}
	return nil
}

// IsAdmin reports whether the profile carries the admin role.
func (p *Profile) IsAdmin() bool {
	return p.Role == RoleAdmin
}
