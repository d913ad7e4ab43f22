// Package models contains the persisted domain types and the error model.
package models

import (
	"time"
)

// User is an account. Email is the login identifier.
type User struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Email       string     `gorm:"size:254;uniqueIndex;not null" json:"email"`
	Username    string     `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Password    string     `gorm:"size:128;not null" json:"-"`
	FirstName   string     `gorm:"size:150" json:"first_name"`
	LastName    string     `gorm:"size:150" json:"last_name"`
	BirthDate   *time.Time `gorm:"type:date" json:"birth_date"`
	Avatar      string     `gorm:"size:255" json:"avatar"`
	PhoneNumber string     `gorm:"size:20" json:"phone_number"`
	Address     string     `gorm:"type:text" json:"address"`
	Bio         string     `gorm:"type:text" json:"bio"`
	IsActive    bool       `gorm:"not null" json:"is_active"`
	IsStaff     bool       `gorm:"not null" json:"is_staff"`
	IsSuperuser bool       `gorm:"not null" json:"is_superuser"`
	DateJoined  time.Time  `gorm:"autoCreateTime;index" json:"date_joined"`
	LastLogin   *time.Time `json:"last_login"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HasStaffAccess reports whether the user may act as an administrator.
func (u *User) HasStaffAccess() bool {
	return u != nil && (u.IsStaff || u.IsSuperuser)
}

// AuthToken is the single opaque API key a user holds.
type AuthToken struct {
	Key       string    `gorm:"primaryKey;size:40" json:"key"`
	UserID    uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

func (AuthToken) TableName() string { return "auth_tokens" }

// Session is the database-backed session record used when Redis is unavailable.
type Session struct {
	Key       string    `gorm:"primaryKey;size:64"`
	UserID    uint      `gorm:"index;not null"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
}
