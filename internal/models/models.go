package models

import (
	"strings"
	"time"
)

// RoleName enumerates account roles inside a family.
type RoleName string

const (
	RoleAdmin  RoleName = "admin"
	RoleParent RoleName = "parent"
	RoleChild  RoleName = "child"
)

// User represents an authenticated account.
type User struct {
	ID          string   `gorm:"type:uuid;primaryKey"`
	Email       string   `gorm:"uniqueIndex"`
	Password    string   `json:"-"`
	DisplayName string   `gorm:"type:varchar(128)"`
	Role        RoleName `gorm:"type:varchar(16)"`
	// FamilyID is the numeric family key the account plans for; 0 if unassigned.
	FamilyID  int64 `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NormalizeRole maps legacy and unknown role strings to a known role.
func NormalizeRole(role RoleName) RoleName {
	switch RoleName(strings.ToLower(strings.TrimSpace(string(role)))) {
	case RoleAdmin, "platform_admin":
		return RoleAdmin
	case RoleChild, "kid":
		return RoleChild
	default:
		return RoleParent
	}
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return NormalizeRole(u.Role) == RoleAdmin
}
