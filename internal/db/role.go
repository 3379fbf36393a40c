package db

import "gorm.io/gorm"

// Role groups permissions and is assigned to users through user_roles.
type Role struct {
	gorm.Model
	Name        string       `gorm:"uniqueIndex;not null" json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	Users       []User       `gorm:"many2many:user_roles;" json:"-"`
}

// Permission names a single gated capability, e.g. "posts:manage".
// It can reach a user through a role or as a direct grant.
type Permission struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `json:"description"`
	Roles       []Role `gorm:"many2many:role_permissions;" json:"roles,omitempty"`
	Users       []User `gorm:"many2many:user_permissions;" json:"-"`
}
