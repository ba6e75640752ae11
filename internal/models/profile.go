package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile groups permissions; "admin" and "vendeur" are seeded.
type Profile struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Name        string         `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string         `gorm:"size:500" json:"description,omitempty"`
	IsSystem    bool           `gorm:"default:false" json:"is_system"`

	Permissions []Permission `gorm:"many2many:profile_permissions;" json:"permissions,omitempty"`
	Users       []User       `gorm:"foreignKey:ProfileID" json:"users,omitempty"`
}

// PermissionCodes lists the profile's permissions in "resource:action" form.
func (p *Profile) PermissionCodes() []string {
	codes := make([]string, len(p.Permissions))
	for i, perm := range p.Permissions {
		codes[i] = perm.Code()
	}
	return codes
}

// Permission is one action allowed on a resource type, e.g. "sale:create"
// or "stock:view". "*" stands for any resource or any action.
type Permission struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	ResourceType string         `gorm:"size:50;not null;index:idx_perm_resource_action" json:"resource_type"`
	Action       string         `gorm:"size:50;not null;index:idx_perm_resource_action" json:"action"`
	Description  string         `gorm:"size:200" json:"description,omitempty"`
}

// Code returns the permission in "resource:action" format for matching.
func (p Permission) Code() string {
	return p.ResourceType + ":" + p.Action
}
