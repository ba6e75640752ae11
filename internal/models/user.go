package models

import (
	"time"

	"gorm.io/gorm"
)

// User is a cashier or an administrator of the shop.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string         `gorm:"size:255" json:"name,omitempty"`
	Password  string         `gorm:"size:255;not null" json:"-"` // bcrypt hash
	Active    bool           `gorm:"not null;default:true" json:"active"`
	// ProfileID links the user to the profile that grants its capabilities.
	// A user without profile can log in but cannot sell nor move stock.
	ProfileID *uint    `gorm:"index" json:"profile_id,omitempty"`
	Profile   *Profile `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
}

// DisplayName is printed on tickets as the issuing cashier.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}
