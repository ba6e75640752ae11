package db

import (
	"errors"
	"strings"

	"github.com/diewo77/go-pos/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AdminSeed is the optional bootstrap administrator.
type AdminSeed struct {
	Email    string
	Password string
}

// Seed initializes the database with required seed data.
// Should be called after Migrate.
func Seed(db *gorm.DB, admin AdminSeed) error {
	if err := SeedProfiles(db); err != nil {
		return err
	}
	return SeedAdmin(db, admin)
}

// SeedPermissions creates the permissions known to the route table.
func SeedPermissions(db *gorm.DB) error {
	permissions := []struct {
		ResourceType string
		Action       string
		Description  string
	}{
		// Superadmin wildcard
		{"*", "*", "Full system access"},
		// Sales
		{"sale", "*", "All sale actions"},
		{"sale", "create", "Ring up sales"},
		{"sale", "list", "List sales"},
		{"sale", "view", "View a ticket"},
		// Stock
		{"stock", "*", "All stock actions"},
		{"stock", "create", "Record stock entries"},
		{"stock", "view", "View stock levels and movements"},
		// Catalog
		{"product", "*", "All product actions"},
		{"product", "list", "List products"},
		{"product", "view", "View product details"},
	}

	for _, p := range permissions {
		perm := models.Permission{
			ResourceType: p.ResourceType,
			Action:       p.Action,
			Description:  p.Description,
		}
		// FirstOrCreate keeps the seed idempotent
		result := db.Where("resource_type = ? AND action = ?", p.ResourceType, p.Action).
			FirstOrCreate(&perm)
		if result.Error != nil {
			return result.Error
		}
	}
	return nil
}

// SeedProfiles creates the default system profiles with their permissions.
func SeedProfiles(db *gorm.DB) error {
	if err := SeedPermissions(db); err != nil {
		return err
	}

	profiles := []struct {
		Name        string
		Description string
		Permissions []string // "resource:action" format
	}{
		{
			Name:        "admin",
			Description: "Shop manager: catalog, cancellations, manual stock exits, audits",
			Permissions: []string{"*:*"},
		},
		{
			Name:        "vendeur",
			Description: "Cashier: rings up sales and looks up stock",
			Permissions: []string{
				"sale:create",
				"sale:list",
				"sale:view",
				"stock:view",
				"product:list",
				"product:view",
			},
		},
		{
			Name:        "magasinier",
			Description: "Stock keeper: receives goods",
			Permissions: []string{
				"stock:create",
				"stock:view",
				"product:list",
				"product:view",
			},
		},
	}

	for _, p := range profiles {
		var profile models.Profile
		err := db.Where("name = ?", p.Name).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			profile = models.Profile{Name: p.Name, Description: p.Description, IsSystem: true}
			if err := db.Create(&profile).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		var perms []models.Permission
		for _, code := range p.Permissions {
			resource, action, _ := strings.Cut(code, ":")
			var perm models.Permission
			if err := db.Where("resource_type = ? AND action = ?", resource, action).First(&perm).Error; err == nil {
				perms = append(perms, perm)
			}
		}
		if err := db.Model(&profile).Association("Permissions").Replace(perms); err != nil {
			return err
		}
	}
	return nil
}

// SeedAdmin creates the bootstrap administrator when credentials are given
// and no user has that email yet. An existing account is left untouched.
func SeedAdmin(db *gorm.DB, admin AdminSeed) error {
	email := strings.ToLower(strings.TrimSpace(admin.Email))
	if email == "" || admin.Password == "" {
		return nil
	}
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var profile models.Profile
	if err := db.Where("name = ?", "admin").First(&profile).Error; err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(admin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return db.Create(&models.User{
		Email:     email,
		Name:      "Administrateur",
		Password:  string(hash),
		Active:    true,
		ProfileID: &profile.ID,
	}).Error
}
