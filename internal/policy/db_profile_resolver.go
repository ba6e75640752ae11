package policy

import (
	"context"
	"errors"

	"github.com/diewo77/go-pos/gate"
	"github.com/diewo77/go-pos/internal/models"
	"gorm.io/gorm"
)

// DBProfileResolver fetches user profiles from the database.
type DBProfileResolver struct {
	DB *gorm.DB
}

func NewDBProfileResolver(db *gorm.DB) *DBProfileResolver {
	return &DBProfileResolver{DB: db}
}

// Resolve loads the user's profile and returns a snapshot of it: later edits
// to the rows only apply once the cache entry is invalidated or expires.
// Inactive or unknown users and users without profile resolve to nil.
// Malformed permission codes are dropped.
func (r *DBProfileResolver) Resolve(ctx context.Context, userID uint) (gate.Profile, error) {
	var user models.User
	err := r.DB.WithContext(ctx).
		Select("id", "active", "profile_id").
		Preload("Profile.Permissions").
		First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !user.Active || user.Profile == nil {
		return nil, nil
	}
	perms := gate.ParsePermissions(user.Profile.PermissionCodes())
	return gate.NewStaticProfile(user.Profile.ID, user.Profile.Name, perms...), nil
}
