// Package policy turns sessions into authorization decisions: route
// middleware over gate permissions, and the capability set handed to the
// sale and stock services.
package policy

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/diewo77/go-pos/auth"
	"github.com/diewo77/go-pos/gate"
	"github.com/diewo77/go-pos/httpx"
	"github.com/diewo77/go-pos/internal/services"
	"gorm.io/gorm"
)

// AuthGate is the central authorization point of the HTTP layer.
type AuthGate struct {
	Gate          *gate.Gate[uint]
	CacheResolver *gate.CachedResolver[uint]
}

// NewAuthGate creates a gate resolving profiles from db, cached for cacheTTL.
func NewAuthGate(db *gorm.DB, cacheTTL time.Duration) *AuthGate {
	cached := gate.NewCachedResolver[uint](NewDBProfileResolver(db), cacheTTL)
	return &AuthGate{
		Gate:          gate.New[uint](cached),
		CacheResolver: cached,
	}
}

// Authorize checks that the session user may perform action on resourceType.
func (ag *AuthGate) Authorize(ctx context.Context, action gate.Action, resourceType string) error {
	userID, _ := auth.UserIDFromContext(ctx)
	return ag.Gate.Authorize(ctx, userID, action, resourceType)
}

// Can is a convenience method that returns bool instead of error.
func (ag *AuthGate) Can(ctx context.Context, action gate.Action, resourceType string) bool {
	return ag.Authorize(ctx, action, resourceType) == nil
}

// InvalidateUser clears the cache for a specific user.
func (ag *AuthGate) InvalidateUser(userID uint) {
	ag.CacheResolver.Invalidate(userID)
}

// InvalidateAll clears the entire profile cache.
func (ag *AuthGate) InvalidateAll() {
	ag.CacheResolver.InvalidateAll()
}

// Actor builds the service actor of the session user. The capability set
// mirrors the profile: sale:create grants CapSell, stock:create grants
// CapStock and the superadmin permission grants everything.
func (ag *AuthGate) Actor(ctx context.Context) (services.Actor, error) {
	userID, _ := auth.UserIDFromContext(ctx)
	profile, err := ag.Gate.Profile(ctx, userID)
	if err != nil {
		return services.Actor{}, err
	}
	return ActorFor(userID, profile), nil
}

// ActorFor maps a profile to service capabilities.
func ActorFor(userID uint, profile gate.Profile) services.Actor {
	a := services.Actor{UserID: userID}
	if profile == nil {
		return a
	}
	if profile.HasPermission(gate.PermissionSuperAdmin) {
		a.Caps = services.CapSell | services.CapStock | services.CapElevated
		return a
	}
	if profile.HasPermission(gate.NewPermission("sale", gate.ActionCreate)) {
		a.Caps |= services.CapSell
	}
	if profile.HasPermission(gate.NewPermission("stock", gate.ActionCreate)) {
		a.Caps |= services.CapStock
	}
	return a
}

// RequirePermission returns middleware that checks a profile permission.
func (ag *AuthGate) RequirePermission(resourceType string, action gate.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := ag.Authorize(r.Context(), action, resourceType); err != nil {
				writeDenied(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin returns middleware that only allows the "*:*" permission.
func (ag *AuthGate) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, _ := auth.UserIDFromContext(r.Context())
			profile, err := ag.Gate.Profile(r.Context(), userID)
			if err == nil && !profile.HasPermission(gate.PermissionSuperAdmin) {
				err = gate.ErrForbidden
			}
			if err != nil {
				writeDenied(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter, err error) {
	if errors.Is(err, gate.ErrUnauthenticated) {
		httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
}
