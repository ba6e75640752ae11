// Package gate checks "resource:action" permissions granted to a user
// through a profile. It has no dependency on domain models; callers plug in
// a ProfileResolver.
package gate

import "context"

// Gate is the central authorization checkpoint.
// U is the user/subject type; its zero value means anonymous.
type Gate[U comparable] struct {
	resolver ProfileResolver[U]
}

// New creates a gate resolving profiles with resolver.
func New[U comparable](resolver ProfileResolver[U]) *Gate[U] {
	return &Gate[U]{resolver: resolver}
}

// Authorize returns nil when user's profile grants action on resourceType,
// ErrUnauthenticated for the zero user and ErrForbidden otherwise.
func (g *Gate[U]) Authorize(ctx context.Context, user U, action Action, resourceType string) error {
	profile, err := g.Profile(ctx, user)
	if err != nil {
		return err
	}
	if !profile.HasPermission(NewPermission(resourceType, action)) {
		return ErrForbidden
	}
	return nil
}

// Can is a convenience wrapper returning bool instead of error.
func (g *Gate[U]) Can(ctx context.Context, user U, action Action, resourceType string) bool {
	return g.Authorize(ctx, user, action, resourceType) == nil
}

// Profile resolves the profile of user. A user without profile is forbidden
// everything.
func (g *Gate[U]) Profile(ctx context.Context, user U) (Profile, error) {
	var zero U
	if user == zero {
		return nil, ErrUnauthenticated
	}
	profile, err := g.resolver.Resolve(ctx, user)
	if err != nil || profile == nil {
		return nil, ErrForbidden
	}
	return profile, nil
}
