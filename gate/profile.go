package gate

import (
	"context"
	"slices"
)

// Profile represents a role with a set of permissions.
type Profile interface {
	ID() uint
	Name() string
	HasPermission(permission Permission) bool
	Permissions() []Permission
}

// ProfileResolver resolves a user to their profile. A nil profile with a
// nil error means the user has none.
type ProfileResolver[U any] interface {
	Resolve(ctx context.Context, user U) (Profile, error)
}

// StaticProfile is an immutable in-memory profile. Resolvers backed by a
// store snapshot their rows into one, so a cached profile shares no state
// with the store.
type StaticProfile struct {
	id    uint
	name  string
	exact map[Permission]struct{}
	// grants ending in ":*", checked only when the exact lookup misses
	wild   []Permission
	sorted []Permission
}

// NewStaticProfile creates a profile with the given permissions. Duplicates
// are dropped.
func NewStaticProfile(id uint, name string, permissions ...Permission) *StaticProfile {
	p := &StaticProfile{
		id:    id,
		name:  name,
		exact: make(map[Permission]struct{}, len(permissions)),
	}
	for _, perm := range permissions {
		if _, dup := p.exact[perm]; dup {
			continue
		}
		p.exact[perm] = struct{}{}
		p.sorted = append(p.sorted, perm)
		if _, act := perm.Parse(); act == WildcardAll {
			p.wild = append(p.wild, perm)
		}
	}
	slices.Sort(p.sorted)
	return p
}

func (p *StaticProfile) ID() uint     { return p.id }
func (p *StaticProfile) Name() string { return p.name }

// Permissions returns the permissions in code order.
func (p *StaticProfile) Permissions() []Permission {
	return slices.Clone(p.sorted)
}

// HasPermission checks if the profile has the requested permission.
// Supports wildcard matching.
func (p *StaticProfile) HasPermission(requested Permission) bool {
	if _, ok := p.exact[requested]; ok {
		return true
	}
	for _, perm := range p.wild {
		if perm.Matches(requested) {
			return true
		}
	}
	return false
}

// StaticResolver is a simple in-memory resolver for testing.
type StaticResolver[U comparable] struct {
	profiles map[U]Profile
}

func NewStaticResolver[U comparable]() *StaticResolver[U] {
	return &StaticResolver[U]{profiles: make(map[U]Profile)}
}

// Set assigns a profile to a user.
func (r *StaticResolver[U]) Set(user U, profile Profile) {
	r.profiles[user] = profile
}

func (r *StaticResolver[U]) Resolve(_ context.Context, user U) (Profile, error) {
	return r.profiles[user], nil
}
