package gate

import (
	"context"
	"sync"
	"time"
)

// CachedResolver wraps a ProfileResolver with TTL-based caching.
// This avoids hitting the database on every authorization check.
type CachedResolver[U comparable] struct {
	inner ProfileResolver[U]
	ttl   time.Duration
	now   func() time.Time
	// observe, when set, is told whether each lookup was served from cache.
	observe func(hit bool)

	mu        sync.RWMutex
	cache     map[U]cacheEntry
	nextSweep time.Time
}

type cacheEntry struct {
	profile   Profile
	expiresAt time.Time
}

// NewCachedResolver wraps a resolver with caching.
func NewCachedResolver[U comparable](inner ProfileResolver[U], ttl time.Duration) *CachedResolver[U] {
	return &CachedResolver[U]{
		inner: inner,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[U]cacheEntry),
	}
}

// Observe registers fn to be called after every lookup with its cache result.
// Call it before the resolver is shared.
func (r *CachedResolver[U]) Observe(fn func(hit bool)) { r.observe = fn }

// SetClock replaces time.Now.
func (r *CachedResolver[U]) SetClock(now func() time.Time) { r.now = now }

// Resolve returns the profile for user, from cache when fresh. Errors are
// not cached; a user without profile is, so a revoked cashier is not looked
// up on every request either.
func (r *CachedResolver[U]) Resolve(ctx context.Context, user U) (Profile, error) {
	now := r.now()
	r.mu.RLock()
	entry, ok := r.cache[user]
	r.mu.RUnlock()
	if ok && now.Before(entry.expiresAt) {
		r.record(true)
		return entry.profile, nil
	}
	r.record(false)

	profile, err := r.inner.Resolve(ctx, user)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.sweepLocked(now)
	r.cache[user] = cacheEntry{profile: profile, expiresAt: now.Add(r.ttl)}
	r.mu.Unlock()
	return profile, nil
}

// sweepLocked drops expired entries at most once per TTL, so sessions of
// users who left do not pin their profiles forever.
func (r *CachedResolver[U]) sweepLocked(now time.Time) {
	if now.Before(r.nextSweep) {
		return
	}
	for u, e := range r.cache {
		if !now.Before(e.expiresAt) {
			delete(r.cache, u)
		}
	}
	r.nextSweep = now.Add(r.ttl)
}

func (r *CachedResolver[U]) record(hit bool) {
	if r.observe != nil {
		r.observe(hit)
	}
}

// Len returns the number of cached users, expired ones included until the
// next sweep.
func (r *CachedResolver[U]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}

// Invalidate removes a user from the cache.
// Call this when a user's profile assignment changes.
func (r *CachedResolver[U]) Invalidate(user U) {
	r.mu.Lock()
	delete(r.cache, user)
	r.mu.Unlock()
}

// InvalidateAll clears the entire cache.
// Call this when profile permissions are modified.
func (r *CachedResolver[U]) InvalidateAll() {
	r.mu.Lock()
	r.cache = make(map[U]cacheEntry)
	r.mu.Unlock()
}
