package gate_test

import (
	"context"
	"testing"
	"time"

	"github.com/diewo77/go-pos/gate"
)

func TestCachedResolver_CachesProfile(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	inner.Set(1, gate.NewStaticProfile(1, "vendeur"))
	cached := gate.NewCachedResolver[uint](inner, 5*time.Minute)

	p1, err := cached.Resolve(context.Background(), 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.Name() != "vendeur" {
		t.Errorf("expected 'vendeur', got '%s'", p1.Name())
	}

	// profile changes behind the cache
	inner.Set(1, gate.NewStaticProfile(1, "admin"))
	p2, _ := cached.Resolve(context.Background(), 1)
	if p2.Name() != "vendeur" {
		t.Errorf("expected cached 'vendeur', got '%s'", p2.Name())
	}

	cached.Invalidate(1)
	p3, _ := cached.Resolve(context.Background(), 1)
	if p3.Name() != "admin" {
		t.Errorf("expected 'admin' after invalidation, got '%s'", p3.Name())
	}
}

func TestCachedResolver_InvalidateAll(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	inner.Set(1, gate.NewStaticProfile(1, "vendeur"))
	inner.Set(2, gate.NewStaticProfile(2, "magasinier"))
	cached := gate.NewCachedResolver[uint](inner, 5*time.Minute)

	_, _ = cached.Resolve(context.Background(), 1)
	_, _ = cached.Resolve(context.Background(), 2)
	inner.Set(1, gate.NewStaticProfile(1, "admin"))
	inner.Set(2, gate.NewStaticProfile(2, "admin"))
	cached.InvalidateAll()

	p1, _ := cached.Resolve(context.Background(), 1)
	p2, _ := cached.Resolve(context.Background(), 2)
	if p1.Name() != "admin" || p2.Name() != "admin" {
		t.Error("expected both profiles to be 'admin' after InvalidateAll")
	}
}

func TestCachedResolver_TTLExpiry(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	inner.Set(1, gate.NewStaticProfile(1, "vendeur"))
	cached := gate.NewCachedResolver[uint](inner, 10*time.Millisecond)

	_, _ = cached.Resolve(context.Background(), 1)
	inner.Set(1, gate.NewStaticProfile(1, "admin"))
	time.Sleep(20 * time.Millisecond)

	p, _ := cached.Resolve(context.Background(), 1)
	if p.Name() != "admin" {
		t.Errorf("expected 'admin' after TTL expiry, got '%s'", p.Name())
	}
}

func TestCachedResolver_ObserveAndSweep(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	inner.Set(1, gate.NewStaticProfile(1, "vendeur"))
	inner.Set(2, gate.NewStaticProfile(2, "magasinier"))
	cached := gate.NewCachedResolver[uint](inner, time.Minute)

	now := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	cached.SetClock(func() time.Time { return now })
	var hits, misses int
	cached.Observe(func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	ctx := context.Background()
	_, _ = cached.Resolve(ctx, 1)
	_, _ = cached.Resolve(ctx, 1)
	_, _ = cached.Resolve(ctx, 2)
	if hits != 1 || misses != 2 {
		t.Errorf("expected 1 hit and 2 misses, got %d and %d", hits, misses)
	}
	if cached.Len() != 2 {
		t.Errorf("expected 2 cached users, got %d", cached.Len())
	}

	// user 2 leaves; user 1 keeps working after both entries expired
	now = now.Add(2 * time.Minute)
	_, _ = cached.Resolve(ctx, 1)
	if cached.Len() != 1 {
		t.Errorf("expected the expired entry of user 2 to be swept, got %d entries", cached.Len())
	}
}

func TestCachedResolver_UserWithoutProfileIsCached(t *testing.T) {
	inner := gate.NewStaticResolver[uint]()
	cached := gate.NewCachedResolver[uint](inner, time.Minute)

	p, err := cached.Resolve(context.Background(), 9)
	if err != nil || p != nil {
		t.Fatalf("expected no profile and no error, got %v, %v", p, err)
	}
	inner.Set(9, gate.NewStaticProfile(9, "vendeur"))
	if p, _ := cached.Resolve(context.Background(), 9); p != nil {
		t.Errorf("expected the cached absence until invalidation, got %s", p.Name())
	}
	cached.Invalidate(9)
	if p, _ := cached.Resolve(context.Background(), 9); p == nil || p.Name() != "vendeur" {
		t.Error("expected the new profile after invalidation")
	}
}
