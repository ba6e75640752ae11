package gate_test

import (
	"context"
	"errors"
	"testing"

	"github.com/diewo77/go-pos/gate"
)

func TestGate_ProfilePermissions(t *testing.T) {
	resolver := gate.NewStaticResolver[uint]()
	resolver.Set(1, gate.NewStaticProfile(1, "vendeur",
		gate.NewPermission("sale", gate.ActionCreate),
		gate.NewPermission("stock", gate.ActionView),
	))
	g := gate.New[uint](resolver)
	ctx := context.Background()

	if !g.Can(ctx, 1, gate.ActionCreate, "sale") {
		t.Error("user with permission should be allowed")
	}
	if err := g.Authorize(ctx, 1, gate.ActionCancel, "sale"); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if err := g.Authorize(ctx, 2, gate.ActionView, "stock"); !errors.Is(err, gate.ErrForbidden) {
		t.Errorf("user without profile: expected ErrForbidden, got %v", err)
	}
	if err := g.Authorize(ctx, 0, gate.ActionView, "stock"); !errors.Is(err, gate.ErrUnauthenticated) {
		t.Errorf("zero user: expected ErrUnauthenticated, got %v", err)
	}
}

func TestGate_SuperAdmin(t *testing.T) {
	resolver := gate.NewStaticResolver[uint]()
	resolver.Set(1, gate.NewStaticProfile(1, "admin", gate.PermissionSuperAdmin))
	g := gate.New[uint](resolver)

	for _, action := range []gate.Action{gate.ActionCancel, gate.ActionRefund, gate.ActionVerify} {
		if !g.Can(context.Background(), 1, action, "sale") {
			t.Errorf("admin should be allowed to %s", action)
		}
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, uint) (gate.Profile, error) {
	return nil, errors.New("db down")
}

func TestGate_ResolverErrorDenies(t *testing.T) {
	g := gate.New[uint](failingResolver{})
	if g.Can(context.Background(), 1, gate.ActionView, "sale") {
		t.Error("resolver failure must deny")
	}
}
