package core

import (
	"context"
	"testing"

	memorystore "github.com/kehilla-app/accounts/docstore/memory"
	memoryidentity "github.com/kehilla-app/accounts/identity/memory"
)

func newAdminService(t *testing.T) (*Service, *memoryidentity.Provider, string) {
	t.Helper()
	idp := memoryidentity.New()
	svc := NewService(memorystore.New(), Options{}).WithIdentity(idp)
	admin := seedProfile(t, svc, "0500000001", "Root Admin", RoleAdmin)
	return svc, idp, admin.ID
}

func TestCreateAdminUser(t *testing.T) {
	svc, _, adminID := newAdminService(t)
	ctx := context.Background()

	p, err := svc.CreateAdminUser(ctx, adminID, "0501234567", "New Admin")
	if err != nil {
		t.Fatalf("CreateAdminUser failed: %v", err)
	}
	if p.Role != RoleAdmin {
		t.Fatalf("expected admin role, got %q", p.Role)
	}
	if p.ID != "972501234567" || p.Phone != "+972501234567" {
		t.Fatalf("unexpected identifiers: %+v", p)
	}
}

func TestCreateAdminUserRequiresAdminCaller(t *testing.T) {
	svc, _, _ := newAdminService(t)
	ctx := context.Background()
	user := seedProfile(t, svc, "0509999999", "Plain User", RoleUser)

	cases := []string{"", "unknown-caller", user.ID}
	for _, caller := range cases {
		if _, err := svc.CreateAdminUser(ctx, caller, "0501234567", "X"); !IsKind(err, KindPermissionDenied) {
			t.Fatalf("caller %q: expected permission-denied, got %v", caller, err)
		}
	}
}

func TestCreateAdminUserAlreadyExists(t *testing.T) {
	svc, _, adminID := newAdminService(t)
	ctx := context.Background()

	if _, err := svc.CreateAdminUser(ctx, adminID, "0501234567", "New Admin"); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if _, err := svc.CreateAdminUser(ctx, adminID, "0501234567", "New Admin"); !IsKind(err, KindAlreadyExists) {
		t.Fatalf("expected already-exists, got %v", err)
	}
}

func TestCreateAdminUserWithPassword(t *testing.T) {
	svc, idp, adminID := newAdminService(t)
	ctx := context.Background()

	p, err := svc.CreateAdminUserWithPassword(ctx, adminID, "Admin@Example.com", "s3cret1", "0501234567", "New Admin")
	if err != nil {
		t.Fatalf("CreateAdminUserWithPassword failed: %v", err)
	}
	if p.Email != "admin@example.com" {
		t.Fatalf("email not normalized: %q", p.Email)
	}
	if p.AuthStatus != AuthStatusActive {
		t.Fatalf("expected active auth status, got %q", p.AuthStatus)
	}

	acct, err := idp.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("account missing: %v", err)
	}
	if acct.Email != "admin@example.com" {
		t.Fatalf("account email not mirrored: %q", acct.Email)
	}
	if !idp.VerifyPassword(ctx, p.ID, "s3cret1") {
		t.Fatal("password should verify")
	}
}

func TestCreateAdminUserWithPasswordValidation(t *testing.T) {
	svc, _, adminID := newAdminService(t)
	ctx := context.Background()

	if _, err := svc.CreateAdminUserWithPassword(ctx, adminID, "", "s3cret1", "0501234567", "X"); !IsKind(err, KindInvalidArgument) {
		t.Fatalf("empty email: expected invalid-argument, got %v", err)
	}
	if _, err := svc.CreateAdminUserWithPassword(ctx, adminID, "a@b.com", "short", "0501234567", "X"); !IsKind(err, KindInvalidArgument) {
		t.Fatalf("short password: expected invalid-argument, got %v", err)
	}
	if _, err := svc.CreateAdminUserWithPassword(ctx, adminID, "a@b.com", "s3cret1", "", "X"); !IsKind(err, KindInvalidArgument) {
		t.Fatalf("empty phone: expected invalid-argument, got %v", err)
	}
}
