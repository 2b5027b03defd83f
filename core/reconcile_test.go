package core

import (
	"context"
	"errors"
	"testing"

	memorystore "github.com/kehilla-app/accounts/docstore/memory"
	"github.com/kehilla-app/accounts/identity"
	memoryidentity "github.com/kehilla-app/accounts/identity/memory"
)

func newReconcileService() (*Service, *memoryidentity.Provider) {
	idp := memoryidentity.New()
	svc := NewService(memorystore.New(), Options{}).
		WithIdentity(idp).
		WithClock(newFakeClock().Now)
	return svc, idp
}

func seedProfile(t *testing.T, svc *Service, phone, name string, role Role) *UserProfile {
	t.Helper()
	canonical, err := CanonicalPhone(phone, "972")
	if err != nil {
		t.Fatalf("canonical phone: %v", err)
	}
	now := svc.now().UTC()
	p := &UserProfile{
		ID:        ProfileID(canonical),
		Phone:     canonical,
		Name:      name,
		Resident:  true,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := svc.putProfile(context.Background(), p); err != nil {
		t.Fatalf("seed profile: %v", err)
	}
	return p
}

func TestProfileCreatedProvisionsAccount(t *testing.T) {
	svc, idp := newReconcileService()
	ctx := context.Background()
	p := seedProfile(t, svc, "0501234567", "Dana", RoleUser)

	if err := svc.ProfileCreated(ctx, p); err != nil {
		t.Fatalf("ProfileCreated failed: %v", err)
	}
	acct, err := idp.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("account missing: %v", err)
	}
	if acct.Disabled {
		t.Fatal("account should not be disabled for role user")
	}
	if acct.DisplayName != "Dana" || acct.Phone != "+972501234567" {
		t.Fatalf("account fields not mirrored: %+v", acct)
	}

	stored, ok, err := svc.GetProfile(ctx, p.ID)
	if err != nil || !ok {
		t.Fatalf("profile missing: ok=%v err=%v", ok, err)
	}
	if stored.AuthStatus != AuthStatusActive || stored.AuthCreatedAt == nil {
		t.Fatalf("profile auth status not recorded: %+v", stored)
	}
}

func TestProfileCreatedIsIdempotent(t *testing.T) {
	svc, idp := newReconcileService()
	ctx := context.Background()
	p := seedProfile(t, svc, "0501234567", "Dana", RoleUser)

	for i := 0; i < 2; i++ {
		if err := svc.ProfileCreated(ctx, p); err != nil {
			t.Fatalf("delivery %d failed: %v", i+1, err)
		}
	}
	if _, err := idp.Get(ctx, p.ID); err != nil {
		t.Fatalf("account missing: %v", err)
	}
}

func TestProfileCreatedBannedIsDisabled(t *testing.T) {
	svc, idp := newReconcileService()
	ctx := context.Background()
	p := seedProfile(t, svc, "0501234567", "Dana", RoleBanned)

	if err := svc.ProfileCreated(ctx, p); err != nil {
		t.Fatalf("ProfileCreated failed: %v", err)
	}
	acct, err := idp.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("account missing: %v", err)
	}
	if !acct.Disabled {
		t.Fatal("banned profile should provision a disabled account")
	}
}

func TestProfileCreatedFailureRecordedOnProfile(t *testing.T) {
	idp := &failingIdentity{}
	svc := NewService(memorystore.New(), Options{}).WithIdentity(idp)
	ctx := context.Background()
	p := seedProfile(t, svc, "0501234567", "Dana", RoleUser)

	err := svc.ProfileCreated(ctx, p)
	if err == nil {
		t.Fatal("expected provisioning failure to propagate")
	}
	stored, ok, gerr := svc.GetProfile(ctx, p.ID)
	if gerr != nil || !ok {
		t.Fatalf("profile missing: ok=%v err=%v", ok, gerr)
	}
	if stored.AuthStatus != AuthStatusError || stored.AuthError == "" {
		t.Fatalf("failure not recorded on profile: %+v", stored)
	}
}

func TestProfileUpdatedBanFlow(t *testing.T) {
	svc, idp := newReconcileService()
	ctx := context.Background()
	p := seedProfile(t, svc, "0501234567", "Dana", RoleUser)
	if err := svc.ProfileCreated(ctx, p); err != nil {
		t.Fatalf("provision: %v", err)
	}

	banned := *p
	banned.Role = RoleBanned
	if err := svc.ProfileUpdated(ctx, p, &banned); err != nil {
		t.Fatalf("ban update failed: %v", err)
	}
	acct, _ := idp.Get(ctx, p.ID)
	if !acct.Disabled {
		t.Fatal("account should be disabled after ban")
	}

	if err := svc.ProfileUpdated(ctx, &banned, p); err != nil {
		t.Fatalf("unban update failed: %v", err)
	}
	acct, _ = idp.Get(ctx, p.ID)
	if acct.Disabled {
		t.Fatal("account should be enabled after unban")
	}
}

func TestProfileUpdatedNoRelevantChangeIsNoop(t *testing.T) {
	svc, _ := newReconcileService()
	ctx := context.Background()
	p := seedProfile(t, svc, "0501234567", "Dana", RoleUser)

	// Identity lookup would fail for a missing account, so a true no-op must
	// never touch the provider.
	changed := *p
	changed.Resident = false
	if err := svc.ProfileUpdated(ctx, p, &changed); err != nil {
		t.Fatalf("irrelevant change should be a no-op: %v", err)
	}
}

func TestProfileUpdatedNameChange(t *testing.T) {
	svc, idp := newReconcileService()
	ctx := context.Background()
	p := seedProfile(t, svc, "0501234567", "Dana", RoleUser)
	if err := svc.ProfileCreated(ctx, p); err != nil {
		t.Fatalf("provision: %v", err)
	}

	renamed := *p
	renamed.Name = "Dana Levi"
	if err := svc.ProfileUpdated(ctx, p, &renamed); err != nil {
		t.Fatalf("rename failed: %v", err)
	}
	acct, _ := idp.Get(ctx, p.ID)
	if acct.DisplayName != "Dana Levi" {
		t.Fatalf("display name not mirrored: %q", acct.DisplayName)
	}
}

func TestProfileDeletedIdempotent(t *testing.T) {
	svc, idp := newReconcileService()
	ctx := context.Background()
	p := seedProfile(t, svc, "0501234567", "Dana", RoleUser)
	if err := svc.ProfileCreated(ctx, p); err != nil {
		t.Fatalf("provision: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.ProfileDeleted(ctx, p); err != nil {
			t.Fatalf("delete %d failed: %v", i+1, err)
		}
	}
	if _, err := idp.Get(ctx, p.ID); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("account should be gone, got %v", err)
	}
}

func TestReconcileAllRepairsDrift(t *testing.T) {
	svc, idp := newReconcileService()
	ctx := context.Background()

	// One profile with no account at all.
	missing := seedProfile(t, svc, "0501111111", "Avi", RoleUser)
	// One profile whose account has a stale display name.
	stale := seedProfile(t, svc, "0502222222", "Noa", RoleUser)
	if _, err := idp.Create(ctx, identity.NewAccount{
		ID: stale.ID, Phone: stale.Phone, DisplayName: "Old Name",
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	// One profile already in sync.
	synced := seedProfile(t, svc, "0503333333", "Gil", RoleUser)
	if _, err := idp.Create(ctx, identity.NewAccount{
		ID: synced.ID, Phone: synced.Phone, DisplayName: synced.Name,
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	sum, err := svc.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("ReconcileAll failed: %v", err)
	}
	if sum.Profiles != 3 || sum.Synced != 2 || sum.Errors != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}

	if _, err := idp.Get(ctx, missing.ID); err != nil {
		t.Fatalf("missing account was not created: %v", err)
	}
	acct, _ := idp.Get(ctx, stale.ID)
	if acct.DisplayName != "Noa" {
		t.Fatalf("stale name not repaired: %q", acct.DisplayName)
	}
}

func TestReconcileAllIsolatesFailures(t *testing.T) {
	idp := memoryidentity.New()
	flaky := &flakyIdentity{Provider: idp, failID: "972502222222"}
	svc := NewService(memorystore.New(), Options{}).WithIdentity(flaky)
	ctx := context.Background()

	seedProfile(t, svc, "0501111111", "Avi", RoleUser)
	seedProfile(t, svc, "0502222222", "Noa", RoleUser)
	seedProfile(t, svc, "0503333333", "Gil", RoleUser)

	sum, err := svc.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("sweep should not abort: %v", err)
	}
	if sum.Errors != 1 {
		t.Fatalf("expected exactly one error, got %+v", sum)
	}
	if sum.Synced != 2 {
		t.Fatalf("other profiles should still sync, got %+v", sum)
	}
}

// failingIdentity rejects every call.
type failingIdentity struct{}

func (failingIdentity) Get(context.Context, string) (*identity.Account, error) {
	return nil, identity.ErrNotFound
}
func (failingIdentity) Create(context.Context, identity.NewAccount) (*identity.Account, error) {
	return nil, errors.New("identity service unavailable")
}
func (failingIdentity) Update(context.Context, string, identity.Update) error {
	return errors.New("identity service unavailable")
}
func (failingIdentity) Delete(context.Context, string) error {
	return errors.New("identity service unavailable")
}

// flakyIdentity fails every call for one specific account id.
type flakyIdentity struct {
	*memoryidentity.Provider
	failID string
}

func (f *flakyIdentity) Get(ctx context.Context, id string) (*identity.Account, error) {
	if id == f.failID {
		return nil, errors.New("identity service unavailable")
	}
	return f.Provider.Get(ctx, id)
}
