package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kehilla-app/accounts/changefeed"
	"github.com/kehilla-app/accounts/identity"
)

// ProfileCreated provisions the identity account paired with a new profile.
// It is idempotent: a redelivered creation event for an already-provisioned
// profile is a no-op success. The outcome is written back to the profile's
// authStatus fields; provisioning failures also propagate so the hosting
// consumer can retry.
func (s *Service) ProfileCreated(ctx context.Context, p *UserProfile) error {
	if s.identity == nil {
		return errf(KindInternal, "identity provider not configured")
	}
	if _, err := s.identity.Get(ctx, p.ID); err == nil {
		return nil
	} else if !errors.Is(err, identity.ErrNotFound) {
		return wrapErr(KindInternal, "look up identity account", err)
	}

	_, err := s.identity.Create(ctx, identity.NewAccount{
		ID:          p.ID,
		Phone:       p.Phone,
		Email:       p.Email,
		DisplayName: p.Name,
		Disabled:    p.Role == RoleBanned,
	})
	if errors.Is(err, identity.ErrExists) {
		// Raced with another delivery of the same event.
		err = nil
	}

	now := s.now().UTC()
	if err != nil {
		cause := err
		if perr := s.patchProfile(ctx, p.ID, func(p *UserProfile) {
			p.AuthStatus = AuthStatusError
			p.AuthError = cause.Error()
		}); perr != nil {
			s.log.Error("record provisioning failure on profile",
				zap.String("profile_id", p.ID), zap.Error(perr))
		}
		return wrapErr(KindInternal, "create identity account", cause)
	}

	if err := s.patchProfile(ctx, p.ID, func(p *UserProfile) {
		p.AuthStatus = AuthStatusActive
		p.AuthError = ""
		p.AuthCreatedAt = &now
	}); err != nil {
		return wrapErr(KindInternal, "record provisioning on profile", err)
	}
	s.log.Info("identity account provisioned", zap.String("profile_id", p.ID))
	return nil
}

// ProfileUpdated mirrors relevant profile changes onto the identity account:
// display name, phone, and the banned/unbanned transition. Irrelevant changes
// are a no-op. Failures propagate; nothing is written back to the profile.
func (s *Service) ProfileUpdated(ctx context.Context, old, new *UserProfile) error {
	if s.identity == nil {
		return errf(KindInternal, "identity provider not configured")
	}
	upd := identity.Update{}
	if old.Name != new.Name {
		upd.DisplayName = &new.Name
	}
	if old.Phone != new.Phone {
		upd.Phone = &new.Phone
	}
	if (old.Role == RoleBanned) != (new.Role == RoleBanned) {
		disabled := new.Role == RoleBanned
		upd.Disabled = &disabled
	}
	if upd.Empty() {
		return nil
	}
	if err := s.identity.Update(ctx, new.ID, upd); err != nil {
		return wrapErr(KindInternal, "update identity account", err)
	}
	s.log.Info("identity account updated", zap.String("profile_id", new.ID))
	return nil
}

// ProfileDeleted removes the paired identity account. Deleting an account
// that is already gone is a success.
func (s *Service) ProfileDeleted(ctx context.Context, p *UserProfile) error {
	if s.identity == nil {
		return errf(KindInternal, "identity provider not configured")
	}
	err := s.identity.Delete(ctx, p.ID)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		return wrapErr(KindInternal, "delete identity account", err)
	}
	s.log.Info("identity account deleted", zap.String("profile_id", p.ID))
	return nil
}

// ReconcileSummary is the outcome of one sweep.
type ReconcileSummary struct {
	Profiles int
	Synced   int
	Errors   int
}

// ReconcileAll sweeps every profile and repairs drift against the identity
// provider: missing accounts are created, stale account fields are updated.
// Per-profile failures are counted and logged but do not abort the sweep.
func (s *Service) ReconcileAll(ctx context.Context) (ReconcileSummary, error) {
	if s.identity == nil {
		return ReconcileSummary{}, errf(KindInternal, "identity provider not configured")
	}
	docs, err := s.store.List(ctx, colProfiles)
	if err != nil {
		return ReconcileSummary{}, wrapErr(KindInternal, "list profiles", err)
	}

	sum := ReconcileSummary{Profiles: len(docs)}
	for _, doc := range docs {
		synced, err := s.reconcileOne(ctx, doc.ID, doc.Data)
		if err != nil {
			sum.Errors++
			s.log.Error("reconcile profile failed", zap.String("profile_id", doc.ID), zap.Error(err))
			continue
		}
		if synced {
			sum.Synced++
		}
	}
	s.log.Info("reconcile sweep finished",
		zap.Int("profiles", sum.Profiles),
		zap.Int("synced", sum.Synced),
		zap.Int("errors", sum.Errors),
	)
	return sum, nil
}

func (s *Service) reconcileOne(ctx context.Context, id string, raw []byte) (bool, error) {
	var p UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return false, fmt.Errorf("decode profile: %w", err)
	}
	acct, err := s.identity.Get(ctx, id)
	if errors.Is(err, identity.ErrNotFound) {
		return true, s.ProfileCreated(ctx, &p)
	}
	if err != nil {
		return false, fmt.Errorf("look up identity account: %w", err)
	}

	upd := identity.Update{}
	if acct.DisplayName != p.Name {
		upd.DisplayName = &p.Name
	}
	if acct.Phone != p.Phone {
		upd.Phone = &p.Phone
	}
	if disabled := p.Role == RoleBanned; acct.Disabled != disabled {
		upd.Disabled = &disabled
	}
	if upd.Empty() {
		return false, nil
	}
	if err := s.identity.Update(ctx, id, upd); err != nil {
		return false, fmt.Errorf("update identity account: %w", err)
	}
	return true, nil
}

// HandleChange dispatches a profile change event to the matching trigger.
// It implements changefeed.Handler.
func (s *Service) HandleChange(ctx context.Context, ev changefeed.Event) error {
	if ev.Collection != colProfiles {
		return nil
	}
	decode := func(raw []byte) (*UserProfile, error) {
		var p UserProfile
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode profile event %s: %w", ev.ID, err)
		}
		return &p, nil
	}
	switch ev.Op {
	case changefeed.OpCreated:
		p, err := decode(ev.After)
		if err != nil {
			return err
		}
		return s.ProfileCreated(ctx, p)
	case changefeed.OpUpdated:
		old, err := decode(ev.Before)
		if err != nil {
			return err
		}
		new, err := decode(ev.After)
		if err != nil {
			return err
		}
		return s.ProfileUpdated(ctx, old, new)
	case changefeed.OpDeleted:
		p, err := decode(ev.Before)
		if err != nil {
			return err
		}
		return s.ProfileDeleted(ctx, p)
	default:
		return nil
	}
}
