package core

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/kehilla-app/accounts/identity"
)

// requireAdmin loads the caller's profile and checks the admin role.
func (s *Service) requireAdmin(ctx context.Context, callerID string) error {
	if callerID == "" {
		return errf(KindPermissionDenied, "authentication required")
	}
	caller, ok, err := s.GetProfile(ctx, callerID)
	if err != nil {
		return err
	}
	if !ok || caller.Role != RoleAdmin {
		return errf(KindPermissionDenied, "admin role required")
	}
	return nil
}

// CreateAdminUser creates an admin profile for the phone. The paired identity
// account is provisioned by the profile-created trigger. Only admins may call
// this.
func (s *Service) CreateAdminUser(ctx context.Context, callerID, phone, name string) (*UserProfile, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	canonical, err := CanonicalPhone(phone, s.opts.CountryCode)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, errf(KindInvalidArgument, "name is required")
	}

	id := ProfileID(canonical)
	if _, ok, err := s.GetProfile(ctx, id); err != nil {
		return nil, err
	} else if ok {
		return nil, errf(KindAlreadyExists, "profile %s already exists", id)
	}

	now := s.now().UTC()
	p := &UserProfile{
		ID:        id,
		Phone:     canonical,
		Name:      strings.TrimSpace(name),
		Resident:  true,
		Role:      RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.putProfile(ctx, p); err != nil {
		return nil, wrapErr(KindInternal, "store profile", err)
	}
	s.log.Info("admin profile created", zap.String("profile_id", id), zap.String("by", callerID))
	return p, nil
}

// CreateAdminUserWithPassword creates an admin whose identity account also
// carries email+password credentials. The account is provisioned directly so
// the credentials exist before the profile write propagates.
func (s *Service) CreateAdminUserWithPassword(ctx context.Context, callerID, email, password, phone, name string) (*UserProfile, error) {
	if err := s.requireAdmin(ctx, callerID); err != nil {
		return nil, err
	}
	if s.identity == nil {
		return nil, errf(KindInternal, "identity provider not configured")
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return nil, errf(KindInvalidArgument, "email is required")
	}
	if len(password) < s.opts.MinPasswordLen {
		return nil, errf(KindInvalidArgument, "password must be at least %d characters", s.opts.MinPasswordLen)
	}
	canonical, err := CanonicalPhone(phone, s.opts.CountryCode)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		return nil, errf(KindInvalidArgument, "name is required")
	}

	id := ProfileID(canonical)
	if _, ok, err := s.GetProfile(ctx, id); err != nil {
		return nil, err
	} else if ok {
		return nil, errf(KindAlreadyExists, "profile %s already exists", id)
	}

	_, err = s.identity.Create(ctx, identity.NewAccount{
		ID:          id,
		Phone:       canonical,
		Email:       email,
		DisplayName: strings.TrimSpace(name),
		Password:    password,
	})
	if errors.Is(err, identity.ErrExists) {
		return nil, errf(KindAlreadyExists, "identity account %s already exists", id)
	}
	if err != nil {
		return nil, wrapErr(KindInternal, "create identity account", err)
	}

	now := s.now().UTC()
	p := &UserProfile{
		ID:            id,
		Phone:         canonical,
		Name:          strings.TrimSpace(name),
		Email:         email,
		Resident:      true,
		Role:          RoleAdmin,
		AuthStatus:    AuthStatusActive,
		AuthCreatedAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.putProfile(ctx, p); err != nil {
		return nil, wrapErr(KindInternal, "store profile", err)
	}
	s.log.Info("admin profile created with password",
		zap.String("profile_id", id), zap.String("by", callerID))
	return p, nil
}
