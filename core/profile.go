package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kehilla-app/accounts/docstore"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAdmin  Role = "admin"
	RoleBanned Role = "banned"
)

type AuthStatus string

const (
	AuthStatusActive AuthStatus = "active"
	AuthStatusError  AuthStatus = "error"
)

// UserProfile is the source-of-truth user document, keyed by the phone-derived
// identifier (E.164 digits). The identity-service account with the same id is
// a projection maintained by the reconciliation service.
type UserProfile struct {
	ID       string `json:"id"`
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`
	Resident bool   `json:"resident"`
	Role     Role   `json:"role"`

	AuthStatus    AuthStatus `json:"authStatus,omitempty"`
	AuthError     string     `json:"authError,omitempty"`
	AuthCreatedAt *time.Time `json:"authCreatedAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ProfileID derives the profile document id from a canonical phone number.
func ProfileID(canonicalPhone string) string {
	return PhoneDigits(canonicalPhone)
}

// GetProfile loads a profile by id. Returns found=false when absent.
func (s *Service) GetProfile(ctx context.Context, id string) (*UserProfile, bool, error) {
	raw, ok, err := s.store.Get(ctx, colProfiles, id)
	if err != nil {
		return nil, false, wrapErr(KindInternal, "load profile", err)
	}
	if !ok {
		return nil, false, nil
	}
	var p UserProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, wrapErr(KindInternal, "decode profile", err)
	}
	return &p, true, nil
}

func (s *Service) putProfile(ctx context.Context, p *UserProfile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, colProfiles, p.ID, raw)
}

// patchProfile applies mutate to the stored profile under a transactional
// update. Absent profiles are skipped; the caller treats that as stale data.
func (s *Service) patchProfile(ctx context.Context, id string, mutate func(*UserProfile)) error {
	return s.store.Update(ctx, colProfiles, id, func(current []byte, found bool) ([]byte, error) {
		if !found {
			return nil, docstore.ErrUnchanged
		}
		var p UserProfile
		if err := json.Unmarshal(current, &p); err != nil {
			return nil, err
		}
		mutate(&p)
		p.UpdatedAt = s.now().UTC()
		return json.Marshal(&p)
	})
}
