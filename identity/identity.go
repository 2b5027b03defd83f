// Package identity defines the boundary to the managed auth service holding
// login accounts. Profile documents are the source of truth; accounts here
// are a derived projection kept in sync by the reconciliation service.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("identity: account not found")
	ErrExists   = errors.New("identity: account already exists")
)

// Account is an auth-service user record.
type Account struct {
	ID          string
	Phone       string
	Email       string
	DisplayName string
	Disabled    bool
	CreatedAt   time.Time
}

// NewAccount carries the fields needed to provision an account. Password is
// optional; phone-only users authenticate via OTP.
type NewAccount struct {
	ID          string
	Phone       string
	Email       string
	DisplayName string
	Password    string
	Disabled    bool
}

// Update is a partial account mutation; nil fields are left untouched.
type Update struct {
	Phone       *string
	Email       *string
	DisplayName *string
	Disabled    *bool
}

func (u Update) Empty() bool {
	return u.Phone == nil && u.Email == nil && u.DisplayName == nil && u.Disabled == nil
}

// Provider is the auth-service admin API surface used by the core.
type Provider interface {
	// Get returns the account, or ErrNotFound.
	Get(ctx context.Context, id string) (*Account, error)
	// Create provisions an account; ErrExists when the id is taken.
	Create(ctx context.Context, acct NewAccount) (*Account, error)
	// Update applies a partial mutation; ErrNotFound when absent.
	Update(ctx context.Context, id string, upd Update) error
	// Delete removes the account; ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
}
