// Package memoryidentity is an in-process identity provider used by tests
// and dev mode. Passwords are stored as bcrypt hashes.
package memoryidentity

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kehilla-app/accounts/identity"
)

type record struct {
	acct         identity.Account
	passwordHash []byte
}

type Provider struct {
	mu       sync.Mutex
	accounts map[string]*record
}

func New() *Provider {
	return &Provider{accounts: make(map[string]*record)}
}

func (p *Provider) Get(ctx context.Context, id string) (*identity.Account, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.accounts[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	acct := rec.acct
	return &acct, nil
}

func (p *Provider) Create(ctx context.Context, na identity.NewAccount) (*identity.Account, error) {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[na.ID]; ok {
		return nil, identity.ErrExists
	}
	rec := &record{acct: identity.Account{
		ID:          na.ID,
		Phone:       na.Phone,
		Email:       na.Email,
		DisplayName: na.DisplayName,
		Disabled:    na.Disabled,
		CreatedAt:   time.Now().UTC(),
	}}
	if na.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(na.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		rec.passwordHash = hash
	}
	p.accounts[na.ID] = rec
	acct := rec.acct
	return &acct, nil
}

func (p *Provider) Update(ctx context.Context, id string, upd identity.Update) error {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.accounts[id]
	if !ok {
		return identity.ErrNotFound
	}
	if upd.Phone != nil {
		rec.acct.Phone = *upd.Phone
	}
	if upd.Email != nil {
		rec.acct.Email = *upd.Email
	}
	if upd.DisplayName != nil {
		rec.acct.DisplayName = *upd.DisplayName
	}
	if upd.Disabled != nil {
		rec.acct.Disabled = *upd.Disabled
	}
	return nil
}

func (p *Provider) Delete(ctx context.Context, id string) error {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.accounts[id]; !ok {
		return identity.ErrNotFound
	}
	delete(p.accounts, id)
	return nil
}

// VerifyPassword reports whether the candidate matches the stored password.
// Used by the dev server's password login stub.
func (p *Provider) VerifyPassword(ctx context.Context, id, password string) bool {
	_ = ctx
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.accounts[id]
	if !ok || len(rec.passwordHash) == 0 {
		return false
	}
	return bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)) == nil
}
