// Package core implements the account lifecycle service: OTP issuance and
// verification for phone login, and reconciliation between profile documents
// and the identity provider's accounts.
package core

import (
	"time"

	"go.uber.org/zap"

	"github.com/kehilla-app/accounts/docstore"
	"github.com/kehilla-app/accounts/identity"
	"github.com/kehilla-app/accounts/sms"
)

const (
	colOTP      = "otp_codes"
	colProfiles = "users"
)

// Options holds the tunables of the service. Zero values fall back to the
// defaults applied in NewService.
type Options struct {
	// CountryCode completes local phone numbers ("972" by default).
	CountryCode string
	// OTPWindow is the rolling rate-limit window anchored at the first
	// issuance request for a phone.
	OTPWindow time.Duration
	// OTPQuota is the number of issuance requests allowed per window.
	OTPQuota int
	// OTPTTL is how long an issued code stays verifiable.
	OTPTTL time.Duration
	// SMSTemplate formats the outbound message; it must contain one %s verb
	// for the code.
	SMSTemplate string
	// MinPasswordLen applies to admin creation with password.
	MinPasswordLen int
}

func (o Options) withDefaults() Options {
	if o.CountryCode == "" {
		o.CountryCode = defaultCountryCode
	}
	if o.OTPWindow <= 0 {
		o.OTPWindow = 10 * time.Minute
	}
	if o.OTPQuota <= 0 {
		o.OTPQuota = 3
	}
	if o.OTPTTL <= 0 {
		o.OTPTTL = 10 * time.Minute
	}
	if o.SMSTemplate == "" {
		o.SMSTemplate = "קוד האימות שלך הוא %s"
	}
	if o.MinPasswordLen <= 0 {
		o.MinPasswordLen = 6
	}
	return o
}

// Service is the core account lifecycle service.
type Service struct {
	store    docstore.Store
	identity identity.Provider
	sms      sms.Sender
	log      *zap.Logger
	opts     Options
	now      func() time.Time
}

func NewService(store docstore.Store, opts Options) *Service {
	return &Service{
		store: store,
		opts:  opts.withDefaults(),
		log:   zap.NewNop(),
		now:   time.Now,
	}
}

func (s *Service) WithIdentity(p identity.Provider) *Service {
	s.identity = p
	return s
}

func (s *Service) WithSMSSender(sender sms.Sender) *Service {
	s.sms = sender
	return s
}

func (s *Service) WithLogger(log *zap.Logger) *Service {
	if log != nil {
		s.log = log
	}
	return s
}

// WithClock overrides the time source. Tests use this to drive window and
// expiry behavior.
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) Options() Options { return s.opts }
