package core

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"github.com/kehilla-app/accounts/docstore"
)

// OtpRecord is the per-phone verification state, keyed by the digits-only
// phone number. Only a salted digest of the code is stored.
type OtpRecord struct {
	Phone        string     `json:"phone"`
	CodeHash     string     `json:"codeHash"`
	CodeSalt     string     `json:"codeSalt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	Verified     bool       `json:"verified"`
	Attempts     int        `json:"attempts"`
	FirstAttempt time.Time  `json:"firstAttempt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	VerifiedAt   *time.Time `json:"verifiedAt,omitempty"`
}

func (r *OtpRecord) matches(code string) bool {
	return r.CodeHash == hashCode(r.CodeSalt, code)
}

// RequestCode issues a fresh 6-digit code for the phone and sends it by SMS.
// At most OTPQuota issuances are allowed per OTPWindow, anchored at the first
// request in the window; the record is persisted only after the gateway
// accepted the message, so a failed delivery does not burn quota.
func (s *Service) RequestCode(ctx context.Context, phone string) error {
	canonical, err := CanonicalPhone(phone, s.opts.CountryCode)
	if err != nil {
		return err
	}
	digits := PhoneDigits(canonical)
	now := s.now().UTC()

	// Cheap pre-check so an exhausted phone does not cost an SMS. The
	// authoritative check runs again inside the transactional update.
	if rec, ok, err := s.getOTP(ctx, digits); err != nil {
		return wrapErr(KindInternal, "load otp record", err)
	} else if ok && s.quotaExceeded(rec, now) {
		return errf(KindRateLimited, "too many verification requests for %s", canonical)
	}

	code, err := randomCode()
	if err != nil {
		return wrapErr(KindInternal, "generate code", err)
	}
	salt, err := randomSalt()
	if err != nil {
		return wrapErr(KindInternal, "generate salt", err)
	}

	if s.sms == nil {
		return errf(KindInternal, "sms sender not configured")
	}
	if err := s.sms.Send(ctx, digits, fmt.Sprintf(s.opts.SMSTemplate, code)); err != nil {
		s.log.Warn("otp delivery failed", zap.String("phone", canonical), zap.Error(err))
		return wrapErr(KindDeliveryFailed, "send verification code", err)
	}

	err = s.store.Update(ctx, colOTP, digits, func(current []byte, found bool) ([]byte, error) {
		rec := &OtpRecord{}
		if found {
			if err := json.Unmarshal(current, rec); err != nil {
				return nil, err
			}
			if now.Sub(rec.FirstAttempt) >= s.opts.OTPWindow {
				// Stale window: start over as if no record existed.
				found = false
			} else if rec.Attempts >= s.opts.OTPQuota {
				// A concurrent request consumed the quota after our pre-check.
				return nil, errf(KindRateLimited, "too many verification requests for %s", canonical)
			}
		}
		if !found {
			rec = &OtpRecord{Phone: digits, FirstAttempt: now, CreatedAt: now}
		}
		rec.Attempts++
		rec.CodeHash = hashCode(salt, code)
		rec.CodeSalt = salt
		rec.ExpiresAt = now.Add(s.opts.OTPTTL)
		rec.Verified = false
		rec.VerifiedAt = nil
		rec.UpdatedAt = now
		return json.Marshal(rec)
	})
	if err != nil {
		if IsKind(err, KindRateLimited) {
			return err
		}
		return wrapErr(KindInternal, "store otp record", err)
	}

	s.log.Info("otp issued", zap.String("phone", canonical))
	return nil
}

// VerifyCode checks a submitted code. On success the record is marked
// verified and kept, so resubmitting the same correct code before expiry
// succeeds again. The canonical phone number is returned for the caller to
// proceed with profile creation or login.
func (s *Service) VerifyCode(ctx context.Context, phone, code string) (string, error) {
	canonical, err := CanonicalPhone(phone, s.opts.CountryCode)
	if err != nil {
		return "", err
	}
	if code == "" {
		return "", errf(KindInvalidArgument, "verification code is required")
	}
	digits := PhoneDigits(canonical)
	now := s.now().UTC()

	rec, ok, err := s.getOTP(ctx, digits)
	if err != nil {
		return "", wrapErr(KindInternal, "load otp record", err)
	}
	if !ok {
		return "", errf(KindNotFound, "no verification code outstanding for %s", canonical)
	}
	if now.After(rec.ExpiresAt) {
		if err := s.store.Delete(ctx, colOTP, digits); err != nil {
			return "", wrapErr(KindInternal, "delete expired otp record", err)
		}
		return "", errf(KindExpired, "verification code for %s expired", canonical)
	}
	if !rec.matches(code) {
		return "", errf(KindInvalidCode, "verification code mismatch for %s", canonical)
	}

	err = s.store.Update(ctx, colOTP, digits, func(current []byte, found bool) ([]byte, error) {
		if !found {
			return nil, errf(KindNotFound, "no verification code outstanding for %s", canonical)
		}
		var r OtpRecord
		if err := json.Unmarshal(current, &r); err != nil {
			return nil, err
		}
		if r.Verified {
			return nil, docstore.ErrUnchanged
		}
		r.Verified = true
		at := now
		r.VerifiedAt = &at
		r.UpdatedAt = now
		return json.Marshal(&r)
	})
	if err != nil {
		if IsKind(err, KindNotFound) {
			return "", err
		}
		return "", wrapErr(KindInternal, "mark otp record verified", err)
	}

	s.log.Info("otp verified", zap.String("phone", canonical))
	return canonical, nil
}

func (s *Service) getOTP(ctx context.Context, digits string) (*OtpRecord, bool, error) {
	raw, ok, err := s.store.Get(ctx, colOTP, digits)
	if err != nil || !ok {
		return nil, false, err
	}
	var rec OtpRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, err
	}
	return &rec, true, nil
}

func (s *Service) quotaExceeded(rec *OtpRecord, now time.Time) bool {
	return now.Sub(rec.FirstAttempt) < s.opts.OTPWindow && rec.Attempts >= s.opts.OTPQuota
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func randomSalt() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

func hashCode(salt, code string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return hex.EncodeToString(sum[:])
}
