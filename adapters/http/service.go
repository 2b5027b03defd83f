// Package accountshttp mounts the account lifecycle service on net/http.
package accountshttp

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kehilla-app/accounts/core"
	"github.com/kehilla-app/accounts/ratelimit"
)

// Rate limit bucket names.
const (
	RLOtpSend   = "otp_send"
	RLOtpVerify = "otp_verify"
	RLAdmin     = "admin"
)

// DefaultRateLimits returns the built-in per-IP limits. These sit in front of
// the per-phone issuance quota enforced by the core.
func DefaultRateLimits() map[string]ratelimit.Limit {
	return map[string]ratelimit.Limit{
		"default":   {Limit: 120, Window: time.Minute},
		RLOtpSend:   {Limit: 10, Window: 10 * time.Minute},
		RLOtpVerify: {Limit: 30, Window: 10 * time.Minute},
		RLAdmin:     {Limit: 30, Window: time.Hour},
	}
}

// RateLimiter is the minimal limiter surface the adapter needs.
type RateLimiter interface {
	AllowNamed(bucket, key string) (bool, error)
}

type ClientIPFunc func(r *http.Request) string

// Service wraps core.Service with HTTP handlers.
type Service struct {
	svc       *core.Service
	rl        RateLimiter
	clientIP  ClientIPFunc
	jwtSecret []byte
	validate  *validator.Validate
	log       *zap.Logger
}

func NewService(svc *core.Service) *Service {
	return &Service{
		svc:      svc,
		rl:       ratelimit.NewMemory(DefaultRateLimits()),
		clientIP: defaultClientIP,
		validate: validator.New(),
		log:      zap.NewNop(),
	}
}

func (s *Service) WithRateLimiter(rl RateLimiter) *Service { s.rl = rl; return s }
func (s *Service) DisableRateLimiter() *Service            { s.rl = nil; return s }

func (s *Service) WithClientIPFunc(fn ClientIPFunc) *Service {
	if fn != nil {
		s.clientIP = fn
	}
	return s
}

// WithJWTSecret sets the HS256 secret used to authenticate callers of the
// privileged admin endpoints.
func (s *Service) WithJWTSecret(secret []byte) *Service {
	s.jwtSecret = secret
	return s
}

func (s *Service) WithLogger(log *zap.Logger) *Service {
	if log != nil {
		s.log = log
	}
	return s
}

// Router returns the mounted API routes.
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Post("/otp/send", s.handleOtpSendPOST)
	r.Post("/otp/verify", s.handleOtpVerifyPOST)
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/admin/users", s.handleAdminUserPOST)
		r.Post("/admin/users/password", s.handleAdminUserPasswordPOST)
	})
	return r
}

// allow applies the named per-IP rate limit, failing open on limiter errors.
func (s *Service) allow(r *http.Request, bucket string) bool {
	if s.rl == nil {
		return true
	}
	ip := s.clientIP(r)
	if strings.TrimSpace(ip) == "" {
		return true
	}
	ok, err := s.rl.AllowNamed(bucket, "accounts:"+bucket+":ip:"+ip)
	if err != nil {
		return true
	}
	return ok
}

func defaultClientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
