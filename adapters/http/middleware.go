package accountshttp

import (
	"context"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const callerIDKey ctxKey = iota

// CallerID returns the authenticated profile id set by requireAuth.
func CallerID(ctx context.Context) string {
	id, _ := ctx.Value(callerIDKey).(string)
	return id
}

// requireAuth validates the bearer token (HS256) and stores its subject,
// the caller's profile id, in the request context. Role checks happen in
// the core against the stored profile, not against token claims.
func (s *Service) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.jwtSecret) == 0 {
			unauthorized(w, "authentication not configured")
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			unauthorized(w, "missing bearer token")
			return
		}
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

		tok, err := jwt.Parse(raw, func(t *jwt.Token) (any, error) {
			return s.jwtSecret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !tok.Valid {
			unauthorized(w, "invalid token")
			return
		}
		sub, err := tok.Claims.GetSubject()
		if err != nil || sub == "" {
			unauthorized(w, "token missing subject")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerIDKey, sub)))
	})
}
