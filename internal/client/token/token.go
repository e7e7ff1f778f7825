// Package token inspects access tokens on the client without verifying
// signatures. Validity here is structural: the server remains the
// authority, this package only decides whether a stored token is worth
// presenting at all.
package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"craftdesk.org/internal/auth"
)

// Claims is the subset of token payload the client cares about.
type Claims struct {
	Subject   string
	Username  string
	Role      auth.Role
	ExpiresAt time.Time
}

// Parse decodes a token without signature verification and reports whether
// it is structurally valid: three dot-separated segments, a decodable JSON
// payload, and subject, role and expiry claims all present. Any parse
// failure yields ok=false, never an error.
func Parse(raw string) (Claims, bool) {
	if strings.Count(raw, ".") != 2 {
		return Claims{}, false
	}
	var mc jwt.MapClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &mc); err != nil {
		return Claims{}, false
	}

	sub, _ := mc["sub"].(string)
	role, _ := mc["role"].(string)
	if sub == "" || role == "" {
		return Claims{}, false
	}
	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, false
	}

	c := Claims{
		Subject:   sub,
		Role:      auth.Role(role),
		ExpiresAt: exp.Time,
	}
	if username, ok := mc["username"].(string); ok {
		c.Username = username
	}
	return c, true
}

// Validator answers expiry questions from a stored expiry timestamp and an
// injectable clock.
type Validator struct {
	now func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithClock overrides the time source, used by tests.
func WithClock(fn func() time.Time) Option {
	return func(v *Validator) {
		if fn != nil {
			v.now = fn
		}
	}
}

func NewValidator(opts ...Option) *Validator {
	v := &Validator{now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// IsExpired reports whether the expiry has passed. A zero expiry counts as
// expired immediately.
func (v *Validator) IsExpired(expiry time.Time) bool {
	if expiry.IsZero() {
		return true
	}
	return !v.now().Before(expiry)
}

// IsExpiringSoon reports whether the expiry falls within the threshold from
// now. Already-expired tokens are expiring soon by definition.
func (v *Validator) IsExpiringSoon(expiry time.Time, threshold time.Duration) bool {
	if v.IsExpired(expiry) {
		return true
	}
	return !v.now().Add(threshold).Before(expiry)
}
