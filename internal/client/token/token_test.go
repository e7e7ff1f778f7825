package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftdesk.org/internal/auth"
)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestParse(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)

	raw := mintToken(t, jwt.MapClaims{
		"sub":      "user-1",
		"role":     "designer",
		"username": "dina",
		"exp":      exp.Unix(),
	})

	claims, ok := Parse(raw)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, auth.RoleDesigner, claims.Role)
	assert.Equal(t, "dina", claims.Username)
	assert.True(t, claims.ExpiresAt.Equal(exp))
}

func TestParseWithoutUsername(t *testing.T) {
	raw := mintToken(t, jwt.MapClaims{
		"sub":  "user-1",
		"role": "viewer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	claims, ok := Parse(raw)
	require.True(t, ok)
	assert.Empty(t, claims.Username)
}

func TestParseRejectsMalformedTokens(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"one segment", "abc"},
		{"two segments", "abc.def"},
		{"four segments", "a.b.c.d"},
		{"garbage payload", "eyJhbGciOiJIUzI1NiJ9.!!!notbase64!!!.sig"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Parse(tt.raw)
			assert.False(t, ok)
		})
	}
}

func TestParseRequiresCoreClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	tests := []struct {
		name   string
		claims jwt.MapClaims
	}{
		{"missing sub", jwt.MapClaims{"role": "viewer", "exp": exp}},
		{"missing role", jwt.MapClaims{"sub": "u1", "exp": exp}},
		{"missing exp", jwt.MapClaims{"sub": "u1", "role": "viewer"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Parse(mintToken(t, tt.claims))
			assert.False(t, ok)
		})
	}
}

func TestValidatorExpiry(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	v := NewValidator(WithClock(func() time.Time { return now }))

	assert.True(t, v.IsExpired(time.Time{}), "zero expiry is expired")
	assert.True(t, v.IsExpired(now.Add(-time.Second)))
	assert.True(t, v.IsExpired(now), "expiry at now counts as expired")
	assert.False(t, v.IsExpired(now.Add(time.Second)))

	assert.True(t, v.IsExpiringSoon(now.Add(-time.Minute), 5*time.Minute))
	assert.True(t, v.IsExpiringSoon(now.Add(3*time.Minute), 5*time.Minute))
	assert.False(t, v.IsExpiringSoon(now.Add(10*time.Minute), 5*time.Minute))
}
