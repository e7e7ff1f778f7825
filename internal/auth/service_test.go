package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T, opts ...ServiceOption) (*Service, *InMemoryStore) {
	t.Helper()
	setSecret(t)
	store := NewInMemoryStore()
	svc, err := NewService(store, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, store
}

func seedUser(t *testing.T, store *InMemoryStore, username, password string, role Role) *User {
	t.Helper()
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	user := &User{Username: username, PasswordHash: hash, Role: role, Active: true}
	if err := store.Users().Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestLoginIssuesTokenPair(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "aliya", "correct horse", RoleSales)

	pair, principal, err := svc.Login(context.Background(), "aliya", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", pair)
	}
	if !strings.Contains(pair.RefreshToken, ".") {
		t.Fatalf("refresh token must carry id and secret: %q", pair.RefreshToken)
	}
	if principal.User.Username != "aliya" {
		t.Fatalf("unexpected principal: %+v", principal.User)
	}

	claims, err := ParseAndValidate(pair.AccessToken)
	if err != nil {
		t.Fatalf("access token invalid: %v", err)
	}
	if claims.Role != string(RoleSales) {
		t.Fatalf("unexpected role claim: %s", claims.Role)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, store := newTestService(t)
	user := seedUser(t, store, "aliya", "correct horse", RoleSales)

	if _, _, err := svc.Login(context.Background(), "aliya", "wrong"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "nobody", "correct horse"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for unknown user, got %v", err)
	}

	user.Active = false
	if err := store.Users().Update(context.Background(), user); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "aliya", "correct horse"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for inactive user, got %v", err)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "aliya", "pw123456", RoleViewer)

	pair, _, err := svc.Login(context.Background(), "aliya", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	next, _, err := svc.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh token was not rotated")
	}

	// The used token is revoked; presenting it again must fail.
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on reuse, got %v", err)
	}
}

func TestRefreshRejectsTamperedSecret(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "aliya", "pw123456", RoleViewer)

	pair, _, err := svc.Login(context.Background(), "aliya", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	id, _, _ := splitRefreshToken(pair.RefreshToken)

	if _, _, err := svc.Refresh(context.Background(), id+".forged-secret"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	// Tampering revokes the stored token outright.
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected token revoked after tamper, got %v", err)
	}
}

func TestRefreshRejectsExpired(t *testing.T) {
	now := time.Now().UTC()
	svc, store := newTestService(t, WithRefreshTTL(time.Minute), WithClock(func() time.Time { return now }))
	seedUser(t, store, "aliya", "pw123456", RoleViewer)

	pair, _, err := svc.Login(context.Background(), "aliya", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, store := newTestService(t)
	seedUser(t, store, "aliya", "pw123456", RoleViewer)

	pair, _, err := svc.Login(context.Background(), "aliya", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("first Logout: %v", err)
	}
	if err := svc.Logout(context.Background(), pair.RefreshToken); err != nil {
		t.Fatalf("second Logout should be a no-op, got %v", err)
	}
	if err := svc.Logout(context.Background(), "garbage"); err != nil {
		t.Fatalf("malformed token Logout should be ignored, got %v", err)
	}

	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to fail refresh, got %v", err)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	svc, store := newTestService(t)
	user := seedUser(t, store, "aliya", "old-password", RoleViewer)

	pair, _, err := svc.Login(context.Background(), "aliya", "old-password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := svc.ChangePassword(context.Background(), user.ID, "wrong", "new-password"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized for wrong current password, got %v", err)
	}
	if err := svc.ChangePassword(context.Background(), user.ID, "old-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}

	if _, _, err := svc.Refresh(context.Background(), pair.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected all refresh tokens revoked, got %v", err)
	}
	if _, _, err := svc.Login(context.Background(), "aliya", "new-password"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestAuthenticateToken(t *testing.T) {
	svc, store := newTestService(t)
	user := seedUser(t, store, "aliya", "pw123456", RoleDesigner)

	pair, _, err := svc.Login(context.Background(), "aliya", "pw123456")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	principal, err := svc.AuthenticateToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("AuthenticateToken: %v", err)
	}
	if principal.User.ID != user.ID {
		t.Fatalf("wrong principal: %+v", principal.User)
	}

	user.Active = false
	if err := store.Users().Update(context.Background(), user); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := svc.AuthenticateToken(context.Background(), pair.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected inactive user rejected, got %v", err)
	}
}
