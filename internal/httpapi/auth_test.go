package httpapi

import (
	"context"
	"strings"
	"testing"
	"time"

	"salonpos/backend/internal/domain"
)

type userStoreStub struct {
	users []domain.UserAccount
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	return s.users, nil
}

func TestLoginIssuesTokenCarryingRole(t *testing.T) {
	store := &userStoreStub{users: []domain.UserAccount{
		{Username: "manager", PasswordHash: mustHashPassword(t, "manager123"), Role: domain.RoleManager, Active: true},
	}}
	auth := NewAuthManager("test-secret-key-with-at-least-32-bytes", time.Hour, store)

	resp, err := auth.Login(context.Background(), domain.LoginRequest{Username: " Manager ", Password: "manager123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.User.Role != domain.RoleManager {
		t.Fatalf("unexpected login response %+v", resp)
	}
	if !resp.ExpiresAt.After(time.Now()) {
		t.Fatalf("token already expired at %s", resp.ExpiresAt)
	}

	actor, err := auth.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if actor.Username != "manager" || actor.Role != domain.RoleManager {
		t.Fatalf("actor = %+v", actor)
	}
}

func TestLoginRejectsInactiveAndPlainPasswords(t *testing.T) {
	store := &userStoreStub{users: []domain.UserAccount{
		{Username: "former", PasswordHash: mustHashPassword(t, "secret-1"), Role: domain.RoleCashier, Active: false},
		{Username: "legacy", PasswordHash: "plain-text", Role: domain.RoleCashier, Active: true},
	}}
	auth := NewAuthManager("test-secret-key-with-at-least-32-bytes", time.Hour, store)

	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "former", Password: "secret-1"}); err != errInactiveAccount {
		t.Fatalf("expected inactive account error, got %v", err)
	}
	if _, err := auth.Login(context.Background(), domain.LoginRequest{Username: "legacy", Password: "plain-text"}); err != errInvalidCredentials {
		t.Fatalf("non-bcrypt hashes must never match, got %v", err)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	store := &userStoreStub{users: []domain.UserAccount{
		{Username: "cashier", PasswordHash: mustHashPassword(t, "cashier123"), Role: domain.RoleCashier, Active: true},
	}}
	issuer := NewAuthManager("issuer-secret-key-with-at-least-32-bytes", time.Hour, store)
	verifier := NewAuthManager("another-secret-key-with-at-least-32-bytes", time.Hour, store)

	resp, err := issuer.Login(context.Background(), domain.LoginRequest{Username: "cashier", Password: "cashier123"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := verifier.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("token signed with another secret must be rejected")
	}
}

func TestHashPasswordProducesBcrypt(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") || !verifyPassword(hash, "s3cret-pass") {
		t.Fatalf("unexpected hash %q", hash)
	}
	if _, err := HashPassword("  "); err == nil {
		t.Fatalf("blank password should be refused")
	}
}
