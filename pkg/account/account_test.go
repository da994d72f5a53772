package account

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/japaniel/labelscan/pkg/db"
)

func newService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	conn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	svc := NewService(conn, zaptest.NewLogger(t))
	svc.Cost = bcrypt.MinCost
	return svc, conn
}

func TestRegisterLoginConfirm(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	reg, err := svc.Register(ctx, "alice", "Alice <alice@example.com>", "s3cret!")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if reg.Token == "" || reg.User.ID == "" {
		t.Fatalf("expected id and token, got %+v", reg)
	}
	if reg.User.Email != "alice@example.com" {
		t.Fatalf("expected bare address, got %q", reg.User.Email)
	}
	if reg.User.PasswordHash == "s3cret!" {
		t.Fatal("password stored in clear text")
	}

	u, err := svc.Login(ctx, "alice", "s3cret!")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.Confirmed {
		t.Fatal("new users start unconfirmed")
	}

	confirmed, err := svc.Confirm(ctx, reg.Token)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if !confirmed.Confirmed || confirmed.ID != reg.User.ID {
		t.Fatalf("unexpected confirmed user %+v", confirmed)
	}
	if _, err := svc.Confirm(ctx, reg.Token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken on reuse, got %v", err)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "bob", "bob@example.com", "password1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Login(ctx, "bob", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody", "password1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
}

func TestRegisterRejects(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "carol", "carol@example.com", "password1"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name, user, email, pass string
		field                   string
	}{
		{"blank username", "  ", "x@example.com", "password1", "username"},
		{"bad email", "dave", "not-an-email", "password1", "email"},
		{"short password", "dave", "dave@example.com", "123", "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.user, tt.email, tt.pass)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tt.field {
				t.Fatalf("expected ValidationError on %s, got %v", tt.field, err)
			}
		})
	}

	if _, err := svc.Register(ctx, "carol", "other@example.com", "password1"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists for username, got %v", err)
	}
	if _, err := svc.Register(ctx, "erin", "carol@example.com", "password1"); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected ErrUserExists for email, got %v", err)
	}
}

func TestRegisterFailureLeavesNoConfirmation(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "frank", "frank@example.com", "password1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "frank", "frank2@example.com", "password1"); err == nil {
		t.Fatal("expected duplicate error")
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM confirmations`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 confirmation, got %d", n)
	}
}

func TestConfirmFailureKeepsToken(t *testing.T) {
	svc, conn := newService(t)
	ctx := context.Background()
	reg, err := svc.Register(ctx, "ivy", "ivy@example.com", "password1")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := conn.Exec(`CREATE TRIGGER block_confirm BEFORE UPDATE ON users BEGIN SELECT RAISE(FAIL, 'update blocked'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}
	if _, err := svc.Confirm(ctx, reg.Token); err == nil {
		t.Fatal("expected Confirm to fail while updates are blocked")
	}
	if _, err := conn.Exec(`DROP TRIGGER block_confirm`); err != nil {
		t.Fatalf("drop trigger: %v", err)
	}

	u, err := svc.Confirm(ctx, reg.Token)
	if err != nil {
		t.Fatalf("retry Confirm: %v", err)
	}
	if !u.Confirmed {
		t.Fatal("expected user to be confirmed after retry")
	}
}
