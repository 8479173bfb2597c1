package users

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/metadata/memory"
)

func TestRegister(t *testing.T) {
	svc := New(memory.New())
	ctx := context.Background()

	user, err := svc.Register(ctx, "a@x.com", "pw1")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" {
		t.Error("expected a generated id")
	}
	if user.Email != "a@x.com" {
		t.Errorf("email = %q", user.Email)
	}
	if user.PasswordHash == "pw1" {
		t.Error("password stored in the clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("pw1")); err != nil {
		t.Errorf("stored hash does not match password: %v", err)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := New(memory.New())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@x.com", "pw1"); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := svc.Register(ctx, "a@x.com", "pw2")
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if got := domain.Message(err, ""); got != "Email already exists" {
		t.Errorf("message = %q", got)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := New(memory.New())
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantMsg  string
	}{
		{"missing email", "", "pw", "Missing email"},
		{"missing password", "a@x.com", "", "Missing password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.email, tt.password)
			if !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if got := domain.Message(err, ""); got != tt.wantMsg {
				t.Errorf("message = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}
