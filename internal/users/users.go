// Package users handles account registration.
package users

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/logging"
	"github.com/filedepot/filedepot/internal/metadata"
	"github.com/filedepot/filedepot/internal/session"
)

// Service creates user accounts.
type Service struct {
	store metadata.Store
}

// New creates a registration service.
func New(store metadata.Store) *Service {
	return &Service{store: store}
}

// Register creates a new account. The email must be unused; the store
// reports domain.ErrConflict otherwise.
func (s *Service) Register(ctx context.Context, email, password string) (*domain.User, error) {
	if err := validation.Validate(email, validation.Required.Error("Missing email")); err != nil {
		return nil, domain.Validation(err.Error())
	}
	if err := validation.Validate(password, validation.Required.Error("Missing password")); err != nil {
		return nil, domain.Validation(err.Error())
	}

	hash, err := session.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInternal, err)
	}

	user, err := s.store.InsertUser(ctx, email, hash)
	if err != nil {
		return nil, err
	}

	logging.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}
