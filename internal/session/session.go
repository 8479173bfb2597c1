// Package session issues, resolves and revokes opaque session tokens.
// Tokens live only in the expiring cache; there is no durable session
// record, so TTL expiry and explicit revocation are observationally the
// same thing: a lookup miss.
package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/filedepot/filedepot/internal/cache"
	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/logging"
	"github.com/filedepot/filedepot/internal/metadata"
	"github.com/filedepot/filedepot/internal/metrics"
)

// keyPrefix namespaces session tokens inside the cache.
const keyPrefix = "auth_"

// Manager maps session tokens to user identities.
type Manager struct {
	cache cache.Cache
	store metadata.Store
	ttl   time.Duration
}

// New creates a session manager issuing tokens with the given TTL.
func New(c cache.Cache, store metadata.Store, ttl time.Duration) *Manager {
	return &Manager{cache: c, store: store, ttl: ttl}
}

// Authenticate validates a Basic authorization header and returns a
// fresh opaque token. Any failure, from a malformed header to a wrong
// password, is domain.ErrUnauthorized.
func (m *Manager) Authenticate(ctx context.Context, authHeader string) (string, error) {
	email, password, ok := decodeBasic(authHeader)
	if !ok {
		metrics.RecordAuthAttempt(false)
		return "", domain.ErrUnauthorized
	}

	user, err := m.store.UserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("look up user: %w", err)
		}
		metrics.RecordAuthAttempt(false)
		logging.Warn("authentication failed: unknown email")
		return "", domain.ErrUnauthorized
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		metrics.RecordAuthAttempt(false)
		logging.Warn("authentication failed: wrong password", zap.String("user_id", user.ID))
		return "", domain.ErrUnauthorized
	}

	token := uuid.NewString()
	if err := m.cache.Set(ctx, keyPrefix+token, user.ID, m.ttl); err != nil {
		return "", fmt.Errorf("store session: %w", err)
	}

	metrics.RecordAuthAttempt(true)
	metrics.RecordSessionIssued()
	logging.Info("session issued", zap.String("user_id", user.ID))
	return token, nil
}

// Resolve maps a token to the owning user id. Resolving never extends
// the token's TTL.
func (m *Manager) Resolve(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrUnauthorized
	}
	userID, err := m.cache.Get(ctx, keyPrefix+token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnauthorized
		}
		return "", fmt.Errorf("resolve session: %w", err)
	}
	return userID, nil
}

// Revoke deletes the token's cache entry. Revoking an unknown (or
// already revoked, or expired) token is domain.ErrUnauthorized.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return domain.ErrUnauthorized
	}
	existed, err := m.cache.Delete(ctx, keyPrefix+token)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	if !existed {
		return domain.ErrUnauthorized
	}
	metrics.RecordSessionRevoked()
	return nil
}

// UserFromToken resolves a token all the way to the user record.
func (m *Manager) UserFromToken(ctx context.Context, token string) (*domain.User, error) {
	userID, err := m.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := m.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Token outlived the account; treat like any stale token.
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// HashPassword produces a bcrypt hash for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// decodeBasic parses an RFC 7617 Basic authorization header into
// email and password.
func decodeBasic(header string) (email, password string, ok bool) {
	const prefix = "Basic "
	if !strings.HasPrefix(header, prefix) {
		return "", "", false
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, prefix))
	if err != nil {
		return "", "", false
	}
	email, password, found := strings.Cut(string(raw), ":")
	if !found || email == "" {
		return "", "", false
	}
	return email, password, true
}
