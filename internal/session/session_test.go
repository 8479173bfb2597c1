package session

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/metadata/memory"
)

// fakeCache is an in-memory cache with eager expiry checks.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string]fakeEntry
}

type fakeEntry struct {
	value     string
	expiresAt time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]fakeEntry{}}
}

func (c *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = fakeEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return "", domain.ErrNotFound
	}
	return e.value, nil
}

func (c *fakeCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if ok && time.Now().After(e.expiresAt) {
		ok = false
	}
	delete(c.entries, key)
	return ok, nil
}

func (c *fakeCache) Ping(context.Context) error { return nil }
func (c *fakeCache) Close() error               { return nil }

func basicHeader(email, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))
}

func newTestManager(t *testing.T, ttl time.Duration) (*Manager, *memory.Store, string) {
	t.Helper()
	store := memory.New()
	hash, err := HashPassword("pw1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := store.InsertUser(context.Background(), "a@x.com", hash)
	if err != nil {
		t.Fatalf("insert user: %v", err)
	}
	return New(newFakeCache(), store, ttl), store, user.ID
}

func TestAuthenticateThenResolve(t *testing.T) {
	m, _, userID := newTestManager(t, time.Hour)
	ctx := context.Background()

	token, err := m.Authenticate(ctx, basicHeader("a@x.com", "pw1"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	got, err := m.Resolve(ctx, token)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got != userID {
		t.Errorf("resolved user %q, want %q", got, userID)
	}
}

func TestAuthenticateWrongPassword(t *testing.T) {
	m, _, _ := newTestManager(t, time.Hour)

	_, err := m.Authenticate(context.Background(), basicHeader("a@x.com", "wrong"))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticateUnknownEmail(t *testing.T) {
	m, _, _ := newTestManager(t, time.Hour)

	_, err := m.Authenticate(context.Background(), basicHeader("nobody@x.com", "pw1"))
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAuthenticateMalformedHeader(t *testing.T) {
	m, _, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	for _, header := range []string{
		"",
		"Bearer abc",
		"Basic !!!not-base64!!!",
		"Basic " + base64.StdEncoding.EncodeToString([]byte("no-colon")),
	} {
		if _, err := m.Authenticate(ctx, header); !errors.Is(err, domain.ErrUnauthorized) {
			t.Errorf("header %q: expected ErrUnauthorized, got %v", header, err)
		}
	}
}

func TestResolveAfterRevoke(t *testing.T) {
	m, _, _ := newTestManager(t, time.Hour)
	ctx := context.Background()

	token, err := m.Authenticate(ctx, basicHeader("a@x.com", "pw1"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if err := m.Revoke(ctx, token); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if _, err := m.Resolve(ctx, token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized after revoke, got %v", err)
	}

	// Revoking again behaves like revoking an unknown token.
	if err := m.Revoke(ctx, token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized on double revoke, got %v", err)
	}
}

func TestResolveExpiredToken(t *testing.T) {
	m, _, _ := newTestManager(t, -time.Second) // already expired on issue
	ctx := context.Background()

	token, err := m.Authenticate(ctx, basicHeader("a@x.com", "pw1"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	if _, err := m.Resolve(ctx, token); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for expired token, got %v", err)
	}
}

func TestConcurrentTokensPerUser(t *testing.T) {
	m, _, userID := newTestManager(t, time.Hour)
	ctx := context.Background()

	t1, err := m.Authenticate(ctx, basicHeader("a@x.com", "pw1"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	t2, err := m.Authenticate(ctx, basicHeader("a@x.com", "pw1"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if t1 == t2 {
		t.Fatal("expected distinct tokens")
	}

	for _, tok := range []string{t1, t2} {
		got, err := m.Resolve(ctx, tok)
		if err != nil {
			t.Fatalf("resolve %q: %v", tok, err)
		}
		if got != userID {
			t.Errorf("token %q resolved to %q, want %q", tok, got, userID)
		}
	}

	// Revoking one token leaves the other valid.
	if err := m.Revoke(ctx, t1); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := m.Resolve(ctx, t2); err != nil {
		t.Errorf("second token should still resolve, got %v", err)
	}
}

func TestUserFromToken(t *testing.T) {
	m, _, userID := newTestManager(t, time.Hour)
	ctx := context.Background()

	token, err := m.Authenticate(ctx, basicHeader("a@x.com", "pw1"))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	user, err := m.UserFromToken(ctx, token)
	if err != nil {
		t.Fatalf("user from token: %v", err)
	}
	if user.ID != userID || user.Email != "a@x.com" {
		t.Errorf("got user %+v", user)
	}

	if _, err := m.UserFromToken(ctx, "bogus"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized for bogus token, got %v", err)
	}
}
