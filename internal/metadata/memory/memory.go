// Package memory implements metadata.Store in process memory. It backs
// the test suites and mirrors the Postgres store's semantics: unique
// emails, owner-scoped lookups, insertion-order pagination.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/metadata"
)

// Store is an in-memory metadata store safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	users   map[string]domain.User // by id
	emails  map[string]string      // email -> user id
	files   map[string]domain.FileEntry
	fileSeq []string // insertion order of file ids
}

var _ metadata.Store = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		users:  map[string]domain.User{},
		emails: map[string]string{},
		files:  map[string]domain.FileEntry{},
	}
}

func (s *Store) InsertUser(_ context.Context, email, passwordHash string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.emails[email]; dup {
		return nil, domain.Conflict("Email already exists")
	}
	u := domain.User{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash}
	s.users[u.ID] = u
	s.emails[email] = u.ID
	return &u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, domain.ErrNotFound
	}
	u := s.users[id]
	return &u, nil
}

func (s *Store) UserByID(_ context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

func (s *Store) CountUsers(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.users)), nil
}

func (s *Store) InsertFile(_ context.Context, entry *domain.FileEntry) (*domain.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := *entry
	e.ID = uuid.NewString()
	if e.ThumbnailKeys != nil {
		e.ThumbnailKeys = copyThumbs(e.ThumbnailKeys)
	}
	s.files[e.ID] = e
	s.fileSeq = append(s.fileSeq, e.ID)
	out := e
	return &out, nil
}

func (s *Store) FileByID(_ context.Context, id string) (*domain.FileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.files[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e.ThumbnailKeys = copyThumbs(e.ThumbnailKeys)
	return &e, nil
}

func (s *Store) FileByIDAndOwner(_ context.Context, id, ownerID string) (*domain.FileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.files[id]
	if !ok || e.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	e.ThumbnailKeys = copyThumbs(e.ThumbnailKeys)
	return &e, nil
}

func (s *Store) ListByParent(_ context.Context, ownerID, parentID string, page int) ([]domain.FileEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if page < 0 {
		page = 0
	}
	matched := []domain.FileEntry{}
	for _, id := range s.fileSeq {
		e := s.files[id]
		if e.UserID == ownerID && e.ParentID == parentID {
			e.ThumbnailKeys = copyThumbs(e.ThumbnailKeys)
			matched = append(matched, e)
		}
	}
	lo := page * metadata.PageSize
	if lo >= len(matched) {
		return []domain.FileEntry{}, nil
	}
	hi := lo + metadata.PageSize
	if hi > len(matched) {
		hi = len(matched)
	}
	return matched[lo:hi], nil
}

func (s *Store) SetVisibility(_ context.Context, id, ownerID string, public bool) (*domain.FileEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.files[id]
	if !ok || e.UserID != ownerID {
		return nil, domain.ErrNotFound
	}
	e.IsPublic = public
	s.files[id] = e
	e.ThumbnailKeys = copyThumbs(e.ThumbnailKeys)
	return &e, nil
}

func (s *Store) SetThumbnailKey(_ context.Context, id string, width int, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.files[id]
	if !ok {
		return domain.ErrNotFound
	}
	thumbs := copyThumbs(e.ThumbnailKeys)
	if thumbs == nil {
		thumbs = map[int]string{}
	}
	thumbs[width] = key
	e.ThumbnailKeys = thumbs
	s.files[id] = e
	return nil
}

func (s *Store) CountFiles(context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.files)), nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func copyThumbs(in map[int]string) map[int]string {
	if in == nil {
		return nil
	}
	out := make(map[int]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
