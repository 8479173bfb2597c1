// Package metadata defines the persistent store for user accounts and
// the file hierarchy.
package metadata

import (
	"context"

	"github.com/filedepot/filedepot/internal/domain"
)

// PageSize is the fixed page size for hierarchy listings.
const PageSize = 20

// Store persists users and file entries. Implementations must make
// single-record inserts and updates atomic; that is the only
// consistency boundary the services rely on.
type Store interface {
	// InsertUser creates a user. Returns domain.ErrConflict when the
	// email is already registered.
	InsertUser(ctx context.Context, email, passwordHash string) (*domain.User, error)

	// UserByEmail returns the user with the given email, or
	// domain.ErrNotFound.
	UserByEmail(ctx context.Context, email string) (*domain.User, error)

	// UserByID returns the user with the given id, or domain.ErrNotFound.
	UserByID(ctx context.Context, id string) (*domain.User, error)

	// CountUsers returns the total number of users.
	CountUsers(ctx context.Context) (int64, error)

	// InsertFile persists a new file entry and returns it with its
	// assigned id.
	InsertFile(ctx context.Context, entry *domain.FileEntry) (*domain.FileEntry, error)

	// FileByID returns the entry with the given id regardless of owner,
	// or domain.ErrNotFound.
	FileByID(ctx context.Context, id string) (*domain.FileEntry, error)

	// FileByIDAndOwner returns the entry with the given id owned by
	// ownerID. An entry owned by someone else is domain.ErrNotFound.
	FileByIDAndOwner(ctx context.Context, id, ownerID string) (*domain.FileEntry, error)

	// ListByParent returns the ownerID's entries directly under
	// parentID in insertion order, paginated with PageSize. Pages past
	// the end yield an empty slice, not an error.
	ListByParent(ctx context.Context, ownerID, parentID string, page int) ([]domain.FileEntry, error)

	// SetVisibility updates isPublic on the entry owned by ownerID and
	// returns the refreshed record, or domain.ErrNotFound.
	SetVisibility(ctx context.Context, id, ownerID string, public bool) (*domain.FileEntry, error)

	// SetThumbnailKey records the storage key of one generated
	// thumbnail width for an image entry.
	SetThumbnailKey(ctx context.Context, id string, width int, key string) error

	// CountFiles returns the total number of file entries.
	CountFiles(ctx context.Context) (int64, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close() error
}
