// Package domain holds the core data model shared by every service:
// users, file entries and the error kinds the transport layer maps to
// HTTP status codes.
package domain

import "time"

// Kind classifies a file entry.
type Kind string

const (
	KindFolder Kind = "folder"
	KindFile   Kind = "file"
	KindImage  Kind = "image"
)

// RootParent is the parent id of top-level entries. It is a sentinel,
// not the id of a real folder.
const RootParent = "0"

// ThumbnailWidths are the fixed widths (in pixels) of the derivative
// images produced for every uploaded image.
var ThumbnailWidths = []int{100, 250, 500}

// User is a registered account. Password hashes never leave the server.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
}

// FileEntry is a node in the per-user file hierarchy. Folders carry no
// content; files and images reference an object in the content storage
// backend via StorageKey. ThumbnailKeys is populated asynchronously for
// images and may legitimately be partial or empty.
type FileEntry struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	Name          string         `json:"name"`
	Kind          Kind           `json:"type"`
	ParentID      string         `json:"parentId"`
	IsPublic      bool           `json:"isPublic"`
	StorageKey    string         `json:"-"`
	ThumbnailKeys map[int]string `json:"-"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// IsLeaf reports whether the entry carries stored content.
func (f *FileEntry) IsLeaf() bool {
	return f.Kind == KindFile || f.Kind == KindImage
}

// ValidKind reports whether k is one of the three entry kinds.
func ValidKind(k Kind) bool {
	return k == KindFolder || k == KindFile || k == KindImage
}
