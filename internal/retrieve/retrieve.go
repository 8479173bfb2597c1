// Package retrieve resolves file ids to stored content, applying the
// visibility policy: a private entry is indistinguishable from a
// missing one to everybody but its owner.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strconv"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/metadata"
	"github.com/filedepot/filedepot/internal/storage"
)

// Result is a resolved artifact ready to stream.
type Result struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Resolver maps file ids (and optional thumbnail size selectors) to
// stored artifacts.
type Resolver struct {
	store   metadata.Store
	backend storage.Backend
}

// New creates a retrieval resolver.
func New(store metadata.Store, backend storage.Backend) *Resolver {
	return &Resolver{store: store, backend: backend}
}

// Resolve returns the content of fileID. requesterID is empty for
// unauthenticated callers. sizeSelector selects a thumbnail width for
// images and is empty for the original.
//
// The caller owns closing Result.Body.
func (r *Resolver) Resolve(ctx context.Context, fileID, requesterID, sizeSelector string) (*Result, error) {
	entry, err := r.store.FileByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("load entry: %w", err)
	}

	if entry.Kind == domain.KindFolder {
		return nil, domain.Validation("A folder doesn't have content")
	}

	if !entry.IsPublic && (requesterID == "" || requesterID != entry.UserID) {
		return nil, domain.ErrNotFound
	}

	key := entry.StorageKey
	if entry.Kind == domain.KindImage && sizeSelector != "" {
		width, err := parseSize(sizeSelector)
		if err != nil {
			return nil, err
		}
		thumbKey, ok := entry.ThumbnailKeys[width]
		if !ok {
			// Not generated yet, or the job failed; both look the same.
			return nil, domain.ErrNotFound
		}
		key = thumbKey
	}

	exists, err := r.backend.ObjectExists(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("check content: %w", err)
	}
	if !exists {
		return nil, domain.ErrNotFound
	}

	body, size, err := r.backend.GetObject(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open content: %w", err)
	}

	return &Result{
		Body:        body,
		Size:        size,
		ContentType: contentTypeFor(entry.Name),
	}, nil
}

// parseSize validates a thumbnail size selector.
func parseSize(selector string) (int, error) {
	width, err := strconv.Atoi(selector)
	if err == nil {
		for _, allowed := range domain.ThumbnailWidths {
			if width == allowed {
				return width, nil
			}
		}
	}
	return 0, domain.Validation("Invalid size. Allowed sizes are 100, 250, 500")
}

// contentTypeFor derives a MIME type from the entry's name extension.
func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
