// Package hierarchy enforces the parent/child, ownership and visibility
// rules of the file tree. The hierarchy is single-level-parent: every
// entry points at either the root sentinel or one existing folder.
package hierarchy

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/metadata"
)

// Manager validates and applies hierarchy operations.
type Manager struct {
	store metadata.Store
}

// New creates a hierarchy manager.
func New(store metadata.Store) *Manager {
	return &Manager{store: store}
}

// CreateRequest is a folder or leaf creation payload. Data carries the
// base64-encoded content for leaf kinds and is ignored for folders.
type CreateRequest struct {
	Name     string      `json:"name"`
	Kind     domain.Kind `json:"type"`
	ParentID string      `json:"parentId"`
	IsPublic bool        `json:"isPublic"`
	Data     string      `json:"data"`
}

// normalizedParent returns the effective parent id: absent means root.
func (r *CreateRequest) normalizedParent() string {
	if r.ParentID == "" {
		return domain.RootParent
	}
	return r.ParentID
}

// ValidateCreate checks a creation payload field by field, then
// resolves the parent. Each failure carries its specific reason.
func (m *Manager) ValidateCreate(ctx context.Context, req *CreateRequest) error {
	if err := validation.Validate(req.Name, validation.Required.Error("Missing name")); err != nil {
		return domain.Validation(err.Error())
	}
	if err := validation.Validate(string(req.Kind),
		validation.Required.Error("Missing type"),
		validation.In(string(domain.KindFolder), string(domain.KindFile), string(domain.KindImage)).Error("Missing type"),
	); err != nil {
		return domain.Validation(err.Error())
	}
	if req.Kind != domain.KindFolder {
		if err := validation.Validate(req.Data, validation.Required.Error("Missing data")); err != nil {
			return domain.Validation(err.Error())
		}
	}

	parentID := req.normalizedParent()
	if parentID == domain.RootParent {
		return nil
	}

	// Parent lookup is by id alone: attaching under another user's
	// folder is rejected later only if that folder is not a folder;
	// ownership of children is still the creator's.
	parent, err := m.store.FileByID(ctx, parentID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Validation("Parent not found")
		}
		return fmt.Errorf("resolve parent: %w", err)
	}
	if parent.Kind != domain.KindFolder {
		return domain.Validation("Parent is not a folder")
	}
	return nil
}

// CreateFolder validates and inserts a folder entry. Folders carry no
// content, so no storage step is involved.
func (m *Manager) CreateFolder(ctx context.Context, ownerID string, req *CreateRequest) (*domain.FileEntry, error) {
	if err := m.ValidateCreate(ctx, req); err != nil {
		return nil, err
	}
	entry := &domain.FileEntry{
		UserID:   ownerID,
		Name:     req.Name,
		Kind:     domain.KindFolder,
		ParentID: req.normalizedParent(),
		IsPublic: req.IsPublic,
	}
	return m.store.InsertFile(ctx, entry)
}

// Get returns the entry with the given id owned by requesterID. An
// entry owned by someone else looks exactly like a missing one.
func (m *Manager) Get(ctx context.Context, id, requesterID string) (*domain.FileEntry, error) {
	return m.store.FileByIDAndOwner(ctx, id, requesterID)
}

// List returns one page of the owner's entries under parentID, in
// insertion order. parentID defaults to root, page to 0.
func (m *Manager) List(ctx context.Context, ownerID, parentID string, page int) ([]domain.FileEntry, error) {
	if parentID == "" {
		parentID = domain.RootParent
	}
	if page < 0 {
		page = 0
	}
	return m.store.ListByParent(ctx, ownerID, parentID, page)
}

// SetVisibility publishes or unpublishes an owned entry and returns the
// refreshed record. Visibility is the only mutable field after creation.
func (m *Manager) SetVisibility(ctx context.Context, id, requesterID string, public bool) (*domain.FileEntry, error) {
	return m.store.SetVisibility(ctx, id, requesterID, public)
}
