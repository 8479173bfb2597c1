// Package upload persists leaf content and metadata, in that order, and
// hands images off to the thumbnail queue.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/hierarchy"
	"github.com/filedepot/filedepot/internal/logging"
	"github.com/filedepot/filedepot/internal/metadata"
	"github.com/filedepot/filedepot/internal/metrics"
	"github.com/filedepot/filedepot/internal/storage"
	"github.com/filedepot/filedepot/internal/thumbs"
)

// Enqueuer dispatches thumbnail jobs. Satisfied by thumbs.Processor.
type Enqueuer interface {
	Enqueue(job thumbs.Job) error
}

// Pipeline creates folder and leaf entries. For leaves, content is
// durably written before the metadata record becomes visible, so no
// record ever points at missing content.
type Pipeline struct {
	store     metadata.Store
	hierarchy *hierarchy.Manager
	backend   storage.Backend
	queue     Enqueuer
	maxSize   int64
}

// New creates an upload pipeline. maxSize bounds the decoded payload;
// zero means unlimited.
func New(store metadata.Store, h *hierarchy.Manager, backend storage.Backend, queue Enqueuer, maxSize int64) *Pipeline {
	return &Pipeline{store: store, hierarchy: h, backend: backend, queue: queue, maxSize: maxSize}
}

// Create validates and persists one entry of any kind on behalf of
// ownerID. Failures abort before metadata becomes visible.
func (p *Pipeline) Create(ctx context.Context, ownerID string, req *hierarchy.CreateRequest) (*domain.FileEntry, error) {
	if req.Kind == domain.KindFolder {
		return p.hierarchy.CreateFolder(ctx, ownerID, req)
	}

	if err := p.hierarchy.ValidateCreate(ctx, req); err != nil {
		return nil, err
	}

	content, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return nil, domain.Validation("Missing data")
	}
	if p.maxSize > 0 && int64(len(content)) > p.maxSize {
		return nil, domain.Validation("Payload too large")
	}

	key := uuid.NewString()
	if err := p.backend.PutObject(ctx, key, bytes.NewReader(content), int64(len(content))); err != nil {
		metrics.RecordContentUpload(0, false)
		return nil, fmt.Errorf("%w: write content: %v", domain.ErrInternal, err)
	}

	parentID := req.ParentID
	if parentID == "" {
		parentID = domain.RootParent
	}
	entry, err := p.store.InsertFile(ctx, &domain.FileEntry{
		UserID:     ownerID,
		Name:       req.Name,
		Kind:       req.Kind,
		ParentID:   parentID,
		IsPublic:   req.IsPublic,
		StorageKey: key,
	})
	if err != nil {
		// Content without metadata is unreachable but harmless; the
		// upload as a whole failed.
		return nil, fmt.Errorf("insert metadata: %w", err)
	}
	metrics.RecordContentUpload(int64(len(content)), true)

	if entry.Kind == domain.KindImage && p.queue != nil {
		if err := p.queue.Enqueue(thumbs.Job{UserID: ownerID, FileID: entry.ID}); err != nil {
			// The upload stands; the image just has no thumbnails
			// until something reprocesses it.
			logging.Warn("thumbnail enqueue failed",
				zap.String("file_id", entry.ID),
				zap.Error(err))
		}
	}

	logging.Info("entry created",
		zap.String("file_id", entry.ID),
		zap.String("kind", string(entry.Kind)))
	return entry, nil
}
