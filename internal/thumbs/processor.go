package thumbs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/logging"
	"github.com/filedepot/filedepot/internal/metadata"
	"github.com/filedepot/filedepot/internal/metrics"
	"github.com/filedepot/filedepot/internal/storage"
)

// Job identifies one image whose thumbnails should be (re)generated.
// Jobs are delivered at least once; processing is idempotent because
// every width writes to a fixed key.
type Job struct {
	UserID string
	FileID string
}

// Processor consumes thumbnail jobs on a pool of workers. Uploads never
// block on it; completion is observed only through later retrievals.
type Processor struct {
	store   metadata.Store
	backend storage.Backend
	queue   chan Job
	workers int
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// NewProcessor creates a thumbnail processor with the given worker count.
func NewProcessor(store metadata.Store, backend storage.Backend, workers int) *Processor {
	if workers <= 0 {
		workers = 2
	}
	return &Processor{
		store:   store,
		backend: backend,
		queue:   make(chan Job, 1000),
		workers: workers,
	}
}

// Start launches the worker goroutines.
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx)
	}
	logging.Info("thumbnail processor started", zap.Int("workers", p.workers))
}

// Stop signals workers to stop and waits for in-flight jobs to finish.
// The queue channel is never closed: requests may still race a shutdown
// and call Enqueue, which must stay safe after Stop. Late jobs land in
// the buffer and are simply never consumed.
func (p *Processor) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	logging.Info("thumbnail processor stopped")
}

// Enqueue adds a job to the queue without blocking. A full queue drops
// the job: the upload stays valid, only its thumbnails stay absent.
func (p *Processor) Enqueue(job Job) error {
	select {
	case p.queue <- job:
		metrics.SetThumbnailQueueDepth(len(p.queue))
		return nil
	default:
		metrics.RecordThumbnailJob("dropped", 0)
		return fmt.Errorf("thumbnail queue full")
	}
}

func (p *Processor) worker(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-p.queue:
			metrics.SetThumbnailQueueDepth(len(p.queue))
			start := time.Now()
			if err := p.process(ctx, job); err != nil {
				metrics.RecordThumbnailJob("failure", time.Since(start))
				logging.Error("thumbnail job failed",
					zap.String("file_id", job.FileID),
					zap.Error(err))
				continue
			}
			metrics.RecordThumbnailJob("success", time.Since(start))
		}
	}
}

// process generates all fixed-width variants for one image. A missing,
// foreign-owned or non-image entry is a data error: logged by the
// caller, never requeued. Each width is committed independently, so a
// crash mid-job leaves a valid partial state.
func (p *Processor) process(ctx context.Context, job Job) error {
	entry, err := p.store.FileByIDAndOwner(ctx, job.FileID, job.UserID)
	if err != nil {
		return fmt.Errorf("load entry: %w", err)
	}
	if entry.Kind != domain.KindImage {
		return fmt.Errorf("entry %s is %s, not an image", entry.ID, entry.Kind)
	}

	rc, _, err := p.backend.GetObject(ctx, entry.StorageKey)
	if err != nil {
		return fmt.Errorf("read original: %w", err)
	}
	original, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return fmt.Errorf("read original: %w", err)
	}

	for _, width := range domain.ThumbnailWidths {
		variant, err := GenerateVariant(bytes.NewReader(original), entry.Name, width)
		if err != nil {
			return fmt.Errorf("width %d: %w", width, err)
		}

		key := ThumbKey(entry.StorageKey, width)
		if err := p.backend.PutObject(ctx, key, bytes.NewReader(variant), int64(len(variant))); err != nil {
			return fmt.Errorf("store %d-px variant: %w", width, err)
		}
		if err := p.store.SetThumbnailKey(ctx, entry.ID, width, key); err != nil {
			return fmt.Errorf("record %d-px variant: %w", width, err)
		}
		logging.Debug("thumbnail variant written",
			zap.String("file_id", entry.ID),
			zap.Int("width", width))
	}
	return nil
}
