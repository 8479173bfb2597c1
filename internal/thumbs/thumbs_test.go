package thumbs

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
	"time"

	"github.com/filedepot/filedepot/internal/domain"
	"github.com/filedepot/filedepot/internal/metadata/memory"
	"github.com/filedepot/filedepot/internal/storage/local"
)

// testPNG encodes a w x h gradient as PNG bytes.
func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func TestGenerateVariantDimensions(t *testing.T) {
	src := testPNG(t, 1000, 500)

	out, err := GenerateVariant(bytes.NewReader(src), "pic.png", 250)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	img, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode variant: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() != 250 {
		t.Errorf("width = %d, want 250", bounds.Dx())
	}
	// Aspect ratio preserved: 1000x500 -> 250x125.
	if bounds.Dy() != 125 {
		t.Errorf("height = %d, want 125", bounds.Dy())
	}
	if bytes.Equal(out, src) {
		t.Error("variant bytes identical to original")
	}
}

func TestGenerateVariantBadData(t *testing.T) {
	if _, err := GenerateVariant(bytes.NewReader([]byte("not an image")), "pic.png", 100); err == nil {
		t.Error("expected error for undecodable data")
	}
}

func TestThumbKey(t *testing.T) {
	if got := ThumbKey("abc", 250); got != "abc_250" {
		t.Errorf("got %q, want %q", got, "abc_250")
	}
}

func newPipeline(t *testing.T) (*Processor, *memory.Store, *local.Backend) {
	t.Helper()
	store := memory.New()
	backend, err := local.New(local.Config{RootPath: t.TempDir()})
	if err != nil {
		t.Fatalf("backend: %v", err)
	}
	return NewProcessor(store, backend, 1), store, backend
}

// storeImage uploads image bytes and its metadata record the way the
// upload pipeline does, returning the entry.
func storeImage(t *testing.T, store *memory.Store, backend *local.Backend, ownerID, name string, data []byte) *domain.FileEntry {
	t.Helper()
	ctx := context.Background()
	key := "img-key"
	if err := backend.PutObject(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		t.Fatalf("put original: %v", err)
	}
	entry, err := store.InsertFile(ctx, &domain.FileEntry{
		UserID:     ownerID,
		Name:       name,
		Kind:       domain.KindImage,
		ParentID:   domain.RootParent,
		StorageKey: key,
	})
	if err != nil {
		t.Fatalf("insert entry: %v", err)
	}
	return entry
}

func TestProcessWritesAllVariants(t *testing.T) {
	p, store, backend := newPipeline(t)
	ctx := context.Background()

	user, _ := store.InsertUser(ctx, "a@x.com", "hash")
	entry := storeImage(t, store, backend, user.ID, "pic.png", testPNG(t, 800, 600))

	if err := p.process(ctx, Job{UserID: user.ID, FileID: entry.ID}); err != nil {
		t.Fatalf("process: %v", err)
	}

	refreshed, err := store.FileByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("reload entry: %v", err)
	}
	for _, width := range domain.ThumbnailWidths {
		key, ok := refreshed.ThumbnailKeys[width]
		if !ok {
			t.Fatalf("no thumbnail key for width %d", width)
		}
		rc, _, err := backend.GetObject(ctx, key)
		if err != nil {
			t.Fatalf("read %d-px variant: %v", width, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("decode %d-px variant: %v", width, err)
		}
		if img.Bounds().Dx() != width {
			t.Errorf("variant width = %d, want %d", img.Bounds().Dx(), width)
		}
	}
}

func TestProcessIdempotent(t *testing.T) {
	p, store, backend := newPipeline(t)
	ctx := context.Background()

	user, _ := store.InsertUser(ctx, "a@x.com", "hash")
	entry := storeImage(t, store, backend, user.ID, "pic.png", testPNG(t, 400, 400))

	job := Job{UserID: user.ID, FileID: entry.ID}
	if err := p.process(ctx, job); err != nil {
		t.Fatalf("first process: %v", err)
	}
	first, _ := store.FileByID(ctx, entry.ID)

	// Redelivery overwrites the same keys with equivalent content.
	if err := p.process(ctx, job); err != nil {
		t.Fatalf("second process: %v", err)
	}
	second, _ := store.FileByID(ctx, entry.ID)

	for _, width := range domain.ThumbnailWidths {
		if first.ThumbnailKeys[width] != second.ThumbnailKeys[width] {
			t.Errorf("width %d key changed across redelivery", width)
		}
	}
}

func TestProcessDataErrors(t *testing.T) {
	p, store, backend := newPipeline(t)
	ctx := context.Background()

	user, _ := store.InsertUser(ctx, "a@x.com", "hash")
	other, _ := store.InsertUser(ctx, "b@x.com", "hash")
	entry := storeImage(t, store, backend, user.ID, "pic.png", testPNG(t, 100, 100))

	if err := p.process(ctx, Job{UserID: user.ID, FileID: "missing"}); err == nil {
		t.Error("expected error for missing entry")
	}
	if err := p.process(ctx, Job{UserID: other.ID, FileID: entry.ID}); err == nil {
		t.Error("expected error for mismatched owner")
	}

	notImage, _ := store.InsertFile(ctx, &domain.FileEntry{
		UserID: user.ID, Name: "doc.txt", Kind: domain.KindFile, ParentID: domain.RootParent, StorageKey: "doc-key",
	})
	if err := p.process(ctx, Job{UserID: user.ID, FileID: notImage.ID}); err == nil {
		t.Error("expected error for non-image entry")
	}
}

func TestStartEnqueueStop(t *testing.T) {
	p, store, backend := newPipeline(t)
	ctx := context.Background()

	user, _ := store.InsertUser(ctx, "a@x.com", "hash")
	entry := storeImage(t, store, backend, user.ID, "pic.png", testPNG(t, 300, 200))

	p.Start(ctx)
	if err := p.Enqueue(Job{UserID: user.ID, FileID: entry.ID}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		refreshed, err := store.FileByID(ctx, entry.ID)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if len(refreshed.ThumbnailKeys) == len(domain.ThumbnailWidths) {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("thumbnails not generated in time, have %d", len(refreshed.ThumbnailKeys))
		case <-time.After(20 * time.Millisecond):
		}
	}

	p.Stop()
}

// A request can race the server's shutdown and enqueue after the
// processor stopped. That must drop the job, never panic.
func TestEnqueueAfterStop(t *testing.T) {
	p, store, _ := newPipeline(t)
	ctx := context.Background()

	user, _ := store.InsertUser(ctx, "a@x.com", "hash")

	p.Start(ctx)
	p.Stop()

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("enqueue after stop panicked: %v", r)
		}
	}()
	if err := p.Enqueue(Job{UserID: user.ID, FileID: "gone"}); err != nil {
		t.Fatalf("enqueue after stop: %v", err)
	}
}
