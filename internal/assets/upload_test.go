package assets

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/vintera/labelforge/internal/fault"
)

// pngBytes encodes a tiny solid-color PNG. Different colors give
// different checksums.
func pngBytes(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}
	return buf.Bytes()
}

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	writes  int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Upload(_ context.Context, key string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; ok {
		return "", fault.New(fault.KindStorage, false, "blob already exists")
	}
	m.objects[key] = append([]byte(nil), data...)
	m.writes++
	return m.URL(key), nil
}

func (m *memBlobs) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memBlobs) URL(key string) string { return "https://blobs.test/" + key }

type aliasKey struct {
	gen   uuid.UUID
	asset string
}

type memAliases struct {
	mu        sync.Mutex
	rows      map[aliasKey]AliasRecord
	upsertErr error
}

func newMemAliases() *memAliases {
	return &memAliases{rows: map[aliasKey]AliasRecord{}}
}

func (m *memAliases) UpsertAlias(_ context.Context, rec *AliasRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.rows[aliasKey{rec.GenerationID, rec.AssetID}] = *rec
	return nil
}

func (m *memAliases) GetAlias(_ context.Context, generationID uuid.UUID, assetID string) (*AliasRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rows[aliasKey{generationID, assetID}]
	if !ok {
		return nil, ErrNotFound
	}
	out := rec
	return &out, nil
}

func (m *memAliases) FindByChecksum(_ context.Context, checksum string) (*AliasRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.rows {
		if rec.Checksum == checksum {
			out := rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func quickRetry() fault.RetryConfig {
	return fault.RetryConfig{MaxAttempts: 2, BaseDelay: 1, MaxDelay: 1, ExponentialBase: 1}
}

func TestUploadImage_DeduplicatesAcrossPairs(t *testing.T) {
	blobs := newMemBlobs()
	aliases := newMemAliases()
	u := NewUploader(blobs, aliases, quickRetry(), nil)

	data := pngBytes(t, color.RGBA{R: 0xaa, A: 0xff})
	genA, genB := uuid.New(), uuid.New()

	first, err := u.UploadImage(context.Background(), genA, "hero", data, "")
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	second, err := u.UploadImage(context.Background(), genB, "backdrop", data, "")
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}

	if first.URL != second.URL || first.Checksum != second.Checksum {
		t.Errorf("identical bytes diverged: %+v vs %+v", first, second)
	}
	if blobs.writes != 1 {
		t.Errorf("physical writes = %d, want 1", blobs.writes)
	}
	if len(aliases.rows) != 2 {
		t.Errorf("alias rows = %d, want 2", len(aliases.rows))
	}
	if first.Width != 4 || first.Height != 6 || first.Format != "png" {
		t.Errorf("sniffed metadata wrong: %+v", first)
	}
}

func TestUploadImage_RepeatCallIsIdempotent(t *testing.T) {
	blobs := newMemBlobs()
	aliases := newMemAliases()
	u := NewUploader(blobs, aliases, quickRetry(), nil)

	data := pngBytes(t, color.RGBA{G: 0x55, A: 0xff})
	gen := uuid.New()

	first, err := u.UploadImage(context.Background(), gen, "hero", data, "")
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	again, err := u.UploadImage(context.Background(), gen, "hero", data, "")
	if err != nil {
		t.Fatalf("repeat upload: %v", err)
	}

	if first != again {
		t.Errorf("repeat call changed result: %+v vs %+v", first, again)
	}
	if blobs.writes != 1 {
		t.Errorf("physical writes = %d, want 1", blobs.writes)
	}
}

func TestUploadImage_ProvidedChecksumIsTrusted(t *testing.T) {
	u := NewUploader(newMemBlobs(), newMemAliases(), quickRetry(), nil)

	data := pngBytes(t, color.RGBA{B: 0x77, A: 0xff})
	want := Checksum(data)

	asset, err := u.UploadImage(context.Background(), uuid.New(), "hero", data, want)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if asset.Checksum != want {
		t.Errorf("checksum = %q, want %q", asset.Checksum, want)
	}
}

func TestUploadImage_RejectsUnreadableBytes(t *testing.T) {
	blobs := newMemBlobs()
	u := NewUploader(blobs, newMemAliases(), quickRetry(), nil)

	_, err := u.UploadImage(context.Background(), uuid.New(), "hero", []byte("not an image"), "")
	if err == nil {
		t.Fatal("expected error for unreadable bytes")
	}
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Kind != fault.KindValidation || fe.Retryable {
		t.Errorf("error = %v, want non-retryable validation fault", err)
	}
	if blobs.writes != 0 {
		t.Errorf("physical writes = %d, want 0", blobs.writes)
	}
}

func TestUploadImage_BlobConflictIsSuccess(t *testing.T) {
	blobs := newMemBlobs()
	aliases := newMemAliases()
	data := pngBytes(t, color.RGBA{R: 0x11, G: 0x22, A: 0xff})
	checksum := Checksum(data)

	// Blob exists from another process, but no alias row knows about it.
	key := ContentKey(checksum, "png")
	if _, err := blobs.Upload(context.Background(), key, data); err != nil {
		t.Fatalf("seeding blob: %v", err)
	}

	u := NewUploader(blobs, aliases, quickRetry(), nil)
	asset, err := u.UploadImage(context.Background(), uuid.New(), "hero", data, "")
	if err != nil {
		t.Fatalf("upload over existing blob: %v", err)
	}
	if asset.URL != blobs.URL(key) {
		t.Errorf("url = %q, want %q", asset.URL, blobs.URL(key))
	}
	if blobs.writes != 1 {
		t.Errorf("physical writes = %d, want the seed only", blobs.writes)
	}
}

func TestUploadImage_FreshBlobRemovedWhenAliasFails(t *testing.T) {
	blobs := newMemBlobs()
	aliases := newMemAliases()
	aliases.upsertErr = errors.New("constraint violation")
	u := NewUploader(blobs, aliases, quickRetry(), nil)

	data := pngBytes(t, color.RGBA{R: 0xfe, G: 0xdc, B: 0xba, A: 0xff})
	_, err := u.UploadImage(context.Background(), uuid.New(), "hero", data, "")
	if err == nil {
		t.Fatal("expected alias failure to surface")
	}

	blobs.mu.Lock()
	defer blobs.mu.Unlock()
	if len(blobs.objects) != 0 {
		t.Errorf("orphan blob left behind: %d objects", len(blobs.objects))
	}
}

func TestChecksum_Stable(t *testing.T) {
	data := []byte("the same bytes")
	if Checksum(data) != Checksum(append([]byte(nil), data...)) {
		t.Error("checksum differs for identical bytes")
	}
	if len(Checksum(data)) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(Checksum(data)))
	}
}

func TestSniff_DetectsFormatAndSize(t *testing.T) {
	info, err := Sniff(pngBytes(t, color.RGBA{A: 0xff}))
	if err != nil {
		t.Fatalf("Sniff() error = %v", err)
	}
	if info.Format != "png" || info.Width != 4 || info.Height != 6 {
		t.Errorf("info = %+v, want png 4x6", info)
	}
	if info.MIMEType() != "image/png" {
		t.Errorf("MIMEType() = %q", info.MIMEType())
	}
}
