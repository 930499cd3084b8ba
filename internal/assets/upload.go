package assets

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vintera/labelforge/internal/fault"
)

// AliasStore is the persistence surface Uploader needs. *Store satisfies
// it; tests use an in-memory fake.
type AliasStore interface {
	UpsertAlias(ctx context.Context, rec *AliasRecord) error
	GetAlias(ctx context.Context, generationID uuid.UUID, assetID string) (*AliasRecord, error)
	FindByChecksum(ctx context.Context, checksum string) (*AliasRecord, error)
}

// Uploader stores images content-addressed and deduplicated: the same
// bytes are written to the blob store at most once, globally, while every
// (generationID, assetID) pair still gets its own alias row.
type Uploader struct {
	blobs  BlobStore
	store  AliasStore
	retry  fault.RetryConfig
	logger *slog.Logger
}

// NewUploader wires an Uploader. logger may be nil.
func NewUploader(blobs BlobStore, store AliasStore, retry fault.RetryConfig, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Uploader{blobs: blobs, store: store, retry: retry, logger: logger}
}

// UploadImage stores data for the (generationID, assetID) pair and
// returns the resulting asset. Identical bytes uploaded under any pair
// resolve to the same URL and checksum without a second physical write.
// checksum may be empty, in which case it is computed here; either way it
// is computed at most once per call.
func (u *Uploader) UploadImage(ctx context.Context, generationID uuid.UUID, assetID string, data []byte, checksum string) (ImageAsset, error) {
	info, err := Sniff(data)
	if err != nil {
		return ImageAsset{}, err
	}
	if checksum == "" {
		checksum = Checksum(data)
	}

	// Global dedup: any prior alias with this checksum means the bytes
	// are already stored. Only a fresh alias row is needed, and the
	// existing row's dimensions win over our sniff.
	existing, err := u.findByChecksum(ctx, checksum)
	if err == nil {
		rec := &AliasRecord{
			GenerationID: generationID,
			AssetID:      assetID,
			URL:          existing.URL,
			Width:        existing.Width,
			Height:       existing.Height,
			Format:       existing.Format,
			Checksum:     checksum,
		}
		if err := u.upsertAlias(ctx, rec); err != nil {
			return ImageAsset{}, err
		}
		u.logger.Debug("asset deduplicated",
			"generation_id", generationID,
			"asset_id", assetID,
			"checksum", checksum)
		return rec.Asset(), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return ImageAsset{}, err
	}

	// Repeat call for the same pair and content: return the prior result.
	if prior, err := u.getAlias(ctx, generationID, assetID); err == nil && prior.Checksum == checksum {
		return prior.Asset(), nil
	} else if err != nil && !errors.Is(err, ErrNotFound) {
		return ImageAsset{}, err
	}

	key := ContentKey(checksum, info.Format)
	url, freshBlob, err := u.uploadBlob(ctx, key, data)
	if err != nil {
		return ImageAsset{}, err
	}

	rec := &AliasRecord{
		GenerationID: generationID,
		AssetID:      assetID,
		URL:          url,
		Width:        info.Width,
		Height:       info.Height,
		Format:       info.Format,
		Checksum:     checksum,
	}

	// If the alias write fails after a fresh blob write, remove the
	// orphan so storage and database stay consistent. A conflicted blob
	// belongs to someone else and must stay.
	cleanups := []func(context.Context) error{}
	if freshBlob {
		cleanups = append(cleanups, func(ctx context.Context) error {
			return u.blobs.Remove(ctx, key)
		})
	}
	if _, err := fault.WithCleanup(ctx, u.logger, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, u.upsertAlias(ctx, rec)
	}, cleanups...); err != nil {
		return ImageAsset{}, err
	}

	u.logger.Info("asset uploaded",
		"generation_id", generationID,
		"asset_id", assetID,
		"checksum", checksum,
		"format", info.Format,
		"bytes", len(data))
	return rec.Asset(), nil
}

// uploadBlob writes the content-addressed blob under retry. A storage
// conflict means another writer stored identical bytes first, which is
// success; freshBlob reports whether this call did the physical write.
func (u *Uploader) uploadBlob(ctx context.Context, key string, data []byte) (url string, freshBlob bool, err error) {
	url, err = fault.Retry(ctx, u.logger, "blob upload", u.retry, func(ctx context.Context) (string, error) {
		return u.blobs.Upload(ctx, key, data)
	})
	if err != nil {
		if fault.IsConflict(err) {
			return u.blobs.URL(key), false, nil
		}
		return "", false, err
	}
	return url, true, nil
}

func (u *Uploader) upsertAlias(ctx context.Context, rec *AliasRecord) error {
	_, err := fault.Retry(ctx, u.logger, "alias upsert", u.retry, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, u.store.UpsertAlias(ctx, rec)
	})
	return err
}

func (u *Uploader) getAlias(ctx context.Context, generationID uuid.UUID, assetID string) (*AliasRecord, error) {
	return fault.Retry(ctx, u.logger, "alias lookup", u.retry, func(ctx context.Context) (*AliasRecord, error) {
		return u.store.GetAlias(ctx, generationID, assetID)
	})
}

func (u *Uploader) findByChecksum(ctx context.Context, checksum string) (*AliasRecord, error) {
	return fault.Retry(ctx, u.logger, "checksum lookup", u.retry, func(ctx context.Context) (*AliasRecord, error) {
		return u.store.FindByChecksum(ctx, checksum)
	})
}
