package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AliasRecord is one (generationID, assetID) row pointing into the
// content-addressable store. Many aliases may share one blob.
type AliasRecord struct {
	GenerationID uuid.UUID
	AssetID      string
	URL          string
	Width        int
	Height       int
	Format       string
	Checksum     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Asset converts the alias row to its public shape.
func (r *AliasRecord) Asset() ImageAsset {
	return ImageAsset{
		ID:       r.AssetID,
		URL:      r.URL,
		Width:    r.Width,
		Height:   r.Height,
		Format:   r.Format,
		Checksum: r.Checksum,
	}
}

// GenerationStatus values for a pipeline run.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Generation is one persisted pipeline run.
type Generation struct {
	ID           uuid.UUID
	Submission   json.RawMessage
	Status       string
	LabelDSL     json.RawMessage
	PreviewURL   string
	Iterations   int
	AppliedEdits int
	FailedEdits  int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewTransientGeneration builds an unpersisted run record for pipeline
// runs without a database, such as offline CLI runs.
func NewTransientGeneration(submission json.RawMessage) *Generation {
	now := time.Now().UTC()
	return &Generation{
		ID:         uuid.New(),
		Submission: submission,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

const aliasCols = `generation_id, asset_id, url, width, height, format, checksum, created_at, updated_at`

// upsertAliasSQL is idempotent on the composite key: a repeat call for
// the same (generation_id, asset_id) updates the row in place.
const upsertAliasSQL = `INSERT INTO asset_aliases (generation_id, asset_id, url, width, height, format, checksum)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (generation_id, asset_id) DO UPDATE
	SET url = EXCLUDED.url, width = EXCLUDED.width, height = EXCLUDED.height,
	    format = EXCLUDED.format, checksum = EXCLUDED.checksum, updated_at = now()`

// Store persists generations and asset aliases in PostgreSQL.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewStore creates a Store. logger may be nil.
func NewStore(pool *pgxpool.Pool, logger *slog.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// UpsertAlias creates or updates the alias row for the record's
// composite key.
func (s *Store) UpsertAlias(ctx context.Context, rec *AliasRecord) error {
	_, err := s.pool.Exec(ctx, upsertAliasSQL,
		rec.GenerationID, rec.AssetID, rec.URL, rec.Width, rec.Height, rec.Format, rec.Checksum)
	if err != nil {
		return fmt.Errorf("upsert alias %s/%s: %w", rec.GenerationID, rec.AssetID, err)
	}

	s.logger.Debug("alias upserted",
		"generation_id", rec.GenerationID,
		"asset_id", rec.AssetID,
		"checksum", rec.Checksum)
	return nil
}

// GetAlias fetches the alias row for a composite key. Returns
// ErrNotFound when absent.
func (s *Store) GetAlias(ctx context.Context, generationID uuid.UUID, assetID string) (*AliasRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+aliasCols+` FROM asset_aliases WHERE generation_id = $1 AND asset_id = $2`,
		generationID, assetID)
	return scanAlias(row)
}

// FindByChecksum searches globally for any alias pointing at the given
// content checksum. Returns ErrNotFound when the content is new.
func (s *Store) FindByChecksum(ctx context.Context, checksum string) (*AliasRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+aliasCols+` FROM asset_aliases WHERE checksum = $1 ORDER BY created_at LIMIT 1`,
		checksum)
	return scanAlias(row)
}

// ListAliases returns every alias row for a generation.
func (s *Store) ListAliases(ctx context.Context, generationID uuid.UUID) ([]*AliasRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+aliasCols+` FROM asset_aliases WHERE generation_id = $1 ORDER BY asset_id`,
		generationID)
	if err != nil {
		return nil, fmt.Errorf("list aliases for %s: %w", generationID, err)
	}
	defer rows.Close()

	var out []*AliasRecord
	for rows.Next() {
		rec, err := scanAlias(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CreateGeneration inserts a pending run.
func (s *Store) CreateGeneration(ctx context.Context, submission json.RawMessage) (*Generation, error) {
	gen := &Generation{ID: uuid.New(), Submission: submission, Status: StatusPending}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO generations (id, submission, status) VALUES ($1, $2, $3)
		 RETURNING created_at, updated_at`,
		gen.ID, gen.Submission, gen.Status)
	if err := row.Scan(&gen.CreatedAt, &gen.UpdatedAt); err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}

	s.logger.Debug("generation created", "generation_id", gen.ID)
	return gen, nil
}

// GetGeneration fetches a run. Returns ErrNotFound when absent.
func (s *Store) GetGeneration(ctx context.Context, id uuid.UUID) (*Generation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, submission, status, label_dsl, preview_url, iterations, applied_edits, failed_edits,
		        created_at, updated_at
		 FROM generations WHERE id = $1`, id)

	var gen Generation
	var labelDSL []byte
	var previewURL *string
	err := row.Scan(&gen.ID, &gen.Submission, &gen.Status, &labelDSL, &previewURL,
		&gen.Iterations, &gen.AppliedEdits, &gen.FailedEdits, &gen.CreatedAt, &gen.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get generation %s: %w", id, err)
	}
	gen.LabelDSL = labelDSL
	if previewURL != nil {
		gen.PreviewURL = *previewURL
	}
	return &gen, nil
}

// UpdateGeneration persists the run's current outcome.
func (s *Store) UpdateGeneration(ctx context.Context, gen *Generation) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE generations
		 SET status = $2, label_dsl = $3, preview_url = $4,
		     iterations = $5, applied_edits = $6, failed_edits = $7, updated_at = now()
		 WHERE id = $1`,
		gen.ID, gen.Status, gen.LabelDSL, nullIfEmpty(gen.PreviewURL),
		gen.Iterations, gen.AppliedEdits, gen.FailedEdits)
	if err != nil {
		return fmt.Errorf("update generation %s: %w", gen.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanAlias(row pgx.Row) (*AliasRecord, error) {
	var rec AliasRecord
	err := row.Scan(&rec.GenerationID, &rec.AssetID, &rec.URL, &rec.Width, &rec.Height,
		&rec.Format, &rec.Checksum, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan alias: %w", err)
	}
	return &rec, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
