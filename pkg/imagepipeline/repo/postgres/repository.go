package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stayops/imagepipeline/pkg/imagepipeline"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements imagepipeline.Repository using PostgreSQL. The
// thumbnail set is stored as a JSONB column; the record is inserted in a
// single statement, so readers never observe a partial thumbnail set.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS image_assets (
    id UUID PRIMARY KEY,
    tenant_id TEXT NOT NULL,
    original_filename TEXT NOT NULL DEFAULT '',
    mime_type TEXT NOT NULL,
    file_size_bytes BIGINT NOT NULL DEFAULT 0,
    width INT NOT NULL,
    height INT NOT NULL,
    primary_url TEXT NOT NULL,
    fallback_url TEXT NOT NULL,
    thumbnails JSONB NOT NULL,
    uploaded_at TIMESTAMPTZ NOT NULL,
    uploaded_by TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_image_assets_tenant ON image_assets (tenant_id, uploaded_at DESC);
`

// Migrate creates the image_assets table if it does not exist.
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("migrate image_assets: %w", err)
	}
	return nil
}

func (r *Repository) CreateImage(ctx context.Context, meta *imagepipeline.ImageMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	thumbs, err := json.Marshal(meta.Thumbnails)
	if err != nil {
		return fmt.Errorf("marshal thumbnails: %w", err)
	}

	query := `
		INSERT INTO image_assets (
			id, tenant_id, original_filename, mime_type, file_size_bytes,
			width, height, primary_url, fallback_url, thumbnails,
			uploaded_at, uploaded_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err = r.db.Exec(ctx, query,
		meta.ID, meta.TenantID, meta.OriginalFilename, meta.MimeType, meta.FileSizeBytes,
		meta.Dimensions.Width, meta.Dimensions.Height, meta.PrimaryURL, meta.FallbackURL,
		thumbs, meta.UploadedAt, meta.UploadedBy)
	if err != nil {
		return handlePostgresError("create image", err)
	}
	return nil
}

func (r *Repository) GetImage(ctx context.Context, id uuid.UUID) (*imagepipeline.ImageMetadata, error) {
	query := `
		SELECT id, tenant_id, original_filename, mime_type, file_size_bytes,
		       width, height, primary_url, fallback_url, thumbnails,
		       uploaded_at, uploaded_by
		FROM image_assets WHERE id = $1`

	meta, err := scanImage(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, imagepipeline.ErrAssetNotFound
		}
		return nil, handlePostgresError("get image", err)
	}
	return meta, nil
}

func (r *Repository) UpdateImage(ctx context.Context, meta *imagepipeline.ImageMetadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	thumbs, err := json.Marshal(meta.Thumbnails)
	if err != nil {
		return fmt.Errorf("marshal thumbnails: %w", err)
	}

	query := `
		UPDATE image_assets SET
			original_filename = $2, mime_type = $3, file_size_bytes = $4,
			width = $5, height = $6, primary_url = $7, fallback_url = $8,
			thumbnails = $9, uploaded_by = $10
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		meta.ID, meta.OriginalFilename, meta.MimeType, meta.FileSizeBytes,
		meta.Dimensions.Width, meta.Dimensions.Height, meta.PrimaryURL, meta.FallbackURL,
		thumbs, meta.UploadedBy)
	if err != nil {
		return handlePostgresError("update image", err)
	}
	if tag.RowsAffected() == 0 {
		return imagepipeline.ErrAssetNotFound
	}
	return nil
}

func (r *Repository) DeleteImage(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM image_assets WHERE id = $1`, id)
	if err != nil {
		return handlePostgresError("delete image", err)
	}
	if tag.RowsAffected() == 0 {
		return imagepipeline.ErrAssetNotFound
	}
	return nil
}

func (r *Repository) ListImagesByTenant(ctx context.Context, tenantID string) ([]*imagepipeline.ImageMetadata, error) {
	query := `
		SELECT id, tenant_id, original_filename, mime_type, file_size_bytes,
		       width, height, primary_url, fallback_url, thumbnails,
		       uploaded_at, uploaded_by
		FROM image_assets WHERE tenant_id = $1 ORDER BY uploaded_at DESC`

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, handlePostgresError("list images", err)
	}
	defer rows.Close()

	var result []*imagepipeline.ImageMetadata
	for rows.Next() {
		meta, err := scanImage(rows)
		if err != nil {
			return nil, handlePostgresError("list images", err)
		}
		result = append(result, meta)
	}
	return result, rows.Err()
}

func scanImage(row pgx.Row) (*imagepipeline.ImageMetadata, error) {
	var meta imagepipeline.ImageMetadata
	var thumbs []byte
	err := row.Scan(
		&meta.ID, &meta.TenantID, &meta.OriginalFilename, &meta.MimeType, &meta.FileSizeBytes,
		&meta.Dimensions.Width, &meta.Dimensions.Height, &meta.PrimaryURL, &meta.FallbackURL,
		&thumbs, &meta.UploadedAt, &meta.UploadedBy)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(thumbs, &meta.Thumbnails); err != nil {
		return nil, fmt.Errorf("unmarshal thumbnails: %w", err)
	}
	return &meta, nil
}

func handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("image already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}
