package repo

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

const assetColumns = `id, user_id, job_id, kind, storage_path, byte_size, width, height, created_at`

// AssetRepositoryPG implements domain.AssetRepository.
type AssetRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAssetRepository creates a new asset repository backed by PostgreSQL.
func NewAssetRepository(pool *pgxpool.Pool) *AssetRepositoryPG {
	return &AssetRepositoryPG{pool: pool}
}

// Create inserts an asset record. A job holds at most one asset per kind;
// a concurrent duplicate insert is ignored rather than erroring.
func (r *AssetRepositoryPG) Create(ctx context.Context, asset *domain.Asset) error {
	if asset.ID == "" {
		asset.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO assets (id, user_id, job_id, kind, storage_path, byte_size, width, height)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (job_id, kind) DO NOTHING;
`,
		asset.ID,
		asset.UserID,
		asset.JobID,
		asset.Kind,
		asset.StoragePath,
		asset.ByteSize,
		nullableInt(asset.Width),
		nullableInt(asset.Height),
	)
	return err
}

// Get fetches an asset by id with a mandatory ownership check.
func (r *AssetRepositoryPG) Get(ctx context.Context, assetID, userID string) (*domain.Asset, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE id = $1 AND user_id = $2;`, assetID, userID)
	return scanAsset(row)
}

// GetByJobKind fetches the single asset of a kind attached to a job.
func (r *AssetRepositoryPG) GetByJobKind(ctx context.Context, jobID string, kind domain.AssetKind) (*domain.Asset, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM assets WHERE job_id = $1 AND kind = $2;`, jobID, kind)
	return scanAsset(row)
}

func scanAsset(row rowScanner) (*domain.Asset, error) {
	var asset domain.Asset
	var width, height *int
	if err := row.Scan(
		&asset.ID,
		&asset.UserID,
		&asset.JobID,
		&asset.Kind,
		&asset.StoragePath,
		&asset.ByteSize,
		&width,
		&height,
		&asset.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if width != nil {
		asset.Width = *width
	}
	if height != nil {
		asset.Height = *height
	}
	return &asset, nil
}

func nullableInt(n int) *int {
	if n == 0 {
		return nil
	}
	return &n
}

var _ domain.AssetRepository = (*AssetRepositoryPG)(nil)
