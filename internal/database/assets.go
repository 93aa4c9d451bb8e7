package database

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/devmab24/imaginate-portal/internal/models"
)

var ErrDuplicateAssetID = errors.New("an asset with this id already exists")

type CreateAssetParams struct {
	ID          string
	UserID      int64
	Prompt      string
	SourceURL   string
	StoragePath string
	Width       int
	Height      int
}

func (q *Queries) CreateAsset(ctx context.Context, arg CreateAssetParams) (*models.Asset, error) {
	query := `
		INSERT INTO assets (id, user_id, prompt, source_url, storage_path, width, height, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, user_id, prompt, source_url, storage_path, width, height, created_at
	`
	now := time.Now()

	var asset models.Asset
	var userID int64
	var storagePath string
	err := q.db.QueryRow(ctx, query,
		arg.ID, arg.UserID, arg.Prompt, arg.SourceURL, arg.StoragePath, arg.Width, arg.Height, now,
	).Scan(
		&asset.ID,
		&userID,
		&asset.Prompt,
		&asset.SourceURL,
		&storagePath,
		&asset.Width,
		&asset.Height,
		&asset.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateAssetID
		}
		return nil, err
	}

	asset.UserID = &userID
	asset.StoragePath = &storagePath
	asset.Persisted = true

	return &asset, nil
}

func (q *Queries) AssetExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := "SELECT EXISTS(SELECT 1 FROM assets WHERE id = $1)"
	err := q.db.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ListAssetsByUser returns the full history for a user, newest first.
func (q *Queries) ListAssetsByUser(ctx context.Context, userID int64) ([]models.Asset, error) {
	query := `
		SELECT id, user_id, prompt, source_url, storage_path, width, height, created_at
		FROM assets
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := q.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []models.Asset
	for rows.Next() {
		var asset models.Asset
		var ownerID int64
		var storagePath string
		if err := rows.Scan(
			&asset.ID,
			&ownerID,
			&asset.Prompt,
			&asset.SourceURL,
			&storagePath,
			&asset.Width,
			&asset.Height,
			&asset.CreatedAt,
		); err != nil {
			return nil, err
		}
		asset.UserID = &ownerID
		asset.StoragePath = &storagePath
		asset.Persisted = true
		assets = append(assets, asset)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if assets == nil {
		return []models.Asset{}, nil
	}

	return assets, nil
}

func (q *Queries) GetAssetByID(ctx context.Context, id string) (*models.Asset, error) {
	query := `
		SELECT id, user_id, prompt, source_url, storage_path, width, height, created_at
		FROM assets
		WHERE id = $1
	`
	var asset models.Asset
	var ownerID int64
	var storagePath string
	err := q.db.QueryRow(ctx, query, id).Scan(
		&asset.ID,
		&ownerID,
		&asset.Prompt,
		&asset.SourceURL,
		&storagePath,
		&asset.Width,
		&asset.Height,
		&asset.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	asset.UserID = &ownerID
	asset.StoragePath = &storagePath
	asset.Persisted = true
	return &asset, nil
}

// DeleteAssetsByUser removes all ledger rows for a user and returns how many
// were deleted. Object cleanup is the caller's responsibility and happens
// before this call.
func (q *Queries) DeleteAssetsByUser(ctx context.Context, userID int64) (int64, error) {
	query := `DELETE FROM assets WHERE user_id = $1`
	res, err := q.db.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}
