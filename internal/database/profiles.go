package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/devmab24/imaginate-portal/internal/models"
)

func (q *Queries) GetProfile(ctx context.Context, userID int64) (*models.Profile, error) {
	query := `
		SELECT user_id, display_name, avatar_url, bio, website, location,
		       subscription_tier, credit_balance, updated_at
		FROM profiles
		WHERE user_id = $1
	`
	var profile models.Profile
	err := q.db.QueryRow(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.Bio,
		&profile.Website,
		&profile.Location,
		&profile.SubscriptionTier,
		&profile.CreditBalance,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &profile, nil
}

func (q *Queries) CreateDefaultProfile(ctx context.Context, userID int64, displayName string) error {
	query := `
		INSERT INTO profiles (user_id, display_name, subscription_tier, credit_balance)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := q.db.Exec(ctx, query, userID, displayName, models.DefaultSubscriptionTier, models.DefaultCreditBalance)
	return err
}

type UpdateProfileParams struct {
	DisplayName *string
	AvatarURL   *string
	Bio         *string
	Website     *string
	Location    *string
}

// UpdateProfile applies a partial update: nil fields keep their stored value.
// The row is created on the fly for accounts that predate the profiles table.
func (q *Queries) UpdateProfile(ctx context.Context, userID int64, arg UpdateProfileParams) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (user_id, display_name, avatar_url, bio, website, location)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = COALESCE($2, profiles.display_name),
			avatar_url   = COALESCE($3, profiles.avatar_url),
			bio          = COALESCE($4, profiles.bio),
			website      = COALESCE($5, profiles.website),
			location     = COALESCE($6, profiles.location),
			updated_at   = now()
		RETURNING user_id, display_name, avatar_url, bio, website, location,
		          subscription_tier, credit_balance, updated_at
	`
	var profile models.Profile
	err := q.db.QueryRow(ctx, query, userID,
		arg.DisplayName, arg.AvatarURL, arg.Bio, arg.Website, arg.Location,
	).Scan(
		&profile.UserID,
		&profile.DisplayName,
		&profile.AvatarURL,
		&profile.Bio,
		&profile.Website,
		&profile.Location,
		&profile.SubscriptionTier,
		&profile.CreditBalance,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &profile, nil
}
