package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/devmab24/imaginate-portal/internal/models"
)

var ErrIdentityTaken = errors.New("this provider identity is already linked to an account")

type CreateIdentityParams struct {
	ID             uuid.UUID
	UserID         int64
	Provider       string
	ProviderUserID string
}

func (q *Queries) CreateIdentity(ctx context.Context, arg CreateIdentityParams) error {
	query := `
		INSERT INTO identities (id, user_id, provider, provider_user_id)
		VALUES ($1, $2, $3, $4)
	`
	_, err := q.db.Exec(ctx, query, arg.ID, arg.UserID, arg.Provider, arg.ProviderUserID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdentityTaken
		}
		return err
	}
	return nil
}

func (q *Queries) GetUserByIdentity(ctx context.Context, provider, providerUserID string) (*models.User, error) {
	query := `
		SELECT u.id, u.email, u.password_hash, u.email_confirmed_at, u.last_login_at, u.created_at
		FROM users u
		JOIN identities i ON u.id = i.user_id
		WHERE i.provider = $1 AND i.provider_user_id = $2
	`
	var user models.User
	err := q.db.QueryRow(ctx, query, provider, providerUserID).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.EmailConfirmedAt, &user.LastLoginAt, &user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// CreateUserWithIdentity creates the account row, the linked provider
// identity and the default profile in one transaction. OAuth accounts are
// confirmed by the provider, so email_confirmed_at is stamped immediately.
func (s *Store) CreateUserWithIdentity(ctx context.Context, email, provider, providerUserID, displayName string) (*models.User, error) {
	var user *models.User

	txErr := s.ExecTx(ctx, func(q *Queries) error {
		now := time.Now()
		created, err := q.CreateUser(ctx, CreateUserParams{
			Email:            email,
			PasswordHash:     "",
			EmailConfirmedAt: &now,
		})
		if err != nil {
			return err
		}

		if err := q.CreateIdentity(ctx, CreateIdentityParams{
			ID:             uuid.New(),
			UserID:         created.ID,
			Provider:       provider,
			ProviderUserID: providerUserID,
		}); err != nil {
			return err
		}

		if err := q.CreateDefaultProfile(ctx, created.ID, displayName); err != nil {
			return err
		}

		user = created
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	return user, nil
}
