package portal

import (
	"context"

	"github.com/devmab24/imaginate-portal/internal/account"
	"github.com/devmab24/imaginate-portal/internal/models"
)

// AccountAPI is the account backend as the session manager sees it: session
// retrieval, credential operations and the push channel for asynchronous
// session changes.
type AccountAPI interface {
	GetSession(ctx context.Context) (*models.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*account.SignInResult, error)
	SignUp(ctx context.Context, email, password, displayName string) (*models.AuthUser, error)
	SignOut(ctx context.Context) error
	AuthorizeURL(provider, state string) (string, error)
	GetAuthUser(ctx context.Context, userID int64) (*models.AuthUser, error)
	SessionChanges() (<-chan account.SessionEvent, func())
}

// HistoryAPI is the generation and ledger backend as the history manager sees
// it. A nil userID marks an anonymous generation.
type HistoryAPI interface {
	Generate(ctx context.Context, userID *int64, prompt string) (*models.Asset, error)
	LoadHistory(ctx context.Context, userID int64) ([]models.Asset, error)
	ClearHistory(ctx context.Context, userID int64) (int64, error)
}
