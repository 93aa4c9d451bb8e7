package portal

import (
	"context"
	"sync"

	"github.com/devmab24/imaginate-portal/internal/account"
	"github.com/devmab24/imaginate-portal/internal/models"
)

// LocalBackend adapts the in-process account service to the AccountAPI the
// session manager consumes. It plays the role of the client's credential
// storage: the refresh token of the session it opened is kept here and used
// for session retrieval and sign-out.
type LocalBackend struct {
	svc       *account.Service
	userAgent string
	clientIP  string

	mu           sync.Mutex
	refreshToken string
}

func NewLocalBackend(svc *account.Service, userAgent, clientIP string) *LocalBackend {
	return &LocalBackend{
		svc:       svc,
		userAgent: userAgent,
		clientIP:  clientIP,
	}
}

func (b *LocalBackend) token() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.refreshToken
}

func (b *LocalBackend) setToken(token string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshToken = token
}

func (b *LocalBackend) GetSession(ctx context.Context) (*models.Session, error) {
	return b.svc.GetSession(ctx, b.token())
}

func (b *LocalBackend) SignInWithPassword(ctx context.Context, email, password string) (*account.SignInResult, error) {
	result, err := b.svc.SignInWithPassword(ctx, email, password, b.userAgent, b.clientIP)
	if err != nil {
		return nil, err
	}
	b.setToken(result.RefreshToken)
	return result, nil
}

func (b *LocalBackend) SignUp(ctx context.Context, email, password, displayName string) (*models.AuthUser, error) {
	return b.svc.SignUp(ctx, email, password, displayName)
}

func (b *LocalBackend) SignOut(ctx context.Context) error {
	token := b.token()
	b.setToken("")
	if token == "" {
		return nil
	}
	return b.svc.SignOut(ctx, token)
}

func (b *LocalBackend) AuthorizeURL(provider, state string) (string, error) {
	p, err := b.svc.Provider(provider)
	if err != nil {
		return "", err
	}
	return p.AuthorizeURL(state), nil
}

func (b *LocalBackend) GetAuthUser(ctx context.Context, userID int64) (*models.AuthUser, error) {
	return b.svc.GetAuthUser(ctx, userID)
}

func (b *LocalBackend) SessionChanges() (<-chan account.SessionEvent, func()) {
	return b.svc.Broadcaster().Subscribe()
}

var _ AccountAPI = (*LocalBackend)(nil)
