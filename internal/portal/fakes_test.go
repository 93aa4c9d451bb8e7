package portal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devmab24/imaginate-portal/internal/account"
	"github.com/devmab24/imaginate-portal/internal/models"
)

type fakeAccount struct {
	broadcaster *account.Broadcaster

	mu               sync.Mutex
	session          *models.Session
	users            map[int64]*models.AuthUser
	signInResult     *account.SignInResult
	signInErr        error
	signUpErr        error
	signOutErr       error
	getAuthUserCalls int
	signOutCalls     int
	unsubscribes     int

	// When set, GetSession blocks until the channel is closed. Lets tests
	// stage the startup race deterministically.
	gateGetSession chan struct{}
}

func newFakeAccount() *fakeAccount {
	return &fakeAccount{
		broadcaster: account.NewBroadcaster(),
		users:       make(map[int64]*models.AuthUser),
	}
}

func (f *fakeAccount) GetSession(ctx context.Context) (*models.Session, error) {
	if f.gateGetSession != nil {
		select {
		case <-f.gateGetSession:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, nil
}

func (f *fakeAccount) SignInWithPassword(ctx context.Context, email, password string) (*account.SignInResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.signInResult, nil
}

func (f *fakeAccount) SignUp(ctx context.Context, email, password, displayName string) (*models.AuthUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.signUpErr != nil {
		return nil, f.signUpErr
	}
	return &models.AuthUser{ID: 99, Email: email, DisplayName: displayName}, nil
}

func (f *fakeAccount) SignOut(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOutCalls++
	return f.signOutErr
}

func (f *fakeAccount) AuthorizeURL(provider, state string) (string, error) {
	return "https://auth.example.com/" + provider + "?state=" + state, nil
}

func (f *fakeAccount) GetAuthUser(ctx context.Context, userID int64) (*models.AuthUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getAuthUserCalls++
	return f.users[userID], nil
}

func (f *fakeAccount) SessionChanges() (<-chan account.SessionEvent, func()) {
	ch, unsubscribe := f.broadcaster.Subscribe()
	return ch, func() {
		f.mu.Lock()
		f.unsubscribes++
		f.mu.Unlock()
		unsubscribe()
	}
}

func (f *fakeAccount) authUserCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.getAuthUserCalls
}

var _ AccountAPI = (*fakeAccount)(nil)

type fakeHistory struct {
	mu            sync.Mutex
	ledger        map[int64][]models.Asset
	generateCalls int
	persistFails  bool
	generateErr   error
	nextID        int
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{ledger: make(map[int64][]models.Asset)}
}

func (f *fakeHistory) Generate(ctx context.Context, userID *int64, prompt string) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}

	f.nextID++
	asset := models.Asset{
		ID:        fmt.Sprintf("asset-%d", f.nextID),
		Prompt:    prompt,
		ImageURL:  fmt.Sprintf("https://images.example.com/asset-%d", f.nextID),
		SourceURL: fmt.Sprintf("https://picsum.photos/seed/asset-%d/1024/1024", f.nextID),
		Width:     1024,
		Height:    1024,
		CreatedAt: time.Now(),
	}

	if userID != nil && !f.persistFails {
		asset.UserID = userID
		asset.Persisted = true
		f.ledger[*userID] = append([]models.Asset{asset}, f.ledger[*userID]...)
	}

	return &asset, nil
}

func (f *fakeHistory) LoadHistory(ctx context.Context, userID int64) ([]models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Asset, len(f.ledger[userID]))
	copy(out, f.ledger[userID])
	return out, nil
}

func (f *fakeHistory) ClearHistory(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := int64(len(f.ledger[userID]))
	delete(f.ledger, userID)
	return count, nil
}

func (f *fakeHistory) ledgerSize(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ledger[userID])
}

var _ HistoryAPI = (*fakeHistory)(nil)

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, message)
}

func (n *recordingNotifier) Error(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, message)
}

func (n *recordingNotifier) counts() (int, int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.successes), len(n.errors)
}
