package portal

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/devmab24/imaginate-portal/internal/account"
	"github.com/devmab24/imaginate-portal/internal/database"
	"github.com/devmab24/imaginate-portal/internal/models"
)

// State is the authentication state of the portal.
type State string

const (
	// StateUnknown holds until the startup session fetch or the first change
	// event resolves.
	StateUnknown       State = "unknown"
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// SessionManager is the single source of truth for who is signed in and the
// only gateway to account mutation. It is owned by the application root and
// torn down with Close.
//
// The startup session fetch and the change-event subscription race; every
// local mutation bumps a sequence counter and the fetch result is discarded
// when the counter moved while it was in flight, so a change event can never
// be overwritten by a stale fetch.
type SessionManager struct {
	api      AccountAPI
	notifier Notifier

	mu        sync.Mutex
	state     State
	user      *models.AuthUser
	session   *models.Session
	loading   bool
	seq       uint64
	listeners []func(State, *models.AuthUser)

	unsubscribe func()
	closeOnce   sync.Once
	done        chan struct{}
	wg          sync.WaitGroup
}

func NewSessionManager(api AccountAPI, notifier Notifier) *SessionManager {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &SessionManager{
		api:      api,
		notifier: notifier,
		state:    StateUnknown,
		loading:  true,
		done:     make(chan struct{}),
	}
}

// Start subscribes to session changes and kicks off the initial session
// fetch. It returns immediately; the state settles asynchronously.
func (m *SessionManager) Start(ctx context.Context) {
	events, unsubscribe := m.api.SessionChanges()
	m.unsubscribe = unsubscribe

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-m.done:
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				m.applyEvent(ctx, event)
			}
		}
	}()

	m.mu.Lock()
	startSeq := m.seq
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		session, err := m.api.GetSession(ctx)
		m.applyInitialFetch(ctx, startSeq, session, err)
	}()
}

// Close releases the change-event subscription exactly once and stops the
// background goroutines.
func (m *SessionManager) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	})
	m.wg.Wait()
}

// OnChange registers a listener invoked after every state transition.
// Listeners must be registered before Start.
func (m *SessionManager) OnChange(fn func(State, *models.AuthUser)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *SessionManager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *SessionManager) User() *models.AuthUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user
}

func (m *SessionManager) Session() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

func (m *SessionManager) IsAuthenticated() bool {
	return m.State() == StateAuthenticated
}

// IsLoading reports whether the startup race has settled.
func (m *SessionManager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading
}

// Login delegates the credential check and transitions to Authenticated on
// success. A failed login leaves the state untouched and emits exactly one
// failure notification.
func (m *SessionManager) Login(ctx context.Context, email, password string) error {
	result, err := m.api.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.notifier.Error(loginErrorMessage(err))
		return err
	}

	session := &models.Session{
		UserID:       result.User.ID,
		RefreshToken: result.RefreshToken,
		ExpiresAt:    result.ExpiresAt,
	}
	m.setAuthenticated(result.User, session)
	m.notifier.Success("Welcome back, " + result.User.DisplayName)
	return nil
}

// Signup registers an account. It never transitions the state itself: the
// transition arrives through the change-notification channel once the
// account is usable.
func (m *SessionManager) Signup(ctx context.Context, email, password, displayName string) error {
	_, err := m.api.SignUp(ctx, email, password, displayName)
	if err != nil {
		m.notifier.Error(signupErrorMessage(err))
		return err
	}
	m.notifier.Success("Account created. Check your inbox to confirm your email address.")
	return nil
}

// LoginWithGoogle returns the provider redirect URL. No local transition
// happens here; the OAuth callback re-enters via the change channel.
func (m *SessionManager) LoginWithGoogle() (string, error) {
	return m.providerRedirect("google", "Google")
}

// LoginWithGithub returns the provider redirect URL.
func (m *SessionManager) LoginWithGithub() (string, error) {
	return m.providerRedirect("github", "GitHub")
}

func (m *SessionManager) providerRedirect(provider, label string) (string, error) {
	url, err := m.api.AuthorizeURL(provider, uuid.New().String())
	if err != nil {
		m.notifier.Error(label + " sign-in is currently unavailable")
		return "", err
	}
	return url, nil
}

// Logout clears the local session unconditionally. Even when the remote
// sign-out fails the state still becomes Anonymous, so the UI can never get
// stuck authenticated.
func (m *SessionManager) Logout(ctx context.Context) error {
	err := m.api.SignOut(ctx)
	m.setAnonymous()

	if err != nil {
		m.notifier.Error("Sign out did not reach the server. You have been signed out locally.")
		return err
	}
	m.notifier.Success("Signed out")
	return nil
}

// RefreshUser re-fetches the profile projection. It is a no-op while not
// authenticated: no network call, no state change.
func (m *SessionManager) RefreshUser(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateAuthenticated || m.user == nil {
		m.mu.Unlock()
		return nil
	}
	userID := m.user.ID
	m.mu.Unlock()

	user, err := m.api.GetAuthUser(ctx, userID)
	if err != nil {
		log.Printf("WARN: Failed to refresh user %d: %v", userID, err)
		return err
	}
	if user == nil {
		return nil
	}

	m.mu.Lock()
	if m.state == StateAuthenticated && m.user != nil && m.user.ID == userID {
		m.user = user
		m.seq++
	}
	state, snapshot := m.state, m.user
	listeners := append([]func(State, *models.AuthUser){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(state, snapshot)
	}
	return nil
}

func (m *SessionManager) setAuthenticated(user *models.AuthUser, session *models.Session) {
	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = user
	m.session = session
	m.loading = false
	m.seq++
	listeners := append([]func(State, *models.AuthUser){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(StateAuthenticated, user)
	}
}

func (m *SessionManager) setAnonymous() {
	m.mu.Lock()
	m.state = StateAnonymous
	m.user = nil
	m.session = nil
	m.loading = false
	m.seq++
	listeners := append([]func(State, *models.AuthUser){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(StateAnonymous, nil)
	}
}

// applyEvent folds one pushed session change into local state. The event
// fully supersedes whatever is cached.
func (m *SessionManager) applyEvent(ctx context.Context, event account.SessionEvent) {
	// Bump the sequence first so an in-flight startup fetch is invalidated
	// even while the user projection is still being fetched.
	m.mu.Lock()
	m.seq++
	m.mu.Unlock()

	switch event.Type {
	case account.EventSignedOut:
		m.setAnonymous()
	case account.EventSignedIn, account.EventTokenRefreshed:
		user, err := m.api.GetAuthUser(ctx, event.UserID)
		if err != nil {
			log.Printf("WARN: Failed to project user %d for session event: %v", event.UserID, err)
			user = &models.AuthUser{ID: event.UserID}
		}
		if user == nil {
			m.setAnonymous()
			return
		}
		m.setAuthenticated(user, event.Session)
	}
}

// applyInitialFetch settles the startup race. When the sequence moved while
// the fetch was in flight, a change event has already won and the fetch
// result is discarded; only the loading flag is cleared.
func (m *SessionManager) applyInitialFetch(ctx context.Context, startSeq uint64, session *models.Session, err error) {
	var user *models.AuthUser
	if err == nil && session != nil {
		user, err = m.api.GetAuthUser(ctx, session.UserID)
	}

	if err != nil {
		log.Printf("WARN: Initial session fetch failed: %v", err)
	}

	m.mu.Lock()
	if m.seq != startSeq {
		m.loading = false
		m.mu.Unlock()
		return
	}

	if err != nil || session == nil || user == nil {
		m.state = StateAnonymous
		m.user = nil
		m.session = nil
	} else {
		m.state = StateAuthenticated
		m.user = user
		m.session = session
	}
	m.loading = false
	m.seq++
	state, snapshot := m.state, m.user
	listeners := append([]func(State, *models.AuthUser){}, m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(state, snapshot)
	}
}

func loginErrorMessage(err error) string {
	switch {
	case errors.Is(err, account.ErrInvalidCredentials):
		return "Invalid email or password"
	case errors.Is(err, account.ErrEmailNotConfirmed):
		return "Please confirm your email address before signing in"
	default:
		return "Sign in failed. Please try again."
	}
}

func signupErrorMessage(err error) string {
	switch {
	case errors.Is(err, account.ErrInvalidEmail):
		return "Please enter a valid email address"
	case errors.Is(err, account.ErrPasswordTooShort):
		return "Password must be at least 8 characters"
	case errors.Is(err, database.ErrEmailTaken):
		return "An account with this email already exists"
	default:
		return "Sign up failed. Please try again."
	}
}
