package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/devmab24/imaginate-portal/internal/auth"
	"github.com/devmab24/imaginate-portal/internal/config"
	"github.com/devmab24/imaginate-portal/internal/database"
	"github.com/devmab24/imaginate-portal/internal/models"
	"github.com/devmab24/imaginate-portal/internal/websocket"
)

const minPasswordLength = 8

// Service owns account state: credentials, sessions, provider identities and
// the profile attached to an account. Every state-changing operation publishes
// exactly one session event.
type Service struct {
	store       *database.Store
	cfg         *config.Config
	hub         *websocket.Hub
	broadcaster *Broadcaster
	providers   map[string]OAuthProvider
	sanitizer   *bluemonday.Policy
	newToken    func() string
}

// SignInResult carries everything a freshly established session needs on the
// wire: the token pair, its expiry and the signed-in user projection.
type SignInResult struct {
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	ExpiresAt    time.Time        `json:"expires_at"`
	User         *models.AuthUser `json:"user"`
}

func NewService(store *database.Store, cfg *config.Config, hub *websocket.Hub) (*Service, error) {
	newToken, err := nanoid.Standard(40)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	providers := make(map[string]OAuthProvider)
	if cfg.OAuth.Google.ClientID != "" {
		providers["google"] = NewGoogleOAuthProvider(OAuthProviderConfig{
			ClientID:     cfg.OAuth.Google.ClientID,
			ClientSecret: cfg.OAuth.Google.ClientSecret,
			RedirectURL:  cfg.OAuth.Google.RedirectURL,
		})
	}
	if cfg.OAuth.Github.ClientID != "" {
		providers["github"] = NewGithubOAuthProvider(OAuthProviderConfig{
			ClientID:     cfg.OAuth.Github.ClientID,
			ClientSecret: cfg.OAuth.Github.ClientSecret,
			RedirectURL:  cfg.OAuth.Github.RedirectURL,
		})
	}

	return &Service{
		store:       store,
		cfg:         cfg,
		hub:         hub,
		broadcaster: NewBroadcaster(),
		providers:   providers,
		sanitizer:   bluemonday.StrictPolicy(),
		newToken:    newToken,
	}, nil
}

// Broadcaster exposes the in-process session-change channel.
func (s *Service) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// Provider resolves a configured OAuth provider by name.
func (s *Service) Provider(name string) (OAuthProvider, error) {
	provider, ok := s.providers[name]
	if !ok {
		return nil, ErrUnknownProvider
	}
	return provider, nil
}

func (s *Service) sessionTTL() time.Duration {
	hours := s.cfg.Auth.SessionTTLHours
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

// SignUp registers a password account and seeds its default profile with the
// optional display name. It does not establish a session: when confirmation
// is required the account stays unusable until the email is confirmed, and
// when it is not the caller signs in explicitly.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (*models.AuthUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") || len(email) < 3 {
		return nil, ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	displayName = strings.TrimSpace(s.sanitizer.Sanitize(displayName))

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	var confirmedAt *time.Time
	if !s.cfg.Auth.RequireEmailConfirmation {
		now := time.Now()
		confirmedAt = &now
	}

	var user *models.User
	txErr := s.store.ExecTx(ctx, func(q *database.Queries) error {
		created, err := q.CreateUser(ctx, database.CreateUserParams{
			Email:            email,
			PasswordHash:     hash,
			EmailConfirmedAt: confirmedAt,
		})
		if err != nil {
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

	au := models.ProjectAuthUser(user, nil)
	if displayName != "" {
		au.DisplayName = displayName
	}
	return au, nil
}

// SignInWithPassword authenticates a credential pair and opens a session.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) SignInWithPassword(ctx context.Context, email, password, userAgent, clientIP string) (*SignInResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || user.PasswordHash == "" || !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if s.cfg.Auth.RequireEmailConfirmation && user.EmailConfirmedAt == nil {
		return nil, ErrEmailNotConfirmed
	}

	return s.openSession(ctx, user, userAgent, clientIP)
}

// openSession issues the token pair, records the session row and publishes
// the SIGNED_IN event.
func (s *Service) openSession(ctx context.Context, user *models.User, userAgent, clientIP string) (*SignInResult, error) {
	accessToken, err := auth.GenerateJWT(user, s.cfg.JWT.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken := s.newToken()
	expiresAt := time.Now().Add(s.sessionTTL())

	session := &models.Session{
		ID:           uuid.New(),
		UserID:       user.ID,
		RefreshToken: refreshToken,
		UserAgent:    userAgent,
		ClientIP:     clientIP,
		ExpiresAt:    expiresAt,
	}
	err = s.store.CreateSession(ctx, database.CreateSessionParams{
		ID:           session.ID,
		UserID:       session.UserID,
		RefreshToken: session.RefreshToken,
		UserAgent:    session.UserAgent,
		ClientIP:     session.ClientIP,
		ExpiresAt:    session.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	if err := s.store.StampLastLogin(ctx, user.ID); err != nil {
		log.Printf("WARN: Failed to stamp last login for user %d: %v", user.ID, err)
	}

	authUser, err := s.GetAuthUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.publish(SessionEvent{Type: EventSignedIn, UserID: user.ID, Session: session})

	return &SignInResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiresAt,
		User:         authUser,
	}, nil
}

// SignOut revokes the session behind the refresh token. Revoking a token that
// no longer exists is not an error, so repeated sign-outs are safe.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	session, err := s.store.GetSessionByRefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	if err := s.store.DeleteSessionByRefreshToken(ctx, refreshToken); err != nil {
		return err
	}

	if session != nil {
		s.publish(SessionEvent{Type: EventSignedOut, UserID: session.UserID})
	}
	return nil
}

// GetSession resolves the current session for a refresh token. Absence and
// expiry both come back as nil, nil.
func (s *Service) GetSession(ctx context.Context, refreshToken string) (*models.Session, error) {
	if refreshToken == "" {
		return nil, nil
	}
	return s.store.GetSessionByRefreshToken(ctx, refreshToken)
}

// Refresh rotates the refresh token: the old session is consumed and a new
// one is issued atomically, so a replayed token cannot mint a second session.
func (s *Service) Refresh(ctx context.Context, refreshToken, userAgent, clientIP string) (*SignInResult, error) {
	var (
		user    *models.User
		session *models.Session
	)
	newRefreshToken := s.newToken()
	expiresAt := time.Now().Add(s.sessionTTL())

	txErr := s.store.ExecTx(ctx, func(q *database.Queries) error {
		found, err := q.GetUserByRefreshToken(ctx, refreshToken)
		if err != nil {
			return err
		}
		if found == nil {
			return ErrSessionNotFound
		}

		if err := q.DeleteSessionByRefreshToken(ctx, refreshToken); err != nil {
			return err
		}

		session = &models.Session{
			ID:           uuid.New(),
			UserID:       found.ID,
			RefreshToken: newRefreshToken,
			UserAgent:    userAgent,
			ClientIP:     clientIP,
			ExpiresAt:    expiresAt,
		}
		if err := q.CreateSession(ctx, database.CreateSessionParams{
			ID:           session.ID,
			UserID:       session.UserID,
			RefreshToken: session.RefreshToken,
			UserAgent:    session.UserAgent,
			ClientIP:     session.ClientIP,
			ExpiresAt:    session.ExpiresAt,
		}); err != nil {
			return err
		}

		user = found
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	accessToken, err := auth.GenerateJWT(user, s.cfg.JWT.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	authUser, err := s.GetAuthUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	s.publish(SessionEvent{Type: EventTokenRefreshed, UserID: user.ID, Session: session})

	return &SignInResult{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		ExpiresAt:    expiresAt,
		User:         authUser,
	}, nil
}

// HandleOAuthCallback finishes a provider flow: the code is exchanged for an
// identity, the identity is matched to an account (creating or linking one as
// needed) and a session is opened.
func (s *Service) HandleOAuthCallback(ctx context.Context, providerName, code, userAgent, clientIP string) (*SignInResult, error) {
	provider, err := s.Provider(providerName)
	if err != nil {
		return nil, err
	}

	info, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByIdentity(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return nil, err
	}

	if user == nil {
		email := strings.ToLower(strings.TrimSpace(info.Email))
		user, err = s.store.CreateUserWithIdentity(ctx, email, info.Provider, info.ProviderUserID, info.Name)
		if errors.Is(err, database.ErrEmailTaken) {
			// A password account already owns this email. Link the provider
			// identity to it instead of creating a duplicate account.
			user, err = s.linkIdentity(ctx, email, info)
		}
		if err != nil {
			return nil, err
		}
	}

	return s.openSession(ctx, user, userAgent, clientIP)
}

func (s *Service) linkIdentity(ctx context.Context, email string, info *OAuthUserInfo) (*models.User, error) {
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("account for %s disappeared during identity linking", email)
	}

	err = s.store.CreateIdentity(ctx, database.CreateIdentityParams{
		ID:             uuid.New(),
		UserID:         user.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
	})
	if err != nil && !errors.Is(err, database.ErrIdentityTaken) {
		return nil, err
	}
	return user, nil
}

// GetAuthUser returns the client-facing projection of an account, or nil when
// the account no longer exists.
func (s *Service) GetAuthUser(ctx context.Context, userID int64) (*models.AuthUser, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	profile, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	return models.ProjectAuthUser(user, profile), nil
}

// UpdateProfile applies a partial profile update. All free-text fields pass
// through the strict HTML sanitizer before they are stored.
func (s *Service) UpdateProfile(ctx context.Context, userID int64, params database.UpdateProfileParams) (*models.AuthUser, error) {
	params.DisplayName = s.sanitizeField(params.DisplayName)
	params.AvatarURL = s.sanitizeField(params.AvatarURL)
	params.Bio = s.sanitizeField(params.Bio)
	params.Website = s.sanitizeField(params.Website)
	params.Location = s.sanitizeField(params.Location)

	profile, err := s.store.UpdateProfile(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user %d not found after profile update", userID)
	}

	return models.ProjectAuthUser(user, profile), nil
}

func (s *Service) sanitizeField(value *string) *string {
	if value == nil {
		return nil
	}
	clean := strings.TrimSpace(s.sanitizer.Sanitize(*value))
	return &clean
}

// publish delivers one event to in-process subscribers and to the user's open
// websocket connections.
func (s *Service) publish(event SessionEvent) {
	s.broadcaster.Publish(event)

	if s.hub == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("ERROR: Failed to encode session event for user %d: %v", event.UserID, err)
		return
	}
	s.hub.PublishSessionEvent(event.UserID, data)
}
