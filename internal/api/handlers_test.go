package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devmab24/imaginate-portal/internal/account"
	"github.com/devmab24/imaginate-portal/internal/auth"
	"github.com/devmab24/imaginate-portal/internal/database"
	"github.com/devmab24/imaginate-portal/internal/models"
)

func doJSON(t *testing.T, handler http.HandlerFunc, method, target string, body any, claims *auth.AppClaims) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if claims != nil {
		req = req.WithContext(context.WithValue(req.Context(), userContextKey, claims))
	}

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

func signupTestAccount(t *testing.T, label string) (*models.AuthUser, string) {
	t.Helper()
	email := fmt.Sprintf("%s@example.com", label)

	rr := doJSON(t, testServer.SignupHandler, http.MethodPost, "/api/v1/auth/signup", SignupRequest{
		Email:    email,
		Password: "password123",
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var user models.AuthUser
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
	return &user, email
}

func loginTestAccount(t *testing.T, email string) *account.SignInResult {
	t.Helper()
	rr := doJSON(t, testServer.LoginHandler, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Email:    email,
		Password: "password123",
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var result account.SignInResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
	return &result
}

func claimsFor(user *models.AuthUser) *auth.AppClaims {
	return &auth.AppClaims{UserID: user.ID, Email: user.Email}
}

func TestSignupHandler(t *testing.T) {
	user, email := signupTestAccount(t, "handler_signup")
	require.Equal(t, email, user.Email)
	require.Equal(t, models.DefaultSubscriptionTier, user.SubscriptionTier)
	require.Equal(t, models.DefaultCreditBalance, user.CreditBalance)

	// Drugi raz ten sam email.
	rr := doJSON(t, testServer.SignupHandler, http.MethodPost, "/api/v1/auth/signup", SignupRequest{
		Email: email, Password: "password123",
	}, nil)
	require.Equal(t, http.StatusConflict, rr.Code)
}

func TestSignupHandlerRejectsWeakInput(t *testing.T) {
	rr := doJSON(t, testServer.SignupHandler, http.MethodPost, "/api/v1/auth/signup", SignupRequest{
		Email: "not-an-email", Password: "password123",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, testServer.SignupHandler, http.MethodPost, "/api/v1/auth/signup", SignupRequest{
		Email: "short@example.com", Password: "short",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginHandler(t *testing.T) {
	_, email := signupTestAccount(t, "handler_login")

	result := loginTestAccount(t, email)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)
	require.Len(t, result.RefreshToken, 40)
	require.NotNil(t, result.User)
	require.Equal(t, email, result.User.Email)

	claims, err := auth.VerifyJWT(result.AccessToken, testServer.config.JWT.Secret)
	require.NoError(t, err)
	require.Equal(t, result.User.ID, claims.UserID)
}

func TestLoginHandlerInvalidCredentials(t *testing.T) {
	_, email := signupTestAccount(t, "handler_badlogin")

	rr := doJSON(t, testServer.LoginHandler, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Email: email, Password: "wrong-password",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, testServer.LoginHandler, http.MethodPost, "/api/v1/auth/login", LoginRequest{
		Email: "ghost@example.com", Password: "password123",
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code, "unknown email is indistinguishable from a wrong password")
}

func TestRefreshTokenRotation(t *testing.T) {
	_, email := signupTestAccount(t, "handler_refresh")
	result := loginTestAccount(t, email)

	rr := doJSON(t, testServer.RefreshTokenHandler, http.MethodPost, "/api/v1/auth/refresh", RefreshTokenRequest{
		RefreshToken: result.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var rotated account.SignInResult
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&rotated))
	require.NotEqual(t, result.RefreshToken, rotated.RefreshToken)

	// Zużyty token nie działa drugi raz.
	rr = doJSON(t, testServer.RefreshTokenHandler, http.MethodPost, "/api/v1/auth/refresh", RefreshTokenRequest{
		RefreshToken: result.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogoutHandler(t *testing.T) {
	_, email := signupTestAccount(t, "handler_logout")
	result := loginTestAccount(t, email)

	rr := doJSON(t, testServer.LogoutHandler, http.MethodPost, "/api/v1/auth/logout", RefreshTokenRequest{
		RefreshToken: result.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)

	rr = doJSON(t, testServer.GetSessionHandler, http.MethodPost, "/api/v1/auth/session", RefreshTokenRequest{
		RefreshToken: result.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusNoContent, rr.Code, "the session is gone")

	// Wylogowanie z nieznanym tokenem też się udaje.
	rr = doJSON(t, testServer.LogoutHandler, http.MethodPost, "/api/v1/auth/logout", RefreshTokenRequest{
		RefreshToken: result.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
}

func TestGetSessionHandler(t *testing.T) {
	_, email := signupTestAccount(t, "handler_session")
	result := loginTestAccount(t, email)

	rr := doJSON(t, testServer.GetSessionHandler, http.MethodPost, "/api/v1/auth/session", RefreshTokenRequest{
		RefreshToken: result.RefreshToken,
	}, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var session models.Session
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&session))
	require.Equal(t, result.User.ID, session.UserID)
}

func TestGetCurrentUserHandler(t *testing.T) {
	user, email := signupTestAccount(t, "handler_me")

	rr := doJSON(t, testServer.GetCurrentUserHandler, http.MethodGet, "/api/v1/me", nil, claimsFor(user))
	require.Equal(t, http.StatusOK, rr.Code)

	var me models.AuthUser
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&me))
	require.Equal(t, email, me.Email)
	require.Equal(t, "handler_me", me.DisplayName, "display name falls back to the email local part")

	rr = doJSON(t, testServer.GetCurrentUserHandler, http.MethodGet, "/api/v1/me", nil, nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestUpdateProfileHandlerSanitizesInput(t *testing.T) {
	user, _ := signupTestAccount(t, "handler_profile")

	bio := `Painter of prompts <script>alert("xss")</script>`
	name := "Ala"
	rr := doJSON(t, testServer.UpdateProfileHandler, http.MethodPatch, "/api/v1/me/profile", UpdateProfileRequest{
		DisplayName: &name,
		Bio:         &bio,
	}, claimsFor(user))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var updated models.AuthUser
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&updated))
	require.Equal(t, "Ala", updated.DisplayName)
	require.Equal(t, "Painter of prompts", updated.Bio)
	require.NotContains(t, updated.Bio, "<script>")
}

func TestGenerateImageHandlerRejectsBlankPrompt(t *testing.T) {
	rr := doJSON(t, testServer.GenerateImageHandler, http.MethodPost, "/api/v1/generate", GenerateRequest{
		Prompt: "   ",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGenerateImageHandlerAnonymous(t *testing.T) {
	rr := doJSON(t, testServer.GenerateImageHandler, http.MethodPost, "/api/v1/generate", GenerateRequest{
		Prompt: "a red fox",
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var asset models.Asset
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&asset))
	require.Equal(t, "a red fox", asset.Prompt)
	require.NotEmpty(t, asset.ImageURL)
	require.False(t, asset.Persisted)

	exists, err := testStore.AssetExists(context.Background(), asset.ID)
	require.NoError(t, err)
	require.False(t, exists, "anonymous generations never reach the ledger")
}

func TestHistoryHandlers(t *testing.T) {
	user, _ := signupTestAccount(t, "handler_history")

	for i, prompt := range []string{"first prompt", "second prompt"} {
		_, err := testStore.CreateAsset(context.Background(), database.CreateAssetParams{
			ID:          fmt.Sprintf("handler_history_%05d", i),
			UserID:      user.ID,
			Prompt:      prompt,
			SourceURL:   "https://picsum.photos/seed/h/1024/1024",
			StoragePath: fmt.Sprintf("%d/handler_history_%05d.jpg", user.ID, i),
			Width:       1024,
			Height:      1024,
		})
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	rr := doJSON(t, testServer.ListHistoryHandler, http.MethodGet, "/api/v1/history", nil, claimsFor(user))
	require.Equal(t, http.StatusOK, rr.Code)

	var assets []models.Asset
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&assets))
	require.Len(t, assets, 2)
	require.Equal(t, "second prompt", assets[0].Prompt)
	require.Equal(t, "first prompt", assets[1].Prompt)
	require.Contains(t, assets[0].ImageURL, "sig=", "history rows carry signed URLs")

	rr = doJSON(t, testServer.ClearHistoryHandler, http.MethodDelete, "/api/v1/history", nil, claimsFor(user))
	require.Equal(t, http.StatusOK, rr.Code)

	var cleared ClearHistoryResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&cleared))
	require.Equal(t, int64(2), cleared.Deleted)

	rr = doJSON(t, testServer.ClearHistoryHandler, http.MethodDelete, "/api/v1/history", nil, claimsFor(user))
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&cleared))
	require.Equal(t, int64(0), cleared.Deleted, "clearing an empty history is a no-op")
}

func TestServeAssetHandler(t *testing.T) {
	payload := []byte("fake image bytes")
	require.NoError(t, testObjects.Save("77/served_asset.jpg", bytes.NewReader(payload)))

	signed, err := testObjects.SignedURL("/api/assets/image", "77/served_asset.jpg")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, signed, nil)
	rr := httptest.NewRecorder()
	testServer.ServeAssetHandler(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, payload, rr.Body.Bytes())
	require.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))

	// Podrobiony podpis.
	tampered := strings.Replace(signed, "sig=", "sig=ff", 1)
	req = httptest.NewRequest(http.MethodGet, tampered, nil)
	rr = httptest.NewRecorder()
	testServer.ServeAssetHandler(rr, req)
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestAuthMiddleware(t *testing.T) {
	protected := testServer.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := GetUserFromContext(r.Context())
		require.NotNil(t, claims)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	rr := httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "NotBearer xyz")
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	user, _ := signupTestAccount(t, "handler_middleware")
	token, err := auth.GenerateJWT(&models.User{ID: user.ID, Email: user.Email}, testServer.config.JWT.Secret)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr = httptest.NewRecorder()
	protected.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
}
