package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/devmab24/imaginate-portal/internal/account"
)

const oauthStateCookie = "imaginate_oauth_state"

// @Summary      Start an OAuth sign-in
// @Description  Redirects the browser to the provider's consent page. The state parameter is mirrored in a short-lived cookie.
// @Tags         auth
// @Param        provider   path   string  true  "Provider name (google or github)"
// @Success      302  {string}  string "Redirect to the provider"
// @Failure      404  {string}  string "Unknown provider"
// @Router       /auth/oauth/{provider} [get]
func (s *Server) OAuthRedirectHandler(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	provider, err := s.accounts.Provider(providerName)
	if err != nil {
		http.Error(w, "Unknown provider", http.StatusNotFound)
		return
	}

	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthorizeURL(state), http.StatusFound)
}

// @Summary      Finish an OAuth sign-in
// @Description  Exchanges the provider code for a local session and redirects back to the app with the token pair in the fragment.
// @Tags         auth
// @Param        provider   path    string  true   "Provider name (google or github)"
// @Param        code       query   string  true   "Authorization code"
// @Param        state      query   string  true   "State echoed by the provider"
// @Success      302  {string}  string "Redirect back to the application"
// @Failure      400  {string}  string "Missing code or state mismatch"
// @Failure      404  {string}  string "Unknown provider"
// @Failure      502  {string}  string "Provider exchange failed"
// @Router       /auth/oauth/{provider}/callback [get]
func (s *Server) OAuthCallbackHandler(w http.ResponseWriter, r *http.Request) {
	providerName := chi.URLParam(r, "provider")
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" {
		http.Error(w, "Missing authorization code", http.StatusBadRequest)
		return
	}
	cookie, err := r.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != state {
		http.Error(w, "State mismatch", http.StatusBadRequest)
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{Name: oauthStateCookie, Value: "", Path: "/", MaxAge: -1})

	result, err := s.accounts.HandleOAuthCallback(r.Context(), providerName, code, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		if errors.Is(err, account.ErrUnknownProvider) {
			http.Error(w, "Unknown provider", http.StatusNotFound)
			return
		}
		log.Printf("ERROR: OAuth callback for %s failed: %v", providerName, err)
		http.Error(w, "Provider sign-in failed", http.StatusBadGateway)
		return
	}

	if s.config.AppHost == "" {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
		return
	}

	fragment := url.Values{
		"access_token":  {result.AccessToken},
		"refresh_token": {result.RefreshToken},
	}
	http.Redirect(w, r, s.config.AppHost+"/#"+fragment.Encode(), http.StatusFound)
}
