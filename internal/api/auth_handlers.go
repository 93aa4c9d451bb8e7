package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/devmab24/imaginate-portal/internal/account"
	"github.com/devmab24/imaginate-portal/internal/database"
)

type SignupRequest struct {
	Email       string `json:"email" example:"ala@example.com"`
	Password    string `json:"password" example:"password123"`
	DisplayName string `json:"display_name,omitempty" example:"Ala"`
}

// @Summary      Register a new account
// @Description  Creates a password account with a default profile. Does not sign the user in; confirmation may be required first.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        signupRequest   body      SignupRequest  true  "Registration data"
// @Success      201             {object}  models.AuthUser
// @Failure      400             {string}  string "Invalid request body or weak credentials"
// @Failure      409             {string}  string "Email already registered"
// @Failure      500             {string}  string "Internal Server Error"
// @Router       /auth/signup [post]
func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.accounts.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidEmail), errors.Is(err, account.ErrPasswordTooShort):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, database.ErrEmailTaken):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			log.Printf("ERROR: Signup failed: %v", err)
			http.Error(w, "Failed to create account", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

type LoginRequest struct {
	Email    string `json:"email" example:"ala@example.com"`
	Password string `json:"password" example:"password123"`
}

// @Summary      Sign a user in
// @Description  Checks credentials and returns a short-lived access token, a long-lived refresh token and the user projection.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        loginRequest   body      LoginRequest  true  "Login Credentials"
// @Success      200            {object}  account.SignInResult
// @Failure      400            {string}  string "Invalid request body"
// @Failure      401            {string}  string "Invalid email or password"
// @Failure      403            {string}  string "Email not confirmed"
// @Failure      500            {string}  string "Internal Server Error"
// @Router       /auth/login [post]
func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.accounts.SignInWithPassword(r.Context(), req.Email, req.Password, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		switch {
		case errors.Is(err, account.ErrInvalidCredentials):
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
		case errors.Is(err, account.ErrEmailNotConfirmed):
			http.Error(w, "Email address has not been confirmed", http.StatusForbidden)
		default:
			log.Printf("ERROR: Login failed for %s: %v", req.Email, err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" example:"V1StGXR8_Z5jdHi6B-myT78q_Z5jdHi6B-myT78q"`
}

// @Summary      Refresh access token
// @Description  Exchanges a valid refresh token for a new token pair. Implements refresh token rotation.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        refreshTokenRequest   body      RefreshTokenRequest  true  "Refresh Token"
// @Success      200                   {object}  account.SignInResult
// @Failure      400                   {string}  string "Invalid request body or missing token"
// @Failure      401                   {string}  string "Invalid or expired refresh token"
// @Failure      500                   {string}  string "Internal Server Error"
// @Router       /auth/refresh [post]
func (s *Server) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RefreshToken == "" {
		http.Error(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	result, err := s.accounts.Refresh(r.Context(), req.RefreshToken, r.UserAgent(), r.RemoteAddr)
	if err != nil {
		if errors.Is(err, account.ErrSessionNotFound) {
			http.Error(w, "Invalid or expired refresh token", http.StatusUnauthorized)
			return
		}
		log.Printf("ERROR: Refresh token transaction failed: %v", err)
		http.Error(w, "Failed to refresh token", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// @Summary      Sign a user out
// @Description  Revokes the session behind the refresh token. Revoking an unknown token still succeeds.
// @Tags         auth
// @Accept       json
// @Param        refreshTokenRequest   body      RefreshTokenRequest  true  "Refresh Token"
// @Success      204  {string}  string "No Content"
// @Failure      400  {string}  string "Invalid request body"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /auth/logout [post]
func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.accounts.SignOut(r.Context(), req.RefreshToken); err != nil {
		log.Printf("ERROR: Sign out failed: %v", err)
		http.Error(w, "Failed to sign out", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// @Summary      Resolve current session
// @Description  Returns the non-expired session behind a refresh token, or 204 when there is none.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        refreshTokenRequest   body      RefreshTokenRequest  true  "Refresh Token"
// @Success      200  {object}  models.Session
// @Success      204  {string}  string "No active session"
// @Failure      400  {string}  string "Invalid request body"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /auth/session [post]
func (s *Server) GetSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req RefreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.accounts.GetSession(r.Context(), req.RefreshToken)
	if err != nil {
		log.Printf("ERROR: Session lookup failed: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if session == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}
