package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/devmab24/imaginate-portal/internal/database"
)

// @Summary      Get current user
// @Description  Returns the account identity merged with the profile. Missing profile fields fall back to defaults.
// @Tags         users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  models.AuthUser
// @Failure      401  {string}  string "Unauthorized"
// @Failure      404  {string}  string "User not found"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /me [get]
func (s *Server) GetCurrentUserHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	user, err := s.accounts.GetAuthUser(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: Failed to load user %d: %v", claims.UserID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if user == nil {
		http.Error(w, "User not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name,omitempty" example:"Ala"`
	AvatarURL   *string `json:"avatar_url,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	Website     *string `json:"website,omitempty"`
	Location    *string `json:"location,omitempty"`
}

// @Summary      Update profile
// @Description  Applies a partial profile update. Omitted fields keep their stored value; free text is sanitized.
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        updateProfileRequest   body      UpdateProfileRequest  true  "Fields to update"
// @Success      200  {object}  models.AuthUser
// @Failure      400  {string}  string "Invalid request body"
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /me/profile [patch]
func (s *Server) UpdateProfileHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := s.accounts.UpdateProfile(r.Context(), claims.UserID, database.UpdateProfileParams{
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		Bio:         req.Bio,
		Website:     req.Website,
		Location:    req.Location,
	})
	if err != nil {
		log.Printf("ERROR: Failed to update profile for user %d: %v", claims.UserID, err)
		http.Error(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}
