package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// @Summary      List image history
// @Description  Returns all of the user's generated assets, newest first, with fresh signed URLs.
// @Tags         history
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   models.Asset
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /history [get]
func (s *Server) ListHistoryHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	assets, err := s.history.LoadHistory(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: Failed to load history for user %d: %v", claims.UserID, err)
		http.Error(w, "Failed to load history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(assets)
}

type ClearHistoryResponse struct {
	Deleted int64 `json:"deleted" example:"3"`
}

// @Summary      Clear image history
// @Description  Deletes the user's stored objects best-effort, then all ledger rows. Clearing an empty history succeeds.
// @Tags         history
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  ClearHistoryResponse
// @Failure      401  {string}  string "Unauthorized"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /history [delete]
func (s *Server) ClearHistoryHandler(w http.ResponseWriter, r *http.Request) {
	claims := GetUserFromContext(r.Context())
	if claims == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	deleted, err := s.history.ClearHistory(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: Failed to clear history for user %d: %v", claims.UserID, err)
		http.Error(w, "Failed to clear history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ClearHistoryResponse{Deleted: deleted})
}
