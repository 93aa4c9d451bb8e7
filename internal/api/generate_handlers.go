package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/devmab24/imaginate-portal/internal/history"
)

type GenerateRequest struct {
	Prompt string `json:"prompt" example:"a red fox in the snow"`
}

// @Summary      Generate an image
// @Description  Produces an image for a prompt. Anonymous results are ephemeral; signed-in results are saved to the user's history when possible.
// @Tags         generation
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        generateRequest   body      GenerateRequest  true  "Prompt"
// @Success      201  {object}  models.Asset
// @Failure      400  {string}  string "Invalid request body or empty prompt"
// @Failure      409  {string}  string "A generation is already running"
// @Failure      500  {string}  string "Internal Server Error"
// @Router       /generate [post]
func (s *Server) GenerateImageHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var userID *int64
	if claims := GetUserFromContext(r.Context()); claims != nil {
		userID = &claims.UserID
	}

	asset, err := s.history.Generate(r.Context(), userID, req.Prompt)
	if err != nil {
		switch {
		case errors.Is(err, history.ErrEmptyPrompt):
			generationsTotal.WithLabelValues("rejected").Inc()
			http.Error(w, "Prompt must not be empty", http.StatusBadRequest)
		case errors.Is(err, history.ErrGenerationInFlight):
			generationsTotal.WithLabelValues("rejected").Inc()
			http.Error(w, "A generation is already running for this account", http.StatusConflict)
		case errors.Is(err, context.Canceled):
			generationsTotal.WithLabelValues("canceled").Inc()
			return
		default:
			generationsTotal.WithLabelValues("failed").Inc()
			log.Printf("ERROR: Generation failed: %v", err)
			http.Error(w, "Failed to generate image", http.StatusInternalServerError)
		}
		return
	}

	if asset.Persisted {
		generationsTotal.WithLabelValues("persisted").Inc()
	} else {
		generationsTotal.WithLabelValues("ephemeral").Inc()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(asset)
}
