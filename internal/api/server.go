package api

import (
	"encoding/json"
	"net/http"

	"github.com/devmab24/imaginate-portal/internal/account"
	"github.com/devmab24/imaginate-portal/internal/config"
	"github.com/devmab24/imaginate-portal/internal/database"
	"github.com/devmab24/imaginate-portal/internal/history"
	"github.com/devmab24/imaginate-portal/internal/storage"
	"github.com/devmab24/imaginate-portal/internal/websocket"
)

type Server struct {
	config   *config.Config
	store    *database.Store
	accounts *account.Service
	history  *history.Service
	objects  *storage.ObjectStorage
	wsHub    *websocket.Hub
}

func NewServer(cfg *config.Config, store *database.Store, accounts *account.Service, history *history.Service, objects *storage.ObjectStorage, wsHub *websocket.Hub) *Server {
	return &Server{
		config:   cfg,
		store:    store,
		accounts: accounts,
		history:  history,
		objects:  objects,
		wsHub:    wsHub,
	}
}

// @Summary      Health check
// @Description  Reports whether the service and its database are reachable.
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Failure      503  {string}  string "Service Unavailable"
// @Router       /health [get]
func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.store.GetPool().Ping(r.Context()); err != nil {
		http.Error(w, "database unreachable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
