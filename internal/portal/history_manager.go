package portal

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/devmab24/imaginate-portal/internal/models"
)

var ErrBlankPrompt = errors.New("prompt must not be empty")

// HistoryManager mediates between the in-memory list of this session's
// generated assets and the durable per-user history. It reacts to session
// transitions: entering Authenticated loads the stored history, entering
// Anonymous drops it.
type HistoryManager struct {
	api      HistoryAPI
	sessions *SessionManager
	notifier Notifier

	mu         sync.Mutex
	assets     []models.Asset
	generating bool
	loadingFor map[int64]bool
}

func NewHistoryManager(api HistoryAPI, sessions *SessionManager, notifier Notifier) *HistoryManager {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &HistoryManager{
		api:        api,
		sessions:   sessions,
		notifier:   notifier,
		assets:     []models.Asset{},
		loadingFor: make(map[int64]bool),
	}
}

// Start registers for session transitions. Call before SessionManager.Start
// so the initial transition is not missed.
func (h *HistoryManager) Start(ctx context.Context) {
	h.sessions.OnChange(func(state State, user *models.AuthUser) {
		switch state {
		case StateAuthenticated:
			if user != nil {
				h.reload(ctx, user.ID)
			}
		case StateAnonymous:
			h.mu.Lock()
			h.assets = []models.Asset{}
			h.mu.Unlock()
		}
	})
}

// Assets returns the current history, newest first.
func (h *HistoryManager) Assets() []models.Asset {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]models.Asset, len(h.assets))
	copy(out, h.assets)
	return out
}

func (h *HistoryManager) IsGenerating() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generating
}

// Generate validates the prompt, produces an asset and prepends it to the
// visible history. For a signed-in user a persisted result triggers a full
// reload so the list reconciles with the ledger; a generation that could not
// be persisted is still shown, with a distinct notification.
func (h *HistoryManager) Generate(ctx context.Context, prompt string) (*models.Asset, error) {
	if strings.TrimSpace(prompt) == "" {
		h.notifier.Error("Please enter a prompt first")
		return nil, ErrBlankPrompt
	}

	var userID *int64
	if user := h.sessions.User(); h.sessions.IsAuthenticated() && user != nil {
		id := user.ID
		userID = &id
	}

	h.mu.Lock()
	h.generating = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		h.generating = false
		h.mu.Unlock()
	}()

	asset, err := h.api.Generate(ctx, userID, prompt)
	if err != nil {
		h.notifier.Error("Image generation failed. Please try again.")
		return nil, err
	}

	h.mu.Lock()
	h.assets = append([]models.Asset{*asset}, h.assets...)
	h.mu.Unlock()

	switch {
	case userID == nil:
		h.notifier.Success("Image generated")
	case asset.Persisted:
		// Reconcile with the ledger so signed URLs and ordering come from
		// the authoritative store.
		h.reload(ctx, *userID)
		h.notifier.Success("Image generated and saved to your history")
	default:
		h.notifier.Error("Image generated but it could not be saved to your history")
	}

	return asset, nil
}

// LoadHistory re-fetches the stored history for the signed-in user. Calling
// it while anonymous is a no-op.
func (h *HistoryManager) LoadHistory(ctx context.Context) error {
	user := h.sessions.User()
	if !h.sessions.IsAuthenticated() || user == nil {
		return nil
	}
	return h.reload(ctx, user.ID)
}

// reload fetches the full history, newest first. At most one reload per user
// runs at a time; a second caller returns immediately and keeps the list it
// has.
func (h *HistoryManager) reload(ctx context.Context, userID int64) error {
	h.mu.Lock()
	if h.loadingFor[userID] {
		h.mu.Unlock()
		return nil
	}
	h.loadingFor[userID] = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.loadingFor, userID)
		h.mu.Unlock()
	}()

	assets, err := h.api.LoadHistory(ctx, userID)
	if err != nil {
		h.notifier.Error("Could not load your image history")
		return err
	}

	h.mu.Lock()
	h.assets = assets
	h.mu.Unlock()
	return nil
}

// ClearHistory empties the visible history. For a signed-in user the stored
// objects and ledger rows are deleted as well. Clearing an already empty
// history is still a success.
func (h *HistoryManager) ClearHistory(ctx context.Context) error {
	if user := h.sessions.User(); h.sessions.IsAuthenticated() && user != nil {
		if _, err := h.api.ClearHistory(ctx, user.ID); err != nil {
			h.notifier.Error("Could not clear your image history")
			return err
		}
	}

	h.mu.Lock()
	h.assets = []models.Asset{}
	h.mu.Unlock()

	h.notifier.Success("History cleared")
	return nil
}
