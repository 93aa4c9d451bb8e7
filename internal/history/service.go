package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/jaevor/go-nanoid"

	"github.com/devmab24/imaginate-portal/internal/database"
	"github.com/devmab24/imaginate-portal/internal/imagegen"
	"github.com/devmab24/imaginate-portal/internal/models"
	"github.com/devmab24/imaginate-portal/internal/storage"
)

var (
	ErrEmptyPrompt        = errors.New("prompt must not be empty")
	ErrGenerationInFlight = errors.New("a generation is already in progress for this user")
)

// Service runs the generation pipeline and owns the asset ledger. Anonymous
// generations stay ephemeral; authenticated ones are stored and recorded.
type Service struct {
	store      *database.Store
	objects    *storage.ObjectStorage
	gen        *imagegen.Generator
	publicBase string
	newID      func() string
	inflight   sync.Map
}

func NewService(store *database.Store, objects *storage.ObjectStorage, gen *imagegen.Generator, publicBase string) (*Service, error) {
	newID, err := nanoid.Standard(21)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize nanoid generator: %w", err)
	}

	return &Service{
		store:      store,
		objects:    objects,
		gen:        gen,
		publicBase: publicBase,
		newID:      newID,
	}, nil
}

func (s *Service) generateUniqueID(ctx context.Context) (string, error) {
	maxRetries := 10

	for i := 0; i < maxRetries; i++ {
		id := s.newID()
		exists, err := s.store.AssetExists(ctx, id)
		if err != nil {
			return "", err
		}
		if !exists {
			return id, nil
		}
	}

	return "", errors.New("failed to generate a unique asset id after several attempts")
}

// Generate produces one asset for a prompt. A nil userID means an anonymous
// caller: the asset is returned but never stored. At most one generation per
// user runs at a time.
func (s *Service) Generate(ctx context.Context, userID *int64, prompt string) (*models.Asset, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	if userID != nil {
		if _, busy := s.inflight.LoadOrStore(*userID, struct{}{}); busy {
			return nil, ErrGenerationInFlight
		}
		defer s.inflight.Delete(*userID)
	}

	sourceURL := s.gen.PickImageURL(prompt)

	if err := s.gen.Wait(ctx); err != nil {
		return nil, err
	}

	asset := &models.Asset{
		ID:        s.newID(),
		Prompt:    prompt,
		ImageURL:  sourceURL,
		SourceURL: sourceURL,
		Width:     imagegen.ImageWidth,
		Height:    imagegen.ImageHeight,
		CreatedAt: time.Now(),
	}

	if userID == nil {
		return asset, nil
	}

	// Persist for the signed-in user. Any failure past this point degrades to
	// an ephemeral asset rather than failing the generation.
	id, err := s.generateUniqueID(ctx)
	if err != nil {
		log.Printf("WARN: Asset id allocation failed, serving ephemeral result: %v", err)
		return asset, nil
	}
	asset.ID = id

	persisted, err := s.persist(ctx, *userID, asset)
	if err != nil {
		log.Printf("WARN: Failed to persist asset %s for user %d: %v", asset.ID, *userID, err)
		return asset, nil
	}
	return persisted, nil
}

func (s *Service) persist(ctx context.Context, userID int64, asset *models.Asset) (*models.Asset, error) {
	data, contentType, err := s.gen.Fetch(ctx, asset.SourceURL)
	if err != nil {
		return nil, err
	}

	storagePath := fmt.Sprintf("%d/%s.%s", userID, asset.ID, extensionFor(contentType))
	if err := s.objects.Save(storagePath, bytes.NewReader(data)); err != nil {
		return nil, err
	}

	stored, err := s.store.CreateAsset(ctx, database.CreateAssetParams{
		ID:          asset.ID,
		UserID:      userID,
		Prompt:      asset.Prompt,
		SourceURL:   asset.SourceURL,
		StoragePath: storagePath,
		Width:       asset.Width,
		Height:      asset.Height,
	})
	if err != nil {
		// The ledger row failed, so the object must not linger.
		if cleanupErr := s.objects.Delete(storagePath); cleanupErr != nil {
			log.Printf("WARN: Failed to clean up orphaned object %s: %v", storagePath, cleanupErr)
		}
		return nil, err
	}

	stored.ImageURL = s.displayURL(stored)
	return stored, nil
}

// LoadHistory returns all of a user's assets, newest first, with a fresh
// signed URL per asset.
func (s *Service) LoadHistory(ctx context.Context, userID int64) ([]models.Asset, error) {
	assets, err := s.store.ListAssetsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	for i := range assets {
		assets[i].ImageURL = s.displayURL(&assets[i])
	}

	return assets, nil
}

// ClearHistory wipes a user's history. Stored objects are removed best-effort
// first; the ledger delete is the authoritative step. Clearing an empty
// history is a no-op.
func (s *Service) ClearHistory(ctx context.Context, userID int64) (int64, error) {
	assets, err := s.store.ListAssetsByUser(ctx, userID)
	if err != nil {
		return 0, err
	}

	paths := make([]string, 0, len(assets))
	for _, asset := range assets {
		if asset.StoragePath != nil && *asset.StoragePath != "" {
			paths = append(paths, *asset.StoragePath)
		}
	}
	if err := s.objects.Remove(paths); err != nil {
		log.Printf("WARN: Some objects could not be removed while clearing history for user %d: %v", userID, err)
	}

	return s.store.DeleteAssetsByUser(ctx, userID)
}

// displayURL signs the storage path for retrieval. When signing is not
// possible the provider URL still renders something.
func (s *Service) displayURL(asset *models.Asset) string {
	if asset.StoragePath == nil || *asset.StoragePath == "" {
		return asset.SourceURL
	}
	signed, err := s.objects.SignedURL(s.publicBase, *asset.StoragePath)
	if err != nil {
		log.Printf("WARN: Failed to sign URL for asset %s: %v", asset.ID, err)
		if asset.SourceURL != "" {
			return asset.SourceURL
		}
		return s.gen.FallbackURL()
	}
	return signed
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}
