package models

import "time"

// Asset is one generated image. Persisted assets carry a storage path and are
// owned by a user; anonymous generations are ephemeral and only live in
// process memory.
type Asset struct {
	ID          string    `json:"id" example:"V1StGXR8_Z5jdHi6B-myT"`
	UserID      *int64    `json:"user_id,omitempty"`
	Prompt      string    `json:"prompt" example:"a red fox in the snow"`
	ImageURL    string    `json:"image_url"`
	SourceURL   string    `json:"-"`
	StoragePath *string   `json:"storage_path,omitempty"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Persisted   bool      `json:"persisted"`
	CreatedAt   time.Time `json:"created_at"`
}
