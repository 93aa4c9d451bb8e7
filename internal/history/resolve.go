package history

import "github.com/devmab24/imaginate-portal/internal/models"

// MaxDisplayAttempts bounds how often a view retries a broken image before it
// settles on the terminal placeholder.
const MaxDisplayAttempts = 3

// ResolveDisplayURL picks the URL a view should render for an asset on the
// given load attempt. It is pure: attempt 0 is the asset's primary URL, the
// next attempt falls back to the upstream provider URL, and everything after
// that is the placeholder. The ladder never cycles, so a broken image settles
// after a bounded number of retries.
func ResolveDisplayURL(asset *models.Asset, attempt int, fallback string) string {
	if attempt >= MaxDisplayAttempts {
		return fallback
	}
	if attempt < 0 {
		attempt = 0
	}

	switch attempt {
	case 0:
		if asset.ImageURL != "" {
			return asset.ImageURL
		}
		fallthrough
	case 1:
		if asset.SourceURL != "" && asset.SourceURL != asset.ImageURL {
			return asset.SourceURL
		}
		fallthrough
	default:
		return fallback
	}
}
