package imagegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/doyensec/safeurl"
)

// Generated images are square; the providers are asked for this size and the
// ledger records it.
const (
	ImageWidth  = 1024
	ImageHeight = 1024
)

const maxImageBytes = 10 << 20

var (
	ErrEmptyImage  = errors.New("downloaded image is empty")
	ErrFetchFailed = errors.New("image fetch failed")
)

// Generator substitutes a stock-photo URL for a prompt. This is explicitly a
// stand-in for a real generation pipeline: the only contract is that
// PickImageURL returns a non-empty URL.
type Generator struct {
	providers   []string
	fallbackURL string
	delay       time.Duration
	client      *http.Client

	// rng is shared by every request; *rand.Rand is not safe for
	// concurrent use, so draws go through the mutex.
	mu  sync.Mutex
	rng *rand.Rand
}

func New(providers []string, fallbackURL string, delay time.Duration, fetchTimeout time.Duration) *Generator {
	config := safeurl.GetConfigBuilder().
		SetTimeout(fetchTimeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()

	return &Generator{
		providers:   providers,
		fallbackURL: fallbackURL,
		delay:       delay,
		client:      safeurl.Client(config).Client,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// FallbackURL is the terminal placeholder used when everything else fails.
func (g *Generator) FallbackURL() string {
	return g.fallbackURL
}

// PickImageURL chooses a provider at random and derives a seed from the
// prompt, so the same prompt tends to land on a related image without any
// promise of determinism.
func (g *Generator) PickImageURL(prompt string) string {
	if len(g.providers) == 0 {
		return g.fallbackURL
	}

	g.mu.Lock()
	provider := g.providers[g.rng.Intn(len(g.providers))]
	nonce := g.rng.Int63()
	g.mu.Unlock()

	seed := seedFromPrompt(prompt, nonce)

	url := fmt.Sprintf(provider, seed)
	if url == "" {
		return g.fallbackURL
	}
	return url
}

// Wait simulates generation time. It respects cancellation.
func (g *Generator) Wait(ctx context.Context) error {
	if g.delay <= 0 {
		return nil
	}
	select {
	case <-time.After(g.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fetch downloads the picked image through the SSRF-guarded client and
// rejects empty bodies, so corrupt placeholders never reach storage.
func (g *Generator) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image body: %w", err)
	}
	if len(body) == 0 {
		return nil, "", ErrEmptyImage
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}

	return body, contentType, nil
}

func seedFromPrompt(prompt string, nonce int64) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ', r == '-', r == '_':
			return '-'
		default:
			return -1
		}
	}, strings.TrimSpace(prompt))

	if len(slug) > 32 {
		slug = slug[:32]
	}
	if slug == "" {
		slug = "imaginate"
	}

	return fmt.Sprintf("%s-%d", slug, nonce)
}
