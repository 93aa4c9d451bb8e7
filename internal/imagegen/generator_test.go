package imagegen

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPickImageURL(t *testing.T) {
	gen := New(
		[]string{"https://picsum.photos/seed/%s/1024/1024"},
		"https://placehold.co/1024x1024",
		0, time.Second,
	)

	url := gen.PickImageURL("A Red Fox, In The Snow!")
	require.NotEmpty(t, url)
	require.True(t, strings.HasPrefix(url, "https://picsum.photos/seed/a-red-fox-in-the-snow"), url)
}

func TestPickImageURL_NoProviders(t *testing.T) {
	gen := New(nil, "https://placehold.co/1024x1024", 0, time.Second)

	url := gen.PickImageURL("anything")
	require.Equal(t, "https://placehold.co/1024x1024", url)
}

func TestPickImageURL_EmptyPromptSlug(t *testing.T) {
	gen := New(
		[]string{"https://picsum.photos/seed/%s/1024/1024"},
		"https://placehold.co/1024x1024",
		0, time.Second,
	)

	url := gen.PickImageURL("!!!???")
	require.Contains(t, url, "imaginate-")
}

func TestPickImageURL_Concurrent(t *testing.T) {
	gen := New(
		[]string{"https://picsum.photos/seed/%s/1024/1024"},
		"https://placehold.co/1024x1024",
		0, time.Second,
	)

	// Anonimowi goście generują równolegle, bez limitu per użytkownik.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				require.NotEmpty(t, gen.PickImageURL("a red fox"))
			}
		}()
	}
	wg.Wait()
}

func TestWaitRespectsCancellation(t *testing.T) {
	gen := New(nil, "fallback", 5*time.Second, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := gen.Wait(ctx)
	require.Error(t, err)
	require.Less(t, time.Since(start), time.Second, "Wait should return promptly on cancellation")
}

func TestWaitZeroDelay(t *testing.T) {
	gen := New(nil, "fallback", 0, time.Second)
	require.NoError(t, gen.Wait(context.Background()))
}

func TestSeedFromPrompt(t *testing.T) {
	seed := seedFromPrompt("  Aurora Borealis over MOUNTAINS  ", 7)
	require.Equal(t, "aurora-borealis-over-mountains-7", seed)

	long := seedFromPrompt(strings.Repeat("abcd ", 20), 7)
	require.LessOrEqual(t, len(long), 32+len("-7"))
}
