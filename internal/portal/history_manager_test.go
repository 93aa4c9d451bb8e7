package portal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/devmab24/imaginate-portal/internal/account"
	"github.com/devmab24/imaginate-portal/internal/models"
)

func authenticatedManagers(t *testing.T, fakeAcc *fakeAccount, fakeHist *fakeHistory, notifier Notifier) (*SessionManager, *HistoryManager) {
	t.Helper()
	user := &models.AuthUser{ID: 5, Email: "ala@example.com", DisplayName: "ala"}
	fakeAcc.users[5] = user
	fakeAcc.signInResult = &account.SignInResult{RefreshToken: "refresh", User: user}

	sm := NewSessionManager(fakeAcc, notifier)
	hm := NewHistoryManager(fakeHist, sm, notifier)
	hm.Start(context.Background())
	sm.Start(context.Background())
	t.Cleanup(sm.Close)

	require.Eventually(t, func() bool { return !sm.IsLoading() },
		2*time.Second, 5*time.Millisecond)
	require.NoError(t, sm.Login(context.Background(), "ala@example.com", "password123"))
	return sm, hm
}

func anonymousManagers(t *testing.T, fakeHist *fakeHistory, notifier Notifier) (*SessionManager, *HistoryManager) {
	t.Helper()
	sm := NewSessionManager(newFakeAccount(), notifier)
	hm := NewHistoryManager(fakeHist, sm, notifier)
	hm.Start(context.Background())
	sm.Start(context.Background())
	t.Cleanup(sm.Close)

	require.Eventually(t, func() bool { return !sm.IsLoading() },
		2*time.Second, 5*time.Millisecond)
	return sm, hm
}

func TestGenerateRejectsBlankPrompt(t *testing.T) {
	fakeHist := newFakeHistory()
	notifier := &recordingNotifier{}
	_, hm := anonymousManagers(t, fakeHist, notifier)

	for _, prompt := range []string{"", "   ", "\t\n"} {
		asset, err := hm.Generate(context.Background(), prompt)
		require.ErrorIs(t, err, ErrBlankPrompt)
		require.Nil(t, asset)
	}

	require.Equal(t, 0, fakeHist.generateCalls, "validation happens before the backend is called")
	require.Empty(t, hm.Assets(), "history is unchanged")

	successes, errors := notifier.counts()
	require.Equal(t, 0, successes)
	require.Equal(t, 3, errors, "one validation notification per rejected call")
}

func TestAnonymousGenerationStaysEphemeral(t *testing.T) {
	fakeHist := newFakeHistory()
	_, hm := anonymousManagers(t, fakeHist, &recordingNotifier{})

	asset, err := hm.Generate(context.Background(), "a red fox")
	require.NoError(t, err)
	require.NotNil(t, asset)
	require.Equal(t, "a red fox", asset.Prompt)
	require.NotEmpty(t, asset.ImageURL)
	require.False(t, asset.Persisted)

	require.Len(t, hm.Assets(), 1, "the asset lives in process memory")
	require.Equal(t, 0, fakeHist.ledgerSize(5), "nothing reached the ledger")
}

func TestAuthenticatedGenerateRoundTrip(t *testing.T) {
	fakeAcc := newFakeAccount()
	fakeHist := newFakeHistory()
	_, hm := authenticatedManagers(t, fakeAcc, fakeHist, &recordingNotifier{})

	asset, err := hm.Generate(context.Background(), "aurora borealis over mountains")
	require.NoError(t, err)
	require.True(t, asset.Persisted)

	require.NoError(t, hm.LoadHistory(context.Background()))
	assets := hm.Assets()
	require.Len(t, assets, 1)
	require.Equal(t, "aurora borealis over mountains", assets[0].Prompt)
	require.NotEmpty(t, assets[0].ImageURL)
}

func TestHistoryIsNewestFirst(t *testing.T) {
	fakeAcc := newFakeAccount()
	fakeHist := newFakeHistory()
	_, hm := authenticatedManagers(t, fakeAcc, fakeHist, &recordingNotifier{})

	_, err := hm.Generate(context.Background(), "first")
	require.NoError(t, err)
	_, err = hm.Generate(context.Background(), "second")
	require.NoError(t, err)

	assets := hm.Assets()
	require.Len(t, assets, 2)
	require.Equal(t, "second", assets[0].Prompt)
	require.Equal(t, "first", assets[1].Prompt)
}

func TestFailedPersistenceStillReturnsAsset(t *testing.T) {
	fakeAcc := newFakeAccount()
	fakeHist := newFakeHistory()
	fakeHist.persistFails = true
	notifier := &recordingNotifier{}
	_, hm := authenticatedManagers(t, fakeAcc, fakeHist, notifier)

	successesBefore, errorsBefore := notifier.counts()

	asset, err := hm.Generate(context.Background(), "a red fox")
	require.NoError(t, err)
	require.NotNil(t, asset)
	require.False(t, asset.Persisted)

	require.Len(t, hm.Assets(), 1, "the in-memory asset is still shown")

	successes, errors := notifier.counts()
	require.Equal(t, successesBefore, successes)
	require.Equal(t, errorsBefore+1, errors, "a distinct not-saved notification is emitted")
}

func TestClearHistoryIsIdempotent(t *testing.T) {
	fakeAcc := newFakeAccount()
	fakeHist := newFakeHistory()
	notifier := &recordingNotifier{}
	_, hm := authenticatedManagers(t, fakeAcc, fakeHist, notifier)

	_, err := hm.Generate(context.Background(), "a red fox")
	require.NoError(t, err)

	successesBefore, _ := notifier.counts()

	// Dwa razy z rzędu; drugi raz na pustej historii.
	require.NoError(t, hm.ClearHistory(context.Background()))
	require.Empty(t, hm.Assets())
	require.NoError(t, hm.ClearHistory(context.Background()))
	require.Empty(t, hm.Assets())

	successes, _ := notifier.counts()
	require.Equal(t, successesBefore+2, successes, "both clears emit a success notification")
	require.Equal(t, 0, fakeHist.ledgerSize(5))
}

func TestAnonymousClearHistoryOnlyEmptiesLocalState(t *testing.T) {
	fakeHist := newFakeHistory()
	notifier := &recordingNotifier{}
	_, hm := anonymousManagers(t, fakeHist, notifier)

	_, err := hm.Generate(context.Background(), "a red fox")
	require.NoError(t, err)
	require.Len(t, hm.Assets(), 1)

	require.NoError(t, hm.ClearHistory(context.Background()))
	require.Empty(t, hm.Assets())
}

func TestSignInLoadsHistoryAndSignOutDropsIt(t *testing.T) {
	fakeAcc := newFakeAccount()
	fakeHist := newFakeHistory()
	userID := int64(5)
	_, err := fakeHist.Generate(context.Background(), &userID, "stored earlier")
	require.NoError(t, err)

	_, hm := authenticatedManagers(t, fakeAcc, fakeHist, &recordingNotifier{})

	require.Eventually(t, func() bool { return len(hm.Assets()) == 1 },
		2*time.Second, 5*time.Millisecond, "entering Authenticated loads the stored history")

	fakeAcc.broadcaster.Publish(account.SessionEvent{Type: account.EventSignedOut, UserID: userID})
	require.Eventually(t, func() bool { return len(hm.Assets()) == 0 },
		2*time.Second, 5*time.Millisecond, "entering Anonymous drops the local history")
}
