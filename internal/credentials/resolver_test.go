package credentials_test

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eric-nguyen545/runningTunes/internal/credentials"
	"github.com/eric-nguyen545/runningTunes/internal/domain"
	"github.com/eric-nguyen545/runningTunes/internal/persistence/memory"
)

type stubRefresher struct {
	credential domain.Credential
	err        error
	calls      int
}

func (r *stubRefresher) RefreshToken(ctx context.Context, refreshToken string) (domain.Credential, error) {
	r.calls++
	if r.err != nil {
		return domain.Credential{}, r.err
	}
	return r.credential, nil
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func newResolver(t *testing.T, store domain.CredentialStore, refresher credentials.Refresher, now time.Time) *credentials.Resolver {
	t.Helper()
	return credentials.NewResolver(store, refresher,
		credentials.WithLogger(log.New(testWriter{t}, "", 0)),
		credentials.WithClock(func() time.Time { return now }),
	)
}

func TestResolveReturnsStoredTokenWhenFresh(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := memory.NewStore()
	require.NoError(t, store.Put(ctx, domain.Credential{
		OwnerID:      1,
		AccessToken:  "fresh-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(time.Hour),
	}))

	refresher := &stubRefresher{}
	resolver := newResolver(t, store, refresher, now)

	token, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "fresh-token", token)
	require.Zero(t, refresher.calls)
}

func TestResolveNotAuthorizedWhenAbsent(t *testing.T) {
	resolver := newResolver(t, memory.NewStore(), &stubRefresher{}, time.Now().UTC())

	_, err := resolver.Resolve(context.Background(), 99)
	require.ErrorIs(t, err, domain.ErrNotAuthorized)
}

func TestResolveRefreshesExpiredCredentialOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := memory.NewStore()
	require.NoError(t, store.Put(ctx, domain.Credential{
		OwnerID:      1,
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(-time.Minute),
	}))

	refresher := &stubRefresher{credential: domain.Credential{
		AccessToken:  "new-token",
		RefreshToken: "refresh-2",
		ExpiresAt:    now.Add(6 * time.Hour),
	}}
	resolver := newResolver(t, store, refresher, now)

	token, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "new-token", token)
	require.Equal(t, 1, refresher.calls)

	// The rotated token set is persisted.
	stored, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, "new-token", stored.AccessToken)
	require.Equal(t, "refresh-2", stored.RefreshToken)

	// A second resolution before the new expiry performs no refresh call.
	token, err = resolver.Resolve(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "new-token", token)
	require.Equal(t, 1, refresher.calls)
}

func TestResolveKeepsOldRefreshTokenWhenNotRotated(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := memory.NewStore()
	require.NoError(t, store.Put(ctx, domain.Credential{
		OwnerID:      1,
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(-time.Minute),
	}))

	refresher := &stubRefresher{credential: domain.Credential{
		AccessToken: "new-token",
		ExpiresAt:   now.Add(6 * time.Hour),
	}}
	resolver := newResolver(t, store, refresher, now)

	_, err := resolver.Resolve(ctx, 1)
	require.NoError(t, err)

	stored, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestResolveSurfacesRefreshFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	store := memory.NewStore()
	require.NoError(t, store.Put(ctx, domain.Credential{
		OwnerID:      1,
		AccessToken:  "stale-token",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(-time.Minute),
	}))

	refresher := &stubRefresher{err: errors.New("invalid refresh token")}
	resolver := newResolver(t, store, refresher, now)

	_, err := resolver.Resolve(ctx, 1)
	require.ErrorIs(t, err, domain.ErrRefreshFailed)
	require.Equal(t, 1, refresher.calls)

	// The stale credential stays in place for a later retry.
	stored, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "stale-token", stored.AccessToken)
}
