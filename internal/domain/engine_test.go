package domain_test

import (
	"context"
	"errors"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eric-nguyen545/runningTunes/internal/domain"
	"github.com/eric-nguyen545/runningTunes/internal/persistence/memory"
)

type stubResolver struct {
	token string
	err   error
	calls int
}

func (r *stubResolver) Resolve(ctx context.Context, ownerID int64) (string, error) {
	r.calls++
	return r.token, r.err
}

type stubSource struct {
	detail domain.ActivityDetail
	err    error
}

func (s *stubSource) Activity(ctx context.Context, activityID int64, accessToken string) (domain.ActivityDetail, error) {
	if s.err != nil {
		return domain.ActivityDetail{}, s.err
	}
	return s.detail, nil
}

type stubSink struct {
	err          error
	calls        int
	descriptions []string
}

func (s *stubSink) UpdateDescription(ctx context.Context, activityID int64, accessToken, description string) error {
	s.calls++
	s.descriptions = append(s.descriptions, description)
	return s.err
}

func quietLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(testWriter{t}, "", 0)
}

type testWriter struct {
	t *testing.T
}

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func TestProcessIgnoresNonActivityEvents(t *testing.T) {
	store := memory.NewStore()
	sink := &stubSink{}
	engine := domain.NewEngine(store, store, &stubResolver{token: "tok"}, &stubSource{}, sink,
		domain.WithEngineLogger(quietLogger(t)))

	outcome, err := engine.Process(context.Background(), domain.WebhookEvent{
		ObjectType: "athlete",
		ObjectID:   7,
		OwnerID:    1,
		AspectType: domain.AspectUpdate,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeIgnored, outcome)
	require.Zero(t, sink.calls)
}

func TestProcessUnauthorizedWhenNoCredential(t *testing.T) {
	store := memory.NewStore()
	sink := &stubSink{}
	resolver := &stubResolver{err: domain.ErrNotAuthorized}
	engine := domain.NewEngine(store, store, resolver, &stubSource{}, sink,
		domain.WithEngineLogger(quietLogger(t)))

	outcome, err := engine.Process(context.Background(), domain.WebhookEvent{
		ObjectType: domain.ObjectTypeActivity,
		ObjectID:   7,
		OwnerID:    1,
		AspectType: domain.AspectCreate,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeUnauthorized, outcome)
	require.Zero(t, sink.calls)

	// Not marked processed, so a corrective redelivery can still succeed.
	processed, err := store.IsProcessed(context.Background(), 7)
	require.NoError(t, err)
	require.False(t, processed)
}

func TestProcessRefreshFailureIsUnauthorized(t *testing.T) {
	store := memory.NewStore()
	resolver := &stubResolver{err: domain.ErrRefreshFailed}
	engine := domain.NewEngine(store, store, resolver, &stubSource{}, &stubSink{},
		domain.WithEngineLogger(quietLogger(t)))

	outcome, err := engine.Process(context.Background(), domain.WebhookEvent{
		ObjectType: domain.ObjectTypeActivity,
		ObjectID:   9,
		OwnerID:    2,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeUnauthorized, outcome)
}

func TestProcessInvalidActivityNotMarked(t *testing.T) {
	store := memory.NewStore()
	source := &stubSource{err: domain.ErrIncompleteActivity}
	sink := &stubSink{}
	engine := domain.NewEngine(store, store, &stubResolver{token: "tok"}, source, sink,
		domain.WithEngineLogger(quietLogger(t)))

	outcome, err := engine.Process(context.Background(), domain.WebhookEvent{
		ObjectType: domain.ObjectTypeActivity,
		ObjectID:   11,
		OwnerID:    1,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeInvalidActivity, outcome)
	require.Zero(t, sink.calls)

	processed, err := store.IsProcessed(context.Background(), 11)
	require.NoError(t, err)
	require.False(t, processed)
}

func TestProcessSinkFailureLeavesLedgerUntouched(t *testing.T) {
	store := memory.NewStore()
	source := &stubSource{detail: domain.ActivityDetail{
		ID:             13,
		StartDate:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		ElapsedSeconds: 600,
	}}
	sink := &stubSink{err: errors.New("strava said no")}
	engine := domain.NewEngine(store, store, &stubResolver{token: "tok"}, source, sink,
		domain.WithEngineLogger(quietLogger(t)))

	outcome, err := engine.Process(context.Background(), domain.WebhookEvent{
		ObjectType: domain.ObjectTypeActivity,
		ObjectID:   13,
		OwnerID:    1,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeSinkFailed, outcome)
	require.Equal(t, 1, sink.calls)

	processed, err := store.IsProcessed(context.Background(), 13)
	require.NoError(t, err)
	require.False(t, processed)

	// A redelivery retries the whole flow.
	sink.err = nil
	outcome, err = engine.Process(context.Background(), domain.WebhookEvent{
		ObjectType: domain.ObjectTypeActivity,
		ObjectID:   13,
		OwnerID:    1,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeUpdated, outcome)
	require.Equal(t, 2, sink.calls)
}

// Mirrors the full correlation scenario: a 25-minute run starting 09:00Z with
// two in-window listens, one out-of-window listen, and a webhook redelivery.
func TestProcessEndToEnd(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	listens := []domain.Listen{
		{TrackName: "Song C", Artist: "Artist C", PlayedAt: time.Date(2025, 6, 1, 8, 59, 0, 0, time.UTC)},
		{TrackName: "Song A", Artist: "Artist A", PlayedAt: time.Date(2025, 6, 1, 9, 5, 0, 0, time.UTC)},
		{TrackName: "Song B", Artist: "Artist B", PlayedAt: time.Date(2025, 6, 1, 9, 10, 0, 0, time.UTC)},
	}
	for _, listen := range listens {
		require.NoError(t, store.Record(ctx, listen))
	}

	source := &stubSource{detail: domain.ActivityDetail{
		ID:             42,
		Type:           "Run",
		StartDate:      time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
		ElapsedSeconds: 1500,
	}}
	sink := &stubSink{}
	engine := domain.NewEngine(store, store, &stubResolver{token: "tok"}, source, sink,
		domain.WithEngineLogger(quietLogger(t)))

	event := domain.WebhookEvent{
		ObjectType: domain.ObjectTypeActivity,
		ObjectID:   42,
		OwnerID:    1,
		AspectType: domain.AspectCreate,
	}

	outcome, err := engine.Process(ctx, event)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeUpdated, outcome)
	require.Equal(t, 1, sink.calls)

	want := "🏃 Great run!\n🎶 Songs listened to:\n- Song A – Artist A\n- Song B – Artist B"
	require.Equal(t, want, sink.descriptions[0])

	processed, err := store.IsProcessed(ctx, 42)
	require.NoError(t, err)
	require.True(t, processed)

	// Redelivery short-circuits at the idempotency gate.
	outcome, err = engine.Process(ctx, event)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAlreadyProcessed, outcome)
	require.Equal(t, 1, sink.calls)
}

func TestProcessEmptyWindowWritesFallback(t *testing.T) {
	store := memory.NewStore()
	source := &stubSource{detail: domain.ActivityDetail{
		ID:             77,
		StartDate:      time.Date(2025, 6, 2, 7, 0, 0, 0, time.UTC),
		ElapsedSeconds: 1200,
	}}
	sink := &stubSink{}
	engine := domain.NewEngine(store, store, &stubResolver{token: "tok"}, source, sink,
		domain.WithEngineLogger(quietLogger(t)))

	outcome, err := engine.Process(context.Background(), domain.WebhookEvent{
		ObjectType: domain.ObjectTypeActivity,
		ObjectID:   77,
		OwnerID:    1,
	})
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeUpdated, outcome)
	require.Equal(t, []string{domain.NoSongsDescription}, sink.descriptions)
}
