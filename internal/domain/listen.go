// Package domain defines the business logic for correlating Spotify listens
// with Strava activities.
package domain

import (
	"context"
	"time"
)

// Listen is a single observation of a track playing for the user.
type Listen struct {
	TrackName string
	Artist    string
	PlayedAt  time.Time
}

// ListenStore is the append-only log of listens keyed by played_at.
type ListenStore interface {
	// Record inserts a listen. A listen with the same played_at already in
	// the store is treated as a redelivery and the call succeeds as a no-op.
	Record(ctx context.Context, listen Listen) error
	// QueryRange returns listens with start <= played_at <= end, ascending.
	QueryRange(ctx context.Context, start, end time.Time) ([]Listen, error)
}
