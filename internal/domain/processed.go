package domain

import (
	"context"
	"time"
)

// ProcessedStore is the ledger of activities whose annotation has been applied.
// It is checked before any outbound work and written only after the annotation
// write succeeds, so a redelivered webhook for a recorded activity is a no-op.
type ProcessedStore interface {
	IsProcessed(ctx context.Context, activityID int64) (bool, error)
	// MarkProcessed upserts the ledger row, overwriting updated_at on replay.
	MarkProcessed(ctx context.Context, activityID int64, at time.Time) error
}
