// Package postgres provides pgx-backed implementations of the domain stores.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eric-nguyen545/runningTunes/internal/domain"
)

// Schema bootstraps the three tables. Natural keys enforce the idempotency
// contracts: played_at on listens, owner_id on credentials, activity_id on
// the processed ledger.
const schema = `
CREATE TABLE IF NOT EXISTS spotify_listens (
    track_name TEXT NOT NULL,
    artist     TEXT NOT NULL,
    played_at  TIMESTAMPTZ PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS strava_credentials (
    owner_id      BIGINT PRIMARY KEY,
    access_token  TEXT NOT NULL,
    refresh_token TEXT NOT NULL,
    expires_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS processed_activities (
    activity_id BIGINT PRIMARY KEY,
    updated_at  TIMESTAMPTZ NOT NULL
);`

// EnsureSchema creates the tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}

// Repository implements domain.ListenStore, domain.CredentialStore, and
// domain.ProcessedStore over a single pgx pool.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record inserts a listen; a duplicate played_at is silently ignored.
func (r *Repository) Record(ctx context.Context, listen domain.Listen) error {
	const stmt = `INSERT INTO spotify_listens (track_name, artist, played_at)
        VALUES ($1, $2, $3) ON CONFLICT (played_at) DO NOTHING`

	_, err := r.pool.Exec(ctx, stmt, listen.TrackName, listen.Artist, listen.PlayedAt.UTC().Truncate(time.Second))
	return err
}

// QueryRange returns listens with start <= played_at <= end in ascending order.
func (r *Repository) QueryRange(ctx context.Context, start, end time.Time) ([]domain.Listen, error) {
	const query = `SELECT track_name, artist, played_at FROM spotify_listens
        WHERE played_at BETWEEN $1 AND $2 ORDER BY played_at ASC`

	rows, err := r.pool.Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listens []domain.Listen
	for rows.Next() {
		var listen domain.Listen
		if err := rows.Scan(&listen.TrackName, &listen.Artist, &listen.PlayedAt); err != nil {
			return nil, err
		}
		listen.PlayedAt = listen.PlayedAt.UTC()
		listens = append(listens, listen)
	}
	return listens, rows.Err()
}

// Get returns the credential for the owner, or nil when none is stored.
func (r *Repository) Get(ctx context.Context, ownerID int64) (*domain.Credential, error) {
	const query = `SELECT access_token, refresh_token, expires_at
        FROM strava_credentials WHERE owner_id = $1`

	var credential domain.Credential
	credential.OwnerID = ownerID
	err := r.pool.QueryRow(ctx, query, ownerID).Scan(&credential.AccessToken, &credential.RefreshToken, &credential.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	credential.ExpiresAt = credential.ExpiresAt.UTC()
	return &credential, nil
}

// Put upserts the credential for its owner; the most recent write wins.
func (r *Repository) Put(ctx context.Context, credential domain.Credential) error {
	const stmt = `INSERT INTO strava_credentials (owner_id, access_token, refresh_token, expires_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (owner_id) DO UPDATE
        SET access_token = EXCLUDED.access_token,
            refresh_token = EXCLUDED.refresh_token,
            expires_at = EXCLUDED.expires_at`

	_, err := r.pool.Exec(ctx, stmt, credential.OwnerID, credential.AccessToken, credential.RefreshToken, credential.ExpiresAt.UTC())
	return err
}

// IsProcessed reports whether the activity already has an annotation applied.
func (r *Repository) IsProcessed(ctx context.Context, activityID int64) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM processed_activities WHERE activity_id = $1)`

	var processed bool
	if err := r.pool.QueryRow(ctx, query, activityID).Scan(&processed); err != nil {
		return false, err
	}
	return processed, nil
}

// MarkProcessed upserts the ledger row for the activity.
func (r *Repository) MarkProcessed(ctx context.Context, activityID int64, at time.Time) error {
	const stmt = `INSERT INTO processed_activities (activity_id, updated_at)
        VALUES ($1, $2)
        ON CONFLICT (activity_id) DO UPDATE SET updated_at = EXCLUDED.updated_at`

	_, err := r.pool.Exec(ctx, stmt, activityID, at.UTC())
	return err
}
