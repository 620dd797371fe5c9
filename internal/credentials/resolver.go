// Package credentials resolves a valid Strava access token for an athlete,
// refreshing the stored credential when it has expired.
package credentials

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/eric-nguyen545/runningTunes/internal/domain"
	"github.com/eric-nguyen545/runningTunes/internal/observability"
)

// Refresher performs the refresh-grant exchange against the authorization
// service. The returned credential carries the new token set; OwnerID is
// filled in by the resolver.
type Refresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (domain.Credential, error)
}

// Resolver implements domain.TokenResolver over a credential store and a
// token refresher.
type Resolver struct {
	store     domain.CredentialStore
	refresher Refresher
	logger    *log.Logger
	now       func() time.Time
}

// Option configures optional Resolver behaviour.
type Option func(*Resolver)

// WithLogger overrides the resolver's logger.
func WithLogger(logger *log.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithClock overrides the resolver's clock.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver constructs a Resolver.
func NewResolver(store domain.CredentialStore, refresher Refresher, opts ...Option) *Resolver {
	r := &Resolver{
		store:     store,
		refresher: refresher,
		logger:    log.New(log.Writer(), "[credentials] ", log.LstdFlags|log.Lshortfile),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a currently valid access token for the owner. An expired
// credential triggers a single refresh attempt; the rotated token set is
// persisted before the new access token is returned. Two concurrent resolves
// for the same owner may both refresh; the store's upsert makes the most
// recent write authoritative.
func (r *Resolver) Resolve(ctx context.Context, ownerID int64) (string, error) {
	credential, err := r.store.Get(ctx, ownerID)
	if err != nil {
		return "", err
	}
	if credential == nil {
		return "", fmt.Errorf("%w: owner %d", domain.ErrNotAuthorized, ownerID)
	}

	if !credential.Expired(r.now()) {
		return credential.AccessToken, nil
	}

	refreshed, err := r.refresher.RefreshToken(ctx, credential.RefreshToken)
	if err != nil {
		observability.RecordTokenRefresh(false)
		return "", fmt.Errorf("%w: %v", domain.ErrRefreshFailed, err)
	}

	refreshed.OwnerID = ownerID
	if refreshed.RefreshToken == "" {
		// The authorization service rotates refresh tokens only sometimes.
		refreshed.RefreshToken = credential.RefreshToken
	}

	if err := r.store.Put(ctx, refreshed); err != nil {
		return "", err
	}

	observability.RecordTokenRefresh(true)
	r.logger.Printf("refreshed credential for owner %d (expires %s)", ownerID, refreshed.ExpiresAt.Format(time.RFC3339))
	return refreshed.AccessToken, nil
}
