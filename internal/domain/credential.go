package domain

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotAuthorized indicates no stored credential exists for the owner.
	ErrNotAuthorized = errors.New("owner has no stored credential")
	// ErrRefreshFailed wraps a failed token refresh exchange.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// Credential is the Strava token set held for one athlete.
type Credential struct {
	OwnerID      int64
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Expired reports whether the access token is past its expiry at the given instant.
func (c Credential) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CredentialStore persists one credential per owner with upsert semantics.
type CredentialStore interface {
	// Get returns the credential for the owner, or nil when none is stored.
	Get(ctx context.Context, ownerID int64) (*Credential, error)
	// Put stores the credential, replacing any prior one for the same owner.
	Put(ctx context.Context, credential Credential) error
}

// TokenResolver yields a currently valid access token for an owner.
type TokenResolver interface {
	Resolve(ctx context.Context, ownerID int64) (string, error)
}
