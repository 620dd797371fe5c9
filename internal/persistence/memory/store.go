// Package memory provides in-memory store implementations for unit tests and
// local development without Postgres.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/eric-nguyen545/runningTunes/internal/domain"
)

// Store implements domain.ListenStore, domain.CredentialStore, and
// domain.ProcessedStore over guarded maps.
type Store struct {
	mu          sync.RWMutex
	listens     map[int64]domain.Listen
	credentials map[int64]domain.Credential
	processed   map[int64]time.Time
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		listens:     make(map[int64]domain.Listen),
		credentials: make(map[int64]domain.Credential),
		processed:   make(map[int64]time.Time),
	}
}

// Record inserts a listen keyed by played_at at second precision; first write wins.
func (s *Store) Record(ctx context.Context, listen domain.Listen) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	listen.PlayedAt = listen.PlayedAt.UTC().Truncate(time.Second)
	key := listen.PlayedAt.Unix()
	if _, ok := s.listens[key]; ok {
		return nil
	}
	s.listens[key] = listen
	return nil
}

// QueryRange returns listens with start <= played_at <= end, ascending.
func (s *Store) QueryRange(ctx context.Context, start, end time.Time) ([]domain.Listen, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo, hi := start.UTC().Unix(), end.UTC().Unix()
	var listens []domain.Listen
	for key, listen := range s.listens {
		if key >= lo && key <= hi {
			listens = append(listens, listen)
		}
	}
	sort.Slice(listens, func(i, j int) bool {
		return listens[i].PlayedAt.Before(listens[j].PlayedAt)
	})
	return listens, nil
}

// Get returns the credential for the owner, or nil when none is stored.
func (s *Store) Get(ctx context.Context, ownerID int64) (*domain.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credential, ok := s.credentials[ownerID]
	if !ok {
		return nil, nil
	}
	return &credential, nil
}

// Put upserts the credential for its owner.
func (s *Store) Put(ctx context.Context, credential domain.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.credentials[credential.OwnerID] = credential
	return nil
}

// IsProcessed reports whether the activity is recorded in the ledger.
func (s *Store) IsProcessed(ctx context.Context, activityID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.processed[activityID]
	return ok, nil
}

// MarkProcessed upserts the ledger entry.
func (s *Store) MarkProcessed(ctx context.Context, activityID int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.processed[activityID] = at.UTC()
	return nil
}
