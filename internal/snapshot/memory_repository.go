package snapshot

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu    sync.RWMutex
	snaps []Snapshot
}

// NewInMemoryRepository creates a new in-memory snapshot repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Save stores a snapshot.
func (r *InMemoryRepository) Save(_ context.Context, snap *Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.snaps = append(r.snaps, *snap)
	return nil
}

// Latest returns the most recent snapshot for a location query.
func (r *InMemoryRepository) Latest(_ context.Context, location string) (*Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest *Snapshot
	for i := range r.snaps {
		if r.snaps[i].Location != location {
			continue
		}
		if latest == nil || r.snaps[i].CreatedAt.After(latest.CreatedAt) {
			latest = &r.snaps[i]
		}
	}
	if latest == nil {
		return nil, ErrSnapshotNotFound
	}

	cpy := *latest
	return &cpy, nil
}

// ListSince returns snapshots recorded at or after since, newest first.
func (r *InMemoryRepository) ListSince(_ context.Context, location string, since time.Time) ([]Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Snapshot
	for _, snap := range r.snaps {
		if snap.Location == location && !snap.CreatedAt.Before(since) {
			matched = append(matched, snap)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	return matched, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
