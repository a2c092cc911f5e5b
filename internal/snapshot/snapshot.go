// Package snapshot persists combined weather observations so that dashboards
// and the refresh worker can serve history without refetching providers.
package snapshot

import (
	"context"
	"errors"
	"time"

	"github.com/skyfuse/skyfuse/internal/weather"
)

// ErrSnapshotNotFound is returned when no snapshot matches a query.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// Snapshot is one persisted combined observation for a location query.
type Snapshot struct {
	ID        string          `json:"id"`
	Location  string          `json:"location"`
	Weather   weather.Weather `json:"weather"`
	CreatedAt time.Time       `json:"created_at"`
}

// Repository provides access to snapshot storage.
type Repository interface {
	// Save stores a snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Latest returns the most recent snapshot for a location query.
	Latest(ctx context.Context, location string) (*Snapshot, error)

	// ListSince returns snapshots for a location recorded at or after the
	// given time, newest first.
	ListSince(ctx context.Context, location string, since time.Time) ([]Snapshot, error)
}
