package homebrew

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use PostgresRepository.
type InMemoryRepository struct {
	mu      sync.RWMutex
	reports []Report
}

// NewInMemoryRepository creates a new in-memory report repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

// Insert stores a new report.
func (r *InMemoryRepository) Insert(_ context.Context, report *Report) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.reports = append(r.reports, *report)
	return nil
}

// Latest returns up to limit reports for a device type, newest first.
func (r *InMemoryRepository) Latest(ctx context.Context, deviceType string, limit int) ([]Report, error) {
	return r.ListSince(ctx, deviceType, 0, limit)
}

// ListSince returns up to limit reports recorded at or after since.
func (r *InMemoryRepository) ListSince(_ context.Context, deviceType string, since int64, limit int) ([]Report, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []Report
	for _, report := range r.reports {
		if deviceType != "" && report.DeviceType != deviceType {
			continue
		}
		if report.Timestamp < since {
			continue
		}
		matched = append(matched, report)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Timestamp > matched[j].Timestamp
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
