package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skyfuse/skyfuse/internal/weather"
)

// PostgresRepository is a PostgreSQL implementation of Repository. The
// observation itself is stored as JSONB so the schema does not chase the
// weather model.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL snapshot repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save stores a snapshot.
func (r *PostgresRepository) Save(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snap.Weather)
	if err != nil {
		return fmt.Errorf("marshaling snapshot weather: %w", err)
	}

	query := `
		INSERT INTO weather_snapshots (id, location, weather, created_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err = r.pool.Exec(ctx, query, snap.ID, snap.Location, payload, snap.CreatedAt)
	return err
}

// Latest returns the most recent snapshot for a location query.
func (r *PostgresRepository) Latest(ctx context.Context, location string) (*Snapshot, error) {
	query := `
		SELECT id, location, weather, created_at
		FROM weather_snapshots
		WHERE location = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var snap Snapshot
	var payload []byte
	err := r.pool.QueryRow(ctx, query, location).Scan(&snap.ID, &snap.Location, &payload, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(payload, &snap.Weather); err != nil {
		return nil, fmt.Errorf("unmarshaling snapshot weather: %w", err)
	}
	return &snap, nil
}

// ListSince returns snapshots recorded at or after since, newest first.
func (r *PostgresRepository) ListSince(ctx context.Context, location string, since time.Time) ([]Snapshot, error) {
	query := `
		SELECT id, location, weather, created_at
		FROM weather_snapshots
		WHERE location = $1 AND created_at >= $2
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, location, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var snap Snapshot
		var payload []byte
		if err := rows.Scan(&snap.ID, &snap.Location, &payload, &snap.CreatedAt); err != nil {
			return nil, err
		}
		var obs weather.Weather
		if err := json.Unmarshal(payload, &obs); err != nil {
			return nil, fmt.Errorf("unmarshaling snapshot weather: %w", err)
		}
		snap.Weather = obs
		snaps = append(snaps, snap)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snaps, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
