package homebrew

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL report repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Insert stores a new report.
func (r *PostgresRepository) Insert(ctx context.Context, report *Report) error {
	query := `
		INSERT INTO weather_reports (
			id, device_type, temperature, humidity, precipitation,
			pm10, pm25, co2, tvoc, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.pool.Exec(ctx, query,
		report.ID,
		report.DeviceType,
		report.Temperature,
		report.Humidity,
		report.Precipitation,
		report.PM10,
		report.PM25,
		report.CO2,
		report.TVOC,
		report.Timestamp,
	)
	return err
}

// Latest returns up to limit reports for a device type, newest first.
func (r *PostgresRepository) Latest(ctx context.Context, deviceType string, limit int) ([]Report, error) {
	query := `
		SELECT
			id, device_type, temperature, humidity, precipitation,
			pm10, pm25, co2, tvoc, timestamp
		FROM weather_reports
		WHERE ($1 = '' OR device_type = $1)
		ORDER BY timestamp DESC
		LIMIT $2
	`

	return r.scanReports(ctx, query, deviceType, limit)
}

// ListSince returns up to limit reports recorded at or after since.
func (r *PostgresRepository) ListSince(ctx context.Context, deviceType string, since int64, limit int) ([]Report, error) {
	query := `
		SELECT
			id, device_type, temperature, humidity, precipitation,
			pm10, pm25, co2, tvoc, timestamp
		FROM weather_reports
		WHERE ($1 = '' OR device_type = $1) AND timestamp >= $2
		ORDER BY timestamp DESC
		LIMIT $3
	`

	return r.scanReports(ctx, query, deviceType, since, limit)
}

func (r *PostgresRepository) scanReports(ctx context.Context, query string, args ...interface{}) ([]Report, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var report Report
		err := rows.Scan(
			&report.ID,
			&report.DeviceType,
			&report.Temperature,
			&report.Humidity,
			&report.Precipitation,
			&report.PM10,
			&report.PM25,
			&report.CO2,
			&report.TVOC,
			&report.Timestamp,
		)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return reports, nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
