package homebrew

import (
	"context"
	"errors"
)

// ErrReportNotFound is returned when no report matches a query.
var ErrReportNotFound = errors.New("report not found")

// Repository provides access to sensor report storage.
type Repository interface {
	// Insert stores a new report.
	Insert(ctx context.Context, report *Report) error

	// Latest returns up to limit reports for a device type, newest first.
	// An empty device type matches all devices.
	Latest(ctx context.Context, deviceType string, limit int) ([]Report, error)

	// ListSince returns up to limit reports for a device type recorded at
	// or after the given Unix timestamp, newest first.
	ListSince(ctx context.Context, deviceType string, since int64, limit int) ([]Report, error)
}
