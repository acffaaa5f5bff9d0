package storage

import (
	"context"
	"time"

	"github.com/fleetware/fleet_core/internal/models"
)

// ActiveTripRepository defines operations on the active_trips read mirror.
// Rows are created lazily on the first trip start, closed on end and never
// deleted; at most one STARTED row exists per (schedule_id, driver_id).
type ActiveTripRepository interface {
	// FindLive returns the SCHEDULED or STARTED row for (schedule, driver),
	// most recent by id, or (nil, nil).
	FindLive(ctx context.Context, scheduleID, driverID int64) (*models.ActiveTrip, error)

	// FindStartedByBus returns the STARTED row for the bus, most recent by
	// id, or (nil, nil). A bus reporting off-trip has no such row.
	FindStartedByBus(ctx context.Context, busID int64) (*models.ActiveTrip, error)

	// Insert creates a row and returns its id.
	Insert(ctx context.Context, t *models.ActiveTrip) (int64, error)

	// MarkStarted rewrites an existing row in place for a (re)started trip:
	// STARTED status, bound bus, start coordinates and actual_start_time.
	MarkStarted(ctx context.Context, id, busID int64, lat, lng float64, at time.Time) error

	// Patch patches crowd level and delay; nil fields are untouched.
	Patch(ctx context.Context, id int64, crowd *models.CrowdLevel, delayMinutes *int) error

	// PatchTelemetry applies a location report with COALESCE semantics and
	// stamps last_location_update.
	PatchTelemetry(ctx context.Context, id int64, rep *models.LocationReport, at time.Time) error

	// Complete moves a STARTED row to COMPLETED and stamps actual_end_time.
	// Returns false when the row was not STARTED.
	Complete(ctx context.Context, id int64, at time.Time) (bool, error)

	// CountStarted returns the number of STARTED rows for (schedule, driver).
	CountStarted(ctx context.Context, scheduleID, driverID int64) (int, error)
}
