package storage

import (
	"context"
	"time"

	"github.com/fleetware/fleet_core/internal/models"
)

// AssignmentRepository defines operations on the assignments table. The
// UNIQUE (schedule_id, assigned_date) constraint lives in the schema; Upsert
// and InsertIfAbsent lean on it instead of application-level locking.
type AssignmentRepository interface {
	// GetByID returns the assignment, or (nil, nil) if absent.
	GetByID(ctx context.Context, id int64) (*models.Assignment, error)

	// FindByScheduleDriverDate matches schedule+driver+date, most recent by
	// id, or (nil, nil).
	FindByScheduleDriverDate(ctx context.Context, scheduleID, driverID int64, date time.Time) (*models.Assignment, error)

	// FindLatestByScheduleDriver matches schedule+driver ignoring the date,
	// most recent by id. Tolerates client clock drift near midnight.
	FindLatestByScheduleDriver(ctx context.Context, scheduleID, driverID int64) (*models.Assignment, error)

	// FindInProgressBySchedule returns the IN_PROGRESS assignment for
	// (schedule, date), or (nil, nil).
	FindInProgressBySchedule(ctx context.Context, scheduleID int64, date time.Time) (*models.Assignment, error)

	// Upsert inserts the binding or, when a row already exists for
	// (schedule_id, assigned_date), rebinds driver/bus/depot in place.
	// Returns the row id.
	Upsert(ctx context.Context, a *models.Assignment) (int64, error)

	// InsertIfAbsent inserts with status ASSIGNED unless a row exists for
	// (schedule_id, assigned_date). Returns (id, true) on insert and
	// (existingID, false) when the row was already there.
	InsertIfAbsent(ctx context.Context, a *models.Assignment) (int64, bool, error)

	// MarkStarted moves ASSIGNED -> IN_PROGRESS and stamps started_at.
	// Returns false when the row is not currently ASSIGNED.
	MarkStarted(ctx context.Context, id int64, at time.Time) (bool, error)

	// MarkCompleted moves IN_PROGRESS -> COMPLETED and stamps completed_at.
	// Returns false when the row is not currently IN_PROGRESS.
	MarkCompleted(ctx context.Context, id int64, at time.Time) (bool, error)

	// PatchTrip patches crowd level and delay onto the row. Nil fields are
	// left untouched.
	PatchTrip(ctx context.Context, id int64, crowd *models.CrowdLevel, delayMinutes *int) error

	// ListByDate returns all assignments for the date.
	ListByDate(ctx context.Context, date time.Time) ([]models.Assignment, error)

	// ListByDriverDate returns a driver's non-cancelled assignments for the
	// date, ordered by id.
	ListByDriverDate(ctx context.Context, driverID int64, date time.Time) ([]models.Assignment, error)

	// ListActiveTrips returns the rider-facing projection of all trips that
	// are IN_PROGRESS on the date.
	ListActiveTrips(ctx context.Context, date time.Time) ([]TripView, error)
}
