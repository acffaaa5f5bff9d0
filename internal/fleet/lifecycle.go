package fleet

import (
	"context"
	"time"

	"github.com/fleetware/fleet_core/internal/clock"
	"github.com/fleetware/fleet_core/internal/models"
	"github.com/fleetware/fleet_core/internal/storage"
)

// Lifecycle drives the ASSIGNED -> IN_PROGRESS -> COMPLETED state machine
// and keeps the Assignment, the bus telemetry columns and the ActiveTrip
// mirror in step. Every transition is guarded by an
// update-if-status-equals-expected write, so duplicate or racing calls
// degrade to reported no-ops instead of corrupting state.
type Lifecycle struct {
	assignments storage.AssignmentRepository
	trips       storage.ActiveTripRepository
	buses       storage.BusRepository
	clock       clock.Clock
}

// NewLifecycle wires a Lifecycle.
func NewLifecycle(
	assignments storage.AssignmentRepository,
	trips storage.ActiveTripRepository,
	buses storage.BusRepository,
	clk clock.Clock,
) *Lifecycle {
	return &Lifecycle{
		assignments: assignments,
		trips:       trips,
		buses:       buses,
		clock:       clk,
	}
}

// StartInput identifies the assignment to start plus the driver's position.
// Date and AssignmentID are optional hints; see Start for the resolution
// order.
type StartInput struct {
	ScheduleID   int64
	DriverID     int64
	Date         *time.Time
	AssignmentID *int64
	Lat          float64
	Lng          float64
}

// Start moves an assignment to IN_PROGRESS. The assignment is resolved
// through an ordered fallback chain: schedule+driver+date first, then the
// explicit assignment id if the caller sent one, then schedule+driver
// ignoring the date (most recent by id, tolerating client clock drift near
// midnight). Returns the assignment id.
func (l *Lifecycle) Start(ctx context.Context, in StartInput) (int64, error) {
	now := l.clock.Now()
	date := now
	if in.Date != nil {
		date = *in.Date
	}

	assignment, err := l.resolveForStart(ctx, in, date)
	if err != nil {
		return 0, err
	}
	if assignment == nil {
		return 0, NotFound("no assignment found for schedule %d and driver %d",
			in.ScheduleID, in.DriverID)
	}

	if assignment.Status != models.AssignmentAssigned {
		return 0, InvalidTransition("assignment %d is %s, expected ASSIGNED",
			assignment.ID, assignment.Status)
	}
	ok, err := l.assignments.MarkStarted(ctx, assignment.ID, now)
	if err != nil {
		return 0, err
	}
	if !ok {
		// Lost a race with another start; the earlier one already won.
		return 0, InvalidTransition("assignment %d is no longer ASSIGNED", assignment.ID)
	}

	if err := l.buses.SetPosition(ctx, assignment.BusID, in.Lat, in.Lng, now); err != nil {
		return 0, err
	}

	// The mirror row is reused when one is still open for this
	// schedule+driver, otherwise created lazily.
	live, err := l.trips.FindLive(ctx, in.ScheduleID, assignment.DriverID)
	if err != nil {
		return 0, err
	}
	if live != nil {
		if err := l.trips.MarkStarted(ctx, live.ID, assignment.BusID, in.Lat, in.Lng, now); err != nil {
			return 0, err
		}
	} else {
		lat, lng := in.Lat, in.Lng
		_, err = l.trips.Insert(ctx, &models.ActiveTrip{
			ScheduleID:         in.ScheduleID,
			DriverID:           assignment.DriverID,
			BusID:              assignment.BusID,
			Status:             models.TripStarted,
			CurrentLat:         &lat,
			CurrentLng:         &lng,
			ActualStartTime:    &now,
			LastLocationUpdate: &now,
		})
		if err != nil {
			return 0, err
		}
	}

	return assignment.ID, nil
}

func (l *Lifecycle) resolveForStart(ctx context.Context, in StartInput, date time.Time) (*models.Assignment, error) {
	a, err := l.assignments.FindByScheduleDriverDate(ctx, in.ScheduleID, in.DriverID, date)
	if err != nil || a != nil {
		return a, err
	}

	if in.AssignmentID != nil {
		a, err = l.assignments.GetByID(ctx, *in.AssignmentID)
		if err != nil {
			return nil, err
		}
		if a != nil && a.ScheduleID == in.ScheduleID {
			return a, nil
		}
	}

	return l.assignments.FindLatestByScheduleDriver(ctx, in.ScheduleID, in.DriverID)
}

// UpdateInput carries the patchable live-trip fields. Nil fields are left
// untouched everywhere.
type UpdateInput struct {
	CrowdLevel   *models.CrowdLevel
	DelayMinutes *int
}

// Update patches crowd level and delay onto the in-progress assignment for
// (schedule, today), its bus, and its STARTED mirror row.
func (l *Lifecycle) Update(ctx context.Context, scheduleID int64, in UpdateInput) error {
	if in.CrowdLevel != nil && !in.CrowdLevel.Valid() {
		return ValidationError("unknown crowd level %q", *in.CrowdLevel)
	}

	assignment, err := l.assignments.FindInProgressBySchedule(ctx, scheduleID, l.clock.Now())
	if err != nil {
		return err
	}
	if assignment == nil {
		return NotFound("no active trip for schedule %d", scheduleID)
	}

	if err := l.assignments.PatchTrip(ctx, assignment.ID, in.CrowdLevel, in.DelayMinutes); err != nil {
		return err
	}
	if err := l.buses.Patch(ctx, assignment.BusID, in.CrowdLevel, in.DelayMinutes); err != nil {
		return err
	}

	live, err := l.trips.FindLive(ctx, scheduleID, assignment.DriverID)
	if err != nil {
		return err
	}
	if live != nil && live.Status == models.TripStarted {
		if err := l.trips.Patch(ctx, live.ID, in.CrowdLevel, in.DelayMinutes); err != nil {
			return err
		}
	}
	return nil
}

// End completes the in-progress assignment for (schedule, today): status
// COMPLETED, the bus's trip flags cleared, the mirror row closed with
// actual_end_time. Returns the assignment id.
func (l *Lifecycle) End(ctx context.Context, scheduleID int64) (int64, error) {
	now := l.clock.Now()

	assignment, err := l.assignments.FindInProgressBySchedule(ctx, scheduleID, now)
	if err != nil {
		return 0, err
	}
	if assignment == nil {
		return 0, NotFound("no active trip for schedule %d", scheduleID)
	}

	ok, err := l.assignments.MarkCompleted(ctx, assignment.ID, now)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, InvalidTransition("assignment %d is no longer IN_PROGRESS", assignment.ID)
	}

	if err := l.buses.ClearTripState(ctx, assignment.BusID, now); err != nil {
		return 0, err
	}

	live, err := l.trips.FindLive(ctx, scheduleID, assignment.DriverID)
	if err != nil {
		return 0, err
	}
	if live != nil && live.Status == models.TripStarted {
		if _, err := l.trips.Complete(ctx, live.ID, now); err != nil {
			return 0, err
		}
	}

	return assignment.ID, nil
}
