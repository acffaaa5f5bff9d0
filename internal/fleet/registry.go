package fleet

import (
	"context"
	"time"

	"github.com/fleetware/fleet_core/internal/models"
	"github.com/fleetware/fleet_core/internal/storage"
)

// Registry creates and rebinds the daily driver+bus+schedule bindings.
// Uniqueness of (schedule, date) is enforced by the database constraint the
// Upsert leans on, so concurrent assigns for the same pair collapse into one
// row.
type Registry struct {
	schedules   storage.ScheduleRepository
	drivers     storage.DriverRepository
	buses       storage.BusRepository
	depots      storage.DepotRepository
	assignments storage.AssignmentRepository
}

// NewRegistry wires a Registry.
func NewRegistry(
	schedules storage.ScheduleRepository,
	drivers storage.DriverRepository,
	buses storage.BusRepository,
	depots storage.DepotRepository,
	assignments storage.AssignmentRepository,
) *Registry {
	return &Registry{
		schedules:   schedules,
		drivers:     drivers,
		buses:       buses,
		depots:      depots,
		assignments: assignments,
	}
}

// AssignInput is one binding request. ActingDepotID is set for depot-scoped
// callers and nil for central operators.
type AssignInput struct {
	ScheduleID    int64
	DriverID      int64
	BusID         int64
	Date          time.Time
	ActingDepotID *int64
}

// Assign validates the referenced entities and upserts the binding for
// (schedule, date). If the pair is already bound, the driver/bus/depot are
// rewritten in place and the existing row's id is returned.
func (r *Registry) Assign(ctx context.Context, in AssignInput) (int64, error) {
	schedule, err := r.schedules.GetByID(ctx, in.ScheduleID)
	if err != nil {
		return 0, err
	}
	if schedule == nil {
		return 0, NotFound("schedule %d not found", in.ScheduleID)
	}

	driver, err := r.drivers.GetByID(ctx, in.DriverID)
	if err != nil {
		return 0, err
	}
	if driver == nil {
		return 0, NotFound("driver %d not found", in.DriverID)
	}

	bus, err := r.buses.GetByID(ctx, in.BusID)
	if err != nil {
		return 0, err
	}
	if bus == nil {
		return 0, NotFound("bus %d not found", in.BusID)
	}

	// A bus statically bound to a route can only serve schedules on that
	// route.
	if bus.RouteID != nil && *bus.RouteID != schedule.RouteID {
		return 0, RouteMismatch(
			"bus %d is bound to route %d, schedule %d runs route %d",
			bus.ID, *bus.RouteID, schedule.ID, schedule.RouteID)
	}

	if in.ActingDepotID != nil {
		depot, err := r.depots.GetByID(ctx, *in.ActingDepotID)
		if err != nil {
			return 0, err
		}
		if depot == nil {
			return 0, NotFound("depot %d not found", *in.ActingDepotID)
		}
		if err := checkDepotScope(*in.ActingDepotID, schedule.DepotID, "schedule"); err != nil {
			return 0, err
		}
		if err := checkDepotScope(*in.ActingDepotID, driver.DepotID, "driver"); err != nil {
			return 0, err
		}
		if err := checkDepotScope(*in.ActingDepotID, bus.DepotID, "bus"); err != nil {
			return 0, err
		}
	}

	assignment := &models.Assignment{
		ScheduleID:   in.ScheduleID,
		AssignedDate: in.Date,
		DriverID:     in.DriverID,
		BusID:        in.BusID,
		DepotID:      bindingDepot(in, schedule, bus, driver),
	}
	return r.assignments.Upsert(ctx, assignment)
}

// checkDepotScope enforces depot isolation. Resources without a depot are
// unscoped and always permitted.
func checkDepotScope(acting int64, resource *int64, kind string) error {
	if resource != nil && *resource != acting {
		return CrossDepotDenied("%s belongs to depot %d, caller is scoped to depot %d",
			kind, *resource, acting)
	}
	return nil
}

// bindingDepot picks the depot recorded on the assignment: the caller's
// scope when present, otherwise the first scoped resource.
func bindingDepot(in AssignInput, s *models.Schedule, b *models.Bus, d *models.Driver) *int64 {
	switch {
	case in.ActingDepotID != nil:
		return in.ActingDepotID
	case s.DepotID != nil:
		return s.DepotID
	case b.DepotID != nil:
		return b.DepotID
	case d.DepotID != nil:
		return d.DepotID
	}
	return nil
}
