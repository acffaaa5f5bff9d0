package fleet

import (
	"context"
	"sort"
	"time"

	"github.com/fleetware/fleet_core/internal/clock"
	"github.com/fleetware/fleet_core/internal/config"
	"github.com/fleetware/fleet_core/internal/models"
	"github.com/fleetware/fleet_core/internal/storage"
)

// AutoAssigner batch-creates bindings for all of today's recurring active
// schedules. Inserts are insert-if-absent against the (schedule, date)
// constraint, so re-running the batch is safe at any time.
type AutoAssigner struct {
	schedules   storage.ScheduleRepository
	assignments storage.AssignmentRepository
	drivers     storage.DriverRepository
	clock       clock.Clock
	policy      config.Policy
}

// NewAutoAssigner wires an AutoAssigner.
func NewAutoAssigner(
	schedules storage.ScheduleRepository,
	assignments storage.AssignmentRepository,
	drivers storage.DriverRepository,
	clk clock.Clock,
	policy config.Policy,
) *AutoAssigner {
	return &AutoAssigner{
		schedules:   schedules,
		assignments: assignments,
		drivers:     drivers,
		clock:       clk,
		policy:      policy,
	}
}

// UnassignedTrip reports a schedule the batch could not bind. These are
// surfaced to the operator, never silently dropped.
type UnassignedTrip struct {
	ScheduleID int64  `json:"schedule_id"`
	Departure  string `json:"departure_time"`
	Reason     string `json:"reason"`
}

// RunReport summarizes one batch run.
type RunReport struct {
	Date            string           `json:"date"`
	CreatedIDs      []int64          `json:"created_assignment_ids"`
	AlreadyAssigned int              `json:"already_assigned"`
	Unassigned      []UnassignedTrip `json:"unassigned"`
}

// RunDaily plans and persists today's bindings.
func (a *AutoAssigner) RunDaily(ctx context.Context) (*RunReport, error) {
	now := a.clock.Now()

	schedules, err := a.schedules.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	existing, err := a.assignments.ListByDate(ctx, now)
	if err != nil {
		return nil, err
	}
	drivers, err := a.drivers.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	plan := planDay(now, schedules, existing, drivers, a.policy)

	report := &RunReport{
		Date:       now.Format("2006-01-02"),
		CreatedIDs: []int64{},
		Unassigned: plan.Unassigned,
	}
	for _, create := range plan.Create {
		create := create
		id, created, err := a.assignments.InsertIfAbsent(ctx, &create)
		if err != nil {
			return nil, err
		}
		if created {
			report.CreatedIDs = append(report.CreatedIDs, id)
		} else {
			// Raced with a manual assign between plan and insert.
			report.AlreadyAssigned++
		}
	}
	report.AlreadyAssigned += plan.AlreadyAssigned
	return report, nil
}

// dayPlan is the pure planning result for one operating day.
type dayPlan struct {
	Create          []models.Assignment
	AlreadyAssigned int
	Unassigned      []UnassignedTrip
}

// planDay decides the bindings without touching the store. Schedules with a
// static driver use it directly; otherwise a driver is chosen dynamically,
// honoring the minimum inter-trip buffer: a driver is a candidate only when
// the arrival of their latest trip that day, plus the buffer, is no later
// than the new trip's departure.
func planDay(date time.Time, schedules []models.Schedule, existing []models.Assignment, drivers []models.Driver, pol config.Policy) dayPlan {
	assignedSchedules := make(map[int64]bool)
	// driverBusy maps driver id to the latest arrival (minutes since
	// midnight) among their non-cancelled trips today.
	driverBusy := make(map[int64]int)

	scheduleByID := make(map[int64]*models.Schedule, len(schedules))
	for i := range schedules {
		scheduleByID[schedules[i].ID] = &schedules[i]
	}
	for _, a := range existing {
		if a.Status == models.AssignmentCancelled {
			continue
		}
		assignedSchedules[a.ScheduleID] = true
		if s, ok := scheduleByID[a.ScheduleID]; ok {
			if arr, err := minutesOfDay(s.ArrivalTime); err == nil && arr > driverBusy[a.DriverID] {
				driverBusy[a.DriverID] = arr
			}
		}
	}

	// Earlier departures claim drivers first.
	ordered := make([]models.Schedule, 0, len(schedules))
	for _, s := range schedules {
		if s.Active && s.RunsOn(date.Weekday()) {
			ordered = append(ordered, s)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].DepartureTime < ordered[j].DepartureTime
	})

	var plan dayPlan
	for _, s := range ordered {
		if assignedSchedules[s.ID] {
			plan.AlreadyAssigned++
			continue
		}
		if s.BusID == nil {
			plan.Unassigned = append(plan.Unassigned, UnassignedTrip{
				ScheduleID: s.ID, Departure: s.DepartureTime,
				Reason: "schedule has no bus configured",
			})
			continue
		}

		driverID, reason := chooseDriver(&s, drivers, driverBusy, pol.DriverBufferMin)
		if driverID == 0 {
			plan.Unassigned = append(plan.Unassigned, UnassignedTrip{
				ScheduleID: s.ID, Departure: s.DepartureTime, Reason: reason,
			})
			continue
		}

		depot := s.DepotID
		if depot == nil {
			d := pol.DefaultDepotID
			depot = &d
		}
		plan.Create = append(plan.Create, models.Assignment{
			ScheduleID:   s.ID,
			AssignedDate: date,
			DriverID:     driverID,
			BusID:        *s.BusID,
			DepotID:      depot,
			Status:       models.AssignmentAssigned,
		})
		assignedSchedules[s.ID] = true
		if arr, err := minutesOfDay(s.ArrivalTime); err == nil && arr > driverBusy[driverID] {
			driverBusy[driverID] = arr
		}
	}
	return plan
}

// chooseDriver returns the schedule's static driver when it satisfies the
// buffer, otherwise the first free candidate from the same depot (or
// unscoped). Returns 0 and a reason when nobody can take the trip.
func chooseDriver(s *models.Schedule, drivers []models.Driver, driverBusy map[int64]int, bufferMin int) (int64, string) {
	dep, err := minutesOfDay(s.DepartureTime)
	if err != nil {
		return 0, "invalid departure time"
	}

	available := func(id int64) bool {
		busyUntil, ok := driverBusy[id]
		return !ok || busyUntil+bufferMin <= dep
	}

	if s.DriverID != nil {
		if available(*s.DriverID) {
			return *s.DriverID, ""
		}
		return 0, "configured driver unavailable within buffer"
	}

	for _, d := range drivers {
		if !d.Active {
			continue
		}
		if s.DepotID != nil && d.DepotID != nil && *d.DepotID != *s.DepotID {
			continue
		}
		if available(d.ID) {
			return d.ID, ""
		}
	}
	return 0, "no driver available within buffer"
}

func minutesOfDay(hhmm string) (int, error) {
	h, m, err := parseTimeOfDay(hhmm)
	if err != nil {
		return 0, err
	}
	return h*60 + m, nil
}
