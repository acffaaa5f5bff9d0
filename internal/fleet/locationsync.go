package fleet

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetware/fleet_core/internal/clock"
	"github.com/fleetware/fleet_core/internal/models"
	"github.com/fleetware/fleet_core/internal/storage"
)

// Broadcaster fans a payload out to topic subscribers, fire-and-forget.
type Broadcaster interface {
	Publish(topic string, payload any) (delivered, dropped int)
}

// LocationUpdate is the payload published on every accepted telemetry
// report, on both the bus topic and (when the bus is on a trip) the route
// topic.
type LocationUpdate struct {
	BusID        int64              `json:"bus_id"`
	Lat          float64            `json:"latitude"`
	Lng          float64            `json:"longitude"`
	Status       *string            `json:"status,omitempty"`
	CrowdLevel   *models.CrowdLevel `json:"crowd_level,omitempty"`
	NextStop     *string            `json:"next_stop,omitempty"`
	DelayMinutes *int               `json:"delay_minutes,omitempty"`
	Timestamp    time.Time          `json:"timestamp"`
}

// BusTopic and RouteTopic name the two topic sets of the live transport.
func BusTopic(busID int64) string     { return fmt.Sprintf("bus:%d", busID) }
func RouteTopic(routeID int64) string { return fmt.Sprintf("route:%d", routeID) }

// LocationSync applies telemetry reports: two independent, non-transactional
// writes (bus row, then the bus's STARTED mirror row if any), followed by
// the broadcast fanout. Reports for different buses are fully independent;
// reports for the same bus are last-write-wins by arrival order.
type LocationSync struct {
	buses       storage.BusRepository
	trips       storage.ActiveTripRepository
	schedules   storage.ScheduleRepository
	broadcaster Broadcaster
	clock       clock.Clock
}

// NewLocationSync wires a LocationSync.
func NewLocationSync(
	buses storage.BusRepository,
	trips storage.ActiveTripRepository,
	schedules storage.ScheduleRepository,
	broadcaster Broadcaster,
	clk clock.Clock,
) *LocationSync {
	return &LocationSync{
		buses:       buses,
		trips:       trips,
		schedules:   schedules,
		broadcaster: broadcaster,
		clock:       clk,
	}
}

// Report persists one telemetry sample and publishes it. The mirror write is
// skipped without error when the bus has no STARTED trip: a bus may report
// position while off-trip. Returns the published update.
func (s *LocationSync) Report(ctx context.Context, busID int64, rep *models.LocationReport) (*LocationUpdate, error) {
	if rep.CrowdLevel != nil && !rep.CrowdLevel.Valid() {
		return nil, ValidationError("unknown crowd level %q", *rep.CrowdLevel)
	}

	bus, err := s.buses.GetByID(ctx, busID)
	if err != nil {
		return nil, err
	}
	if bus == nil {
		return nil, NotFound("bus %d not found", busID)
	}

	now := s.clock.Now()
	if err := s.buses.PatchTelemetry(ctx, busID, rep, now); err != nil {
		return nil, err
	}

	live, err := s.trips.FindStartedByBus(ctx, busID)
	if err != nil {
		return nil, err
	}
	if live != nil {
		if err := s.trips.PatchTelemetry(ctx, live.ID, rep, now); err != nil {
			return nil, err
		}
	}

	update := &LocationUpdate{
		BusID:        busID,
		Lat:          rep.Lat,
		Lng:          rep.Lng,
		Status:       rep.Status,
		CrowdLevel:   rep.CrowdLevel,
		NextStop:     rep.NextStop,
		DelayMinutes: rep.DelayMinutes,
		Timestamp:    now,
	}

	s.broadcaster.Publish(BusTopic(busID), update)
	if routeID := s.routeForTrip(ctx, live); routeID != 0 {
		s.broadcaster.Publish(RouteTopic(routeID), update)
	}
	return update, nil
}

// routeForTrip resolves the route topic from the bus's current schedule.
// Returns 0 when the bus is off-trip or the schedule is gone.
func (s *LocationSync) routeForTrip(ctx context.Context, live *models.ActiveTrip) int64 {
	if live == nil {
		return 0
	}
	schedule, err := s.schedules.GetByID(ctx, live.ScheduleID)
	if err != nil || schedule == nil {
		return 0
	}
	return schedule.RouteID
}
