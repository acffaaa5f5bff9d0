package api

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetware/fleet_core/internal/cache"
	"github.com/fleetware/fleet_core/internal/fleet"
	"github.com/fleetware/fleet_core/internal/models"
)

const busSnapshotTTL = 5 * time.Minute

type busLocationRequest struct {
	Latitude     float64            `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64            `json:"longitude" validate:"gte=-180,lte=180"`
	Speed        *float64           `json:"speed" validate:"omitempty,gte=0"`
	Status       *string            `json:"status"`
	CrowdLevel   *models.CrowdLevel `json:"crowdLevel" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	NextStop     *string            `json:"nextStop"`
	DelayMinutes *int               `json:"delayMinutes" validate:"omitempty,gte=0"`
}

// UpdateBusLocation handles PUT /buses/:id/location. The report is written
// to the bus row, mirrored onto the STARTED trip if there is one, and
// published as busLocationUpdate on the bus and route topics.
func (a *API) UpdateBusLocation(c *fiber.Ctx) error {
	busID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid bus id")
	}

	var req busLocationRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := a.validator().Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	update, err := a.Location.Report(c.Context(), busID, &models.LocationReport{
		Lat:          req.Latitude,
		Lng:          req.Longitude,
		Speed:        req.Speed,
		Status:       req.Status,
		CrowdLevel:   req.CrowdLevel,
		NextStop:     req.NextStop,
		DelayMinutes: req.DelayMinutes,
	})
	if err != nil {
		return fail(c, err)
	}

	a.Metrics.TelemetryReports.Inc()

	// Snapshot for the rider read path; a client that missed the broadcast
	// polls this instead.
	if err := cache.SetJSON(c.Context(), cache.BusSnapshotKey(busID), update, busSnapshotTTL); err != nil {
		log.Printf("api: bus snapshot cache set: %v", err)
	}

	return ok(c, fiber.Map{"message": "location updated"})
}

// BusLocation handles GET /buses/:id/location: the latest known position,
// served from the snapshot cache when fresh, else from the bus row.
func (a *API) BusLocation(c *fiber.Ctx) error {
	busID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid bus id")
	}

	var snapshot fleet.LocationUpdate
	if err := cache.GetJSON(c.Context(), cache.BusSnapshotKey(busID), &snapshot); err == nil {
		return ok(c, snapshot)
	}

	bus, err := a.Buses.GetByID(c.Context(), busID)
	if err != nil {
		return fail(c, err)
	}
	if bus == nil {
		return fail(c, fleet.NotFound("bus %d not found", busID))
	}

	return ok(c, fiber.Map{
		"bus_id":        bus.ID,
		"latitude":      bus.CurrentLat,
		"longitude":     bus.CurrentLng,
		"speed":         bus.Speed,
		"status":        bus.Status,
		"crowd_level":   bus.CrowdLevel,
		"next_stop":     bus.NextStop,
		"delay_minutes": bus.DelayMinutes,
		"timestamp":     bus.LastUpdated,
	})
}
