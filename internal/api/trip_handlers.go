package api

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetware/fleet_core/internal/cache"
	"github.com/fleetware/fleet_core/internal/fleet"
	"github.com/fleetware/fleet_core/internal/middleware"
	"github.com/fleetware/fleet_core/internal/models"
	"github.com/fleetware/fleet_core/internal/storage"
)

const activeTripsCacheTTL = 5 * time.Second

type startTripRequest struct {
	Latitude     float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude    float64 `json:"longitude" validate:"gte=-180,lte=180"`
	BusID        *int64  `json:"bus_id"`
	AssignmentID *int64  `json:"assignment_id"`
	AssignedDate *string `json:"assigned_date"`
}

// StartTrip handles POST /schedules/:id/start
func (a *API) StartTrip(c *fiber.Ctx) error {
	scheduleID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid schedule id")
	}

	var req startTripRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := a.validator().Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	var date *time.Time
	if req.AssignedDate != nil {
		parsed, err := time.ParseInLocation("2006-01-02", *req.AssignedDate, time.Local)
		if err != nil {
			return badRequest(c, "invalid assigned_date (use YYYY-MM-DD)")
		}
		date = &parsed
	}

	actor := middleware.ActorFrom(c)
	assignmentID, err := a.Lifecycle.Start(c.Context(), fleet.StartInput{
		ScheduleID:   scheduleID,
		DriverID:     actor.UserID,
		Date:         date,
		AssignmentID: req.AssignmentID,
		Lat:          req.Latitude,
		Lng:          req.Longitude,
	})
	if err != nil {
		return fail(c, err)
	}

	a.Metrics.TripsStarted.Inc()
	a.invalidateActiveTrips(c)
	return ok(c, fiber.Map{"assignment_id": assignmentID})
}

type updateTripRequest struct {
	CrowdLevel   *models.CrowdLevel `json:"crowd_level" validate:"omitempty,oneof=LOW MEDIUM HIGH"`
	DelayMinutes *int               `json:"delay_minutes" validate:"omitempty,gte=0"`
}

// UpdateTrip handles PUT /schedules/:id/update
func (a *API) UpdateTrip(c *fiber.Ctx) error {
	scheduleID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid schedule id")
	}

	var req updateTripRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := a.validator().Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if err := a.Lifecycle.Update(c.Context(), scheduleID, fleet.UpdateInput{
		CrowdLevel:   req.CrowdLevel,
		DelayMinutes: req.DelayMinutes,
	}); err != nil {
		return fail(c, err)
	}

	a.invalidateActiveTrips(c)
	return ok(c, fiber.Map{"schedule_id": scheduleID})
}

// EndTrip handles POST /schedules/:id/end
func (a *API) EndTrip(c *fiber.Ctx) error {
	scheduleID, err := pathID(c, "id")
	if err != nil {
		return badRequest(c, "invalid schedule id")
	}

	assignmentID, err := a.Lifecycle.End(c.Context(), scheduleID)
	if err != nil {
		return fail(c, err)
	}

	a.Metrics.TripsCompleted.Inc()
	a.invalidateActiveTrips(c)
	return ok(c, fiber.Map{"assignment_id": assignmentID})
}

// ActiveTrips handles GET /schedules/active-trips
func (a *API) ActiveTrips(c *fiber.Ctx) error {
	now := a.Clock.Now()
	key := cache.ActiveTripsKey(now.Format("2006-01-02"))

	var cached []map[string]any
	if err := cache.GetJSON(c.Context(), key, &cached); err == nil {
		return ok(c, cached)
	}

	trips, err := a.Assignments.ListActiveTrips(c.Context(), now)
	if err != nil {
		return fail(c, err)
	}
	if trips == nil {
		trips = []storage.TripView{}
	}

	if err := cache.SetJSON(c.Context(), key, trips, activeTripsCacheTTL); err != nil {
		log.Printf("api: active trips cache set: %v", err)
	}
	return ok(c, trips)
}

// MyTodayAssignments handles GET /schedules/my-today
func (a *API) MyTodayAssignments(c *fiber.Ctx) error {
	actor := middleware.ActorFrom(c)
	assignments, err := a.Assignments.ListByDriverDate(c.Context(), actor.UserID, a.Clock.Now())
	if err != nil {
		return fail(c, err)
	}

	out := make([]fiber.Map, 0, len(assignments))
	for _, asg := range assignments {
		out = append(out, fiber.Map{
			"assignment_id": asg.ID,
			"schedule_id":   asg.ScheduleID,
			"bus_id":        asg.BusID,
			"status":        asg.Status,
			"assigned_date": asg.AssignedDate.Format("2006-01-02"),
			"started_at":    asg.StartedAt,
			"completed_at":  asg.CompletedAt,
		})
	}
	return ok(c, out)
}

func (a *API) invalidateActiveTrips(c *fiber.Ctx) {
	key := cache.ActiveTripsKey(a.Clock.Now().Format("2006-01-02"))
	if err := cache.Invalidate(c.Context(), key); err != nil {
		log.Printf("api: active trips cache invalidate: %v", err)
	}
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	return strconv.ParseInt(c.Params(name), 10, 64)
}
