package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetware/fleet_core/internal/fleet"
	"github.com/fleetware/fleet_core/internal/middleware"
)

type assignRequest struct {
	DriverID     int64  `json:"driver_id" validate:"gt=0"`
	ScheduleID   int64  `json:"schedule_id" validate:"gt=0"`
	BusID        int64  `json:"bus_id" validate:"gt=0"`
	AssignedDate string `json:"assigned_date" validate:"required"`
}

// AssignTrip handles POST /assignments/assign. Depot admins are scoped to
// their own depot's resources; central admins are unscoped.
func (a *API) AssignTrip(c *fiber.Ctx) error {
	var req assignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := a.validator().Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	date, err := time.ParseInLocation("2006-01-02", req.AssignedDate, time.Local)
	if err != nil {
		return badRequest(c, "invalid assigned_date (use YYYY-MM-DD)")
	}

	actor := middleware.ActorFrom(c)
	var actingDepot *int64
	if actor.Role == middleware.RoleDepotAdmin {
		actingDepot = actor.DepotID
	}

	assignmentID, err := a.Registry.Assign(c.Context(), fleet.AssignInput{
		ScheduleID:    req.ScheduleID,
		DriverID:      req.DriverID,
		BusID:         req.BusID,
		Date:          date,
		ActingDepotID: actingDepot,
	})
	if err != nil {
		return fail(c, err)
	}

	return created(c, fiber.Map{"assignment_id": assignmentID})
}

// AutoAssign handles POST /assignments/auto: run the daily batch for all of
// today's recurring schedules. Safe to re-run; already-bound schedules are
// counted, unassignable ones reported.
func (a *API) AutoAssign(c *fiber.Ctx) error {
	report, err := a.AutoAssigner.RunDaily(c.Context())
	if err != nil {
		return fail(c, err)
	}
	return ok(c, report)
}
