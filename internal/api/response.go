package api

import (
	"errors"
	"log"

	"github.com/fleetware/fleet_core/internal/fleet"
	"github.com/gofiber/fiber/v2"
)

// All responses use a {success, data|error} envelope. Business errors carry
// a stable machine-checkable reason plus a human-readable message and map to
// 4xx; anything unexpected is logged and becomes a bare 500.

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{"success": true, "data": data})
}

func created(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": data})
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"error":   string(fleet.ReasonValidation),
		"message": message,
	})
}

// fail maps a service error onto the envelope.
func fail(c *fiber.Ctx, err error) error {
	reason := fleet.ReasonOf(err)
	var status int
	switch reason {
	case fleet.ReasonNotFound:
		status = fiber.StatusNotFound
	case fleet.ReasonInvalidTransition:
		status = fiber.StatusConflict
	case fleet.ReasonCrossDepotDenied:
		status = fiber.StatusForbidden
	case fleet.ReasonValidation:
		status = fiber.StatusBadRequest
	case fleet.ReasonRouteMismatch:
		status = fiber.StatusUnprocessableEntity
	default:
		log.Printf("api: internal error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "internal_error",
			"message": "internal server error",
		})
	}

	var fe *fleet.Error
	message := err.Error()
	if errors.As(err, &fe) {
		message = fe.Message
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   string(reason),
		"message": message,
	})
}
