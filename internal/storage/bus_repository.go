package storage

import (
	"context"
	"time"

	"github.com/fleetware/fleet_core/internal/models"
)

// BusRepository defines operations on the buses table. The telemetry columns
// on the bus row are the authoritative live position.
type BusRepository interface {
	// GetByID returns the bus, or (nil, nil) if absent.
	GetByID(ctx context.Context, id int64) (*models.Bus, error)

	// SetPosition writes the trip-start coordinates and flags the bus as
	// on-trip.
	SetPosition(ctx context.Context, id int64, lat, lng float64, at time.Time) error

	// Patch patches crowd level and delay; nil fields are untouched.
	Patch(ctx context.Context, id int64, crowd *models.CrowdLevel, delayMinutes *int) error

	// PatchTelemetry applies a location report with COALESCE semantics and
	// stamps last_updated.
	PatchTelemetry(ctx context.Context, id int64, rep *models.LocationReport, at time.Time) error

	// ClearTripState resets the on-trip and crowd flags when a trip ends.
	ClearTripState(ctx context.Context, id int64, at time.Time) error
}
