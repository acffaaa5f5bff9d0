package storage

import (
	"context"

	"github.com/fleetware/fleet_core/internal/models"
)

// ScheduleRepository reads the recurring timetable templates. Schedules are
// created and edited by depot admins; the core only ever reads them.
type ScheduleRepository interface {
	// GetByID returns the schedule, or (nil, nil) if absent.
	GetByID(ctx context.Context, id int64) (*models.Schedule, error)

	// ListActive returns all active schedules.
	ListActive(ctx context.Context) ([]models.Schedule, error)

	// ListActiveWithRoute returns active schedules joined with their route's
	// display fields, for the listing endpoints.
	ListActiveWithRoute(ctx context.Context) ([]ScheduleWithRoute, error)
}

// DriverRepository reads driver reference data.
type DriverRepository interface {
	// GetByID returns the driver, or (nil, nil) if absent.
	GetByID(ctx context.Context, id int64) (*models.Driver, error)

	// ListActive returns all active drivers.
	ListActive(ctx context.Context) ([]models.Driver, error)
}

// DepotRepository reads depot reference data.
type DepotRepository interface {
	// GetByID returns the depot, or (nil, nil) if absent.
	GetByID(ctx context.Context, id int64) (*models.Depot, error)
}
