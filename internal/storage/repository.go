// Package storage defines the persistence interfaces for the trip subsystem
// and their PostgreSQL implementations.
//
// Repositories return (nil, nil) for lookups that find nothing; the calling
// service decides whether that is a business error. Guarded transitions
// return a bool reporting whether the row matched the expected predecessor
// status, so duplicate calls degrade to no-ops instead of corrupting state.
package storage

import (
	"time"

	"github.com/fleetware/fleet_core/internal/models"
)

const queryTimeout = 5 * time.Second

// dateOf strips the time component; assignment rows key on the calendar day.
func dateOf(t time.Time) string {
	return t.Format("2006-01-02")
}

// TripView is the rider-facing projection of an in-progress trip, joined
// across assignments, schedules, routes, buses and drivers.
type TripView struct {
	AssignmentID int64              `json:"assignment_id"`
	ScheduleID   int64              `json:"schedule_id"`
	Status       models.TripStatus  `json:"status"`
	Lat          *float64           `json:"latitude"`
	Lng          *float64           `json:"longitude"`
	Speed        *float64           `json:"speed"`
	CrowdLevel   *models.CrowdLevel `json:"crowd_level"`
	DelayMinutes *int               `json:"delay_minutes"`
	RouteID      int64              `json:"route_id"`
	RouteName    string             `json:"route"`
	BusID        int64              `json:"bus_id"`
	BusRegNumber string             `json:"bus"`
	DriverID     int64              `json:"driver_id"`
	DriverName   string             `json:"driver"`
	StartedAt    *time.Time         `json:"started_at"`
}

// ScheduleWithRoute pairs a schedule with its route's display fields for
// listing endpoints.
type ScheduleWithRoute struct {
	models.Schedule
	RouteName        string
	RouteOrigin      string
	RouteDestination string
}
