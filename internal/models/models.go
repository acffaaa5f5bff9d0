package models

import "time"

// AssignmentStatus tracks the lifecycle of a daily driver+bus binding.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentCompleted  AssignmentStatus = "COMPLETED"
	AssignmentCancelled  AssignmentStatus = "CANCELLED"
)

// TripStatus tracks the rider-facing live trip mirror.
type TripStatus string

const (
	TripScheduled TripStatus = "SCHEDULED"
	TripStarted   TripStatus = "STARTED"
	TripCompleted TripStatus = "COMPLETED"
	TripCancelled TripStatus = "CANCELLED"
)

// CrowdLevel is how full a bus currently is. Stored and transported as a
// string enum everywhere; there is no numeric representation.
type CrowdLevel string

const (
	CrowdLow    CrowdLevel = "LOW"
	CrowdMedium CrowdLevel = "MEDIUM"
	CrowdHigh   CrowdLevel = "HIGH"
)

// Valid reports whether the value is one of the known crowd levels.
func (c CrowdLevel) Valid() bool {
	switch c {
	case CrowdLow, CrowdMedium, CrowdHigh:
		return true
	}
	return false
}

// Depot is a reference entity used for authorization scoping.
type Depot struct {
	ID   int64
	Name string
	City string
}

// Driver is a reference entity. DepotID is nil for unscoped drivers.
type Driver struct {
	ID      int64
	Name    string
	Phone   string
	DepotID *int64
	Active  bool
}

// Route is a catalog entity; the core only reads it for broadcast topics
// and for the static bus-route binding check.
type Route struct {
	ID          int64
	Name        string
	Origin      string
	Destination string
}

// Bus is the catalog entity plus its live telemetry fields. The telemetry
// columns are the authoritative "where is this bus now"; ActiveTrip keeps a
// cache of them that may lag by one write cycle.
type Bus struct {
	ID           int64
	RegNumber    string
	Capacity     int
	RouteID      *int64 // statically bound route, nil if roaming
	DepotID      *int64
	Status       string
	CurrentLat   *float64
	CurrentLng   *float64
	Speed        *float64
	CrowdLevel   *CrowdLevel
	NextStop     *string
	DelayMinutes *int
	OnTrip       bool
	LastUpdated  *time.Time
}

// Schedule is a recurring timetable template: route plus nominal times plus
// a weekday recurrence. Optionally carries a static driver/bus/depot binding
// used by the auto assigner.
type Schedule struct {
	ID            int64
	RouteID       int64
	DepartureTime string // "15:04", server-local time of day
	ArrivalTime   string
	Weekdays      []time.Weekday
	DriverID      *int64
	BusID         *int64
	DepotID       *int64
	Active        bool
}

// RunsOn reports whether the schedule recurs on the given weekday.
func (s *Schedule) RunsOn(day time.Weekday) bool {
	for _, d := range s.Weekdays {
		if d == day {
			return true
		}
	}
	return false
}

// Assignment is the for-date binding of a schedule to a driver and bus.
// At most one row exists per (ScheduleID, AssignedDate); reassignment
// rewrites the row in place rather than inserting a second one.
type Assignment struct {
	ID           int64
	ScheduleID   int64
	AssignedDate time.Time // date component only
	DriverID     int64
	BusID        int64
	DepotID      *int64
	Status       AssignmentStatus
	CrowdLevel   *CrowdLevel
	DelayMinutes *int
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CreatedAt    time.Time
}

// ActiveTrip is the denormalized live-read mirror of an in-progress or
// recently finished trip. Created lazily on the first start, closed on end,
// never deleted.
type ActiveTrip struct {
	ID                 int64
	ScheduleID         int64
	DriverID           int64
	BusID              int64
	Status             TripStatus
	CurrentLat         *float64
	CurrentLng         *float64
	Speed              *float64
	CrowdLevel         *CrowdLevel
	DelayMinutes       *int
	ActualStartTime    *time.Time
	ActualEndTime      *time.Time
	LastLocationUpdate *time.Time
}

// LocationReport is a single telemetry sample from a driver client. All
// fields except coordinates are optional; absent fields leave the stored
// values untouched.
type LocationReport struct {
	Lat          float64
	Lng          float64
	Speed        *float64
	Status       *string
	CrowdLevel   *CrowdLevel
	NextStop     *string
	DelayMinutes *int
}
