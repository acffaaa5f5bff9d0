package api

import (
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/fleetware/fleet_core/internal/cache"
	"github.com/fleetware/fleet_core/internal/storage"
)

const upcomingCacheTTL = 60 * time.Second

type scheduleListing struct {
	ScheduleID    int64  `json:"schedule_id"`
	RouteID       int64  `json:"route_id"`
	Route         string `json:"route"`
	Origin        string `json:"origin"`
	Destination   string `json:"destination"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	MinutesUntil  int    `json:"minutes_until_departure"`
	TimeStatus    string `json:"time_status"`
}

// ListSchedules handles GET /schedules: every active schedule with its
// rider-facing time status for today.
func (a *API) ListSchedules(c *fiber.Ctx) error {
	schedules, err := a.Schedules.ListActiveWithRoute(c.Context())
	if err != nil {
		return fail(c, err)
	}

	now := a.Clock.Now()
	out := make([]scheduleListing, 0, len(schedules))
	for _, s := range schedules {
		st, err := a.TimeStatus.Status(s.DepartureTime, now)
		if err != nil {
			log.Printf("api: schedule %d has bad departure time %q", s.ID, s.DepartureTime)
			continue
		}
		out = append(out, listingFor(s, st.MinutesUntil, st.Bucket))
	}
	return ok(c, out)
}

// UpcomingSchedules handles GET /schedules/upcoming?hoursAhead=: schedules
// departing within the forward window, bucketed boarding/soon/upcoming.
func (a *API) UpcomingSchedules(c *fiber.Ctx) error {
	hoursAhead, _ := strconv.Atoi(c.Query("hoursAhead", "0"))
	if hoursAhead < 0 || hoursAhead > 24 {
		return badRequest(c, "hoursAhead must be between 0 and 24")
	}

	now := a.Clock.Now()
	key := cache.UpcomingKey(now.Format("2006-01-02"), now.Hour()*60+now.Minute(), hoursAhead)

	var cached []scheduleListing
	if err := cache.GetJSON(c.Context(), key, &cached); err == nil {
		return ok(c, cached)
	}

	schedules, err := a.Schedules.ListActiveWithRoute(c.Context())
	if err != nil {
		return fail(c, err)
	}

	out := make([]scheduleListing, 0, len(schedules))
	for _, s := range schedules {
		if !s.RunsOn(now.Weekday()) {
			continue
		}
		in, err := a.TimeStatus.InWindow(s.DepartureTime, now, hoursAhead)
		if err != nil || !in {
			continue
		}
		st, err := a.TimeStatus.UpcomingStatus(s.DepartureTime, now)
		if err != nil {
			continue
		}
		out = append(out, listingFor(s, st.MinutesUntil, st.Bucket))
	}

	if err := cache.SetJSON(c.Context(), key, out, upcomingCacheTTL); err != nil {
		log.Printf("api: upcoming cache set: %v", err)
	}
	return ok(c, out)
}

func listingFor(s storage.ScheduleWithRoute, minutesUntil int, bucket string) scheduleListing {
	return scheduleListing{
		ScheduleID:    s.ID,
		RouteID:       s.RouteID,
		Route:         s.RouteName,
		Origin:        s.RouteOrigin,
		Destination:   s.RouteDestination,
		DepartureTime: s.DepartureTime,
		ArrivalTime:   s.ArrivalTime,
		MinutesUntil:  minutesUntil,
		TimeStatus:    bucket,
	}
}
