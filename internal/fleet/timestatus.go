package fleet

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fleetware/fleet_core/internal/config"
)

// Rider-facing status buckets derived from time until departure.
const (
	BucketDeparted  = "departed"
	BucketBoarding  = "boarding"
	BucketSoon      = "soon"
	BucketScheduled = "scheduled"
	BucketUpcoming  = "upcoming"
)

// TimeStatus is the deriver's result for one schedule.
type TimeStatus struct {
	MinutesUntil int    `json:"minutes_until_departure"`
	Bucket       string `json:"time_status"`
}

// TimeStatusDeriver computes rider-facing status buckets from wall-clock
// time. It is stateless; all times are server-local on the same calendar
// day.
type TimeStatusDeriver struct {
	boardingMin int
	soonMin     int
	hoursAhead  int
}

// NewTimeStatusDeriver builds a deriver from the operating policy.
func NewTimeStatusDeriver(p config.Policy) *TimeStatusDeriver {
	return &TimeStatusDeriver{
		boardingMin: p.BoardingWindowMin,
		soonMin:     p.SoonWindowMin,
		hoursAhead:  p.UpcomingHoursAhead,
	}
}

// parseTimeOfDay parses "HH:MM" into hours and minutes.
func parseTimeOfDay(s string) (int, int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h, m, nil
}

// departureAt anchors a time-of-day string on now's calendar day.
func departureAt(departure string, now time.Time) (time.Time, error) {
	h, m, err := parseTimeOfDay(departure)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), h, m, 0, 0, now.Location()), nil
}

// MinutesUntil returns whole minutes from now until the departure time-of-day
// today. Negative once the departure has passed.
func (d *TimeStatusDeriver) MinutesUntil(departure string, now time.Time) (int, error) {
	dep, err := departureAt(departure, now)
	if err != nil {
		return 0, err
	}
	return int(dep.Sub(now).Minutes()), nil
}

// Status buckets a schedule for the all-schedules listing. Priority order:
// departed, boarding, soon, scheduled.
func (d *TimeStatusDeriver) Status(departure string, now time.Time) (TimeStatus, error) {
	return d.derive(departure, now, BucketScheduled)
}

// UpcomingStatus buckets a schedule for the forward-window listing, where
// the fallthrough bucket is "upcoming" rather than "scheduled".
func (d *TimeStatusDeriver) UpcomingStatus(departure string, now time.Time) (TimeStatus, error) {
	return d.derive(departure, now, BucketUpcoming)
}

func (d *TimeStatusDeriver) derive(departure string, now time.Time, fallthroughBucket string) (TimeStatus, error) {
	mins, err := d.MinutesUntil(departure, now)
	if err != nil {
		return TimeStatus{}, err
	}

	st := TimeStatus{MinutesUntil: mins}
	switch {
	case mins < 0:
		st.Bucket = BucketDeparted
	case mins <= d.boardingMin:
		st.Bucket = BucketBoarding
	case mins <= d.soonMin:
		st.Bucket = BucketSoon
	default:
		st.Bucket = fallthroughBucket
	}
	return st, nil
}

// InWindow reports whether the departure falls within [now, now+hoursAhead].
// hoursAhead <= 0 uses the configured default.
func (d *TimeStatusDeriver) InWindow(departure string, now time.Time, hoursAhead int) (bool, error) {
	if hoursAhead <= 0 {
		hoursAhead = d.hoursAhead
	}
	dep, err := departureAt(departure, now)
	if err != nil {
		return false, err
	}
	end := now.Add(time.Duration(hoursAhead) * time.Hour)
	return !dep.Before(now) && !dep.After(end), nil
}
