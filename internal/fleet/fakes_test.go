package fleet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fleetware/fleet_core/internal/models"
	"github.com/fleetware/fleet_core/internal/storage"
)

// In-memory repository fakes. They mimic the SQL semantics the services
// rely on: guarded status transitions, the (schedule_id, assigned_date)
// uniqueness, and "most recent by id" lookups.

func sameDate(a, b time.Time) bool {
	return a.Format("2006-01-02") == b.Format("2006-01-02")
}

type fakeAssignments struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.Assignment
}

func newFakeAssignments() *fakeAssignments {
	return &fakeAssignments{nextID: 1}
}

func (f *fakeAssignments) add(a models.Assignment) *models.Assignment {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = f.nextID
	f.nextID++
	f.rows = append(f.rows, &a)
	return &a
}

func (f *fakeAssignments) GetByID(_ context.Context, id int64) (*models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAssignments) latest(match func(*models.Assignment) bool) *models.Assignment {
	var best *models.Assignment
	for _, r := range f.rows {
		if match(r) && (best == nil || r.ID > best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}

func (f *fakeAssignments) FindByScheduleDriverDate(_ context.Context, scheduleID, driverID int64, date time.Time) (*models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest(func(a *models.Assignment) bool {
		return a.ScheduleID == scheduleID && a.DriverID == driverID && sameDate(a.AssignedDate, date)
	}), nil
}

func (f *fakeAssignments) FindLatestByScheduleDriver(_ context.Context, scheduleID, driverID int64) (*models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest(func(a *models.Assignment) bool {
		return a.ScheduleID == scheduleID && a.DriverID == driverID
	}), nil
}

func (f *fakeAssignments) FindInProgressBySchedule(_ context.Context, scheduleID int64, date time.Time) (*models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest(func(a *models.Assignment) bool {
		return a.ScheduleID == scheduleID && a.Status == models.AssignmentInProgress && sameDate(a.AssignedDate, date)
	}), nil
}

func (f *fakeAssignments) Upsert(_ context.Context, a *models.Assignment) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ScheduleID == a.ScheduleID && sameDate(r.AssignedDate, a.AssignedDate) {
			r.DriverID = a.DriverID
			r.BusID = a.BusID
			r.DepotID = a.DepotID
			return r.ID, nil
		}
	}
	cp := *a
	cp.ID = f.nextID
	f.nextID++
	if cp.Status == "" {
		cp.Status = models.AssignmentAssigned
	}
	f.rows = append(f.rows, &cp)
	return cp.ID, nil
}

func (f *fakeAssignments) InsertIfAbsent(_ context.Context, a *models.Assignment) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ScheduleID == a.ScheduleID && sameDate(r.AssignedDate, a.AssignedDate) {
			return r.ID, false, nil
		}
	}
	cp := *a
	cp.ID = f.nextID
	cp.Status = models.AssignmentAssigned
	f.nextID++
	f.rows = append(f.rows, &cp)
	return cp.ID, true, nil
}

func (f *fakeAssignments) MarkStarted(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.Status == models.AssignmentAssigned {
			r.Status = models.AssignmentInProgress
			t := at
			r.StartedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignments) MarkCompleted(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.Status == models.AssignmentInProgress {
			r.Status = models.AssignmentCompleted
			t := at
			r.CompletedAt = &t
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignments) PatchTrip(_ context.Context, id int64, crowd *models.CrowdLevel, delayMinutes *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			if crowd != nil {
				r.CrowdLevel = crowd
			}
			if delayMinutes != nil {
				r.DelayMinutes = delayMinutes
			}
		}
	}
	return nil
}

func (f *fakeAssignments) ListByDate(_ context.Context, date time.Time) ([]models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Assignment
	for _, r := range f.rows {
		if sameDate(r.AssignedDate, date) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeAssignments) ListByDriverDate(_ context.Context, driverID int64, date time.Time) ([]models.Assignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Assignment
	for _, r := range f.rows {
		if r.DriverID == driverID && sameDate(r.AssignedDate, date) && r.Status != models.AssignmentCancelled {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeAssignments) ListActiveTrips(_ context.Context, _ time.Time) ([]storage.TripView, error) {
	return nil, nil
}

type fakeTrips struct {
	mu     sync.Mutex
	nextID int64
	rows   []*models.ActiveTrip
}

func newFakeTrips() *fakeTrips {
	return &fakeTrips{nextID: 1}
}

func (f *fakeTrips) FindLive(_ context.Context, scheduleID, driverID int64) (*models.ActiveTrip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.ActiveTrip
	for _, r := range f.rows {
		if r.ScheduleID == scheduleID && r.DriverID == driverID &&
			(r.Status == models.TripScheduled || r.Status == models.TripStarted) &&
			(best == nil || r.ID > best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeTrips) FindStartedByBus(_ context.Context, busID int64) (*models.ActiveTrip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.ActiveTrip
	for _, r := range f.rows {
		if r.BusID == busID && r.Status == models.TripStarted && (best == nil || r.ID > best.ID) {
			best = r
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeTrips) Insert(_ context.Context, t *models.ActiveTrip) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	cp.ID = f.nextID
	f.nextID++
	f.rows = append(f.rows, &cp)
	return cp.ID, nil
}

func (f *fakeTrips) MarkStarted(_ context.Context, id, busID int64, lat, lng float64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			r.Status = models.TripStarted
			r.BusID = busID
			la, ln, ts := lat, lng, at
			r.CurrentLat = &la
			r.CurrentLng = &ln
			r.ActualStartTime = &ts
			r.LastLocationUpdate = &ts
		}
	}
	return nil
}

func (f *fakeTrips) Patch(_ context.Context, id int64, crowd *models.CrowdLevel, delayMinutes *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			if crowd != nil {
				r.CrowdLevel = crowd
			}
			if delayMinutes != nil {
				r.DelayMinutes = delayMinutes
			}
		}
	}
	return nil
}

func (f *fakeTrips) PatchTelemetry(_ context.Context, id int64, rep *models.LocationReport, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id {
			la, ln, ts := rep.Lat, rep.Lng, at
			r.CurrentLat = &la
			r.CurrentLng = &ln
			r.LastLocationUpdate = &ts
			if rep.Speed != nil {
				r.Speed = rep.Speed
			}
			if rep.CrowdLevel != nil {
				r.CrowdLevel = rep.CrowdLevel
			}
			if rep.DelayMinutes != nil {
				r.DelayMinutes = rep.DelayMinutes
			}
		}
	}
	return nil
}

func (f *fakeTrips) Complete(_ context.Context, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.ID == id && r.Status == models.TripStarted {
			r.Status = models.TripCompleted
			t := at
			r.ActualEndTime = &t
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTrips) CountStarted(_ context.Context, scheduleID, driverID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.ScheduleID == scheduleID && r.DriverID == driverID && r.Status == models.TripStarted {
			n++
		}
	}
	return n, nil
}

type fakeBuses struct {
	mu   sync.Mutex
	rows map[int64]*models.Bus
}

func newFakeBuses(buses ...models.Bus) *fakeBuses {
	f := &fakeBuses{rows: make(map[int64]*models.Bus)}
	for _, b := range buses {
		b := b
		f.rows[b.ID] = &b
	}
	return f
}

func (f *fakeBuses) GetByID(_ context.Context, id int64) (*models.Bus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBuses) SetPosition(_ context.Context, id int64, lat, lng float64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.rows[id]; ok {
		la, ln, ts := lat, lng, at
		b.CurrentLat = &la
		b.CurrentLng = &ln
		b.OnTrip = true
		b.Status = "ON_TRIP"
		b.LastUpdated = &ts
	}
	return nil
}

func (f *fakeBuses) Patch(_ context.Context, id int64, crowd *models.CrowdLevel, delayMinutes *int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.rows[id]; ok {
		if crowd != nil {
			b.CrowdLevel = crowd
		}
		if delayMinutes != nil {
			b.DelayMinutes = delayMinutes
		}
	}
	return nil
}

func (f *fakeBuses) PatchTelemetry(_ context.Context, id int64, rep *models.LocationReport, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.rows[id]; ok {
		la, ln, ts := rep.Lat, rep.Lng, at
		b.CurrentLat = &la
		b.CurrentLng = &ln
		b.LastUpdated = &ts
		if rep.Speed != nil {
			b.Speed = rep.Speed
		}
		if rep.Status != nil {
			b.Status = *rep.Status
		}
		if rep.CrowdLevel != nil {
			b.CrowdLevel = rep.CrowdLevel
		}
		if rep.NextStop != nil {
			b.NextStop = rep.NextStop
		}
		if rep.DelayMinutes != nil {
			b.DelayMinutes = rep.DelayMinutes
		}
	}
	return nil
}

func (f *fakeBuses) ClearTripState(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.rows[id]; ok {
		ts := at
		b.OnTrip = false
		b.Status = "IDLE"
		b.CrowdLevel = nil
		b.DelayMinutes = nil
		b.LastUpdated = &ts
	}
	return nil
}

type fakeSchedules struct {
	rows map[int64]*models.Schedule
}

func newFakeSchedules(schedules ...models.Schedule) *fakeSchedules {
	f := &fakeSchedules{rows: make(map[int64]*models.Schedule)}
	for _, s := range schedules {
		s := s
		f.rows[s.ID] = &s
	}
	return f
}

func (f *fakeSchedules) GetByID(_ context.Context, id int64) (*models.Schedule, error) {
	s, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSchedules) ListActive(_ context.Context) ([]models.Schedule, error) {
	var out []models.Schedule
	for _, s := range f.rows {
		if s.Active {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeSchedules) ListActiveWithRoute(_ context.Context) ([]storage.ScheduleWithRoute, error) {
	return nil, nil
}

type fakeDrivers struct {
	rows map[int64]*models.Driver
}

func newFakeDrivers(drivers ...models.Driver) *fakeDrivers {
	f := &fakeDrivers{rows: make(map[int64]*models.Driver)}
	for _, d := range drivers {
		d := d
		f.rows[d.ID] = &d
	}
	return f
}

func (f *fakeDrivers) GetByID(_ context.Context, id int64) (*models.Driver, error) {
	d, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

func (f *fakeDrivers) ListActive(_ context.Context) ([]models.Driver, error) {
	var out []models.Driver
	for _, d := range f.rows {
		if d.Active {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeDepots struct {
	rows map[int64]*models.Depot
}

func newFakeDepots(depots ...models.Depot) *fakeDepots {
	f := &fakeDepots{rows: make(map[int64]*models.Depot)}
	for _, d := range depots {
		d := d
		f.rows[d.ID] = &d
	}
	return f
}

func (f *fakeDepots) GetByID(_ context.Context, id int64) (*models.Depot, error) {
	d, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}

// fakeBroadcaster records every publish.
type fakeBroadcaster struct {
	mu        sync.Mutex
	published []publishedMessage
}

type publishedMessage struct {
	Topic   string
	Payload any
}

func (f *fakeBroadcaster) Publish(topic string, payload any) (delivered, dropped int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{Topic: topic, Payload: payload})
	return 1, 0
}

func (f *fakeBroadcaster) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.published))
	for _, m := range f.published {
		out = append(out, m.Topic)
	}
	return out
}

func ptr[T any](v T) *T { return &v }
