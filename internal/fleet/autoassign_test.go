package fleet

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetware/fleet_core/internal/clock"
	"github.com/fleetware/fleet_core/internal/config"
	"github.com/fleetware/fleet_core/internal/models"
)

// wednesday is an arbitrary operating day used across the batch tests.
var wednesday = time.Date(2024, 1, 10, 5, 0, 0, 0, time.UTC)

func weekdaysAll() []time.Weekday {
	return []time.Weekday{
		time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday,
	}
}

func TestAutoAssignerRunDaily(t *testing.T) {
	ctx := context.Background()

	t.Run("Binds static driver schedules", func(t *testing.T) {
		schedules := newFakeSchedules(models.Schedule{
			ID: 501, RouteID: 2, DepartureTime: "08:30", ArrivalTime: "09:40",
			Weekdays: weekdaysAll(), DriverID: ptr(int64(7)), BusID: ptr(int64(3)),
			DepotID: ptr(int64(1)), Active: true,
		})
		assignments := newFakeAssignments()
		drivers := newFakeDrivers(models.Driver{ID: 7, Active: true})
		aa := NewAutoAssigner(schedules, assignments, drivers, clock.NewMockClock(wednesday), config.DefaultPolicy())

		report, err := aa.RunDaily(ctx)
		require.NoError(t, err)
		assert.Len(t, report.CreatedIDs, 1)
		assert.Zero(t, report.AlreadyAssigned)
		assert.Empty(t, report.Unassigned)

		rows, _ := assignments.ListByDate(ctx, wednesday)
		require.Len(t, rows, 1)
		assert.Equal(t, int64(7), rows[0].DriverID)
		assert.Equal(t, int64(3), rows[0].BusID)
		assert.Equal(t, models.AssignmentAssigned, rows[0].Status)
	})

	t.Run("Re-running is idempotent", func(t *testing.T) {
		schedules := newFakeSchedules(models.Schedule{
			ID: 501, RouteID: 2, DepartureTime: "08:30", ArrivalTime: "09:40",
			Weekdays: weekdaysAll(), DriverID: ptr(int64(7)), BusID: ptr(int64(3)), Active: true,
		})
		assignments := newFakeAssignments()
		drivers := newFakeDrivers(models.Driver{ID: 7, Active: true})
		aa := NewAutoAssigner(schedules, assignments, drivers, clock.NewMockClock(wednesday), config.DefaultPolicy())

		_, err := aa.RunDaily(ctx)
		require.NoError(t, err)
		report, err := aa.RunDaily(ctx)
		require.NoError(t, err)

		assert.Empty(t, report.CreatedIDs)
		assert.Equal(t, 1, report.AlreadyAssigned)

		rows, _ := assignments.ListByDate(ctx, wednesday)
		assert.Len(t, rows, 1)
	})

	t.Run("Skips schedules not recurring today", func(t *testing.T) {
		schedules := newFakeSchedules(models.Schedule{
			ID: 501, RouteID: 2, DepartureTime: "08:30", ArrivalTime: "09:40",
			Weekdays: []time.Weekday{time.Saturday}, DriverID: ptr(int64(7)), BusID: ptr(int64(3)), Active: true,
		})
		assignments := newFakeAssignments()
		drivers := newFakeDrivers(models.Driver{ID: 7, Active: true})
		aa := NewAutoAssigner(schedules, assignments, drivers, clock.NewMockClock(wednesday), config.DefaultPolicy())

		report, err := aa.RunDaily(ctx)
		require.NoError(t, err)
		assert.Empty(t, report.CreatedIDs)
		assert.Empty(t, report.Unassigned)
	})

	t.Run("Static driver honors the inter-trip buffer", func(t *testing.T) {
		// Driver 7 finishes at 10:00. With a 5 minute buffer the 10:03
		// departure is too tight; 10:05 is acceptable.
		mk := func(departure string) (*AutoAssigner, *fakeAssignments) {
			schedules := newFakeSchedules(
				models.Schedule{
					ID: 501, RouteID: 2, DepartureTime: "08:30", ArrivalTime: "10:00",
					Weekdays: weekdaysAll(), DriverID: ptr(int64(7)), BusID: ptr(int64(3)), Active: true,
				},
				models.Schedule{
					ID: 502, RouteID: 2, DepartureTime: departure, ArrivalTime: "11:30",
					Weekdays: weekdaysAll(), DriverID: ptr(int64(7)), BusID: ptr(int64(3)), Active: true,
				},
			)
			assignments := newFakeAssignments()
			drivers := newFakeDrivers(models.Driver{ID: 7, Active: true})
			return NewAutoAssigner(schedules, assignments, drivers,
				clock.NewMockClock(wednesday), config.DefaultPolicy()), assignments
		}

		aa, _ := mk("10:03")
		report, err := aa.RunDaily(ctx)
		require.NoError(t, err)
		assert.Len(t, report.CreatedIDs, 1)
		require.Len(t, report.Unassigned, 1)
		assert.Equal(t, int64(502), report.Unassigned[0].ScheduleID)
		assert.Equal(t, "configured driver unavailable within buffer", report.Unassigned[0].Reason)

		aa, assignments := mk("10:05")
		report, err = aa.RunDaily(ctx)
		require.NoError(t, err)
		assert.Len(t, report.CreatedIDs, 2)
		assert.Empty(t, report.Unassigned)
		rows, _ := assignments.ListByDate(ctx, wednesday)
		assert.Len(t, rows, 2)
	})

	t.Run("Dynamic choice picks a free depot-compatible driver", func(t *testing.T) {
		schedules := newFakeSchedules(
			models.Schedule{
				ID: 501, RouteID: 2, DepartureTime: "08:30", ArrivalTime: "10:00",
				Weekdays: weekdaysAll(), BusID: ptr(int64(3)), DepotID: ptr(int64(1)), Active: true,
			},
			models.Schedule{
				ID: 502, RouteID: 2, DepartureTime: "09:00", ArrivalTime: "10:30",
				Weekdays: weekdaysAll(), BusID: ptr(int64(4)), DepotID: ptr(int64(1)), Active: true,
			},
		)
		assignments := newFakeAssignments()
		drivers := newFakeDrivers(
			models.Driver{ID: 7, DepotID: ptr(int64(1)), Active: true},
			models.Driver{ID: 9, DepotID: ptr(int64(1)), Active: true},
			models.Driver{ID: 11, DepotID: ptr(int64(2)), Active: true},
		)
		aa := NewAutoAssigner(schedules, assignments, drivers, clock.NewMockClock(wednesday), config.DefaultPolicy())

		report, err := aa.RunDaily(ctx)
		require.NoError(t, err)
		assert.Len(t, report.CreatedIDs, 2)

		rows, _ := assignments.ListByDate(ctx, wednesday)
		require.Len(t, rows, 2)
		// The 08:30 trip occupies driver 7 until 10:00, so the overlapping
		// 09:00 trip must go to driver 9.
		bySchedule := map[int64]int64{}
		for _, r := range rows {
			bySchedule[r.ScheduleID] = r.DriverID
		}
		assert.Equal(t, int64(7), bySchedule[501])
		assert.Equal(t, int64(9), bySchedule[502])
	})

	t.Run("Existing manual assignments block their drivers", func(t *testing.T) {
		schedules := newFakeSchedules(
			models.Schedule{
				ID: 501, RouteID: 2, DepartureTime: "08:30", ArrivalTime: "10:00",
				Weekdays: weekdaysAll(), BusID: ptr(int64(3)), Active: true,
			},
			models.Schedule{
				ID: 502, RouteID: 2, DepartureTime: "09:00", ArrivalTime: "10:30",
				Weekdays: weekdaysAll(), BusID: ptr(int64(4)), Active: true,
			},
		)
		assignments := newFakeAssignments()
		// Schedule 501 was assigned by hand to driver 7 already.
		assignments.add(models.Assignment{
			ScheduleID: 501, DriverID: 7, BusID: 3,
			AssignedDate: wednesday, Status: models.AssignmentAssigned,
		})
		drivers := newFakeDrivers(
			models.Driver{ID: 7, Active: true},
			models.Driver{ID: 9, Active: true},
		)
		aa := NewAutoAssigner(schedules, assignments, drivers, clock.NewMockClock(wednesday), config.DefaultPolicy())

		report, err := aa.RunDaily(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.AlreadyAssigned)
		require.Len(t, report.CreatedIDs, 1)

		created, _ := assignments.GetByID(ctx, report.CreatedIDs[0])
		assert.Equal(t, int64(502), created.ScheduleID)
		assert.Equal(t, int64(9), created.DriverID)
	})

	t.Run("Schedule without a bus is reported unassigned", func(t *testing.T) {
		schedules := newFakeSchedules(models.Schedule{
			ID: 501, RouteID: 2, DepartureTime: "08:30", ArrivalTime: "09:40",
			Weekdays: weekdaysAll(), DriverID: ptr(int64(7)), Active: true,
		})
		assignments := newFakeAssignments()
		drivers := newFakeDrivers(models.Driver{ID: 7, Active: true})
		aa := NewAutoAssigner(schedules, assignments, drivers, clock.NewMockClock(wednesday), config.DefaultPolicy())

		report, err := aa.RunDaily(ctx)
		require.NoError(t, err)
		assert.Empty(t, report.CreatedIDs)
		require.Len(t, report.Unassigned, 1)
		assert.Equal(t, "schedule has no bus configured", report.Unassigned[0].Reason)
	})

	t.Run("No eligible driver is reported unassigned", func(t *testing.T) {
		schedules := newFakeSchedules(models.Schedule{
			ID: 501, RouteID: 2, DepartureTime: "08:30", ArrivalTime: "09:40",
			Weekdays: weekdaysAll(), BusID: ptr(int64(3)), DepotID: ptr(int64(1)), Active: true,
		})
		assignments := newFakeAssignments()
		drivers := newFakeDrivers(
			models.Driver{ID: 7, DepotID: ptr(int64(2)), Active: true},
			models.Driver{ID: 9, DepotID: ptr(int64(1)), Active: false},
		)
		aa := NewAutoAssigner(schedules, assignments, drivers, clock.NewMockClock(wednesday), config.DefaultPolicy())

		report, err := aa.RunDaily(ctx)
		require.NoError(t, err)
		require.Len(t, report.Unassigned, 1)
		assert.Equal(t, "no driver available within buffer", report.Unassigned[0].Reason)
	})

	t.Run("Default depot fills in when the schedule has none", func(t *testing.T) {
		schedules := newFakeSchedules(models.Schedule{
			ID: 501, RouteID: 2, DepartureTime: "08:30", ArrivalTime: "09:40",
			Weekdays: weekdaysAll(), DriverID: ptr(int64(7)), BusID: ptr(int64(3)), Active: true,
		})
		assignments := newFakeAssignments()
		drivers := newFakeDrivers(models.Driver{ID: 7, Active: true})
		aa := NewAutoAssigner(schedules, assignments, drivers, clock.NewMockClock(wednesday), config.DefaultPolicy())

		report, err := aa.RunDaily(ctx)
		require.NoError(t, err)
		require.Len(t, report.CreatedIDs, 1)

		created, _ := assignments.GetByID(ctx, report.CreatedIDs[0])
		require.NotNil(t, created.DepotID)
		assert.Equal(t, config.DefaultPolicy().DefaultDepotID, *created.DepotID)
	})
}
