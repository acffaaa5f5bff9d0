package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetware/fleet_core/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgActiveTripRepository struct {
	pool *pgxpool.Pool
}

// NewActiveTripRepository creates an ActiveTripRepository backed by the pool.
func NewActiveTripRepository(pool *pgxpool.Pool) ActiveTripRepository {
	return &pgActiveTripRepository{pool: pool}
}

const activeTripColumns = `
	id, schedule_id, driver_id, bus_id, status, current_lat, current_lng,
	speed, crowd_level, delay_minutes, actual_start_time, actual_end_time,
	last_location_update`

func scanActiveTrip(row pgx.Row) (*models.ActiveTrip, error) {
	t := &models.ActiveTrip{}
	err := row.Scan(
		&t.ID, &t.ScheduleID, &t.DriverID, &t.BusID, &t.Status,
		&t.CurrentLat, &t.CurrentLng, &t.Speed, &t.CrowdLevel,
		&t.DelayMinutes, &t.ActualStartTime, &t.ActualEndTime,
		&t.LastLocationUpdate,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *pgActiveTripRepository) FindLive(ctx context.Context, scheduleID, driverID int64) (*models.ActiveTrip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t, err := scanActiveTrip(r.pool.QueryRow(ctx,
		`SELECT`+activeTripColumns+`
		 FROM active_trips
		 WHERE schedule_id = $1 AND driver_id = $2 AND status IN ('SCHEDULED', 'STARTED')
		 ORDER BY id DESC LIMIT 1`,
		scheduleID, driverID))
	if err != nil {
		return nil, fmt.Errorf("storage: active trip FindLive: %w", err)
	}
	return t, nil
}

func (r *pgActiveTripRepository) FindStartedByBus(ctx context.Context, busID int64) (*models.ActiveTrip, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	t, err := scanActiveTrip(r.pool.QueryRow(ctx,
		`SELECT`+activeTripColumns+`
		 FROM active_trips
		 WHERE bus_id = $1 AND status = 'STARTED'
		 ORDER BY id DESC LIMIT 1`,
		busID))
	if err != nil {
		return nil, fmt.Errorf("storage: active trip FindStartedByBus: %w", err)
	}
	return t, nil
}

func (r *pgActiveTripRepository) Insert(ctx context.Context, t *models.ActiveTrip) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO active_trips
			(schedule_id, driver_id, bus_id, status, current_lat, current_lng,
			 actual_start_time, last_location_update)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		t.ScheduleID, t.DriverID, t.BusID, t.Status,
		t.CurrentLat, t.CurrentLng, t.ActualStartTime, t.LastLocationUpdate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storage: active trip Insert: %w", err)
	}
	return id, nil
}

func (r *pgActiveTripRepository) MarkStarted(ctx context.Context, id, busID int64, lat, lng float64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE active_trips
		SET status = 'STARTED', bus_id = $2, current_lat = $3, current_lng = $4,
		    actual_start_time = $5, last_location_update = $5
		WHERE id = $1`,
		id, busID, lat, lng, at)
	if err != nil {
		return fmt.Errorf("storage: active trip MarkStarted: %w", err)
	}
	return nil
}

func (r *pgActiveTripRepository) Patch(ctx context.Context, id int64, crowd *models.CrowdLevel, delayMinutes *int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE active_trips
		SET crowd_level   = COALESCE($2, crowd_level),
		    delay_minutes = COALESCE($3, delay_minutes)
		WHERE id = $1`,
		id, crowd, delayMinutes)
	if err != nil {
		return fmt.Errorf("storage: active trip Patch: %w", err)
	}
	return nil
}

func (r *pgActiveTripRepository) PatchTelemetry(ctx context.Context, id int64, rep *models.LocationReport, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE active_trips
		SET current_lat          = $2,
		    current_lng          = $3,
		    speed                = COALESCE($4, speed),
		    crowd_level          = COALESCE($5, crowd_level),
		    delay_minutes        = COALESCE($6, delay_minutes),
		    last_location_update = $7
		WHERE id = $1`,
		id, rep.Lat, rep.Lng, rep.Speed, rep.CrowdLevel, rep.DelayMinutes, at)
	if err != nil {
		return fmt.Errorf("storage: active trip PatchTelemetry: %w", err)
	}
	return nil
}

func (r *pgActiveTripRepository) Complete(ctx context.Context, id int64, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE active_trips
		SET status = 'COMPLETED', actual_end_time = $2
		WHERE id = $1 AND status = 'STARTED'`,
		id, at)
	if err != nil {
		return false, fmt.Errorf("storage: active trip Complete: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgActiveTripRepository) CountStarted(ctx context.Context, scheduleID, driverID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM active_trips
		 WHERE schedule_id = $1 AND driver_id = $2 AND status = 'STARTED'`,
		scheduleID, driverID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: active trip CountStarted: %w", err)
	}
	return n, nil
}
