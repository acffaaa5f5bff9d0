package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetware/fleet_core/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgBusRepository struct {
	pool *pgxpool.Pool
}

// NewBusRepository creates a BusRepository backed by the pool.
func NewBusRepository(pool *pgxpool.Pool) BusRepository {
	return &pgBusRepository{pool: pool}
}

func (r *pgBusRepository) GetByID(ctx context.Context, id int64) (*models.Bus, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	b := &models.Bus{}
	err := r.pool.QueryRow(ctx, `
		SELECT id, reg_number, capacity, route_id, depot_id, status,
		       current_lat, current_lng, speed, crowd_level, next_stop,
		       delay_minutes, on_trip, last_updated
		FROM buses WHERE id = $1`,
		id,
	).Scan(
		&b.ID, &b.RegNumber, &b.Capacity, &b.RouteID, &b.DepotID, &b.Status,
		&b.CurrentLat, &b.CurrentLng, &b.Speed, &b.CrowdLevel, &b.NextStop,
		&b.DelayMinutes, &b.OnTrip, &b.LastUpdated,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: bus GetByID: %w", err)
	}
	return b, nil
}

func (r *pgBusRepository) SetPosition(ctx context.Context, id int64, lat, lng float64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE buses
		SET current_lat = $2, current_lng = $3, on_trip = TRUE,
		    status = 'ON_TRIP', last_updated = $4
		WHERE id = $1`,
		id, lat, lng, at)
	if err != nil {
		return fmt.Errorf("storage: bus SetPosition: %w", err)
	}
	return nil
}

func (r *pgBusRepository) Patch(ctx context.Context, id int64, crowd *models.CrowdLevel, delayMinutes *int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE buses
		SET crowd_level   = COALESCE($2, crowd_level),
		    delay_minutes = COALESCE($3, delay_minutes)
		WHERE id = $1`,
		id, crowd, delayMinutes)
	if err != nil {
		return fmt.Errorf("storage: bus Patch: %w", err)
	}
	return nil
}

func (r *pgBusRepository) PatchTelemetry(ctx context.Context, id int64, rep *models.LocationReport, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE buses
		SET current_lat   = $2,
		    current_lng   = $3,
		    speed         = COALESCE($4, speed),
		    status        = COALESCE($5, status),
		    crowd_level   = COALESCE($6, crowd_level),
		    next_stop     = COALESCE($7, next_stop),
		    delay_minutes = COALESCE($8, delay_minutes),
		    last_updated  = $9
		WHERE id = $1`,
		id, rep.Lat, rep.Lng, rep.Speed, rep.Status, rep.CrowdLevel,
		rep.NextStop, rep.DelayMinutes, at)
	if err != nil {
		return fmt.Errorf("storage: bus PatchTelemetry: %w", err)
	}
	return nil
}

func (r *pgBusRepository) ClearTripState(ctx context.Context, id int64, at time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE buses
		SET on_trip = FALSE, status = 'IDLE', crowd_level = NULL,
		    delay_minutes = NULL, last_updated = $2
		WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("storage: bus ClearTripState: %w", err)
	}
	return nil
}
