package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetware/fleet_core/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgScheduleRepository struct {
	pool *pgxpool.Pool
}

// NewScheduleRepository creates a ScheduleRepository backed by the pool.
func NewScheduleRepository(pool *pgxpool.Pool) ScheduleRepository {
	return &pgScheduleRepository{pool: pool}
}

func weekdaysFromInts(raw []int16) []time.Weekday {
	out := make([]time.Weekday, 0, len(raw))
	for _, d := range raw {
		out = append(out, time.Weekday(d))
	}
	return out
}

func (r *pgScheduleRepository) GetByID(ctx context.Context, id int64) (*models.Schedule, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	s := &models.Schedule{}
	var weekdays []int16
	err := r.pool.QueryRow(ctx, `
		SELECT id, route_id, departure_time, arrival_time, weekdays,
		       driver_id, bus_id, depot_id, active
		FROM schedules WHERE id = $1`,
		id,
	).Scan(
		&s.ID, &s.RouteID, &s.DepartureTime, &s.ArrivalTime, &weekdays,
		&s.DriverID, &s.BusID, &s.DepotID, &s.Active,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: schedule GetByID: %w", err)
	}
	s.Weekdays = weekdaysFromInts(weekdays)
	return s, nil
}

func (r *pgScheduleRepository) ListActive(ctx context.Context) ([]models.Schedule, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT id, route_id, departure_time, arrival_time, weekdays,
		       driver_id, bus_id, depot_id, active
		FROM schedules WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: schedule ListActive: %w", err)
	}
	defer rows.Close()

	var out []models.Schedule
	for rows.Next() {
		var s models.Schedule
		var weekdays []int16
		if err := rows.Scan(
			&s.ID, &s.RouteID, &s.DepartureTime, &s.ArrivalTime, &weekdays,
			&s.DriverID, &s.BusID, &s.DepotID, &s.Active,
		); err != nil {
			return nil, fmt.Errorf("storage: schedule scan: %w", err)
		}
		s.Weekdays = weekdaysFromInts(weekdays)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *pgScheduleRepository) ListActiveWithRoute(ctx context.Context) ([]ScheduleWithRoute, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT s.id, s.route_id, s.departure_time, s.arrival_time, s.weekdays,
		       s.driver_id, s.bus_id, s.depot_id, s.active,
		       rt.name, rt.origin, rt.destination
		FROM schedules s
		JOIN routes rt ON rt.id = s.route_id
		WHERE s.active = TRUE
		ORDER BY s.departure_time, s.id`)
	if err != nil {
		return nil, fmt.Errorf("storage: schedule ListActiveWithRoute: %w", err)
	}
	defer rows.Close()

	var out []ScheduleWithRoute
	for rows.Next() {
		var s ScheduleWithRoute
		var weekdays []int16
		if err := rows.Scan(
			&s.ID, &s.RouteID, &s.DepartureTime, &s.ArrivalTime, &weekdays,
			&s.DriverID, &s.BusID, &s.DepotID, &s.Active,
			&s.RouteName, &s.RouteOrigin, &s.RouteDestination,
		); err != nil {
			return nil, fmt.Errorf("storage: schedule with route scan: %w", err)
		}
		s.Weekdays = weekdaysFromInts(weekdays)
		out = append(out, s)
	}
	return out, rows.Err()
}

type pgDriverRepository struct {
	pool *pgxpool.Pool
}

// NewDriverRepository creates a DriverRepository backed by the pool.
func NewDriverRepository(pool *pgxpool.Pool) DriverRepository {
	return &pgDriverRepository{pool: pool}
}

func (r *pgDriverRepository) GetByID(ctx context.Context, id int64) (*models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	d := &models.Driver{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, phone, depot_id, active FROM drivers WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Name, &d.Phone, &d.DepotID, &d.Active)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: driver GetByID: %w", err)
	}
	return d, nil
}

func (r *pgDriverRepository) ListActive(ctx context.Context) ([]models.Driver, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT id, name, phone, depot_id, active FROM drivers WHERE active = TRUE ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: driver ListActive: %w", err)
	}
	defer rows.Close()

	var out []models.Driver
	for rows.Next() {
		var d models.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.DepotID, &d.Active); err != nil {
			return nil, fmt.Errorf("storage: driver scan: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

type pgDepotRepository struct {
	pool *pgxpool.Pool
}

// NewDepotRepository creates a DepotRepository backed by the pool.
func NewDepotRepository(pool *pgxpool.Pool) DepotRepository {
	return &pgDepotRepository{pool: pool}
}

func (r *pgDepotRepository) GetByID(ctx context.Context, id int64) (*models.Depot, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	d := &models.Depot{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, city FROM depots WHERE id = $1`, id,
	).Scan(&d.ID, &d.Name, &d.City)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: depot GetByID: %w", err)
	}
	return d, nil
}
