package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetware/fleet_core/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type pgAssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRepository creates an AssignmentRepository backed by the pool.
func NewAssignmentRepository(pool *pgxpool.Pool) AssignmentRepository {
	return &pgAssignmentRepository{pool: pool}
}

const assignmentColumns = `
	id, schedule_id, assigned_date, driver_id, bus_id, depot_id, status,
	crowd_level, delay_minutes, started_at, completed_at, created_at`

func scanAssignment(row pgx.Row) (*models.Assignment, error) {
	a := &models.Assignment{}
	err := row.Scan(
		&a.ID, &a.ScheduleID, &a.AssignedDate, &a.DriverID, &a.BusID,
		&a.DepotID, &a.Status, &a.CrowdLevel, &a.DelayMinutes,
		&a.StartedAt, &a.CompletedAt, &a.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *pgAssignmentRepository) GetByID(ctx context.Context, id int64) (*models.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	a, err := scanAssignment(r.pool.QueryRow(ctx,
		`SELECT`+assignmentColumns+` FROM assignments WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("storage: assignment GetByID: %w", err)
	}
	return a, nil
}

func (r *pgAssignmentRepository) FindByScheduleDriverDate(ctx context.Context, scheduleID, driverID int64, date time.Time) (*models.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	a, err := scanAssignment(r.pool.QueryRow(ctx,
		`SELECT`+assignmentColumns+`
		 FROM assignments
		 WHERE schedule_id = $1 AND driver_id = $2 AND assigned_date = $3
		 ORDER BY id DESC LIMIT 1`,
		scheduleID, driverID, dateOf(date)))
	if err != nil {
		return nil, fmt.Errorf("storage: assignment FindByScheduleDriverDate: %w", err)
	}
	return a, nil
}

func (r *pgAssignmentRepository) FindLatestByScheduleDriver(ctx context.Context, scheduleID, driverID int64) (*models.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	a, err := scanAssignment(r.pool.QueryRow(ctx,
		`SELECT`+assignmentColumns+`
		 FROM assignments
		 WHERE schedule_id = $1 AND driver_id = $2
		 ORDER BY id DESC LIMIT 1`,
		scheduleID, driverID))
	if err != nil {
		return nil, fmt.Errorf("storage: assignment FindLatestByScheduleDriver: %w", err)
	}
	return a, nil
}

func (r *pgAssignmentRepository) FindInProgressBySchedule(ctx context.Context, scheduleID int64, date time.Time) (*models.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	a, err := scanAssignment(r.pool.QueryRow(ctx,
		`SELECT`+assignmentColumns+`
		 FROM assignments
		 WHERE schedule_id = $1 AND assigned_date = $2 AND status = 'IN_PROGRESS'
		 ORDER BY id DESC LIMIT 1`,
		scheduleID, dateOf(date)))
	if err != nil {
		return nil, fmt.Errorf("storage: assignment FindInProgressBySchedule: %w", err)
	}
	return a, nil
}

func (r *pgAssignmentRepository) Upsert(ctx context.Context, a *models.Assignment) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// Reassignment rewrites the binding only; status and timestamps of an
	// existing row are preserved.
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO assignments (schedule_id, assigned_date, driver_id, bus_id, depot_id, status)
		VALUES ($1, $2, $3, $4, $5, 'ASSIGNED')
		ON CONFLICT (schedule_id, assigned_date)
		DO UPDATE SET driver_id = $3, bus_id = $4, depot_id = $5
		RETURNING id`,
		a.ScheduleID, dateOf(a.AssignedDate), a.DriverID, a.BusID, a.DepotID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("storage: assignment Upsert: %w", err)
	}
	return id, nil
}

func (r *pgAssignmentRepository) InsertIfAbsent(ctx context.Context, a *models.Assignment) (int64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO assignments (schedule_id, assigned_date, driver_id, bus_id, depot_id, status)
		VALUES ($1, $2, $3, $4, $5, 'ASSIGNED')
		ON CONFLICT (schedule_id, assigned_date) DO NOTHING
		RETURNING id`,
		a.ScheduleID, dateOf(a.AssignedDate), a.DriverID, a.BusID, a.DepotID,
	).Scan(&id)
	if err == pgx.ErrNoRows {
		// Row already existed; fetch its id for the report.
		err = r.pool.QueryRow(ctx,
			`SELECT id FROM assignments WHERE schedule_id = $1 AND assigned_date = $2`,
			a.ScheduleID, dateOf(a.AssignedDate),
		).Scan(&id)
		if err != nil {
			return 0, false, fmt.Errorf("storage: assignment InsertIfAbsent lookup: %w", err)
		}
		return id, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("storage: assignment InsertIfAbsent: %w", err)
	}
	return id, true, nil
}

func (r *pgAssignmentRepository) MarkStarted(ctx context.Context, id int64, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE assignments
		SET status = 'IN_PROGRESS', started_at = $2
		WHERE id = $1 AND status = 'ASSIGNED'`,
		id, at)
	if err != nil {
		return false, fmt.Errorf("storage: assignment MarkStarted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgAssignmentRepository) MarkCompleted(ctx context.Context, id int64, at time.Time) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `
		UPDATE assignments
		SET status = 'COMPLETED', completed_at = $2
		WHERE id = $1 AND status = 'IN_PROGRESS'`,
		id, at)
	if err != nil {
		return false, fmt.Errorf("storage: assignment MarkCompleted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *pgAssignmentRepository) PatchTrip(ctx context.Context, id int64, crowd *models.CrowdLevel, delayMinutes *int) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		UPDATE assignments
		SET crowd_level   = COALESCE($2, crowd_level),
		    delay_minutes = COALESCE($3, delay_minutes)
		WHERE id = $1`,
		id, crowd, delayMinutes)
	if err != nil {
		return fmt.Errorf("storage: assignment PatchTrip: %w", err)
	}
	return nil
}

func (r *pgAssignmentRepository) ListByDate(ctx context.Context, date time.Time) ([]models.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT`+assignmentColumns+` FROM assignments WHERE assigned_date = $1 ORDER BY id`,
		dateOf(date))
	if err != nil {
		return nil, fmt.Errorf("storage: assignment ListByDate: %w", err)
	}
	defer rows.Close()

	return collectAssignments(rows)
}

func (r *pgAssignmentRepository) ListByDriverDate(ctx context.Context, driverID int64, date time.Time) ([]models.Assignment, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT`+assignmentColumns+`
		 FROM assignments
		 WHERE driver_id = $1 AND assigned_date = $2 AND status != 'CANCELLED'
		 ORDER BY id`,
		driverID, dateOf(date))
	if err != nil {
		return nil, fmt.Errorf("storage: assignment ListByDriverDate: %w", err)
	}
	defer rows.Close()

	return collectAssignments(rows)
}

func collectAssignments(rows pgx.Rows) ([]models.Assignment, error) {
	var out []models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(
			&a.ID, &a.ScheduleID, &a.AssignedDate, &a.DriverID, &a.BusID,
			&a.DepotID, &a.Status, &a.CrowdLevel, &a.DelayMinutes,
			&a.StartedAt, &a.CompletedAt, &a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: assignment scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *pgAssignmentRepository) ListActiveTrips(ctx context.Context, date time.Time) ([]TripView, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx, `
		SELECT a.id, a.schedule_id,
		       COALESCE(t.status, 'STARTED'),
		       t.current_lat, t.current_lng, t.speed,
		       COALESCE(t.crowd_level, a.crowd_level),
		       COALESCE(t.delay_minutes, a.delay_minutes),
		       rt.id, rt.name,
		       b.id, b.reg_number,
		       d.id, d.name,
		       a.started_at
		FROM assignments a
		JOIN schedules s ON s.id = a.schedule_id
		JOIN routes rt   ON rt.id = s.route_id
		JOIN buses b     ON b.id = a.bus_id
		JOIN drivers d   ON d.id = a.driver_id
		LEFT JOIN active_trips t
		       ON t.schedule_id = a.schedule_id
		      AND t.driver_id = a.driver_id
		      AND t.status = 'STARTED'
		WHERE a.assigned_date = $1 AND a.status = 'IN_PROGRESS'
		ORDER BY a.id`,
		dateOf(date))
	if err != nil {
		return nil, fmt.Errorf("storage: ListActiveTrips: %w", err)
	}
	defer rows.Close()

	var out []TripView
	for rows.Next() {
		var v TripView
		if err := rows.Scan(
			&v.AssignmentID, &v.ScheduleID, &v.Status,
			&v.Lat, &v.Lng, &v.Speed, &v.CrowdLevel, &v.DelayMinutes,
			&v.RouteID, &v.RouteName,
			&v.BusID, &v.BusRegNumber,
			&v.DriverID, &v.DriverName,
			&v.StartedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: ListActiveTrips scan: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
