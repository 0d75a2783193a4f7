// internal/db/reservations.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evkent/evkent/internal/booking"
)

const reservationColumns = `id, owner_id, facility_type, title, start_time, end_time, status, notes, created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (booking.Reservation, error) {
	var res booking.Reservation
	var status string
	err := row.Scan(
		&res.ID,
		&res.OwnerID,
		&res.FacilityType,
		&res.Title,
		&res.StartTime,
		&res.EndTime,
		&status,
		&res.Notes,
		&res.CreatedAt,
		&res.UpdatedAt,
	)
	if err != nil {
		return booking.Reservation{}, err
	}
	res.Status = booking.Status(status)
	return res, nil
}

// ListReservations returns reservations matching the filter, any status,
// sorted by start time descending for display.
func (q *Queries) ListReservations(ctx context.Context, filter booking.ReservationFilter) ([]booking.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	var conditions []string
	var args []any
	if filter.FacilityType != "" {
		conditions = append(conditions, "facility_type = ?")
		args = append(args, filter.FacilityType)
	}
	if filter.OwnerID != 0 {
		conditions = append(conditions, "owner_id = ?")
		args = append(args, filter.OwnerID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY start_time DESC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var reservations []booking.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		reservations = append(reservations, res)
	}
	return reservations, rows.Err()
}

func (q *Queries) GetReservation(ctx context.Context, id int64) (booking.Reservation, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Reservation{}, booking.ErrNotFound
	}
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// FindOverlappingReservation returns one active reservation whose
// half-open interval overlaps [start, end), or nil if the slot is free.
// Cancelled reservations do not count. Times are compared as stored text,
// so both binds and inserts go through UTC to keep the comparison total.
func (q *Queries) FindOverlappingReservation(ctx context.Context, facilityType string, start, end time.Time) (*booking.Reservation, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE facility_type = ?
		   AND status != 'cancelled'
		   AND start_time < ?
		   AND end_time > ?
		 LIMIT 1`,
		facilityType, end.UTC(), start.UTC())
	res, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find overlapping reservation: %w", err)
	}
	return &res, nil
}

// CreateReservation inserts a reservation with status forced to pending.
func (q *Queries) CreateReservation(ctx context.Context, res booking.Reservation) (booking.Reservation, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO reservations (owner_id, facility_type, title, start_time, end_time, status, notes)
		 VALUES (?, ?, ?, ?, ?, 'pending', ?)
		 RETURNING `+reservationColumns,
		res.OwnerID, res.FacilityType, res.Title, res.StartTime.UTC(), res.EndTime.UTC(), res.Notes)
	created, err := scanReservation(row)
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("create reservation: %w", err)
	}
	return created, nil
}

func (q *Queries) UpdateReservationStatus(ctx context.Context, id int64, status booking.Status) (booking.Reservation, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE reservations
		 SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING `+reservationColumns,
		string(status), id)
	updated, err := scanReservation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.Reservation{}, booking.ErrNotFound
	}
	if err != nil {
		return booking.Reservation{}, fmt.Errorf("update reservation status: %w", err)
	}
	return updated, nil
}

func (q *Queries) DeleteReservation(ctx context.Context, id int64) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if affected == 0 {
		return booking.ErrNotFound
	}
	return nil
}
