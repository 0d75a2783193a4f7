// internal/db/facilities.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/evkent/evkent/internal/booking"
)

// GetFacilitySchedule loads the stored schedule for a facility type.
// Returns booking.ErrNotFound when no record exists; lazy default creation
// is the scheduler's job.
func (q *Queries) GetFacilitySchedule(ctx context.Context, facilityType string) (booking.FacilitySchedule, error) {
	var weeklyJSON, closedJSON string
	schedule := booking.FacilitySchedule{FacilityType: facilityType}

	err := q.db.QueryRowContext(ctx,
		`SELECT weekly_schedule, closed_dates, updated_at
		 FROM facility_schedules WHERE facility_type = ?`,
		facilityType).Scan(&weeklyJSON, &closedJSON, &schedule.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return booking.FacilitySchedule{}, booking.ErrNotFound
	}
	if err != nil {
		return booking.FacilitySchedule{}, fmt.Errorf("get facility schedule: %w", err)
	}

	if err := json.Unmarshal([]byte(weeklyJSON), &schedule.Weekly); err != nil {
		return booking.FacilitySchedule{}, fmt.Errorf("decode weekly schedule: %w", err)
	}
	if err := json.Unmarshal([]byte(closedJSON), &schedule.ClosedDates); err != nil {
		return booking.FacilitySchedule{}, fmt.Errorf("decode closed dates: %w", err)
	}
	return schedule, nil
}

// PutFacilitySchedule replace-upserts the schedule keyed by facility type.
func (q *Queries) PutFacilitySchedule(ctx context.Context, schedule booking.FacilitySchedule) (booking.FacilitySchedule, error) {
	weeklyJSON, err := json.Marshal(schedule.Weekly)
	if err != nil {
		return booking.FacilitySchedule{}, fmt.Errorf("encode weekly schedule: %w", err)
	}
	if schedule.ClosedDates == nil {
		schedule.ClosedDates = []string{}
	}
	closedJSON, err := json.Marshal(schedule.ClosedDates)
	if err != nil {
		return booking.FacilitySchedule{}, fmt.Errorf("encode closed dates: %w", err)
	}

	err = q.db.QueryRowContext(ctx,
		`INSERT INTO facility_schedules (facility_type, weekly_schedule, closed_dates, updated_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT (facility_type) DO UPDATE SET
		   weekly_schedule = excluded.weekly_schedule,
		   closed_dates = excluded.closed_dates,
		   updated_at = CURRENT_TIMESTAMP
		 RETURNING updated_at`,
		schedule.FacilityType, string(weeklyJSON), string(closedJSON)).Scan(&schedule.UpdatedAt)
	if err != nil {
		return booking.FacilitySchedule{}, fmt.Errorf("upsert facility schedule: %w", err)
	}
	return schedule, nil
}

// ListFacilitySchedules returns every stored schedule, ordered by type.
func (q *Queries) ListFacilitySchedules(ctx context.Context) ([]booking.FacilitySchedule, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT facility_type, weekly_schedule, closed_dates, updated_at
		 FROM facility_schedules ORDER BY facility_type`)
	if err != nil {
		return nil, fmt.Errorf("list facility schedules: %w", err)
	}
	defer rows.Close()

	var schedules []booking.FacilitySchedule
	for rows.Next() {
		var weeklyJSON, closedJSON string
		var schedule booking.FacilitySchedule
		if err := rows.Scan(&schedule.FacilityType, &weeklyJSON, &closedJSON, &schedule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan facility schedule: %w", err)
		}
		if err := json.Unmarshal([]byte(weeklyJSON), &schedule.Weekly); err != nil {
			return nil, fmt.Errorf("decode weekly schedule: %w", err)
		}
		if err := json.Unmarshal([]byte(closedJSON), &schedule.ClosedDates); err != nil {
			return nil, fmt.Errorf("decode closed dates: %w", err)
		}
		schedules = append(schedules, schedule)
	}
	return schedules, rows.Err()
}
