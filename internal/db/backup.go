// internal/db/backup.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/evkent/evkent/internal/booking"
)

// Backup is the full JSON dump of application state. Sessions and
// payments are deliberately excluded: sessions are ephemeral and
// payment history is already folded into the dues paid amounts.
type Backup struct {
	ExportedAt        time.Time                  `json:"exportedAt"`
	Apartments        []Apartment                `json:"apartments"`
	Users             []UserExport               `json:"users"`
	FacilitySchedules []booking.FacilitySchedule `json:"facilitySchedules"`
	Reservations      []booking.Reservation      `json:"reservations"`
	Dues              []Dues                     `json:"dues"`
	Announcements     []Announcement             `json:"announcements"`
	Settings          map[string]string          `json:"settings"`
}

// UserExport mirrors User but carries the password hash, which the API
// representation hides. Restores keep existing credentials working.
type UserExport struct {
	User
	PasswordHash string `json:"passwordHash"`
}

// ExportAll reads every table into a Backup inside one transaction so
// the dump is a consistent snapshot.
func (db *DB) ExportAll(ctx context.Context) (Backup, error) {
	var b Backup
	err := db.RunInTx(ctx, func(txdb *DB) error {
		q := txdb.Queries

		var err error
		if b.Apartments, err = q.ListApartments(ctx); err != nil {
			return err
		}
		users, err := q.ListUsers(ctx)
		if err != nil {
			return err
		}
		b.Users = make([]UserExport, 0, len(users))
		for _, u := range users {
			b.Users = append(b.Users, UserExport{User: u, PasswordHash: u.PasswordHash})
		}
		if b.FacilitySchedules, err = q.ListFacilitySchedules(ctx); err != nil {
			return err
		}
		if b.Reservations, err = q.ListReservations(ctx, booking.ReservationFilter{}); err != nil {
			return err
		}
		if b.Dues, err = q.ListDues(ctx, DuesFilter{}); err != nil {
			return err
		}
		if b.Announcements, err = q.ListAnnouncements(ctx); err != nil {
			return err
		}
		if b.Settings, err = q.ListSettings(ctx); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return Backup{}, fmt.Errorf("export backup: %w", err)
	}
	b.ExportedAt = time.Now().UTC()
	return b, nil
}

// ImportAll wipes the current state and restores the backup, preserving
// row IDs so cross-references survive. Sessions are cleared as a side
// effect: every user signs in again after a restore.
func (db *DB) ImportAll(ctx context.Context, b Backup) error {
	err := db.RunInTx(ctx, func(txdb *DB) error {
		for _, table := range []string{
			"payments", "sessions", "reservations", "dues",
			"announcements", "users", "apartments",
			"facility_schedules", "settings",
		} {
			if _, err := txdb.Queries.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}

		for _, apt := range b.Apartments {
			_, err := txdb.Queries.db.ExecContext(ctx,
				`INSERT INTO apartments (id, block_number, apartment_number, floor, square_meters, parking_spot, dues_coefficient, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				apt.ID, apt.BlockNumber, apt.ApartmentNumber, apt.Floor, apt.SquareMeters,
				toNullString(apt.ParkingSpot), apt.DuesCoefficient, apt.CreatedAt, apt.UpdatedAt)
			if err != nil {
				return fmt.Errorf("restore apartment %d: %w", apt.ID, err)
			}
		}

		for _, u := range b.Users {
			_, err := txdb.Queries.db.ExecContext(ctx,
				`INSERT INTO users (id, email, password_hash, phone, first_name, last_name, role, apartment_id, is_approved, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				u.ID, u.Email, u.PasswordHash, u.Phone, u.FirstName, u.LastName,
				u.Role, toNullInt64(u.ApartmentID), u.IsApproved, u.CreatedAt, u.UpdatedAt)
			if err != nil {
				return fmt.Errorf("restore user %d: %w", u.ID, err)
			}
		}

		for _, schedule := range b.FacilitySchedules {
			if _, err := txdb.Queries.PutFacilitySchedule(ctx, schedule); err != nil {
				return fmt.Errorf("restore schedule %s: %w", schedule.FacilityType, err)
			}
		}

		for _, res := range b.Reservations {
			_, err := txdb.Queries.db.ExecContext(ctx,
				`INSERT INTO reservations (id, owner_id, facility_type, title, start_time, end_time, status, notes, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				res.ID, res.OwnerID, res.FacilityType, res.Title, res.StartTime, res.EndTime,
				string(res.Status), res.Notes, res.CreatedAt, res.UpdatedAt)
			if err != nil {
				return fmt.Errorf("restore reservation %d: %w", res.ID, err)
			}
		}

		for _, d := range b.Dues {
			breakdownJSON, err := json.Marshal(d.Breakdown)
			if err != nil {
				return fmt.Errorf("encode dues breakdown: %w", err)
			}
			var paymentDate any
			if d.PaymentDate != nil {
				paymentDate = *d.PaymentDate
			}
			_, err = txdb.Queries.db.ExecContext(ctx,
				`INSERT INTO dues (id, apartment_id, month, year, amount, paid_amount, status, due_date, breakdown, payment_date, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				d.ID, d.ApartmentID, d.Month, d.Year, d.Amount, d.PaidAmount,
				d.Status, d.DueDate, string(breakdownJSON), paymentDate, d.CreatedAt, d.UpdatedAt)
			if err != nil {
				return fmt.Errorf("restore dues %d: %w", d.ID, err)
			}
		}

		for _, a := range b.Announcements {
			_, err := txdb.Queries.db.ExecContext(ctx,
				`INSERT INTO announcements (id, title, content, priority, publish_date, created_by, created_at, updated_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				a.ID, a.Title, a.Content, a.Priority, a.PublishDate, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
			if err != nil {
				return fmt.Errorf("restore announcement %d: %w", a.ID, err)
			}
		}

		for key, value := range b.Settings {
			if err := txdb.Queries.PutSetting(ctx, key, value); err != nil {
				return fmt.Errorf("restore setting %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("import backup: %w", err)
	}
	return nil
}
