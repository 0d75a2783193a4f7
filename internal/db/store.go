// internal/db/store.go
package db

import (
	"context"
	"time"

	"github.com/evkent/evkent/internal/booking"
)

// BookingStore adapts DB to booking.Store. InTx hands the scheduler a
// transaction-bound store so the overlap check and the insert commit or
// roll back together.
type BookingStore struct {
	db *DB
}

func NewBookingStore(database *DB) *BookingStore {
	return &BookingStore{db: database}
}

var _ booking.Store = (*BookingStore)(nil)

func (s *BookingStore) GetFacilitySchedule(ctx context.Context, facilityType string) (booking.FacilitySchedule, error) {
	return s.db.Queries.GetFacilitySchedule(ctx, facilityType)
}

func (s *BookingStore) PutFacilitySchedule(ctx context.Context, schedule booking.FacilitySchedule) (booking.FacilitySchedule, error) {
	return s.db.Queries.PutFacilitySchedule(ctx, schedule)
}

func (s *BookingStore) ListReservations(ctx context.Context, filter booking.ReservationFilter) ([]booking.Reservation, error) {
	return s.db.Queries.ListReservations(ctx, filter)
}

func (s *BookingStore) GetReservation(ctx context.Context, id int64) (booking.Reservation, error) {
	return s.db.Queries.GetReservation(ctx, id)
}

func (s *BookingStore) FindOverlappingReservation(ctx context.Context, facilityType string, start, end time.Time) (*booking.Reservation, error) {
	return s.db.Queries.FindOverlappingReservation(ctx, facilityType, start, end)
}

func (s *BookingStore) CreateReservation(ctx context.Context, res booking.Reservation) (booking.Reservation, error) {
	return s.db.Queries.CreateReservation(ctx, res)
}

func (s *BookingStore) UpdateReservationStatus(ctx context.Context, id int64, status booking.Status) (booking.Reservation, error) {
	return s.db.Queries.UpdateReservationStatus(ctx, id, status)
}

func (s *BookingStore) DeleteReservation(ctx context.Context, id int64) error {
	return s.db.Queries.DeleteReservation(ctx, id)
}

func (s *BookingStore) InTx(ctx context.Context, fn func(booking.Store) error) error {
	return s.db.RunInTx(ctx, func(txdb *DB) error {
		return fn(&BookingStore{db: txdb})
	})
}
