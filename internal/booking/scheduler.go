package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Store is the persistence contract the scheduler needs. internal/db
// implements it on SQLite; InTx yields a transaction-bound store so the
// overlap check and insert commit atomically.
type Store interface {
	GetFacilitySchedule(ctx context.Context, facilityType string) (FacilitySchedule, error)
	PutFacilitySchedule(ctx context.Context, schedule FacilitySchedule) (FacilitySchedule, error)

	ListReservations(ctx context.Context, filter ReservationFilter) ([]Reservation, error)
	GetReservation(ctx context.Context, id int64) (Reservation, error)
	FindOverlappingReservation(ctx context.Context, facilityType string, start, end time.Time) (*Reservation, error)
	CreateReservation(ctx context.Context, res Reservation) (Reservation, error)
	UpdateReservationStatus(ctx context.Context, id int64, status Status) (Reservation, error)
	DeleteReservation(ctx context.Context, id int64) error

	InTx(ctx context.Context, fn func(Store) error) error
}

// ReservationFilter narrows ListReservations. Zero values mean "any".
type ReservationFilter struct {
	FacilityType string
	OwnerID      int64
}

// Caller identifies the authenticated user on whose behalf the scheduler
// acts. Ownership and role rules are enforced here, not in the store.
type Caller struct {
	ID    int64
	Admin bool
}

// CreateParams are the caller-supplied fields of a new reservation.
type CreateParams struct {
	OwnerID      int64
	FacilityType string
	Title        string
	StartTime    time.Time
	EndTime      time.Time
	Notes        string
}

// Scheduler orchestrates reservation creation, status transitions and
// deletion. Creates for the same facility are serialized under a
// per-facility mutex in addition to the storage transaction, so two
// concurrent callers cannot both observe an open slot.
type Scheduler struct {
	store Store

	mu         sync.Mutex
	facilityMu map[string]*sync.Mutex
}

func NewScheduler(store Store) *Scheduler {
	return &Scheduler{
		store:      store,
		facilityMu: make(map[string]*sync.Mutex),
	}
}

func (s *Scheduler) lockFacility(facilityType string) func() {
	s.mu.Lock()
	fm, ok := s.facilityMu[facilityType]
	if !ok {
		fm = &sync.Mutex{}
		s.facilityMu[facilityType] = fm
	}
	s.mu.Unlock()

	fm.Lock()
	return fm.Unlock
}

// GetSchedule returns the stored schedule for a facility, synthesizing and
// persisting the all-open default on first read. Repeated calls return
// equal templates.
func (s *Scheduler) GetSchedule(ctx context.Context, facilityType string) (FacilitySchedule, error) {
	if !KnownFacilityType(facilityType) {
		return FacilitySchedule{}, ValidationError{Field: "facilityType", Reason: "unknown facility"}
	}

	schedule, err := s.store.GetFacilitySchedule(ctx, facilityType)
	if err == nil {
		return schedule, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return FacilitySchedule{}, fmt.Errorf("load facility schedule: %w", err)
	}

	created, err := s.store.PutFacilitySchedule(ctx, DefaultSchedule(facilityType))
	if err != nil {
		return FacilitySchedule{}, fmt.Errorf("create default facility schedule: %w", err)
	}
	log.Ctx(ctx).Info().Str("facility_type", facilityType).Msg("Created default facility schedule")
	return created, nil
}

// PutSchedule replaces a facility's schedule wholesale. Admin only; callers
// must supply the complete seven-day template. Last write wins.
func (s *Scheduler) PutSchedule(ctx context.Context, caller Caller, facilityType string, weekly WeeklySchedule, closedDates []string) (FacilitySchedule, error) {
	if !caller.Admin {
		return FacilitySchedule{}, ErrForbidden
	}
	if !KnownFacilityType(facilityType) {
		return FacilitySchedule{}, ValidationError{Field: "facilityType", Reason: "unknown facility"}
	}

	normalizedWeekly, err := NormalizeWeekly(weekly)
	if err != nil {
		return FacilitySchedule{}, err
	}
	normalizedDates, err := NormalizeClosedDates(closedDates)
	if err != nil {
		return FacilitySchedule{}, err
	}

	updated, err := s.store.PutFacilitySchedule(ctx, FacilitySchedule{
		FacilityType: facilityType,
		Weekly:       normalizedWeekly,
		ClosedDates:  normalizedDates,
	})
	if err != nil {
		return FacilitySchedule{}, fmt.Errorf("store facility schedule: %w", err)
	}
	return updated, nil
}

// Create books a new reservation in pending state. The availability check
// and the insert run inside one transaction, under the facility lock.
func (s *Scheduler) Create(ctx context.Context, params CreateParams) (Reservation, error) {
	if strings.TrimSpace(params.Title) == "" {
		return Reservation{}, ValidationError{Field: "title", Reason: "is required"}
	}
	params.StartTime, params.EndTime = canonicalSlot(params.StartTime, params.EndTime)
	if err := validateSlot(params.FacilityType, params.StartTime, params.EndTime); err != nil {
		return Reservation{}, err
	}

	schedule, err := s.GetSchedule(ctx, params.FacilityType)
	if err != nil {
		return Reservation{}, err
	}

	unlock := s.lockFacility(params.FacilityType)
	defer unlock()

	var created Reservation
	err = s.store.InTx(ctx, func(tx Store) error {
		verdict, err := s.checkAgainst(ctx, tx, schedule, params.FacilityType, params.StartTime, params.EndTime)
		if err != nil {
			return err
		}
		if !verdict.Available {
			return verdict.Err()
		}

		created, err = tx.CreateReservation(ctx, Reservation{
			OwnerID:      params.OwnerID,
			FacilityType: params.FacilityType,
			Title:        strings.TrimSpace(params.Title),
			StartTime:    params.StartTime,
			EndTime:      params.EndTime,
			Status:       StatusPending,
			Notes:        strings.TrimSpace(params.Notes),
		})
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		return Reservation{}, err
	}

	log.Ctx(ctx).Info().
		Int64("reservation_id", created.ID).
		Str("facility_type", created.FacilityType).
		Time("start_time", created.StartTime).
		Msg("Reservation created")
	return created, nil
}

// SetStatus applies one transition of the state machine. Approving,
// reverting and reactivating are admin-only; owners may cancel their own
// reservations. Rejecting a pending request (pending -> cancelled) removes
// the record outright, while cancelling an approved one keeps a cancelled
// row that stays deletable on demand.
func (s *Scheduler) SetStatus(ctx context.Context, id int64, caller Caller, next Status) (Reservation, error) {
	if !next.Valid() {
		return Reservation{}, ValidationError{Field: "status", Reason: "must be pending, approved or cancelled"}
	}

	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return Reservation{}, err
	}

	if !caller.Admin {
		if res.OwnerID != caller.ID {
			return Reservation{}, ErrForbidden
		}
		if next != StatusCancelled {
			return Reservation{}, ErrForbidden
		}
	}

	if !CanTransition(res.Status, next) {
		return Reservation{}, ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("cannot change %s reservation to %s", res.Status, next),
		}
	}

	if res.Status == StatusPending && next == StatusCancelled {
		var rejected Reservation
		err := s.store.InTx(ctx, func(tx Store) error {
			var err error
			rejected, err = tx.UpdateReservationStatus(ctx, id, StatusCancelled)
			if err != nil {
				return err
			}
			return tx.DeleteReservation(ctx, id)
		})
		if err != nil {
			return Reservation{}, err
		}
		log.Ctx(ctx).Info().Int64("reservation_id", id).Msg("Pending reservation rejected and removed")
		return rejected, nil
	}

	updated, err := s.store.UpdateReservationStatus(ctx, id, next)
	if err != nil {
		return Reservation{}, err
	}
	log.Ctx(ctx).Info().
		Int64("reservation_id", id).
		Str("from", string(res.Status)).
		Str("to", string(next)).
		Msg("Reservation status changed")
	return updated, nil
}

// Delete removes a reservation in any state. Owner or admin only; the
// confirmation step belongs to the caller.
func (s *Scheduler) Delete(ctx context.Context, id int64, caller Caller) error {
	res, err := s.store.GetReservation(ctx, id)
	if err != nil {
		return err
	}
	if !caller.Admin && res.OwnerID != caller.ID {
		return ErrForbidden
	}
	return s.store.DeleteReservation(ctx, id)
}

// Get fetches a single reservation.
func (s *Scheduler) Get(ctx context.Context, id int64) (Reservation, error) {
	return s.store.GetReservation(ctx, id)
}

// List returns reservations matching the filter, newest start first.
func (s *Scheduler) List(ctx context.Context, filter ReservationFilter) ([]Reservation, error) {
	if filter.FacilityType != "" && !KnownFacilityType(filter.FacilityType) {
		return nil, ValidationError{Field: "facilityType", Reason: "unknown facility"}
	}
	return s.store.ListReservations(ctx, filter)
}
