package booking

import (
	"context"
	"fmt"
	"time"
)

// Availability is the verdict for a candidate slot. Exactly one of the
// unavailable reasons is populated when Available is false.
type Availability struct {
	Available  bool              `json:"available"`
	Reason     UnavailableReason `json:"reason,omitempty"`
	ClosedHour int               `json:"closedHour,omitempty"`
	ConflictID int64             `json:"conflictId,omitempty"`
}

func available() Availability {
	return Availability{Available: true}
}

func unavailable(err SlotUnavailableError) Availability {
	return Availability{
		Available:  false,
		Reason:     err.Reason,
		ClosedHour: err.ClosedHour,
		ConflictID: err.ConflictID,
	}
}

// Err converts an unavailable verdict back into its error form.
func (a Availability) Err() error {
	if a.Available {
		return nil
	}
	return SlotUnavailableError{Reason: a.Reason, ClosedHour: a.ClosedHour, ConflictID: a.ConflictID}
}

// scheduleAvailability applies the weekly template and ad-hoc closed dates
// to a candidate slot. Schedule checks run before the reservation conflict
// check: they are cheaper and give the caller more actionable feedback.
// Reservations never cross midnight, so only the start day's template is
// consulted.
func scheduleAvailability(schedule FacilitySchedule, start, end time.Time) *SlotUnavailableError {
	if schedule.dateClosed(start) {
		return &SlotUnavailableError{Reason: ReasonClosedAllDay}
	}

	day, ok := schedule.Weekly[DayKey(start)]
	if !ok || !day.IsOpen {
		return &SlotUnavailableError{Reason: ReasonClosedAllDay}
	}

	for _, hour := range touchedHours(start, end) {
		if day.hourClosed(hour) {
			return &SlotUnavailableError{Reason: ReasonClosedHour, ClosedHour: hour}
		}
	}
	return nil
}

// touchedHours lists every whole hour the half-open interval [start, end)
// overlaps. An end exactly on the hour does not touch that hour.
func touchedHours(start, end time.Time) []int {
	first := start.Hour()
	last := end.Hour()
	if end.Minute() == 0 && end.Second() == 0 && end.Nanosecond() == 0 {
		last--
	}
	if last < first {
		return nil
	}
	hours := make([]int, 0, last-first+1)
	for h := first; h <= last; h++ {
		hours = append(hours, h)
	}
	return hours
}

// canonicalSlot converts both endpoints to UTC. Clients send timestamps in
// arbitrary offsets; the weekly template, the closed-hour set and the stored
// comparison values all operate on the UTC rendering of the instant, so the
// same moment expressed in two offsets resolves to the same slot.
func canonicalSlot(start, end time.Time) (time.Time, time.Time) {
	return start.UTC(), end.UTC()
}

// CheckAvailability decides whether [start, end) is bookable on a facility.
// It is the authoritative server-side check; client-side calendar filtering
// is cosmetic only.
func (s *Scheduler) CheckAvailability(ctx context.Context, facilityType string, start, end time.Time) (Availability, error) {
	start, end = canonicalSlot(start, end)
	if err := validateSlot(facilityType, start, end); err != nil {
		return Availability{}, err
	}

	schedule, err := s.GetSchedule(ctx, facilityType)
	if err != nil {
		return Availability{}, err
	}

	return s.checkAgainst(ctx, s.store, schedule, facilityType, start, end)
}

// checkAgainst runs the availability algorithm against the given store,
// which may be transaction-bound during create.
func (s *Scheduler) checkAgainst(ctx context.Context, store Store, schedule FacilitySchedule, facilityType string, start, end time.Time) (Availability, error) {
	if verdict := scheduleAvailability(schedule, start, end); verdict != nil {
		return unavailable(*verdict), nil
	}

	conflict, err := store.FindOverlappingReservation(ctx, facilityType, start, end)
	if err != nil {
		return Availability{}, fmt.Errorf("overlap query: %w", err)
	}
	if conflict != nil {
		return unavailable(SlotUnavailableError{Reason: ReasonConflict, ConflictID: conflict.ID}), nil
	}
	return available(), nil
}

// validateSlot rejects invalid input before any storage access. Multi-day
// spans are invalid by convention: a reservation never crosses midnight.
func validateSlot(facilityType string, start, end time.Time) error {
	if !KnownFacilityType(facilityType) {
		return ValidationError{Field: "facilityType", Reason: "unknown facility"}
	}
	if start.IsZero() || end.IsZero() {
		return ValidationError{Field: "startTime", Reason: "start and end times are required"}
	}
	if !start.Before(end) {
		return ValidationError{Field: "endTime", Reason: "must be after startTime"}
	}
	lastInstant := end.Add(-time.Nanosecond)
	sy, sm, sd := start.Date()
	ey, em, ed := lastInstant.Date()
	if sy != ey || sm != em || sd != ed {
		return ValidationError{Field: "endTime", Reason: "reservation must not cross midnight"}
	}
	return nil
}
