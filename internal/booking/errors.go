package booking

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced reservation or schedule
	// record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden is returned when the caller lacks ownership or role for
	// the requested mutation.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError rejects malformed input before any storage access.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// UnavailableReason says why a requested slot cannot be booked.
type UnavailableReason string

const (
	ReasonClosedAllDay UnavailableReason = "closed_all_day"
	ReasonClosedHour   UnavailableReason = "closed_hour"
	ReasonConflict     UnavailableReason = "conflicting_reservation"
)

// SlotUnavailableError carries the specific rejection reason so callers can
// present a precise message. It is never retried automatically.
type SlotUnavailableError struct {
	Reason     UnavailableReason
	ClosedHour int   // set for ReasonClosedHour
	ConflictID int64 // set for ReasonConflict
}

func (e SlotUnavailableError) Error() string {
	switch e.Reason {
	case ReasonClosedAllDay:
		return "facility is closed that day"
	case ReasonClosedHour:
		return fmt.Sprintf("facility is closed between %02d:00 and %02d:00", e.ClosedHour, e.ClosedHour+1)
	case ReasonConflict:
		return "another reservation already occupies this slot"
	}
	return "slot unavailable"
}
