// Package booking holds the facility reservation core: the schedule and
// reservation models, the availability check, and the state machine that
// guards status transitions.
package booking

import (
	"sort"
	"time"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusCancelled Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a reservation may move from one status to
// another. Creation always starts at pending; there is no terminal state.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusCancelled
	case StatusApproved:
		return to == StatusPending || to == StatusCancelled
	case StatusCancelled:
		return to == StatusApproved
	}
	return false
}

// FacilityTypes is the fixed set of bookable facilities in the complex.
var FacilityTypes = []string{
	"Gym",
	"Swimming Pool",
	"Tennis Court",
	"Basketball Court",
	"Meeting Room",
}

func KnownFacilityType(facilityType string) bool {
	for _, ft := range FacilityTypes {
		if ft == facilityType {
			return true
		}
	}
	return false
}

// ClosedDateLayout is the calendar-date format used for ad-hoc closures.
const ClosedDateLayout = "2006-01-02"

var dayKeys = map[time.Weekday]string{
	time.Monday:    "monday",
	time.Tuesday:   "tuesday",
	time.Wednesday: "wednesday",
	time.Thursday:  "thursday",
	time.Friday:    "friday",
	time.Saturday:  "saturday",
	time.Sunday:    "sunday",
}

// WeekDayKeys lists the weekly schedule keys in Monday-first order.
var WeekDayKeys = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// DayKey returns the weekly schedule key for the calendar day of t.
func DayKey(t time.Time) string {
	return dayKeys[t.Weekday()]
}

// DaySchedule describes one weekday of a facility's weekly template. When
// IsOpen is false the whole day is blocked and ClosedHours is ignored.
type DaySchedule struct {
	IsOpen      bool  `json:"isOpen"`
	ClosedHours []int `json:"closedHours"`
}

func (d DaySchedule) hourClosed(hour int) bool {
	for _, h := range d.ClosedHours {
		if h == hour {
			return true
		}
	}
	return false
}

// WeeklySchedule maps weekday keys ("monday".."sunday") to day templates.
type WeeklySchedule map[string]DaySchedule

// DefaultWeeklySchedule returns an all-open template with no closed hours.
func DefaultWeeklySchedule() WeeklySchedule {
	weekly := make(WeeklySchedule, len(WeekDayKeys))
	for _, key := range WeekDayKeys {
		weekly[key] = DaySchedule{IsOpen: true, ClosedHours: []int{}}
	}
	return weekly
}

// FacilitySchedule is the open-hours configuration for one facility type.
// One record exists per facility; it is created lazily with the all-open
// default and replaced wholesale on admin edits.
type FacilitySchedule struct {
	FacilityType string         `json:"facilityType"`
	Weekly       WeeklySchedule `json:"weeklySchedule"`
	ClosedDates  []string       `json:"closedDates"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// DefaultSchedule returns the lazily-created schedule for a facility.
func DefaultSchedule(facilityType string) FacilitySchedule {
	return FacilitySchedule{
		FacilityType: facilityType,
		Weekly:       DefaultWeeklySchedule(),
		ClosedDates:  []string{},
	}
}

func (s FacilitySchedule) dateClosed(t time.Time) bool {
	date := t.Format(ClosedDateLayout)
	for _, closed := range s.ClosedDates {
		if closed == date {
			return true
		}
	}
	return false
}

// Reservation is one booked slot on a facility. StartTime/EndTime form a
// half-open interval [StartTime, EndTime).
type Reservation struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"ownerId"`
	FacilityType string    `json:"facilityType"`
	Title        string    `json:"title"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	Status       Status    `json:"status"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Active reports whether the reservation counts toward conflict checks.
func (r Reservation) Active() bool {
	return r.Status == StatusPending || r.Status == StatusApproved
}

// NormalizeWeekly validates a full weekly template and returns a copy with
// sorted, de-duplicated closed hours. Callers must supply all seven days.
func NormalizeWeekly(weekly WeeklySchedule) (WeeklySchedule, error) {
	if len(weekly) != len(WeekDayKeys) {
		return nil, ValidationError{Field: "weeklySchedule", Reason: "must contain all seven days"}
	}
	normalized := make(WeeklySchedule, len(WeekDayKeys))
	for _, key := range WeekDayKeys {
		day, ok := weekly[key]
		if !ok {
			return nil, ValidationError{Field: "weeklySchedule", Reason: "missing day " + key}
		}
		seen := make(map[int]struct{}, len(day.ClosedHours))
		hours := make([]int, 0, len(day.ClosedHours))
		for _, h := range day.ClosedHours {
			if h < 0 || h > 23 {
				return nil, ValidationError{Field: "weeklySchedule", Reason: "closed hours must be between 0 and 23"}
			}
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			hours = append(hours, h)
		}
		sort.Ints(hours)
		normalized[key] = DaySchedule{IsOpen: day.IsOpen, ClosedHours: hours}
	}
	return normalized, nil
}

// NormalizeClosedDates validates ad-hoc closure dates (YYYY-MM-DD).
func NormalizeClosedDates(dates []string) ([]string, error) {
	normalized := make([]string, 0, len(dates))
	seen := make(map[string]struct{}, len(dates))
	for _, date := range dates {
		if _, err := time.Parse(ClosedDateLayout, date); err != nil {
			return nil, ValidationError{Field: "closedDates", Reason: "dates must use YYYY-MM-DD"}
		}
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		normalized = append(normalized, date)
	}
	sort.Strings(normalized)
	return normalized, nil
}
