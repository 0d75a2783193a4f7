package booking_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/evkent/evkent/internal/booking"
	"github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/testutil"
)

const (
	ownerID int64 = 1
	otherID int64 = 2
)

var (
	resident = booking.Caller{ID: ownerID}
	admin    = booking.Caller{ID: 99, Admin: true}
)

func newTestScheduler(t *testing.T) (*booking.Scheduler, *db.DB) {
	t.Helper()
	database := testutil.NewTestDB(t)
	seedUsers(t, database)
	return booking.NewScheduler(db.NewBookingStore(database)), database
}

func seedUsers(t *testing.T, database *db.DB) {
	t.Helper()
	rows := []struct {
		id    int64
		email string
		role  string
	}{
		{ownerID, "resident@example.com", "resident"},
		{otherID, "neighbor@example.com", "resident"},
		{admin.ID, "manager@example.com", "admin"},
	}
	for _, row := range rows {
		_, err := database.ExecContext(context.Background(),
			`INSERT INTO users (id, email, password_hash, phone, first_name, last_name, role, is_approved)
			 VALUES (?, ?, 'x', '+905551112233', 'Test', 'User', ?, 1)`,
			row.id, row.email, row.role)
		if err != nil {
			t.Fatalf("seed user %s: %v", row.email, err)
		}
	}
}

func slot(day time.Time, startHour, endHour int) (time.Time, time.Time) {
	return day.Add(time.Duration(startHour) * time.Hour), day.Add(time.Duration(endHour) * time.Hour)
}

// 2026-09-07 is a Monday.
var monday = time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)

func mustCreate(t *testing.T, s *booking.Scheduler, owner int64, facility string, startHour, endHour int) booking.Reservation {
	t.Helper()
	start, end := slot(monday, startHour, endHour)
	res, err := s.Create(context.Background(), booking.CreateParams{
		OwnerID:      owner,
		FacilityType: facility,
		Title:        "training",
		StartTime:    start,
		EndTime:      end,
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}
	return res
}

func TestGetScheduleCreatesDefaultOnce(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()

	first, err := s.GetSchedule(ctx, "Gym")
	if err != nil {
		t.Fatalf("first get: %v", err)
	}
	second, err := s.GetSchedule(ctx, "Gym")
	if err != nil {
		t.Fatalf("second get: %v", err)
	}

	for _, key := range booking.WeekDayKeys {
		if !first.Weekly[key].IsOpen || len(first.Weekly[key].ClosedHours) != 0 {
			t.Fatalf("default for %s = %+v, want open with no closed hours", key, first.Weekly[key])
		}
		if second.Weekly[key].IsOpen != first.Weekly[key].IsOpen {
			t.Fatalf("repeated get differs on %s", key)
		}
	}
}

func TestPutScheduleAdminOnly(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()

	weekly := booking.DefaultWeeklySchedule()
	if _, err := s.PutSchedule(ctx, resident, "Gym", weekly, nil); !errors.Is(err, booking.ErrForbidden) {
		t.Fatalf("resident put schedule: err = %v, want ErrForbidden", err)
	}

	day := weekly["monday"]
	day.ClosedHours = []int{22, 23}
	weekly["monday"] = day
	updated, err := s.PutSchedule(ctx, admin, "Tennis Court", weekly, []string{"2026-12-25"})
	if err != nil {
		t.Fatalf("admin put schedule: %v", err)
	}
	if got := updated.Weekly["monday"].ClosedHours; len(got) != 2 || got[0] != 22 {
		t.Fatalf("stored closed hours = %v, want [22 23]", got)
	}
}

func TestCreateStartsPending(t *testing.T) {
	s, _ := newTestScheduler(t)

	res := mustCreate(t, s, ownerID, "Gym", 10, 11)
	if res.Status != booking.StatusPending {
		t.Fatalf("status = %s, want pending", res.Status)
	}
	if res.ID == 0 {
		t.Fatal("reservation id not assigned")
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	s, _ := newTestScheduler(t)
	existing := mustCreate(t, s, ownerID, "Gym", 10, 12)

	// Overlapping request from another resident fails with the conflict id.
	start, end := slot(monday, 11, 13)
	_, err := s.Create(context.Background(), booking.CreateParams{
		OwnerID: otherID, FacilityType: "Gym", Title: "yoga",
		StartTime: start, EndTime: end,
	})
	var unavailable booking.SlotUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want SlotUnavailableError", err)
	}
	if unavailable.Reason != booking.ReasonConflict || unavailable.ConflictID != existing.ID {
		t.Fatalf("verdict = %+v, want conflict with id %d", unavailable, existing.ID)
	}

	// Back-to-back slots share only the boundary instant and both fit.
	if _, err := s.Create(context.Background(), booking.CreateParams{
		OwnerID: otherID, FacilityType: "Gym", Title: "yoga",
		StartTime: monday.Add(12 * time.Hour), EndTime: monday.Add(13 * time.Hour),
	}); err != nil {
		t.Fatalf("adjacent slot rejected: %v", err)
	}

	// Same slot on a different facility is unrelated.
	if _, err := s.Create(context.Background(), booking.CreateParams{
		OwnerID: otherID, FacilityType: "Swimming Pool", Title: "laps",
		StartTime: start, EndTime: end,
	}); err != nil {
		t.Fatalf("other facility rejected: %v", err)
	}
}

func TestCreateRejectsSameInstantInOtherOffset(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()
	existing := mustCreate(t, s, ownerID, "Gym", 10, 11)

	// 13:00-14:00 at +03:00 is the same instant as the booked 10:00-11:00 UTC.
	plusThree := time.FixedZone("UTC+3", 3*60*60)
	_, err := s.Create(ctx, booking.CreateParams{
		OwnerID: otherID, FacilityType: "Gym", Title: "yoga",
		StartTime: time.Date(2026, time.September, 7, 13, 0, 0, 0, plusThree),
		EndTime:   time.Date(2026, time.September, 7, 14, 0, 0, 0, plusThree),
	})
	var unavailable booking.SlotUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("err = %v, want SlotUnavailableError", err)
	}
	if unavailable.Reason != booking.ReasonConflict || unavailable.ConflictID != existing.ID {
		t.Fatalf("verdict = %+v, want conflict with id %d", unavailable, existing.ID)
	}
}

func TestOffsetInputResolvesToUTCTemplate(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()

	weekly := booking.DefaultWeeklySchedule()
	day := weekly["monday"]
	day.ClosedHours = []int{22, 23}
	weekly["monday"] = day
	if _, err := s.PutSchedule(ctx, admin, "Tennis Court", weekly, nil); err != nil {
		t.Fatalf("put schedule: %v", err)
	}

	// Tuesday 01:00 at +03:00 is Monday 22:00 UTC: the Monday template
	// applies and the closure holds no matter how the client spells it.
	plusThree := time.FixedZone("UTC+3", 3*60*60)
	_, err := s.Create(ctx, booking.CreateParams{
		OwnerID: ownerID, FacilityType: "Tennis Court", Title: "match",
		StartTime: time.Date(2026, time.September, 8, 1, 0, 0, 0, plusThree),
		EndTime:   time.Date(2026, time.September, 8, 2, 0, 0, 0, plusThree),
	})
	var unavailable booking.SlotUnavailableError
	if !errors.As(err, &unavailable) || unavailable.Reason != booking.ReasonClosedHour || unavailable.ClosedHour != 22 {
		t.Fatalf("err = %v, want closed_hour 22", err)
	}
}

func TestCreateHonorsPartialClosure(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()

	weekly := booking.DefaultWeeklySchedule()
	day := weekly["monday"]
	day.ClosedHours = []int{22, 23}
	weekly["monday"] = day
	if _, err := s.PutSchedule(ctx, admin, "Tennis Court", weekly, nil); err != nil {
		t.Fatalf("put schedule: %v", err)
	}

	start, end := slot(monday, 21, 23)
	_, err := s.Create(ctx, booking.CreateParams{
		OwnerID: ownerID, FacilityType: "Tennis Court", Title: "match",
		StartTime: start, EndTime: end,
	})
	var unavailable booking.SlotUnavailableError
	if !errors.As(err, &unavailable) || unavailable.Reason != booking.ReasonClosedHour || unavailable.ClosedHour != 22 {
		t.Fatalf("err = %v, want closed_hour 22", err)
	}

	mustCreate(t, s, ownerID, "Tennis Court", 20, 22)
}

func TestApproveRevertKeepsReservation(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()
	res := mustCreate(t, s, ownerID, "Gym", 10, 11)

	approved, err := s.SetStatus(ctx, res.ID, admin, booking.StatusApproved)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != booking.StatusApproved {
		t.Fatalf("status = %s, want approved", approved.Status)
	}

	reverted, err := s.SetStatus(ctx, res.ID, admin, booking.StatusPending)
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if reverted.Status != booking.StatusPending {
		t.Fatalf("status = %s, want pending", reverted.Status)
	}
	if reverted.ID != res.ID || !reverted.StartTime.Equal(res.StartTime) {
		t.Fatalf("revert changed identity: %+v vs %+v", reverted, res)
	}
}

func TestRejectPendingRemovesRow(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()
	res := mustCreate(t, s, ownerID, "Gym", 10, 11)

	rejected, err := s.SetStatus(ctx, res.ID, admin, booking.StatusCancelled)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != booking.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", rejected.Status)
	}

	if _, err := s.Get(ctx, res.ID); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("rejected reservation still present: err = %v", err)
	}

	// The slot is free again.
	mustCreate(t, s, otherID, "Gym", 10, 11)
}

func TestCancelApprovedKeepsRowAndFreesSlot(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()
	res := mustCreate(t, s, ownerID, "Gym", 10, 11)
	if _, err := s.SetStatus(ctx, res.ID, admin, booking.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}

	cancelled, err := s.SetStatus(ctx, res.ID, resident, booking.StatusCancelled)
	if err != nil {
		t.Fatalf("owner cancel: %v", err)
	}
	if cancelled.Status != booking.StatusCancelled {
		t.Fatalf("status = %s, want cancelled", cancelled.Status)
	}

	// The cancelled row survives and no longer blocks the slot.
	if _, err := s.Get(ctx, res.ID); err != nil {
		t.Fatalf("cancelled reservation gone: %v", err)
	}
	mustCreate(t, s, otherID, "Gym", 10, 11)
}

func TestReactivateCancelled(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()
	res := mustCreate(t, s, ownerID, "Gym", 10, 11)
	if _, err := s.SetStatus(ctx, res.ID, admin, booking.StatusApproved); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := s.SetStatus(ctx, res.ID, admin, booking.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	reactivated, err := s.SetStatus(ctx, res.ID, admin, booking.StatusApproved)
	if err != nil {
		t.Fatalf("reactivate: %v", err)
	}
	if reactivated.Status != booking.StatusApproved {
		t.Fatalf("status = %s, want approved", reactivated.Status)
	}

	// cancelled -> pending is not a legal move.
	if _, err := s.SetStatus(ctx, res.ID, admin, booking.StatusCancelled); err != nil {
		t.Fatalf("cancel again: %v", err)
	}
	if _, err := s.SetStatus(ctx, res.ID, admin, booking.StatusPending); err == nil {
		t.Fatal("cancelled -> pending accepted")
	}
}

func TestOwnershipRules(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()
	res := mustCreate(t, s, ownerID, "Gym", 10, 11)

	// A non-admin cannot approve, not even their own request.
	if _, err := s.SetStatus(ctx, res.ID, resident, booking.StatusApproved); !errors.Is(err, booking.ErrForbidden) {
		t.Fatalf("owner approve: err = %v, want ErrForbidden", err)
	}

	// Another resident cannot touch the reservation at all.
	neighbor := booking.Caller{ID: otherID}
	if _, err := s.SetStatus(ctx, res.ID, neighbor, booking.StatusCancelled); !errors.Is(err, booking.ErrForbidden) {
		t.Fatalf("neighbor cancel: err = %v, want ErrForbidden", err)
	}
	if err := s.Delete(ctx, res.ID, neighbor); !errors.Is(err, booking.ErrForbidden) {
		t.Fatalf("neighbor delete: err = %v, want ErrForbidden", err)
	}

	// The owner can delete their own row.
	if err := s.Delete(ctx, res.ID, resident); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
}

func TestConcurrentCreateSingleWinner(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()

	// Warm the schedule so goroutines race only on the insert.
	if _, err := s.GetSchedule(ctx, "Meeting Room"); err != nil {
		t.Fatalf("warm schedule: %v", err)
	}

	const attempts = 8
	start, end := slot(monday, 14, 15)

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.Create(ctx, booking.CreateParams{
				OwnerID: ownerID, FacilityType: "Meeting Room", Title: "standup",
				StartTime: start, EndTime: end,
			})
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		var unavailable booking.SlotUnavailableError
		if !errors.As(err, &unavailable) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestCheckAvailabilityVerdicts(t *testing.T) {
	s, _ := newTestScheduler(t)
	ctx := context.Background()

	start, end := slot(monday, 9, 10)
	verdict, err := s.CheckAvailability(ctx, "Basketball Court", start, end)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !verdict.Available {
		t.Fatalf("fresh slot unavailable: %+v", verdict)
	}

	res := mustCreate(t, s, ownerID, "Basketball Court", 9, 10)
	verdict, err = s.CheckAvailability(ctx, "Basketball Court", start, end)
	if err != nil {
		t.Fatalf("check after create: %v", err)
	}
	if verdict.Available || verdict.Reason != booking.ReasonConflict || verdict.ConflictID != res.ID {
		t.Fatalf("verdict = %+v, want conflict with id %d", verdict, res.ID)
	}
}
