package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/evkent/evkent/internal/booking"
	"github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/testutil"
)

func TestBackupRoundTrip(t *testing.T) {
	source := testutil.NewTestDB(t)
	ctx := context.Background()

	apt := seedApartment(t, source, 1.2)
	user := seedResident(t, source, apt.ID)

	weekly := booking.DefaultWeeklySchedule()
	day := weekly["monday"]
	day.ClosedHours = []int{22, 23}
	weekly["monday"] = day
	if _, err := source.Queries.PutFacilitySchedule(ctx, booking.FacilitySchedule{
		FacilityType: "Tennis Court",
		Weekly:       weekly,
		ClosedDates:  []string{"2026-12-25"},
	}); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	res, err := source.Queries.CreateReservation(ctx, booking.Reservation{
		OwnerID:      user.ID,
		FacilityType: "Tennis Court",
		Title:        "match",
		StartTime:    time.Date(2026, 9, 7, 20, 0, 0, 0, time.UTC),
		EndTime:      time.Date(2026, 9, 7, 22, 0, 0, 0, time.UTC),
		Status:       booking.StatusPending,
	})
	if err != nil {
		t.Fatalf("seed reservation: %v", err)
	}

	if _, err := source.Queries.CreateDues(ctx, db.CreateDuesParams{
		ApartmentID: apt.ID,
		Month:       9,
		Year:        2026,
		Amount:      360,
		DueDate:     time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		Breakdown:   db.DuesBreakdown{Management: 300},
	}); err != nil {
		t.Fatalf("seed dues: %v", err)
	}

	if _, err := source.Queries.CreateAnnouncement(ctx, db.AnnouncementParams{
		Title:       "Water outage",
		Content:     "Block A, Thursday morning",
		Priority:    "urgent",
		PublishDate: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		CreatedBy:   user.ID,
	}); err != nil {
		t.Fatalf("seed announcement: %v", err)
	}

	if err := source.Queries.PutSetting(ctx, "dues.management", "300"); err != nil {
		t.Fatalf("seed setting: %v", err)
	}

	backup, err := source.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(backup.Users) != 1 || backup.Users[0].PasswordHash == "" {
		t.Fatalf("export users = %+v, want one user with password hash", backup.Users)
	}

	target := testutil.NewTestDB(t)
	if err := target.ImportAll(ctx, backup); err != nil {
		t.Fatalf("import: %v", err)
	}

	restored, err := target.Queries.GetReservation(ctx, res.ID)
	if err != nil {
		t.Fatalf("restored reservation: %v", err)
	}
	if restored.Title != "match" || !restored.StartTime.Equal(res.StartTime) {
		t.Fatalf("restored = %+v, want %+v", restored, res)
	}

	schedule, err := target.Queries.GetFacilitySchedule(ctx, "Tennis Court")
	if err != nil {
		t.Fatalf("restored schedule: %v", err)
	}
	if got := schedule.Weekly["monday"].ClosedHours; len(got) != 2 || got[0] != 22 {
		t.Fatalf("restored closed hours = %v, want [22 23]", got)
	}

	restoredUser, err := target.Queries.GetUserByEmail(ctx, user.Email)
	if err != nil {
		t.Fatalf("restored user: %v", err)
	}
	if restoredUser.ID != user.ID || restoredUser.PasswordHash != user.PasswordHash {
		t.Fatal("restored user lost identity or credentials")
	}

	value, err := target.Queries.GetSetting(ctx, "dues.management", "")
	if err != nil || value != "300" {
		t.Fatalf("restored setting = %q (%v), want 300", value, err)
	}

	stats, err := target.Queries.CollectStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Apartments != 1 || stats.Users != 1 || stats.PendingReservations != 1 {
		t.Fatalf("stats = %+v, want 1/1/1", stats)
	}
}
