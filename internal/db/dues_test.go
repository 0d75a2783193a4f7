package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/testutil"
)

func seedApartment(t *testing.T, database *db.DB, coefficient float64) db.Apartment {
	t.Helper()
	apt, err := database.Queries.CreateApartment(context.Background(), db.ApartmentParams{
		BlockNumber:     "A",
		ApartmentNumber: "12",
		Floor:           3,
		SquareMeters:    95,
		DuesCoefficient: coefficient,
	})
	if err != nil {
		t.Fatalf("seed apartment: %v", err)
	}
	return apt
}

func seedResident(t *testing.T, database *db.DB, apartmentID int64) db.User {
	t.Helper()
	user, err := database.Queries.CreateUser(context.Background(), db.CreateUserParams{
		Email:        "resident@example.com",
		PasswordHash: "x",
		Phone:        "+905551112233",
		FirstName:    "Test",
		LastName:     "Resident",
		Role:         "resident",
		ApartmentID:  &apartmentID,
	})
	if err != nil {
		t.Fatalf("seed resident: %v", err)
	}
	return user
}

func TestDuesAmountScalesWithCoefficient(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	breakdown := db.DuesBreakdown{
		Management:  100,
		Electricity: 50,
		Water:       30,
		NaturalGas:  40,
		Cleaning:    60,
		Maintenance: 20,
		Other:       0,
	}
	if got := breakdown.Total(); got != 300 {
		t.Fatalf("breakdown total = %v, want 300", got)
	}

	apt := seedApartment(t, database, 1.5)
	d, err := database.Queries.CreateDues(ctx, db.CreateDuesParams{
		ApartmentID: apt.ID,
		Month:       9,
		Year:        2026,
		Amount:      breakdown.Total() * apt.DuesCoefficient,
		DueDate:     time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
		Breakdown:   breakdown,
	})
	if err != nil {
		t.Fatalf("create dues: %v", err)
	}
	if d.Amount != 450 {
		t.Fatalf("amount = %v, want 450", d.Amount)
	}
	if d.Status != "unpaid" {
		t.Fatalf("status = %s, want unpaid", d.Status)
	}
	if d.Breakdown != breakdown {
		t.Fatalf("stored breakdown = %+v, want %+v", d.Breakdown, breakdown)
	}
}

func TestRecordPaymentFlipsStatus(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	apt := seedApartment(t, database, 1)
	user := seedResident(t, database, apt.ID)
	d, err := database.Queries.CreateDues(ctx, db.CreateDuesParams{
		ApartmentID: apt.ID,
		Month:       9,
		Year:        2026,
		Amount:      300,
		DueDate:     time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create dues: %v", err)
	}

	var partial db.Dues
	err = database.RunInTx(ctx, func(txdb *db.DB) error {
		var err error
		partial, err = txdb.Queries.RecordPayment(ctx, user.ID, d.ID, 100, "bank_transfer")
		return err
	})
	if err != nil {
		t.Fatalf("partial payment: %v", err)
	}
	if partial.Status != "partial" || partial.PaidAmount != 100 {
		t.Fatalf("after partial: status=%s paid=%v, want partial/100", partial.Status, partial.PaidAmount)
	}

	var paid db.Dues
	err = database.RunInTx(ctx, func(txdb *db.DB) error {
		var err error
		paid, err = txdb.Queries.RecordPayment(ctx, user.ID, d.ID, 200, "cash")
		return err
	})
	if err != nil {
		t.Fatalf("final payment: %v", err)
	}
	if paid.Status != "paid" || paid.PaidAmount != 300 {
		t.Fatalf("after final: status=%s paid=%v, want paid/300", paid.Status, paid.PaidAmount)
	}
	if paid.PaymentDate == nil {
		t.Fatal("payment date not set")
	}
}

func TestApartmentsWithoutDues(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	billed := seedApartment(t, database, 1)
	unbilled, err := database.Queries.CreateApartment(ctx, db.ApartmentParams{
		BlockNumber:     "B",
		ApartmentNumber: "1",
		Floor:           1,
		SquareMeters:    80,
		DuesCoefficient: 1,
	})
	if err != nil {
		t.Fatalf("seed second apartment: %v", err)
	}

	_, err = database.Queries.CreateDues(ctx, db.CreateDuesParams{
		ApartmentID: billed.ID,
		Month:       9,
		Year:        2026,
		Amount:      300,
		DueDate:     time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create dues: %v", err)
	}

	missing, err := database.Queries.ApartmentsWithoutDues(ctx, 9, 2026)
	if err != nil {
		t.Fatalf("apartments without dues: %v", err)
	}
	if len(missing) != 1 || missing[0].ID != unbilled.ID {
		t.Fatalf("missing = %+v, want only apartment %d", missing, unbilled.ID)
	}
}
