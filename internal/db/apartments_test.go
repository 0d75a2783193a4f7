package db_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/testutil"
)

func TestApartmentRoundTrip(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	created, err := database.Queries.CreateApartment(ctx, db.ApartmentParams{
		BlockNumber:     "C",
		ApartmentNumber: "7",
		Floor:           2,
		SquareMeters:    87.5,
		ParkingSpot:     "P-14",
		DuesCoefficient: 1.2,
	})
	if err != nil {
		t.Fatalf("create apartment: %v", err)
	}
	if created.BlockNumber != "C" {
		t.Fatalf("block = %q, want C", created.BlockNumber)
	}
	if created.SquareMeters != 87.5 {
		t.Fatalf("square meters = %v, want 87.5", created.SquareMeters)
	}
	if created.ParkingSpot != "P-14" {
		t.Fatalf("parking spot = %q, want P-14", created.ParkingSpot)
	}

	fetched, err := database.Queries.GetApartment(ctx, created.ID)
	if err != nil {
		t.Fatalf("get apartment: %v", err)
	}
	if fetched.BlockNumber != created.BlockNumber || fetched.SquareMeters != created.SquareMeters {
		t.Fatalf("fetched = %+v, want %+v", fetched, created)
	}

	updated, err := database.Queries.UpdateApartment(ctx, created.ID, db.ApartmentParams{
		BlockNumber:     "C",
		ApartmentNumber: "7",
		Floor:           2,
		SquareMeters:    90,
		DuesCoefficient: 1.4,
	})
	if err != nil {
		t.Fatalf("update apartment: %v", err)
	}
	if updated.SquareMeters != 90 || updated.DuesCoefficient != 1.4 {
		t.Fatalf("updated = %+v, want 90 sqm at coefficient 1.4", updated)
	}
	if updated.ParkingSpot != "" {
		t.Fatalf("parking spot = %q, want cleared", updated.ParkingSpot)
	}

	if err := database.Queries.DeleteApartment(ctx, created.ID); err != nil {
		t.Fatalf("delete apartment: %v", err)
	}
	if _, err := database.Queries.GetApartment(ctx, created.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("get deleted apartment: err = %v, want ErrNoRows", err)
	}
}

func TestListApartmentsOrdersByBlockAndNumber(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	for _, p := range []db.ApartmentParams{
		{BlockNumber: "B", ApartmentNumber: "1", Floor: 1, SquareMeters: 80, DuesCoefficient: 1},
		{BlockNumber: "A", ApartmentNumber: "2", Floor: 1, SquareMeters: 80, DuesCoefficient: 1},
		{BlockNumber: "A", ApartmentNumber: "1", Floor: 1, SquareMeters: 80, DuesCoefficient: 1},
	} {
		if _, err := database.Queries.CreateApartment(ctx, p); err != nil {
			t.Fatalf("seed apartment %s-%s: %v", p.BlockNumber, p.ApartmentNumber, err)
		}
	}

	list, err := database.Queries.ListApartments(ctx)
	if err != nil {
		t.Fatalf("list apartments: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("listed %d apartments, want 3", len(list))
	}
	got := make([]string, 0, len(list))
	for _, apt := range list {
		got = append(got, apt.BlockNumber+"-"+apt.ApartmentNumber)
	}
	want := []string{"A-1", "A-2", "B-1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}
