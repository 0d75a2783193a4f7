// internal/db/apartments.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Apartment struct {
	ID              int64     `json:"id"`
	BlockNumber     string    `json:"blockNumber"`
	ApartmentNumber string    `json:"apartmentNumber"`
	Floor           int64     `json:"floor"`
	SquareMeters    float64   `json:"squareMeters"`
	ParkingSpot     string    `json:"parkingSpot,omitempty"`
	DuesCoefficient float64   `json:"duesCoefficient"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

const apartmentColumns = `id, block_number, apartment_number, floor, square_meters, parking_spot, dues_coefficient, created_at, updated_at`

func scanApartment(row interface{ Scan(...any) error }) (Apartment, error) {
	var apt Apartment
	var parkingSpot sql.NullString
	err := row.Scan(
		&apt.ID,
		&apt.BlockNumber,
		&apt.ApartmentNumber,
		&apt.Floor,
		&apt.SquareMeters,
		&parkingSpot,
		&apt.DuesCoefficient,
		&apt.CreatedAt,
		&apt.UpdatedAt,
	)
	if err != nil {
		return Apartment{}, err
	}
	apt.ParkingSpot = parkingSpot.String
	return apt, nil
}

type ApartmentParams struct {
	BlockNumber     string
	ApartmentNumber string
	Floor           int64
	SquareMeters    float64
	ParkingSpot     string
	DuesCoefficient float64
}

func (q *Queries) CreateApartment(ctx context.Context, params ApartmentParams) (Apartment, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO apartments (block_number, apartment_number, floor, square_meters, parking_spot, dues_coefficient)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING `+apartmentColumns,
		params.BlockNumber, params.ApartmentNumber, params.Floor, params.SquareMeters,
		toNullString(params.ParkingSpot), params.DuesCoefficient)
	apt, err := scanApartment(row)
	if err != nil {
		return Apartment{}, fmt.Errorf("create apartment: %w", err)
	}
	return apt, nil
}

func (q *Queries) GetApartment(ctx context.Context, id int64) (Apartment, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+apartmentColumns+` FROM apartments WHERE id = ?`, id)
	return scanApartment(row)
}

func (q *Queries) ListApartments(ctx context.Context) ([]Apartment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+apartmentColumns+` FROM apartments ORDER BY block_number, apartment_number`)
	if err != nil {
		return nil, fmt.Errorf("list apartments: %w", err)
	}
	defer rows.Close()

	var apartments []Apartment
	for rows.Next() {
		apt, err := scanApartment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan apartment: %w", err)
		}
		apartments = append(apartments, apt)
	}
	return apartments, rows.Err()
}

func (q *Queries) UpdateApartment(ctx context.Context, id int64, params ApartmentParams) (Apartment, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE apartments
		 SET block_number = ?, apartment_number = ?, floor = ?, square_meters = ?,
		     parking_spot = ?, dues_coefficient = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING `+apartmentColumns,
		params.BlockNumber, params.ApartmentNumber, params.Floor, params.SquareMeters,
		toNullString(params.ParkingSpot), params.DuesCoefficient, id)
	return scanApartment(row)
}

func (q *Queries) DeleteApartment(ctx context.Context, id int64) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM apartments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete apartment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete apartment: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
