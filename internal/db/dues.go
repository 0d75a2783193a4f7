// internal/db/dues.go
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DuesBreakdown itemizes one month's charges. The billed amount is the
// breakdown total scaled by the apartment's dues coefficient.
type DuesBreakdown struct {
	Management  float64 `json:"management"`
	Electricity float64 `json:"electricity"`
	Water       float64 `json:"water"`
	NaturalGas  float64 `json:"naturalGas"`
	Cleaning    float64 `json:"cleaning"`
	Maintenance float64 `json:"maintenance"`
	Other       float64 `json:"other"`
}

func (b DuesBreakdown) Total() float64 {
	return b.Management + b.Electricity + b.Water + b.NaturalGas + b.Cleaning + b.Maintenance + b.Other
}

type Dues struct {
	ID          int64         `json:"id"`
	ApartmentID int64         `json:"apartmentId"`
	Month       int64         `json:"month"`
	Year        int64         `json:"year"`
	Amount      float64       `json:"amount"`
	PaidAmount  float64       `json:"paidAmount"`
	Status      string        `json:"status"`
	DueDate     time.Time     `json:"dueDate"`
	Breakdown   DuesBreakdown `json:"breakdown"`
	PaymentDate *time.Time    `json:"paymentDate,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

const duesColumns = `id, apartment_id, month, year, amount, paid_amount, status, due_date, breakdown, payment_date, created_at, updated_at`

func scanDues(row interface{ Scan(...any) error }) (Dues, error) {
	var d Dues
	var breakdownJSON string
	var paymentDate sql.NullTime
	err := row.Scan(
		&d.ID,
		&d.ApartmentID,
		&d.Month,
		&d.Year,
		&d.Amount,
		&d.PaidAmount,
		&d.Status,
		&d.DueDate,
		&breakdownJSON,
		&paymentDate,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return Dues{}, err
	}
	if err := json.Unmarshal([]byte(breakdownJSON), &d.Breakdown); err != nil {
		return Dues{}, fmt.Errorf("decode dues breakdown: %w", err)
	}
	if paymentDate.Valid {
		d.PaymentDate = &paymentDate.Time
	}
	return d, nil
}

type CreateDuesParams struct {
	ApartmentID int64
	Month       int64
	Year        int64
	Amount      float64
	DueDate     time.Time
	Breakdown   DuesBreakdown
}

func (q *Queries) CreateDues(ctx context.Context, params CreateDuesParams) (Dues, error) {
	breakdownJSON, err := json.Marshal(params.Breakdown)
	if err != nil {
		return Dues{}, fmt.Errorf("encode dues breakdown: %w", err)
	}
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO dues (apartment_id, month, year, amount, due_date, breakdown)
		 VALUES (?, ?, ?, ?, ?, ?)
		 RETURNING `+duesColumns,
		params.ApartmentID, params.Month, params.Year, params.Amount, params.DueDate, string(breakdownJSON))
	created, err := scanDues(row)
	if err != nil {
		return Dues{}, fmt.Errorf("create dues: %w", err)
	}
	return created, nil
}

func (q *Queries) GetDues(ctx context.Context, id int64) (Dues, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+duesColumns+` FROM dues WHERE id = ?`, id)
	return scanDues(row)
}

type DuesFilter struct {
	ApartmentID int64
	Month       int64
	Year        int64
}

func (q *Queries) ListDues(ctx context.Context, filter DuesFilter) ([]Dues, error) {
	query := `SELECT ` + duesColumns + ` FROM dues`
	var conditions []string
	var args []any
	if filter.ApartmentID != 0 {
		conditions = append(conditions, "apartment_id = ?")
		args = append(args, filter.ApartmentID)
	}
	if filter.Month != 0 {
		conditions = append(conditions, "month = ?")
		args = append(args, filter.Month)
	}
	if filter.Year != 0 {
		conditions = append(conditions, "year = ?")
		args = append(args, filter.Year)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY year DESC, month DESC, apartment_id"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dues: %w", err)
	}
	defer rows.Close()

	var dues []Dues
	for rows.Next() {
		d, err := scanDues(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dues: %w", err)
		}
		dues = append(dues, d)
	}
	return dues, rows.Err()
}

// ApartmentsWithoutDues lists apartments that have no dues row for the
// given period yet; the monthly billing job fills the gap.
func (q *Queries) ApartmentsWithoutDues(ctx context.Context, month, year int64) ([]Apartment, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+apartmentColumns+` FROM apartments a
		 WHERE NOT EXISTS (
		   SELECT 1 FROM dues d WHERE d.apartment_id = a.id AND d.month = ? AND d.year = ?
		 )
		 ORDER BY a.block_number, a.apartment_number`,
		month, year)
	if err != nil {
		return nil, fmt.Errorf("apartments without dues: %w", err)
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

type Payment struct {
	ID     int64     `json:"id"`
	UserID int64     `json:"userId"`
	DuesID int64     `json:"duesId"`
	Amount float64   `json:"amount"`
	Method string    `json:"method"`
	PaidAt time.Time `json:"paidAt"`
}

// RecordPayment inserts a payment row and rolls the paid amount into the
// dues record, flipping its status to partial or paid. Callers run it
// inside a transaction.
func (q *Queries) RecordPayment(ctx context.Context, userID, duesID int64, amount float64, method string) (Dues, error) {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO payments (user_id, dues_id, amount, method) VALUES (?, ?, ?, ?)`,
		userID, duesID, amount, method)
	if err != nil {
		return Dues{}, fmt.Errorf("insert payment: %w", err)
	}

	row := q.db.QueryRowContext(ctx,
		`UPDATE dues
		 SET paid_amount = paid_amount + ?,
		     status = CASE WHEN paid_amount + ? >= amount THEN 'paid' ELSE 'partial' END,
		     payment_date = CURRENT_TIMESTAMP,
		     updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING `+duesColumns,
		amount, amount, duesID)
	updated, err := scanDues(row)
	if err != nil {
		return Dues{}, fmt.Errorf("apply payment: %w", err)
	}
	return updated, nil
}

// DuesTotals aggregates billed and collected amounts for dashboard stats.
func (q *Queries) DuesTotals(ctx context.Context) (billed, collected float64, err error) {
	err = q.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0), COALESCE(SUM(paid_amount), 0) FROM dues`).
		Scan(&billed, &collected)
	if err != nil {
		return 0, 0, fmt.Errorf("dues totals: %w", err)
	}
	return billed, collected, nil
}
