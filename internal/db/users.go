// internal/db/users.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Role         string    `json:"role"`
	ApartmentID  *int64    `json:"apartmentId,omitempty"`
	IsApproved   bool      `json:"isApproved"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

const userColumns = `id, email, password_hash, phone, first_name, last_name, role, apartment_id, is_approved, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	var apartmentID sql.NullInt64
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Phone,
		&user.FirstName,
		&user.LastName,
		&user.Role,
		&apartmentID,
		&user.IsApproved,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return User{}, err
	}
	if apartmentID.Valid {
		user.ApartmentID = &apartmentID.Int64
	}
	return user, nil
}

type CreateUserParams struct {
	Email        string
	PasswordHash string
	Phone        string
	FirstName    string
	LastName     string
	Role         string
	ApartmentID  *int64
}

func (q *Queries) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO users (email, password_hash, phone, first_name, last_name, role, apartment_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING `+userColumns,
		params.Email, params.PasswordHash, params.Phone, params.FirstName, params.LastName,
		params.Role, toNullInt64(params.ApartmentID))
	user, err := scanUser(row)
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (q *Queries) GetUserByID(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (q *Queries) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY last_name, first_name`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// ListAdminEmails returns the addresses of approved administrators, used
// for pending-reservation reminders.
func (q *Queries) ListAdminEmails(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT email FROM users WHERE role = 'admin' AND is_approved = 1`)
	if err != nil {
		return nil, fmt.Errorf("list admin emails: %w", err)
	}
	defer rows.Close()

	var emails []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan admin email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, rows.Err()
}

type UpdateUserParams struct {
	ID          int64
	Role        string
	ApartmentID *int64
	IsApproved  bool
}

func (q *Queries) UpdateUser(ctx context.Context, params UpdateUserParams) (User, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE users
		 SET role = ?, apartment_id = ?, is_approved = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING `+userColumns,
		params.Role, toNullInt64(params.ApartmentID), params.IsApproved, params.ID)
	return scanUser(row)
}

func (q *Queries) DeleteUser(ctx context.Context, id int64) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func toNullInt64(value *int64) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *value, Valid: true}
}
