// internal/db/announcements.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type Announcement struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Priority    string    `json:"priority"`
	PublishDate time.Time `json:"publishDate"`
	CreatedBy   int64     `json:"createdBy"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

const announcementColumns = `id, title, content, priority, publish_date, created_by, created_at, updated_at`

func scanAnnouncement(row interface{ Scan(...any) error }) (Announcement, error) {
	var a Announcement
	err := row.Scan(
		&a.ID,
		&a.Title,
		&a.Content,
		&a.Priority,
		&a.PublishDate,
		&a.CreatedBy,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return Announcement{}, err
	}
	return a, nil
}

type AnnouncementParams struct {
	Title       string
	Content     string
	Priority    string
	PublishDate time.Time
	CreatedBy   int64
}

func (q *Queries) CreateAnnouncement(ctx context.Context, params AnnouncementParams) (Announcement, error) {
	row := q.db.QueryRowContext(ctx,
		`INSERT INTO announcements (title, content, priority, publish_date, created_by)
		 VALUES (?, ?, ?, ?, ?)
		 RETURNING `+announcementColumns,
		params.Title, params.Content, params.Priority, params.PublishDate, params.CreatedBy)
	created, err := scanAnnouncement(row)
	if err != nil {
		return Announcement{}, fmt.Errorf("create announcement: %w", err)
	}
	return created, nil
}

func (q *Queries) GetAnnouncement(ctx context.Context, id int64) (Announcement, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+announcementColumns+` FROM announcements WHERE id = ?`, id)
	return scanAnnouncement(row)
}

func (q *Queries) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+announcementColumns+` FROM announcements ORDER BY publish_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	defer rows.Close()

	var announcements []Announcement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan announcement: %w", err)
		}
		announcements = append(announcements, a)
	}
	return announcements, rows.Err()
}

func (q *Queries) UpdateAnnouncement(ctx context.Context, id int64, params AnnouncementParams) (Announcement, error) {
	row := q.db.QueryRowContext(ctx,
		`UPDATE announcements
		 SET title = ?, content = ?, priority = ?, publish_date = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?
		 RETURNING `+announcementColumns,
		params.Title, params.Content, params.Priority, params.PublishDate, id)
	return scanAnnouncement(row)
}

func (q *Queries) DeleteAnnouncement(ctx context.Context, id int64) error {
	result, err := q.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
