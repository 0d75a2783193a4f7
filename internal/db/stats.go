// internal/db/stats.go
package db

import (
	"context"
	"fmt"
)

// Stats are the admin dashboard counters.
type Stats struct {
	Apartments          int64   `json:"apartments"`
	Users               int64   `json:"users"`
	PendingUsers        int64   `json:"pendingUsers"`
	PendingReservations int64   `json:"pendingReservations"`
	DuesBilled          float64 `json:"duesBilled"`
	DuesCollected       float64 `json:"duesCollected"`
}

func (q *Queries) CollectStats(ctx context.Context) (Stats, error) {
	var s Stats
	counts := []struct {
		query string
		dst   *int64
	}{
		{`SELECT COUNT(*) FROM apartments`, &s.Apartments},
		{`SELECT COUNT(*) FROM users`, &s.Users},
		{`SELECT COUNT(*) FROM users WHERE is_approved = 0`, &s.PendingUsers},
		{`SELECT COUNT(*) FROM reservations WHERE status = 'pending'`, &s.PendingReservations},
	}
	for _, c := range counts {
		if err := q.db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("collect stats: %w", err)
		}
	}

	billed, collected, err := q.DuesTotals(ctx)
	if err != nil {
		return Stats{}, err
	}
	s.DuesBilled = billed
	s.DuesCollected = collected
	return s, nil
}
