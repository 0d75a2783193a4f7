// internal/scheduler/jobs.go
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evkent/evkent/internal/booking"
	"github.com/evkent/evkent/internal/config"
	"github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/email"
)

const jobTimeout = 2 * time.Minute

func minuteDuration(minutes int) time.Duration {
	if minutes <= 0 {
		minutes = 15
	}
	return time.Duration(minutes) * time.Minute
}

// RegisterJobs wires all recurring background work. The email sender may
// be nil; jobs that notify then degrade to logging only.
func RegisterJobs(s *Service, cfg *config.Config, database *db.DB, mailer email.Sender) error {
	if database == nil {
		return fmt.Errorf("background jobs require database")
	}

	if _, err := s.AddJob("monthly_dues_generation", cfg.Jobs.DuesGenerationCron, func() {
		runDuesGeneration(database)
	}); err != nil {
		return err
	}

	if _, err := s.AddJob("pending_reservation_reminder", cfg.Jobs.PendingReminderCron, func() {
		runPendingReservationReminder(database, mailer)
	}); err != nil {
		return err
	}

	if _, err := s.AddIntervalJob("session_cleanup", cfg.Jobs.SessionCleanupMinutes, func() {
		runSessionCleanup(database)
	}); err != nil {
		return err
	}

	return nil
}

// runDuesGeneration bills every apartment that has no dues row for the
// current month yet. The per-category amounts come from the settings
// table so admins can adjust them without a deploy; an apartment's bill
// is the breakdown total scaled by its dues coefficient.
func runDuesGeneration(database *db.DB) {
	jobLogger := log.With().Str("component", "monthly_dues_job").Logger()
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	ctx = jobLogger.WithContext(ctx)

	now := time.Now()
	month, year := int64(now.Month()), int64(now.Year())

	breakdown, err := loadBreakdownFromSettings(ctx, database.Queries)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to load dues breakdown settings")
		return
	}
	if breakdown.Total() <= 0 {
		jobLogger.Info().Msg("Dues generation skipped: no breakdown configured")
		return
	}

	apartments, err := database.Queries.ApartmentsWithoutDues(ctx, month, year)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to find unbilled apartments")
		return
	}

	dueDate := time.Date(now.Year(), now.Month(), 15, 0, 0, 0, 0, time.Local)
	created := 0
	for _, apt := range apartments {
		_, err := database.Queries.CreateDues(ctx, db.CreateDuesParams{
			ApartmentID: apt.ID,
			Month:       month,
			Year:        year,
			Amount:      breakdown.Total() * apt.DuesCoefficient,
			DueDate:     dueDate,
			Breakdown:   breakdown,
		})
		if err != nil {
			jobLogger.Error().Err(err).Int64("apartment_id", apt.ID).Msg("Failed to create dues")
			continue
		}
		created++
	}

	if created > 0 {
		jobLogger.Info().Int("count", created).Int64("month", month).Int64("year", year).Msg("Monthly dues generated")
	}
}

// loadBreakdownFromSettings reads the configured per-category amounts.
// Missing keys default to zero.
func loadBreakdownFromSettings(ctx context.Context, q *db.Queries) (db.DuesBreakdown, error) {
	var b db.DuesBreakdown
	fields := []struct {
		key string
		dst *float64
	}{
		{"dues.management", &b.Management},
		{"dues.electricity", &b.Electricity},
		{"dues.water", &b.Water},
		{"dues.natural_gas", &b.NaturalGas},
		{"dues.cleaning", &b.Cleaning},
		{"dues.maintenance", &b.Maintenance},
		{"dues.other", &b.Other},
	}
	for _, f := range fields {
		raw, err := q.GetSetting(ctx, f.key, "0")
		if err != nil {
			return db.DuesBreakdown{}, err
		}
		if _, err := fmt.Sscanf(raw, "%f", f.dst); err != nil {
			return db.DuesBreakdown{}, fmt.Errorf("setting %s: invalid amount %q", f.key, raw)
		}
	}
	return b, nil
}

// runPendingReservationReminder emails every admin a digest of
// reservation requests still awaiting a decision.
func runPendingReservationReminder(database *db.DB, mailer email.Sender) {
	jobLogger := log.With().Str("component", "pending_reminder_job").Logger()
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	pending, err := database.Queries.ListReservations(ctx, booking.ReservationFilter{})
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to list reservations")
		return
	}
	count := 0
	for _, res := range pending {
		if res.Status == booking.StatusPending {
			count++
		}
	}
	if count == 0 {
		return
	}

	jobLogger.Info().Int("pending", count).Msg("Pending reservations awaiting review")
	if mailer == nil {
		return
	}

	admins, err := database.Queries.ListAdminEmails(ctx)
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to list admin emails")
		return
	}
	email.NotifyAll(mailer, admins, email.BuildPendingReservationReminder(count), &jobLogger)
}

// runSessionCleanup sweeps expired session rows.
func runSessionCleanup(database *db.DB) {
	jobLogger := log.With().Str("component", "session_cleanup_job").Logger()
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := database.Queries.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		jobLogger.Error().Err(err).Msg("Failed to delete expired sessions")
		return
	}
	if removed > 0 {
		jobLogger.Info().Int64("removed", removed).Msg("Expired sessions cleaned up")
	}
}
