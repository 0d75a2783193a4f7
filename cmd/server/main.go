// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/evkent/evkent/internal/api/auth"
	"github.com/evkent/evkent/internal/booking"
	"github.com/evkent/evkent/internal/config"
	"github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/email"
	"github.com/evkent/evkent/internal/scheduler"
)

const shutdownTimeout = 30 * time.Second

func setupLogger(environment string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	setupLogger(cfg.App.Environment)
	auth.Init(cfg.App.Environment)

	database, err := db.NewFromConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open database")
	}
	defer database.Close()
	log.Info().Str("filename", cfg.Database.Filename).Msg("Database ready")

	var mailer email.Sender
	if cfg.Email.Enabled {
		client, err := email.NewSESClient(
			cfg.Email.AccessKeyID, cfg.Email.SecretAccessKey,
			cfg.Email.Region, cfg.Email.Sender,
		)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize email client")
		}
		mailer = client
		log.Info().Str("sender", cfg.Email.Sender).Msg("Email notifications enabled")
	}

	bookingScheduler := booking.NewScheduler(db.NewBookingStore(database))

	server := newServer(cfg, database, bookingScheduler, mailer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var jobs *scheduler.Service
	if cfg.Jobs.Enabled {
		jobs, err = scheduler.New()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize scheduler")
		}
		if err := scheduler.RegisterJobs(jobs, cfg, database, mailer); err != nil {
			log.Fatal().Err(err).Msg("Failed to register background jobs")
		}
		jobs.Start()
	}

	g.Go(func() error {
		log.Info().Int("port", cfg.App.Port).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if jobs != nil {
			if err := jobs.Stop(); err != nil {
				log.Error().Err(err).Msg("Scheduler shutdown error")
			}
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server terminated with error")
		os.Exit(1)
	}
}
