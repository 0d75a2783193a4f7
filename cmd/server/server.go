// cmd/server/server.go
package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/evkent/evkent/internal/api"
	"github.com/evkent/evkent/internal/api/admin"
	"github.com/evkent/evkent/internal/api/announcements"
	"github.com/evkent/evkent/internal/api/apartments"
	"github.com/evkent/evkent/internal/api/auth"
	"github.com/evkent/evkent/internal/api/dues"
	"github.com/evkent/evkent/internal/api/facilities"
	"github.com/evkent/evkent/internal/api/reservations"
	"github.com/evkent/evkent/internal/api/users"
	"github.com/evkent/evkent/internal/booking"
	"github.com/evkent/evkent/internal/config"
	"github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/email"
)

func newServer(cfg *config.Config, database *db.DB, sched *booking.Scheduler, mailer email.Sender) *http.Server {
	auth.InitHandlers(database.Queries)
	users.InitHandlers(database.Queries)
	apartments.InitHandlers(database.Queries)
	facilities.InitHandlers(sched)
	reservations.InitHandlers(sched, database.Queries, mailer)
	dues.InitHandlers(database)
	announcements.InitHandlers(database.Queries, mailer)
	admin.InitHandlers(database)

	router := http.NewServeMux()
	registerRoutes(router)

	handler := api.ChainMiddleware(
		router,
		api.WithAuth(database.Queries),
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
	)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Auth
	mux.HandleFunc("POST /api/v1/auth/register", auth.HandleRegister)
	mux.HandleFunc("POST /api/v1/auth/login", auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.HandleLogout)

	// Users
	mux.HandleFunc("GET /api/v1/users/me", users.HandleMe)
	mux.HandleFunc("GET /api/v1/users", users.HandleList)
	mux.HandleFunc("PUT /api/v1/users/{id}", users.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/users/{id}", users.HandleDelete)

	// Apartments
	mux.HandleFunc("GET /api/v1/apartments", apartments.HandleList)
	mux.HandleFunc("POST /api/v1/apartments", apartments.HandleCreate)
	mux.HandleFunc("GET /api/v1/apartments/{id}", apartments.HandleGet)
	mux.HandleFunc("PUT /api/v1/apartments/{id}", apartments.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/apartments/{id}", apartments.HandleDelete)

	// Facilities and schedules
	mux.HandleFunc("GET /api/v1/facilities", facilities.HandleListFacilities)
	mux.HandleFunc("GET /api/v1/facilities/{type}/schedule", facilities.HandleGetSchedule)
	mux.HandleFunc("PUT /api/v1/facilities/{type}/schedule", facilities.HandlePutSchedule)
	mux.HandleFunc("GET /api/v1/facilities/{type}/availability", facilities.HandleCheckAvailability)

	// Reservations
	mux.HandleFunc("GET /api/v1/reservations", reservations.HandleList)
	mux.HandleFunc("POST /api/v1/reservations", reservations.HandleCreate)
	mux.HandleFunc("GET /api/v1/reservations/{id}", reservations.HandleGet)
	mux.HandleFunc("PUT /api/v1/reservations/{id}/status", reservations.HandleSetStatus)
	mux.HandleFunc("DELETE /api/v1/reservations/{id}", reservations.HandleDelete)

	// Dues
	mux.HandleFunc("GET /api/v1/dues", dues.HandleList)
	mux.HandleFunc("POST /api/v1/dues/generate", dues.HandleGenerate)
	mux.HandleFunc("POST /api/v1/dues/{id}/pay", dues.HandlePay)

	// Announcements
	mux.HandleFunc("GET /api/v1/announcements", announcements.HandleList)
	mux.HandleFunc("POST /api/v1/announcements", announcements.HandleCreate)
	mux.HandleFunc("PUT /api/v1/announcements/{id}", announcements.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/announcements/{id}", announcements.HandleDelete)

	// Admin
	mux.HandleFunc("GET /api/v1/admin/stats", admin.HandleStats)
	mux.HandleFunc("GET /api/v1/admin/backup/export", admin.HandleBackupExport)
	mux.HandleFunc("POST /api/v1/admin/backup/import", admin.HandleBackupImport)
	mux.HandleFunc("GET /api/v1/admin/settings", admin.HandleListSettings)
	mux.HandleFunc("PUT /api/v1/admin/settings", admin.HandlePutSetting)
}
