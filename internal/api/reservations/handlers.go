// internal/api/reservations/handlers.go
package reservations

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/evkent/evkent/internal/api/apiutil"
	"github.com/evkent/evkent/internal/api/authz"
	"github.com/evkent/evkent/internal/booking"
	appdb "github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/email"
)

const reservationQueryTimeout = 5 * time.Second

var (
	scheduler   *booking.Scheduler
	queries     *appdb.Queries
	mailer      email.Sender
	handlerOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
// The mail sender may be nil; decision emails are then skipped.
func InitHandlers(sched *booking.Scheduler, q *appdb.Queries, sender email.Sender) {
	if sched == nil || q == nil {
		return
	}
	handlerOnce.Do(func() {
		scheduler = sched
		queries = q
		mailer = sender
	})
}

type createRequest struct {
	FacilityType string    `json:"facilityType"`
	Title        string    `json:"title"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	Notes        string    `json:"notes"`
}

// POST /api/v1/reservations
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if scheduler == nil {
		logger.Error().Msg("Reservation scheduler not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	var req createRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	created, err := scheduler.Create(ctx, booking.CreateParams{
		OwnerID:      user.ID,
		FacilityType: req.FacilityType,
		Title:        req.Title,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Notes:        req.Notes,
	})
	if err != nil {
		writeBookingError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusCreated, created); err != nil {
		logger.Error().Err(err).Int64("reservation_id", created.ID).Msg("Failed to write reservation response")
	}
}

// GET /api/v1/reservations
// Admins see every reservation; residents see only their own. ?facilityType=
// narrows by facility, ?mine=true forces the owner filter for admins too.
func HandleList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if scheduler == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	filter := booking.ReservationFilter{
		FacilityType: r.URL.Query().Get("facilityType"),
	}
	if !authz.IsAdmin(user) || r.URL.Query().Get("mine") == "true" {
		filter.OwnerID = user.ID
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	list, err := scheduler.List(ctx, filter)
	if err != nil {
		writeBookingError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, list); err != nil {
		logger.Error().Err(err).Msg("Failed to write reservation list")
	}
}

// GET /api/v1/reservations/{id}
func HandleGet(w http.ResponseWriter, r *http.Request) {
	if scheduler == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	id, err := reservationID(r)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid reservation id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	res, err := scheduler.Get(ctx, id)
	if err != nil {
		writeBookingError(w, r, err)
		return
	}
	if !authz.IsAdmin(user) && res.OwnerID != user.ID {
		apiutil.WriteError(w, http.StatusForbidden, "Forbidden")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, res)
}

type statusRequest struct {
	Status string `json:"status"`
}

// PUT /api/v1/reservations/{id}/status
func HandleSetStatus(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if scheduler == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	id, err := reservationID(r)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid reservation id")
		return
	}

	var req statusRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	caller := booking.Caller{ID: user.ID, Admin: authz.IsAdmin(user)}
	updated, err := scheduler.SetStatus(ctx, id, caller, booking.Status(req.Status))
	if err != nil {
		writeBookingError(w, r, err)
		return
	}

	// Residents hear about admin decisions on their requests by email.
	if caller.Admin && updated.OwnerID != caller.ID {
		notifyOwner(ctx, updated, logger)
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, updated); err != nil {
		logger.Error().Err(err).Int64("reservation_id", id).Msg("Failed to write status response")
	}
}

// DELETE /api/v1/reservations/{id}
func HandleDelete(w http.ResponseWriter, r *http.Request) {
	if scheduler == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	id, err := reservationID(r)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid reservation id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), reservationQueryTimeout)
	defer cancel()

	caller := booking.Caller{ID: user.ID, Admin: authz.IsAdmin(user)}
	if err := scheduler.Delete(ctx, id, caller); err != nil {
		writeBookingError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// notifyOwner emails the reservation owner about an admin decision. Best
// effort; missing users or a nil mailer are skipped silently.
func notifyOwner(ctx context.Context, res booking.Reservation, logger *zerolog.Logger) {
	if mailer == nil || queries == nil {
		return
	}

	owner, err := queries.GetUserByID(ctx, res.OwnerID)
	if err != nil {
		logger.Warn().Err(err).Int64("owner_id", res.OwnerID).Msg("Failed to load owner for decision email")
		return
	}

	msg := email.BuildReservationDecision(res.FacilityType, res.Title, res.StartTime, res.EndTime, string(res.Status))
	email.Notify(mailer, owner.Email, msg, logger)
}

func reservationID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// writeBookingError maps domain errors onto HTTP responses. Slot rejections
// carry their reason in the body so clients can say exactly why.
func writeBookingError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())

	var validation booking.ValidationError
	var unavailable booking.SlotUnavailableError
	switch {
	case errors.As(err, &validation):
		apiutil.WriteError(w, http.StatusBadRequest, validation.Error())
	case errors.As(err, &unavailable):
		_ = apiutil.WriteJSON(w, http.StatusConflict, map[string]any{
			"success":    false,
			"error":      unavailable.Error(),
			"reason":     unavailable.Reason,
			"closedHour": unavailable.ClosedHour,
			"conflictId": unavailable.ConflictID,
		})
	case errors.Is(err, booking.ErrForbidden):
		apiutil.WriteError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, sql.ErrNoRows):
		apiutil.WriteError(w, http.StatusNotFound, "Reservation not found")
	default:
		logger.Error().Err(err).Msg("Reservation operation failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "Storage unavailable")
	}
}
