// internal/api/facilities/handlers.go
package facilities

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evkent/evkent/internal/api/apiutil"
	"github.com/evkent/evkent/internal/booking"
)

const facilityQueryTimeout = 5 * time.Second

var (
	scheduler   *booking.Scheduler
	handlerOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(sched *booking.Scheduler) {
	if sched == nil {
		return
	}
	handlerOnce.Do(func() {
		scheduler = sched
	})
}

// GET /api/v1/facilities
func HandleListFacilities(w http.ResponseWriter, r *http.Request) {
	if _, ok := apiutil.RequireUser(w, r); !ok {
		return
	}
	_ = apiutil.WriteJSON(w, http.StatusOK, booking.FacilityTypes)
}

// GET /api/v1/facilities/{type}/schedule
// Facilities without a stored schedule get the all-open default created on
// first read, so this never 404s for a known facility.
func HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if scheduler == nil {
		logger.Error().Msg("Reservation scheduler not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireUser(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	schedule, err := scheduler.GetSchedule(ctx, r.PathValue("type"))
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, schedule); err != nil {
		logger.Error().Err(err).Msg("Failed to write schedule response")
	}
}

type putScheduleRequest struct {
	WeeklySchedule booking.WeeklySchedule `json:"weeklySchedule"`
	ClosedDates    []string               `json:"closedDates"`
}

// PUT /api/v1/facilities/{type}/schedule
// Full replacement: the request must carry all seven days. Last write wins.
func HandlePutSchedule(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if scheduler == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}

	var req putScheduleRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	facilityType := r.PathValue("type")
	caller := booking.Caller{ID: user.ID, Admin: true}
	updated, err := scheduler.PutSchedule(ctx, caller, facilityType, req.WeeklySchedule, req.ClosedDates)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}

	logger.Info().Str("facility_type", facilityType).Msg("Facility schedule replaced")
	if err := apiutil.WriteJSON(w, http.StatusOK, updated); err != nil {
		logger.Error().Err(err).Msg("Failed to write schedule response")
	}
}

// GET /api/v1/facilities/{type}/availability?start=...&end=...
// Times are RFC 3339. Returns the verdict, never an error status for an
// unavailable slot.
func HandleCheckAvailability(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if scheduler == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireUser(w, r); !ok {
		return
	}

	start, err := time.Parse(time.RFC3339, r.URL.Query().Get("start"))
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "start must be an RFC 3339 timestamp")
		return
	}
	end, err := time.Parse(time.RFC3339, r.URL.Query().Get("end"))
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "end must be an RFC 3339 timestamp")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), facilityQueryTimeout)
	defer cancel()

	verdict, err := scheduler.CheckAvailability(ctx, r.PathValue("type"), start, end)
	if err != nil {
		writeScheduleError(w, r, err)
		return
	}

	if err := apiutil.WriteJSON(w, http.StatusOK, verdict); err != nil {
		logger.Error().Err(err).Msg("Failed to write availability response")
	}
}

func writeScheduleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())

	var validation booking.ValidationError
	switch {
	case errors.As(err, &validation):
		apiutil.WriteError(w, http.StatusBadRequest, validation.Error())
	case errors.Is(err, booking.ErrForbidden):
		apiutil.WriteError(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, booking.ErrNotFound):
		apiutil.WriteError(w, http.StatusNotFound, "Facility not found")
	default:
		logger.Error().Err(err).Msg("Facility schedule operation failed")
		apiutil.WriteError(w, http.StatusInternalServerError, "Storage unavailable")
	}
}
