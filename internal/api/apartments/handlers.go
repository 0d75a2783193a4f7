// internal/api/apartments/handlers.go
package apartments

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evkent/evkent/internal/api/apiutil"
	appdb "github.com/evkent/evkent/internal/db"
)

const apartmentQueryTimeout = 5 * time.Second

var (
	queries     *appdb.Queries
	queriesOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(q *appdb.Queries) {
	if q == nil {
		return
	}
	queriesOnce.Do(func() {
		queries = q
	})
}

type apartmentRequest struct {
	BlockNumber     string  `json:"blockNumber"`
	ApartmentNumber string  `json:"apartmentNumber"`
	Floor           int64   `json:"floor"`
	SquareMeters    float64 `json:"squareMeters"`
	ParkingSpot     string  `json:"parkingSpot"`
	DuesCoefficient float64 `json:"duesCoefficient"`
}

func (req *apartmentRequest) validate() error {
	req.BlockNumber = strings.TrimSpace(req.BlockNumber)
	req.ApartmentNumber = strings.TrimSpace(req.ApartmentNumber)
	switch {
	case req.BlockNumber == "":
		return apiutil.FieldError{Field: "blockNumber", Reason: "is required"}
	case req.ApartmentNumber == "":
		return apiutil.FieldError{Field: "apartmentNumber", Reason: "is required"}
	case req.SquareMeters <= 0:
		return apiutil.FieldError{Field: "squareMeters", Reason: "must be positive"}
	case req.DuesCoefficient <= 0:
		return apiutil.FieldError{Field: "duesCoefficient", Reason: "must be positive"}
	}
	return nil
}

func (req apartmentRequest) params() appdb.ApartmentParams {
	return appdb.ApartmentParams{
		BlockNumber:     req.BlockNumber,
		ApartmentNumber: req.ApartmentNumber,
		Floor:           req.Floor,
		SquareMeters:    req.SquareMeters,
		ParkingSpot:     req.ParkingSpot,
		DuesCoefficient: req.DuesCoefficient,
	}
}

// POST /api/v1/apartments  (admin)
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}

	var req apartmentRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), apartmentQueryTimeout)
	defer cancel()

	apartment, err := queries.CreateApartment(ctx, req.params())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create apartment")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create apartment")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusCreated, apartment)
}

// GET /api/v1/apartments
func HandleList(w http.ResponseWriter, r *http.Request) {
	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireUser(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), apartmentQueryTimeout)
	defer cancel()

	list, err := queries.ListApartments(ctx)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list apartments")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to list apartments")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, list)
}

// GET /api/v1/apartments/{id}
func HandleGet(w http.ResponseWriter, r *http.Request) {
	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireUser(w, r); !ok {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid apartment id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), apartmentQueryTimeout)
	defer cancel()

	apartment, err := queries.GetApartment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		apiutil.WriteError(w, http.StatusNotFound, "Apartment not found")
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Int64("apartment_id", id).Msg("Failed to load apartment")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load apartment")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, apartment)
}

// PUT /api/v1/apartments/{id}  (admin)
func HandleUpdate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid apartment id")
		return
	}

	var req apartmentRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), apartmentQueryTimeout)
	defer cancel()

	apartment, err := queries.UpdateApartment(ctx, id, req.params())
	if errors.Is(err, sql.ErrNoRows) {
		apiutil.WriteError(w, http.StatusNotFound, "Apartment not found")
		return
	}
	if err != nil {
		logger.Error().Err(err).Int64("apartment_id", id).Msg("Failed to update apartment")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update apartment")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, apartment)
}

// DELETE /api/v1/apartments/{id}  (admin)
func HandleDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid apartment id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), apartmentQueryTimeout)
	defer cancel()

	if err := queries.DeleteApartment(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Apartment not found")
			return
		}
		logger.Error().Err(err).Int64("apartment_id", id).Msg("Failed to delete apartment")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to delete apartment")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
