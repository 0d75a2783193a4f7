// internal/api/dues/handlers.go
package dues

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evkent/evkent/internal/api/apiutil"
	"github.com/evkent/evkent/internal/api/authz"
	appdb "github.com/evkent/evkent/internal/db"
)

const duesQueryTimeout = 10 * time.Second

var (
	queries *appdb.Queries
	store   *appdb.DB
	once    sync.Once
)

var paymentMethods = map[string]bool{
	"cash":          true,
	"bank_transfer": true,
	"credit_card":   true,
}

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB) {
	if database == nil {
		return
	}
	once.Do(func() {
		queries = database.Queries
		store = database
	})
}

type generateRequest struct {
	Month     int64              `json:"month"`
	Year      int64              `json:"year"`
	DueDate   time.Time          `json:"dueDate"`
	Breakdown appdb.DuesBreakdown `json:"breakdown"`
}

// POST /api/v1/dues/generate  (admin)
// Creates a dues row for every apartment that has none for the period.
// Each apartment is billed the breakdown total scaled by its coefficient.
func HandleGenerate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}

	var req generateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Month < 1 || req.Month > 12 {
		apiutil.WriteError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}
	if req.Year < 2000 {
		apiutil.WriteError(w, http.StatusBadRequest, "year is required")
		return
	}
	if req.Breakdown.Total() <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "breakdown total must be positive")
		return
	}
	if req.DueDate.IsZero() {
		req.DueDate = time.Date(int(req.Year), time.Month(req.Month), 15, 0, 0, 0, 0, time.Local)
	}

	ctx, cancel := context.WithTimeout(r.Context(), duesQueryTimeout)
	defer cancel()

	apartments, err := queries.ApartmentsWithoutDues(ctx, req.Month, req.Year)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to find unbilled apartments")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to generate dues")
		return
	}

	created := make([]appdb.Dues, 0, len(apartments))
	for _, apt := range apartments {
		d, err := queries.CreateDues(ctx, appdb.CreateDuesParams{
			ApartmentID: apt.ID,
			Month:       req.Month,
			Year:        req.Year,
			Amount:      req.Breakdown.Total() * apt.DuesCoefficient,
			DueDate:     req.DueDate,
			Breakdown:   req.Breakdown,
		})
		if err != nil {
			logger.Error().Err(err).Int64("apartment_id", apt.ID).Msg("Failed to create dues")
			apiutil.WriteError(w, http.StatusInternalServerError, "Failed to generate dues")
			return
		}
		created = append(created, d)
	}

	logger.Info().Int("count", len(created)).Int64("month", req.Month).Int64("year", req.Year).Msg("Dues generated")
	_ = apiutil.WriteJSON(w, http.StatusCreated, created)
}

// GET /api/v1/dues
// Admins may filter by ?apartmentId=&month=&year=; residents always see
// only their own apartment's dues.
func HandleList(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), duesQueryTimeout)
	defer cancel()

	var filter appdb.DuesFilter
	if authz.IsAdmin(user) {
		filter.ApartmentID, _ = strconv.ParseInt(r.URL.Query().Get("apartmentId"), 10, 64)
		filter.Month, _ = strconv.ParseInt(r.URL.Query().Get("month"), 10, 64)
		filter.Year, _ = strconv.ParseInt(r.URL.Query().Get("year"), 10, 64)
	} else {
		apartmentID, err := residentApartment(ctx, user.ID)
		if err != nil {
			logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to resolve resident apartment")
			apiutil.WriteError(w, http.StatusInternalServerError, "Failed to list dues")
			return
		}
		if apartmentID == 0 {
			_ = apiutil.WriteJSON(w, http.StatusOK, []appdb.Dues{})
			return
		}
		filter.ApartmentID = apartmentID
	}

	list, err := queries.ListDues(ctx, filter)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list dues")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to list dues")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, list)
}

type payRequest struct {
	Amount float64 `json:"amount"`
	Method string  `json:"method"`
}

// POST /api/v1/dues/{id}/pay
// Residents may pay dues for their own apartment; admins for any. Payment
// insert and balance update commit in one transaction.
func HandlePay(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil || store == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	user, ok := apiutil.RequireUser(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid dues id")
		return
	}

	var req payRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Amount <= 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if !paymentMethods[req.Method] {
		apiutil.WriteError(w, http.StatusBadRequest, "method must be cash, bank_transfer or credit_card")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), duesQueryTimeout)
	defer cancel()

	d, err := queries.GetDues(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		apiutil.WriteError(w, http.StatusNotFound, "Dues not found")
		return
	}
	if err != nil {
		logger.Error().Err(err).Int64("dues_id", id).Msg("Failed to load dues")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	if !authz.IsAdmin(user) {
		apartmentID, err := residentApartment(ctx, user.ID)
		if err != nil || apartmentID != d.ApartmentID {
			apiutil.WriteError(w, http.StatusForbidden, "Forbidden")
			return
		}
	}

	if d.Status == "paid" {
		apiutil.WriteError(w, http.StatusConflict, "Dues are already fully paid")
		return
	}

	var updated appdb.Dues
	err = store.RunInTx(ctx, func(txdb *appdb.DB) error {
		var err error
		updated, err = txdb.Queries.RecordPayment(ctx, user.ID, id, req.Amount, req.Method)
		return err
	})
	if err != nil {
		logger.Error().Err(err).Int64("dues_id", id).Msg("Failed to record payment")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to record payment")
		return
	}

	logger.Info().Int64("dues_id", id).Float64("amount", req.Amount).Str("status", updated.Status).Msg("Payment recorded")
	_ = apiutil.WriteJSON(w, http.StatusOK, updated)
}

func residentApartment(ctx context.Context, userID int64) (int64, error) {
	u, err := queries.GetUserByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if u.ApartmentID == nil {
		return 0, nil
	}
	return *u.ApartmentID, nil
}
