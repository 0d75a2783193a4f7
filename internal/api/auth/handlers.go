// internal/api/auth/handlers.go
package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog/log"

	"github.com/evkent/evkent/internal/api/apiutil"
	appdb "github.com/evkent/evkent/internal/db"
)

const (
	authQueryTimeout  = 5 * time.Second
	minPasswordLength = 8
	// Registration phone numbers are parsed against this region when no
	// country code is supplied.
	defaultPhoneRegion = "TR"
)

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

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// POST /api/v1/auth/register
func HandleRegister(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req registerRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if err := validateRegistration(req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	phone, err := normalizePhone(req.Phone)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	passwordHash, err := HashPassword(req.Password)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to hash password")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	if _, err := q.GetUserByEmail(ctx, req.Email); err == nil {
		apiutil.WriteError(w, http.StatusConflict, "An account with this email already exists")
		return
	} else if !errors.Is(err, sql.ErrNoRows) {
		logger.Error().Err(err).Msg("Failed to check existing user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	// New residents wait for admin approval before they can sign in.
	user, err := q.CreateUser(ctx, appdb.CreateUserParams{
		Email:        req.Email,
		PasswordHash: passwordHash,
		Phone:        phone,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         "resident",
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to register")
		return
	}

	logger.Info().Int64("user_id", user.ID).Msg("Resident registered, awaiting approval")
	if err := apiutil.WriteJSON(w, http.StatusCreated, user); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to write register response")
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// POST /api/v1/auth/login
func HandleLogin(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	q := loadQueries()
	if q == nil {
		logger.Error().Msg("Database queries not initialized")
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	var req loginRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), authQueryTimeout)
	defer cancel()

	user, err := q.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, sql.ErrNoRows) {
		apiutil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load user for login")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	if !VerifyPassword(user.PasswordHash, req.Password) {
		logger.Warn().Int64("user_id", user.ID).Msg("Login failed: bad credentials")
		apiutil.WriteError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	if !user.IsApproved {
		apiutil.WriteError(w, http.StatusForbidden, "Account is awaiting approval")
		return
	}

	if err := CreateSession(ctx, w, q, user.ID); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to create session")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	logger.Info().Int64("user_id", user.ID).Msg("User signed in")
	if err := apiutil.WriteJSON(w, http.StatusOK, user); err != nil {
		logger.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to write login response")
	}
}

// POST /api/v1/auth/logout
func HandleLogout(w http.ResponseWriter, r *http.Request) {
	q := loadQueries()
	if q == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	ClearSession(w, r, q)
	w.WriteHeader(http.StatusNoContent)
}

func validateRegistration(req registerRequest) error {
	switch {
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return apiutil.FieldError{Field: "email", Reason: "must be a valid email address"}
	case len(req.Password) < minPasswordLength:
		return apiutil.FieldError{Field: "password", Reason: "must be at least 8 characters"}
	case req.FirstName == "":
		return apiutil.FieldError{Field: "firstName", Reason: "is required"}
	case req.LastName == "":
		return apiutil.FieldError{Field: "lastName", Reason: "is required"}
	case strings.TrimSpace(req.Phone) == "":
		return apiutil.FieldError{Field: "phone", Reason: "is required"}
	}
	return nil
}

// normalizePhone validates the number and returns it in E.164 form.
func normalizePhone(raw string) (string, error) {
	parsed, err := phonenumbers.Parse(strings.TrimSpace(raw), defaultPhoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", apiutil.FieldError{Field: "phone", Reason: "must be a valid phone number"}
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

func loadQueries() *appdb.Queries {
	return queries
}
