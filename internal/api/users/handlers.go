// internal/api/users/handlers.go
package users

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

const userQueryTimeout = 5 * time.Second

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

// GET /api/v1/users/me
func HandleMe(w http.ResponseWriter, r *http.Request) {
	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	authUser := authz.UserFromContext(r.Context())
	if authUser == nil {
		apiutil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), userQueryTimeout)
	defer cancel()

	user, err := queries.GetUserByID(ctx, authUser.ID)
	if errors.Is(err, sql.ErrNoRows) {
		apiutil.WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to load current user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, user)
}

// GET /api/v1/users  (admin)
func HandleList(w http.ResponseWriter, r *http.Request) {
	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), userQueryTimeout)
	defer cancel()

	list, err := queries.ListUsers(ctx)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list users")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, list)
}

type updateRequest struct {
	Role        string `json:"role"`
	ApartmentID *int64 `json:"apartmentId"`
	IsApproved  bool   `json:"isApproved"`
}

// PUT /api/v1/users/{id}  (admin)
// Approves residents, assigns apartments and changes roles in one call.
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
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	var req updateRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Role != authz.RoleAdmin && req.Role != authz.RoleResident {
		apiutil.WriteError(w, http.StatusBadRequest, "role must be admin or resident")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), userQueryTimeout)
	defer cancel()

	user, err := queries.UpdateUser(ctx, appdb.UpdateUserParams{
		ID:          id,
		Role:        req.Role,
		ApartmentID: req.ApartmentID,
		IsApproved:  req.IsApproved,
	})
	if errors.Is(err, sql.ErrNoRows) {
		apiutil.WriteError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		logger.Error().Err(err).Int64("user_id", id).Msg("Failed to update user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update user")
		return
	}

	logger.Info().Int64("user_id", id).Bool("approved", user.IsApproved).Msg("User updated")
	_ = apiutil.WriteJSON(w, http.StatusOK, user)
}

// DELETE /api/v1/users/{id}  (admin)
func HandleDelete(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	admin, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid user id")
		return
	}
	if id == admin.ID {
		apiutil.WriteError(w, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), userQueryTimeout)
	defer cancel()

	if err := queries.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "User not found")
			return
		}
		logger.Error().Err(err).Int64("user_id", id).Msg("Failed to delete user")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to delete user")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
