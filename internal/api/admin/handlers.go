// internal/api/admin/handlers.go
package admin

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/evkent/evkent/internal/api/apiutil"
	appdb "github.com/evkent/evkent/internal/db"
)

const adminQueryTimeout = 30 * time.Second

var (
	store *appdb.DB
	once  sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(database *appdb.DB) {
	if database == nil {
		return
	}
	once.Do(func() {
		store = database
	})
}

// GET /api/v1/admin/stats
func HandleStats(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if store == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	stats, err := store.Queries.CollectStats(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to collect stats")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to collect stats")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, stats)
}

// GET /api/v1/admin/backup/export
func HandleBackupExport(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if store == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	backup, err := store.ExportAll(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to export backup")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to export backup")
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="evkent-backup.json"`)
	if err := apiutil.WriteJSON(w, http.StatusOK, backup); err != nil {
		logger.Error().Err(err).Msg("Failed to write backup")
	}
}

// POST /api/v1/admin/backup/import
// Replaces all application state with the uploaded dump. Every session
// is invalidated, including the caller's.
func HandleBackupImport(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if store == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	admin, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}

	var backup appdb.Backup
	if err := apiutil.DecodeJSON(r, &backup); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(backup.Users) == 0 {
		apiutil.WriteError(w, http.StatusBadRequest, "backup contains no users; refusing to lock everyone out")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	if err := store.ImportAll(ctx, backup); err != nil {
		logger.Error().Err(err).Msg("Failed to import backup")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to import backup")
		return
	}

	logger.Info().Int64("admin_id", admin.ID).Int("users", len(backup.Users)).Msg("Backup imported")
	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]any{"success": true})
}

type settingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// GET /api/v1/admin/settings
func HandleListSettings(w http.ResponseWriter, r *http.Request) {
	if store == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	settings, err := store.Queries.ListSettings(ctx)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list settings")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to list settings")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, settings)
}

// PUT /api/v1/admin/settings
func HandlePutSetting(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if store == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireAdmin(w, r); !ok {
		return
	}

	var req settingRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Key == "" {
		apiutil.WriteError(w, http.StatusBadRequest, "key is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), adminQueryTimeout)
	defer cancel()

	if err := store.Queries.PutSetting(ctx, req.Key, req.Value); err != nil {
		logger.Error().Err(err).Str("key", req.Key).Msg("Failed to store setting")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to store setting")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, map[string]string{req.Key: req.Value})
}
