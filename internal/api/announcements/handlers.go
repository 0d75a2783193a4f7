// internal/api/announcements/handlers.go
package announcements

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/evkent/evkent/internal/api/apiutil"
	appdb "github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/email"
)

const announcementQueryTimeout = 5 * time.Second

var (
	queries *appdb.Queries
	mailer  email.Sender
	once    sync.Once
)

// InitHandlers must be called during server startup before handling requests.
// The mail sender may be nil; urgent broadcasts are then skipped.
func InitHandlers(q *appdb.Queries, sender email.Sender) {
	if q == nil {
		return
	}
	once.Do(func() {
		queries = q
		mailer = sender
	})
}

type announcementRequest struct {
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Priority    string    `json:"priority"`
	PublishDate time.Time `json:"publishDate"`
}

func (req *announcementRequest) validate() error {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if req.Priority == "" {
		req.Priority = "normal"
	}
	switch {
	case req.Title == "":
		return apiutil.FieldError{Field: "title", Reason: "is required"}
	case req.Content == "":
		return apiutil.FieldError{Field: "content", Reason: "is required"}
	case req.Priority != "normal" && req.Priority != "urgent":
		return apiutil.FieldError{Field: "priority", Reason: "must be normal or urgent"}
	}
	if req.PublishDate.IsZero() {
		req.PublishDate = time.Now()
	}
	return nil
}

// POST /api/v1/announcements  (admin)
// Urgent announcements are additionally emailed to every approved resident.
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	logger := log.Ctx(r.Context())

	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	admin, ok := apiutil.RequireAdmin(w, r)
	if !ok {
		return
	}

	var req announcementRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), announcementQueryTimeout)
	defer cancel()

	announcement, err := queries.CreateAnnouncement(ctx, appdb.AnnouncementParams{
		Title:       req.Title,
		Content:     req.Content,
		Priority:    req.Priority,
		PublishDate: req.PublishDate,
		CreatedBy:   admin.ID,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to create announcement")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to create announcement")
		return
	}

	if announcement.Priority == "urgent" {
		broadcastUrgent(ctx, announcement, logger)
	}

	_ = apiutil.WriteJSON(w, http.StatusCreated, announcement)
}

// GET /api/v1/announcements
func HandleList(w http.ResponseWriter, r *http.Request) {
	if queries == nil {
		apiutil.WriteError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	if _, ok := apiutil.RequireUser(w, r); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), announcementQueryTimeout)
	defer cancel()

	list, err := queries.ListAnnouncements(ctx)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("Failed to list announcements")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to list announcements")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, list)
}

// PUT /api/v1/announcements/{id}  (admin)
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
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid announcement id")
		return
	}

	var req announcementRequest
	if err := apiutil.DecodeJSON(r, &req); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.validate(); err != nil {
		apiutil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), announcementQueryTimeout)
	defer cancel()

	announcement, err := queries.UpdateAnnouncement(ctx, id, appdb.AnnouncementParams{
		Title:       req.Title,
		Content:     req.Content,
		Priority:    req.Priority,
		PublishDate: req.PublishDate,
	})
	if errors.Is(err, sql.ErrNoRows) {
		apiutil.WriteError(w, http.StatusNotFound, "Announcement not found")
		return
	}
	if err != nil {
		logger.Error().Err(err).Int64("announcement_id", id).Msg("Failed to update announcement")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to update announcement")
		return
	}

	_ = apiutil.WriteJSON(w, http.StatusOK, announcement)
}

// DELETE /api/v1/announcements/{id}  (admin)
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
		apiutil.WriteError(w, http.StatusBadRequest, "Invalid announcement id")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), announcementQueryTimeout)
	defer cancel()

	if err := queries.DeleteAnnouncement(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			apiutil.WriteError(w, http.StatusNotFound, "Announcement not found")
			return
		}
		logger.Error().Err(err).Int64("announcement_id", id).Msg("Failed to delete announcement")
		apiutil.WriteError(w, http.StatusInternalServerError, "Failed to delete announcement")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// broadcastUrgent emails every approved user. Best effort, asynchronous.
func broadcastUrgent(ctx context.Context, a appdb.Announcement, logger *zerolog.Logger) {
	if mailer == nil {
		return
	}

	users, err := queries.ListUsers(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list users for urgent broadcast")
		return
	}

	recipients := make([]string, 0, len(users))
	for _, u := range users {
		if u.IsApproved {
			recipients = append(recipients, u.Email)
		}
	}

	email.NotifyAll(mailer, recipients, email.BuildUrgentAnnouncement(a.Title, a.Content), logger)
}
