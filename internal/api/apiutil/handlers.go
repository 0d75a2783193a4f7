package apiutil

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/evkent/evkent/internal/api/authz"
)

type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

type HandlerError struct {
	Status  int
	Message string
	Err     error
}

func (e HandlerError) Error() string {
	return e.Message
}

func (e HandlerError) Unwrap() error {
	return e.Err
}

func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return fmt.Errorf("missing request body")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func WriteJSON(w http.ResponseWriter, status int, payload any) error {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	if err := encoder.Encode(payload); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// WriteError emits a JSON error body with a stable shape.
func WriteError(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, map[string]any{"success": false, "error": message})
}

// RequireUser writes the appropriate error response when no approved user
// is authenticated, returning the user otherwise.
func RequireUser(w http.ResponseWriter, r *http.Request) (*authz.AuthUser, bool) {
	user, err := authz.RequireUser(r.Context())
	if err != nil {
		writeAuthzError(w, r, err)
		return nil, false
	}
	return user, true
}

// RequireAdmin is RequireUser plus an admin role check.
func RequireAdmin(w http.ResponseWriter, r *http.Request) (*authz.AuthUser, bool) {
	user, err := authz.RequireAdmin(r.Context())
	if err != nil {
		writeAuthzError(w, r, err)
		return nil, false
	}
	return user, true
}

func writeAuthzError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.Ctx(r.Context())
	user := authz.UserFromContext(r.Context())
	switch {
	case errors.Is(err, authz.ErrUnauthenticated):
		logger.Warn().Str("path", r.URL.Path).Msg("Access denied: unauthenticated")
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, authz.ErrForbidden):
		logEvent := logger.Warn().Str("path", r.URL.Path)
		if user != nil {
			logEvent = logEvent.Int64("user_id", user.ID)
		}
		logEvent.Msg("Access denied: forbidden")
		WriteError(w, http.StatusForbidden, "Forbidden")
	default:
		logger.Error().Err(err).Str("path", r.URL.Path).Msg("Access denied: error")
		WriteError(w, http.StatusInternalServerError, "Failed to authorize request")
	}
}
