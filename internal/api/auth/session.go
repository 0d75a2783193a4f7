package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/evkent/evkent/internal/api/authz"
	appdb "github.com/evkent/evkent/internal/db"
)

const (
	sessionCookieName = "evkent_session"
	sessionTTL        = 8 * time.Hour
	sessionTokenBytes = 32
)

var development bool

// Init records the runtime environment; cookies are only marked Secure
// outside development.
func Init(environment string) {
	development = environment == "development"
}

func isSecureCookie() bool {
	return !development
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateSession replaces any existing sessions for the user with a fresh
// token and sets the session cookie.
func CreateSession(ctx context.Context, w http.ResponseWriter, q *appdb.Queries, userID int64) error {
	if err := q.DeleteSessionsForUser(ctx, userID); err != nil {
		return err
	}

	token, err := newSessionToken()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(sessionTTL)
	if err := q.CreateSession(ctx, token, userID, expiresAt); err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
		MaxAge:   int(sessionTTL.Seconds()),
	})

	return nil
}

// ClearSession removes the stored session, if any, and expires the cookie.
func ClearSession(w http.ResponseWriter, r *http.Request, q *appdb.Queries) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		_ = q.DeleteSession(r.Context(), cookie.Value)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   isSecureCookie(),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

// UserFromRequest resolves the session cookie to an authenticated user.
// A missing, unknown or expired session yields (nil, nil); only storage
// failures surface as errors.
func UserFromRequest(r *http.Request, q *appdb.Queries) (*authz.AuthUser, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, nil
	}

	session, err := q.GetSession(r.Context(), cookie.Value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(session.ExpiresAt) {
		_ = q.DeleteSession(r.Context(), session.Token)
		return nil, nil
	}

	user, err := q.GetUserByID(r.Context(), session.UserID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &authz.AuthUser{
		ID:         user.ID,
		Email:      user.Email,
		Role:       user.Role,
		IsApproved: user.IsApproved,
	}, nil
}
