package reservations

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/evkent/evkent/internal/api/authz"
	"github.com/evkent/evkent/internal/booking"
	appdb "github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/testutil"
)

var (
	testResident = &authz.AuthUser{ID: 1, Email: "resident@example.com", Role: authz.RoleResident, IsApproved: true}
	testNeighbor = &authz.AuthUser{ID: 2, Email: "neighbor@example.com", Role: authz.RoleResident, IsApproved: true}
	testAdmin    = &authz.AuthUser{ID: 3, Email: "manager@example.com", Role: authz.RoleAdmin, IsApproved: true}
)

func setupReservationTest(t *testing.T) {
	t.Helper()

	database := testutil.NewTestDB(t)

	// Save and restore global state
	prevScheduler := scheduler
	prevQueries := queries
	prevMailer := mailer
	t.Cleanup(func() {
		scheduler = prevScheduler
		queries = prevQueries
		mailer = prevMailer
	})

	scheduler = booking.NewScheduler(appdb.NewBookingStore(database))
	queries = database.Queries
	mailer = nil

	for _, u := range []*authz.AuthUser{testResident, testNeighbor, testAdmin} {
		_, err := database.ExecContext(context.Background(),
			`INSERT INTO users (id, email, password_hash, phone, first_name, last_name, role, is_approved)
			 VALUES (?, ?, 'x', '+905551112233', 'Test', 'User', ?, 1)`,
			u.ID, u.Email, u.Role)
		if err != nil {
			t.Fatalf("seed user %s: %v", u.Email, err)
		}
	}
}

func doRequest(t *testing.T, user *authz.AuthUser, method, path, body string, route string, handler http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if user != nil {
		req = req.WithContext(authz.ContextWithUser(req.Context(), user))
	}

	// Route through a mux so path values resolve.
	mux := http.NewServeMux()
	mux.HandleFunc(route, handler)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createBody(startHour, endHour int) string {
	day := time.Date(2026, time.September, 7, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf(`{"facilityType": "Gym", "title": "training", "startTime": %q, "endTime": %q}`,
		day.Add(time.Duration(startHour)*time.Hour).Format(time.RFC3339),
		day.Add(time.Duration(endHour)*time.Hour).Format(time.RFC3339))
}

func createReservation(t *testing.T, user *authz.AuthUser, startHour, endHour int) booking.Reservation {
	t.Helper()
	rec := doRequest(t, user, http.MethodPost, "/api/v1/reservations", createBody(startHour, endHour),
		"POST /api/v1/reservations", HandleCreate)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
	}
	var res booking.Reservation
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return res
}

func TestCreateRequiresAuth(t *testing.T) {
	setupReservationTest(t)

	rec := doRequest(t, nil, http.MethodPost, "/api/v1/reservations", createBody(10, 11),
		"POST /api/v1/reservations", HandleCreate)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateConflictResponse(t *testing.T) {
	setupReservationTest(t)

	first := createReservation(t, testResident, 10, 12)

	rec := doRequest(t, testNeighbor, http.MethodPost, "/api/v1/reservations", createBody(11, 13),
		"POST /api/v1/reservations", HandleCreate)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Reason     string `json:"reason"`
		ConflictID int64  `json:"conflictId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode conflict response: %v", err)
	}
	if payload.Reason != string(booking.ReasonConflict) || payload.ConflictID != first.ID {
		t.Fatalf("conflict payload = %+v, want conflict with id %d", payload, first.ID)
	}
}

func TestCreateRejectsBadSlot(t *testing.T) {
	setupReservationTest(t)

	body := `{"facilityType": "Sauna", "title": "steam", "startTime": "2026-09-07T10:00:00Z", "endTime": "2026-09-07T11:00:00Z"}`
	rec := doRequest(t, testResident, http.MethodPost, "/api/v1/reservations", body,
		"POST /api/v1/reservations", HandleCreate)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown facility status = %d, want 400", rec.Code)
	}
}

func TestListScopesToOwner(t *testing.T) {
	setupReservationTest(t)

	createReservation(t, testResident, 10, 11)
	createReservation(t, testNeighbor, 12, 13)

	rec := doRequest(t, testResident, http.MethodGet, "/api/v1/reservations", "",
		"GET /api/v1/reservations", HandleList)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d: %s", rec.Code, rec.Body.String())
	}
	var mine []booking.Reservation
	if err := json.Unmarshal(rec.Body.Bytes(), &mine); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(mine) != 1 || mine[0].OwnerID != testResident.ID {
		t.Fatalf("resident list = %+v, want only own rows", mine)
	}

	rec = doRequest(t, testAdmin, http.MethodGet, "/api/v1/reservations", "",
		"GET /api/v1/reservations", HandleList)
	var all []booking.Reservation
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode admin list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d rows, want 2", len(all))
	}
}

func TestStatusEndpointEnforcesRoles(t *testing.T) {
	setupReservationTest(t)

	res := createReservation(t, testResident, 10, 11)
	statusPath := fmt.Sprintf("/api/v1/reservations/%d/status", res.ID)
	statusRoute := "PUT /api/v1/reservations/{id}/status"

	// Residents cannot approve.
	rec := doRequest(t, testResident, http.MethodPut, statusPath, `{"status": "approved"}`, statusRoute, HandleSetStatus)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("resident approve status = %d, want 403", rec.Code)
	}

	// A neighbor cannot cancel someone else's request.
	rec = doRequest(t, testNeighbor, http.MethodPut, statusPath, `{"status": "cancelled"}`, statusRoute, HandleSetStatus)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("neighbor cancel status = %d, want 403", rec.Code)
	}

	// Admin approves.
	rec = doRequest(t, testAdmin, http.MethodPut, statusPath, `{"status": "approved"}`, statusRoute, HandleSetStatus)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin approve status = %d: %s", rec.Code, rec.Body.String())
	}
	var updated booking.Reservation
	if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode approve response: %v", err)
	}
	if updated.Status != booking.StatusApproved {
		t.Fatalf("status = %s, want approved", updated.Status)
	}

	// Unknown id maps to 404.
	rec = doRequest(t, testAdmin, http.MethodPut, "/api/v1/reservations/9999/status", `{"status": "approved"}`, statusRoute, HandleSetStatus)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing reservation status = %d, want 404", rec.Code)
	}

	// Bad transition maps to 400.
	rec = doRequest(t, testAdmin, http.MethodPut, statusPath, `{"status": "approved"}`, statusRoute, HandleSetStatus)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("approved->approved status = %d, want 400", rec.Code)
	}
}

func TestRejectDeletesPendingRow(t *testing.T) {
	setupReservationTest(t)

	res := createReservation(t, testResident, 10, 11)
	statusPath := fmt.Sprintf("/api/v1/reservations/%d/status", res.ID)
	statusRoute := "PUT /api/v1/reservations/{id}/status"

	rec := doRequest(t, testAdmin, http.MethodPut, statusPath, `{"status": "cancelled"}`, statusRoute, HandleSetStatus)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject status = %d: %s", rec.Code, rec.Body.String())
	}

	getPath := fmt.Sprintf("/api/v1/reservations/%d", res.ID)
	rec = doRequest(t, testAdmin, http.MethodGet, getPath, "", "GET /api/v1/reservations/{id}", HandleGet)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("rejected reservation still readable: %d", rec.Code)
	}
}

func TestDeleteOwnerOnly(t *testing.T) {
	setupReservationTest(t)

	res := createReservation(t, testResident, 10, 11)
	path := fmt.Sprintf("/api/v1/reservations/%d", res.ID)
	route := "DELETE /api/v1/reservations/{id}"

	rec := doRequest(t, testNeighbor, http.MethodDelete, path, "", route, HandleDelete)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("neighbor delete status = %d, want 403", rec.Code)
	}

	rec = doRequest(t, testResident, http.MethodDelete, path, "", route, HandleDelete)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("owner delete status = %d, want 204", rec.Code)
	}
}
