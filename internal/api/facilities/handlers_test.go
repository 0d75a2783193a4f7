package facilities

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/evkent/evkent/internal/api/authz"
	"github.com/evkent/evkent/internal/booking"
	appdb "github.com/evkent/evkent/internal/db"
	"github.com/evkent/evkent/internal/testutil"
)

var (
	testResident = &authz.AuthUser{ID: 1, Email: "resident@example.com", Role: authz.RoleResident, IsApproved: true}
	testAdmin    = &authz.AuthUser{ID: 2, Email: "manager@example.com", Role: authz.RoleAdmin, IsApproved: true}
)

func setupFacilityTest(t *testing.T) {
	t.Helper()

	database := testutil.NewTestDB(t)

	prevScheduler := scheduler
	t.Cleanup(func() {
		scheduler = prevScheduler
	})
	scheduler = booking.NewScheduler(appdb.NewBookingStore(database))
}

func doRequest(t *testing.T, user *authz.AuthUser, method, path, body, route string, handler http.HandlerFunc) *httptest.ResponseRecorder {
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

	mux := http.NewServeMux()
	mux.HandleFunc(route, handler)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func schedulePath(facilityType string) string {
	return "/api/v1/facilities/" + url.PathEscape(facilityType) + "/schedule"
}

func TestGetScheduleReturnsDefault(t *testing.T) {
	setupFacilityTest(t)

	rec := doRequest(t, testResident, http.MethodGet, schedulePath("Gym"), "",
		"GET /api/v1/facilities/{type}/schedule", HandleGetSchedule)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var schedule booking.FacilitySchedule
	if err := json.Unmarshal(rec.Body.Bytes(), &schedule); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if schedule.FacilityType != "Gym" {
		t.Fatalf("facility = %q, want Gym", schedule.FacilityType)
	}
	for _, key := range booking.WeekDayKeys {
		if !schedule.Weekly[key].IsOpen {
			t.Fatalf("default day %s not open", key)
		}
	}

	rec = doRequest(t, testResident, http.MethodGet, schedulePath("Sauna"), "",
		"GET /api/v1/facilities/{type}/schedule", HandleGetSchedule)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown facility status = %d, want 400", rec.Code)
	}
}

func TestPutScheduleReplacesTemplate(t *testing.T) {
	setupFacilityTest(t)

	weekly := booking.DefaultWeeklySchedule()
	day := weekly["monday"]
	day.ClosedHours = []int{22, 23}
	weekly["monday"] = day
	payload, err := json.Marshal(map[string]any{
		"weeklySchedule": weekly,
		"closedDates":    []string{"2026-12-25"},
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	route := "PUT /api/v1/facilities/{type}/schedule"

	// Residents are rejected before any storage access.
	rec := doRequest(t, testResident, http.MethodPut, schedulePath("Tennis Court"), string(payload), route, HandlePutSchedule)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("resident put status = %d, want 403", rec.Code)
	}

	rec = doRequest(t, testAdmin, http.MethodPut, schedulePath("Tennis Court"), string(payload), route, HandlePutSchedule)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin put status = %d: %s", rec.Code, rec.Body.String())
	}

	var stored booking.FacilitySchedule
	if err := json.Unmarshal(rec.Body.Bytes(), &stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := stored.Weekly["monday"].ClosedHours; len(got) != 2 || got[0] != 22 || got[1] != 23 {
		t.Fatalf("closed hours = %v, want [22 23]", got)
	}
	if len(stored.ClosedDates) != 1 || stored.ClosedDates[0] != "2026-12-25" {
		t.Fatalf("closed dates = %v, want [2026-12-25]", stored.ClosedDates)
	}

	// A six-day template is rejected.
	delete(weekly, "sunday")
	partial, _ := json.Marshal(map[string]any{"weeklySchedule": weekly})
	rec = doRequest(t, testAdmin, http.MethodPut, schedulePath("Tennis Court"), string(partial), route, HandlePutSchedule)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("partial template status = %d, want 400", rec.Code)
	}
}

func TestAvailabilityEndpoint(t *testing.T) {
	setupFacilityTest(t)

	availabilityURL := func(start, end string) string {
		return fmt.Sprintf("/api/v1/facilities/%s/availability?start=%s&end=%s",
			url.PathEscape("Tennis Court"), url.QueryEscape(start), url.QueryEscape(end))
	}
	route := "GET /api/v1/facilities/{type}/availability"

	// Close Monday 22:00-24:00 first.
	weekly := booking.DefaultWeeklySchedule()
	day := weekly["monday"]
	day.ClosedHours = []int{22, 23}
	weekly["monday"] = day
	payload, _ := json.Marshal(map[string]any{"weeklySchedule": weekly})
	rec := doRequest(t, testAdmin, http.MethodPut, schedulePath("Tennis Court"), string(payload),
		"PUT /api/v1/facilities/{type}/schedule", HandlePutSchedule)
	if rec.Code != http.StatusOK {
		t.Fatalf("put schedule: %d: %s", rec.Code, rec.Body.String())
	}

	// 2026-09-07 is a Monday: 21:00-23:00 touches closed hour 22.
	rec = doRequest(t, testResident, http.MethodGet,
		availabilityURL("2026-09-07T21:00:00Z", "2026-09-07T23:00:00Z"), "", route, HandleCheckAvailability)
	if rec.Code != http.StatusOK {
		t.Fatalf("availability status = %d: %s", rec.Code, rec.Body.String())
	}
	var verdict booking.Availability
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if verdict.Available || verdict.Reason != booking.ReasonClosedHour || verdict.ClosedHour != 22 {
		t.Fatalf("verdict = %+v, want closed_hour 22", verdict)
	}

	// 20:00-22:00 ends exactly when the closure starts.
	rec = doRequest(t, testResident, http.MethodGet,
		availabilityURL("2026-09-07T20:00:00Z", "2026-09-07T22:00:00Z"), "", route, HandleCheckAvailability)
	if err := json.Unmarshal(rec.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("decode verdict: %v", err)
	}
	if !verdict.Available {
		t.Fatalf("verdict = %+v, want available", verdict)
	}

	rec = doRequest(t, testResident, http.MethodGet,
		availabilityURL("not-a-time", "2026-09-07T22:00:00Z"), "", route, HandleCheckAvailability)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad timestamp status = %d, want 400", rec.Code)
	}
}
