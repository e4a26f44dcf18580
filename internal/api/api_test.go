package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foodrescue-nyc/coordinator/internal/assistant"
	"github.com/foodrescue-nyc/coordinator/internal/scheduling"
	"github.com/foodrescue-nyc/coordinator/internal/storage"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type scriptedCompleter struct {
	reply string
	err   error
}

func (s *scriptedCompleter) GenerateContent(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func newTestServer(t *testing.T, completer *scriptedCompleter) (*httptest.Server, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	engine := scheduling.NewEngine(store, nil)
	reporter := scheduling.NewReporter(store)

	deps := Deps{Store: store, Engine: engine, Reporter: reporter}
	if completer != nil {
		deps.Chat = assistant.New(completer, store, engine, reporter)
	}

	srv := httptest.NewServer(NewHandler(deps))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decoding envelope: %v", err)
	}
	return resp.StatusCode, env
}

func createVolunteer(t *testing.T, base, name, email, role string) {
	t.Helper()
	code, env := doJSON(t, http.MethodPost, base+"/api/volunteers", map[string]string{
		"name": name, "email": email, "role": role,
	})
	if code != http.StatusOK || !env.Success {
		t.Fatalf("creating volunteer %s: code=%d env=%+v", email, code, env)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestCreateVolunteerValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	code, env := doJSON(t, http.MethodPost, srv.URL+"/api/volunteers", map[string]string{
		"name": "Ada", "email": "not-an-email", "role": "driver",
	})
	if code != http.StatusBadRequest || env.Success {
		t.Errorf("bad email: code=%d env=%+v", code, env)
	}

	code, env = doJSON(t, http.MethodPost, srv.URL+"/api/volunteers", map[string]string{
		"name": "Ada", "email": "ada@example.org", "role": "navigator",
	})
	if code != http.StatusBadRequest || env.Success {
		t.Errorf("bad role: code=%d env=%+v", code, env)
	}
}

func TestDuplicateEmailIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	createVolunteer(t, srv.URL, "Ada", "ada@example.org", "driver")

	code, env := doJSON(t, http.MethodPost, srv.URL+"/api/volunteers", map[string]string{
		"name": "Other Ada", "email": "ada@example.org", "role": "packer",
	})
	if code != http.StatusBadRequest || env.Success {
		t.Errorf("duplicate email: code=%d env=%+v", code, env)
	}
}

func TestSignupFlowAndStaffing(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	createVolunteer(t, srv.URL, "d1", "d1@example.org", "driver")
	createVolunteer(t, srv.URL, "d2", "d2@example.org", "driver")
	createVolunteer(t, srv.URL, "d3", "d3@example.org", "driver")

	// Date-keyed signup creates the delivery on first use.
	code, env := doJSON(t, http.MethodPost, srv.URL+"/api/deliveries/2026-10-03/signup", map[string]string{
		"email": "d1@example.org", "role": "driver",
	})
	if code != http.StatusOK || !env.Success {
		t.Fatalf("first signup: code=%d env=%+v", code, env)
	}
	var res scheduling.SignUpResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decoding signup result: %v", err)
	}
	if !res.CreatedDelivery || res.Slot != 1 {
		t.Errorf("result = %+v", res)
	}

	if code, _ := doJSON(t, http.MethodPost, srv.URL+"/api/deliveries/2026-10-03/signup", map[string]string{
		"email": "d2@example.org", "role": "driver",
	}); code != http.StatusOK {
		t.Fatalf("second signup: code=%d", code)
	}

	// Capacity failure is the caller's fault: 400, success false.
	code, env = doJSON(t, http.MethodPost, srv.URL+"/api/deliveries/2026-10-03/signup", map[string]string{
		"email": "d3@example.org", "role": "driver",
	})
	if code != http.StatusBadRequest || env.Success {
		t.Errorf("over-capacity signup: code=%d env=%+v", code, env)
	}

	code, env = doJSON(t, http.MethodGet, srv.URL+"/api/deliveries/"+res.Delivery.ID+"/staffing", nil)
	if code != http.StatusOK {
		t.Fatalf("staffing: code=%d", code)
	}
	var sum scheduling.StaffingSummary
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatalf("decoding staffing: %v", err)
	}
	if sum.Drivers != 2 || sum.NeedsMoreDrivers || !sum.NeedsMorePackers {
		t.Errorf("staffing = %+v", sum)
	}
}

func TestMissingEntityIsBadRequest(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	code, env := doJSON(t, http.MethodGet, srv.URL+"/api/deliveries/no-such-id/staffing", nil)
	if code != http.StatusBadRequest || env.Success {
		t.Errorf("unknown delivery: code=%d env=%+v", code, env)
	}

	code, env = doJSON(t, http.MethodPut, srv.URL+"/api/volunteers/ghost@example.org/phone", map[string]string{
		"phone": "555-0000",
	})
	if code != http.StatusBadRequest || env.Success {
		t.Errorf("unknown volunteer: code=%d env=%+v", code, env)
	}
}

func TestMonthValidation(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	code, env := doJSON(t, http.MethodGet, srv.URL+"/api/calendar/month/2026/13", nil)
	if code != http.StatusBadRequest || env.Success {
		t.Errorf("month 13: code=%d env=%+v", code, env)
	}
	code, _ = doJSON(t, http.MethodGet, srv.URL+"/api/calendar/month/2026/10", nil)
	if code != http.StatusOK {
		t.Errorf("month 10: code=%d", code)
	}
}

func TestRescheduleEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	createVolunteer(t, srv.URL, "Ada", "ada@example.org", "driver")

	_, env := doJSON(t, http.MethodPost, srv.URL+"/api/deliveries/2026-06-15/signup", map[string]string{
		"email": "ada@example.org", "role": "driver",
	})
	var res scheduling.SignUpResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decoding signup result: %v", err)
	}

	code, env := doJSON(t, http.MethodPut, srv.URL+"/api/deliveries/"+res.Delivery.ID+"/reschedule", map[string]string{
		"new_date": "2026-06-22", "reason": "heat wave",
	})
	if code != http.StatusOK || !env.Success {
		t.Fatalf("reschedule: code=%d env=%+v", code, env)
	}

	// The assignment survived the move.
	code, env = doJSON(t, http.MethodGet, srv.URL+"/api/deliveries/"+res.Delivery.ID+"/staffing", nil)
	if code != http.StatusOK {
		t.Fatalf("staffing: code=%d", code)
	}
	var sum scheduling.StaffingSummary
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatalf("decoding staffing: %v", err)
	}
	if sum.Date != "2026-06-22" || sum.Drivers != 1 {
		t.Errorf("staffing after reschedule = %+v", sum)
	}
}

func TestChatEndpoint(t *testing.T) {
	completer := &scriptedCompleter{
		reply: "You're signed up!\nFUNCTION_CALL: signupForEvent(\"ada@example.org\", \"2026-10-03\", \"packer\")",
	}
	srv, _ := newTestServer(t, completer)
	createVolunteer(t, srv.URL, "Ada", "ada@example.org", "packer")

	code, env := doJSON(t, http.MethodPost, srv.URL+"/api/chat", map[string]string{
		"message": "sign me up to pack on oct 3", "user_email": "ada@example.org",
	})
	if code != http.StatusOK || !env.Success {
		t.Fatalf("chat: code=%d env=%+v", code, env)
	}
	var reply assistant.Reply
	if err := json.Unmarshal(env.Data, &reply); err != nil {
		t.Fatalf("decoding reply: %v", err)
	}
	if reply.Action != "signupForEvent" || reply.ActionError != "" {
		t.Errorf("reply = %+v", reply)
	}
}

func TestChatNotConfigured(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	code, env := doJSON(t, http.MethodPost, srv.URL+"/api/chat", map[string]string{
		"message": "hi", "user_email": "x@example.org",
	})
	if code != http.StatusBadRequest || env.Success {
		t.Errorf("chat without completer: code=%d env=%+v", code, env)
	}
}

func TestChatCompleterFailureIsBadGateway(t *testing.T) {
	completer := &scriptedCompleter{err: context.DeadlineExceeded}
	srv, _ := newTestServer(t, completer)

	code, env := doJSON(t, http.MethodPost, srv.URL+"/api/chat", map[string]string{
		"message": "hi", "user_email": "x@example.org",
	})
	if code != http.StatusBadGateway || env.Success {
		t.Errorf("chat with failing completer: code=%d env=%+v", code, env)
	}
}

func TestDBState(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	createVolunteer(t, srv.URL, "Ada", "ada@example.org", "driver")

	code, env := doJSON(t, http.MethodGet, srv.URL+"/api/db-state", nil)
	if code != http.StatusOK || !env.Success {
		t.Fatalf("db-state: code=%d env=%+v", code, env)
	}
	var state dbState
	if err := json.Unmarshal(env.Data, &state); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if len(state.Volunteers) != 1 {
		t.Errorf("state = %+v", state)
	}
}

func TestBearerAuth(t *testing.T) {
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening test store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	deps := Deps{
		Store:    store,
		Engine:   scheduling.NewEngine(store, nil),
		Reporter: scheduling.NewReporter(store),
		Token:    "secret",
	}
	srv := httptest.NewServer(NewHandler(deps))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/api/volunteers")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no token: status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/volunteers", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET with token: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("with token: status = %d", resp.StatusCode)
	}

	// Health and metrics stay open.
	for _, path := range []string{"/healthz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestOptimalDatesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	code, env := doJSON(t, http.MethodGet, srv.URL+"/api/calendar/optimal-dates", nil)
	if code != http.StatusOK || !env.Success {
		t.Fatalf("optimal-dates: code=%d env=%+v", code, env)
	}
	var dates []scheduling.OptimalDate
	if err := json.Unmarshal(env.Data, &dates); err != nil {
		t.Fatalf("decoding dates: %v", err)
	}
	for _, d := range dates {
		if d.DayOfWeek != "Saturday" && d.DayOfWeek != "Sunday" {
			t.Errorf("%s is a %s", d.Date, d.DayOfWeek)
		}
	}
	if len(dates) > 10 {
		t.Errorf("%d suggestions, want at most 10", len(dates))
	}
}

func TestOptimalDatesEndpointHonorsParams(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	// Book the coming Saturday solid at the default cap of 2 per day.
	saturday := time.Now().UTC()
	for saturday.Weekday() != time.Saturday {
		saturday = saturday.AddDate(0, 0, 1)
	}
	date := saturday.Format("2006-01-02")
	for i := 0; i < 2; i++ {
		code, env := doJSON(t, http.MethodPost, srv.URL+"/api/deliveries", map[string]any{"date": date})
		if code != http.StatusOK || !env.Success {
			t.Fatalf("create delivery %d: code=%d env=%+v", i, code, env)
		}
	}

	suggested := func(url string) map[string]int {
		t.Helper()
		code, env := doJSON(t, http.MethodGet, url, nil)
		if code != http.StatusOK || !env.Success {
			t.Fatalf("GET %s: code=%d env=%+v", url, code, env)
		}
		var dates []scheduling.OptimalDate
		if err := json.Unmarshal(env.Data, &dates); err != nil {
			t.Fatalf("decoding dates: %v", err)
		}
		byDate := make(map[string]int, len(dates))
		for _, d := range dates {
			byDate[d.Date] = d.ExistingDeliveries
		}
		return byDate
	}

	if byDate := suggested(srv.URL + "/api/calendar/optimal-dates"); len(byDate) == 0 {
		t.Fatal("expected open weekend suggestions")
	} else if _, ok := byDate[date]; ok {
		t.Errorf("%s has 2 deliveries and should not be suggested at the default cap", date)
	}

	relaxed := suggested(srv.URL + "/api/calendar/optimal-dates?maxPerDay=5")
	if n, ok := relaxed[date]; !ok || n != 2 {
		t.Errorf("maxPerDay=5 suggestions = %v, want %s with 2 existing", relaxed, date)
	}

	// A one-day window cannot reach a weekend unless today is one.
	narrow := suggested(srv.URL + "/api/calendar/optimal-dates?days=1")
	now := time.Now().UTC()
	if now.Weekday() != time.Saturday && now.Weekday() != time.Sunday && now.AddDate(0, 0, 1).Weekday() != time.Saturday && now.AddDate(0, 0, 1).Weekday() != time.Sunday {
		if len(narrow) != 0 {
			t.Errorf("days=1 suggestions = %v, want none midweek", narrow)
		}
	}
}

func TestOutreachRequiresContactEmail(t *testing.T) {
	srv, store := newTestServer(t, nil)

	code, env := doJSON(t, http.MethodPost, srv.URL+"/api/organizations", map[string]any{
		"name": "Corner Grocery", "address": "5 Main St",
		"contact_person": "Sam", "category": "store",
	})
	if code != http.StatusOK || !env.Success {
		t.Fatalf("create org: code=%d env=%+v", code, env)
	}
	var org storage.Organization
	if err := json.Unmarshal(env.Data, &org); err != nil {
		t.Fatalf("decoding org: %v", err)
	}

	code, env = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/organizations/%s/outreach", srv.URL, org.ID), nil)
	if code != http.StatusBadRequest || env.Success {
		t.Errorf("outreach without contact email: code=%d env=%+v", code, env)
	}
	_ = store
}
