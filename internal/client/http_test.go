package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/skariga/absenku/internal/model"
)

// testHandler captures the incoming request details and returns a canned response.
type testHandler struct {
	// captured from the request
	method      string
	path        string
	rawPath     string // URL-encoded path (for testing PathEscape)
	query       string
	body        string
	contentType string
	auth        string

	// canned response
	statusCode   int
	responseBody string
}

func (h *testHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.method = r.Method
	h.path = r.URL.Path
	h.rawPath = r.URL.RawPath
	h.query = r.URL.RawQuery
	h.contentType = r.Header.Get("Content-Type")
	h.auth = r.Header.Get("Authorization")
	if r.Body != nil {
		data, _ := io.ReadAll(r.Body)
		h.body = string(data)
	}

	w.Header().Set("Content-Type", "application/json")
	if h.statusCode != 0 {
		w.WriteHeader(h.statusCode)
	} else {
		w.WriteHeader(http.StatusOK)
	}
	if h.responseBody != "" {
		_, _ = w.Write([]byte(h.responseBody))
	}
}

// newTestClient creates an HTTPClient pointed at a test server with the given handler.
func newTestClient(t *testing.T, h http.Handler) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "")
}

// --- SendLocation ---

func TestHTTPClient_SendLocation(t *testing.T) {
	h := &testHandler{
		responseBody: `{
			"outcome": "ACCEPTED",
			"direction": "CHECK_IN",
			"record_id": "att-1",
			"record": {"id": "att-1", "user_id": "42", "date": "2026-03-02", "status": "VALIDATING", "lateness_minutes": 5},
			"distance_m": 12.5,
			"remaining_seconds": 900,
			"notification": "Check-in started."
		}`,
	}
	c := newTestClient(t, h)

	acc := 12.0
	res, err := c.SendLocation(context.Background(), "42", &LocationRequest{
		Latitude:  -6.2,
		Longitude: 106.8,
		Accuracy:  &acc,
		Live:      true,
	})
	if err != nil {
		t.Fatalf("SendLocation() error = %v", err)
	}

	if h.method != http.MethodPost {
		t.Errorf("method = %q, want POST", h.method)
	}
	if h.path != "/v1/users/42/location" {
		t.Errorf("path = %q", h.path)
	}
	if h.contentType != "application/json" {
		t.Errorf("content-type = %q, want application/json", h.contentType)
	}

	var reqBody map[string]any
	if err := json.Unmarshal([]byte(h.body), &reqBody); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if reqBody["latitude"] != -6.2 || reqBody["longitude"] != 106.8 {
		t.Errorf("request body coords = %v,%v", reqBody["latitude"], reqBody["longitude"])
	}
	if reqBody["accuracy"] != 12.0 {
		t.Errorf("request body accuracy = %v, want 12", reqBody["accuracy"])
	}
	if reqBody["live"] != true || reqBody["forwarded"] != false {
		t.Errorf("request body flags = live:%v forwarded:%v", reqBody["live"], reqBody["forwarded"])
	}

	if res.Outcome != model.OutcomeAccepted {
		t.Errorf("Outcome = %q", res.Outcome)
	}
	if res.Direction != model.CheckIn {
		t.Errorf("Direction = %q", res.Direction)
	}
	if res.Record == nil || res.Record.LatenessMinutes != 5 || res.Record.Status != model.StatusValidating {
		t.Errorf("Record = %+v", res.Record)
	}
	if res.RemainingSeconds != 900 || res.Distance != 12.5 {
		t.Errorf("remaining=%d distance=%v", res.RemainingSeconds, res.Distance)
	}
}

func TestHTTPClient_SendLocation_OmitsAccuracy(t *testing.T) {
	h := &testHandler{responseBody: `{"outcome": "OUT_OF_RADIUS", "notification": "too far"}`}
	c := newTestClient(t, h)

	res, err := c.SendLocation(context.Background(), "42", &LocationRequest{Latitude: 1, Longitude: 2})
	if err != nil {
		t.Fatalf("SendLocation() error = %v", err)
	}
	var reqBody map[string]any
	if err := json.Unmarshal([]byte(h.body), &reqBody); err != nil {
		t.Fatalf("unmarshaling request body: %v", err)
	}
	if _, ok := reqBody["accuracy"]; ok {
		t.Error("request body should not contain 'accuracy' when nil")
	}
	if res.Outcome != model.OutcomeOutOfRadius || res.Record != nil {
		t.Errorf("res = %+v", res)
	}
}

func TestHTTPClient_PathEscape(t *testing.T) {
	h := &testHandler{responseBody: `{"records": []}`}
	c := newTestClient(t, h)

	if _, err := c.History(context.Background(), "a/b", 0); err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if h.rawPath != "/v1/users/a%2Fb/attendance" {
		t.Errorf("rawPath = %q", h.rawPath)
	}
}

// --- SetIntent ---

func TestHTTPClient_SetIntent(t *testing.T) {
	h := &testHandler{responseBody: `{"direction": "CHECK_OUT", "notification": "Send your live location to check out."}`}
	c := newTestClient(t, h)

	text, err := c.SetIntent(context.Background(), "42", model.CheckOut)
	if err != nil {
		t.Fatalf("SetIntent() error = %v", err)
	}
	if h.path != "/v1/users/42/intent" || h.method != http.MethodPost {
		t.Errorf("%s %s", h.method, h.path)
	}
	if h.body != `{"direction":"CHECK_OUT"}` {
		t.Errorf("body = %s", h.body)
	}
	if text != "Send your live location to check out." {
		t.Errorf("text = %q", text)
	}
}

// --- ListRecords ---

func TestHTTPClient_ListRecords(t *testing.T) {
	tests := []struct {
		name   string
		filter model.RecordFilter
		query  string
	}{
		{"empty", model.RecordFilter{}, ""},
		{"user", model.RecordFilter{UserID: "42"}, "user_id=42"},
		{
			"full",
			model.RecordFilter{
				UserID: "42",
				From:   "2026-03-01",
				To:     "2026-03-31",
				Status: []model.Status{model.StatusValid, model.StatusInvalidRadius},
				Sort:   "-date",
				Limit:  10,
				Offset: 20,
			},
			"from=2026-03-01&limit=10&offset=20&sort=-date&status=VALID%2CINVALID_RADIUS&to=2026-03-31&user_id=42",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &testHandler{responseBody: `{"records": [{"id": "att-1", "user_id": "42", "date": "2026-03-02", "status": "VALID"}], "total": 7}`}
			c := newTestClient(t, h)

			resp, err := c.ListRecords(context.Background(), tt.filter)
			if err != nil {
				t.Fatalf("ListRecords() error = %v", err)
			}
			if h.path != "/v1/attendance" {
				t.Errorf("path = %q", h.path)
			}
			if h.query != tt.query {
				t.Errorf("query = %q, want %q", h.query, tt.query)
			}
			if resp.Total != 7 || len(resp.Records) != 1 || resp.Records[0].Status != model.StatusValid {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

// --- GetRecord / GetRecordEvents / History ---

func TestHTTPClient_GetRecord(t *testing.T) {
	h := &testHandler{responseBody: `{"id": "att-1", "user_id": "42", "date": "2026-03-02", "check_in_at": "2026-03-02T00:05:00Z", "status": "VALID"}`}
	c := newTestClient(t, h)

	rec, err := c.GetRecord(context.Background(), "att-1")
	if err != nil {
		t.Fatalf("GetRecord() error = %v", err)
	}
	if h.path != "/v1/attendance/att-1" {
		t.Errorf("path = %q", h.path)
	}
	if !rec.CheckInAt.Equal(time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC)) {
		t.Errorf("CheckInAt = %v", rec.CheckInAt)
	}
}

func TestHTTPClient_GetRecordEvents(t *testing.T) {
	h := &testHandler{responseBody: `{"events": [{"id": 1, "topic": "absenku.attendance.created", "record_id": "att-1", "payload": {}}]}`}
	c := newTestClient(t, h)

	evts, err := c.GetRecordEvents(context.Background(), "att-1")
	if err != nil {
		t.Fatalf("GetRecordEvents() error = %v", err)
	}
	if h.path != "/v1/attendance/att-1/events" {
		t.Errorf("path = %q", h.path)
	}
	if len(evts) != 1 || evts[0].Topic != "absenku.attendance.created" {
		t.Errorf("evts = %+v", evts)
	}
}

func TestHTTPClient_History(t *testing.T) {
	h := &testHandler{responseBody: `{"records": [{"id": "att-2"}, {"id": "att-1"}]}`}
	c := newTestClient(t, h)

	recs, err := c.History(context.Background(), "42", 5)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if h.path != "/v1/users/42/attendance" || h.query != "limit=5" {
		t.Errorf("path = %q query = %q", h.path, h.query)
	}
	if len(recs) != 2 || recs[0].ID != "att-2" {
		t.Errorf("recs = %+v", recs)
	}
}

// --- Sessions ---

func TestHTTPClient_Sessions(t *testing.T) {
	h := &testHandler{responseBody: `{"sessions": [{"user_id": "42", "record_id": "att-1", "direction": "CHECK_IN", "status": "VALIDATING", "ping_count": 3, "elapsed_secs": 120, "idle_secs": 15}]}`}
	c := newTestClient(t, h)

	sess, err := c.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if h.path != "/v1/sessions" {
		t.Errorf("path = %q", h.path)
	}
	if len(sess) != 1 || sess[0].PingCount != 3 || sess[0].IdleSecs != 15 || sess[0].Direction != model.CheckIn {
		t.Errorf("sess = %+v", sess)
	}
}

// --- Health ---

func TestHTTPClient_Health(t *testing.T) {
	h := &testHandler{responseBody: `{"status": "ok"}`}
	c := newTestClient(t, h)

	status, err := c.Health(context.Background())
	if err != nil {
		t.Fatalf("Health() error = %v", err)
	}
	if status != "ok" {
		t.Errorf("status = %q, want ok", status)
	}
}

// --- Errors and auth ---

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantMsg    string
	}{
		{"json error", http.StatusNotFound, `{"error": "not found"}`, "not found"},
		{"plain body", http.StatusInternalServerError, "boom", "boom"},
		{"validation", http.StatusBadRequest, `{"error": "latitude is required"}`, "latitude is required"},
		{"unavailable", http.StatusServiceUnavailable, `{"status": "unavailable", "error": "db down"}`, "db down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &testHandler{statusCode: tt.statusCode, responseBody: tt.body}
			c := newTestClient(t, h)

			_, err := c.GetRecord(context.Background(), "att-1")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *APIError", err)
			}
			if apiErr.StatusCode != tt.statusCode || apiErr.Message != tt.wantMsg {
				t.Errorf("apiErr = %+v", apiErr)
			}
		})
	}
}

func TestHTTPClient_BadResponseJSON(t *testing.T) {
	h := &testHandler{responseBody: `not json`}
	c := newTestClient(t, h)

	if _, err := c.GetRecord(context.Background(), "att-1"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestHTTPClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewHTTPClient(url, "")
	if _, err := c.Health(context.Background()); err == nil {
		t.Fatal("expected connection error")
	}
}

func TestHTTPClient_Token(t *testing.T) {
	h := &testHandler{responseBody: `{"status": "ok"}`}
	srv := httptest.NewServer(h)
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "secret")
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.auth != "Bearer secret" {
		t.Errorf("Authorization = %q", h.auth)
	}

	h.auth = ""
	c = NewHTTPClient(srv.URL, "")
	if _, err := c.Health(context.Background()); err != nil {
		t.Fatal(err)
	}
	if h.auth != "" {
		t.Errorf("Authorization = %q, want empty", h.auth)
	}
}
