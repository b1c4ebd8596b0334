package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aangilam/aangilam/internal/storage/bolt"
	"github.com/aangilam/aangilam/internal/usage"
)

var testLimits = []usage.PracticeLimit{
	{PracticeType: "grammar", DailyLimitMinutes: 25, DisplayName: "Grammar Practice"},
	{PracticeType: "vocabulary", DailyLimitMinutes: 1, DisplayName: "Vocabulary Builder"},
}

func newTestServer(t *testing.T) (*Server, *usage.TestClock) {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "api.bolt"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	clock := &usage.TestClock{CurrentTime: time.Date(2025, 6, 10, 9, 0, 0, 0, time.Local)}
	tracker := usage.NewTracker(store.Usage(), testLimits, clock, zerolog.Nop())

	srv := NewServer(Config{
		ListenAddr:     "127.0.0.1:0",
		AllowedOrigins: []string{"*"},
		RetentionDays:  30,
	}, tracker, nil, zerolog.Nop())

	return srv, clock
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("{}")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv, clock := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/practice/sessions", `{"practiceType":"grammar"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Start status = %d, want 201 (body %s)", rec.Code, rec.Body.String())
	}

	var started struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&started); err != nil {
		t.Fatalf("Failed to decode start response: %v", err)
	}
	if started.SessionID == "" {
		t.Fatal("Expected a session id")
	}

	rec = doRequest(t, srv, http.MethodPut, "/api/practice/sessions/"+started.SessionID+"/duration", `{"durationSeconds":30}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Update status = %d, want 204", rec.Code)
	}

	clock.Advance(125 * time.Second)
	rec = doRequest(t, srv, http.MethodPost, "/api/practice/sessions/"+started.SessionID+"/end", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("End status = %d, want 200", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/practice/usage/today?practiceType=grammar", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Today usage status = %d, want 200", rec.Code)
	}
	var bucket struct {
		TotalDuration int64 `json:"totalDuration"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&bucket); err != nil {
		t.Fatalf("Failed to decode bucket: %v", err)
	}
	if bucket.TotalDuration != 125 {
		t.Errorf("TotalDuration = %d, want 125", bucket.TotalDuration)
	}
}

func TestStartSession_RefusedWhenLocked(t *testing.T) {
	srv, clock := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/practice/sessions", `{"practiceType":"vocabulary"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Start status = %d, want 201", rec.Code)
	}
	var started struct {
		SessionID string `json:"sessionId"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&started)

	// Exhaust the 1 minute vocabulary budget.
	clock.Advance(60 * time.Second)
	doRequest(t, srv, http.MethodPost, "/api/practice/sessions/"+started.SessionID+"/end", "")

	rec = doRequest(t, srv, http.MethodPost, "/api/practice/sessions", `{"practiceType":"vocabulary"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("Locked start status = %d, want 409", rec.Code)
	}

	// Unknown types are locked by definition.
	rec = doRequest(t, srv, http.MethodPost, "/api/practice/sessions", `{"practiceType":"karaoke"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("Unknown type start status = %d, want 409", rec.Code)
	}
}

func TestStartSession_BadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/practice/sessions", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid body status = %d, want 400", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/practice/sessions", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Missing type status = %d, want 400", rec.Code)
	}
}

func TestTodayUsage_NullWithoutBucket(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/practice/usage/today", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "null" {
		t.Errorf("Body = %q, want null when nothing is tracked", got)
	}
}

func TestPracticeStats_Endpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/practice/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", rec.Code)
	}

	var resp struct {
		Stats []usage.PracticeStats `json:"stats"`
		Count int                   `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if resp.Count != len(testLimits) {
		t.Errorf("Count = %d, want %d", resp.Count, len(testLimits))
	}
	if resp.Stats[0].PracticeType != "grammar" {
		t.Errorf("Stats order = %s first, want grammar (table order)", resp.Stats[0].PracticeType)
	}
}

func TestCORSPreflight_Answered200(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/practice/stats", nil)
	req.Header.Set("Origin", "https://aangilam.app")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Preflight status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
	if !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "POST") {
		t.Error("Expected permissive Allow-Methods header")
	}
}
