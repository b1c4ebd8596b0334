package usage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aangilam/aangilam/internal/storage"
	"github.com/aangilam/aangilam/internal/storage/bolt"
)

var testLimits = []PracticeLimit{
	{PracticeType: "grammar", DailyLimitMinutes: 25, DisplayName: "Grammar Practice"},
	{PracticeType: "interview", DailyLimitMinutes: 30, DisplayName: "Interview Simulator"},
	{PracticeType: "vocabulary", DailyLimitMinutes: 2, DisplayName: "Vocabulary Builder"},
}

func openTestStore(t *testing.T) storage.Store {
	t.Helper()

	store, err := bolt.Open(filepath.Join(t.TempDir(), "usage.bolt"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func newTestTracker(t *testing.T) (*Tracker, *TestClock) {
	t.Helper()

	clock := &TestClock{CurrentTime: time.Date(2025, 6, 10, 9, 0, 0, 0, time.Local)}
	tracker := NewTracker(openTestStore(t).Usage(), testLimits, clock, zerolog.Nop())
	return tracker, clock
}

func TestStartSession_CreatesTodayBucket(t *testing.T) {
	tracker, clock := newTestTracker(t)

	id := tracker.StartSession("grammar")
	if id == "" {
		t.Fatal("StartSession returned empty id")
	}

	bucket := tracker.GetTodayUsage()
	if bucket == nil {
		t.Fatal("Expected bucket for today")
	}
	if bucket.Date != clock.Now().Format("2006-01-02") {
		t.Errorf("Bucket date = %s, want %s", bucket.Date, clock.Now().Format("2006-01-02"))
	}
	if len(bucket.Sessions) != 1 {
		t.Fatalf("Expected 1 session, got %d", len(bucket.Sessions))
	}

	session := bucket.Sessions[0]
	if session.ID != id {
		t.Errorf("Session id = %s, want %s", session.ID, id)
	}
	if session.Completed {
		t.Error("New session must start incomplete")
	}
	if session.StartTime != clock.Now().UnixMilli() {
		t.Errorf("StartTime = %d, want %d", session.StartTime, clock.Now().UnixMilli())
	}
	if bucket.TotalDuration != 0 {
		t.Errorf("TotalDuration = %d before any completion, want 0", bucket.TotalDuration)
	}
}

func TestStartSession_IDsAreUnique(t *testing.T) {
	tracker, _ := newTestTracker(t)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := tracker.StartSession("grammar")
		if seen[id] {
			t.Fatalf("Duplicate session id: %s", id)
		}
		seen[id] = true
	}
}

func TestEndSession_FinalizesDurationAndTotal(t *testing.T) {
	tracker, clock := newTestTracker(t)

	id := tracker.StartSession("grammar")
	clock.Advance(125 * time.Second)
	tracker.EndSession(id)

	bucket := tracker.GetTodayUsage()
	session := bucket.Sessions[0]
	if !session.Completed {
		t.Fatal("Session not completed")
	}
	if session.Duration != 125 {
		t.Errorf("Duration = %d, want 125", session.Duration)
	}
	if session.EndTime != clock.Now().UnixMilli() {
		t.Errorf("EndTime = %d, want %d", session.EndTime, clock.Now().UnixMilli())
	}
	if bucket.TotalDuration != 125 {
		t.Errorf("TotalDuration = %d, want 125", bucket.TotalDuration)
	}

	// floor(125/60) = 2 used, 25-2 = 23 remaining
	if got := tracker.GetUsedTime("grammar"); got != 2 {
		t.Errorf("GetUsedTime = %d, want 2", got)
	}
	if got := tracker.GetRemainingTime("grammar"); got != 23 {
		t.Errorf("GetRemainingTime = %d, want 23", got)
	}
}

func TestEndSession_Idempotent(t *testing.T) {
	tracker, clock := newTestTracker(t)

	id := tracker.StartSession("grammar")
	clock.Advance(100 * time.Second)
	tracker.EndSession(id)

	first := tracker.GetTodayUsage().TotalDuration

	clock.Advance(500 * time.Second)
	tracker.EndSession(id)

	bucket := tracker.GetTodayUsage()
	if bucket.TotalDuration != first {
		t.Errorf("Second EndSession changed total: %d -> %d", first, bucket.TotalDuration)
	}
	if bucket.Sessions[0].Duration != 100 {
		t.Errorf("Second EndSession changed duration: got %d, want 100", bucket.Sessions[0].Duration)
	}
}

func TestEndSession_UnknownIDIsSilent(t *testing.T) {
	tracker, _ := newTestTracker(t)

	// No bucket for today at all.
	tracker.EndSession("grammar-123-deadbeef")

	tracker.StartSession("grammar")
	// Bucket exists but id does not.
	tracker.EndSession("nope")

	if got := tracker.GetTodayUsage().TotalDuration; got != 0 {
		t.Errorf("TotalDuration = %d, want 0", got)
	}
}

func TestEndSession_AfterMidnightIsSilent(t *testing.T) {
	tracker, clock := newTestTracker(t)

	clock.CurrentTime = time.Date(2025, 6, 10, 23, 58, 0, 0, time.Local)
	id := tracker.StartSession("grammar")

	// The lookup is keyed on the new "today", so the session stays open
	// under its start day forever.
	clock.Advance(5 * time.Minute)
	tracker.EndSession(id)

	clock.CurrentTime = time.Date(2025, 6, 10, 23, 59, 0, 0, time.Local)
	bucket := tracker.GetTodayUsage()
	if bucket == nil {
		t.Fatal("Expected start-day bucket to survive")
	}
	if bucket.Sessions[0].Completed {
		t.Error("Cross-midnight session must remain incomplete")
	}
	if bucket.TotalDuration != 0 {
		t.Errorf("TotalDuration = %d, want 0", bucket.TotalDuration)
	}
}

func TestUpdateSessionDuration_NeverTouchesTotal(t *testing.T) {
	tracker, clock := newTestTracker(t)

	id := tracker.StartSession("grammar")
	clock.Advance(30 * time.Second)
	tracker.UpdateSessionDuration(id, 30)

	bucket := tracker.GetTodayUsage()
	if bucket.Sessions[0].Duration != 30 {
		t.Errorf("Live duration = %d, want 30", bucket.Sessions[0].Duration)
	}
	if bucket.Sessions[0].Completed {
		t.Error("UpdateSessionDuration must not complete the session")
	}
	if bucket.TotalDuration != 0 {
		t.Errorf("TotalDuration = %d, want 0 while session is open", bucket.TotalDuration)
	}
	if got := tracker.GetUsedTime("grammar"); got != 0 {
		t.Errorf("GetUsedTime = %d, want 0 for in-progress time", got)
	}

	// Unknown id and completed sessions are silently skipped.
	tracker.UpdateSessionDuration("missing", 999)
	tracker.EndSession(id)
	tracker.UpdateSessionDuration(id, 999)
	if got := tracker.GetTodayUsage().Sessions[0].Duration; got != 30 {
		t.Errorf("Duration after completion = %d, want 30", got)
	}
}

func TestGetTodayUsage_NilWithoutBucket(t *testing.T) {
	tracker, _ := newTestTracker(t)

	if bucket := tracker.GetTodayUsage(); bucket != nil {
		t.Errorf("Expected nil bucket, got %+v", bucket)
	}
	if bucket := tracker.GetTodayUsageByType("grammar"); bucket != nil {
		t.Errorf("Expected nil filtered bucket, got %+v", bucket)
	}
}

func TestGetTodayUsageByType_FiltersAndSums(t *testing.T) {
	tracker, clock := newTestTracker(t)

	grammarID := tracker.StartSession("grammar")
	interviewID := tracker.StartSession("interview")
	clock.Advance(600 * time.Second)
	tracker.EndSession(grammarID)
	tracker.EndSession(interviewID)

	openID := tracker.StartSession("grammar")
	tracker.UpdateSessionDuration(openID, 45)

	filtered := tracker.GetTodayUsageByType("grammar")
	if len(filtered.Sessions) != 2 {
		t.Fatalf("Expected 2 grammar sessions, got %d", len(filtered.Sessions))
	}
	// Only the completed grammar session counts; the open one does not.
	if filtered.TotalDuration != 600 {
		t.Errorf("Filtered TotalDuration = %d, want 600", filtered.TotalDuration)
	}

	whole := tracker.GetTodayUsage()
	if whole.TotalDuration != 1200 {
		t.Errorf("Whole-bucket TotalDuration = %d, want 1200", whole.TotalDuration)
	}
}

func TestDayIsolation(t *testing.T) {
	tracker, clock := newTestTracker(t)

	id := tracker.StartSession("grammar")
	clock.Advance(10 * time.Minute)
	tracker.EndSession(id)

	if got := tracker.GetUsedTime("grammar"); got != 10 {
		t.Fatalf("GetUsedTime = %d, want 10", got)
	}

	// Next day: yesterday's usage is invisible to "today" queries.
	clock.CurrentTime = clock.CurrentTime.AddDate(0, 0, 1)

	if bucket := tracker.GetTodayUsage(); bucket != nil {
		t.Errorf("Expected nil bucket on the next day, got %+v", bucket)
	}
	if got := tracker.GetUsedTime("grammar"); got != 0 {
		t.Errorf("GetUsedTime on next day = %d, want 0", got)
	}
	if got := tracker.GetRemainingTime("grammar"); got != 25 {
		t.Errorf("GetRemainingTime on next day = %d, want 25", got)
	}
}

func TestLockBoundary_ExactLimitLocks(t *testing.T) {
	tracker, clock := newTestTracker(t)

	// vocabulary limit is 2 minutes; land exactly on it.
	id := tracker.StartSession("vocabulary")
	clock.Advance(120 * time.Second)
	tracker.EndSession(id)

	if got := tracker.GetUsedTime("vocabulary"); got != 2 {
		t.Errorf("GetUsedTime = %d, want 2", got)
	}
	if got := tracker.GetRemainingTime("vocabulary"); got != 0 {
		t.Errorf("GetRemainingTime = %d, want 0", got)
	}
	if !tracker.IsSessionLocked("vocabulary") {
		t.Error("Exactly-on-limit usage must lock")
	}
}

func TestUnknownPracticeType_AlwaysLocked(t *testing.T) {
	tracker, _ := newTestTracker(t)

	if got := tracker.GetRemainingTime("karaoke"); got != 0 {
		t.Errorf("GetRemainingTime = %d, want 0 for unknown type", got)
	}
	if !tracker.IsSessionLocked("karaoke") {
		t.Error("Unknown type must report locked")
	}

	// Unknown types are still tracked.
	id := tracker.StartSession("karaoke")
	tracker.EndSession(id)
	if bucket := tracker.GetTodayUsageByType("karaoke"); len(bucket.Sessions) != 1 {
		t.Errorf("Expected unknown-type session to be recorded")
	}
	if !tracker.IsSessionLocked("karaoke") {
		t.Error("Unknown type must stay locked regardless of usage")
	}
}

func TestMultipleSessionsAccumulate(t *testing.T) {
	tracker, clock := newTestTracker(t)

	first := tracker.StartSession("interview")
	clock.Advance(600 * time.Second)
	tracker.EndSession(first)

	second := tracker.StartSession("interview")
	clock.Advance(900 * time.Second)
	tracker.EndSession(second)

	bucket := tracker.GetTodayUsageByType("interview")
	if bucket.TotalDuration != 1500 {
		t.Errorf("TotalDuration = %d, want 1500", bucket.TotalDuration)
	}
	if got := tracker.GetUsedTime("interview"); got != 25 {
		t.Errorf("GetUsedTime = %d, want 25", got)
	}
	if got := tracker.GetRemainingTime("interview"); got != 5 {
		t.Errorf("GetRemainingTime = %d, want 5", got)
	}
}

func TestGetAllPracticeStats_TableOrderAndPercentage(t *testing.T) {
	tracker, clock := newTestTracker(t)

	id := tracker.StartSession("vocabulary")
	clock.Advance(10 * time.Minute) // way past the 2 minute limit
	tracker.EndSession(id)

	stats := tracker.GetAllPracticeStats()
	if len(stats) != len(testLimits) {
		t.Fatalf("Expected %d entries, got %d", len(testLimits), len(stats))
	}
	for i, limit := range testLimits {
		if stats[i].PracticeType != limit.PracticeType {
			t.Errorf("stats[%d] = %s, want %s (configuration order)", i, stats[i].PracticeType, limit.PracticeType)
		}
	}

	var vocab PracticeStats
	for _, s := range stats {
		if s.PracticeType == "vocabulary" {
			vocab = s
		}
	}
	if vocab.UsedMinutes != 10 {
		t.Errorf("UsedMinutes = %d, want 10", vocab.UsedMinutes)
	}
	if vocab.RemainingMinutes != 0 {
		t.Errorf("RemainingMinutes = %d, want 0", vocab.RemainingMinutes)
	}
	if !vocab.Locked {
		t.Error("Expected vocabulary to be locked")
	}
	if vocab.UsagePercentage != 100 {
		t.Errorf("UsagePercentage = %d, want capped 100", vocab.UsagePercentage)
	}

	var grammar PracticeStats
	for _, s := range stats {
		if s.PracticeType == "grammar" {
			grammar = s
		}
	}
	if grammar.UsedMinutes != 0 || grammar.RemainingMinutes != 25 || grammar.Locked {
		t.Errorf("Unexpected untouched-type stats: %+v", grammar)
	}
}

func TestCleanOldData_RetentionBoundary(t *testing.T) {
	store := openTestStore(t)
	clock := &TestClock{CurrentTime: time.Date(2025, 6, 10, 12, 0, 0, 0, time.Local)}
	tracker := NewTracker(store.Usage(), testLimits, clock, zerolog.Nop())

	// Buckets spanning 40 days, one per day ending today.
	data := make(storage.UsageData)
	for i := 0; i < 40; i++ {
		date := clock.CurrentTime.AddDate(0, 0, -i).Format("2006-01-02")
		data[date] = &storage.DailyUsage{Date: date, Sessions: []*storage.PracticeSession{}}
	}
	if err := store.Usage().SaveUsage(context.Background(), data); err != nil {
		t.Fatalf("seed SaveUsage failed: %v", err)
	}

	tracker.CleanOldData(30)

	kept, err := store.Usage().LoadUsage(context.Background())
	if err != nil {
		t.Fatalf("LoadUsage failed: %v", err)
	}
	if len(kept) != 31 {
		t.Errorf("Expected 31 surviving buckets (today back to cutoff inclusive), got %d", len(kept))
	}

	cutoff := clock.CurrentTime.AddDate(0, 0, -30).Format("2006-01-02")
	if _, ok := kept[cutoff]; !ok {
		t.Errorf("Exact boundary date %s must be retained", cutoff)
	}
	older := clock.CurrentTime.AddDate(0, 0, -31).Format("2006-01-02")
	if _, ok := kept[older]; ok {
		t.Errorf("Date %s one day past the cutoff must be purged", older)
	}
}

// failingStore simulates a broken persistence layer. Every failure must be
// absorbed by the tracker: reads degrade to an empty store, writes are
// dropped, nothing panics or surfaces to the caller. Like the real backends
// it hands out a fresh deserialized copy on every load.
type failingStore struct {
	loadErr error
	saveErr error
	blob    []byte
}

func (f *failingStore) LoadUsage(ctx context.Context) (storage.UsageData, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	data := make(storage.UsageData)
	if f.blob == nil {
		return data, nil
	}
	if err := json.Unmarshal(f.blob, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (f *failingStore) SaveUsage(ctx context.Context, data storage.UsageData) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	blob, err := json.Marshal(data)
	if err != nil {
		return err
	}
	f.blob = blob
	return nil
}

func TestStorageFailures_DegradeSilently(t *testing.T) {
	clock := &TestClock{CurrentTime: time.Date(2025, 6, 10, 9, 0, 0, 0, time.Local)}

	t.Run("read failure behaves like empty store", func(t *testing.T) {
		store := &failingStore{loadErr: errors.New("corrupt blob")}
		tracker := NewTracker(store, testLimits, clock, zerolog.Nop())

		if bucket := tracker.GetTodayUsage(); bucket != nil {
			t.Errorf("Expected nil bucket on read failure, got %+v", bucket)
		}
		if got := tracker.GetUsedTime("grammar"); got != 0 {
			t.Errorf("GetUsedTime = %d, want 0", got)
		}
		if id := tracker.StartSession("grammar"); id == "" {
			t.Error("StartSession must still return an id")
		}
	})

	t.Run("write failure drops the write", func(t *testing.T) {
		store := &failingStore{}
		tracker := NewTracker(store, testLimits, clock, zerolog.Nop())

		id := tracker.StartSession("grammar")

		store.saveErr = errors.New("quota exceeded")
		clock.Advance(300 * time.Second)
		tracker.EndSession(id) // dropped

		store.saveErr = nil
		if got := tracker.GetUsedTime("grammar"); got != 0 {
			t.Errorf("Dropped write must leave last-known-good state, used = %d", got)
		}
		bucket := tracker.GetTodayUsage()
		if bucket == nil || bucket.Sessions[0].Completed {
			t.Error("Session must still be open in the stored state")
		}
	})
}
