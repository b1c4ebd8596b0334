package usage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/aangilam/aangilam/internal/metrics"
	"github.com/aangilam/aangilam/internal/storage"
	"github.com/rs/zerolog"
)

const dateLayout = "2006-01-02"

// PracticeStats is the per-type daily summary returned by
// GetAllPracticeStats, one entry per configured limit, in table order.
type PracticeStats struct {
	PracticeType     string `json:"practiceType"`
	DisplayName      string `json:"displayName"`
	UsedMinutes      int    `json:"usedMinutes"`
	LimitMinutes     int    `json:"limitMinutes"`
	RemainingMinutes int    `json:"remainingMinutes"`
	Locked           bool   `json:"isLocked"`
	UsagePercentage  int    `json:"usagePercentage"`
}

// Tracker owns all session and quota state. Every operation is a scoped
// read-modify-write over the whole persisted blob: load, mutate in memory,
// save back. Storage failures never propagate to callers; a failed read
// behaves like an empty store and a failed write is dropped, leaving the
// blob at its last-known-good state.
type Tracker struct {
	store  storage.UsageStore
	limits []PracticeLimit
	byType map[string]PracticeLimit
	clock  Clock
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewTracker creates a usage tracker over the given store and limit table.
// A nil clock defaults to system time.
func NewTracker(store storage.UsageStore, limits []PracticeLimit, clock Clock, logger zerolog.Logger) *Tracker {
	if clock == nil {
		clock = RealClock{}
	}

	byType := make(map[string]PracticeLimit, len(limits))
	for _, limit := range limits {
		byType[limit.PracticeType] = limit
	}

	return &Tracker{
		store:  store,
		limits: limits,
		byType: byType,
		clock:  clock,
		logger: logger.With().Str("component", "usage-tracker").Logger(),
	}
}

// StartSession opens a new session for the given practice type and returns
// its id. Unknown practice types are tracked too; they simply carry a zero
// effective limit. Today's bucket is created if absent.
func (t *Tracker) StartSession(practiceType string) string {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	today := now.Format(dateLayout)
	data := t.load()

	bucket, ok := data[today]
	if !ok {
		bucket = &storage.DailyUsage{
			Date:     today,
			Sessions: []*storage.PracticeSession{},
		}
		data[today] = bucket
	}

	session := &storage.PracticeSession{
		ID:           newSessionID(practiceType, now.UnixMilli()),
		PracticeType: practiceType,
		StartTime:    now.UnixMilli(),
		Duration:     0,
		Date:         today,
		Completed:    false,
	}
	bucket.Sessions = append(bucket.Sessions, session)

	t.save(data)
	metrics.SessionsStarted.WithLabelValues(practiceType).Inc()

	t.logger.Info().
		Str("session_id", session.ID).
		Str("practice_type", practiceType).
		Str("date", today).
		Msg("Started practice session")

	return session.ID
}

// EndSession finalizes an open session. It only looks in today's bucket; a
// session that spans local midnight records under its start day and cannot
// be found here afterwards, so the call is a silent no-op. Ending an already
// completed session is also a no-op, which makes the call idempotent.
func (t *Tracker) EndSession(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	today := now.Format(dateLayout)
	data := t.load()

	bucket, ok := data[today]
	if !ok {
		t.logger.Debug().Str("session_id", sessionID).Str("date", today).Msg("No bucket for today, ignoring end")
		return
	}

	session := findSession(bucket, sessionID)
	if session == nil || session.Completed {
		t.logger.Debug().Str("session_id", sessionID).Msg("Session not open today, ignoring end")
		return
	}

	session.EndTime = now.UnixMilli()
	session.Duration = (session.EndTime - session.StartTime) / 1000
	session.Completed = true

	// Recompute rather than patch, so the total can never drift.
	bucket.TotalDuration = completedTotal(bucket)

	t.save(data)
	metrics.SessionsCompleted.WithLabelValues(session.PracticeType).Inc()
	metrics.PracticeSecondsRecorded.WithLabelValues(session.PracticeType).Add(float64(session.Duration))

	t.logger.Info().
		Str("session_id", sessionID).
		Str("practice_type", session.PracticeType).
		Int64("duration_seconds", session.Duration).
		Msg("Completed practice session")
}

// UpdateSessionDuration records live elapsed seconds on an open session so a
// stats view can show near-real-time progress. It never marks the session
// completed and never touches the bucket total; quota accounting only moves
// when EndSession finalizes. Silent no-op if the session is not open today.
func (t *Tracker) UpdateSessionDuration(sessionID string, currentDuration int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.clock.Now().Format(dateLayout)
	data := t.load()

	bucket, ok := data[today]
	if !ok {
		return
	}

	session := findSession(bucket, sessionID)
	if session == nil || session.Completed {
		return
	}

	session.Duration = currentDuration
	t.save(data)
}

// GetTodayUsage returns today's bucket, or nil if nothing has been tracked
// today. The returned bucket is not a copy; callers must treat it as
// read-only.
func (t *Tracker) GetTodayUsage() *storage.DailyUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.load()[t.clock.Now().Format(dateLayout)]
}

// GetTodayUsageByType returns a synthesized bucket holding only today's
// sessions of the given type. Its TotalDuration sums completed sessions in
// the subset only; in-progress sessions never count toward quota.
func (t *Tracker) GetTodayUsageByType(practiceType string) *storage.DailyUsage {
	t.mu.Lock()
	defer t.mu.Unlock()

	today := t.clock.Now().Format(dateLayout)
	bucket, ok := t.load()[today]
	if !ok {
		return nil
	}

	filtered := &storage.DailyUsage{
		Date:     today,
		Sessions: []*storage.PracticeSession{},
	}
	for _, session := range bucket.Sessions {
		if session.PracticeType != practiceType {
			continue
		}
		filtered.Sessions = append(filtered.Sessions, session)
		if session.Completed {
			filtered.TotalDuration += session.Duration
		}
	}
	return filtered
}

// GetUsedTime returns completed practice minutes for the type today,
// floor-truncated from seconds. Time on a still-open session is excluded
// until it ends; that avoids double counting across refreshes at the cost
// of under-reporting while a session runs.
func (t *Tracker) GetUsedTime(practiceType string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return int(t.usedSecondsToday(practiceType) / 60)
}

// GetRemainingTime returns remaining minutes for the type today. A practice
// type absent from the limit table has a zero limit by definition and so
// always reports zero remaining.
func (t *Tracker) GetRemainingTime(practiceType string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remainingLocked(practiceType)
}

// IsSessionLocked reports whether the type's quota is exhausted for the
// day. Usage that lands exactly on the limit locks too.
func (t *Tracker) IsSessionLocked(practiceType string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remainingLocked(practiceType) == 0
}

// GetAllPracticeStats returns one summary per configured limit, in table
// order.
func (t *Tracker) GetAllPracticeStats() []PracticeStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := make([]PracticeStats, 0, len(t.limits))
	for _, limit := range t.limits {
		used := int(t.usedSecondsToday(limit.PracticeType) / 60)
		remaining := limit.DailyLimitMinutes - used
		if remaining < 0 {
			remaining = 0
		}
		percentage := 100 * used / limit.DailyLimitMinutes
		if percentage > 100 {
			percentage = 100
		}
		stats = append(stats, PracticeStats{
			PracticeType:     limit.PracticeType,
			DisplayName:      limit.DisplayName,
			UsedMinutes:      used,
			LimitMinutes:     limit.DailyLimitMinutes,
			RemainingMinutes: remaining,
			Locked:           remaining == 0,
			UsagePercentage:  percentage,
		})
	}
	return stats
}

// CleanOldData removes every daily bucket older than daysToKeep calendar
// days. ISO date keys sort lexicographically in chronological order, so the
// cutoff comparison needs no date parsing. The bucket on the cutoff date
// itself is retained.
func (t *Tracker) CleanOldData(daysToKeep int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().AddDate(0, 0, -daysToKeep).Format(dateLayout)
	data := t.load()

	removed := 0
	for date := range data {
		if date < cutoff {
			delete(data, date)
			removed++
		}
	}

	if removed > 0 {
		t.save(data)
	}

	t.logger.Info().
		Int("buckets_removed", removed).
		Str("cutoff_date", cutoff).
		Msg("Usage retention cleanup complete")
}

// Limits returns the configured limit table in order.
func (t *Tracker) Limits() []PracticeLimit {
	return t.limits
}

// remainingLocked computes remaining minutes; callers hold the lock.
func (t *Tracker) remainingLocked(practiceType string) int {
	limit, ok := t.byType[practiceType]
	if !ok {
		// Unrecognized activity types are never practicable.
		return 0
	}

	used := int(t.usedSecondsToday(practiceType) / 60)
	remaining := limit.DailyLimitMinutes - used
	if remaining < 0 {
		return 0
	}
	return remaining
}

// usedSecondsToday sums completed session durations for the type in today's
// bucket; callers hold the lock.
func (t *Tracker) usedSecondsToday(practiceType string) int64 {
	bucket, ok := t.load()[t.clock.Now().Format(dateLayout)]
	if !ok {
		return 0
	}

	var total int64
	for _, session := range bucket.Sessions {
		if session.Completed && session.PracticeType == practiceType {
			total += session.Duration
		}
	}
	return total
}

// load reads the whole blob. A failed read degrades to an empty store; the
// caller sees "no usage recorded yet" instead of an error.
func (t *Tracker) load() storage.UsageData {
	data, err := t.store.LoadUsage(context.Background())
	if err != nil {
		t.logger.Error().Err(err).Msg("Failed to load usage data, treating as empty")
		metrics.StorageErrors.WithLabelValues("load").Inc()
		return make(storage.UsageData)
	}
	return data
}

// save writes the whole blob back. A failed write is dropped and logged;
// storage keeps its last-known-good state.
func (t *Tracker) save(data storage.UsageData) {
	if err := t.store.SaveUsage(context.Background(), data); err != nil {
		t.logger.Error().Err(err).Msg("Failed to save usage data, dropping write")
		metrics.StorageErrors.WithLabelValues("save").Inc()
	}
}

func completedTotal(bucket *storage.DailyUsage) int64 {
	var total int64
	for _, session := range bucket.Sessions {
		if session.Completed {
			total += session.Duration
		}
	}
	return total
}

func findSession(bucket *storage.DailyUsage, sessionID string) *storage.PracticeSession {
	for _, session := range bucket.Sessions {
		if session.ID == sessionID {
			return session
		}
	}
	return nil
}

// newSessionID builds an id from the practice type, the start timestamp and
// a random suffix. The timestamp keeps ids sortable per type; the suffix
// makes collisions within the same millisecond vanishingly unlikely.
func newSessionID(practiceType string, startMillis int64) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// This should never happen with a working system RNG
		panic(fmt.Sprintf("failed to generate random session ID: %v", err))
	}
	return fmt.Sprintf("%s-%d-%s", practiceType, startMillis, hex.EncodeToString(buf))
}
