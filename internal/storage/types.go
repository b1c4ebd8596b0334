package storage

// PracticeSession is one timed interval of practice activity. Field names in
// JSON are camelCase to stay wire-compatible with blobs written by the
// original browser client.
type PracticeSession struct {
	ID           string `json:"id"`
	PracticeType string `json:"practiceType"`
	StartTime    int64  `json:"startTime"` // epoch milliseconds
	EndTime      int64  `json:"endTime,omitempty"`
	Duration     int64  `json:"duration"` // seconds
	Date         string `json:"date"`     // local YYYY-MM-DD, fixed at creation
	Completed    bool   `json:"completed"`
}

// DailyUsage aggregates all sessions for one calendar day, in insertion
// order. TotalDuration is always the sum of Duration over completed sessions
// and is recomputed on every completion, never incrementally patched.
type DailyUsage struct {
	Date          string             `json:"date"`
	Sessions      []*PracticeSession `json:"sessions"`
	TotalDuration int64              `json:"totalDuration"`
}

// UsageData is the entire persisted state of the tracker: date string to
// daily bucket. ISO date keys make lexicographic and chronological order
// coincide.
type UsageData map[string]*DailyUsage
