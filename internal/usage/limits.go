package usage

import "github.com/aangilam/aangilam/internal/config"

// PracticeLimit is one entry of the daily time budget table. The table is
// fixed for the lifetime of a tracker; changing it does not migrate stored
// sessions. Historical sessions of a removed type stay in the store but drop
// out of GetAllPracticeStats.
type PracticeLimit struct {
	PracticeType      string `json:"practiceType"`
	DailyLimitMinutes int    `json:"dailyLimitMinutes"`
	DisplayName       string `json:"displayName"`
}

// DefaultPracticeLimits is the built-in budget table, one entry per
// supported learning activity.
var DefaultPracticeLimits = []PracticeLimit{
	{PracticeType: "grammar", DailyLimitMinutes: 25, DisplayName: "Grammar Practice"},
	{PracticeType: "vocabulary", DailyLimitMinutes: 20, DisplayName: "Vocabulary Builder"},
	{PracticeType: "pronunciation", DailyLimitMinutes: 15, DisplayName: "Pronunciation Coach"},
	{PracticeType: "conversation", DailyLimitMinutes: 30, DisplayName: "Conversation Practice"},
	{PracticeType: "interview", DailyLimitMinutes: 25, DisplayName: "Interview Simulator"},
	{PracticeType: "reading", DailyLimitMinutes: 20, DisplayName: "Reading Comprehension"},
}

// LimitsFromConfig converts configured limit entries into the tracker table.
// An empty configuration falls back to the built-in table.
func LimitsFromConfig(entries []config.LimitConfig) []PracticeLimit {
	if len(entries) == 0 {
		return DefaultPracticeLimits
	}

	limits := make([]PracticeLimit, 0, len(entries))
	for _, e := range entries {
		displayName := e.DisplayName
		if displayName == "" {
			displayName = e.PracticeType
		}
		limits = append(limits, PracticeLimit{
			PracticeType:      e.PracticeType,
			DailyLimitMinutes: e.DailyLimitMinutes,
			DisplayName:       displayName,
		})
	}
	return limits
}
