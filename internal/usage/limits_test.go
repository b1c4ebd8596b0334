package usage

import (
	"testing"

	"github.com/aangilam/aangilam/internal/config"
)

func TestLimitsFromConfig_EmptyFallsBackToDefaults(t *testing.T) {
	limits := LimitsFromConfig(nil)
	if len(limits) != len(DefaultPracticeLimits) {
		t.Fatalf("Expected %d default limits, got %d", len(DefaultPracticeLimits), len(limits))
	}
	if limits[0].PracticeType != "grammar" {
		t.Errorf("Default table order changed, got %s first", limits[0].PracticeType)
	}
}

func TestLimitsFromConfig_PreservesOrderAndFillsDisplayName(t *testing.T) {
	limits := LimitsFromConfig([]config.LimitConfig{
		{PracticeType: "debate", DailyLimitMinutes: 10, DisplayName: "Debate Club"},
		{PracticeType: "shadowing", DailyLimitMinutes: 5},
	})

	if len(limits) != 2 {
		t.Fatalf("Expected 2 limits, got %d", len(limits))
	}
	if limits[0].PracticeType != "debate" || limits[1].PracticeType != "shadowing" {
		t.Errorf("Configuration order not preserved: %+v", limits)
	}
	if limits[1].DisplayName != "shadowing" {
		t.Errorf("Empty display name should fall back to the type, got %q", limits[1].DisplayName)
	}
}
