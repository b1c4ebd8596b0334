package main

import (
	"fmt"
	"os"

	"github.com/aangilam/aangilam/internal/config"
	"github.com/aangilam/aangilam/internal/usage"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show today's practice stats",
	Long:    `Show today's per-activity usage against the daily limit table.`,
	Example: `  aangilam -c config.yaml stats`,
	RunE:    runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Quiet logger for CLI mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	tracker := usage.NewTracker(store.Usage(), usage.LimitsFromConfig(cfg.Limits), usage.RealClock{}, logger)

	printStats(tracker.GetAllPracticeStats())
	return nil
}

func printStats(stats []usage.PracticeStats) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)

	bold.Println("Today's practice usage")
	fmt.Println()

	for _, stat := range stats {
		state := green
		label := "open"
		switch {
		case stat.Locked:
			state = red
			label = "locked"
		case stat.UsagePercentage >= 80:
			state = yellow
			label = "almost used up"
		}

		fmt.Printf("  %-24s %3d/%3d min  ", stat.DisplayName, stat.UsedMinutes, stat.LimitMinutes)
		state.Printf("%-14s", label)
		fmt.Printf(" %3d%%\n", stat.UsagePercentage)
	}
}
