package main

import (
	"fmt"
	"os"

	"github.com/aangilam/aangilam/internal/config"
	"github.com/aangilam/aangilam/internal/usage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var cleanupDaysToKeep int

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Purge usage data past the retention window",
	Long:  `Remove daily usage buckets older than the retention window, one-shot.`,
	Example: `  aangilam -c config.yaml cleanup
  aangilam cleanup --days 60`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().IntVar(&cleanupDaysToKeep, "days", 0, "Days of history to keep (defaults to configured retention)")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()

	daysToKeep := cleanupDaysToKeep
	if daysToKeep <= 0 {
		daysToKeep = cfg.Usage.RetentionDays
	}

	tracker := usage.NewTracker(store.Usage(), usage.LimitsFromConfig(cfg.Limits), usage.RealClock{}, logger)
	tracker.CleanOldData(daysToKeep)

	fmt.Printf("Cleanup complete, kept the last %d days\n", daysToKeep)
	return nil
}
