package usage

import (
	"time"

	"github.com/rs/zerolog"
)

// CleanupScheduler purges usage buckets older than the retention window
// once a day at a configured local time.
type CleanupScheduler struct {
	tracker       *Tracker
	retentionDays int
	cleanupTime   time.Time // only hour and minute are used
	logger        zerolog.Logger
	stopChan      chan struct{}
}

// NewCleanupScheduler creates a cleanup scheduler. cleanupTime is HH:MM.
func NewCleanupScheduler(tracker *Tracker, retentionDays int, cleanupTime string, logger zerolog.Logger) (*CleanupScheduler, error) {
	parsedTime, err := time.Parse("15:04", cleanupTime)
	if err != nil {
		return nil, err
	}

	return &CleanupScheduler{
		tracker:       tracker,
		retentionDays: retentionDays,
		cleanupTime:   parsedTime,
		logger:        logger.With().Str("component", "cleanup-scheduler").Logger(),
		stopChan:      make(chan struct{}),
	}, nil
}

// Start begins the cleanup scheduler.
func (cs *CleanupScheduler) Start() {
	go cs.run()
	cs.logger.Info().
		Str("cleanup_time", cs.cleanupTime.Format("15:04")).
		Int("retention_days", cs.retentionDays).
		Msg("Daily retention cleanup scheduler started")
}

// Stop stops the cleanup scheduler.
func (cs *CleanupScheduler) Stop() {
	close(cs.stopChan)
	cs.logger.Info().Msg("Daily retention cleanup scheduler stopped")
}

func (cs *CleanupScheduler) run() {
	for {
		nextCleanup := cs.calculateNextCleanup()
		waitDuration := time.Until(nextCleanup)

		cs.logger.Info().
			Time("next_cleanup", nextCleanup).
			Dur("wait_duration", waitDuration).
			Msg("Scheduled next retention cleanup")

		select {
		case <-time.After(waitDuration):
			cs.tracker.CleanOldData(cs.retentionDays)
		case <-cs.stopChan:
			return
		}
	}
}

func (cs *CleanupScheduler) calculateNextCleanup() time.Time {
	now := time.Now()

	todayCleanup := time.Date(
		now.Year(), now.Month(), now.Day(),
		cs.cleanupTime.Hour(), cs.cleanupTime.Minute(), 0, 0,
		now.Location(),
	)

	if now.After(todayCleanup) {
		return todayCleanup.AddDate(0, 0, 1)
	}

	return todayCleanup
}
