package usage

import (
	"time"

	"github.com/aangilam/aangilam/internal/metrics"
	"github.com/rs/zerolog"
)

// StatsPoller periodically recomputes per-type daily stats and publishes
// them as gauges. It is the service-side stand-in for the UI hook that polls
// the tracker on a fixed interval; stats views are eventually consistent
// with whatever the last completed write was.
type StatsPoller struct {
	tracker  *Tracker
	interval time.Duration
	logger   zerolog.Logger
	stopChan chan struct{}
}

// NewStatsPoller creates a stats poller over the tracker.
func NewStatsPoller(tracker *Tracker, interval time.Duration, logger zerolog.Logger) *StatsPoller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StatsPoller{
		tracker:  tracker,
		interval: interval,
		logger:   logger.With().Str("component", "stats-poller").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start begins the polling loop.
func (p *StatsPoller) Start() {
	go p.run()
	p.logger.Info().Dur("interval", p.interval).Msg("Stats poller started")
}

// Stop stops the polling loop.
func (p *StatsPoller) Stop() {
	close(p.stopChan)
	p.logger.Info().Msg("Stats poller stopped")
}

func (p *StatsPoller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.publish()

	for {
		select {
		case <-ticker.C:
			p.publish()
		case <-p.stopChan:
			return
		}
	}
}

func (p *StatsPoller) publish() {
	for _, stat := range p.tracker.GetAllPracticeStats() {
		metrics.PracticeUsedMinutes.WithLabelValues(stat.PracticeType).Set(float64(stat.UsedMinutes))
		metrics.PracticeRemainingMinutes.WithLabelValues(stat.PracticeType).Set(float64(stat.RemainingMinutes))
		locked := 0.0
		if stat.Locked {
			locked = 1.0
		}
		metrics.PracticeLocked.WithLabelValues(stat.PracticeType).Set(locked)
	}
}
