package conversation

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/oraculum/oraculum/internal/observability"
)

const (
	DefaultIdleThreshold = 30 * time.Minute
	DefaultSweepInterval = 10 * time.Minute
)

// Sweeper periodically evicts sessions that have been idle past a threshold.
// It is owned by the store's lifecycle: started once at initialization and
// stopped at process shutdown.
type Sweeper struct {
	store         *Store
	idleThreshold time.Duration
	interval      time.Duration
	scheduler     *cron.Cron
	running       bool
}

// NewSweeper creates a sweeper for the given store. Zero values fall back to
// the 30-minute threshold and 10-minute interval defaults.
func NewSweeper(store *Store, idleThreshold, interval time.Duration) *Sweeper {
	if idleThreshold == 0 {
		idleThreshold = DefaultIdleThreshold
	}
	if interval == 0 {
		interval = DefaultSweepInterval
	}

	return &Sweeper{
		store:         store,
		idleThreshold: idleThreshold,
		interval:      interval,
	}
}

// Start schedules the recurring sweep.
func (s *Sweeper) Start() error {
	if s.running {
		return fmt.Errorf("sweeper is already running")
	}

	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(fmt.Sprintf("@every %s", s.interval), s.SweepNow); err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.scheduler.Start()
	s.running = true

	log.Info().
		Dur("idle_threshold", s.idleThreshold).
		Dur("interval", s.interval).
		Msg("Session sweeper started")

	return nil
}

// Stop cancels the recurring sweep and waits for an in-progress run.
func (s *Sweeper) Stop() error {
	if !s.running {
		return fmt.Errorf("sweeper is not running")
	}

	<-s.scheduler.Stop().Done()
	s.running = false

	log.Info().Msg("Session sweeper stopped")

	return nil
}

// IsRunning returns whether the sweeper is running.
func (s *Sweeper) IsRunning() bool {
	return s.running
}

// SweepNow runs a single eviction pass immediately.
func (s *Sweeper) SweepNow() {
	removed := s.store.Sweep(s.idleThreshold, time.Now())

	observability.RecordSweep(removed)
	observability.SetActiveSessions(s.store.Len())

	if removed > 0 {
		log.Info().
			Int("evicted", removed).
			Int("remaining", s.store.Len()).
			Msg("Idle sessions evicted")
	}
}
