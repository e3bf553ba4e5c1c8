package history

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/parleyhq/parley/internal/logger"
	"github.com/parleyhq/parley/internal/metrics"
)

// sweepSchedule runs the retention sweep nightly.
const sweepSchedule = "0 3 * * *"

// Sweeper prunes aged-out turns on a schedule.
type Sweeper struct {
	store     *Store
	retention time.Duration
	cron      *cron.Cron
}

// NewSweeper creates a retention sweeper for the store.
func NewSweeper(store *Store, retention time.Duration) *Sweeper {
	return &Sweeper{
		store:     store,
		retention: retention,
		cron:      cron.New(),
	}
}

// Start schedules the sweep. Returns an error only if the schedule
// expression is invalid.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(sweepSchedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	logger.Slog().Info("history sweeper started",
		"schedule", sweepSchedule, "retention", s.retention)
	return nil
}

// Stop halts the schedule, waiting for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Slog().Info("history sweeper stopped")
}

func (s *Sweeper) sweep() {
	removed, err := s.store.Prune(s.retention)
	if err != nil {
		logger.Slog().Error("history sweep failed", "error", err)
		return
	}
	metrics.RecordPrune(removed)
	logger.Slog().Info("history sweep complete", "turns_removed", removed)
}
