package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically drops idle conversations from the volatile cache so
// the process-wide map stays bounded over long uptimes.
type Sweeper struct {
	logger  *slog.Logger
	store   *Store
	maxIdle time.Duration
	cron    *cron.Cron
	entryID cron.EntryID
}

// NewSweeper schedules a sweep with the given cron spec (standard five-field
// syntax). maxIdle is how long a conversation may go untouched before its
// volatile entry is dropped.
func NewSweeper(log *slog.Logger, store *Store, spec string, maxIdle time.Duration) (*Sweeper, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Sweeper{
		logger:  log.With(slog.String("service", "history_sweeper")),
		store:   store,
		maxIdle: maxIdle,
		cron:    cron.New(),
	}
	id, err := s.cron.AddFunc(spec, s.sweep)
	if err != nil {
		return nil, fmt.Errorf("schedule history sweep %q: %w", spec, err)
	}
	s.entryID = id
	return s, nil
}

func (s *Sweeper) sweep() {
	dropped := s.store.SweepIdle(s.maxIdle)
	if dropped > 0 {
		s.logger.Info("swept idle conversations", slog.Int("dropped", dropped))
	}
}

// Start begins the sweep schedule.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
