package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"craftquote/api/internal/service"
)

// Scheduler runs the out-of-band session expiry sweep. No request path
// depends on it; an expired session that the sweep has not reached yet is
// still rejected and removed on use.
type Scheduler struct {
	cron      *cron.Cron
	sessions  *service.SessionService
	sweepSpec string
	log       zerolog.Logger
}

func NewScheduler(sessions *service.SessionService, sweepSpec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithSeconds()),
		sessions:  sessions,
		sweepSpec: sweepSpec,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.sweepSpec, s.sweepSessions); err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits briefly for a running sweep to finish.
func (s *Scheduler) Stop() {
	select {
	case <-s.cron.Stop().Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.sessions.CleanExpiredSessions(ctx); err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
	}
}
