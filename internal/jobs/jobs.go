// Package jobs runs the periodic withdrawal sweeps.
package jobs

import (
	"context"
	"fmt"
	"time"

	"seller-payout-service/internal/core/ports"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Intervals configures how often each sweep runs.
type Intervals struct {
	Expire     time.Duration
	Redispatch time.Duration
}

// Scheduler owns the gocron scheduler for the withdrawal sweeps.
// Each job runs in singleton mode so a slow sweep is never overlapped by the next tick.
type Scheduler struct {
	scheduler   *gocron.Scheduler
	withdrawals ports.WithdrawalService
	intervals   Intervals
	timeout     time.Duration
	log         zerolog.Logger
}

func NewScheduler(withdrawals ports.WithdrawalService, intervals Intervals, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:   gocron.NewScheduler(time.UTC),
		withdrawals: withdrawals,
		intervals:   intervals,
		timeout:     time.Minute,
		log:         log,
	}
}

// Start registers the sweeps and starts the scheduler in the background.
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(s.intervals.Expire).SingletonMode().Do(s.ExpireStale); err != nil {
		return fmt.Errorf("schedule expire sweep: %w", err)
	}
	if _, err := s.scheduler.Every(s.intervals.Redispatch).SingletonMode().Do(s.RedispatchPending); err != nil {
		return fmt.Errorf("schedule redispatch sweep: %w", err)
	}
	s.scheduler.StartAsync()
	s.log.Info().
		Dur("expire_interval", s.intervals.Expire).
		Dur("redispatch_interval", s.intervals.Redispatch).
		Msg("withdrawal sweeps scheduled")
	return nil
}

// Stop waits for running sweeps to return.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ExpireStale fails unconfirmed withdrawals whose window has passed.
func (s *Scheduler) ExpireStale() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.withdrawals.ExpireStale(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("jobs: expire sweep failed")
		return
	}
	s.log.Debug().Int("expired", n).Msg("jobs: expire sweep done")
}

// RedispatchPending resubmits confirmed withdrawals the rail never acknowledged.
func (s *Scheduler) RedispatchPending() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.withdrawals.RedispatchPending(ctx)
	if err != nil {
		s.log.Error().Err(err).Int("dispatched", n).Msg("jobs: redispatch sweep failed")
		return
	}
	s.log.Debug().Int("dispatched", n).Msg("jobs: redispatch sweep done")
}
