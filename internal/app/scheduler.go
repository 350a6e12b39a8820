/**
 * @description
 * Cron scheduler for the periodic billing run.
 */
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/paymybuddy/payment-service/pkg/logger"
	"github.com/robfig/cron/v3"
)

const billingJobTimeout = 10 * time.Minute

// Scheduler manages the cron jobs.
type Scheduler struct {
	cron     *cron.Cron
	billing  *BillingService
	schedule string
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(billing *BillingService, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(logger.StdLogger())
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	return &Scheduler{
		cron:     c,
		billing:  billing,
		schedule: schedule,
	}
}

// Start registers the jobs and starts the cron scheduler.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.runBillingCycle); err != nil {
		return fmt.Errorf("failed to schedule billing job %q: %w", s.schedule, err)
	}
	logger.Log.Info("scheduled billing job", logger.String("schedule", s.schedule))

	s.cron.Start()
	return nil
}

// Stop stops the scheduler. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runBillingCycle() {
	logger.Log.Info("starting billing job")
	ctx, cancel := context.WithTimeout(context.Background(), billingJobTimeout)
	defer cancel()

	if err := s.billing.RunBillingCycle(ctx); err != nil {
		logger.Log.Error("billing job failed", logger.Error(err))
	}
}
