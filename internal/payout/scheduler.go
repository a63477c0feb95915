package payout

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// defaultSchedulerInterval is how often closed windows are checked for.
// The calculators' idempotency guards make frequent invocation safe.
const defaultSchedulerInterval = time.Hour

// Scheduler periodically runs the weekly and monthly payout calculators.
type Scheduler struct {
	calc     *Calculator
	interval time.Duration
}

// NewScheduler wires the payout scheduler.
func NewScheduler(conn *gorm.DB) *Scheduler {
	return &Scheduler{
		calc:     NewCalculator(conn),
		interval: defaultSchedulerInterval,
	}
}

// Start launches the scheduling loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	go s.run(ctx)
	log.Infof("payout scheduler started (interval=%s)", s.interval)
}

func (s *Scheduler) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		s.runOnce(ctx)
		timer := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}
	}
}

// runOnce invokes both calculators for the most recently closed windows.
func (s *Scheduler) runOnce(ctx context.Context) {
	now := time.Now()
	if _, errWeekly := s.calc.RunWeekly(ctx, now); errWeekly != nil {
		log.WithError(errWeekly).Error("weekly payout run failed")
	}
	if _, errMonthly := s.calc.RunMonthly(ctx, now); errMonthly != nil {
		log.WithError(errMonthly).Error("monthly payout run failed")
	}
}
