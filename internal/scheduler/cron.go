package scheduler

import (
	"context"
	"fmt"
	"time"

	"nomadHubAPI/internal/audit"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 2 * time.Minute

type Expirer interface {
	ExpireLapsed(ctx context.Context, grace time.Duration) (int64, error)
}

type Scheduler struct {
	cron    *cron.Cron
	expirer Expirer
	audit   audit.Recorder
	grace   time.Duration
	log     *zap.Logger
	started bool
}

func NewScheduler(expirer Expirer, recorder audit.Recorder, grace time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		expirer: expirer,
		audit:   recorder,
		grace:   grace,
		log:     log.Named("scheduler"),
	}
}

// Start registers the expiry sweep. An empty schedule leaves the sweep off.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		s.log.Info("expiry sweep disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(schedule, s.expireSubscriptions); err != nil {
		return fmt.Errorf("failed to add expiry sweep job: %w", err)
	}

	s.cron.Start()
	s.started = true
	s.log.Info("cron scheduler started", zap.String("schedule", schedule))

	return nil
}

// Stop waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	if !s.started {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("cron scheduler stopped")
}

func (s *Scheduler) expireSubscriptions() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	s.RunOnce(ctx)
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce(ctx context.Context) int64 {
	expired, err := s.expirer.ExpireLapsed(ctx, s.grace)
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
		return 0
	}
	if expired == 0 {
		return 0
	}

	s.log.Info("subscriptions expired", zap.Int64("count", expired))
	if s.audit != nil {
		event := audit.Event{Type: audit.SubscriptionsExpired, Count: expired, At: time.Now()}
		if err := s.audit.Record(ctx, event); err != nil {
			s.log.Error("failed to record audit event", zap.Error(err))
		}
	}

	return expired
}
