package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockledger/internal/config"
	"github.com/mamadbah2/stockledger/internal/domain/models"
	"github.com/mamadbah2/stockledger/internal/service/alerts"
)

const digestTimeout = 2 * time.Minute

// DigestBuilder renders the periodic stock digest.
type DigestBuilder interface {
	Digest(ctx context.Context, now time.Time) (models.Notification, error)
}

// Scheduler manages scheduled tasks.
type Scheduler struct {
	cron     *cron.Cron
	digests  DigestBuilder
	notifier alerts.Notifier
	cfg      config.ReportingConfig
	location *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewScheduler creates a scheduler running in the configured timezone.
func NewScheduler(cfg config.ReportingConfig, digests DigestBuilder, notifier alerts.Notifier, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone: %w", err)
	}

	// Standard 5-field cron spec (min, hour, dom, month, dow).
	c := cron.New(cron.WithLocation(loc))

	return &Scheduler{
		cron:     c,
		digests:  digests,
		notifier: notifier,
		cfg:      cfg,
		location: loc,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start registers the daily digest and starts the scheduler.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler", zap.String("digest_schedule", s.cfg.CronSchedule), zap.String("timezone", s.location.String()))

	if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.sendDailyDigest); err != nil {
		return fmt.Errorf("schedule daily digest %q: %w", s.cfg.CronSchedule, err)
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for a running digest to finish.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) sendDailyDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	if err := s.SendDigest(ctx); err != nil {
		s.logger.Error("daily digest failed", zap.Error(err))
	}
}

// SendDigest builds and delivers one digest immediately.
func (s *Scheduler) SendDigest(ctx context.Context) error {
	s.logger.Info("generating daily digest")

	digest, err := s.digests.Digest(ctx, s.now().In(s.location))
	if err != nil {
		return fmt.Errorf("generate digest: %w", err)
	}

	if err := s.notifier.Send(ctx, digest); err != nil {
		return fmt.Errorf("send digest: %w", err)
	}

	s.logger.Info("daily digest sent successfully")
	return nil
}
