package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockdesk/internal/config"
	"github.com/mamadbah2/stockdesk/internal/domain/models"
)

// Refresher reloads the cached inventory.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Reporter runs the end-of-day close and archives the weekly reports.
type Reporter interface {
	CloseDay(ctx context.Context) (*models.DailySnapshot, error)
	SaveWeeklyReport(ctx context.Context, kind models.ReportKind) (string, error)
}

// Scheduler runs the periodic inventory refresh, the daily close and the
// weekly report download.
type Scheduler struct {
	cron      *cron.Cron
	refresher Refresher
	reporter  Reporter
	cfg       config.ReportingConfig
	logger    *zap.Logger
}

// NewScheduler creates a scheduler running in the configured timezone.
func NewScheduler(cfg config.ReportingConfig, refresher Refresher, reporter Reporter, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	return &Scheduler{
		cron:      cron.New(cron.WithLocation(loc)),
		refresher: refresher,
		reporter:  reporter,
		cfg:       cfg,
		logger:    logger,
	}, nil
}

// Start registers the jobs and starts the cron loop. Empty schedules and
// missing collaborators leave their job out.
func (s *Scheduler) Start() error {
	s.logger.Info("starting scheduler",
		zap.String("refresh", s.cfg.RefreshSchedule),
		zap.String("daily_close", s.cfg.CronSchedule),
		zap.String("weekly_reports", s.cfg.WeeklySchedule),
		zap.String("timezone", s.cfg.Timezone),
	)

	if s.refresher != nil && s.cfg.RefreshSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.RefreshSchedule, s.refresh); err != nil {
			return fmt.Errorf("schedule inventory refresh: %w", err)
		}
	}
	if s.reporter != nil && s.cfg.CronSchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.CronSchedule, s.closeDay); err != nil {
			return fmt.Errorf("schedule daily close: %w", err)
		}
	}
	if s.reporter != nil && s.cfg.WeeklySchedule != "" {
		if _, err := s.cron.AddFunc(s.cfg.WeeklySchedule, s.saveWeeklyReports); err != nil {
			return fmt.Errorf("schedule weekly reports: %w", err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
}

// Jobs reports how many jobs are registered.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.refresher.Refresh(ctx); err != nil {
		s.logger.Warn("scheduled inventory refresh failed", zap.Error(err))
	}
}

func (s *Scheduler) closeDay() {
	s.logger.Info("running daily close")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	snap, err := s.reporter.CloseDay(ctx)
	if err != nil {
		s.logger.Error("daily close failed", zap.Error(err))
		return
	}
	s.logger.Info("daily close completed", zap.Int("sales", snap.TotalSales))
}

func (s *Scheduler) saveWeeklyReports() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, kind := range []models.ReportKind{models.ReportByCustomer, models.ReportByDate} {
		path, err := s.reporter.SaveWeeklyReport(ctx, kind)
		if err != nil {
			s.logger.Error("weekly report download failed", zap.String("kind", string(kind)), zap.Error(err))
			continue
		}
		s.logger.Info("weekly report saved", zap.String("kind", string(kind)), zap.String("path", path))
	}
}
