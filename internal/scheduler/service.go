package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/silvercare/nas-gateway/internal/config"
	"github.com/sirupsen/logrus"
)

// Jobs is what the scheduler runs
type Jobs interface {
	Flush(ctx context.Context) error
	Probe(ctx context.Context) error
}

// Service handles scheduling of audit flushes and store probes
type Service struct {
	config *config.Config
	jobs   Jobs
	cron   *cron.Cron
}

// NewService creates a new scheduler service
func NewService(cfg *config.Config, jobs Jobs) *Service {
	return &Service{
		config: cfg,
		jobs:   jobs,
		cron:   cron.New(cron.WithSeconds()),
	}
}

// Start registers the configured jobs and starts the cron runner
func (s *Service) Start() error {
	if err := s.add("audit flush", s.config.AuditFlushSchedule, 5*time.Minute, s.jobs.Flush); err != nil {
		return err
	}

	if err := s.add("store probe", s.config.ProbeSchedule, 30*time.Second, s.jobs.Probe); err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %d jobs", len(s.cron.Entries()))
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}

func (s *Service) add(name, spec string, timeout time.Duration, job func(ctx context.Context) error) error {
	if spec == "" {
		logrus.Infof("No schedule for %s, job disabled", name)
		return nil
	}

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		logrus.Debugf("Starting scheduled %s", name)
		if err := job(ctx); err != nil {
			logrus.Errorf("Scheduled %s failed: %v", name, err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, spec, err)
	}

	return nil
}
