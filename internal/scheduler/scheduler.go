package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const jobTimeout = 30 * time.Minute

// Job is one scheduled task.
type Job func(ctx context.Context) error

// Scheduler runs periodic jobs, used by the watch command to re-scrape
// thread URLs on an interval.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID
	log  logrus.FieldLogger
}

// New creates a scheduler in the local timezone.
func New(log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron: cron.New(),
		jobs: make(map[string]cron.EntryID),
		log:  log.WithField("component", "scheduler"),
	}
}

// AddJob schedules job under a standard cron expression.
func (s *Scheduler) AddJob(name, schedule string, job Job) error {
	entryID, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		log := s.log.WithField("job", name)
		log.Info("Starting job")
		start := time.Now()

		if err := job(ctx); err != nil {
			log.WithError(err).Error("Job failed")
			return
		}
		log.WithField("duration", time.Since(start)).Info("Job completed")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule job %s: %w", name, err)
	}

	s.jobs[name] = entryID
	s.log.WithFields(logrus.Fields{"job": name, "schedule": schedule}).Info("Added job")
	return nil
}

// AddIntervalJob schedules job every intervalMinutes minutes.
func (s *Scheduler) AddIntervalJob(name string, intervalMinutes int, job Job) error {
	if intervalMinutes < 1 {
		return fmt.Errorf("interval must be at least 1 minute")
	}
	return s.AddJob(name, fmt.Sprintf("@every %dm", intervalMinutes), job)
}

// Start begins running scheduled jobs.
func (s *Scheduler) Start() {
	s.log.Info("Starting scheduler")
	s.cron.Start()
}

// Stop halts scheduling; the returned context is done once running jobs
// finish.
func (s *Scheduler) Stop() context.Context {
	s.log.Info("Stopping scheduler")
	return s.cron.Stop()
}
