// Package scheduler runs the five coaching workflows on their cron
// schedules and handles graceful shutdown.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/thelaunchpad/coach-worker/internal/config"
	"github.com/thelaunchpad/coach-worker/internal/workflow"
)

type Scheduler struct {
	cfg       *config.Config
	workflows *workflow.Workflows
	log       *logrus.Logger
}

func New(cfg *config.Config, workflows *workflow.Workflows, log *logrus.Logger) *Scheduler {
	return &Scheduler{cfg: cfg, workflows: workflows, log: log}
}

// Start registers every workflow and blocks until the context is
// cancelled, then waits for in-flight jobs to finish.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{s.log}),
		cron.Recover(cronLogger{s.log}),
	))

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{workflow.NameProcessInbound, s.cfg.CronProcessInbound, s.workflows.ProcessInbound},
		{workflow.NameSendApproved, s.cfg.CronSendApproved, s.workflows.SendApproved},
		{workflow.NameCheckIn, s.cfg.CronCheckIn, s.workflows.CheckIn},
		{workflow.NameReEngagement, s.cfg.CronReEngagement, s.workflows.ReEngagement},
		{workflow.NameCleanup, s.cfg.CronCleanup, s.workflows.Cleanup},
	}
	for _, job := range jobs {
		job := job
		_, err := c.AddFunc(job.spec, func() {
			if err := job.run(ctx); err != nil {
				s.log.Errorf("Workflow %s failed: %v", job.name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("invalid cron spec for %s (%q): %w", job.name, job.spec, err)
		}
		s.log.Infof("Scheduled %s: %s", job.name, job.spec)
	}

	c.Start()
	s.log.Info("Scheduler started")

	<-ctx.Done()
	s.log.Info("Scheduler shutting down...")
	<-c.Stop().Done()
	return ctx.Err()
}

// cronLogger adapts logrus to the cron.Logger interface.
type cronLogger struct {
	log *logrus.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugf("cron: %s %v", msg, keysAndValues)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorf("cron: %s: %v %v", msg, err, keysAndValues)
}
