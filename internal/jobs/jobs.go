// Package jobs runs the periodic maintenance of the hangout server.
package jobs

import (
	"context"
	"time"

	"github.com/anihangout/hangout/internal/application"
	"github.com/anihangout/hangout/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

type Cleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (application.CleanupResult, error)
}

type Scheduler struct {
	cron *cron.Cron
	log  logrus.FieldLogger
}

// Pruner is anything that forgets idle state, such as the rate limiter.
type Pruner interface {
	Prune(idle time.Duration) int
}

func NewScheduler(log logrus.FieldLogger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(cron.Recover(cronLogger{log}))),
		log:  log,
	}
}

// AddCleanup schedules c.Cleanup on spec, a cron expression or @every descriptor.
func (s *Scheduler) AddCleanup(spec string, c Cleaner, retention time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() { RunCleanup(context.Background(), c, retention, s.log) })
	return err
}

func (s *Scheduler) AddPrune(spec string, p Pruner, idle time.Duration) error {
	_, err := s.cron.AddFunc(spec, func() {
		if n := p.Prune(idle); n > 0 {
			s.log.WithField("removed", n).Debug("pruned idle rate limiters")
		}
	})
	return err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish or ctx to be done.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunCleanup performs one cleanup pass and records it.
func RunCleanup(ctx context.Context, c Cleaner, retention time.Duration, log logrus.FieldLogger) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	start := time.Now()
	res, err := c.Cleanup(ctx, retention)
	metrics.RecordJobRun("cleanup", time.Since(start), err == nil)
	if err != nil {
		log.WithError(err).Warn("cleanup failed")
		return
	}
	if res.Sessions+res.Typing+res.Notifications > 0 {
		log.WithFields(logrus.Fields{
			"sessions":      res.Sessions,
			"typing":        res.Typing,
			"notifications": res.Notifications,
		}).Info("cleanup")
	}
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	log logrus.FieldLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(kv []any) logrus.Fields {
	out := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out[k] = kv[i+1]
		}
	}
	return out
}
