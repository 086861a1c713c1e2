package daemon

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/Sectonic/Automation/internal/config"
	appLog "github.com/Sectonic/Automation/internal/log"
	"github.com/Sectonic/Automation/internal/model"
	"github.com/Sectonic/Automation/internal/sync"
)

// Daemon runs the email and canvas sync flows on cron schedules.
type Daemon struct {
	Email    *sync.EmailSync
	Canvas   *sync.CanvasSync
	Schedule config.ScheduleConfig
	LockPath string
}

// Run registers the jobs and blocks until ctx is canceled. A job error
// terminates only that invocation; the schedule keeps running.
func (d *Daemon) Run(ctx context.Context) error {
	c := cron.New()

	if d.Email != nil {
		if _, err := c.AddFunc(d.Schedule.Morning, d.emailJob(ctx, model.CycleMorning)); err != nil {
			return err
		}
		if _, err := c.AddFunc(d.Schedule.Evening, d.emailJob(ctx, model.CycleEvening)); err != nil {
			return err
		}
	}
	if d.Canvas != nil {
		if _, err := c.AddFunc(d.Schedule.Canvas, d.canvasJob(ctx)); err != nil {
			return err
		}
	}

	appLog.Info("daemon started",
		"morning", d.Schedule.Morning,
		"evening", d.Schedule.Evening,
		"canvas", d.Schedule.Canvas)

	c.Start()
	<-ctx.Done()

	stopped := c.Stop()
	<-stopped.Done()

	appLog.Info("daemon stopped")
	return nil
}

func (d *Daemon) emailJob(ctx context.Context, cycle model.Cycle) func() {
	return func() {
		d.withLock(func() {
			if err := d.Email.Run(ctx, cycle); err != nil {
				appLog.Error("scheduled email cycle failed", err, "cycle", cycle)
			}
		})
	}
}

func (d *Daemon) canvasJob(ctx context.Context) func() {
	return func() {
		d.withLock(func() {
			if err := d.Canvas.Run(ctx); err != nil {
				appLog.Error("scheduled canvas sync failed", err)
			}
		})
	}
}

// withLock serializes job bodies behind the shared file lock so
// overlapping schedules never interleave tracker writes.
func (d *Daemon) withLock(fn func()) {
	unlock, err := lockFile(d.LockPath)
	if err != nil {
		appLog.Error("could not acquire cycle lock", err, "path", d.LockPath)
		return
	}
	defer func() {
		if err := unlock(); err != nil {
			appLog.Error("could not release cycle lock", err, "path", d.LockPath)
		}
	}()
	fn()
}
