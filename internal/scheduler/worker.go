package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/smallbiznis/leasecore/internal/clock"
	"github.com/smallbiznis/leasecore/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// sweepTimeout caps a single sweep run.
const sweepTimeout = 30 * time.Minute

// Worker runs the sweep on the configured cron schedule.
type Worker struct {
	scheduler *Scheduler
	log       *zap.Logger
	clock     clock.Clock
	spec      string
	cron      *cron.Cron
}

type WorkerParams struct {
	fx.In

	Scheduler *Scheduler
	Log       *zap.Logger
	Clock     clock.Clock
	Config    config.Config
}

func NewWorker(p WorkerParams) *Worker {
	spec := p.Config.Scheduler.CronSpec
	if spec == "" {
		spec = "@hourly"
	}
	log := p.Log.Named("scheduler.worker")
	return &Worker{
		scheduler: p.Scheduler,
		log:       log,
		clock:     p.Clock,
		spec:      spec,
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
	}
}

// Start registers the sweep and starts the cron loop in the background.
func (w *Worker) Start() error {
	if _, err := w.cron.AddFunc(w.spec, func() {
		if err := w.RunOnce(); err != nil {
			w.log.Warn("sweep run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}
	w.cron.Start()
	w.log.Info("scheduler started", zap.String("schedule", w.spec))
	return nil
}

// Stop waits for a running sweep to finish or ctx to expire.
func (w *Worker) Stop(ctx context.Context) error {
	done := w.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce performs one sweep as of the current date.
func (w *Worker) RunOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	_, err := w.scheduler.Sweep(ctx, clock.Today(w.clock))
	return err
}
