package scheduler

import (
	"context"

	"github.com/smallbiznis/leasecore/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(New),
)

// WorkerModule runs the sweep on a cron schedule for the lifetime of the app.
var WorkerModule = fx.Module("scheduler.worker",
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, cfg config.Config, worker *Worker) {
	if !cfg.Scheduler.Enabled {
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return worker.Start()
		},
		OnStop: worker.Stop,
	})
}
