package bootstrap

import (
	"context"
	"log/slog"

	"shiftsync/internal/infra/connectivity"
	"shiftsync/internal/pkg/config"
	syncuc "shiftsync/internal/usecase/sync"

	"go.uber.org/fx"
)

var SyncModule = fx.Module("sync",
	fx.Provide(
		syncuc.NewLogNotifier,
		syncuc.NewReconciler,
		NewRunner,
	),
)

func NewRunner(
	lc fx.Lifecycle,
	reconciler *syncuc.Reconciler,
	monitor *connectivity.Monitor,
	cfg config.SyncConfig,
	logger *slog.Logger,
) *syncuc.Runner {
	runner := syncuc.NewRunner(reconciler, monitor, cfg.PullInterval, logger)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			runner.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			runner.Stop()
			return nil
		},
	})

	return runner
}
