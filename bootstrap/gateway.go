package bootstrap

import (
	"context"
	"log/slog"

	"shiftsync/internal/infra/api"
	"shiftsync/internal/infra/connectivity"
	"shiftsync/internal/pkg/config"
	syncuc "shiftsync/internal/usecase/sync"

	"go.uber.org/fx"
)

var GatewayModule = fx.Module("gateway",
	fx.Provide(
		api.NewClient,
		func(c *api.Client) syncuc.Gateway { return c },
		func(c *api.Client) connectivity.Checker { return c },
		NewMonitor,
	),
)

func NewMonitor(lc fx.Lifecycle, cfg config.ConnectivityConfig, checker connectivity.Checker, logger *slog.Logger) *connectivity.Monitor {
	monitor := connectivity.NewMonitor(cfg, checker, logger)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			monitor.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			monitor.Stop()
			return nil
		},
	})

	return monitor
}
