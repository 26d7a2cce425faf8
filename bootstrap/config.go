package bootstrap

import (
	"shiftsync/internal/pkg/config"

	"go.uber.org/fx"
)

var ConfigModule = fx.Module("config",
	fx.Provide(
		config.LoadConfig,
		func(cfg config.Config) config.APIConfig { return cfg.API },
		func(cfg config.Config) config.StoreConfig { return cfg.Store },
		func(cfg config.Config) config.SyncConfig { return cfg.Sync },
		func(cfg config.Config) config.ConnectivityConfig { return cfg.Connectivity },
		func(cfg config.Config) config.CoverageConfig { return cfg.Coverage },
	),
)
