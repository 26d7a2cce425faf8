package bootstrap

import (
	"shiftsync/bootstrap/components"

	"go.uber.org/fx"
)

var Module = fx.Options(
	ConfigModule,
	LoggerModule,
	StoreModule,
	GatewayModule,
	components.RepositoryModule,
	components.UseCaseModule,
	SyncModule,
)
