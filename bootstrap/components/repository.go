package components

import (
	"shiftsync/internal/infra/store"
	"shiftsync/internal/usecase/commands"
	"shiftsync/internal/usecase/queries"
	syncuc "shiftsync/internal/usecase/sync"

	"go.uber.org/fx"
)

var RepositoryModule = fx.Module("repository",
	fx.Provide(
		fx.Annotate(
			store.NewRequestRepository,
			fx.As(new(commands.RequestRepository)),
			fx.As(new(syncuc.RequestRepository)),
			fx.As(new(queries.ReadRepository)),
		),
		fx.Annotate(
			store.NewQueueRepository,
			fx.As(new(commands.QueueRepository)),
			fx.As(new(syncuc.QueueRepository)),
			fx.As(new(queries.QueueReadRepository)),
		),
		fx.Annotate(
			store.NewSyncStateRepository,
			fx.As(new(syncuc.CursorRepository)),
		),
	),
)
