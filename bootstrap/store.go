package bootstrap

import (
	"context"

	"shiftsync/internal/infra/store"
	"shiftsync/internal/pkg/config"

	"go.uber.org/fx"
)

var StoreModule = fx.Module("store",
	fx.Provide(
		NewStore,
	),
)

func NewStore(lc fx.Lifecycle, cfg config.StoreConfig) (*store.DB, error) {
	db, err := store.Open(cfg.Path)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return db.Close()
		},
	})

	return db, nil
}
