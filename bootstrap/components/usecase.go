package components

import (
	"shiftsync/internal/domain/coverage"
	"shiftsync/internal/pkg/clock"
	"shiftsync/internal/pkg/config"
	"shiftsync/internal/usecase/commands"
	"shiftsync/internal/usecase/queries"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	fx.Provide(
		clock.NewRealClock,
		func(cfg config.CoverageConfig) *coverage.Advisor {
			return coverage.NewAdvisor(cfg.MinimumStaff)
		},
		commands.NewActionCommands,
		commands.NewBulkProcessor,
		queries.NewRequestQueries,
	),
)
