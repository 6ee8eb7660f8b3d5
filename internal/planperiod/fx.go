package planperiod

import "go.uber.org/fx"

var Module = fx.Module("planperiod",
	fx.Provide(NewService),
)
