package recompute

import "go.uber.org/fx"

var Module = fx.Module("recompute",
	fx.Provide(NewRedisClient),
	fx.Provide(NewLocker),
	fx.Provide(New),
)
