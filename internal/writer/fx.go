package writer

import "go.uber.org/fx"

var Module = fx.Module("writer",
	fx.Provide(New),
)
