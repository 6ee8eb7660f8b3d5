package verifier

import "go.uber.org/fx"

var Module = fx.Module("verifier",
	fx.Provide(NewSourceRepository),
	fx.Provide(NewService),
)
