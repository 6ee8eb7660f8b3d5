package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/osaio/orderfacts/internal/clock"
	"github.com/osaio/orderfacts/internal/config"
	"github.com/osaio/orderfacts/internal/dedup"
	"github.com/osaio/orderfacts/internal/migration"
	"github.com/osaio/orderfacts/internal/observability"
	"github.com/osaio/orderfacts/internal/order"
	"github.com/osaio/orderfacts/internal/planperiod"
	"github.com/osaio/orderfacts/internal/recompute"
	"github.com/osaio/orderfacts/internal/sequence"
	"github.com/osaio/orderfacts/internal/subscription"
	"github.com/osaio/orderfacts/internal/verifier"
	"github.com/osaio/orderfacts/internal/writer"
	"github.com/osaio/orderfacts/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		order.Module,
		subscription.Module,
		writer.Module,
		dedup.Module,
		sequence.Module,
		planperiod.Module,
		verifier.Module,
		recompute.Module,

		fx.Invoke(RunOnce),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// RunOnce executes a single recompute run and shuts the app down. The job
// is batch; there is no serving loop to keep alive.
func RunOnce(lc fx.Lifecycle, shutdowner fx.Shutdowner, runner *recompute.Runner, log *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := runner.Run(context.Background()); err != nil {
					log.Error("recompute run failed", zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
					return
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
	})
}
