// Package recompute orchestrates one full reconciliation run: duplicate
// voiding first, then sequence/plan backfill over the survivors, then the
// optional enrichment and verification passes.
package recompute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/osaio/orderfacts/internal/clock"
	"github.com/osaio/orderfacts/internal/config"
	"github.com/osaio/orderfacts/internal/dedup"
	obscontext "github.com/osaio/orderfacts/internal/observability/context"
	"github.com/osaio/orderfacts/internal/observability/metrics"
	"github.com/osaio/orderfacts/internal/planperiod"
	"github.com/osaio/orderfacts/internal/sequence"
	"github.com/osaio/orderfacts/internal/verifier"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Config     config.Config
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Locker     *Locker `optional:"true"`
	Dedup      *dedup.Service
	Sequence   *sequence.Service
	PlanPeriod *planperiod.Service
	Verifier   *verifier.Service
}

type Runner struct {
	cfg        config.Config
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	locker     *Locker
	dedup      *dedup.Service
	sequence   *sequence.Service
	planPeriod *planperiod.Service
	verifier   *verifier.Service
}

func New(p Params) *Runner {
	return &Runner{
		cfg:        p.Config,
		log:        p.Log.Named("recompute"),
		genID:      p.GenID,
		clock:      p.Clock,
		locker:     p.Locker,
		dedup:      p.Dedup,
		sequence:   p.Sequence,
		planPeriod: p.PlanPeriod,
		verifier:   p.Verifier,
	}
}

type job struct {
	name    string
	enabled bool
	fn      func(context.Context) error
}

// Run executes the enabled reconciliation jobs in dependency order. The
// first failing job aborts the run; committed chunks stay committed and a
// rerun converges because every job recomputes from current state.
func (r *Runner) Run(ctx context.Context) error {
	runID := r.genID.Generate().String()
	ctx = obscontext.WithRunID(ctx, runID)
	log := r.log.With(zap.String("run_id", runID))

	token, acquired, err := r.locker.TryLock(ctx, r.cfg.LockTTL)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		log.Warn("skipping run, lock held by another writer")
		return ErrRunInProgress
	}
	defer func() {
		if err := r.locker.Release(context.WithoutCancel(ctx), token); err != nil {
			log.Warn("release run lock", zap.Error(err))
		}
	}()

	start := r.clock.Now()
	log.Info("recompute run starting")

	jobs := []job{
		{name: "dedup", enabled: r.cfg.RunDedup, fn: r.dedup.Run},
		{name: "sequence", enabled: r.cfg.RunSequence, fn: r.sequence.Run},
		{name: "plan_enrich", enabled: r.cfg.RunPlanEnrich, fn: r.runPlanEnrich},
		{name: "plan_keyword", enabled: r.cfg.RunKeywordPass, fn: r.runKeywordPass},
		{name: "verify", enabled: r.cfg.RunVerifier, fn: r.verifier.Run},
	}

	for _, j := range jobs {
		if !j.enabled {
			continue
		}
		if err := r.runJob(ctx, j.name, r.cfg.JobTimeout, j.fn); err != nil {
			log.Error("recompute run aborted",
				zap.String("failed_job", j.name),
				zap.Duration("elapsed", r.clock.Now().Sub(start)),
				zap.Error(err),
			)
			return fmt.Errorf("job %s: %w", j.name, err)
		}
	}

	log.Info("recompute run complete", zap.Duration("elapsed", r.clock.Now().Sub(start)))
	return nil
}

func (r *Runner) runJob(parent context.Context, name string, timeout time.Duration, fn func(context.Context) error) error {
	start := r.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()
	ctx = obscontext.WithJob(ctx, name)

	jobMetrics := metrics.Jobs()
	jobMetrics.IncJobRun(name)
	log := r.log.With(zap.String("job", name))
	log.Info("job starting")

	err := fn(ctx)
	elapsed := time.Since(start)
	jobMetrics.ObserveJobDuration(name, elapsed)
	if err == nil {
		log.Info("job complete", zap.Duration("elapsed", elapsed))
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		jobMetrics.IncJobTimeout(name)
		log.Warn("job timed out", zap.Duration("timeout", timeout), zap.Error(err))
	}
	jobMetrics.IncJobError(name, err)
	return err
}

func (r *Runner) runPlanEnrich(ctx context.Context) error {
	missing, err := r.planPeriod.EnrichFromPlanDim(ctx)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		r.log.Warn("plan keys missing from dimension", zap.Strings("plan_keys", missing))
	}
	return nil
}

func (r *Runner) runKeywordPass(ctx context.Context) error {
	unknown, err := r.planPeriod.ClassifyByProductName(ctx)
	if err != nil {
		return err
	}
	if len(unknown) > 0 {
		r.log.Warn("product names need manual classification", zap.Strings("product_names", unknown))
	}
	return nil
}
