// Package verifier re-derives paid_sequence for a bounded time window by
// replaying each subscription's authoritative source history instead of
// trusting the fact table's own heuristics. Used for auditing the clusterer
// or targeted correction of a suspect window.
package verifier

import (
	"context"
	"time"

	"github.com/osaio/orderfacts/internal/config"
	"github.com/osaio/orderfacts/internal/observability/metrics"
	orderdomain "github.com/osaio/orderfacts/internal/order/domain"
	"github.com/osaio/orderfacts/internal/writer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// MatchTolerance bounds how far a fact-table pay time may drift from the
// matching source record. Source systems stamp in their own clocks, so
// exact equality is not expected.
const MatchTolerance = time.Hour

const jobName = "verify"

type Params struct {
	fx.In

	Orders orderdomain.Repository
	Source SourceRepository
	Writer *writer.Writer
	Config config.Config
	Log    *zap.Logger
}

type Service struct {
	orders orderdomain.Repository
	source SourceRepository
	writer *writer.Writer
	cfg    config.Config
	log    *zap.Logger
}

func NewService(p Params) *Service {
	return &Service{
		orders: p.Orders,
		source: p.Source,
		writer: p.Writer,
		cfg:    p.Config,
		log:    p.Log.Named("verifier"),
	}
}

// Result reports what the verification pass resolved and what it left alone.
type Result struct {
	Corrections []orderdomain.SequenceCorrection
	// Unmatched lists orders with no source record within tolerance; their
	// stored sequence is left as-is.
	Unmatched []string
	// Skipped lists orders whose source history could not be consulted
	// (unusable app/region mapping or a source query failure).
	Skipped []string
}

// VerifyWindow recomputes paid_sequence for eligible orders paying inside
// [from, to]. The 1-based position of the closest-in-time source record
// within tolerance becomes the verified sequence. Per-subscription history
// is fetched once and reused across targets in the same window.
func (s *Service) VerifyWindow(ctx context.Context, from, to time.Time) (*Result, error) {
	targets, err := s.orders.ListWindowTargets(ctx, from, to)
	if err != nil {
		return nil, err
	}
	s.log.Info("loaded verification targets",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("targets", len(targets)),
	)

	result := &Result{}
	historyCache := map[string][]SourceCharge{}

	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		history, ok := historyCache[target.SubscriptionKey]
		if !ok {
			history, err = s.source.History(ctx, target.AppKey, target.RegionKey, target.SubscriptionKey)
			if err != nil {
				s.log.Warn("source history unavailable",
					zap.String("subscription_key", target.SubscriptionKey),
					zap.String("app_key", target.AppKey),
					zap.String("region_key", target.RegionKey),
					zap.Error(err),
				)
				history = nil
			}
			historyCache[target.SubscriptionKey] = history
		}
		if len(history) == 0 {
			result.Skipped = append(result.Skipped, target.OrderUUID)
			continue
		}

		rank := matchRank(history, target.PayTime)
		if rank == 0 {
			result.Unmatched = append(result.Unmatched, target.OrderUUID)
			continue
		}
		result.Corrections = append(result.Corrections, orderdomain.SequenceCorrection{
			PaidSequence: rank,
			OrderUUID:    target.OrderUUID,
		})
	}

	metrics.Jobs().AddUnresolved(jobName, "no_source_match", len(result.Unmatched))
	metrics.Jobs().AddUnresolved(jobName, "source_unavailable", len(result.Skipped))
	return result, nil
}

// matchRank returns the 1-based position of the source record closest in
// time to target within tolerance, or 0 when none qualifies. History is
// sorted ascending, so the scan stops once records move out of reach.
func matchRank(history []SourceCharge, target time.Time) int32 {
	best := 0
	bestDiff := time.Duration(-1)

	for i, src := range history {
		srcTime := time.Unix(src.PayTime, 0).UTC()
		diff := srcTime.Sub(target)
		if diff < 0 {
			diff = -diff
		}
		if diff < MatchTolerance && (bestDiff < 0 || diff < bestDiff) {
			best = i + 1
			bestDiff = diff
		}
		if srcTime.After(target.Add(MatchTolerance)) {
			break
		}
	}
	return int32(best)
}

// Run verifies the configured window and persists resolved sequences.
func (s *Service) Run(ctx context.Context) error {
	result, err := s.VerifyWindow(ctx, s.cfg.VerifyFrom, s.cfg.VerifyTo)
	if err != nil {
		return err
	}

	applied, err := s.writer.ApplySequences(ctx, result.Corrections)
	metrics.Jobs().AddRowsCorrected(jobName, applied)
	if err != nil {
		return err
	}

	s.log.Info("verification complete",
		zap.Int("verified", applied),
		zap.Int("unmatched", len(result.Unmatched)),
		zap.Int("skipped", len(result.Skipped)),
	)
	return nil
}
