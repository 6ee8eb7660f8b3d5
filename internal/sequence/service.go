// Package sequence reconstructs, per subscription, the ordinal position of
// each real charge and the billing-cycle length it implies.
//
// Surviving orders are grouped by subscription key and folded in pay-time
// order. Orders within an hour of the current anchor belong to the same
// billing event (gateway retries split one renewal across rows); a larger
// gap starts the next event and advances the sequence. The 32-day grace
// window absorbs billing-date jitter for monthly cycles, and the 365-day
// step converts an elapsed-days gap into a count of annual renewals,
// covering subscriptions that lapsed and resumed.
package sequence

import (
	"context"
	"time"

	"github.com/osaio/orderfacts/internal/observability/metrics"
	orderdomain "github.com/osaio/orderfacts/internal/order/domain"
	subscriptiondomain "github.com/osaio/orderfacts/internal/subscription/domain"
	"github.com/osaio/orderfacts/internal/writer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// EventWindow is the clustering window: orders closer than this to the
	// event anchor are retries of the same renewal. Kept separate from the
	// dedup window; the two are tuned independently.
	EventWindow = time.Hour

	// graceDays absorbs billing-date jitter around the first cycle.
	graceDays = 32

	// yearCycleDays steps elapsed days beyond the grace window into a
	// count of annual renewals.
	yearCycleDays = 365
)

const jobName = "sequence"

type Params struct {
	fx.In

	Orders        orderdomain.Repository
	Subscriptions subscriptiondomain.Repository
	Writer        *writer.Writer
	Log           *zap.Logger
}

type Service struct {
	orders orderdomain.Repository
	subs   subscriptiondomain.Repository
	writer *writer.Writer
	log    *zap.Logger
}

func NewService(p Params) *Service {
	return &Service{
		orders: p.Orders,
		subs:   p.Subscriptions,
		writer: p.Writer,
		log:    p.Log.Named("sequence"),
	}
}

// Report surfaces subscriptions the classifier could not fully resolve.
// Nothing in it is guessed at; the rows keep their current values.
type Report struct {
	// NoStartTime lists subscription keys absent from the start-time index.
	NoStartTime []string
	// Unclassified lists subscription keys whose plan period type remained
	// empty after classification.
	Unclassified []string
}

// groupState is the fold accumulator carried across one subscription's
// time-ordered orders.
type groupState struct {
	anchorTime time.Time
	runningSeq int32
	planType   string
}

// ComputeCorrections derives a (paid_sequence, plan_period_type) assignment
// for every eligible order, grouped by subscription.
func (s *Service) ComputeCorrections(ctx context.Context) ([]orderdomain.Correction, *Report, error) {
	startTimes, err := s.subs.LoadStartTimes(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("loaded subscription start times", zap.Int("subscriptions", len(startTimes)))

	rows, err := s.orders.ListForSequencing(ctx)
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("loaded orders for sequencing", zap.Int("orders", len(rows)))

	var corrections []orderdomain.Correction
	report := &Report{}

	// Rows arrive sorted by subscription_key, pay_time; groups are
	// contiguous slices.
	for lo := 0; lo < len(rows); {
		hi := lo + 1
		for hi < len(rows) && rows[hi].SubscriptionKey == rows[lo].SubscriptionKey {
			hi++
		}
		group := rows[lo:hi]

		start, hasStart := startTimes[group[0].SubscriptionKey]
		if !hasStart {
			report.NoStartTime = append(report.NoStartTime, group[0].SubscriptionKey)
		}

		groupCorrections, planType := processGroup(group, start, hasStart)
		corrections = append(corrections, groupCorrections...)
		if planType == orderdomain.PlanPeriodUnknown {
			report.Unclassified = append(report.Unclassified, group[0].SubscriptionKey)
		}

		lo = hi
	}

	metrics.Jobs().AddUnresolved(jobName, "no_start_time", len(report.NoStartTime))
	metrics.Jobs().AddUnresolved(jobName, "plan_type_unclassified", len(report.Unclassified))
	return corrections, report, nil
}

// processGroup folds one subscription's orders into corrections and returns
// the plan period type the group resolved to (empty when unclassified).
func processGroup(group []orderdomain.Order, start time.Time, hasStart bool) ([]orderdomain.Correction, string) {
	if len(group) == 1 {
		c := classifySingle(group[0], start, hasStart)
		return []orderdomain.Correction{c}, c.PlanPeriodType
	}

	first := classifyFirst(group, start, hasStart)
	corrections := make([]orderdomain.Correction, 0, len(group))
	corrections = append(corrections, first)

	state := groupState{
		anchorTime: group[0].PayTime,
		runningSeq: first.PaidSequence,
		planType:   first.PlanPeriodType,
	}
	for _, o := range group[1:] {
		gap := o.PayTime.Sub(state.anchorTime)
		if gap >= EventWindow {
			// New billing event: advance the sequence and re-anchor.
			state.runningSeq++
			state.anchorTime = o.PayTime
		}
		corrections = append(corrections, orderdomain.Correction{
			PaidSequence:   state.runningSeq,
			PlanPeriodType: state.planType,
			OrderUUID:      o.OrderUUID,
		})
	}
	return corrections, state.planType
}

// classifySingle resolves a subscription represented by one surviving order.
func classifySingle(o orderdomain.Order, start time.Time, hasStart bool) orderdomain.Correction {
	seq := o.PaidSequence
	planType := o.PlanPeriodType

	if hasStart {
		if d := daysBetween(start, o.PayTime); d <= graceDays {
			seq = 1
		} else {
			seq = elapsedSequence(d)
			if planType == orderdomain.PlanPeriodUnknown {
				planType = orderdomain.PlanPeriodYear
			}
		}
	} else if seq == 0 {
		seq = 1
	}

	return orderdomain.Correction{
		PaidSequence:   seq,
		PlanPeriodType: planType,
		OrderUUID:      o.OrderUUID,
	}
}

// classifyFirst resolves the first order of a multi-order group. When the
// sequence is already set it only fills in a missing plan type; the forward
// scan never touches the sequence in that case.
func classifyFirst(group []orderdomain.Order, start time.Time, hasStart bool) orderdomain.Correction {
	first := group[0]
	seq := first.PaidSequence
	planType := first.PlanPeriodType

	if seq == 0 {
		if hasStart {
			if d := daysBetween(start, first.PayTime); d <= graceDays {
				seq = 1
				if planType == orderdomain.PlanPeriodUnknown {
					planType = scanForPlanType(group)
				}
			} else {
				seq = elapsedSequence(d)
				if planType == orderdomain.PlanPeriodUnknown {
					planType = orderdomain.PlanPeriodYear
				}
			}
		}
	} else if planType == orderdomain.PlanPeriodUnknown {
		planType = scanForPlanType(group)
	}

	return orderdomain.Correction{
		PaidSequence:   seq,
		PlanPeriodType: planType,
		OrderUUID:      first.OrderUUID,
	}
}

// scanForPlanType walks forward from the first order to the first one at
// least an event window away and classifies the cycle length from that gap.
// No qualifying gap leaves the plan type empty; ambiguity is reported, not
// guessed.
func scanForPlanType(group []orderdomain.Order) string {
	first := group[0]
	for _, next := range group[1:] {
		if next.PayTime.Sub(first.PayTime) < EventWindow {
			continue
		}
		if daysBetween(first.PayTime, next.PayTime) > graceDays {
			return orderdomain.PlanPeriodYear
		}
		return orderdomain.PlanPeriodMonth
	}
	return orderdomain.PlanPeriodUnknown
}

// elapsedSequence converts whole days since the subscription start into a
// 1-based sequence: the first cycle plus one annual renewal per 365-day
// step beyond the grace window.
func elapsedSequence(days int) int32 {
	return int32(2 + (days-graceDays)/yearCycleDays)
}

// daysBetween returns whole elapsed days from a to b, flooring toward
// negative infinity so a payment slightly before the recorded start still
// lands in the first-cycle branch.
func daysBetween(a, b time.Time) int {
	d := b.Sub(a)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return days
}

// Run computes and persists sequence/plan corrections for all orders.
func (s *Service) Run(ctx context.Context) error {
	corrections, report, err := s.ComputeCorrections(ctx)
	if err != nil {
		return err
	}

	applied, err := s.writer.ApplyCorrections(ctx, corrections)
	metrics.Jobs().AddRowsCorrected(jobName, applied)
	if err != nil {
		return err
	}

	s.log.Info("sequence backfill complete",
		zap.Int("corrections", applied),
		zap.Int("subscriptions_without_start_time", len(report.NoStartTime)),
		zap.Int("subscriptions_unclassified", len(report.Unclassified)),
	)
	return nil
}
