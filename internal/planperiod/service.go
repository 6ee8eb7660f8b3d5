// Package planperiod fills in plan_p_type from signals outside the timing
// heuristics: product-name keywords and the plan dimension table. Names and
// keys that match nothing are reported for manual review, never guessed.
package planperiod

import (
	"context"
	"sort"
	"strings"

	"github.com/osaio/orderfacts/internal/observability/metrics"
	orderdomain "github.com/osaio/orderfacts/internal/order/domain"
	"github.com/osaio/orderfacts/internal/writer"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	keywordJobName = "plan_keyword"
	enrichJobName  = "plan_enrich"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Orders orderdomain.Repository
	Writer *writer.Writer
	Log    *zap.Logger
}

type Service struct {
	db     *gorm.DB
	orders orderdomain.Repository
	writer *writer.Writer
	log    *zap.Logger
}

func NewService(p Params) *Service {
	return &Service{
		db:     p.DB,
		orders: p.Orders,
		writer: p.Writer,
		log:    p.Log.Named("planperiod"),
	}
}

// FromProductName maps a product name to a plan period type. The keyword
// precedence is deliberate: "monthly" wins even when a name also mentions
// an annual upgrade path.
func FromProductName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.Contains(name, "monthly"):
		return orderdomain.PlanPeriodMonth
	case strings.Contains(name, "annually"),
		strings.Contains(name, "yearly"),
		strings.Contains(name, "annual"),
		strings.Contains(name, "per year"):
		return orderdomain.PlanPeriodYear
	case strings.Contains(name, "half-year"):
		return orderdomain.PlanPeriodHalfYear
	default:
		return orderdomain.PlanPeriodUnknown
	}
}

// ClassifyByProductName assigns plan period types from product-name
// keywords and returns the distinct product names it could not classify.
func (s *Service) ClassifyByProductName(ctx context.Context) ([]string, error) {
	rows, err := s.orders.ListNamedProducts(ctx)
	if err != nil {
		return nil, err
	}

	var corrections []orderdomain.PlanTypeCorrection
	unknown := map[string]struct{}{}

	for _, row := range rows {
		planType := FromProductName(row.ProductName)
		if planType == orderdomain.PlanPeriodUnknown {
			unknown[row.ProductName] = struct{}{}
			continue
		}
		corrections = append(corrections, orderdomain.PlanTypeCorrection{
			PlanPeriodType: planType,
			OrderUUID:      row.OrderUUID,
		})
	}

	applied, err := s.writer.ApplyPlanTypes(ctx, corrections)
	metrics.Jobs().AddRowsCorrected(keywordJobName, applied)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(unknown))
	for name := range unknown {
		names = append(names, name)
	}
	sort.Strings(names)
	metrics.Jobs().AddUnresolved(keywordJobName, "unknown_product_name", len(names))

	s.log.Info("product-name classification complete",
		zap.Int("classified", applied),
		zap.Int("unknown_names", len(names)),
	)
	return names, nil
}

// EnrichFromPlanDim bulk-updates plan period type and cycle for every order
// whose plan key exists in the plan dimension, one update per distinct key.
// Returns the plan keys present on orders but missing from the dimension.
func (s *Service) EnrichFromPlanDim(ctx context.Context) ([]string, error) {
	var plans []Plan
	if err := s.db.WithContext(ctx).Raw(
		`SELECT plan_key, time_unit, cycle_time FROM dim_plans`,
	).Scan(&plans).Error; err != nil {
		return nil, err
	}
	planByKey := make(map[string]Plan, len(plans))
	for _, p := range plans {
		planByKey[p.PlanKey] = p
	}
	s.log.Info("loaded plan dimension", zap.Int("plans", len(planByKey)))

	orderKeys, err := s.orders.DistinctPlanKeys(ctx)
	if err != nil {
		return nil, err
	}

	var missing []string
	updated := 0
	for _, key := range orderKeys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plan, ok := planByKey[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		err := s.db.WithContext(ctx).Exec(
			`UPDATE fact_orders SET plan_p_type = ?, plan_p_cycle = ?
			 WHERE plan_key = ? AND cny_amount > 0`,
			plan.TimeUnit, plan.CycleTime, key,
		).Error
		if err != nil {
			return nil, err
		}
		updated++
	}

	sort.Strings(missing)
	metrics.Jobs().AddRowsCorrected(enrichJobName, updated)
	metrics.Jobs().AddUnresolved(enrichJobName, "missing_plan_key", len(missing))

	s.log.Info("plan dimension enrichment complete",
		zap.Int("plans_applied", updated),
		zap.Int("missing_plan_keys", len(missing)),
	)
	return missing, nil
}
