// Package dedup marks near-duplicate charge submissions as voided.
//
// Retried or duplicate submissions from a payment gateway arrive seconds to
// minutes apart with adjacent source order ids; legitimate distinct renewals
// do not. Orders sharing the full duplicate-identity tuple are walked most
// recent first, anchored on a reference charge: anything inside the
// time/id window hangs off that anchor and is voided, anything outside
// becomes the new anchor.
package dedup

import (
	"context"
	"time"

	"github.com/osaio/orderfacts/internal/observability/metrics"
	orderdomain "github.com/osaio/orderfacts/internal/order/domain"
	"github.com/osaio/orderfacts/internal/writer"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// DuplicateWindow bounds the pay-time gap between an anchor and a
	// duplicate submission. Deliberately a separate constant from the
	// clusterer's event window even though both are one hour today.
	DuplicateWindow = time.Hour

	// MaxRawIDGap bounds the source order-id distance between an anchor
	// and a duplicate submission.
	MaxRawIDGap = 10
)

type Params struct {
	fx.In

	Orders orderdomain.Repository
	Writer *writer.Writer
	Log    *zap.Logger
}

type Service struct {
	orders orderdomain.Repository
	writer *writer.Writer
	log    *zap.Logger
}

func NewService(p Params) *Service {
	return &Service{
		orders: p.Orders,
		writer: p.Writer,
		log:    p.Log.Named("dedup"),
	}
}

// FindDuplicates returns the identifiers of orders that are redundant
// re-submissions of an anchor charge. Voiding is monotonic: already-voided
// rows never appear in the scan, so a rerun marks nothing twice.
func (s *Service) FindDuplicates(ctx context.Context) ([]string, error) {
	rows, err := s.orders.ListForDedup(ctx)
	if err != nil {
		return nil, err
	}

	var toVoid []string
	var reference orderdomain.Order

	for i, row := range rows {
		if i == 0 {
			reference = row
			continue
		}

		// Sort order guarantees identity groups are contiguous; a key
		// change or a miss against the anchor both promote this row.
		if row.DuplicateKey() != rows[i-1].DuplicateKey() || !isDuplicateOf(reference, row) {
			reference = row
			continue
		}
		toVoid = append(toVoid, row.OrderUUID)
	}

	s.log.Info("duplicate scan complete",
		zap.Int("orders_scanned", len(rows)),
		zap.Int("duplicates", len(toVoid)),
	)
	return toVoid, nil
}

// isDuplicateOf reports whether candidate is a re-submission of reference.
// Rows are ordered pay_time descending within a group, so the gap is
// non-negative. Missing timestamps disqualify the pair.
func isDuplicateOf(reference, candidate orderdomain.Order) bool {
	if reference.PayTime.IsZero() || candidate.PayTime.IsZero() {
		return false
	}
	timeGap := reference.PayTime.Sub(candidate.PayTime)
	idGap := reference.RawOrderID - candidate.RawOrderID
	if idGap < 0 {
		idGap = -idGap
	}
	return timeGap < DuplicateWindow && idGap < MaxRawIDGap
}

// Run finds duplicates and transitions them to voided status.
func (s *Service) Run(ctx context.Context) error {
	toVoid, err := s.FindDuplicates(ctx)
	if err != nil {
		return err
	}
	if len(toVoid) == 0 {
		return nil
	}

	applied, err := s.writer.MarkVoided(ctx, toVoid)
	metrics.Jobs().AddOrdersVoided(applied)
	if err != nil {
		return err
	}
	s.log.Info("duplicates voided", zap.Int("rows", applied))
	return nil
}
