// Package writer applies computed corrections back to the fact table in
// bounded, committed chunks. A failure mid-run leaves earlier chunks
// committed; reruns are safe because corrections are recomputed from the
// same inputs.
package writer

import (
	"context"
	"fmt"

	"github.com/osaio/orderfacts/internal/config"
	obscontext "github.com/osaio/orderfacts/internal/observability/context"
	"github.com/osaio/orderfacts/internal/observability/metrics"
	orderdomain "github.com/osaio/orderfacts/internal/order/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultVoidChunkSize       = 2000
	defaultCorrectionChunkSize = 5000
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Config config.Config
}

type Writer struct {
	db              *gorm.DB
	log             *zap.Logger
	voidChunk       int
	correctionChunk int
}

func New(p Params) *Writer {
	voidChunk := p.Config.VoidChunkSize
	if voidChunk <= 0 {
		voidChunk = defaultVoidChunkSize
	}
	correctionChunk := p.Config.CorrectionChunkSize
	if correctionChunk <= 0 {
		correctionChunk = defaultCorrectionChunkSize
	}
	return &Writer{
		db:              p.DB,
		log:             p.Log.Named("writer"),
		voidChunk:       voidChunk,
		correctionChunk: correctionChunk,
	}
}

// MarkVoided transitions the given orders to voided status. Returns the
// number of rows updated before any error.
func (w *Writer) MarkVoided(ctx context.Context, orderUUIDs []string) (int, error) {
	applied := 0
	err := w.inChunks(ctx, len(orderUUIDs), w.voidChunk, func(tx *gorm.DB, lo, hi int) error {
		for _, uuid := range orderUUIDs[lo:hi] {
			if err := tx.Exec(
				`UPDATE fact_orders SET status = ? WHERE order_uuid = ?`,
				orderdomain.StatusVoided, uuid,
			).Error; err != nil {
				return err
			}
		}
		applied = hi
		return nil
	})
	return applied, err
}

// ApplyCorrections writes paid_sequence and plan_p_type assignments.
func (w *Writer) ApplyCorrections(ctx context.Context, corrections []orderdomain.Correction) (int, error) {
	applied := 0
	err := w.inChunks(ctx, len(corrections), w.correctionChunk, func(tx *gorm.DB, lo, hi int) error {
		for _, c := range corrections[lo:hi] {
			if err := tx.Exec(
				`UPDATE fact_orders SET paid_sequence = ?, plan_p_type = ? WHERE order_uuid = ?`,
				c.PaidSequence, c.PlanPeriodType, c.OrderUUID,
			).Error; err != nil {
				return err
			}
		}
		applied = hi
		return nil
	})
	return applied, err
}

// ApplySequences writes paid_sequence only, leaving plan type untouched.
func (w *Writer) ApplySequences(ctx context.Context, corrections []orderdomain.SequenceCorrection) (int, error) {
	applied := 0
	err := w.inChunks(ctx, len(corrections), w.voidChunk, func(tx *gorm.DB, lo, hi int) error {
		for _, c := range corrections[lo:hi] {
			if err := tx.Exec(
				`UPDATE fact_orders SET paid_sequence = ? WHERE order_uuid = ?`,
				c.PaidSequence, c.OrderUUID,
			).Error; err != nil {
				return err
			}
		}
		applied = hi
		return nil
	})
	return applied, err
}

// ApplyPlanTypes writes plan_p_type only.
func (w *Writer) ApplyPlanTypes(ctx context.Context, corrections []orderdomain.PlanTypeCorrection) (int, error) {
	applied := 0
	err := w.inChunks(ctx, len(corrections), w.correctionChunk, func(tx *gorm.DB, lo, hi int) error {
		for _, c := range corrections[lo:hi] {
			if err := tx.Exec(
				`UPDATE fact_orders SET plan_p_type = ? WHERE order_uuid = ?`,
				c.PlanPeriodType, c.OrderUUID,
			).Error; err != nil {
				return err
			}
		}
		applied = hi
		return nil
	})
	return applied, err
}

// inChunks runs fn over [lo, hi) index windows of size chunk, one committed
// transaction per window. The first failing chunk aborts the remainder.
func (w *Writer) inChunks(ctx context.Context, total, chunk int, fn func(tx *gorm.DB, lo, hi int) error) error {
	if total == 0 {
		return nil
	}
	job := obscontext.JobFromContext(ctx)

	for lo := 0; lo < total; lo += chunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := lo + chunk
		if hi > total {
			hi = total
		}
		err := w.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(tx, lo, hi)
		})
		if err != nil {
			return fmt.Errorf("write chunk [%d:%d): %w", lo, hi, err)
		}
		metrics.Jobs().IncChunkCommitted(job)
		w.log.Debug("chunk committed",
			zap.String("job", job),
			zap.Int("from", lo),
			zap.Int("to", hi),
		)
	}
	return nil
}
