package verifier

import (
	"context"
	"fmt"
	"regexp"

	"github.com/osaio/orderfacts/internal/config"
	"gorm.io/gorm"
)

// SourceCharge is one authoritative payment record from a source billing
// system. PayTime is unix seconds, as stored upstream.
type SourceCharge struct {
	ID      int64 `gorm:"column:id"`
	PayTime int64 `gorm:"column:pay_time"`
}

// SourceRepository replays a subscription's payment history from the
// per-app/per-region source table, filtered to valid, non-test charges and
// ordered by pay time.
type SourceRepository interface {
	History(ctx context.Context, appKey, regionKey, subscriptionKey string) ([]SourceCharge, error)
}

// Payment types excluded from the authoritative history (free grants and
// internal adjustments that never hit the gateway).
var excludedPayTypes = []int{0, 5}

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

type sourceRepo struct {
	db     *gorm.DB
	schema string
}

func NewSourceRepository(db *gorm.DB, cfg config.Config) SourceRepository {
	return &sourceRepo{db: db, schema: cfg.SourceSchema}
}

func (r *sourceRepo) History(ctx context.Context, appKey, regionKey, subscriptionKey string) ([]SourceCharge, error) {
	table, err := r.tableName(appKey, regionKey)
	if err != nil {
		return nil, err
	}

	var history []SourceCharge
	err = r.db.WithContext(ctx).Raw(
		fmt.Sprintf(
			`SELECT id, pay_time
			 FROM %s
			 WHERE subscribe_id = ?
			   AND status = 1
			   AND amount > 0
			   AND is_test = 0
			   AND pay_time != 0
			   AND pay_type NOT IN ?
			 ORDER BY pay_time ASC`,
			table,
		),
		subscriptionKey,
		excludedPayTypes,
	).Scan(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

// tableName builds the per-app/per-region source table name. App and region
// keys come from the fact table, so they are validated before being
// interpolated into SQL.
func (r *sourceRepo) tableName(appKey, regionKey string) (string, error) {
	if !identifierPattern.MatchString(appKey) || !identifierPattern.MatchString(regionKey) {
		return "", fmt.Errorf("invalid source table keys app=%q region=%q", appKey, regionKey)
	}
	if r.schema == "" {
		return fmt.Sprintf("orders_%s_%s", appKey, regionKey), nil
	}
	if !identifierPattern.MatchString(r.schema) {
		return "", fmt.Errorf("invalid source schema %q", r.schema)
	}
	return fmt.Sprintf("%s.orders_%s_%s", r.schema, appKey, regionKey), nil
}
