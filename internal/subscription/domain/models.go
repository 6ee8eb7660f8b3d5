// Package domain contains the subscription lookup model. The fact table is
// populated by the ETL subsystem; the reconciliation core only reads it.
package domain

import (
	"context"
	"time"
)

// Subscription maps a subscription key to its first successful payment time.
type Subscription struct {
	SubscriptionKey string     `gorm:"column:subscription_key;primaryKey;type:varchar(128)"`
	FirstStartTime  *time.Time `gorm:"column:first_start_time"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "fact_subscriptions" }

// Repository loads the subscription start-time index.
type Repository interface {
	// LoadStartTimes returns subscription_key -> first_start_time for every
	// subscription that has both. Loaded once per run.
	LoadStartTimes(ctx context.Context) (map[string]time.Time, error)
}
