package repository

import (
	"context"
	"time"

	subscriptiondomain "github.com/osaio/orderfacts/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) subscriptiondomain.Repository {
	return &repo{db: db}
}

func (r *repo) LoadStartTimes(ctx context.Context) (map[string]time.Time, error) {
	var rows []subscriptiondomain.Subscription
	err := r.db.WithContext(ctx).Raw(
		`SELECT subscription_key, first_start_time FROM fact_subscriptions`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	index := make(map[string]time.Time, len(rows))
	for _, row := range rows {
		if row.SubscriptionKey == "" || row.FirstStartTime == nil {
			continue
		}
		index[row.SubscriptionKey] = *row.FirstStartTime
	}
	return index, nil
}
