package repository

import (
	"context"
	"time"

	orderdomain "github.com/osaio/orderfacts/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func Provide(db *gorm.DB) orderdomain.Repository {
	return &repo{db: db}
}

const eligibleWhere = "cny_amount > 0 AND (status != 2 OR status IS NULL)"

func (r *repo) ListForDedup(ctx context.Context) ([]orderdomain.Order, error) {
	var orders []orderdomain.Order
	err := r.db.WithContext(ctx).Raw(
		`SELECT order_uuid, order_id, plan_key, subscription_key, app_key, region_key,
		        user_uid, device_id, cny_amount, pay_time, status
		 FROM fact_orders
		 WHERE cny_amount > 0 AND (status != 2 OR status IS NULL)
		 ORDER BY plan_key, subscription_key, app_key, region_key, user_uid, device_id, cny_amount,
		          pay_time DESC`,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) ListForSequencing(ctx context.Context) ([]orderdomain.Order, error) {
	var orders []orderdomain.Order
	err := r.db.WithContext(ctx).Raw(
		`SELECT order_uuid, subscription_key, pay_time, paid_sequence, plan_p_type
		 FROM fact_orders
		 WHERE cny_amount > 0 AND (status != 2 OR status IS NULL)
		 ORDER BY subscription_key, pay_time ASC`,
	).Scan(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) ListWindowTargets(ctx context.Context, from, to time.Time) ([]orderdomain.Order, error) {
	var orders []orderdomain.Order
	err := r.db.WithContext(ctx).
		Where(eligibleWhere).
		Where("pay_time >= ? AND pay_time <= ?", from, to).
		Where("subscription_key IS NOT NULL AND subscription_key != ''").
		Select("order_uuid", "subscription_key", "app_key", "region_key", "pay_time", "paid_sequence").
		Order("subscription_key, pay_time ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) ListNamedProducts(ctx context.Context) ([]orderdomain.NamedProduct, error) {
	var rows []orderdomain.NamedProduct
	err := r.db.WithContext(ctx).Raw(
		`SELECT order_uuid, product_name
		 FROM fact_orders
		 WHERE cny_amount > 0 AND product_name IS NOT NULL AND product_name != ''`,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repo) DistinctPlanKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Raw(
		`SELECT DISTINCT plan_key
		 FROM fact_orders
		 WHERE cny_amount > 0 AND plan_key IS NOT NULL AND plan_key != ''`,
	).Scan(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}
