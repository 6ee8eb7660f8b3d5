package domain

import (
	"context"
	"time"
)

// Repository reads order facts in the shapes the reconciliation jobs need.
// All reads exclude voided and non-positive-amount rows unless noted.
type Repository interface {
	// ListForDedup returns eligible orders sorted by the duplicate-identity
	// tuple, then pay_time descending within each identity group.
	ListForDedup(ctx context.Context) ([]Order, error)

	// ListForSequencing returns eligible orders sorted by subscription key,
	// then pay_time ascending.
	ListForSequencing(ctx context.Context) ([]Order, error)

	// ListWindowTargets returns eligible orders with a non-empty
	// subscription key whose pay_time falls inside [from, to].
	ListWindowTargets(ctx context.Context, from, to time.Time) ([]Order, error)

	// ListNamedProducts returns (order_uuid, product_name) pairs for
	// eligible orders carrying a product name.
	ListNamedProducts(ctx context.Context) ([]NamedProduct, error)

	// DistinctPlanKeys returns the distinct non-empty plan keys present on
	// eligible orders.
	DistinctPlanKeys(ctx context.Context) ([]string, error)
}

// NamedProduct pairs an order with its source product name.
type NamedProduct struct {
	OrderUUID   string `gorm:"column:order_uuid"`
	ProductName string `gorm:"column:product_name"`
}
