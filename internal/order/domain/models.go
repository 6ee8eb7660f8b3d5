// Package domain contains the canonical order fact model and the
// correction types produced by the reconciliation jobs.
package domain

import "time"

// Order status values as written by the upstream ETL.
const (
	StatusPaying int16 = 1
	StatusVoided int16 = 2
)

// Plan period types inferred for a subscription's renewals.
const (
	PlanPeriodMonth    = "month"
	PlanPeriodYear     = "year"
	PlanPeriodHalfYear = "half-year"
	PlanPeriodUnknown  = ""
)

// Order is one payment attempt in the unified fact table.
type Order struct {
	OrderUUID       string    `gorm:"column:order_uuid;primaryKey;type:varchar(64)"`
	RawOrderID      int64     `gorm:"column:order_id;index"`
	SubscriptionKey string    `gorm:"column:subscription_key;type:varchar(128);index"`
	PlanKey         string    `gorm:"column:plan_key;type:varchar(128);index"`
	AppKey          string    `gorm:"column:app_key;type:varchar(64)"`
	RegionKey       string    `gorm:"column:region_key;type:varchar(64)"`
	UserUID         string    `gorm:"column:user_uid;type:varchar(128)"`
	DeviceID        string    `gorm:"column:device_id;type:varchar(128)"`
	ProductName     string    `gorm:"column:product_name;type:varchar(255)"`
	CNYAmount       float64   `gorm:"column:cny_amount"`
	PayTime         time.Time `gorm:"column:pay_time;index"`
	Status          int16     `gorm:"column:status;default:1"`
	PaidSequence    int32     `gorm:"column:paid_sequence;default:0"`
	PlanPeriodType  string    `gorm:"column:plan_p_type;type:varchar(16)"`
	PlanPeriodCycle int32     `gorm:"column:plan_p_cycle;default:0"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "fact_orders" }

// Eligible reports whether the order participates in deduplication and
// sequencing: positive recognized amount and not voided.
func (o Order) Eligible() bool {
	return o.CNYAmount > 0 && o.Status != StatusVoided
}

// DuplicateKey is the tuple whose exact match is required before two
// orders are considered candidates for the same real charge.
type DuplicateKey struct {
	PlanKey         string
	SubscriptionKey string
	AppKey          string
	RegionKey       string
	UserUID         string
	DeviceID        string
	CNYAmount       float64
}

// DuplicateKey returns the duplicate-identity tuple for the order.
func (o Order) DuplicateKey() DuplicateKey {
	return DuplicateKey{
		PlanKey:         o.PlanKey,
		SubscriptionKey: o.SubscriptionKey,
		AppKey:          o.AppKey,
		RegionKey:       o.RegionKey,
		UserUID:         o.UserUID,
		DeviceID:        o.DeviceID,
		CNYAmount:       o.CNYAmount,
	}
}

// Correction is the (paid_sequence, plan_period_type) assignment for one order.
type Correction struct {
	PaidSequence   int32
	PlanPeriodType string
	OrderUUID      string
}

// SequenceCorrection updates paid_sequence only, leaving plan type untouched.
type SequenceCorrection struct {
	PaidSequence int32
	OrderUUID    string
}

// PlanTypeCorrection updates plan_p_type only.
type PlanTypeCorrection struct {
	PlanPeriodType string
	OrderUUID      string
}
