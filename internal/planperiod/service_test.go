package planperiod

import (
	"context"
	"testing"
	"time"

	"github.com/osaio/orderfacts/internal/config"
	orderdomain "github.com/osaio/orderfacts/internal/order/domain"
	orderrepo "github.com/osaio/orderfacts/internal/order/repository"
	"github.com/osaio/orderfacts/internal/writer"
	"github.com/osaio/orderfacts/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupPlanPeriod(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()

	dbConn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, dbConn.AutoMigrate(&orderdomain.Order{}, &Plan{}))

	svc := NewService(Params{
		DB:     dbConn,
		Orders: orderrepo.Provide(dbConn),
		Writer: writer.New(writer.Params{DB: dbConn, Log: zap.NewNop(), Config: config.Config{}}),
		Log:    zap.NewNop(),
	})
	return dbConn, svc
}

func seedPlanOrder(t *testing.T, dbConn *gorm.DB, uuid, planKey, productName string, amount float64) {
	t.Helper()
	o := orderdomain.Order{
		OrderUUID:   uuid,
		PlanKey:     planKey,
		ProductName: productName,
		CNYAmount:   amount,
		PayTime:     time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Status:      orderdomain.StatusPaying,
	}
	require.NoError(t, dbConn.Create(&o).Error)
}

func loadPlanOrder(t *testing.T, dbConn *gorm.DB, uuid string) orderdomain.Order {
	t.Helper()
	var o orderdomain.Order
	require.NoError(t, dbConn.First(&o, "order_uuid = ?", uuid).Error)
	return o
}

func TestFromProductName(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Cloud Premium Monthly", orderdomain.PlanPeriodMonth},
		{"Billed Annually", orderdomain.PlanPeriodYear},
		{"Yearly Plan", orderdomain.PlanPeriodYear},
		{"Annual Subscription", orderdomain.PlanPeriodYear},
		{"$59.99 per year", orderdomain.PlanPeriodYear},
		{"Half-Year Pass", orderdomain.PlanPeriodHalfYear},
		// "monthly" wins over the annual upsell mention.
		{"Monthly (upgrade to annual and save)", orderdomain.PlanPeriodMonth},
		{"Cloud Premium", orderdomain.PlanPeriodUnknown},
		{"", orderdomain.PlanPeriodUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FromProductName(tc.name), "name %q", tc.name)
	}
}

func TestClassifyByProductName(t *testing.T) {
	dbConn, svc := setupPlanPeriod(t)

	seedPlanOrder(t, dbConn, "m", "plan-m", "Premium Monthly", 28)
	seedPlanOrder(t, dbConn, "y", "plan-y", "Premium Yearly", 288)
	seedPlanOrder(t, dbConn, "u", "plan-u", "Premium Bundle", 58)

	unknown, err := svc.ClassifyByProductName(context.Background())
	require.NoError(t, err)

	assert.Equal(t, orderdomain.PlanPeriodMonth, loadPlanOrder(t, dbConn, "m").PlanPeriodType)
	assert.Equal(t, orderdomain.PlanPeriodYear, loadPlanOrder(t, dbConn, "y").PlanPeriodType)
	assert.Equal(t, orderdomain.PlanPeriodUnknown, loadPlanOrder(t, dbConn, "u").PlanPeriodType,
		"unclassifiable order must stay untouched")
	assert.Equal(t, []string{"Premium Bundle"}, unknown)
}

func TestEnrichFromPlanDim(t *testing.T) {
	dbConn, svc := setupPlanPeriod(t)

	plan := Plan{PlanKey: "plan-a", TimeUnit: orderdomain.PlanPeriodMonth, CycleTime: 1}
	require.NoError(t, dbConn.Create(&plan).Error)

	seedPlanOrder(t, dbConn, "paid", "plan-a", "", 28)
	seedPlanOrder(t, dbConn, "free", "plan-a", "", 0)
	seedPlanOrder(t, dbConn, "orphan", "plan-b", "", 28)

	missing, err := svc.EnrichFromPlanDim(context.Background())
	require.NoError(t, err)

	paid := loadPlanOrder(t, dbConn, "paid")
	assert.Equal(t, orderdomain.PlanPeriodMonth, paid.PlanPeriodType)
	assert.Equal(t, int32(1), paid.PlanPeriodCycle)

	// Zero-amount rows are out of scope for enrichment.
	free := loadPlanOrder(t, dbConn, "free")
	assert.Equal(t, orderdomain.PlanPeriodUnknown, free.PlanPeriodType)
	assert.Equal(t, int32(0), free.PlanPeriodCycle)

	assert.Equal(t, []string{"plan-b"}, missing)
}
