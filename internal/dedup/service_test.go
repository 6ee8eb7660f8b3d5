package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/osaio/orderfacts/internal/config"
	orderdomain "github.com/osaio/orderfacts/internal/order/domain"
	orderrepo "github.com/osaio/orderfacts/internal/order/repository"
	"github.com/osaio/orderfacts/internal/writer"
	"github.com/osaio/orderfacts/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDedup(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("new test db: %v", err)
	}
	if err := dbConn.AutoMigrate(&orderdomain.Order{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	w := writer.New(writer.Params{DB: dbConn, Log: zap.NewNop(), Config: config.Config{}})
	svc := NewService(Params{
		Orders: orderrepo.Provide(dbConn),
		Writer: w,
		Log:    zap.NewNop(),
	})
	return dbConn, svc
}

func seedOrder(t *testing.T, dbConn *gorm.DB, uuid string, rawID int64, payTime time.Time) {
	t.Helper()
	o := orderdomain.Order{
		OrderUUID:       uuid,
		RawOrderID:      rawID,
		SubscriptionKey: "sub-1",
		PlanKey:         "plan-1",
		AppKey:          "app1",
		RegionKey:       "us",
		UserUID:         "user-1",
		DeviceID:        "dev-1",
		CNYAmount:       68.00,
		PayTime:         payTime,
		Status:          orderdomain.StatusPaying,
	}
	if err := dbConn.Create(&o).Error; err != nil {
		t.Fatalf("seed order %s: %v", uuid, err)
	}
}

func orderStatus(t *testing.T, dbConn *gorm.DB, uuid string) int16 {
	t.Helper()
	var o orderdomain.Order
	if err := dbConn.First(&o, "order_uuid = ?", uuid).Error; err != nil {
		t.Fatalf("load order %s: %v", uuid, err)
	}
	return o.Status
}

func TestDuplicateWindowAndIDGap(t *testing.T) {
	dbConn, svc := setupDedup(t)
	base := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	// Anchor, a tight retry, and a distinct charge with a wide id gap.
	seedOrder(t, dbConn, "anchor", 100, base)
	seedOrder(t, dbConn, "retry", 105, base.Add(-10*time.Minute))
	seedOrder(t, dbConn, "distinct", 130, base.Add(-50*time.Minute))

	if err := svc.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := orderStatus(t, dbConn, "anchor"); got != orderdomain.StatusPaying {
		t.Fatalf("anchor voided, status=%d", got)
	}
	if got := orderStatus(t, dbConn, "retry"); got != orderdomain.StatusVoided {
		t.Fatalf("retry not voided, status=%d", got)
	}
	if got := orderStatus(t, dbConn, "distinct"); got != orderdomain.StatusPaying {
		t.Fatalf("distinct charge voided, status=%d", got)
	}
}

func TestDuplicateChainReanchors(t *testing.T) {
	dbConn, svc := setupDedup(t)
	base := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	seedOrder(t, dbConn, "a", 100, base)
	seedOrder(t, dbConn, "b", 105, base.Add(-50*time.Minute))
	// Beyond the hour window from "a": becomes the new anchor.
	seedOrder(t, dbConn, "c", 108, base.Add(-80*time.Minute))
	// Tight against "c", not against "a".
	seedOrder(t, dbConn, "d", 109, base.Add(-90*time.Minute))

	toVoid, err := svc.FindDuplicates(context.Background())
	if err != nil {
		t.Fatalf("find duplicates: %v", err)
	}

	want := map[string]bool{"b": true, "d": true}
	if len(toVoid) != len(want) {
		t.Fatalf("expected %d duplicates, got %v", len(want), toVoid)
	}
	for _, uuid := range toVoid {
		if !want[uuid] {
			t.Fatalf("unexpected duplicate %s", uuid)
		}
	}
}

func TestDifferentIdentityNeverDuplicates(t *testing.T) {
	dbConn, svc := setupDedup(t)
	base := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	seedOrder(t, dbConn, "a", 100, base)
	// Same everything except amount.
	other := orderdomain.Order{
		OrderUUID:       "b",
		RawOrderID:      101,
		SubscriptionKey: "sub-1",
		PlanKey:         "plan-1",
		AppKey:          "app1",
		RegionKey:       "us",
		UserUID:         "user-1",
		DeviceID:        "dev-1",
		CNYAmount:       98.00,
		PayTime:         base.Add(-time.Minute),
		Status:          orderdomain.StatusPaying,
	}
	if err := dbConn.Create(&other).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	toVoid, err := svc.FindDuplicates(context.Background())
	if err != nil {
		t.Fatalf("find duplicates: %v", err)
	}
	if len(toVoid) != 0 {
		t.Fatalf("expected no duplicates, got %v", toVoid)
	}
}

func TestDedupIdempotent(t *testing.T) {
	dbConn, svc := setupDedup(t)
	base := time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)

	seedOrder(t, dbConn, "anchor", 100, base)
	seedOrder(t, dbConn, "retry", 101, base.Add(-time.Minute))

	ctx := context.Background()
	if err := svc.Run(ctx); err != nil {
		t.Fatalf("first run: %v", err)
	}

	// Voided rows leave the scan entirely; a rerun finds nothing new and
	// never un-marks.
	toVoid, err := svc.FindDuplicates(ctx)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if len(toVoid) != 0 {
		t.Fatalf("rerun found duplicates again: %v", toVoid)
	}
	if got := orderStatus(t, dbConn, "retry"); got != orderdomain.StatusVoided {
		t.Fatalf("retry lost voided status, status=%d", got)
	}
}
