package store_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"ms-bookworks/internal/models"
	"ms-bookworks/internal/store"
)

func newTestDB(t *testing.T) *store.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, "file::memory:")
	require.NoError(t, err)
	// One connection keeps every query on the same in-memory database.
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	require.NoError(t, store.Migrate(bunDB))

	t.Cleanup(func() { bunDB.Close() })
	return &store.DB{Bun: bunDB}
}

func testOrder(status models.OrderStatus) *models.Order {
	return &models.Order{
		OrderID:    uuid.NewString(),
		Status:     status,
		ChildName:  "Maya",
		ChildAge:   5,
		Gender:     models.GenderGirl,
		SkinTone:   models.SkinToneLight,
		BuyerName:  "Sam Carter",
		BuyerEmail: "sam@example.com",
		TemplateID: "tpl-1",
		BookPrice:  49.99,
		FinalPrice: 49.99,
	}
}

func TestCreateAndGetOrder(t *testing.T) {
	db := newTestDB(t)

	order := testOrder(models.StatusCreated)
	require.NoError(t, db.CreateOrder(order))
	assert.False(t, order.CreatedAt.IsZero())
	assert.False(t, order.StatusChangedAt.IsZero())

	got, err := db.GetOrderByID(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderID, got.OrderID)
	assert.Equal(t, models.StatusCreated, got.Status)
	assert.Equal(t, "Maya", got.ChildName)
	assert.Empty(t, got.Pages)
}

func TestGetOrderByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetOrderByID("nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateOrderStatus_WritesAudit(t *testing.T) {
	db := newTestDB(t)

	order := testOrder(models.StatusCreated)
	require.NoError(t, db.CreateOrder(order))
	created := order.StatusChangedAt

	time.Sleep(5 * time.Millisecond)
	order.Status = models.StatusAwaitingPayment
	require.NoError(t, db.UpdateOrderStatus(order, models.StatusCreated, "payment-init", "intent pi_123"))

	got, err := db.GetOrderByID(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingPayment, got.Status)
	assert.True(t, got.StatusChangedAt.After(created))

	entries, err := db.GetAuditByOrder(order.OrderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, models.StatusCreated, entries[0].FromStatus)
	assert.Equal(t, models.StatusAwaitingPayment, entries[0].ToStatus)
	assert.Equal(t, "payment-init", entries[0].Runner)
	assert.Equal(t, "intent pi_123", entries[0].Message)
}

func TestUpdateOrder_DoesNotTouchStatus(t *testing.T) {
	db := newTestDB(t)

	order := testOrder(models.StatusCreated)
	require.NoError(t, db.CreateOrder(order))

	order.Status = models.StatusPaid // must not leak into the row
	order.TransactionID = "pi_456"
	require.NoError(t, db.UpdateOrder(order))

	got, err := db.GetOrderByID(order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCreated, got.Status)
	assert.Equal(t, "pi_456", got.TransactionID)
}

func TestFindOrdersByStatus(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.CreateOrder(testOrder(models.StatusPaid)))
	require.NoError(t, db.CreateOrder(testOrder(models.StatusPaid)))
	require.NoError(t, db.CreateOrder(testOrder(models.StatusThanked)))

	paid, err := db.FindOrdersByStatus(models.StatusPaid)
	require.NoError(t, err)
	assert.Len(t, paid, 2)

	thanked, err := db.FindOrdersByStatus(models.StatusThanked)
	require.NoError(t, err)
	assert.Len(t, thanked, 1)
}

func TestFindOrdersByStatusAndFlag(t *testing.T) {
	db := newTestDB(t)

	pending := testOrder(models.StatusAssetsText)
	require.NoError(t, db.CreateOrder(pending))

	initiated := testOrder(models.StatusAssetsText)
	initiated.PersonalizationInitiated = true
	require.NoError(t, db.CreateOrder(initiated))

	fresh, err := db.FindOrdersByStatusAndFlag(models.StatusAssetsText, false)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, pending.OrderID, fresh[0].OrderID)

	outstanding, err := db.FindOrdersByStatusAndFlag(models.StatusAssetsText, true)
	require.NoError(t, err)
	require.Len(t, outstanding, 1)
	assert.Equal(t, initiated.OrderID, outstanding[0].OrderID)
}

func TestFindOrdersByStatusOlderThan(t *testing.T) {
	db := newTestDB(t)

	stale := testOrder(models.StatusAwaitingPayment)
	require.NoError(t, db.CreateOrder(stale))

	// Age the status change directly; only status_changed_at may arm the sweep.
	_, err := db.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("status_changed_at = ?", time.Now().Add(-3*time.Hour)).
		Where("order_id = ?", stale.OrderID).
		Exec(context.Background())
	require.NoError(t, err)

	recent := testOrder(models.StatusAwaitingPayment)
	require.NoError(t, db.CreateOrder(recent))

	expired, err := db.FindOrdersByStatusOlderThan(models.StatusAwaitingPayment, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, stale.OrderID, expired[0].OrderID)
}

func TestPagesRoundTrip(t *testing.T) {
	db := newTestDB(t)

	order := testOrder(models.StatusThanked)
	require.NoError(t, db.CreateOrder(order))

	for i := 2; i >= 0; i-- {
		require.NoError(t, db.CreatePage(&models.GeneratedPage{
			OrderID:   order.OrderID,
			PageIndex: i,
		}))
	}

	pages, err := db.GetPagesByOrder(order.OrderID)
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, page := range pages {
		assert.Equal(t, i, page.PageIndex, "pages must come back index-ordered")
	}

	pages[1].Text = "Maya finds the key"
	pages[1].TaskHandle = "task-9"
	require.NoError(t, db.SavePage(&pages[1]))

	got, err := db.GetOrderByID(order.OrderID)
	require.NoError(t, err)
	require.Len(t, got.Pages, 3)
	assert.Equal(t, "Maya finds the key", got.Pages[1].Text)
	assert.Equal(t, "task-9", got.Pages[1].TaskHandle)
}

func TestCoupons_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.CreateCoupon(&models.Coupon{
		Code: "SUMMER20", DiscountType: models.DiscountPercent, Amount: 20,
	}))

	coupon, err := db.GetCouponByCode("Summer20")
	require.NoError(t, err)
	assert.Equal(t, "summer20", coupon.Code)
	assert.Equal(t, models.DiscountPercent, coupon.DiscountType)

	_, err = db.GetCouponByCode("unknown")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLatestTemplate(t *testing.T) {
	db := newTestDB(t)

	_, err := db.LatestTemplate()
	assert.ErrorIs(t, err, store.ErrNotFound)

	older := &models.BookTemplate{
		TemplateID:  "tpl-old",
		Name:        "First edition",
		Price:       39.99,
		PublishedAt: time.Now().Add(-48 * time.Hour),
		Pages: []models.TemplatePage{
			{TextBoy: "b0", TextGirl: "g0", TextPosition: models.PositionBottomCenter, FontSize: models.FontSizeMedium},
		},
	}
	require.NoError(t, db.CreateTemplate(older))

	newer := &models.BookTemplate{
		TemplateID:  "tpl-new",
		Name:        "Second edition",
		Price:       49.99,
		PublishedAt: time.Now(),
		Pages: []models.TemplatePage{
			{TextPosition: models.PositionCenterCenter, FontSize: models.FontSizeLarge, SkipPersonalization: true},
			{TextBoy: "b1", TextGirl: "g1", TextPosition: models.PositionTopLeft, FontSize: models.FontSizeSmall},
		},
	}
	require.NoError(t, db.CreateTemplate(newer))

	latest, err := db.LatestTemplate()
	require.NoError(t, err)
	assert.Equal(t, "tpl-new", latest.TemplateID)
	require.Len(t, latest.Pages, 2)
	assert.True(t, latest.Pages[0].SkipPersonalization)
	assert.Equal(t, "g1", latest.Pages[1].BaseText(models.GenderGirl))
}
