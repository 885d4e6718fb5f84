// internal/domain/order/service_test.go
package order_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/kiosk-backend/internal/config"
	"github.com/your-org/kiosk-backend/internal/domain/catalog"
	"github.com/your-org/kiosk-backend/internal/domain/order"
	"github.com/your-org/kiosk-backend/internal/pkg/apperr"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&catalog.Product{}, &order.Order{}, &order.OrderItem{}))
	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		Commerce: config.CommerceConfig{
			ReservationTTL: 24 * time.Hour,
			DeliveryFee:    decimal.RequireFromString("80.00"),
			TopUpCap:       decimal.RequireFromString("1500.00"),
			AdminTopUpCap:  decimal.RequireFromString("1500.00"),
			MaxBalance:     decimal.RequireFromString("100000.00"),
		},
	}
}

func seedProduct(t *testing.T, db *gorm.DB, sku string, price string, quantity int) *catalog.Product {
	t.Helper()
	p := &catalog.Product{
		SKU:      sku,
		Name:     "Product " + sku,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
		IsActive: true,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func productQuantity(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()
	var p catalog.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.Quantity
}

func TestCreateOrderReservesStockAndSnapshotsPrices(t *testing.T) {
	db := newTestDB(t)
	svc := order.NewService(db, newTestConfig())
	p1 := seedProduct(t, db, "SKU-1", "18.50", 10)
	p2 := seedProduct(t, db, "SKU-2", "22.00", 5)

	o, err := svc.CreateOrder(&order.CreateOrderRequest{
		UserID: 1,
		Items: []order.OrderLine{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p2.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, order.OrderStatusPending, o.Status)
	assert.Equal(t, order.PaymentStatusUnpaid, o.PaymentStatus)
	assert.NotEmpty(t, o.OrderNumber)
	assert.True(t, o.SubtotalAmount.Equal(decimal.RequireFromString("59.00")))
	assert.True(t, o.TotalAmount.Equal(decimal.RequireFromString("59.00")))
	require.Len(t, o.Items, 2)
	assert.True(t, o.Items[0].PriceAtPurchase.Equal(decimal.RequireFromString("18.50")))

	assert.Equal(t, 8, productQuantity(t, db, p1.ID))
	assert.Equal(t, 4, productQuantity(t, db, p2.ID))
}

func TestCreateOrderRollsBackOnAnyLineFailure(t *testing.T) {
	db := newTestDB(t)
	svc := order.NewService(db, newTestConfig())
	p1 := seedProduct(t, db, "SKU-1", "10.00", 10)
	p2 := seedProduct(t, db, "SKU-2", "10.00", 1)

	_, err := svc.CreateOrder(&order.CreateOrderRequest{
		UserID: 1,
		Items: []order.OrderLine{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p2.ID, Quantity: 5},
		},
	})
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	// No partial order, no partial stock decrement.
	assert.Equal(t, 10, productQuantity(t, db, p1.ID))
	assert.Equal(t, 1, productQuantity(t, db, p2.ID))
	var count int64
	require.NoError(t, db.Model(&order.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateOrderValidatesLines(t *testing.T) {
	db := newTestDB(t)
	svc := order.NewService(db, newTestConfig())
	p1 := seedProduct(t, db, "SKU-1", "10.00", 10)

	_, err := svc.CreateOrder(&order.CreateOrderRequest{UserID: 1})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.CreateOrder(&order.CreateOrderRequest{
		UserID: 1,
		Items:  []order.OrderLine{{ProductID: p1.ID, Quantity: 0}},
	})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.CreateOrder(&order.CreateOrderRequest{
		UserID: 1,
		Items:  []order.OrderLine{{ProductID: 999, Quantity: 1}},
	})
	assert.True(t, apperr.IsNotFound(err))
}

func TestCompleteOrder(t *testing.T) {
	db := newTestDB(t)
	svc := order.NewService(db, newTestConfig())
	p1 := seedProduct(t, db, "SKU-1", "10.00", 10)

	o, err := svc.CreateOrder(&order.CreateOrderRequest{
		UserID: 1,
		Items:  []order.OrderLine{{ProductID: p1.ID, Quantity: 1}},
	})
	require.NoError(t, err)

	require.NoError(t, svc.CompleteOrder(o.ID))

	got, err := svc.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.OrderStatusCompleted, got.Status)
	assert.Equal(t, order.PaymentStatusPaid, got.PaymentStatus)

	err = svc.CompleteOrder(9999)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteOrderRestoresStock(t *testing.T) {
	db := newTestDB(t)
	svc := order.NewService(db, newTestConfig())
	p1 := seedProduct(t, db, "SKU-1", "10.00", 10)

	o, err := svc.CreateOrder(&order.CreateOrderRequest{
		UserID: 1,
		Items:  []order.OrderLine{{ProductID: p1.ID, Quantity: 4}},
	})
	require.NoError(t, err)
	require.Equal(t, 6, productQuantity(t, db, p1.ID))

	require.NoError(t, svc.DeleteOrder(o.ID))
	assert.Equal(t, 10, productQuantity(t, db, p1.ID))

	_, err = svc.GetOrder(o.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestDeleteOrderItemRecomputesTotals(t *testing.T) {
	db := newTestDB(t)
	svc := order.NewService(db, newTestConfig())
	p1 := seedProduct(t, db, "SKU-1", "18.50", 10)
	p2 := seedProduct(t, db, "SKU-2", "22.00", 5)

	o, err := svc.CreateOrder(&order.CreateOrderRequest{
		UserID: 1,
		Items: []order.OrderLine{
			{ProductID: p1.ID, Quantity: 2},
			{ProductID: p2.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	var target order.OrderItem
	require.NoError(t, db.Where("order_id = ? AND product_id = ?", o.ID, p1.ID).First(&target).Error)

	require.NoError(t, svc.DeleteOrderItem(target.ID))

	got, err := svc.GetOrder(o.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.SubtotalAmount.Equal(decimal.RequireFromString("22.00")))
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("22.00")))
	assert.Equal(t, 10, productQuantity(t, db, p1.ID))
}

func TestGetOrdersFiltersByUserAndStatus(t *testing.T) {
	db := newTestDB(t)
	svc := order.NewService(db, newTestConfig())
	p1 := seedProduct(t, db, "SKU-1", "10.00", 50)

	for userID := uint(1); userID <= 2; userID++ {
		_, err := svc.CreateOrder(&order.CreateOrderRequest{
			UserID: userID,
			Items:  []order.OrderLine{{ProductID: p1.ID, Quantity: 1}},
		})
		require.NoError(t, err)
	}

	mine, err := svc.GetUserOrders(1, 1, 20)
	require.NoError(t, err)
	require.Len(t, mine.Orders, 1)
	assert.Equal(t, uint(1), mine.Orders[0].UserID)

	completed, err := svc.GetOrders(&order.OrderListRequest{Status: order.OrderStatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, completed.Orders)
	assert.Equal(t, int64(0), completed.Pagination.Total)
}
