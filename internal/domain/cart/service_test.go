// internal/domain/cart/service_test.go
package cart_test

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/kiosk-backend/internal/config"
	"github.com/your-org/kiosk-backend/internal/domain/cart"
	"github.com/your-org/kiosk-backend/internal/domain/catalog"
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
	// A single connection serializes transactions, which keeps the
	// concurrency tests deterministic.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&catalog.Product{}, &cart.Cart{}, &cart.CartItem{}))
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

func TestAddToCartReservesStock(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "18.50", 10)

	resp, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 3})
	require.NoError(t, err)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, prod.ID, resp.Items[0].ProductID)
	assert.Equal(t, 3, resp.Items[0].Quantity)
	assert.True(t, resp.Items[0].UnitPrice.Equal(decimal.RequireFromString("18.50")))
	assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("55.50")))

	assert.Equal(t, 7, productQuantity(t, db, prod.ID))
}

func TestAddToCartRejectsNonPositiveQuantity(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 5)

	_, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 0})
	assert.True(t, apperr.IsValidation(err))

	_, err = svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: -2})
	assert.True(t, apperr.IsValidation(err))

	assert.Equal(t, 5, productQuantity(t, db, prod.ID))
}

func TestAddToCartInsufficientStockRollsBack(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 2)

	_, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 5})
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	// The whole transaction rolled back: no cart, stock untouched.
	_, err = svc.GetCart(1)
	assert.True(t, apperr.IsNotFound(err))
	assert.Equal(t, 2, productQuantity(t, db, prod.ID))
}

func TestAddToCartUnknownProduct(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())

	_, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: 999, Quantity: 1})
	assert.True(t, apperr.IsNotFound(err))
}

func TestAddToCartKeepsSeparateLines(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 10)

	_, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 2})
	require.NoError(t, err)
	resp, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 3})
	require.NoError(t, err)

	// Same product added twice stays two lines, never merged.
	require.Len(t, resp.Items, 2)
	assert.True(t, resp.TotalAmount.Equal(decimal.RequireFromString("50.00")))
	assert.Equal(t, 5, productQuantity(t, db, prod.ID))
}

func TestAddToCartSlidesExpiry(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 10)

	_, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 1})
	require.NoError(t, err)

	// Age the cart without expiring it, then add again.
	staleExpiry := time.Now().UTC().Add(time.Hour)
	require.NoError(t, db.Model(&cart.Cart{}).
		Where("user_id = ?", uint(1)).
		Update("expires_at", staleExpiry).Error)

	resp, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 1})
	require.NoError(t, err)
	assert.True(t, resp.ExpiresAt.After(staleExpiry), "expiry should slide forward on every add")
}

func TestGetCartReleasesExpiredCart(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 10)

	_, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, 6, productQuantity(t, db, prod.ID))

	require.NoError(t, db.Model(&cart.Cart{}).
		Where("user_id = ?", uint(1)).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	_, err = svc.GetCart(1)
	assert.True(t, apperr.IsNotFound(err))

	// Reading the expired cart released its reservation.
	assert.Equal(t, 10, productQuantity(t, db, prod.ID))
}

func TestUpdateQuantityAdjustsReservation(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 10)

	resp, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 3})
	require.NoError(t, err)
	itemID := resp.Items[0].CartItemID

	require.NoError(t, svc.UpdateQuantity(1, itemID, &cart.UpdateQuantityRequest{Quantity: 5}))
	assert.Equal(t, 5, productQuantity(t, db, prod.ID))

	require.NoError(t, svc.UpdateQuantity(1, itemID, &cart.UpdateQuantityRequest{Quantity: 1}))
	assert.Equal(t, 9, productQuantity(t, db, prod.ID))

	err = svc.UpdateQuantity(1, itemID, &cart.UpdateQuantityRequest{Quantity: 0})
	assert.True(t, apperr.IsValidation(err))

	err = svc.UpdateQuantity(1, itemID, &cart.UpdateQuantityRequest{Quantity: 100})
	assert.True(t, apperr.IsInsufficientStock(err))
	assert.Equal(t, 9, productQuantity(t, db, prod.ID))
}

func TestUpdateQuantityOnCheckedOutCart(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 10)

	resp, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, db.Model(&cart.Cart{}).
		Where("id = ?", resp.CartID).
		Update("is_checked_out", true).Error)

	err = svc.UpdateQuantity(1, resp.Items[0].CartItemID, &cart.UpdateQuantityRequest{Quantity: 5})
	assert.True(t, apperr.IsConflict(err))
}

func TestRemoveItemRestoresStock(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 10)

	resp, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, 6, productQuantity(t, db, prod.ID))

	require.NoError(t, svc.RemoveItem(1, resp.Items[0].CartItemID))
	assert.Equal(t, 10, productQuantity(t, db, prod.ID))

	err = svc.RemoveItem(1, resp.Items[0].CartItemID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestExpireCartIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 10)

	// No cart at all: still a success.
	require.NoError(t, svc.ExpireCart(1))

	_, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 6})
	require.NoError(t, err)
	require.Equal(t, 4, productQuantity(t, db, prod.ID))

	require.NoError(t, svc.ExpireCart(1))
	assert.Equal(t, 10, productQuantity(t, db, prod.ID))

	require.NoError(t, svc.ExpireCart(1))
	assert.Equal(t, 10, productQuantity(t, db, prod.ID))
}

func TestCleanupExpiredReleasesOnlyStaleCarts(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 20)

	for userID := uint(1); userID <= 3; userID++ {
		_, err := svc.AddToCart(userID, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 2})
		require.NoError(t, err)
	}
	require.Equal(t, 14, productQuantity(t, db, prod.ID))

	// Expire the first two carts, leave the third live.
	require.NoError(t, db.Model(&cart.Cart{}).
		Where("user_id IN ?", []uint{1, 2}).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)

	released, err := svc.CleanupExpired()
	require.NoError(t, err)
	assert.Equal(t, 2, released)
	assert.Equal(t, 18, productQuantity(t, db, prod.ID))

	_, err = svc.GetCart(3)
	assert.NoError(t, err)
}

func TestConcurrentAddsForLastUnit(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AddToCart(uint(i+1), &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 1})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.True(t, apperr.IsInsufficientStock(err))
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one buyer gets the last unit")
	assert.Equal(t, 0, productQuantity(t, db, prod.ID))
}

func TestItemOperationsScopedToOwner(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 10)

	resp, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 4})
	require.NoError(t, err)
	itemID := resp.Items[0].CartItemID
	require.Equal(t, 6, productQuantity(t, db, prod.ID))

	// Another user cannot see, resize or remove the line.
	err = svc.RemoveItem(2, itemID)
	assert.True(t, apperr.IsNotFound(err))
	err = svc.UpdateQuantity(2, itemID, &cart.UpdateQuantityRequest{Quantity: 1})
	assert.True(t, apperr.IsNotFound(err))

	// The owner's cart and reservation are untouched.
	assert.Equal(t, 6, productQuantity(t, db, prod.ID))
	resp, err = svc.GetCart(1)
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 4, resp.Items[0].Quantity)

	// The owner can still operate on the line.
	require.NoError(t, svc.RemoveItem(1, itemID))
	assert.Equal(t, 10, productQuantity(t, db, prod.ID))
}

func TestReleaseClaimsCartOnce(t *testing.T) {
	db := newTestDB(t)
	svc := cart.NewService(db, newTestConfig())
	prod := seedProduct(t, db, "SKU-1", "10.00", 10)

	_, err := svc.AddToCart(1, &cart.AddToCartRequest{ProductID: prod.ID, Quantity: 4})
	require.NoError(t, err)
	require.Equal(t, 6, productQuantity(t, db, prod.ID))

	// Two releasers holding the same stale snapshot of the cart, as when a
	// user's cart read races the expired-cart sweep.
	var c cart.Cart
	require.NoError(t, db.Preload("Items").Where("user_id = ?", uint(1)).First(&c).Error)

	claimed, err := cart.Release(db, &c)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, 10, productQuantity(t, db, prod.ID))

	// The loser finds the row already gone and must not restore again.
	claimed, err = cart.Release(db, &c)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, 10, productQuantity(t, db, prod.ID))
}
