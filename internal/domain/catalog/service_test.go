// internal/domain/catalog/service_test.go
package catalog_test

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

	require.NoError(t, db.AutoMigrate(&catalog.Supplier{}, &catalog.Product{}))
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

func TestProductLifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := catalog.NewService(db, newTestConfig())

	created, err := svc.CreateProduct(&catalog.CreateProductRequest{
		SKU:      "SNK-001",
		Name:     "Chocolate Bar",
		Price:    decimal.RequireFromString("18.50"),
		Quantity: 12,
	})
	require.NoError(t, err)
	assert.True(t, created.IsActive)

	newName := "Dark Chocolate Bar"
	newPrice := decimal.RequireFromString("21.00")
	updated, err := svc.UpdateProduct(created.ID, &catalog.UpdateProductRequest{
		Name:  &newName,
		Price: &newPrice,
	})
	require.NoError(t, err)
	assert.Equal(t, "Dark Chocolate Bar", updated.Name)
	assert.True(t, updated.Price.Equal(newPrice))
	assert.Equal(t, 12, updated.Quantity)

	require.NoError(t, svc.DeleteProduct(created.ID))
	_, err = svc.GetProduct(created.ID)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCreateProductDuplicateSKU(t *testing.T) {
	db := newTestDB(t)
	svc := catalog.NewService(db, newTestConfig())

	req := &catalog.CreateProductRequest{
		SKU:      "SNK-001",
		Name:     "Chocolate Bar",
		Price:    decimal.RequireFromString("18.50"),
		Quantity: 12,
	}
	_, err := svc.CreateProduct(req)
	require.NoError(t, err)

	_, err = svc.CreateProduct(req)
	assert.Error(t, err)
}

func TestListProductsSearchAndPagination(t *testing.T) {
	db := newTestDB(t)
	svc := catalog.NewService(db, newTestConfig())

	names := []string{"Chocolate Bar", "Potato Chips", "Sparkling Water"}
	for i, name := range names {
		_, err := svc.CreateProduct(&catalog.CreateProductRequest{
			SKU:      fmt.Sprintf("SKU-%d", i),
			Name:     name,
			Price:    decimal.RequireFromString("10.00"),
			Quantity: 5,
		})
		require.NoError(t, err)
	}

	all, err := svc.ListProducts(&catalog.ProductListRequest{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all.Products, 2)
	assert.Equal(t, int64(3), all.Pagination.Total)
	assert.Equal(t, 2, all.Pagination.TotalPages)

	hits, err := svc.ListProducts(&catalog.ProductListRequest{Page: 1, Limit: 20, Search: "chips"})
	require.NoError(t, err)
	require.Len(t, hits.Products, 1)
	assert.Equal(t, "Potato Chips", hits.Products[0].Name)
}

func TestReserveStockConditionalDecrement(t *testing.T) {
	db := newTestDB(t)
	p := &catalog.Product{
		SKU:      "SKU-1",
		Name:     "Widget",
		Price:    decimal.RequireFromString("10.00"),
		Quantity: 3,
		IsActive: true,
	}
	require.NoError(t, db.Create(p).Error)

	require.NoError(t, catalog.ReserveStock(db, p.ID, 2))

	err := catalog.ReserveStock(db, p.ID, 2)
	require.Error(t, err)
	assert.True(t, apperr.IsInsufficientStock(err))

	var got catalog.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, 1, got.Quantity)

	require.NoError(t, catalog.ReleaseStock(db, p.ID, 2))
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, 3, got.Quantity)

	err = catalog.ReserveStock(db, 999, 1)
	assert.True(t, apperr.IsNotFound(err))
}

func TestSupplierLifecycle(t *testing.T) {
	db := newTestDB(t)
	svc := catalog.NewService(db, newTestConfig())

	s, err := svc.CreateSupplier(&catalog.CreateSupplierRequest{
		Name:  "Campus Wholesale",
		Email: "orders@campuswholesale.example",
	})
	require.NoError(t, err)

	suppliers, err := svc.ListSuppliers()
	require.NoError(t, err)
	require.Len(t, suppliers, 1)

	require.NoError(t, svc.DeleteSupplier(s.ID))
	suppliers, err = svc.ListSuppliers()
	require.NoError(t, err)
	assert.Empty(t, suppliers)
}
