// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"
	"github.com/your-org/kiosk-backend/internal/domain/cart"
	"github.com/your-org/kiosk-backend/internal/domain/catalog"
	"github.com/your-org/kiosk-backend/internal/domain/order"
	"github.com/your-org/kiosk-backend/internal/domain/user"
	"github.com/your-org/kiosk-backend/internal/domain/wallet"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	// Models in dependency order: users first, then catalog, then the
	// tables that reference them.
	models := []interface{}{
		&user.User{},

		&catalog.Supplier{},
		&catalog.Product{},

		&wallet.Account{},
		&wallet.Transaction{},

		&cart.Cart{},
		&cart.CartItem{},

		&order.Order{},
		&order.OrderItem{},
	}

	for _, model := range models {
		log.Printf("Migrating model: %T", model)
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	indexes := []string{
		// User indexes
		"CREATE INDEX IF NOT EXISTS idx_users_email_active ON users(email, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_users_created_at ON users(created_at DESC)",

		// Product indexes
		"CREATE INDEX IF NOT EXISTS idx_products_supplier_active ON products(supplier_id, is_active)",
		"CREATE INDEX IF NOT EXISTS idx_products_sku ON products(sku)",
		"CREATE INDEX IF NOT EXISTS idx_products_name ON products(name)",

		// Cart indexes
		"CREATE INDEX IF NOT EXISTS idx_carts_user_checked_out ON carts(user_id, is_checked_out)",
		"CREATE INDEX IF NOT EXISTS idx_carts_expires_at ON carts(expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_cart_items_cart ON cart_items(cart_id)",
		"CREATE INDEX IF NOT EXISTS idx_cart_items_product ON cart_items(product_id)",

		// Wallet indexes
		"CREATE INDEX IF NOT EXISTS idx_transactions_account_created ON transactions(account_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type)",

		// Order indexes
		"CREATE INDEX IF NOT EXISTS idx_orders_user_status ON orders(user_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_orders_status_created ON orders(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_orders_order_number ON orders(order_number)",
		"CREATE INDEX IF NOT EXISTS idx_orders_checkout_id ON orders(checkout_id)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_order ON order_items(order_id)",
		"CREATE INDEX IF NOT EXISTS idx_order_items_product ON order_items(product_id)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			log.Printf("⚠️ Failed to create index: %v", err)
			failCount++
		} else {
			successCount++
		}
	}

	log.Printf("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// SeedInitialData inserts initial data into the database
func (m *Migration) SeedInitialData() error {
	log.Println("🌱 Seeding initial data...")

	if err := m.seedAdminUser(); err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}

	if err := m.seedSuppliers(); err != nil {
		return fmt.Errorf("failed to seed suppliers: %w", err)
	}

	if err := m.seedProducts(); err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}

	log.Println("✅ Initial data seeded successfully")
	return nil
}

func (m *Migration) seedAdminUser() error {
	log.Println("👤 Seeding admin user...")

	var existing user.User
	result := m.db.Where("email = ?", "admin@kiosk.local").First(&existing)
	if result.Error == nil {
		log.Printf("⏭️ Admin user already exists with ID: %d", existing.ID)
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("admin123!"), 10)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	adminUser := user.User{
		Email:        "admin@kiosk.local",
		PasswordHash: string(hashedPassword),
		FirstName:    "Kiosk",
		LastName:     "Admin",
		IsActive:     true,
		IsAdmin:      true,
	}

	if err := m.db.Create(&adminUser).Error; err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	if _, err := wallet.CreateAccount(m.db, adminUser.ID); err != nil {
		return fmt.Errorf("failed to create admin wallet account: %w", err)
	}

	log.Printf("✅ Created admin user: admin@kiosk.local (ID: %d)", adminUser.ID)
	return nil
}

func (m *Migration) seedSuppliers() error {
	log.Println("🏷️ Seeding suppliers...")

	suppliers := []catalog.Supplier{
		{
			Name:     "Campus Wholesale",
			Email:    "orders@campuswholesale.example",
			Phone:    "+27 11 555 0100",
			IsActive: true,
		},
		{
			Name:     "FreshSnack Distributors",
			Email:    "sales@freshsnack.example",
			Phone:    "+27 11 555 0200",
			IsActive: true,
		},
	}

	for _, supplier := range suppliers {
		var existing catalog.Supplier
		result := m.db.Where("name = ?", supplier.Name).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&supplier).Error; err != nil {
				return err
			}
			log.Printf("✅ Created supplier: %s", supplier.Name)
		} else {
			log.Printf("⏭️ Supplier already exists: %s", supplier.Name)
		}
	}

	return nil
}

func (m *Migration) seedProducts() error {
	log.Println("📦 Seeding products...")

	var supplier catalog.Supplier
	if err := m.db.Where("name = ?", "Campus Wholesale").First(&supplier).Error; err != nil {
		return err
	}

	products := []catalog.Product{
		{
			SKU:        "SNK-001",
			Name:       "Chocolate Bar",
			Price:      decimal.RequireFromString("18.50"),
			Quantity:   120,
			SupplierID: &supplier.ID,
			IsActive:   true,
		},
		{
			SKU:        "SNK-002",
			Name:       "Potato Chips 120g",
			Price:      decimal.RequireFromString("22.00"),
			Quantity:   80,
			SupplierID: &supplier.ID,
			IsActive:   true,
		},
		{
			SKU:        "DRK-001",
			Name:       "Sparkling Water 500ml",
			Price:      decimal.RequireFromString("15.00"),
			Quantity:   200,
			SupplierID: &supplier.ID,
			IsActive:   true,
		},
	}

	for _, p := range products {
		var existing catalog.Product
		result := m.db.Where("sku = ?", p.SKU).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&p).Error; err != nil {
				return err
			}
			log.Printf("✅ Created product: %s (%s)", p.Name, p.SKU)
		} else {
			log.Printf("⏭️ Product already exists: %s", p.SKU)
		}
	}

	return nil
}
