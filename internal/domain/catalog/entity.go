// internal/domain/catalog/entity.go
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product represents a sellable item. Quantity is the sellable pool: stock
// reserved by cart items has already been subtracted from it.
type Product struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	SKU        string          `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name       string          `gorm:"not null;size:255" json:"name"`
	Price      decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"price"`
	Quantity   int             `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	SupplierID *uint           `gorm:"index" json:"supplier_id,omitempty"`
	IsActive   bool            `gorm:"default:true" json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relationships
	Supplier *Supplier `gorm:"foreignKey:SupplierID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"supplier,omitempty"`
}

// Supplier represents a product supplier
type Supplier struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null;size:255" json:"name"`
	Email     string         `gorm:"size:255" json:"email"`
	Phone     string         `gorm:"size:20" json:"phone"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Products []Product `gorm:"foreignKey:SupplierID" json:"products,omitempty"`
}

// TableName overrides
func (Product) TableName() string  { return "products" }
func (Supplier) TableName() string { return "suppliers" }

// IsInStock reports whether any sellable quantity remains
func (p *Product) IsInStock() bool {
	return p.Quantity > 0
}
