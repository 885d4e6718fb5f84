// internal/domain/cart/service.go
package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/kiosk-backend/internal/config"
	"github.com/your-org/kiosk-backend/internal/domain/catalog"
	"github.com/your-org/kiosk-backend/internal/pkg/apperr"
	"gorm.io/gorm"
)

// Service handles cart business logic. Every mutating operation runs inside
// one database transaction so a cart item insert and its stock decrement
// commit or roll back together.
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new cart service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// UpdateQuantityRequest represents update cart item request
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

// CartItemResponse represents a cart line with product details
type CartItemResponse struct {
	CartItemID  uint            `json:"cart_item_id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CartResponse represents a cart with items and computed total
type CartResponse struct {
	CartID      uint               `json:"cart_id"`
	Items       []CartItemResponse `json:"items"`
	TotalAmount decimal.Decimal    `json:"total_amount"`
	ExpiresAt   time.Time          `json:"expires_at"`
}

// GetCart returns the user's active, non-expired cart with items and total.
// Reading an expired cart clears it (restoring reserved stock) as a side
// effect and reports the cart as gone.
func (s *Service) GetCart(userID uint) (*CartResponse, error) {
	var response *CartResponse

	err := s.db.Transaction(func(tx *gorm.DB) error {
		c, err := s.activeCart(tx, userID)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.NotFound("cart")
		}

		if c.IsExpired(time.Now().UTC()) {
			if _, err := Release(tx, c); err != nil {
				return err
			}
			return apperr.NotFound("cart")
		}

		response = buildCartResponse(c)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return response, nil
}

// AddToCart reserves stock for a product and adds a new line to the user's
// active cart, creating the cart if none exists. Each add is a new line;
// duplicate product lines are not merged. Adding refreshes the whole cart's
// expiry (sliding TTL).
func (s *Service) AddToCart(userID uint, req *AddToCartRequest) (*CartResponse, error) {
	if req.Quantity < 1 {
		return nil, apperr.Validation("quantity must be at least 1")
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var prod catalog.Product
		if err := tx.Where("id = ? AND is_active = ?", req.ProductID, true).First(&prod).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("product")
			}
			return fmt.Errorf("failed to load product: %w", err)
		}

		now := time.Now().UTC()
		expiresAt := now.Add(s.config.Commerce.ReservationTTL)

		c, err := s.activeCart(tx, userID)
		if err != nil {
			return err
		}
		if c != nil && c.IsExpired(now) {
			if _, err := Release(tx, c); err != nil {
				return err
			}
			c = nil
		}

		if c == nil {
			c = &Cart{UserID: userID, ExpiresAt: expiresAt}
			if err := tx.Create(c).Error; err != nil {
				return fmt.Errorf("failed to create cart: %w", err)
			}
		} else {
			if err := tx.Model(c).Update("expires_at", expiresAt).Error; err != nil {
				return fmt.Errorf("failed to extend cart expiry: %w", err)
			}
		}

		// Reservation: stock leaves the sellable pool the moment the item
		// enters the cart, not at checkout.
		if err := catalog.ReserveStock(tx, prod.ID, req.Quantity); err != nil {
			return err
		}

		item := CartItem{
			CartID:    c.ID,
			ProductID: prod.ID,
			Quantity:  req.Quantity,
			UnitPrice: prod.Price,
		}
		if err := tx.Create(&item).Error; err != nil {
			return fmt.Errorf("failed to create cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetCart(userID)
}

// UpdateQuantity changes a cart line's quantity, adjusting the product's
// reserved stock by the signed delta. The line must belong to the user's own
// cart; anyone else's lines read as missing.
func (s *Service) UpdateQuantity(userID, cartItemID uint, req *UpdateQuantityRequest) error {
	if req.Quantity < 1 {
		return apperr.Validation("quantity must be at least 1")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		item, err := s.liveItem(tx, userID, cartItemID)
		if err != nil {
			return err
		}

		delta := req.Quantity - item.Quantity
		switch {
		case delta > 0:
			if err := catalog.ReserveStock(tx, item.ProductID, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := catalog.ReleaseStock(tx, item.ProductID, -delta); err != nil {
				return err
			}
		}

		if err := tx.Model(item).Update("quantity", req.Quantity).Error; err != nil {
			return fmt.Errorf("failed to update cart item: %w", err)
		}
		return nil
	})
}

// RemoveItem deletes a line from the user's own cart and returns its
// reserved quantity to stock
func (s *Service) RemoveItem(userID, cartItemID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		item, err := s.liveItem(tx, userID, cartItemID)
		if err != nil {
			return err
		}

		if err := catalog.ReleaseStock(tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
		if err := tx.Delete(item).Error; err != nil {
			return fmt.Errorf("failed to delete cart item: %w", err)
		}
		return nil
	})
}

// ExpireCart releases the user's active cart regardless of its expiry time.
// Calling it when no cart exists is a no-op success, so it is idempotent.
func (s *Service) ExpireCart(userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		c, err := s.activeCart(tx, userID)
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}
		_, err = Release(tx, c)
		return err
	})
}

// CleanupExpired releases every active cart whose expiry has passed. It is
// exposed for an external cron-like trigger; there is no in-process timer.
// Returns the number of carts released.
func (s *Service) CleanupExpired() (int, error) {
	released := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var carts []Cart
		now := time.Now().UTC()
		if err := tx.Preload("Items").
			Where("is_checked_out = ? AND expires_at < ?", false, now).
			Find(&carts).Error; err != nil {
			return fmt.Errorf("failed to scan expired carts: %w", err)
		}

		for i := range carts {
			claimed, err := Release(tx, &carts[i])
			if err != nil {
				return err
			}
			if claimed {
				released++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// Internal helpers

// activeCart loads the user's non-checked-out cart with items, or nil
func (s *Service) activeCart(tx *gorm.DB, userID uint) (*Cart, error) {
	var c Cart
	err := tx.Preload("Items").Preload("Items.Product").
		Where("user_id = ? AND is_checked_out = ?", userID, false).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &c, nil
}

// liveItem loads a cart item belonging to the user's own active cart. Lines
// in other users' carts read as missing. If the owning cart has expired it is
// released first and the item is reported as missing.
func (s *Service) liveItem(tx *gorm.DB, userID, cartItemID uint) (*CartItem, error) {
	var item CartItem
	if err := tx.First(&item, cartItemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("cart item")
		}
		return nil, fmt.Errorf("failed to load cart item: %w", err)
	}

	var c Cart
	if err := tx.Preload("Items").First(&c, item.CartID).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if c.UserID != userID {
		return nil, apperr.NotFound("cart item")
	}
	if c.IsCheckedOut {
		return nil, apperr.Conflict("cart is already checked out")
	}
	if c.IsExpired(time.Now().UTC()) {
		if _, err := Release(tx, &c); err != nil {
			return nil, err
		}
		return nil, apperr.NotFound("cart item")
	}
	return &item, nil
}

// Release removes a cart and restores the reserved stock for every line.
// The delete claims the cart row before any stock moves, so two transactions
// racing to release the same cart cannot both restore its reservations.
// Returns whether this call claimed the cart. Meant to run inside the
// caller's transaction.
func Release(tx *gorm.DB, c *Cart) (bool, error) {
	res := tx.Delete(&Cart{}, c.ID)
	if res.Error != nil {
		return false, fmt.Errorf("failed to delete cart: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Another transaction already claimed and released this cart.
		return false, nil
	}
	if err := tx.Where("cart_id = ?", c.ID).Delete(&CartItem{}).Error; err != nil {
		return false, fmt.Errorf("failed to clear cart items: %w", err)
	}
	for _, item := range c.Items {
		if err := catalog.ReleaseStock(tx, item.ProductID, item.Quantity); err != nil {
			return false, err
		}
	}
	return true, nil
}

func buildCartResponse(c *Cart) *CartResponse {
	items := make([]CartItemResponse, len(c.Items))
	total := decimal.Zero
	for i, item := range c.Items {
		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		subtotal := item.Subtotal()
		items[i] = CartItemResponse{
			CartItemID:  item.ID,
			ProductID:   item.ProductID,
			ProductName: name,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Subtotal:    subtotal,
		}
		total = total.Add(subtotal)
	}

	return &CartResponse{
		CartID:      c.ID,
		Items:       items,
		TotalAmount: total,
		ExpiresAt:   c.ExpiresAt,
	}
}
