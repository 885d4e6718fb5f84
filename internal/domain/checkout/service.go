// internal/domain/checkout/service.go
package checkout

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/your-org/kiosk-backend/internal/config"
	"github.com/your-org/kiosk-backend/internal/domain/cart"
	"github.com/your-org/kiosk-backend/internal/domain/order"
	"github.com/your-org/kiosk-backend/internal/domain/wallet"
	"github.com/your-org/kiosk-backend/internal/pkg/apperr"
	"gorm.io/gorm"
)

// Delivery methods accepted at checkout
const (
	DeliveryMethodDelivery   = "delivery"
	DeliveryMethodCollection = "collection"
)

// Service converts cart contents into a settled order. Settlement is one
// atomic unit: cart flip, account debit, ledger append and order creation
// all commit together or not at all.
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// CheckoutRequest represents a checkout submission
type CheckoutRequest struct {
	DeliveryMethod string `json:"delivery_method" binding:"required"`
}

// SummaryItem represents one cart line in the checkout summary
type SummaryItem struct {
	CartItemID  uint            `json:"cart_item_id"`
	ProductID   uint            `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Summary represents the pre-checkout view of the cart
type Summary struct {
	CartID     uint            `json:"cart_id"`
	Items      []SummaryItem   `json:"items"`
	ItemsTotal decimal.Decimal `json:"items_total"`
}

// Confirmation is returned after a successful checkout
type Confirmation struct {
	CheckoutID     string          `json:"checkout_id"`
	OrderID        uint            `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DeliveryFee    decimal.Decimal `json:"delivery_fee"`
	DeliveryMethod string          `json:"delivery_method"`
	Message        string          `json:"message"`
}

// GetSummary loads the user's active cart and computes per-item subtotals
// and the items total. No delivery fee is applied at this stage.
func (s *Service) GetSummary(userID uint) (*Summary, error) {
	var summary *Summary

	err := s.db.Transaction(func(tx *gorm.DB) error {
		c, err := s.loadActiveCart(tx, userID)
		if err != nil {
			return err
		}
		if c == nil || len(c.Items) == 0 {
			return apperr.NotFound("cart")
		}

		items, total := summarize(c)
		summary = &Summary{CartID: c.ID, Items: items, ItemsTotal: total}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Checkout settles the user's active cart against the wallet: validates
// funds, flips the cart to checked-out, debits the account with a paired
// ledger entry, and creates the order with price snapshots.
func (s *Service) Checkout(userID uint, req *CheckoutRequest) (*Confirmation, error) {
	fee, err := s.deliveryFee(req.DeliveryMethod)
	if err != nil {
		return nil, err
	}

	var confirmation *Confirmation
	err = s.db.Transaction(func(tx *gorm.DB) error {
		c, err := s.loadActiveCart(tx, userID)
		if err != nil {
			return err
		}
		if c == nil || len(c.Items) == 0 {
			return apperr.Validation("cart is empty")
		}

		_, itemsTotal := summarize(c)
		total := itemsTotal.Add(fee)

		var account wallet.Account
		if err := tx.Where("user_id = ?", userID).First(&account).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("account")
			}
			return fmt.Errorf("failed to load account: %w", err)
		}
		if account.Balance.LessThan(total) {
			return apperr.InsufficientBalance(total.Sub(account.Balance))
		}

		// The conditional flip is the duplication guard: a second checkout
		// racing on the same cart finds is_checked_out already true.
		res := tx.Model(&cart.Cart{}).
			Where("id = ? AND is_checked_out = ?", c.ID, false).
			Update("is_checked_out", true)
		if res.Error != nil {
			return fmt.Errorf("failed to mark cart checked out: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("cart is already checked out")
		}

		o := order.Order{
			UserID:         userID,
			Status:         order.OrderStatusPending,
			PaymentStatus:  order.PaymentStatusPaid,
			SubtotalAmount: itemsTotal,
			DeliveryFee:    fee,
			TotalAmount:    total,
			DeliveryMethod: req.DeliveryMethod,
			CheckoutID:     uuid.New().String(),
			OrderDate:      time.Now().UTC(),
		}
		if err := tx.Create(&o).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		o.OrderNumber = o.GenerateOrderNumber()
		if err := tx.Model(&o).Update("order_number", o.OrderNumber).Error; err != nil {
			return fmt.Errorf("failed to set order number: %w", err)
		}

		// Stock was reserved when items entered the cart; checkout only
		// snapshots the lines.
		for _, item := range c.Items {
			name := ""
			if item.Product != nil {
				name = item.Product.Name
			}
			orderItem := order.OrderItem{
				OrderID:         o.ID,
				ProductID:       item.ProductID,
				Name:            name,
				Quantity:        item.Quantity,
				PriceAtPurchase: item.UnitPrice,
				TotalPrice:      item.Subtotal(),
			}
			if err := tx.Create(&orderItem).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}

		if _, err := wallet.Debit(tx, &account, total,
			fmt.Sprintf("Checkout %s", o.OrderNumber)); err != nil {
			return err
		}

		confirmation = &Confirmation{
			CheckoutID:     o.CheckoutID,
			OrderID:        o.ID,
			OrderNumber:    o.OrderNumber,
			TotalAmount:    total,
			DeliveryFee:    fee,
			DeliveryMethod: req.DeliveryMethod,
			Message:        "Checkout completed successfully",
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return confirmation, nil
}

// deliveryFee resolves the surcharge for a delivery method. The fee table is
// configuration, not business logic: delivery adds a flat fee, collection
// adds nothing.
func (s *Service) deliveryFee(method string) (decimal.Decimal, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case DeliveryMethodDelivery:
		return s.config.Commerce.DeliveryFee, nil
	case DeliveryMethodCollection:
		return decimal.Zero, nil
	default:
		return decimal.Zero, apperr.Validation("unknown delivery method %q", method)
	}
}

// loadActiveCart loads the user's non-checked-out cart with items. An
// expired cart is released (stock restored) and reported as absent, same as
// every other cart read.
func (s *Service) loadActiveCart(tx *gorm.DB, userID uint) (*cart.Cart, error) {
	var c cart.Cart
	err := tx.Preload("Items").Preload("Items.Product").
		Where("user_id = ? AND is_checked_out = ?", userID, false).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	if c.IsExpired(time.Now().UTC()) {
		if _, err := cart.Release(tx, &c); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return &c, nil
}

func summarize(c *cart.Cart) ([]SummaryItem, decimal.Decimal) {
	items := make([]SummaryItem, len(c.Items))
	total := decimal.Zero
	for i, item := range c.Items {
		name := ""
		if item.Product != nil {
			name = item.Product.Name
		}
		subtotal := item.Subtotal()
		items[i] = SummaryItem{
			CartItemID:  item.ID,
			ProductID:   item.ProductID,
			ProductName: name,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			Subtotal:    subtotal,
		}
		total = total.Add(subtotal)
	}
	return items, total
}
