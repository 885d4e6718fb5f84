// internal/domain/order/service.go
package order

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

// Service handles order business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new order service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// OrderLine represents one requested line for direct order creation
type OrderLine struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required"`
}

// CreateOrderRequest represents the direct-order path that bypasses the cart
type CreateOrderRequest struct {
	UserID uint        `json:"user_id" binding:"required"`
	Items  []OrderLine `json:"items" binding:"required,dive"`
}

// OrderListRequest represents order list query parameters
type OrderListRequest struct {
	Page      int         `form:"page,default=1"`
	Limit     int         `form:"limit,default=20"`
	Status    OrderStatus `form:"status"`
	UserID    uint        `form:"user_id"`
	SortOrder string      `form:"sort_order,default=desc"`
}

// OrderListResponse represents orders with pagination
type OrderListResponse struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination represents pagination information
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// CreateOrder creates an order directly from an item list, reserving stock
// per line. Any line failure rolls back the whole order: no partial orders,
// no partial stock decrements.
func (s *Service) CreateOrder(req *CreateOrderRequest) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, apperr.Validation("order must contain at least one item")
	}
	for _, line := range req.Items {
		if line.Quantity < 1 {
			return nil, apperr.Validation("quantity must be at least 1")
		}
	}

	var created Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		subtotal := decimal.Zero
		orderItems := make([]OrderItem, 0, len(req.Items))

		for _, line := range req.Items {
			var prod catalog.Product
			if err := tx.First(&prod, line.ProductID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("product")
				}
				return fmt.Errorf("failed to load product: %w", err)
			}

			if err := catalog.ReserveStock(tx, prod.ID, line.Quantity); err != nil {
				return err
			}

			lineTotal := prod.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			orderItems = append(orderItems, OrderItem{
				ProductID:       prod.ID,
				Name:            prod.Name,
				Quantity:        line.Quantity,
				PriceAtPurchase: prod.Price,
				TotalPrice:      lineTotal,
			})
			subtotal = subtotal.Add(lineTotal)
		}

		created = Order{
			UserID:         req.UserID,
			Status:         OrderStatusPending,
			PaymentStatus:  PaymentStatusUnpaid,
			SubtotalAmount: subtotal,
			DeliveryFee:    decimal.Zero,
			TotalAmount:    subtotal,
			OrderDate:      time.Now().UTC(),
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		created.OrderNumber = created.GenerateOrderNumber()
		if err := tx.Model(&created).Update("order_number", created.OrderNumber).Error; err != nil {
			return fmt.Errorf("failed to set order number: %w", err)
		}

		for i := range orderItems {
			orderItems[i].OrderID = created.ID
			if err := tx.Create(&orderItems[i]).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
		}
		created.Items = orderItems
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// GetOrder retrieves a single order with its items
func (s *Service) GetOrder(id uint) (*Order, error) {
	var o Order
	result := s.db.Preload("Items").Where("id = ?", id).First(&o)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("order")
		}
		return nil, fmt.Errorf("failed to retrieve order: %w", result.Error)
	}
	return &o, nil
}

// GetOrders retrieves orders with filtering and pagination
func (s *Service) GetOrders(req *OrderListRequest) (*OrderListResponse, error) {
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 || req.Limit > 100 {
		req.Limit = 20
	}

	var orders []Order
	var total int64

	query := s.db.Model(&Order{}).Preload("Items")
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.UserID > 0 {
		query = query.Where("user_id = ?", req.UserID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	sortOrder := "desc"
	if req.SortOrder == "asc" {
		sortOrder = "asc"
	}

	offset := (req.Page - 1) * req.Limit
	if err := query.Order("created_at " + sortOrder).Offset(offset).Limit(req.Limit).Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	totalPages := int((total + int64(req.Limit) - 1) / int64(req.Limit))
	return &OrderListResponse{
		Orders: orders,
		Pagination: Pagination{
			Page:       req.Page,
			Limit:      req.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// GetUserOrders retrieves orders for a specific user
func (s *Service) GetUserOrders(userID uint, page, limit int) (*OrderListResponse, error) {
	return s.GetOrders(&OrderListRequest{Page: page, Limit: limit, UserID: userID})
}

// CompleteOrder finalizes an order: status completed, payment settled. An
// administrative step with no business validation beyond existence.
func (s *Service) CompleteOrder(orderID uint) error {
	result := s.db.Model(&Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"status":         OrderStatusCompleted,
			"payment_status": PaymentStatusPaid,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to complete order: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("order")
	}
	return nil
}

// DeleteOrder removes an order and its items, restoring stock for every line
func (s *Service) DeleteOrder(orderID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var o Order
		if err := tx.Preload("Items").First(&o, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("order")
			}
			return fmt.Errorf("failed to load order: %w", err)
		}

		for _, item := range o.Items {
			if err := catalog.ReleaseStock(tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}

		if err := tx.Where("order_id = ?", o.ID).Delete(&OrderItem{}).Error; err != nil {
			return fmt.Errorf("failed to delete order items: %w", err)
		}
		if err := tx.Delete(&o).Error; err != nil {
			return fmt.Errorf("failed to delete order: %w", err)
		}
		return nil
	})
}

// DeleteOrderItem removes one line from an order, restoring its stock and
// recomputing the order's subtotal and total from the remaining lines.
func (s *Service) DeleteOrderItem(orderItemID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var item OrderItem
		if err := tx.First(&item, orderItemID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("order item")
			}
			return fmt.Errorf("failed to load order item: %w", err)
		}

		var o Order
		if err := tx.First(&o, item.OrderID).Error; err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}

		if err := catalog.ReleaseStock(tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
		if err := tx.Delete(&item).Error; err != nil {
			return fmt.Errorf("failed to delete order item: %w", err)
		}

		var remaining []OrderItem
		if err := tx.Where("order_id = ?", o.ID).Find(&remaining).Error; err != nil {
			return fmt.Errorf("failed to load remaining items: %w", err)
		}
		subtotal := decimal.Zero
		for _, r := range remaining {
			subtotal = subtotal.Add(r.TotalPrice)
		}

		if err := tx.Model(&o).Updates(map[string]interface{}{
			"subtotal_amount": subtotal,
			"total_amount":    subtotal.Add(o.DeliveryFee),
		}).Error; err != nil {
			return fmt.Errorf("failed to recompute order totals: %w", err)
		}
		return nil
	})
}
