// internal/interfaces/http/routes/routes.go
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/your-org/kiosk-backend/internal/config"
	"github.com/your-org/kiosk-backend/internal/interfaces/http/handlers"
	"github.com/your-org/kiosk-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// SetupRoutes wires the full API surface under the given router group
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, cfg *config.Config) {
	authHandler := handlers.NewAuthHandler(db, cfg)
	catalogHandler := handlers.NewCatalogHandler(db, cfg)
	cartHandler := handlers.NewCartHandler(db, cfg)
	checkoutHandler := handlers.NewCheckoutHandler(db, cfg)
	orderHandler := handlers.NewOrderHandler(db, cfg)
	walletHandler := handlers.NewWalletHandler(db, cfg)
	adminHandler := handlers.NewAdminHandler(db, cfg)

	// Public auth endpoints
	auth := rg.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)

		protected := auth.Group("")
		protected.Use(middleware.Auth(cfg))
		{
			protected.GET("/profile", authHandler.GetProfile)
		}
	}

	// Public catalog browsing
	products := rg.Group("/products")
	{
		products.GET("", catalogHandler.GetProducts)
		products.GET("/:id", catalogHandler.GetProduct)
	}

	// Cart routes require authentication
	cart := rg.Group("/cart")
	cart.Use(middleware.Auth(cfg))
	{
		cart.GET("", cartHandler.GetCart)
		cart.POST("/items", cartHandler.AddToCart)
		cart.PUT("/items/:id", cartHandler.UpdateCartItem)
		cart.DELETE("/items/:id", cartHandler.RemoveCartItem)
		cart.DELETE("", cartHandler.ClearCart)
	}

	// Checkout routes require authentication
	checkout := rg.Group("/checkout")
	checkout.Use(middleware.Auth(cfg))
	{
		checkout.GET("/summary", checkoutHandler.GetSummary)
		checkout.POST("", checkoutHandler.Checkout)
	}

	// Wallet routes require authentication
	wallet := rg.Group("/wallet")
	wallet.Use(middleware.Auth(cfg))
	{
		wallet.GET("", walletHandler.GetAccount)
		wallet.GET("/transactions", walletHandler.GetTransactions)
		wallet.POST("/topup", walletHandler.TopUp)
	}

	// Order routes require authentication
	orders := rg.Group("/orders")
	orders.Use(middleware.Auth(cfg))
	{
		orders.GET("", orderHandler.GetMyOrders)
		orders.GET("/:id", orderHandler.GetOrder)
		orders.GET("/:id/receipt", orderHandler.GetReceipt)
	}

	// Admin routes: authenticated plus the admin flag
	admin := rg.Group("/admin")
	admin.Use(middleware.Auth(cfg))
	admin.Use(middleware.AdminOnly())
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.PUT("/users/:id/active", adminHandler.SetUserActive)

		admin.POST("/products", catalogHandler.CreateProduct)
		admin.PUT("/products/:id", catalogHandler.UpdateProduct)
		admin.DELETE("/products/:id", catalogHandler.DeleteProduct)

		admin.GET("/suppliers", catalogHandler.GetSuppliers)
		admin.POST("/suppliers", catalogHandler.CreateSupplier)
		admin.DELETE("/suppliers/:id", catalogHandler.DeleteSupplier)

		admin.GET("/orders", orderHandler.ListOrders)
		admin.POST("/orders", orderHandler.CreateOrder)
		admin.PUT("/orders/:id/complete", orderHandler.CompleteOrder)
		admin.DELETE("/orders/:id", orderHandler.DeleteOrder)
		admin.DELETE("/orders/items/:id", orderHandler.DeleteOrderItem)

		admin.POST("/wallet/topup", walletHandler.AdminTopUp)
		admin.POST("/wallet/transactions", walletHandler.CreateTransaction)
		admin.DELETE("/wallet/transactions/:id", walletHandler.DeleteTransaction)

		admin.POST("/carts/cleanup", cartHandler.CleanupExpiredCarts)
	}
}
