// internal/interfaces/http/handlers/wallet.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/your-org/kiosk-backend/internal/config"
	"github.com/your-org/kiosk-backend/internal/domain/wallet"
	"github.com/your-org/kiosk-backend/internal/interfaces/http/middleware"
	"gorm.io/gorm"
)

// WalletHandler handles wallet and ledger endpoints
type WalletHandler struct {
	walletService *wallet.Service
	config        *config.Config
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(db *gorm.DB, cfg *config.Config) *WalletHandler {
	return &WalletHandler{
		walletService: wallet.NewService(db, cfg),
		config:        cfg,
	}
}

// GetAccount handles GET /wallet
func (h *WalletHandler) GetAccount(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	account, err := h.walletService.GetAccount(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Account retrieved successfully",
		"data":    account,
	})
}

// GetTransactions handles GET /wallet/transactions
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	transactions, err := h.walletService.GetTransactions(userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Transactions retrieved successfully",
		"data":    transactions,
	})
}

// TopUp handles POST /wallet/topup
func (h *WalletHandler) TopUp(c *gin.Context) {
	userID, _ := middleware.GetUserIDFromContext(c)

	var req wallet.TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	result, err := h.walletService.TopUp(userID, req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Top-up successful",
		"data":    result,
	})
}

// AdminTopUp handles POST /admin/wallet/topup
func (h *WalletHandler) AdminTopUp(c *gin.Context) {
	var req wallet.AdminTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	result, err := h.walletService.AdminTopUp(req.UserID, req.Amount, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Top-up successful",
		"data":    result,
	})
}

// CreateTransaction handles POST /admin/wallet/transactions
func (h *WalletHandler) CreateTransaction(c *gin.Context) {
	var req wallet.CreateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	result, err := h.walletService.CreateTransaction(&req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Transaction created successfully",
		"data":    result,
	})
}

// DeleteTransaction handles DELETE /admin/wallet/transactions/:id
func (h *WalletHandler) DeleteTransaction(c *gin.Context) {
	idParam := c.Param("id")
	transactionID, err := strconv.ParseUint(idParam, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid transaction ID",
		})
		return
	}

	if err := h.walletService.DeleteTransaction(uint(transactionID)); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Transaction deleted successfully",
	})
}
