package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voyago/backend/internal/models"
	"voyago/backend/internal/services"
)

// RestWalletHandler handles wallet balance, cash-in and withdrawal requests.
type RestWalletHandler struct {
	walletService services.IWalletService
}

// NewRestWalletHandler creates a new RestWalletHandler.
func NewRestWalletHandler(walletService services.IWalletService) *RestWalletHandler {
	return &RestWalletHandler{walletService: walletService}
}

// GetWallet handles GET /v1/wallet
func (h *RestWalletHandler) GetWallet(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	wallet, err := h.walletService.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, "Failed to load wallet")
		return
	}
	c.JSON(http.StatusOK, wallet)
}

// CashIn handles POST /v1/wallet/cash-in. The body is the payment
// provider's capture result.
func (h *RestWalletHandler) CashIn(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var capture models.PaymentCapture
	if err := c.ShouldBindJSON(&capture); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payment capture"})
		return
	}

	user, err := h.walletService.CashIn(c.Request.Context(), userID, capture)
	if err != nil {
		respondError(c, err, "Failed to apply payment")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":     user.WalletBalance,
		"transaction": firstTransaction(user.Transactions),
	})
}

func firstTransaction(txs []models.Transaction) *models.Transaction {
	if len(txs) == 0 {
		return nil
	}
	return &txs[0]
}

type withdrawalRequest struct {
	Amount      float64 `json:"amount"`
	PaypalEmail string  `json:"paypal_email"`
}

// RequestWithdrawal handles POST /v1/wallet/withdrawals
func (h *RestWalletHandler) RequestWithdrawal(c *gin.Context) {
	hostID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.PaypalEmail == "" {
		if user, ok := currentUser(c); ok {
			req.PaypalEmail = user.PaypalEmail
		}
	}

	wr, err := h.walletService.RequestWithdrawal(c.Request.Context(), hostID, req.Amount, req.PaypalEmail)
	if err != nil {
		respondError(c, err, "Failed to request withdrawal")
		return
	}
	c.JSON(http.StatusCreated, wr)
}

// ListWithdrawals handles GET /v1/wallet/withdrawals
func (h *RestWalletHandler) ListWithdrawals(c *gin.Context) {
	hostID, ok := requireUserID(c)
	if !ok {
		return
	}
	requests, err := h.walletService.ListWithdrawals(c.Request.Context(), hostID)
	if err != nil {
		respondError(c, err, "Failed to list withdrawals")
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": requests})
}
