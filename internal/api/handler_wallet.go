package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"laundrylink-backend/internal/model"
	"laundrylink-backend/internal/notification"
)

const transactionsLimit = 10

// GetWallet returns the caller's wallet.
func (h *Handler) GetWallet(c *gin.Context) {
	w, err := h.store.GetWallet(c.Request.Context(), h.identity(c).UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// ListTransactions returns the caller's latest ledger entries.
func (h *Handler) ListTransactions(c *gin.Context) {
	txs, err := h.store.ListTransactions(c.Request.Context(), h.identity(c).UserID, transactionsLimit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

type topUpRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// TopUp credits the caller's wallet.
func (h *Handler) TopUp(c *gin.Context) {
	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "amount must be a positive number")
		return
	}

	userID := h.identity(c).UserID
	w, entry, err := h.store.TopUp(c.Request.Context(), userID, req.Amount)
	if err != nil {
		h.respondError(c, err)
		return
	}

	h.notifier.Notify(notification.Job{
		UserID:  userID,
		Title:   "Money added successfully!",
		Message: fmt.Sprintf("₹%s has been added to your wallet", strconv.FormatFloat(req.Amount, 'f', -1, 64)),
		Type:    model.NotifyWalletCredited,
	})
	c.JSON(http.StatusOK, gin.H{"wallet": w, "transaction": entry})
}
