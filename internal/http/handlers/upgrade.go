package handlers

import (
	"net/http"
	"sort"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/logger"

	"github.com/gin-gonic/gin"
)

// ListPackages returns the fixed upgrade catalog.
func (h *Handler) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": domain.MiningPackages})
}

type PurchaseRequest struct {
	PackageID int    `json:"package_id"`
	Boc       string `json:"boc"`
}

// Purchase records a confirmed package payment, credits the hashrate and
// pushes the new rate into a live mining session if one exists. The receipt
// is truncated before it enters the ledger.
func (h *Handler) Purchase(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req PurchaseRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	pkg, ok := domain.PackageByID(req.PackageID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown package"})
		return
	}
	if req.Boc == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing payment receipt"})
		return
	}

	ctx := c.Request.Context()
	tx := &domain.Transaction{
		UserID:     userID,
		PackageID:  pkg.ID,
		HashRate:   pkg.HashRate,
		PriceTON:   pkg.PriceTON,
		Amount:     pkg.PriceTON,
		ReceiptRef: req.Boc,
		Validity:   pkg.Validity,
	}
	if err := h.Txlog.Record(ctx, tx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record purchase"})
		return
	}

	if err := h.Users.AddHashrate(ctx, userID, pkg.HashRate); err != nil {
		respondErr(c, err)
		return
	}

	// a live session picks the upgrade up immediately
	user, err := h.Users.GetUser(ctx, userID)
	if err == nil && user != nil {
		if session, err := h.Mining.Session(ctx, userID); err == nil {
			session.SetHashRate(user.Hashrate)
		}
	} else if err != nil {
		logger.Warn("post-purchase user reload failed", "user", userID, "error", err)
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "purchase recorded",
		"transaction": tx,
	})
}

// ListTransactions returns the caller's purchase history, newest first.
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	txs, err := h.Txlog.List(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })

	c.JSON(http.StatusOK, gin.H{"transactions": txs})
}
