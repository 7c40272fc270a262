package handlers

import (
	"errors"
	"net/http"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/logger"
	"github.com/dht-dimaond/diamond/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthRequest struct {
	InitData   string `json:"init_data"`
	StartParam string `json:"start_param"`
}

// Auth validates Telegram init data, ensures the user record exists (first
// contact creates it with defaults) and issues a session token. When the app
// was opened through an invite link the referral is attributed here; a
// failed attribution never blocks login.
func (h *Handler) Auth(c *gin.Context) {
	var req AuthRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}
	if len(req.InitData) > 4096 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "init_data too long"})
		return
	}

	values, ok := service.ValidateTelegramInitData(req.InitData, h.BotToken)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or stale telegram data"})
		return
	}

	tgUser, ok := service.ParseInitDataUser(values)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user not found in init data"})
		return
	}

	ctx := c.Request.Context()
	if err := h.Users.EnsureUser(ctx, tgUser.ID, tgUser.Profile()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user"})
		return
	}

	if referrerID, ok := service.ParseStartParam(req.StartParam); ok {
		if err := h.Graph.Attribute(ctx, tgUser.ID, referrerID); err != nil &&
			!errors.Is(err, domain.ErrSelfReferral) {
			logger.Warn("referral attribution failed",
				"user", tgUser.ID, "referrer", referrerID, "error", err)
		}
	}

	// fold the derived diamond-name completion in while we hold a fresh
	// profile snapshot
	if _, err := h.Ledger.ReconcileDiamondName(ctx, tgUser.ID, tgUser.LastName); err != nil {
		logger.Warn("diamond name reconcile failed", "user", tgUser.ID, "error", err)
	}

	token, err := service.GenerateJWT(tgUser.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}

	user, err := h.Users.GetUser(ctx, tgUser.ID)
	if err != nil || user == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}
