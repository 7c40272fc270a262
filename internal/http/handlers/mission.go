package handlers

import (
	"net/http"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/store"

	"github.com/gin-gonic/gin"
)

// CompleteMission marks a mission done for the caller. Claiming is separate.
func (h *Handler) CompleteMission(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	kind := domain.MissionKind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mission"})
		return
	}

	if err := h.Ledger.CompleteMission(c.Request.Context(), userID, kind); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "mission complete"})
}

// ClaimMissionReward performs the guarded credit for a completed mission.
func (h *Handler) ClaimMissionReward(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	kind := domain.MissionKind(c.Param("kind"))
	if !kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mission"})
		return
	}

	err := h.Ledger.ClaimReward(c.Request.Context(), userID, domain.RewardForMission(kind), h.Rewards.Mission, nil)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reward claimed", "amount": h.Rewards.Mission})
}

// SyncDiamondName folds the client-detected marker glyph into the stored
// completion flag.
func (h *Handler) SyncDiamondName(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		LastName string `json:"last_name"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	complete, err := h.Ledger.ReconcileDiamondName(c.Request.Context(), userID, req.LastName)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"complete": complete})
}

// ClaimReferralReward credits the 5-referral reward once.
func (h *Handler) ClaimReferralReward(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.Ledger.ClaimReward(c.Request.Context(), userID, domain.RewardReferral, h.Rewards.Referral, nil)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reward claimed", "amount": h.Rewards.Referral})
}

// ClaimGrandPrize credits the 10-referral grand prize and flips the
// ambassador flag in the same write.
func (h *Handler) ClaimGrandPrize(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.Ledger.ClaimReward(c.Request.Context(), userID, domain.RewardGrandPrize, h.Rewards.GrandPrize,
		store.Document{"isAmbassador": true})
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "reward claimed", "amount": h.Rewards.GrandPrize})
}
