package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// CreateReferralRequest is the referral intake contract: both ids explicit,
// no ambient user state.
type CreateReferralRequest struct {
	UserID     int64 `json:"userId"`
	ReferrerID int64 `json:"referrerId"`
}

// CreateReferral is the intake endpoint: 400 when either id is missing or
// the two are equal, otherwise delegates to the graph manager. A repeat call
// with the same link is a success (attribution is idempotent).
func (h *Handler) CreateReferral(c *gin.Context) {
	var req CreateReferralRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing userId or referrerId"})
		return
	}
	if req.UserID == 0 || req.ReferrerID == 0 || req.UserID == req.ReferrerID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing userId or referrerId"})
		return
	}

	if err := h.Graph.Attribute(c.Request.Context(), req.UserID, req.ReferrerID); err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "referral processed"})
}

// GetReferrals returns {referrals, referrer} for a user id.
func (h *Handler) GetReferrals(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing userId"})
		return
	}

	ctx := c.Request.Context()
	referrals, err := h.Graph.GetReferrals(ctx, userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	ref, err := h.Graph.GetReferrer(ctx, userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	var referrer any
	if ref != nil {
		referrer = ref.TelegramID
	}

	if referrals == nil {
		referrals = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{
		"referrals": referrals,
		"referrer":  referrer,
	})
}

// GetReferralDetails resolves the caller's referrals to full profiles.
func (h *Handler) GetReferralDetails(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	users, err := h.Graph.GetReferralsWithDetails(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	type entry struct {
		TelegramID int64  `json:"telegramId"`
		Username   string `json:"username"`
		FirstName  string `json:"firstName"`
		IsPremium  bool   `json:"isPremium"`
	}
	out := make([]entry, 0, len(users))
	for _, u := range users {
		out = append(out, entry{
			TelegramID: u.TelegramID,
			Username:   u.Username,
			FirstName:  u.FirstName,
			IsPremium:  u.IsPremium,
		})
	}

	c.JSON(http.StatusOK, gin.H{"referrals": out})
}
