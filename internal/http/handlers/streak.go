package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// TouchStreak advances the caller's daily streak and credits the next
// milestone when one is newly reached. Same-day repeats are no-ops.
func (h *Handler) TouchStreak(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctx := c.Request.Context()
	record, err := h.Streak.Touch(ctx, userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	milestone, err := h.Streak.CheckMilestones(ctx, userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	resp := gin.H{"streak": record}
	if milestone != nil {
		resp["milestone"] = milestone
	}
	c.JSON(http.StatusOK, resp)
}
