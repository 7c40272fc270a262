package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartMining begins (or resumes) the caller's accrual session.
func (h *Handler) StartMining(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	session, err := h.Mining.Session(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	session.Start(c.Request.Context())

	c.JSON(http.StatusOK, session.State())
}

// StopMining halts accrual and checkpoints the session.
func (h *Handler) StopMining(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	session, err := h.Mining.Session(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}
	session.Stop()

	c.JSON(http.StatusOK, session.State())
}

// MiningState snapshots the caller's session without touching it.
func (h *Handler) MiningState(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	session, err := h.Mining.Session(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, session.State())
}

// ClaimMining credits a full accumulator to the durable balance. Below the
// cap the claim is rejected and the accumulator is untouched.
func (h *Handler) ClaimMining(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	session, err := h.Mining.Session(c.Request.Context(), userID)
	if err != nil {
		respondErr(c, err)
		return
	}

	amount, err := session.Claim(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "mining claimed", "amount": amount})
}
