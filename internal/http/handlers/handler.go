package handlers

import (
	"errors"
	"net/http"

	"github.com/dht-dimaond/diamond/internal/domain"
	"github.com/dht-dimaond/diamond/internal/ledger"
	"github.com/dht-dimaond/diamond/internal/mining"
	"github.com/dht-dimaond/diamond/internal/referral"
	"github.com/dht-dimaond/diamond/internal/repository"
	"github.com/dht-dimaond/diamond/internal/store"
	"github.com/dht-dimaond/diamond/internal/streak"

	"github.com/gin-gonic/gin"
)

// Rewards carries the configured amounts handed to the ledger on claims.
type Rewards struct {
	Mission    float64
	Referral   float64
	GrandPrize float64
}

type Handler struct {
	Store    store.Store
	Users    *repository.UserRepository
	Txlog    *repository.TransactionLog
	Graph    *referral.Manager
	Ledger   *ledger.Ledger
	Streak   *streak.Tracker
	Mining   *mining.Manager
	Rewards  Rewards
	BotToken string
}

func New(s store.Store, miningMgr *mining.Manager, graph *referral.Manager, led *ledger.Ledger, rewards Rewards, botToken string) *Handler {
	return &Handler{
		Store:    s,
		Users:    repository.NewUserRepository(s),
		Txlog:    repository.NewTransactionLog(s),
		Graph:    graph,
		Ledger:   led,
		Streak:   streak.New(s),
		Mining:   miningMgr,
		Rewards:  rewards,
		BotToken: botToken,
	}
}

// getUserID extracts the authenticated user id set by the JWT middleware.
func getUserID(c *gin.Context) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	switch v := uidVal.(type) {
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// respondErr maps the ledger/graph error taxonomy onto HTTP responses so
// every failure mode stays distinguishable for the frontend.
func respondErr(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, domain.ErrReferrerNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "referrer not found"})
	case errors.Is(err, domain.ErrSelfReferral):
		c.JSON(http.StatusBadRequest, gin.H{"error": "self-referral not allowed"})
	case errors.Is(err, domain.ErrAlreadyClaimed):
		c.JSON(http.StatusConflict, gin.H{"error": "already claimed"})
	case errors.Is(err, domain.ErrMissionIncomplete):
		c.JSON(http.StatusBadRequest, gin.H{"error": "mission not complete"})
	case errors.Is(err, domain.ErrMiningIncomplete):
		c.JSON(http.StatusBadRequest, gin.H{"error": "mining not complete"})
	case errors.Is(err, domain.ErrThresholdNotReached):
		c.JSON(http.StatusBadRequest, gin.H{"error": "referral threshold not reached"})
	case errors.Is(err, store.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict, retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
