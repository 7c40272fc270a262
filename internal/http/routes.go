package http

import (
	"os"
	"strconv"
	"time"

	"github.com/dht-dimaond/diamond/internal/http/handlers"
	"github.com/dht-dimaond/diamond/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the full HTTP surface onto the engine. The pool is
// only used by the health probes; everything else goes through the handler's
// document store.
func RegisterRoutes(r *gin.Engine, db *pgxpool.Pool, h *handlers.Handler, version string) {
	healthHandler := handlers.NewHealthHandler(db, version)

	// read limits from env, with safe defaults
	apiRateLimit := 60
	if v := os.Getenv("API_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			apiRateLimit = n
		}
	}
	apiRateWindow := time.Minute
	if v := os.Getenv("API_RATE_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			apiRateWindow = time.Duration(n) * time.Second
		}
	}

	authRateLimit := 5
	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			authRateLimit = n
		}
	}
	authRateWindow := time.Minute
	if v := os.Getenv("AUTH_RATE_WINDOW_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			authRateWindow = time.Duration(n) * time.Second
		}
	}

	// Health checks and metrics (no rate limiting)
	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RedisRateLimit(apiRateLimit, apiRateWindow))

	// Auth
	api.POST("/auth", middleware.RedisRateLimit(authRateLimit, authRateWindow), h.Auth)

	// User
	api.GET("/me", middleware.JWT(), h.Me)

	// Referral graph
	api.POST("/referrals", h.CreateReferral)
	api.GET("/referrals", h.GetReferrals)
	api.GET("/referrals/details", middleware.JWT(), h.GetReferralDetails)

	// Missions and rewards
	api.POST("/missions/:kind/complete", middleware.JWT(), h.CompleteMission)
	api.POST("/missions/:kind/claim", middleware.JWT(), h.ClaimMissionReward)
	api.POST("/missions/diamond/sync", middleware.JWT(), h.SyncDiamondName)
	api.POST("/rewards/referral/claim", middleware.JWT(), h.ClaimReferralReward)
	api.POST("/rewards/grand-prize/claim", middleware.JWT(), h.ClaimGrandPrize)

	// Mining session
	api.POST("/mining/start", middleware.JWT(), h.StartMining)
	api.POST("/mining/stop", middleware.JWT(), h.StopMining)
	api.GET("/mining/state", middleware.JWT(), h.MiningState)
	api.POST("/mining/claim", middleware.JWT(), h.ClaimMining)

	// Daily streak
	api.POST("/streak/touch", middleware.JWT(), h.TouchStreak)

	// Upgrades and purchase history
	api.GET("/upgrade/packages", h.ListPackages)
	api.POST("/upgrade/purchase", middleware.JWT(), h.Purchase)
	api.GET("/transactions", middleware.JWT(), h.ListTransactions)
}
