package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dht-dimaond/diamond/internal/config"
	"github.com/dht-dimaond/diamond/internal/consistency"
	"github.com/dht-dimaond/diamond/internal/db"
	httpServer "github.com/dht-dimaond/diamond/internal/http"
	"github.com/dht-dimaond/diamond/internal/http/handlers"
	"github.com/dht-dimaond/diamond/internal/http/middleware"
	"github.com/dht-dimaond/diamond/internal/ledger"
	"github.com/dht-dimaond/diamond/internal/logger"
	"github.com/dht-dimaond/diamond/internal/mining"
	"github.com/dht-dimaond/diamond/internal/referral"
	"github.com/dht-dimaond/diamond/internal/repository"
	"github.com/dht-dimaond/diamond/internal/service"
	"github.com/dht-dimaond/diamond/internal/store/pgstore"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT(cfg.JWTSecret)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	docs := pgstore.New(dbPool)
	users := repository.NewUserRepository(docs)

	checkpoints, err := mining.NewFileCheckpoints(cfg.CheckpointDir)
	if err != nil {
		logger.Fatal("mining checkpoint dir unavailable", "dir", cfg.CheckpointDir, "error", err)
	}
	miningMgr := mining.NewManager(users, checkpoints)

	graph := referral.NewManager(docs, referral.Config{})
	led := ledger.New(docs, ledger.Config{
		ReferralThreshold:   cfg.ReferralThreshold,
		GrandPrizeThreshold: cfg.GrandPrizeThreshold,
	})

	h := handlers.New(docs, miningMgr, graph, led, handlers.Rewards{
		Mission:    cfg.MissionReward,
		Referral:   cfg.ReferralReward,
		GrandPrize: cfg.GrandPrizeReward,
	}, cfg.BotToken)

	// nightly drift repair for the cached referral counters
	checker := consistency.NewChecker(docs)
	sched := cron.New()
	if _, err := sched.AddFunc("@daily", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := checker.CheckReferralCounts(ctx); err != nil {
			logger.Error("referral count check failed", "error", err)
		}
	}); err != nil {
		logger.Fatal("cron setup failed", "error", err)
	}
	sched.Start()
	defer sched.Stop()

	r := gin.Default()

	// CORS for production (frontend on a different domain)
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		}
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)

	httpServer.RegisterRoutes(r, dbPool, h, version)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	// tickers checkpoint on the way down so accrued progress survives
	miningMgr.Shutdown()

	logger.Info("server exited")
}
