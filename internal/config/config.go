package config

import (
	"os"
	"strconv"

	"github.com/dht-dimaond/diamond/internal/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	RedisAddr   string
	RedisPass   string
	RedisDB     int
	BotToken    string
	JWTSecret   string
	LogLevel    string
	LogJSON     bool

	// Reward tuning
	MissionReward       float64
	ReferralReward      float64
	GrandPrizeReward    float64
	ReferralThreshold   int
	GrandPrizeThreshold int

	// Mining
	CheckpointDir string
}

// Load reads config from env (.env honored in dev). Missing required values
// are fatal at startup.
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	botToken := os.Getenv("BOT_TOKEN")
	if botToken == "" {
		logger.Fatal("BOT_TOKEN is not set")
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	checkpointDir := os.Getenv("MINING_CHECKPOINT_DIR")
	if checkpointDir == "" {
		checkpointDir = "data/mining"
	}

	return &Config{
		AppPort:     port,
		DatabaseURL: dbURL,
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:     envInt("REDIS_DB", 0),
		BotToken:    botToken,
		JWTSecret:   jwtSecret,
		LogLevel:    envDefault("LOG_LEVEL", "info"),
		LogJSON:     os.Getenv("LOG_JSON") == "true",

		MissionReward:       envFloat("MISSION_REWARD", 100),
		ReferralReward:      envFloat("REFERRAL_REWARD", 100),
		GrandPrizeReward:    envFloat("GRAND_PRIZE_REWARD", 500),
		ReferralThreshold:   envInt("REFERRAL_REWARD_THRESHOLD", 5),
		GrandPrizeThreshold: envInt("GRAND_PRIZE_THRESHOLD", 10),

		CheckpointDir: checkpointDir,
	}
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
