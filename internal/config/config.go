// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/sync.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Tier registry — baseline cadence per tracking tier
// --------------------------------------------------------------------------

type TierConfig struct {
	Tier        int
	Name        string
	BaseCadence time.Duration // refresh cadence before velocity adjustment
}

var TierRegistry = map[int]TierConfig{
	1: {Tier: 1, Name: "hot", BaseCadence: 1 * time.Hour},
	2: {Tier: 2, Name: "warm", BaseCadence: 6 * time.Hour},
	3: {Tier: 3, Name: "cold", BaseCadence: 24 * time.Hour},
}

// --------------------------------------------------------------------------
// Table names — single source of truth, matches schema.sql
// --------------------------------------------------------------------------

const (
	GameTrackingTable  = "game_tracking"
	CCUSnapshotsTable  = "ccu_snapshots"
	SyncJobsTable      = "sync_jobs"
	GameBaselinesTable = "game_baselines"
	AlertsTable        = "alerts"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Ops API rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Steam upstream
	SteamAPIKey         string
	SteamRequestsPerSec float64
	SteamBurst          int

	// Sync passes
	SyncBatchLimit   int           // max candidates per pass
	SyncBatchSize    int           // candidates per batch (shutdown checked between batches)
	SyncWorkers      int           // concurrent fetch workers
	SyncPageSize     int           // storage page size for candidate pagination
	PartitionCount   int
	PartitionID      int
	SyncHardTimeout  time.Duration // external scheduler's kill deadline
	SyncSafetyBuffer time.Duration // soft deadline = hard timeout - buffer
	SkipCooldown     time.Duration // quarantine window for invalid app ids

	// Velocity tiers (reviews/day lower bounds)
	VelocityHighMin   float64
	VelocityMediumMin float64
	VelocityLowMin    float64

	// Alert detection
	CCUBasePercent      float64 // base spike/drop threshold, percent
	CCUMinFloor         int64   // minimum absolute CCU to consider
	SurgeBaseMultiplier float64
	SurgeHighMultiplier float64
	SurgeMinVelocity    float64 // minimum reviews/day to consider
	SentimentBasePoints float64
	SentimentMinReviews int64
	ReviewMilestones    []int64

	// Alert retention (maintenance cleanup)
	AlertRetention time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("NEON_DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or NEON_DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		SteamAPIKey:         envOr("STEAM_API_KEY", ""),
		SteamRequestsPerSec: envFloat("STEAM_REQUESTS_PER_SEC", 4),
		SteamBurst:          envInt("STEAM_BURST", 8),

		SyncBatchLimit:   envInt("SYNC_BATCH_LIMIT", 2000),
		SyncBatchSize:    envInt("SYNC_BATCH_SIZE", 100),
		SyncWorkers:      envInt("SYNC_WORKERS", 8),
		SyncPageSize:     envInt("SYNC_PAGE_SIZE", 1000),
		PartitionCount:   envInt("PARTITION_COUNT", 1),
		PartitionID:      envInt("PARTITION_ID", 0),
		SyncHardTimeout:  time.Duration(envInt("SYNC_HARD_TIMEOUT_SECONDS", 840)) * time.Second,
		SyncSafetyBuffer: time.Duration(envInt("SYNC_SAFETY_BUFFER_SECONDS", 60)) * time.Second,
		SkipCooldown:     time.Duration(envInt("SKIP_COOLDOWN_DAYS", 30)) * 24 * time.Hour,

		VelocityHighMin:   envFloat("VELOCITY_HIGH_MIN", 5),
		VelocityMediumMin: envFloat("VELOCITY_MEDIUM_MIN", 1),
		VelocityLowMin:    envFloat("VELOCITY_LOW_MIN", 0.1),

		CCUBasePercent:      envFloat("ALERT_CCU_BASE_PERCENT", 50),
		CCUMinFloor:         int64(envInt("ALERT_CCU_MIN_FLOOR", 100)),
		SurgeBaseMultiplier: envFloat("ALERT_SURGE_BASE_MULTIPLIER", 3),
		SurgeHighMultiplier: envFloat("ALERT_SURGE_HIGH_MULTIPLIER", 10),
		SurgeMinVelocity:    envFloat("ALERT_SURGE_MIN_VELOCITY", 5),
		SentimentBasePoints: envFloat("ALERT_SENTIMENT_BASE_POINTS", 5),
		SentimentMinReviews: int64(envInt("ALERT_SENTIMENT_MIN_REVIEWS", 500)),
		ReviewMilestones: envInt64List("ALERT_REVIEW_MILESTONES", []int64{
			100, 500, 1000, 5000, 10000, 50000, 100000, 500000, 1000000,
		}),

		AlertRetention: time.Duration(envInt("ALERT_RETENTION_DAYS", 90)) * 24 * time.Hour,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

func envInt64List(key string, fallback []int64) []int64 {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]int64, 0, len(parts))
		for _, p := range parts {
			n, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
			if err != nil {
				return fallback
			}
			result = append(result, n)
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
