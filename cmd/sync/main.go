// Command sync is the PlayPulse sync and detection CLI, invoked by an
// external scheduler (cron) once per pass.
//
// Usage:
//
//	playpulse-sync sync ccu --tier 1 --partition-id 0 --partition-count 4
//	playpulse-sync sync reviews --tier 2 --max 1000 --workers 8
//	playpulse-sync detect run
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/playpulse/playpulse-data/internal/alerts"
	"github.com/playpulse/playpulse-data/internal/config"
	"github.com/playpulse/playpulse-data/internal/db"
	"github.com/playpulse/playpulse-data/internal/jobs"
	"github.com/playpulse/playpulse-data/internal/provider/steam"
	"github.com/playpulse/playpulse-data/internal/sync"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "playpulse-sync",
		Short: "PlayPulse sync and detection CLI",
	}

	root.AddCommand(syncCmd())
	root.AddCommand(detectCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// sync command
// --------------------------------------------------------------------------

// passFlags are the knobs shared by both sync subcommands. Zero values
// defer to config defaults.
type passFlags struct {
	tier           int
	max            int
	batchSize      int
	workers        int
	partitionID    int
	partitionCount int
	timeoutSecs    int
}

func (f *passFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.tier, "tier", 1, "Tracking tier (1=hot, 2=warm, 3=cold)")
	cmd.Flags().IntVar(&f.max, "max", 0, "Max candidates for this partition (0 = config default)")
	cmd.Flags().IntVar(&f.batchSize, "batch-size", 0, "Candidates per batch (0 = config default)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Concurrent fetch workers (0 = config default)")
	cmd.Flags().IntVar(&f.partitionID, "partition-id", -1, "Partition id (-1 = config default)")
	cmd.Flags().IntVar(&f.partitionCount, "partition-count", 0, "Partition count (0 = config default)")
	cmd.Flags().IntVar(&f.timeoutSecs, "timeout", 0, "Hard timeout in seconds (0 = config default)")
}

func (f *passFlags) options(cfg *config.Config, jobType string, start time.Time) sync.PassOptions {
	opts := sync.PassOptions{
		JobType:        jobType,
		Tier:           f.tier,
		Limit:          orInt(f.max, cfg.SyncBatchLimit),
		BatchSize:      orInt(f.batchSize, cfg.SyncBatchSize),
		Workers:        orInt(f.workers, cfg.SyncWorkers),
		PageSize:       cfg.SyncPageSize,
		PartitionCount: orInt(f.partitionCount, cfg.PartitionCount),
		PartitionID:    cfg.PartitionID,
	}
	if f.partitionID >= 0 {
		opts.PartitionID = f.partitionID
	}
	hard := time.Duration(f.timeoutSecs) * time.Second
	if f.timeoutSecs <= 0 {
		hard = cfg.SyncHardTimeout
	}
	if hard > cfg.SyncSafetyBuffer {
		opts.SoftDeadline = start.Add(hard - cfg.SyncSafetyBuffer)
	}
	return opts
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a partitioned sync pass against Steam",
	}
	cmd.AddCommand(syncCCUCmd())
	cmd.AddCommand(syncReviewsCmd())
	return cmd
}

func syncCCUCmd() *cobra.Command {
	var flags passFlags
	cmd := &cobra.Command{
		Use:   "ccu",
		Short: "Sync concurrent-player counts for one tier partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				client := steam.NewClient(cfg.SteamAPIKey, cfg.SteamRequestsPerSec, cfg.SteamBurst, logger)
				return runSyncPass(ctx, cfg, pool, steam.NewCCUFetcher(client),
					flags.options(cfg, jobs.TypeCCUSync, time.Now()))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func syncReviewsCmd() *cobra.Command {
	var flags passFlags
	cmd := &cobra.Command{
		Use:   "reviews",
		Short: "Sync review summaries for one tier partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				client := steam.NewClient(cfg.SteamAPIKey, cfg.SteamRequestsPerSec, cfg.SteamBurst, logger)
				return runSyncPass(ctx, cfg, pool, steam.NewReviewFetcher(client),
					flags.options(cfg, jobs.TypeReviewSync, time.Now()))
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func runSyncPass(ctx context.Context, cfg *config.Config, pool *db.Pool, fetcher sync.Fetcher, opts sync.PassOptions) error {
	store := sync.NewPGStore(pool.Pool)
	runner := &sync.Runner{
		Source:    store,
		Fetcher:   fetcher,
		Tiers:     store,
		Snapshots: store,
		Ledger:    jobs.NewPGLedger(pool.Pool),
		Policy: sync.IntervalPolicy{
			HighMin:   cfg.VelocityHighMin,
			MediumMin: cfg.VelocityMediumMin,
			LowMin:    cfg.VelocityLowMin,

			HighEvery:    4 * time.Hour,
			MediumEvery:  12 * time.Hour,
			LowEvery:     24 * time.Hour,
			DormantEvery: 72 * time.Hour,
		},
		SkipCooldown: cfg.SkipCooldown,
		Logger:       logger,
	}

	start := time.Now()
	result, err := runner.Run(ctx, opts)
	if err != nil {
		return fmt.Errorf("%s pass: %w", opts.JobType, err)
	}
	logger.Info("Pass finished",
		"job_type", opts.JobType,
		"duration", time.Since(start).Round(time.Second),
		"summary", result.Summary())
	for _, e := range result.Errors {
		logger.Error("pass error", "error", e)
	}
	return nil
}

// --------------------------------------------------------------------------
// detect command
// --------------------------------------------------------------------------

func detectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Run anomaly detection over subscribed games",
	}
	cmd.AddCommand(detectRunCmd())
	return cmd
}

func detectRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one detection pass and persist alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPass(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				store := alerts.NewPGStore(pool.Pool)
				engine := &alerts.Engine{
					Subs:      store,
					Baselines: store,
					Alerts:    store,
					Ledger:    jobs.NewPGLedger(pool.Pool),
					Thresholds: alerts.Thresholds{
						CCUBasePercent:      cfg.CCUBasePercent,
						CCUMinFloor:         cfg.CCUMinFloor,
						SurgeBaseMultiplier: cfg.SurgeBaseMultiplier,
						SurgeHighMultiplier: cfg.SurgeHighMultiplier,
						SurgeMinVelocity:    cfg.SurgeMinVelocity,
						SentimentBasePoints: cfg.SentimentBasePoints,
						SentimentMinReviews: cfg.SentimentMinReviews,
						Milestones:          cfg.ReviewMilestones,
					},
					JobType: jobs.TypeDetection,
					Logger:  logger,
				}

				start := time.Now()
				result, err := engine.Run(ctx)
				if err != nil {
					return fmt.Errorf("detection pass: %w", err)
				}
				logger.Info("Detection finished",
					"duration", time.Since(start).Round(time.Second),
					"summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("detection error", "error", e)
				}
				return nil
			})
		},
	}
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runPass handles config loading, DB connection, and context cancellation.
func runPass(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	return fn(ctx, cfg, pool)
}

func orInt(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
