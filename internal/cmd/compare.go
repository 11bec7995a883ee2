package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/masahif/gemcrawl/internal/config"
	"github.com/masahif/gemcrawl/internal/crawler"
	"github.com/masahif/gemcrawl/internal/storage"
)

// compareResult holds the timings of one backend in a compare run
type compareResult struct {
	Backend string
	Status  crawler.Status
	Visited int
	Storage time.Duration // Time spent in backend calls
	Fetch   time.Duration // Time spent in HEAD and GET requests
	Steps   time.Duration // Wall time of all steps
}

func (a *app) newCompareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compare [seed URLs...]",
		Short: "Run the same crawl on SQLite and Redis and compare their timings",
		Long: `compare crawls from the same seed URLs twice, once on a throw-away SQLite
database and once on a scratch Redis key prefix, and reports the time spent
in storage, in HTTP requests and in total for each backend.`,
		Args: cobra.ArbitraryArgs,
		RunE: a.runCompare,
	}
}

func (a *app) runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if len(cfg.SeedURLs) == 0 {
		return config.ErrNoSeedURLs
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	runID := uuid.NewString()
	logger, err := newLogger(cfg, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logger = logger.With("run_id", runID)

	ctx := cmd.Context()

	sqliteResult, err := compareSQLite(ctx, cfg, logger)
	if err != nil {
		return err
	}

	redisResult, err := compareRedis(ctx, cfg, runID, logger)
	if err != nil {
		return err
	}

	printComparison(cmd.OutOrStdout(), []compareResult{sqliteResult, redisResult})
	return nil
}

func compareSQLite(ctx context.Context, cfg *config.CrawlConfig, logger *slog.Logger) (compareResult, error) {
	dir, err := os.MkdirTemp("", "gemcrawl-compare-*")
	if err != nil {
		return compareResult{}, fmt.Errorf("failed to create temporary directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	store, err := storage.NewSQLiteBackend(filepath.Join(dir, "compare.db"))
	if err != nil {
		return compareResult{}, fmt.Errorf("failed to initialize sqlite: %w", err)
	}
	defer func() { _ = store.Close() }()

	return timedCrawl(ctx, config.BackendSQLite, store, cfg, logger.With("backend", config.BackendSQLite))
}

func compareRedis(ctx context.Context, cfg *config.CrawlConfig, runID string, logger *slog.Logger) (compareResult, error) {
	store, err := storage.NewRedisBackend(ctx, storage.RedisOptions{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.GetRedisPassword(),
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix + "compare:" + runID + ":",
	})
	if err != nil {
		return compareResult{}, fmt.Errorf("failed to initialize redis: %w", err)
	}
	defer func() { _ = store.Close() }()
	defer func() {
		if err := store.Reset(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to remove compare keys", "error", err)
		}
	}()

	return timedCrawl(ctx, config.BackendRedis, store, cfg, logger.With("backend", config.BackendRedis))
}

// timedCrawl seeds an empty backend and crawls it to completion, timing the
// storage, the fetcher and every step.
func timedCrawl(ctx context.Context, name string, store crawler.Backend, cfg *config.CrawlConfig, logger *slog.Logger) (compareResult, error) {
	pl, err := newPipeline(cfg)
	if err != nil {
		return compareResult{}, err
	}

	client, err := newFetcher(cfg)
	if err != nil {
		return compareResult{}, err
	}
	defer client.Close()

	timedStore := crawler.NewTimedBackend(store)
	timedFetcher := crawler.NewTimedFetcher(client)
	steps := &crawler.Timer{}

	opts := engineOptions(cfg, pl, logger)
	opts.Middleware = []crawler.StepMiddleware{crawler.TimedStep(steps)}

	engine, err := crawler.NewEngine(timedStore, timedFetcher, opts)
	if err != nil {
		return compareResult{}, fmt.Errorf("failed to initialize crawler: %w", err)
	}

	if _, err := engine.Seed(ctx, cfg.SeedURLs); err != nil {
		return compareResult{}, fmt.Errorf("%s: failed to seed queue: %w", name, err)
	}

	status, err := engine.Run(ctx)
	if err != nil {
		return compareResult{}, fmt.Errorf("%s: crawl failed: %w", name, err)
	}

	return compareResult{
		Backend: name,
		Status:  status,
		Visited: engine.Stats().Visited,
		Storage: timedStore.Timer.Total(),
		Fetch:   timedFetcher.Timer.Total(),
		Steps:   steps.Total(),
	}, nil
}

func printComparison(out io.Writer, results []compareResult) {
	fmt.Fprintf(out, "%-8s %-16s %8s %12s %12s %12s\n", "BACKEND", "STATUS", "VISITED", "STORAGE", "FETCH", "TOTAL")
	for _, r := range results {
		fmt.Fprintf(out, "%-8s %-16s %8d %12s %12s %12s\n",
			r.Backend, r.Status, r.Visited,
			r.Storage.Round(time.Microsecond),
			r.Fetch.Round(time.Microsecond),
			r.Steps.Round(time.Microsecond))
	}
}
