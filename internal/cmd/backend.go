package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/masahif/gemcrawl/internal/config"
	"github.com/masahif/gemcrawl/internal/crawler"
	"github.com/masahif/gemcrawl/internal/storage"
)

// Keys of the run metadata stored next to the queue
const (
	metaRunID          = "run_id"
	metaStartedAt      = "started_at"
	metaPreset         = "preset"
	metaFinishedStatus = "finished_status"
)

// runBackend is what the CLI needs from a storage backend beyond the crawl
// contract.
type runBackend interface {
	crawler.Backend
	SetMeta(ctx context.Context, key, value string) error
	Close() error
}

func openBackend(ctx context.Context, cfg *config.CrawlConfig) (runBackend, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		store, err := storage.NewRedisBackend(ctx, storage.RedisOptions{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.GetRedisPassword(),
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendSQLite:
		// Create database directory if it doesn't exist
		if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		store, err := storage.NewSQLiteBackend(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, config.ErrUnknownBackend
	}
}

func recordRunStart(ctx context.Context, store runBackend, runID string, cfg *config.CrawlConfig) error {
	meta := [][2]string{
		{metaRunID, runID},
		{metaStartedAt, time.Now().UTC().Format(time.RFC3339)},
		{metaPreset, cfg.Preset},
	}
	for _, kv := range meta {
		if err := store.SetMeta(ctx, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to record run metadata: %w", err)
		}
	}
	return nil
}

func printStartup(out io.Writer, cfg *config.CrawlConfig) {
	fmt.Fprintf(out, "Starting crawler with configuration:\n")
	if len(cfg.SeedURLs) > 0 {
		fmt.Fprintf(out, "  Seed URLs: %s\n", strings.Join(cfg.SeedURLs, ", "))
	} else {
		fmt.Fprintf(out, "  Seed URLs: (none - resuming from existing queue)\n")
	}
	fmt.Fprintf(out, "  Target: %s visits\n", humanize.Comma(int64(cfg.Target)))
	fmt.Fprintf(out, "  Batch size: %d\n", cfg.BatchSize)
	fmt.Fprintf(out, "  Preset: %s\n", cfg.Preset)
	fmt.Fprintf(out, "  Max body size: %s\n", humanize.IBytes(uint64(cfg.MaxBodySize)))
	switch cfg.Backend {
	case config.BackendRedis:
		fmt.Fprintf(out, "  Backend: redis (%s, prefix %q)\n", cfg.Redis.Addr, cfg.Redis.KeyPrefix)
	default:
		fmt.Fprintf(out, "  Backend: sqlite (%s)\n", cfg.DatabasePath)
	}
}

func printSummary(out io.Writer, status crawler.Status, stats crawler.CrawlStats) {
	fmt.Fprintf(out, "Crawl finished: %s\n", status)
	fmt.Fprintf(out, "  Visited: %s\n", humanize.Comma(int64(stats.Visited)))
	fmt.Fprintf(out, "  Batches: %s\n", humanize.Comma(int64(stats.Batches)))
	fmt.Fprintf(out, "  Skipped: %s\n", humanize.Comma(int64(stats.Skipped)))
	fmt.Fprintf(out, "  Fetch errors: %s\n", humanize.Comma(int64(stats.FetchErrors)))
	fmt.Fprintf(out, "  URLs enqueued: %s\n", humanize.Comma(int64(stats.URLsEnqueued)))
	fmt.Fprintf(out, "  Gems recorded: %s\n", humanize.Comma(int64(stats.GemsRecorded)))
	fmt.Fprintf(out, "  Duration: %s\n", stats.Duration.Round(time.Millisecond))
}
