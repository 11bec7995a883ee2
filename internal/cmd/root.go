// Package cmd provides the command-line interface for gemcrawl.
// It handles command parsing, configuration loading, and crawl execution.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/masahif/gemcrawl/internal/config"
	"github.com/masahif/gemcrawl/internal/crawler"
	"github.com/masahif/gemcrawl/internal/logging"
	"github.com/masahif/gemcrawl/internal/pipeline"
)

var (
	version   string
	buildTime string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCmd()

// app carries the configuration state of one command tree
type app struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "gemcrawl [seed URLs...]",
		Short: "A batch web crawler that digs gems out of the pages it visits",
		Long: `gemcrawl is a batch web crawler.

It pulls URLs from a persistent queue (SQLite or Redis), fetches the HTML
pages among them, queues the links it finds and records the structured
data ("gems") a preset extracts from each page.`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		PersistentPreRunE: a.initConfig,
		RunE:              a.runCrawler,
	}

	// Configuration file flag
	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is ./gemcrawl.yml)")

	// Configuration management flags
	cmd.Flags().Bool("show-config", false, "Display current configuration in YAML format and exit")

	flags := cmd.PersistentFlags()

	// Crawl flags
	flags.IntP("target", "n", defaults.Target, "Stop after N visits")
	flags.IntP("batch-size", "b", defaults.BatchSize, "URLs taken from the queue per step")
	flags.Int("queue-capacity", defaults.QueueCapacity, "Pending URLs above which link discovery stops")
	flags.BoolP("verbose", "v", defaults.Verbose, "Log every skipped URL")

	// Pipeline flags
	flags.StringP("preset", "p", defaults.Preset, "Pipeline preset: "+strings.Join(pipeline.PresetNames(), ", "))
	flags.String("tld", defaults.TLD, "Top-level domain the wordpress preset stays in")
	flags.Int("domain-visit-limit", defaults.DomainVisitLimit, "Visits per domain for the wordpress preset")

	// HTTP flags
	flags.DurationP("timeout", "t", defaults.RequestTimeout, "HTTP request timeout")
	flags.StringP("user-agent", "u", defaults.UserAgent, "HTTP User-Agent header")
	flags.Int64("max-body-size", defaults.MaxBodySize, "Maximum bytes read per page")
	flags.StringSliceP("header", "H", []string{}, "Custom HTTP headers in 'Name: Value' format (use multiple times for multiple headers)")

	// Storage flags
	flags.String("backend", defaults.Backend, "Storage backend: sqlite or redis")
	flags.StringP("database", "d", defaults.DatabasePath, "Path to SQLite database file")
	flags.String("redis-addr", defaults.Redis.Addr, "Redis host:port")
	flags.String("redis-password", "", "Redis password")
	flags.String("redis-password-env", "", "Environment variable holding the Redis password")
	flags.Int("redis-db", defaults.Redis.DB, "Redis database number")
	flags.String("redis-prefix", defaults.Redis.KeyPrefix, "Prefix of every Redis key")

	// Logging flags
	flags.String("log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	flags.String("log-format", defaults.Log.Format, "Log format: json or text")
	flags.String("log-file", defaults.Log.File, "Rotated log file (console only when empty)")

	bindFlags := []struct {
		viperKey string
		flagName string
	}{
		{"target", "target"},
		{"batch_size", "batch-size"},
		{"queue_capacity", "queue-capacity"},
		{"verbose", "verbose"},
		{"preset", "preset"},
		{"tld", "tld"},
		{"domain_visit_limit", "domain-visit-limit"},
		{"request_timeout", "timeout"},
		{"user_agent", "user-agent"},
		{"max_body_size", "max-body-size"},
		{"headers", "header"},
		{"backend", "backend"},
		{"database_path", "database"},
		{"redis.addr", "redis-addr"},
		{"redis.password", "redis-password"},
		{"redis.password_env", "redis-password-env"},
		{"redis.db", "redis-db"},
		{"redis.key_prefix", "redis-prefix"},
		{"log.level", "log-level"},
		{"log.format", "log-format"},
		{"log.file", "log-file"},
	}

	for _, bind := range bindFlags {
		if err := a.v.BindPFlag(bind.viperKey, flags.Lookup(bind.flagName)); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to bind flag %s: %v\n", bind.flagName, err)
		}
	}

	cmd.AddCommand(a.newCompareCmd())
	return cmd
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// SetVersionInfo sets version information for the CLI
func SetVersionInfo(v, bt string) {
	version = v
	buildTime = bt
	rootCmd.Version = fmt.Sprintf("%s (built %s)", version, buildTime)
}

// initConfig reads in config file and ENV variables if set.
func (a *app) initConfig(cmd *cobra.Command, _ []string) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigType("yaml")
		a.v.SetConfigName("gemcrawl")
	}

	a.v.SetEnvPrefix("GC")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", a.v.ConfigFileUsed())
	return nil
}

// loadConfig merges defaults, config file, environment and flags. Seed URLs
// given as arguments replace those of the config file.
func (a *app) loadConfig(cmd *cobra.Command, args []string) (*config.CrawlConfig, error) {
	cfg := config.DefaultConfig()
	if err := a.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if len(args) > 0 {
		cfg.SeedURLs = args
	}

	if !cmd.Flags().Changed("user-agent") && cfg.UserAgent == crawler.DefaultUserAgent {
		cfg.UserAgent = generateUserAgent()
	}
	return cfg, nil
}

func generateUserAgent() string {
	if version != "" && version != "dev" {
		return fmt.Sprintf("gemcrawl/%s", version)
	}
	return crawler.DefaultUserAgent
}

func showCurrentConfig(out, errOut io.Writer, cfg *config.CrawlConfig) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(errOut, "Warning: Configuration validation failed: %v\n", err)
		fmt.Fprintf(errOut, "Displaying configuration anyway...\n\n")
	}

	shown := *cfg
	if shown.Redis.Password != "" {
		shown.Redis.Password = "********"
	}

	yamlData, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("failed to marshal configuration to YAML: %w", err)
	}

	fmt.Fprintf(out, "# Current gemcrawl configuration\n")
	fmt.Fprintf(out, "# Generated at: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(out, "# Configuration file search paths: ./gemcrawl.yml\n")
	fmt.Fprintf(out, "# Environment variables prefix: GC_\n\n")

	fmt.Fprint(out, string(yamlData))

	fmt.Fprintf(out, "\n# Configuration source priority:\n")
	fmt.Fprintf(out, "# 1. Command-line arguments (highest priority)\n")
	fmt.Fprintf(out, "# 2. Environment variables (GC_ prefix)\n")
	fmt.Fprintf(out, "# 3. Configuration file (gemcrawl.yml)\n")
	fmt.Fprintf(out, "# 4. Default values (lowest priority)\n")

	return nil
}

func (a *app) runCrawler(cmd *cobra.Command, args []string) error {
	cfg, err := a.loadConfig(cmd, args)
	if err != nil {
		return err
	}

	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg)
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
	slog.SetDefault(logger)

	pl, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	if len(cfg.SeedURLs) == 0 {
		pending, err := store.PendingCount(ctx)
		if err != nil {
			return fmt.Errorf("failed to check queue status: %w", err)
		}
		if pending == 0 {
			fmt.Fprintf(out, "No seed URLs provided and no queued URLs found in the %s backend\n", cfg.Backend)
			fmt.Fprintf(out, "Nothing to crawl. Exiting.\n")
			return nil
		}
		fmt.Fprintf(out, "Resuming crawl with %d queued URLs\n", pending)
	}

	client, err := newFetcher(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	printStartup(out, cfg)

	engine, err := crawler.NewEngine(store, client, engineOptions(cfg, pl, logger))
	if err != nil {
		return fmt.Errorf("failed to initialize crawler: %w", err)
	}

	if err := recordRunStart(ctx, store, runID, cfg); err != nil {
		return err
	}

	if _, err := engine.Seed(ctx, cfg.SeedURLs); err != nil {
		return fmt.Errorf("failed to seed queue: %w", err)
	}

	status, err := engine.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Crawling cancelled")
			printSummary(out, status, engine.Stats())
			return nil
		}
		return fmt.Errorf("crawl failed: %w", err)
	}

	if err := store.SetMeta(context.WithoutCancel(ctx), metaFinishedStatus, status.String()); err != nil {
		logger.Warn("Failed to record run status", "error", err)
	}

	printSummary(out, status, engine.Stats())
	return nil
}

func newLogger(cfg *config.CrawlConfig, console io.Writer) (*slog.Logger, error) {
	lc := logging.DefaultConfig()
	lc.Level = logging.ParseLevel(cfg.Log.Level)
	lc.Format = cfg.Log.Format
	lc.FilePath = cfg.Log.File
	lc.Output = console

	logger, err := logging.NewLogger(*lc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, nil
}

func newPipeline(cfg *config.CrawlConfig) (crawler.Pipeline, error) {
	pl, err := pipeline.Preset(cfg.Preset, pipeline.PresetOptions{
		TLD:              cfg.TLD,
		DomainVisitLimit: cfg.DomainVisitLimit,
	})
	if err != nil {
		return crawler.Pipeline{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return pl, nil
}

func newFetcher(cfg *config.CrawlConfig) (*crawler.HTTPClient, error) {
	headers, err := cfg.ParseHeaders()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := crawler.NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout)
	client.SetMaxBodySize(cfg.MaxBodySize)
	client.SetCustomHeaders(headers)
	return client, nil
}

func engineOptions(cfg *config.CrawlConfig, pl crawler.Pipeline, logger *slog.Logger) crawler.Options {
	return crawler.Options{
		Target:        cfg.Target,
		BatchSize:     cfg.BatchSize,
		QueueCapacity: cfg.QueueCapacity,
		Pipeline:      pl,
		Logger:        logger,
		Verbose:       cfg.Verbose,
	}
}
