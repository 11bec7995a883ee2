// Package config provides configuration management for the crawler.
// It defines configuration structures and default values for crawling parameters.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
)

const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// RedisConfig contains the connection settings of the redis backend
type RedisConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr"`                 // host:port
	Password    string `mapstructure:"password" yaml:"password"`         // Password, if any
	PasswordEnv string `mapstructure:"password_env" yaml:"password_env"` // Environment variable holding the password
	DB          int    `mapstructure:"db" yaml:"db"`                     // Database number
	KeyPrefix   string `mapstructure:"key_prefix" yaml:"key_prefix"`     // Prefix of every key
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json or text
	File   string `mapstructure:"file" yaml:"file"`     // Rotated log file, empty for console only
}

// CrawlConfig holds crawler configuration
type CrawlConfig struct {
	// Basic crawling parameters
	SeedURLs      []string `mapstructure:"seed_urls" yaml:"seed_urls"`           // Starting URLs for crawling
	Target        int      `mapstructure:"target" yaml:"target"`                 // Stop after N visits
	BatchSize     int      `mapstructure:"batch_size" yaml:"batch_size"`         // URLs taken from the queue per step
	QueueCapacity int      `mapstructure:"queue_capacity" yaml:"queue_capacity"` // Pending URLs above which discovery stops
	Verbose       bool     `mapstructure:"verbose" yaml:"verbose"`               // Log skipped URLs

	// Pipeline
	Preset           string `mapstructure:"preset" yaml:"preset"`                         // default, price or wordpress
	TLD              string `mapstructure:"tld" yaml:"tld"`                               // wordpress preset: TLD to stay in
	DomainVisitLimit int    `mapstructure:"domain_visit_limit" yaml:"domain_visit_limit"` // wordpress preset: visits per domain

	// HTTP
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"` // HTTP request timeout
	UserAgent      string        `mapstructure:"user_agent" yaml:"user_agent"`           // HTTP User-Agent header
	MaxBodySize    int64         `mapstructure:"max_body_size" yaml:"max_body_size"`     // Bytes read per page
	Headers        []string      `mapstructure:"headers" yaml:"headers"`                 // "Key: Value" request headers

	// Storage
	Backend      string      `mapstructure:"backend" yaml:"backend"`             // sqlite or redis
	DatabasePath string      `mapstructure:"database_path" yaml:"database_path"` // Path to SQLite database file
	Redis        RedisConfig `mapstructure:"redis" yaml:"redis"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

// DefaultDatabasePath returns the SQLite file under the XDG data directory
func DefaultDatabasePath() string {
	return filepath.Join(xdg.DataHome, "gemcrawl", "crawl.db")
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *CrawlConfig {
	return &CrawlConfig{
		Target:           100,
		BatchSize:        10,
		QueueCapacity:    1000,
		Preset:           "default",
		TLD:              "nl",
		DomainVisitLimit: 10,
		RequestTimeout:   30 * time.Second,
		UserAgent:        "gemcrawl/1.0",
		MaxBodySize:      10 << 20,
		Backend:          BackendSQLite,
		DatabasePath:     DefaultDatabasePath(),
		Redis: RedisConfig{
			Addr:      "localhost:6379",
			KeyPrefix: "gemcrawl:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks if the configuration is valid
func (c *CrawlConfig) Validate() error {
	// Note: SeedURLs are optional - crawler can resume from existing queue

	if c.Target <= 0 {
		return ErrInvalidTarget
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.QueueCapacity <= 0 {
		return ErrInvalidQueueCapacity
	}

	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}

	switch c.Backend {
	case BackendSQLite:
		if c.DatabasePath == "" {
			return ErrEmptyDatabasePath
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return ErrEmptyRedisAddr
		}
	default:
		return ErrUnknownBackend
	}

	if _, err := c.ParseHeaders(); err != nil {
		return err
	}

	return nil
}

// ParseHeaders splits the "Key: Value" headers into a map
func (c *CrawlConfig) ParseHeaders() (map[string]string, error) {
	headers := make(map[string]string, len(c.Headers))
	for _, header := range c.Headers {
		colonIndex := strings.Index(header, ":")
		if colonIndex <= 0 {
			return nil, &HeaderError{Header: header}
		}

		key := strings.TrimSpace(header[:colonIndex])
		value := strings.TrimSpace(header[colonIndex+1:])
		if key == "" || value == "" {
			return nil, &HeaderError{Header: header}
		}

		headers[key] = value
	}
	return headers, nil
}

// GetRedisPassword returns the redis password, resolving the environment
// variable if one is named
func (c *CrawlConfig) GetRedisPassword() string {
	if c.Redis.PasswordEnv != "" {
		return os.Getenv(c.Redis.PasswordEnv)
	}
	return c.Redis.Password
}
