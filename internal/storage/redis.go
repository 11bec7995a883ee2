package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/masahif/gemcrawl/internal/crawler"
	"github.com/masahif/gemcrawl/internal/weburl"
)

// DefaultKeyPrefix namespaces all keys written by RedisBackend
const DefaultKeyPrefix = "gemcrawl:"

var _ crawler.Backend = (*RedisBackend)(nil)

// RedisOptions configure the connection of a RedisBackend
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisBackend implements crawler.Backend on a Redis list and hashes.
// The queue is a list read with LRANGE and trimmed with LTRIM, so a batch
// fetch and its drop are separate commands.
type RedisBackend struct {
	client *redis.Client

	queueKey  string
	countsKey string
	gemsKey   string
	metaKey   string
}

// NewRedisBackend connects to Redis and checks the connection
func NewRedisBackend(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	return &RedisBackend{
		client:    client,
		queueKey:  prefix + "urls",
		countsKey: prefix + "counts",
		gemsKey:   prefix + "gems",
		metaKey:   prefix + "meta",
	}, nil
}

// Close closes the client
func (r *RedisBackend) Close() error {
	return r.client.Close()
}

// FetchBatch returns the head of the queue without removing it
func (r *RedisBackend) FetchBatch(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	urls, err := r.client.LRange(ctx, r.queueKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch batch: %w", err)
	}
	return urls, nil
}

// DropBatch trims the head of the queue
func (r *RedisBackend) DropBatch(ctx context.Context, limit int) error {
	if limit <= 0 {
		return nil
	}

	if err := r.client.LTrim(ctx, r.queueKey, int64(limit), -1).Err(); err != nil {
		return fmt.Errorf("failed to drop batch: %w", err)
	}
	return nil
}

// PendingCount returns the queue length
func (r *RedisBackend) PendingCount(ctx context.Context) (int, error) {
	n, err := r.client.LLen(ctx, r.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count pending urls: %w", err)
	}
	return int(n), nil
}

// Enqueue pushes URLs onto the tail of the queue
func (r *RedisBackend) Enqueue(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}

	values := make([]any, len(urls))
	for i, u := range urls {
		values[i] = u
	}
	if err := r.client.RPush(ctx, r.queueKey, values...).Err(); err != nil {
		return fmt.Errorf("failed to enqueue %d urls: %w", len(urls), err)
	}
	return nil
}

// IncrementVisit adds one to the counter for key
func (r *RedisBackend) IncrementVisit(ctx context.Context, key string) error {
	if err := r.client.HIncrBy(ctx, r.countsKey, key, 1).Err(); err != nil {
		return fmt.Errorf("failed to increment visit count for %s: %w", key, err)
	}
	return nil
}

// VisitCount returns the counter for key, 0 if absent
func (r *RedisBackend) VisitCount(ctx context.Context, key string) (int, error) {
	n, err := r.client.HGet(ctx, r.countsKey, key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get visit count for %s: %w", key, err)
	}
	return n, nil
}

// RecordGem stores payload as JSON under the page URL. A later gem for the
// same URL replaces the earlier one.
func (r *RedisBackend) RecordGem(ctx context.Context, u weburl.URL, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode gem for %s: %w", u, err)
	}

	if err := r.client.HSet(ctx, r.gemsKey, u.String(), data).Err(); err != nil {
		return fmt.Errorf("failed to save gem for %s: %w", u, err)
	}
	return nil
}

// Gems returns the recorded payloads ordered by URL
func (r *RedisBackend) Gems(ctx context.Context) ([]Gem, error) {
	all, err := r.client.HGetAll(ctx, r.gemsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list gems: %w", err)
	}

	gems := make([]Gem, 0, len(all))
	for url, payload := range all {
		gems = append(gems, Gem{URL: url, Payload: json.RawMessage(payload)})
	}
	sort.Slice(gems, func(i, j int) bool { return gems[i].URL < gems[j].URL })
	return gems, nil
}

// GetMeta retrieves a metadata value
func (r *RedisBackend) GetMeta(ctx context.Context, key string) (string, error) {
	value, err := r.client.HGet(ctx, r.metaKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta: %w", err)
	}
	return value, nil
}

// SetMeta stores a metadata value
func (r *RedisBackend) SetMeta(ctx context.Context, key, value string) error {
	if err := r.client.HSet(ctx, r.metaKey, key, value).Err(); err != nil {
		return fmt.Errorf("failed to set meta: %w", err)
	}
	return nil
}

// Reset deletes every key owned by this backend
func (r *RedisBackend) Reset(ctx context.Context) error {
	if err := r.client.Del(ctx, r.queueKey, r.countsKey, r.gemsKey, r.metaKey).Err(); err != nil {
		return fmt.Errorf("failed to reset: %w", err)
	}
	return nil
}
