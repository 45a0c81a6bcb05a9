package database

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"mint-sniper/agent/internal/models"
	"mint-sniper/agent/internal/watchlist"

	"github.com/go-redis/redis/v8"
)

const DefaultSeenKey = "mint-sniper:seen"

// RedisSeenStore mirrors the seen set into a redis set so several instances,
// or a fresh container, never alert the same mint twice. It stores no entries.
type RedisSeenStore struct {
	client *redis.Client
	key    string
}

func NewRedisSeenStore(client *redis.Client, key string) *RedisSeenStore {
	if key == "" {
		key = DefaultSeenKey
	}
	return &RedisSeenStore{client: client, key: key}
}

// ConnectRedis parses a redis:// URL and verifies the server answers.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisSeenStore) Save(ctx context.Context, _ []models.WatchlistEntry, seen []string) error {
	if len(seen) == 0 {
		return nil
	}
	members := make([]interface{}, len(seen))
	for i, m := range seen {
		members[i] = m
	}
	if err := s.client.SAdd(ctx, s.key, members...).Err(); err != nil {
		return fmt.Errorf("redis sadd seen: %w", err)
	}
	return nil
}

func (s *RedisSeenStore) Load(ctx context.Context) ([]models.WatchlistEntry, []string, error) {
	seen, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, nil, fmt.Errorf("redis smembers seen: %w", err)
	}
	sort.Strings(seen)
	return nil, seen, nil
}

// ChainStore saves to every store and loads entries from the first one, with
// the seen set being the union of all stores.
type ChainStore struct {
	stores []watchlist.Snapshotter
}

func NewChainStore(primary watchlist.Snapshotter, mirrors ...watchlist.Snapshotter) *ChainStore {
	c := &ChainStore{}
	for _, s := range append([]watchlist.Snapshotter{primary}, mirrors...) {
		if s != nil {
			c.stores = append(c.stores, s)
		}
	}
	return c
}

func (c *ChainStore) Save(ctx context.Context, entries []models.WatchlistEntry, seen []string) error {
	var errs []error
	for _, s := range c.stores {
		if err := s.Save(ctx, entries, seen); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Load returns whatever loaded successfully alongside the joined errors.
func (c *ChainStore) Load(ctx context.Context) ([]models.WatchlistEntry, []string, error) {
	var (
		entries []models.WatchlistEntry
		errs    []error
		union   = make(map[string]struct{})
	)
	for i, s := range c.stores {
		e, seen, err := s.Load(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if i == 0 {
			entries = e
		}
		for _, m := range seen {
			union[m] = struct{}{}
		}
	}
	seen := make([]string, 0, len(union))
	for m := range union {
		seen = append(seen, m)
	}
	sort.Strings(seen)
	return entries, seen, errors.Join(errs...)
}
