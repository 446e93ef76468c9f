package youtube

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache defaults
const (
	DefaultCacheTTL   = 3 * time.Hour
	DefaultMaxEntries = 256
	CacheKeyPrefix    = "yv:stream:"
	RedisPingTimeout  = 3 * time.Second
)

// Cache stores resolved streams per video ID
type Cache interface {
	Get(ctx context.Context, videoID string) (*Stream, bool)
	Set(ctx context.Context, videoID string, stream *Stream)
	Delete(ctx context.Context, videoID string)
}

// TieredCache keeps streams in memory and, when configured, in Redis
type TieredCache struct {
	l1         sync.Map // video ID -> *cacheEntry
	rdb        *redis.Client
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
	logger     *zap.Logger
}

type cacheEntry struct {
	stream    Stream
	expiresAt time.Time
}

// NewTieredCache creates a cache; an empty redisURL disables the Redis tier
func NewTieredCache(ctx context.Context, redisURL string, ttl time.Duration, logger *zap.Logger) *TieredCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &TieredCache{
		ttl:        ttl,
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
		logger:     logger,
	}

	if redisURL == "" {
		return c
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis URL, stream cache stays in memory", zap.Error(err))
		return c
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, RedisPingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis unreachable, stream cache stays in memory", zap.Error(err))
		_ = rdb.Close()
		return c
	}
	c.rdb = rdb
	logger.Info("stream cache connected to redis", zap.String("addr", opts.Addr))
	return c
}

// Get returns a live entry from memory, then from Redis
func (c *TieredCache) Get(ctx context.Context, videoID string) (*Stream, bool) {
	if videoID == "" {
		return nil, false
	}
	if val, ok := c.l1.Load(videoID); ok {
		entry := val.(*cacheEntry)
		if c.now().Before(entry.expiresAt) {
			s := entry.stream
			return &s, true
		}
		c.l1.Delete(videoID)
	}

	if c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, CacheKeyPrefix+videoID).Bytes()
	if err != nil {
		return nil, false
	}
	var s Stream
	if err := json.Unmarshal(data, &s); err != nil || s.URL == "" {
		return nil, false
	}
	c.l1.Store(videoID, &cacheEntry{stream: s, expiresAt: c.now().Add(c.ttl)})
	return &s, true
}

// Set stores a resolved stream; empty results are ignored
func (c *TieredCache) Set(ctx context.Context, videoID string, stream *Stream) {
	if videoID == "" || stream == nil || stream.URL == "" {
		return
	}
	c.evictIfNeeded()
	c.l1.Store(videoID, &cacheEntry{stream: *stream, expiresAt: c.now().Add(c.ttl)})

	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(stream)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, CacheKeyPrefix+videoID, data, c.ttl).Err(); err != nil {
		c.logger.Debug("redis set failed", zap.Error(err))
	}
}

// Delete drops a stream from both tiers
func (c *TieredCache) Delete(ctx context.Context, videoID string) {
	if videoID == "" {
		return
	}
	c.l1.Delete(videoID)
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, CacheKeyPrefix+videoID).Err(); err != nil {
		c.logger.Debug("redis del failed", zap.Error(err))
	}
}

// Close releases the Redis client
func (c *TieredCache) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

// evictIfNeeded drops expired entries, then the oldest ones, above maxEntries
func (c *TieredCache) evictIfNeeded() {
	count := 0
	c.l1.Range(func(_, _ any) bool {
		count++
		return true
	})
	if count < c.maxEntries {
		return
	}

	now := c.now()
	c.l1.Range(func(key, val any) bool {
		if entry := val.(*cacheEntry); now.After(entry.expiresAt) {
			c.l1.Delete(key)
			count--
		}
		return true
	})

	for count >= c.maxEntries {
		var oldestKey any
		var oldestAt time.Time
		c.l1.Range(func(key, val any) bool {
			entry := val.(*cacheEntry)
			if oldestKey == nil || entry.expiresAt.Before(oldestAt) {
				oldestKey, oldestAt = key, entry.expiresAt
			}
			return true
		})
		if oldestKey == nil {
			return
		}
		c.l1.Delete(oldestKey)
		count--
	}
}
