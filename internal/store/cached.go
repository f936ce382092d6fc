package store

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/voyagen/fiootv/internal/cache"
	"github.com/voyagen/fiootv/internal/logging"
	"github.com/voyagen/fiootv/internal/models"
)

// Cache TTLs.
const (
	ttlChannels   = 1 * time.Minute
	ttlCategories = 5 * time.Minute
)

// keyGeneration is bumped on every channel write. Cached reads embed the
// generation in their key, so a write retires every earlier entry at once.
const keyGeneration = "channels:generation"

// CachedStore wraps a Store with a Redis read cache. Channel writes
// invalidate every cached page and the category list; cache failures fall
// through to the inner store.
type CachedStore struct {
	inner Store
	cache *cache.Redis
	log   zerolog.Logger
}

// NewCachedStore creates a CachedStore that wraps inner with Redis caching.
func NewCachedStore(inner Store, c *cache.Redis) *CachedStore {
	return &CachedStore{inner: inner, cache: c, log: logging.WithComponent("cache")}
}

// channelPage is the cached form of a ListChannels result.
type channelPage struct {
	Channels []models.Channel `json:"channels"`
	Total    int              `json:"total"`
}

func (c *CachedStore) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	gen, ok := c.generation(ctx)
	if !ok {
		return c.inner.ListChannels(ctx, filter)
	}
	key := fmt.Sprintf("channels:%d:%s", gen, filterHash(filter))
	if v, found, err := cache.GetJSON[channelPage](ctx, c.cache, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if found {
		return v.Channels, v.Total, nil
	}
	channels, total, err := c.inner.ListChannels(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	c.store(ctx, gen, key, channelPage{Channels: channels, Total: total}, ttlChannels)
	return channels, total, nil
}

func (c *CachedStore) DistinctCategories(ctx context.Context) ([]string, error) {
	gen, ok := c.generation(ctx)
	if !ok {
		return c.inner.DistinctCategories(ctx)
	}
	key := fmt.Sprintf("categories:%d", gen)
	if v, found, err := cache.GetJSON[[]string](ctx, c.cache, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	} else if found {
		return v, nil
	}
	categories, err := c.inner.DistinctCategories(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, gen, key, categories, ttlCategories)
	return categories, nil
}

func (c *CachedStore) UpsertChannels(ctx context.Context, channels []models.Channel) error {
	if err := c.inner.UpsertChannels(ctx, channels); err != nil {
		return err
	}
	if _, err := cache.Incr(ctx, c.cache, keyGeneration); err != nil {
		c.log.Warn().Err(err).Msg("cache generation bump failed")
	}
	c.invalidate(ctx, "channels:*:*", "categories:*")
	return nil
}

// Orders and contact submissions are write-only and not cached.

func (c *CachedStore) CreateOrder(ctx context.Context, o *models.Order) (uuid.UUID, error) {
	return c.inner.CreateOrder(ctx, o)
}

func (c *CachedStore) CreateContactSubmission(ctx context.Context, s *models.ContactSubmission) (int64, error) {
	return c.inner.CreateContactSubmission(ctx, s)
}

// generation reads the write generation; ok is false when Redis is
// unavailable and the read should bypass the cache.
func (c *CachedStore) generation(ctx context.Context) (int64, bool) {
	gen, err := cache.Counter(ctx, c.cache, keyGeneration)
	if err != nil {
		c.log.Warn().Err(err).Msg("cache generation read failed")
		return 0, false
	}
	return gen, true
}

// store caches v unless a write bumped the generation while it was being
// read, in which case v may predate that write.
func (c *CachedStore) store(ctx context.Context, gen int64, key string, v any, ttl time.Duration) {
	if now, ok := c.generation(ctx); !ok || now != gen {
		return
	}
	if err := cache.SetJSON(ctx, c.cache, key, v, ttl); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (c *CachedStore) invalidate(ctx context.Context, patterns ...string) {
	for _, p := range patterns {
		if _, err := cache.DeletePattern(ctx, c.cache, p); err != nil {
			c.log.Warn().Err(err).Str("pattern", p).Msg("cache invalidation failed")
		}
	}
}

// filterHash produces a short deterministic cache key suffix for a filter.
func filterHash(f ChannelFilter) string {
	raw := fmt.Sprintf("%q|%q|%d|%d", f.Search, f.Category, f.PageLimit(), f.Offset)
	h := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", h[:8])
}
