package data

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/htn332805/RemDarwin-sub003/pkg/types"
)

// MemoryCache implements Cache with an in-memory map. Stored and returned
// slices are copied so callers cannot mutate cached series.
type MemoryCache struct {
	cache map[string][]types.OHLCV
	mutex sync.RWMutex
}

// NewMemoryCache creates a new in-memory candle cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		cache: make(map[string][]types.OHLCV),
	}
}

func (c *MemoryCache) Get(key string) ([]types.OHLCV, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	data, exists := c.cache[key]
	if !exists {
		return nil, false
	}
	result := make([]types.OHLCV, len(data))
	copy(result, data)
	return result, true
}

func (c *MemoryCache) Set(key string, data []types.OHLCV) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cached := make([]types.OHLCV, len(data))
	copy(cached, data)
	c.cache[key] = cached
}

func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache = make(map[string][]types.OHLCV)
}

func (c *MemoryCache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return len(c.cache)
}

// CachedProvider wraps another Provider with candle caching so repeated
// backtest runs over the same symbols hit the source once.
type CachedProvider struct {
	provider Provider
	cache    Cache
}

// NewCachedProvider wraps a provider with an in-memory cache.
func NewCachedProvider(provider Provider) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    NewMemoryCache(),
	}
}

// NewCachedProviderWithCache wraps a provider with a custom cache.
func NewCachedProviderWithCache(provider Provider, cache Cache) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    cache,
	}
}

// GetName returns the underlying provider name with a cache marker.
func (p *CachedProvider) GetName() string {
	return "Cached " + p.provider.GetName()
}

// LoadData serves from cache when possible, loading through the wrapped
// provider on a miss.
func (p *CachedProvider) LoadData(ctx context.Context, symbol, interval string) ([]types.OHLCV, error) {
	key := symbol + "|" + interval
	if cached, ok := p.cache.Get(key); ok {
		return cached, nil
	}

	data, err := p.provider.LoadData(ctx, symbol, interval)
	if err != nil {
		return nil, err
	}
	p.cache.Set(key, data)

	log.Debug().Str("component", "cached_provider").Str("symbol", symbol).
		Str("interval", interval).Int("candles", len(data)).
		Str("source", p.provider.GetName()).Msg("loaded and cached candles")
	return data, nil
}

// ValidateData validates data using the wrapped provider.
func (p *CachedProvider) ValidateData(data []types.OHLCV) error {
	return p.provider.ValidateData(data)
}

// ClearCache drops all cached series.
func (p *CachedProvider) ClearCache() {
	p.cache.Clear()
}

// CacheSize returns the number of cached series.
func (p *CachedProvider) CacheSize() int {
	return p.cache.Size()
}
