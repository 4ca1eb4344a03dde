package classifier

import (
	"sync"
	"time"

	"github.com/Veraticus/narration-resolver/internal/model"
)

type cacheEntry struct {
	expiry     time.Time
	prediction model.Prediction
}

// predictionCache memoizes predictions per normalized text.
type predictionCache struct {
	entries map[string]cacheEntry
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
	once    sync.Once
}

func newPredictionCache(ttl time.Duration) *predictionCache {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}

	cache := &predictionCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	go cache.cleanup()

	return cache
}

func (c *predictionCache) get(key string) (model.Prediction, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || time.Now().After(entry.expiry) {
		return model.Prediction{}, false
	}

	return entry.prediction, true
}

func (c *predictionCache) set(key string, prediction model.Prediction) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{
		prediction: prediction,
		expiry:     time.Now().Add(c.ttl),
	}
}

// cleanup drops expired entries on a fixed interval capped at the TTL.
func (c *predictionCache) cleanup() {
	interval := 5 * time.Minute
	if c.ttl < interval {
		interval = c.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *predictionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine. It is safe to call more than once.
func (c *predictionCache) Close() {
	c.once.Do(func() { close(c.stopCh) })
}
