package store

import (
	"context"
	"sync"
	"time"

	"github.com/rushteam/activeseg/core"
)

// CachedSamples 在 SampleSource 前加一层内存缓存（LRU + TTL）。
// 同一轮里 core-set、variance_representative 等策略会对同一批 key 做多次推理，缓存避免重复解码。
// 缓存的样本被多个调用方共享，调用方不得原地修改（加噪前先 Clone）。
type CachedSamples struct {
	source core.SampleSource

	mu      sync.Mutex
	entries map[core.ImageKey]*cacheEntry
	maxSize int
	ttl     time.Duration

	hits, misses int64

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	closeOnce     sync.Once
}

type cacheEntry struct {
	sample     *core.Sample
	expireTime time.Time
	accessTime time.Time
}

// NewCachedSamples 创建缓存。maxSize <= 0 时不缓存，直接透传；ttl <= 0 时条目不过期。
func NewCachedSamples(source core.SampleSource, maxSize int, ttl time.Duration) *CachedSamples {
	c := &CachedSamples{
		source:      source,
		entries:     make(map[core.ImageKey]*cacheEntry),
		maxSize:     maxSize,
		ttl:         ttl,
		stopCleanup: make(chan struct{}),
	}
	if maxSize > 0 && ttl > 0 {
		c.cleanupTicker = time.NewTicker(ttl)
		go c.cleanup()
	}
	return c
}

func (c *CachedSamples) cleanup() {
	for {
		select {
		case <-c.cleanupTicker.C:
			c.cleanExpired()
		case <-c.stopCleanup:
			c.cleanupTicker.Stop()
			return
		}
	}
}

func (c *CachedSamples) cleanExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
		}
	}
}

func (c *CachedSamples) expired(e *cacheEntry, now time.Time) bool {
	return c.ttl > 0 && now.After(e.expireTime)
}

// evictLRU 删除最久未访问的条目。调用方持有锁。
func (c *CachedSamples) evictLRU() {
	var oldestKey core.ImageKey
	var oldestTime time.Time
	first := true
	for k, e := range c.entries {
		if first || e.accessTime.Before(oldestTime) {
			oldestKey, oldestTime = k, e.accessTime
			first = false
		}
	}
	if !first {
		delete(c.entries, oldestKey)
	}
}

// Sample 实现 core.SampleSource，未命中时从底层读取并写入缓存。错误不缓存。
func (c *CachedSamples) Sample(ctx context.Context, key core.ImageKey) (*core.Sample, error) {
	if c.maxSize <= 0 {
		return c.source.Sample(ctx, key)
	}

	now := time.Now()
	c.mu.Lock()
	if e, ok := c.entries[key]; ok && !c.expired(e, now) {
		e.accessTime = now
		c.hits++
		c.mu.Unlock()
		return e.sample, nil
	}
	c.misses++
	c.mu.Unlock()

	s, err := c.source.Sample(ctx, key)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok && len(c.entries) >= c.maxSize {
		c.evictLRU()
	}
	c.entries[key] = &cacheEntry{sample: s, expireTime: now.Add(c.ttl), accessTime: now}
	return s, nil
}

// Invalidate 删除单个 key，样本被重新导入后调用。
func (c *CachedSamples) Invalidate(key core.ImageKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Stats 返回命中与未命中次数。
func (c *CachedSamples) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *CachedSamples) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Close 停止清理协程，可重复调用。
func (c *CachedSamples) Close() {
	c.closeOnce.Do(func() { close(c.stopCleanup) })
}

var _ core.SampleSource = (*CachedSamples)(nil)
