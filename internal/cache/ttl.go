// 包 cache 提供带过期时间的内存缓存，底层为有界 LRU（hashicorp/golang-lru）。
// 过期条目不会被主动淘汰：Get 视其为未命中，Peek 仍可取回，用于上游失败时返回旧数据。
package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize 为未指定容量时的条目上限。
const DefaultSize = 1024

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// TTL 为并发安全的过期缓存。
type TTL[K comparable, V any] struct {
	mu  sync.Mutex
	lru *lru.Cache[K, entry[V]]
	ttl time.Duration
	now func() time.Time
}

// Option 为构造选项。
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock 注入时钟（测试中使用）。
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New 创建缓存；size<=0 时使用 DefaultSize。
func New[K comparable, V any](ttl time.Duration, size int, opts ...Option) (*TTL[K, V], error) {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if size <= 0 {
		size = DefaultSize
	}
	l, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("new lru: %w", err)
	}
	return &TTL[K, V]{lru: l, ttl: ttl, now: o.now}, nil
}

// Get 仅返回未过期（存放时长 < TTL）的条目。
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Get(key)
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		var zero V
		return zero, false
	}
	return e.value, true
}

// Peek 返回任意条目（包括过期的），不影响 LRU 顺序。
func (c *TTL[K, V]) Peek(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.lru.Peek(key)
	return e.value, ok
}

// Set 写入或覆盖条目，并刷新存放时间。
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry[V]{value: value, storedAt: c.now()})
}

// Len 返回当前条目数（含过期条目）。
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Purge 清空缓存。
func (c *TTL[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
