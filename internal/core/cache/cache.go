package cache

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Config 缓存配置
type Config struct {
	// TTL 条目存活时间，0 表示不过期
	TTL time.Duration

	// Limit 条目上限
	Limit int
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{TTL: time.Minute, Limit: 1024}
}

// Option 构造选项
type Option func(*options)

type options struct {
	clock clock.Clock
}

// WithClock 注入时钟（测试用）
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

type entry[V any] struct {
	data       V
	insertedAt time.Time
}

// Cache 字符串键的 TTL 有界缓存，并发安全
type Cache[V any] struct {
	mu    sync.Mutex
	lru   *simplelru.LRU[string, entry[V]]
	ttl   time.Duration
	clock clock.Clock
}

// New 创建缓存
func New[V any](cfg Config, opts ...Option) *Cache[V] {
	o := options{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultConfig().Limit
	}

	// simplelru 只在 size <= 0 时返回错误
	lru, _ := simplelru.NewLRU[string, entry[V]](cfg.Limit, nil)
	return &Cache[V]{lru: lru, ttl: cfg.TTL, clock: o.clock}
}

func (c *Cache[V]) expired(e entry[V], now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.insertedAt) >= c.ttl
}

// Set 写入条目
func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.pruneLocked(now)

	// 先删除再插入，保持插入顺序而不是访问顺序
	c.lru.Remove(key)
	c.lru.Add(key, entry[V]{data: v, insertedAt: now})
}

// Get 读取条目，过期视为不存在
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Peek(key)
	if !ok {
		return zero, false
	}
	if c.expired(e, c.clock.Now()) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.data, true
}

// Has 是否存在未过期条目
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Delete 删除条目
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Remove(key)
}

// Len 未过期条目数
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.clock.Now())
	return c.lru.Len()
}

// Values 未过期的值，按插入顺序从旧到新
func (c *Cache[V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	c.pruneLocked(now)
	out := make([]V, 0, c.lru.Len())
	for _, k := range c.lru.Keys() {
		if e, ok := c.lru.Peek(k); ok {
			out = append(out, e.data)
		}
	}
	return out
}

// Purge 清空
func (c *Cache[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// pruneLocked 从最旧一端删除过期条目，遇到第一个未过期条目即停止
func (c *Cache[V]) pruneLocked(now time.Time) {
	if c.ttl <= 0 {
		return
	}
	for {
		_, e, ok := c.lru.GetOldest()
		if !ok || !c.expired(e, now) {
			return
		}
		c.lru.RemoveOldest()
	}
}
