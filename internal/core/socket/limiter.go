package socket

import (
	"golang.org/x/time/rate"

	"github.com/dep2p/go-dice/internal/core/cache"
	"github.com/dep2p/go-dice/pkg/types"
)

// limiter 按发送方身份限制转发请求
type limiter struct {
	limit   rate.Limit
	burst   int
	buckets *cache.Cache[*rate.Limiter]
}

func newLimiter(cfg Config, opts ...cache.Option) *limiter {
	return &limiter{
		limit:   rate.Limit(cfg.RelayRate),
		burst:   cfg.RelayBurst,
		buckets: cache.New[*rate.Limiter](cfg.Cache, opts...),
	}
}

// allow 消耗 id 的一个令牌
func (l *limiter) allow(id types.DiceAddress) bool {
	key := id.Hex()
	lim, ok := l.buckets.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.buckets.Set(key, lim)
	}
	return lim.Allow()
}
