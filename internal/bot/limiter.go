package bot

import (
	"sync"

	"golang.org/x/time/rate"
)

// keyedLimiter gives every user an independent token bucket.
type keyedLimiter struct {
	mu       sync.RWMutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	return &keyedLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether user may make a request now. It never blocks.
func (k *keyedLimiter) Allow(user int64) bool {
	return k.get(user).Allow()
}

func (k *keyedLimiter) get(user int64) *rate.Limiter {
	k.mu.RLock()
	l, ok := k.limiters[user]
	k.mu.RUnlock()
	if ok {
		return l
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if l, ok = k.limiters[user]; ok {
		return l
	}
	l = rate.NewLimiter(k.limit, k.burst)
	k.limiters[user] = l
	return l
}
