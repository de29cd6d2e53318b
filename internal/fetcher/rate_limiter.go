package fetcher

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter bounds concurrent requests per host and paces them to rpm.
type RateLimiter struct {
	maxConcurrent int
	rpm           int
	hosts         map[string]*hostLimiter
	mu            sync.Mutex
}

type hostLimiter struct {
	sem     chan struct{} // Semaphore for concurrency
	limiter *rate.Limiter
}

func NewRateLimiter(maxConcurrent, rpm int) *RateLimiter {
	return &RateLimiter{
		maxConcurrent: maxConcurrent,
		rpm:           rpm,
		hosts:         make(map[string]*hostLimiter),
	}
}

func (rl *RateLimiter) forHost(host string) *hostLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.hosts[host]
	if !exists {
		limiter = &hostLimiter{
			sem:     make(chan struct{}, rl.maxConcurrent),
			limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rl.rpm)), rl.maxConcurrent),
		}
		rl.hosts[host] = limiter
	}
	return limiter
}

// Acquire blocks until a slot for host is free and the pace allows another
// request. The returned func releases the slot and must be called once.
func (rl *RateLimiter) Acquire(ctx context.Context, host string) (func(), error) {
	limiter := rl.forHost(host)

	select {
	case limiter.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := limiter.limiter.Wait(ctx); err != nil {
		<-limiter.sem
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-limiter.sem })
	}, nil
}
