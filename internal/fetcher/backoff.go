package fetcher

import (
	"math/rand/v2"
	"time"

	"wayback-news/internal/config"
)

// backoff yields retry delays of min*2^(attempt-1), capped at max, spread by
// ±jitter. Delays never drop below min.
type backoff struct {
	min    time.Duration
	max    time.Duration
	jitter float64 // fraction of the delay
	rand   func() float64
}

func newBackoff(cfg *config.Config) backoff {
	return backoff{
		min:    cfg.GetBackoffMin(),
		max:    cfg.GetBackoffMax(),
		jitter: float64(cfg.Backoff.JitterPct) / 100,
		rand:   rand.Float64,
	}
}

func (b backoff) delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	d := b.max
	if shift := attempt - 1; shift < 31 {
		if exp := b.min << shift; exp > 0 && exp < b.max {
			d = exp
		}
	}

	d += time.Duration((b.rand()*2 - 1) * b.jitter * float64(d))
	if d < b.min {
		d = b.min
	}
	return d
}
