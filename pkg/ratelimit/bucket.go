// Package ratelimit provides token-bucket rate limiting.
//
// Two levels of abstraction are offered:
//   - Bucket: a single token bucket. The renderer uses one to pace calls to
//     the rendering backend.
//   - PerIPLimiter: one bucket per client IP with stale-entry cleanup, used
//     by the HTTP middleware in front of the API.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket is a single token bucket rate limiter.
// It is safe for concurrent use.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	rate       float64 // tokens per second
	lastUpdate time.Time
}

// BucketStats contains token bucket statistics.
type BucketStats struct {
	Available float64 `json:"available"`
	Max       float64 `json:"max"`
	Rate      float64 `json:"rate"`
}

// NewBucket creates a token bucket with the given rate (tokens/second) and
// burst (maximum tokens). A burst of zero or less defaults to the rate.
// The bucket starts full.
func NewBucket(rate float64, burst int) *Bucket {
	maxTokens := float64(burst)
	if maxTokens <= 0 {
		maxTokens = rate
	}
	if maxTokens < 1 {
		maxTokens = 1
	}
	return &Bucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		rate:       rate,
		lastUpdate: time.Now(),
	}
}

// refill adds tokens for the time elapsed since the last update.
// Caller must hold b.mu.
func (b *Bucket) refill(now time.Time) {
	if now.After(b.lastUpdate) {
		b.tokens += now.Sub(b.lastUpdate).Seconds() * b.rate
		if b.tokens > b.maxTokens {
			b.tokens = b.maxTokens
		}
	}
	b.lastUpdate = now
}

// take tries to consume one token at now. It returns whether a token was
// taken, the tokens left, and how long until the next token is available.
func (b *Bucket) take(now time.Time) (ok bool, remaining float64, wait time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	if b.tokens >= 1 {
		b.tokens--
		return true, b.tokens, 0
	}
	if b.rate <= 0 {
		return false, b.tokens, time.Duration(1<<63 - 1)
	}
	return false, b.tokens, time.Duration((1 - b.tokens) / b.rate * float64(time.Second))
}

// Allow tries to consume one token. It reports whether a token was available.
func (b *Bucket) Allow() bool {
	ok, _, _ := b.take(time.Now())
	return ok
}

// Wait blocks until a token is available or ctx is done.
func (b *Bucket) Wait(ctx context.Context) error {
	for {
		ok, _, wait := b.take(time.Now())
		if ok {
			return nil
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Available returns the current number of tokens, including refill.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill(time.Now())
	return b.tokens
}

// Stats returns the current bucket statistics.
func (b *Bucket) Stats() BucketStats {
	return BucketStats{
		Available: b.Available(),
		Max:       b.maxTokens,
		Rate:      b.rate,
	}
}

// lastSeen returns when the bucket was last touched.
func (b *Bucket) lastSeen() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastUpdate
}
