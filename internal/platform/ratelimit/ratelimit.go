package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Bucket is a token bucket refilled continuously at TokensPerSecond. Refill is
// computed lazily from elapsed wall-clock time on each Acquire; there is no
// background timer.
type Bucket struct {
	mu         sync.Mutex
	rate       float64
	capacity   float64
	tokens     float64
	lastRefill time.Time
}

// NewBucket creates a bucket with the given refill rate. A non-positive
// capacity defaults to twice the rate.
func NewBucket(tokensPerSecond float64, capacity float64) (*Bucket, error) {
	if tokensPerSecond <= 0 {
		return nil, fmt.Errorf("tokensPerSecond must be positive, got %v", tokensPerSecond)
	}
	if capacity <= 0 {
		capacity = tokensPerSecond * 2
	}
	return &Bucket{
		rate:       tokensPerSecond,
		capacity:   capacity,
		tokens:     capacity,
		lastRefill: time.Now(),
	}, nil
}

// Acquire blocks until a token is available, then debits one. It polls at the
// refill interval (1000/rate ms) rather than dropping the request.
func (b *Bucket) Acquire(ctx context.Context) error {
	poll := time.Duration(float64(time.Second) / b.rate)
	for {
		if b.tryAcquire() {
			return nil
		}
		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (b *Bucket) tryAcquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Available reports the current token count after a lazy refill.
func (b *Bucket) Available() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(time.Now())
	return b.tokens
}

func (b *Bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * b.rate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.lastRefill = now
}
