package resilience

import (
	"math"
	"sync"
)

// BatchBreaker aborts the remainder of a batch once accumulated failures
// reach a threshold derived from the batch size: min(3, ceil(n/2)), with a
// floor of 1. Unlike a service circuit breaker it never recovers — it is
// created per batch and discarded with it. Work already completed before
// the trip is preserved by the caller.
type BatchBreaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
}

// NewBatchBreaker creates a breaker sized for a batch of n items.
func NewBatchBreaker(n int) *BatchBreaker {
	threshold := int(math.Min(3, math.Ceil(float64(n)/2)))
	if threshold < 1 {
		threshold = 1
	}
	return &BatchBreaker{threshold: threshold}
}

// RecordFailure counts one failed item and reports whether the breaker has
// tripped.
func (b *BatchBreaker) RecordFailure() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	return b.failures >= b.threshold
}

// Tripped reports whether accumulated failures have reached the threshold.
func (b *BatchBreaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures >= b.threshold
}

// Counters returns the current failure count and threshold for
// observability.
func (b *BatchBreaker) Counters() (failures, threshold int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures, b.threshold
}
