package utils

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// BatchResult is the outcome of one item processed by RunBatches.
type BatchResult[R any] struct {
	Value R
	Err   error
}

// RunBatches processes items in fixed-size batches. Items inside a batch run
// concurrently; the next batch starts only after the whole batch finished.
// Results keep the input order. Per-item errors never stop other items.
func RunBatches[T, R any](ctx context.Context, items []T, batchSize int, fn func(ctx context.Context, item T) (R, error)) []BatchResult[R] {
	if batchSize < 1 {
		batchSize = 1
	}
	results := make([]BatchResult[R], len(items))

	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if err := ctx.Err(); err != nil {
					results[i].Err = err
					return
				}
				v, err := fn(ctx, items[i])
				results[i] = BatchResult[R]{Value: v, Err: err}
			}(i)
		}
		wg.Wait()
	}
	return results
}

// IDSet is a thread-safe set for tracking already-seen listing IDs.
type IDSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewIDSet creates an IDSet seeded with the given IDs. Empty IDs are ignored.
func NewIDSet(ids ...string) *IDSet {
	s := &IDSet{seen: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			s.seen[id] = struct{}{}
		}
	}
	return s
}

// Add returns true if the ID was newly added, false if already present.
func (s *IDSet) Add(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[id]; exists {
		return false
	}
	s.seen[id] = struct{}{}
	return true
}

// Contains returns true if the ID has already been seen.
func (s *IDSet) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[id]
	return exists
}

// Size returns the number of unique IDs tracked.
func (s *IDSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}

var (
	rndMu sync.Mutex
	rnd   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// RandomDuration returns a uniformly random duration in [min, max].
func RandomDuration(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	rndMu.Lock()
	defer rndMu.Unlock()
	return min + time.Duration(rnd.Int63n(int64(max-min)+1))
}

// RandomDelay sleeps a random duration in [min, max] to keep request cadence
// human-plausible. It returns early with ctx.Err() on cancellation.
func RandomDelay(ctx context.Context, min, max time.Duration) error {
	return SleepContext(ctx, RandomDuration(min, max))
}
