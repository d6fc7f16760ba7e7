package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestIDSetNoDuplicates(t *testing.T) {
	s := NewIDSet()

	added := s.Add("123456789")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("123456789")
	if added {
		t.Error("second Add of same ID should return false")
	}

	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestIDSetSeedIgnoresEmpty(t *testing.T) {
	s := NewIDSet("a", "", "b", "a")
	if s.Size() != 2 {
		t.Errorf("size: got %d, want 2", s.Size())
	}
	if !s.Contains("b") {
		t.Error("seeded ID b should be present")
	}
}

func TestIDSetConcurrency(t *testing.T) {
	s := NewIDSet()
	var added int64

	items := make([]string, 100)
	for i := range items {
		items[i] = "same"
	}
	RunBatches(context.Background(), items, 10, func(_ context.Context, id string) (struct{}, error) {
		if s.Add(id) {
			atomic.AddInt64(&added, 1)
		}
		return struct{}{}, nil
	})

	if added != 1 {
		t.Errorf("expected exactly 1 successful add, got %d", added)
	}
}

func TestRunBatchesBoundsConcurrency(t *testing.T) {
	var inFlight, peak int64
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	results := RunBatches(context.Background(), items, 3, func(_ context.Context, n int) (int, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		if n%4 == 0 {
			return 0, errors.New("boom")
		}
		return n * 10, nil
	})

	if peak > 3 {
		t.Errorf("peak concurrency: got %d, want <= 3", peak)
	}
	if len(results) != len(items) {
		t.Fatalf("results: got %d, want %d", len(results), len(items))
	}
	for i, r := range results {
		n := items[i]
		if n%4 == 0 {
			if r.Err == nil {
				t.Errorf("item %d: expected error", n)
			}
			continue
		}
		if r.Err != nil || r.Value != n*10 {
			t.Errorf("item %d: got (%d, %v), want (%d, nil)", n, r.Value, r.Err, n*10)
		}
	}
}

func TestRandomDurationWithinBounds(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := RandomDuration(2*time.Second, 4*time.Second)
		if d < 2*time.Second || d > 4*time.Second {
			t.Fatalf("RandomDuration out of range: %v", d)
		}
	}
	if got := RandomDuration(time.Second, time.Second); got != time.Second {
		t.Errorf("RandomDuration(min == max) = %v; want 1s", got)
	}
}

func TestRandomDelayHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := RandomDelay(ctx, time.Second, 2*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err: got %v, want context.Canceled", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("RandomDelay should return immediately on a cancelled context")
	}
}
