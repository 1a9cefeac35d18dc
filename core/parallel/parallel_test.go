package parallel

import (
	"sync/atomic"
	"testing"
)

func TestParallelizeCoversRangeExactlyOnce(t *testing.T) {
	for _, items := range []int{0, 1, 3, 7, 100, 1000} {
		hits := make([]int32, items)
		Parallelize(items, func(start, end int) {
			for i := start; i < end; i++ {
				atomic.AddInt32(&hits[i], 1)
			}
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("items=%d: index %d visited %d times", items, i, h)
			}
		}
	}
}

func TestParallelizeWithThresholdRunsSequentiallyBelow(t *testing.T) {
	calls := 0
	ParallelizeWithThreshold(10, 10, func(start, end int) {
		calls++
		if start != 0 || end != 10 {
			t.Fatalf("expected single full-range call, got [%d, %d)", start, end)
		}
	})
	if calls != 1 {
		t.Fatalf("expected one sequential call, got %d", calls)
	}

	var total int32
	ParallelizeWithThreshold(1000, 10, func(start, end int) {
		atomic.AddInt32(&total, int32(end-start))
	})
	if total != 1000 {
		t.Fatalf("parallel path covered %d of 1000 items", total)
	}
}
