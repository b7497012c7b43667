package media

import (
	"sync"
	"testing"
)

func TestNextFrameIDMonotonic(t *testing.T) {
	t.Parallel()

	prev := NextFrameID()
	for i := 0; i < 100; i++ {
		id := NextFrameID()
		if id <= prev {
			t.Fatalf("NextFrameID returned %d after %d", id, prev)
		}
		prev = id
	}
}

func TestNextFrameIDUniqueAcrossGoroutines(t *testing.T) {
	t.Parallel()

	const workers = 8
	const perWorker = 500

	var mu sync.Mutex
	seen := make(map[uint64]bool, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]uint64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, NextFrameID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("duplicate frame ID %d", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()
}

func TestVideoFrameRelease(t *testing.T) {
	t.Parallel()

	surf := newFakeSurface()
	f := &VideoFrame{FrameID: NextFrameID(), GPU: surf}

	if !f.IsZeroCopy() {
		t.Error("IsZeroCopy = false with surface attached")
	}
	f.Release()
	f.Release() // second call is a no-op
	if n := surf.releasedCount(); n != 1 {
		t.Errorf("surface released %d times, want 1", n)
	}
	if f.IsZeroCopy() {
		t.Error("IsZeroCopy = true after release")
	}
}

func TestVideoFrameIsHDR(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transfer TransferFunction
		want     bool
	}{
		{TransferSDR, false},
		{TransferPQ, true},
		{TransferHLG, true},
	}
	for _, tt := range tests {
		f := &VideoFrame{Transfer: tt.transfer}
		if got := f.IsHDR(); got != tt.want {
			t.Errorf("IsHDR with transfer %d = %v, want %v", tt.transfer, got, tt.want)
		}
	}
}
