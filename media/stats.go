package media

import (
	"sync"
	"time"
)

// StreamStats is a point-in-time snapshot of the playback pipeline, published
// by the decode engine for the stats overlay.
type StreamStats struct {
	FramesDecoded uint64
	FramesDropped uint64
	DecodeErrors  uint64
	FPS           float64
	DecodeTimeMs  float64
	Width         int
	Height        int
	Codec         string
	Backend       string
	ZeroCopy      bool
}

// StatsTracker aggregates per-frame decode measurements into a rolling
// one-second FPS and a smoothed decode time.
type StatsTracker struct {
	mu           sync.Mutex
	stats        StreamStats
	windowStart  time.Time
	windowFrames int
}

// NewStatsTracker returns a tracker with an empty window.
func NewStatsTracker() *StatsTracker {
	return &StatsTracker{windowStart: time.Now()}
}

// RecordFrame notes one decoded frame and its decode duration.
func (t *StatsTracker) RecordFrame(decodeTime time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stats.FramesDecoded++
	t.windowFrames++

	// Exponential smoothing keeps the overlay readable at 60+ fps.
	ms := float64(decodeTime) / float64(time.Millisecond)
	if t.stats.DecodeTimeMs == 0 {
		t.stats.DecodeTimeMs = ms
	} else {
		t.stats.DecodeTimeMs = t.stats.DecodeTimeMs*0.9 + ms*0.1
	}

	if elapsed := time.Since(t.windowStart); elapsed >= time.Second {
		t.stats.FPS = float64(t.windowFrames) / elapsed.Seconds()
		t.windowFrames = 0
		t.windowStart = time.Now()
	}
}

// RecordError notes one failed decode attempt.
func (t *StatsTracker) RecordError() {
	t.mu.Lock()
	t.stats.DecodeErrors++
	t.mu.Unlock()
}

// SetStream records the negotiated stream parameters shown in the overlay.
func (t *StatsTracker) SetStream(codec, backend string, width, height int, zeroCopy bool) {
	t.mu.Lock()
	t.stats.Codec = codec
	t.stats.Backend = backend
	t.stats.Width = width
	t.stats.Height = height
	t.stats.ZeroCopy = zeroCopy
	t.mu.Unlock()
}

// SetDropped updates the dropped-frame counter from the frame slot.
func (t *StatsTracker) SetDropped(n uint64) {
	t.mu.Lock()
	t.stats.FramesDropped = n
	t.mu.Unlock()
}

// Snapshot returns a copy of the current stats.
func (t *StatsTracker) Snapshot() StreamStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}
