package media

import (
	"sync"
	"sync/atomic"
)

// FrameSlot is a single-slot, latest-wins mailbox between the decode thread
// (producer) and the render thread (consumer). A write replaces any unread
// frame; the consumer always observes the newest picture and stale frames are
// dropped rather than queued, keeping display latency bounded at one frame.
//
// All methods are safe for concurrent use by one producer and one consumer.
type FrameSlot struct {
	mu    sync.Mutex
	frame *VideoFrame

	// writeCount and readCount diverge exactly when an unread frame is
	// waiting, letting HasNewFrame answer without taking the lock.
	writeCount atomic.Uint64
	readCount  atomic.Uint64

	// drops counts frames replaced before they were read.
	drops atomic.Uint64

	// wake, when set, is invoked after every publish so an event-driven
	// consumer can schedule a redraw instead of polling.
	wakeMu sync.Mutex
	wake   func()
}

// NewFrameSlot returns an empty slot.
func NewFrameSlot() *FrameSlot {
	return &FrameSlot{}
}

// SetWake registers fn to be called after each Write. fn must be cheap and
// must not call back into the slot; it typically posts a redraw request to
// the UI event loop. Passing nil clears the callback.
func (s *FrameSlot) SetWake(fn func()) {
	s.wakeMu.Lock()
	s.wake = fn
	s.wakeMu.Unlock()
}

// Write publishes frame, replacing and releasing any unread predecessor.
// The slot takes ownership of the frame and of its GPU surface reference.
func (s *FrameSlot) Write(frame *VideoFrame) {
	s.mu.Lock()
	if prev := s.frame; prev != nil {
		prev.Release()
		s.drops.Add(1)
	}
	s.frame = frame
	s.writeCount.Add(1)
	s.mu.Unlock()

	s.wakeMu.Lock()
	wake := s.wake
	s.wakeMu.Unlock()
	if wake != nil {
		wake()
	}
}

// HasNewFrame reports whether an unread frame is waiting. It takes no lock,
// so the render loop can poll it every tick without contending with Write.
func (s *FrameSlot) HasNewFrame() bool {
	return s.writeCount.Load() != s.readCount.Load()
}

// Read moves the current frame out of the slot, or returns nil when the slot
// is empty. Ownership of the frame and its GPU reference transfers to the
// caller; a second Read before the next Write returns nil.
func (s *FrameSlot) Read() *VideoFrame {
	s.mu.Lock()
	frame := s.frame
	s.frame = nil
	if frame != nil {
		s.readCount.Store(s.writeCount.Load())
	}
	s.mu.Unlock()
	return frame
}

// Drops returns how many published frames were replaced before being read.
// The count is cumulative; reads do not reset it.
func (s *FrameSlot) Drops() uint64 {
	return s.drops.Load()
}

// Close releases any unread frame so GPU surfaces return to the decoder pool
// during teardown.
func (s *FrameSlot) Close() {
	s.mu.Lock()
	if s.frame != nil {
		s.frame.Release()
		s.frame = nil
	}
	s.mu.Unlock()
}
