package decode

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zortos293/OpenNOW-sub000/media"
)

// WarmUpFrames is how many successfully decoded frames are discarded after
// engine construction, letting reference-picture state settle before
// anything reaches the screen. Tunable, not a protocol requirement.
const WarmUpFrames = 5

// Keyframe recovery thresholds: signal once after this many consecutive
// submits without output, then again every repeat interval until a decode
// succeeds.
const (
	keyframeThreshold = 10
	keyframeRepeat    = 20
)

// commandQueueDepth bounds in-flight access units. The transport paces
// submissions; a full queue means decode has fallen badly behind and
// dropping is better than stalling the network thread.
const commandQueueDepth = 32

type command struct {
	au          []byte
	timestampUs uint64
}

// Engine drives a decoder on its own goroutine. DecodeAsync never blocks;
// decoded frames land in the FrameSlot after the warm-up window, and
// sustained decode misses raise the needs-keyframe signal.
type Engine struct {
	log  *slog.Logger
	dec  Decoder
	sel  Selection
	slot *media.FrameSlot

	codec Codec
	cmds  chan command
	stop  chan struct{}
	done  chan struct{}

	needsKeyframe chan struct{}
	stats         *media.StatsTracker

	framesDecoded       atomic.Uint64
	consecutiveFailures atomic.Uint32
	dropped             atomic.Uint64
	stopped             atomic.Bool
}

// NewEngine selects a decoder backend and prepares the engine. Run must be
// called to start decoding.
func NewEngine(codec Codec, pref Preference, slot *media.FrameSlot, log *slog.Logger) (*Engine, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "decode-engine")

	dec, sel, err := Select(codec, pref, Detect(), log)
	if err != nil {
		return nil, err
	}
	e := newEngineWith(codec, dec, sel, slot, log)
	e.stats.SetStream(codec.String(), sel.Backend.String(), 0, 0, sel.HardwareAccelerated)
	return e, nil
}

// newEngineWith is the injectable constructor used by tests.
func newEngineWith(codec Codec, dec Decoder, sel Selection, slot *media.FrameSlot, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		log:           log,
		dec:           dec,
		sel:           sel,
		slot:          slot,
		codec:         codec,
		cmds:          make(chan command, commandQueueDepth),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
		needsKeyframe: make(chan struct{}, 1),
		stats:         media.NewStatsTracker(),
	}
}

// Selection reports the backend chosen at construction.
func (e *Engine) Selection() Selection {
	return e.sel
}

// NeedsKeyframe delivers a signal when sustained decode failure calls for a
// fresh keyframe. The transport forwards it as a picture-loss indication;
// the engine only detects the need.
func (e *Engine) NeedsKeyframe() <-chan struct{} {
	return e.needsKeyframe
}

// Stats returns a snapshot of decode statistics.
func (e *Engine) Stats() media.StreamStats {
	e.stats.SetDropped(e.dropped.Load() + e.slot.Drops())
	return e.stats.Snapshot()
}

// DecodeAsync queues one encoded access unit and returns immediately. A
// full queue drops the unit; recovery rides the keyframe signal.
func (e *Engine) DecodeAsync(au []byte, timestampUs uint64) error {
	if e.stopped.Load() {
		return ErrStopped
	}
	select {
	case e.cmds <- command{au: au, timestampUs: timestampUs}:
		return nil
	default:
		e.dropped.Add(1)
		e.log.Debug("decode queue full, dropping access unit")
		return nil
	}
}

// Stop asks the decode loop to exit after draining the in-flight unit.
// Safe to call more than once.
func (e *Engine) Stop() {
	if e.stopped.CompareAndSwap(false, true) {
		close(e.stop)
	}
	<-e.done
}

// Run is the decode loop. It blocks only on the command channel and exits
// on Stop or context cancellation.
func (e *Engine) Run(ctx context.Context) error {
	defer close(e.done)
	defer e.dec.Close()
	e.log.Info("decode loop started", "codec", e.codec, "backend", e.sel.Backend)

	warmUpRemaining := WarmUpFrames
	for {
		select {
		case <-ctx.Done():
			e.stopped.Store(true)
			e.log.Info("decode loop stopped", "frames", e.framesDecoded.Load())
			return ctx.Err()
		case <-e.stop:
			e.log.Info("decode loop stopped", "frames", e.framesDecoded.Load())
			return nil
		case cmd := <-e.cmds:
			warmUpRemaining = e.process(cmd, warmUpRemaining)
		}
	}
}

// process decodes one access unit and tracks warm-up and failure state.
func (e *Engine) process(cmd command, warmUpRemaining int) int {
	start := time.Now()
	au := NormalizeAccessUnit(e.codec, cmd.au)

	produced := false
	if err := e.dec.Submit(au); err != nil {
		e.log.Debug("decoder rejected access unit", "error", err)
		e.stats.RecordError()
	} else {
		for {
			vf, err := e.dec.Receive()
			if err != nil {
				if !errors.Is(err, ErrNoFrame) {
					e.log.Debug("decode receive failed", "error", err)
					e.stats.RecordError()
				}
				break
			}
			produced = true
			vf.TimestampUs = cmd.timestampUs
			e.framesDecoded.Add(1)
			e.stats.RecordFrame(time.Since(start))

			if warmUpRemaining > 0 {
				warmUpRemaining--
				e.log.Debug("discarding warm-up frame", "remaining", warmUpRemaining)
				vf.Release()
				continue
			}
			e.stats.SetStream(e.codec.String(), e.sel.Backend.String(), vf.Width, vf.Height, vf.IsZeroCopy())
			e.slot.Write(vf)
		}
	}

	e.trackFailures(produced)
	return warmUpRemaining
}

// trackFailures counts consecutive no-output submits and raises the
// keyframe signal at the threshold and on every repeat interval after it.
// A decode miss is normal during B-frame buffering; only a run of them
// means reference state is lost.
func (e *Engine) trackFailures(produced bool) {
	if produced {
		if n := e.consecutiveFailures.Swap(0); n >= keyframeThreshold {
			e.log.Info("decoder recovered", "failures", n)
		}
		return
	}
	n := e.consecutiveFailures.Add(1)
	if n == keyframeThreshold || (n > keyframeThreshold && (n-keyframeThreshold)%keyframeRepeat == 0) {
		e.log.Warn("sustained decode failure, keyframe needed", "consecutive", n)
		select {
		case e.needsKeyframe <- struct{}{}:
		default:
		}
	}
}
