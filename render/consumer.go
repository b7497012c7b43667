package render

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/zortos293/OpenNOW-sub000/decode"
	"github.com/zortos293/OpenNOW-sub000/media"
)

// Presenter is the GPU-side collaborator the consumer drives. The window
// layer implements it over whatever graphics API backs the swapchain; the
// consumer decides per frame which of the two paths applies.
type Presenter interface {
	// BindTexture presents a zero-copy frame from an imported surface.
	BindTexture(t *Texture, p ShaderParams) error

	// UploadPlanes presents a CPU frame by uploading its planes.
	UploadPlanes(f *media.VideoFrame, p ShaderParams) error
}

// Consumer drains the frame slot on the render side. It renders each frame
// at most once, prefers the zero-copy surface path and falls back to a
// per-frame CPU readback when a surface cannot be imported, so a stream
// never stalls on an interop gap.
type Consumer struct {
	log       *slog.Logger
	slot      *media.FrameSlot
	cache     *ImportCache
	presenter Presenter

	// DisplayHDR reflects the output's HDR capability; it feeds tone-map
	// and gamut decisions in ParamsFor.
	DisplayHDR bool

	// readback converts a GPU surface to CPU planes on the fallback path.
	readback func(media.GpuSurfaceHandle) (*media.VideoFrame, error)

	lastFrameID atomic.Uint64
	zeroCopy    atomic.Uint64
	fallbacks   atomic.Uint64
	presented   atomic.Uint64
}

func NewConsumer(slot *media.FrameSlot, cache *ImportCache, p Presenter) *Consumer {
	return &Consumer{
		log:       slog.With("component", "render"),
		slot:      slot,
		cache:     cache,
		presenter: p,
		readback:  decode.TransferToCPU,
	}
}

// RenderNext presents the newest frame if one is waiting. It returns false
// when the slot is empty or holds only an already-rendered frame.
func (c *Consumer) RenderNext() (bool, error) {
	if !c.slot.HasNewFrame() {
		return false, nil
	}
	f := c.slot.Read()
	if f == nil {
		return false, nil
	}
	if f.FrameID <= c.lastFrameID.Load() {
		f.Release()
		return false, nil
	}
	defer f.Release()

	if err := c.present(f); err != nil {
		return false, err
	}
	c.lastFrameID.Store(f.FrameID)
	c.presented.Add(1)
	return true, nil
}

func (c *Consumer) present(f *media.VideoFrame) error {
	params := ParamsFor(f, c.DisplayHDR)

	if f.IsZeroCopy() && c.cache != nil {
		tex, err := c.cache.Import(f)
		if err == nil {
			c.zeroCopy.Add(1)
			return c.presenter.BindTexture(tex, params)
		}

		// Import failed; read the surface back and take the upload path.
		cpu, rerr := c.readback(f.GPU)
		if rerr != nil {
			return fmt.Errorf("surface import failed (%v) and readback failed: %w", err, rerr)
		}
		c.fallbacks.Add(1)
		c.log.Debug("surface import fell back to CPU readback",
			"frame_id", f.FrameID, "error", err)
		// Fallback params come from the readback frame, whose format may
		// differ from the surface's.
		return c.presenter.UploadPlanes(cpu, ParamsFor(cpu, c.DisplayHDR))
	}

	return c.presenter.UploadPlanes(f, params)
}

// Run services the slot until ctx is cancelled, waking on each publish
// instead of polling.
func (c *Consumer) Run(ctx context.Context) error {
	wake := make(chan struct{}, 1)
	c.slot.SetWake(func() {
		select {
		case wake <- struct{}{}:
		default:
		}
	})
	defer c.slot.SetWake(nil)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
			if _, err := c.RenderNext(); err != nil {
				c.log.Error("present failed", "error", err)
			}
		}
	}
}

// LastFrameID returns the ID of the most recently presented frame.
func (c *Consumer) LastFrameID() uint64 { return c.lastFrameID.Load() }

// Stats returns presented, zero-copy, and CPU-fallback frame counts.
func (c *Consumer) Stats() (presented, zeroCopy, fallbacks uint64) {
	return c.presented.Load(), c.zeroCopy.Load(), c.fallbacks.Load()
}
