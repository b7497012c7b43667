package decode

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/asticode/go-astiav"

	"github.com/zortos293/OpenNOW-sub000/media"
)

// TransferToCPU reads a hardware surface back into 256-byte-aligned CPU
// planes. It is the per-frame fallback when the renderer cannot import a
// surface natively; the readback is the cost zero-copy exists to avoid.
func TransferToCPU(h media.GpuSurfaceHandle) (*media.VideoFrame, error) {
	s, ok := h.(*hwSurface)
	if !ok {
		return nil, errors.New("surface was not produced by this decoder")
	}
	sw := astiav.AllocFrame()
	defer sw.Free()
	if err := s.Frame().TransferHardwareData(sw); err != nil {
		return nil, fmt.Errorf("hardware readback: %w", err)
	}

	d := &astiavDecoder{log: slog.With("component", "decoder")}
	defer d.freeScaler()
	return d.convertSoftwareFrame(sw)
}
