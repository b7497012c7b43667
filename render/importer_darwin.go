//go:build darwin

package render

import (
	"fmt"
	"log/slog"

	"github.com/zortos293/OpenNOW-sub000/media"
)

// CVPixelBufferBinding is the descriptor the Metal window layer needs to
// wrap a VideoToolbox CVPixelBuffer via CVMetalTextureCache.
type CVPixelBufferBinding struct {
	Buffer uintptr
}

type videoToolboxImporter struct {
	log *slog.Logger
}

// NewPlatformImporter returns the importer for the host windowing stack.
func NewPlatformImporter() Importer {
	return &videoToolboxImporter{log: slog.With("component", "render")}
}

func (i *videoToolboxImporter) Supports(kind media.SurfaceKind) bool {
	return kind == media.SurfaceCVPixelBuffer
}

func (i *videoToolboxImporter) Import(h media.GpuSurfaceHandle, f *media.VideoFrame) (*Texture, error) {
	if h.Kind() != media.SurfaceCVPixelBuffer {
		return nil, fmt.Errorf("cannot import surface kind %d via Metal", h.Kind())
	}
	return &Texture{
		SurfaceID:  h.SurfaceID(),
		ArrayIndex: h.ArrayIndex(),
		Width:      f.Width,
		Height:     f.Height,
		Format:     f.Format,
		Native:     CVPixelBufferBinding{Buffer: h.SurfaceID()},
	}, nil
}

func (i *videoToolboxImporter) Release(surfaceID uintptr) {}

func (i *videoToolboxImporter) Close() {}
