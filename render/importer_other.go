//go:build !linux && !windows && !darwin

package render

import (
	"errors"

	"github.com/zortos293/OpenNOW-sub000/media"
)

type noImporter struct{}

// NewPlatformImporter returns the importer for the host windowing stack.
// Platforms without a surface interop path render via the CPU fallback only.
func NewPlatformImporter() Importer {
	return noImporter{}
}

func (noImporter) Supports(kind media.SurfaceKind) bool { return false }

func (noImporter) Import(h media.GpuSurfaceHandle, f *media.VideoFrame) (*Texture, error) {
	return nil, errors.New("no surface interop on this platform")
}

func (noImporter) Release(surfaceID uintptr) {}

func (noImporter) Close() {}
