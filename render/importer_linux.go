//go:build linux

package render

import (
	"fmt"
	"log/slog"

	"github.com/zortos293/OpenNOW-sub000/media"
)

// DRM fourcc codes for the formats the decoder emits.
const (
	drmFormatNV12 uint32 = 0x3231564E // 'NV12'
	drmFormatP010 uint32 = 0x30313050 // 'P010'
)

// VAAPIBinding is the descriptor the GL/Vulkan window layer needs to wrap a
// VA-API surface as an external image (EGL_EXT_image_dma_buf_import or
// VK_EXT_external_memory_dma_buf).
type VAAPIBinding struct {
	Surface   uintptr
	DRMFourCC uint32
}

// vaapiImporter binds VA-API decoder surfaces. CUDA surfaces from the CUVID
// path have no portable GL interop here and take the CPU readback fallback.
type vaapiImporter struct {
	log *slog.Logger
}

// NewPlatformImporter returns the importer for the host windowing stack.
func NewPlatformImporter() Importer {
	return &vaapiImporter{log: slog.With("component", "render")}
}

func (i *vaapiImporter) Supports(kind media.SurfaceKind) bool {
	return kind == media.SurfaceVAAPI
}

func (i *vaapiImporter) Import(h media.GpuSurfaceHandle, f *media.VideoFrame) (*Texture, error) {
	if h.Kind() != media.SurfaceVAAPI {
		return nil, fmt.Errorf("cannot import surface kind %d via VA-API", h.Kind())
	}
	fourcc := drmFormatNV12
	if f.Format == media.PixelFormatP010 {
		fourcc = drmFormatP010
	}
	return &Texture{
		SurfaceID:  h.SurfaceID(),
		ArrayIndex: h.ArrayIndex(),
		Width:      f.Width,
		Height:     f.Height,
		Format:     f.Format,
		Native:     VAAPIBinding{Surface: h.SurfaceID(), DRMFourCC: fourcc},
	}, nil
}

func (i *vaapiImporter) Release(surfaceID uintptr) {}

func (i *vaapiImporter) Close() {}
