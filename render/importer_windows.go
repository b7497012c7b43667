//go:build windows

package render

import (
	"fmt"
	"log/slog"

	"github.com/zortos293/OpenNOW-sub000/media"
)

// DXGI format values for the decoder output formats.
const (
	dxgiFormatNV12 uint32 = 103
	dxgiFormatP010 uint32 = 104
)

// D3D11Binding is the descriptor the window layer needs to create shader
// resource views over a decoder-owned ID3D11Texture2D. D3D11 decoders return
// slices of one array texture, so ArrayIndex selects the picture.
type D3D11Binding struct {
	Texture    uintptr
	ArrayIndex int
	DXGIFormat uint32
}

type d3d11Importer struct {
	log *slog.Logger
}

// NewPlatformImporter returns the importer for the host windowing stack.
func NewPlatformImporter() Importer {
	return &d3d11Importer{log: slog.With("component", "render")}
}

func (i *d3d11Importer) Supports(kind media.SurfaceKind) bool {
	return kind == media.SurfaceD3D11Texture
}

func (i *d3d11Importer) Import(h media.GpuSurfaceHandle, f *media.VideoFrame) (*Texture, error) {
	if h.Kind() != media.SurfaceD3D11Texture {
		return nil, fmt.Errorf("cannot import surface kind %d via D3D11", h.Kind())
	}
	format := dxgiFormatNV12
	if f.Format == media.PixelFormatP010 {
		format = dxgiFormatP010
	}
	return &Texture{
		SurfaceID:  h.SurfaceID(),
		ArrayIndex: h.ArrayIndex(),
		Width:      f.Width,
		Height:     f.Height,
		Format:     f.Format,
		Native: D3D11Binding{
			Texture:    h.SurfaceID(),
			ArrayIndex: h.ArrayIndex(),
			DXGIFormat: format,
		},
	}, nil
}

func (i *d3d11Importer) Release(surfaceID uintptr) {}

func (i *d3d11Importer) Close() {}
