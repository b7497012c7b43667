package decode

import (
	"sync/atomic"
	"unsafe"

	"github.com/asticode/go-astiav"

	"github.com/zortos293/OpenNOW-sub000/media"
)

// hwSurface wraps a referenced hardware frame so it can cross to the render
// thread without a GPU to CPU readback. The wrapped frame pins its surface
// in the decoder's pool; freeing the frame returns it.
type hwSurface struct {
	kind  media.SurfaceKind
	frame *astiav.Frame
	id    uintptr
	index int
	refs  atomic.Int32
}

// newHWSurface takes ownership of a frame reference obtained with Ref.
func newHWSurface(kind media.SurfaceKind, frame *astiav.Frame) *hwSurface {
	id, index := surfaceIdentity(kind, frame)
	s := &hwSurface{
		kind:  kind,
		frame: frame,
		id:    id,
		index: index,
	}
	s.refs.Store(1)
	return s
}

// surfaceIdentity reads the pool surface identity out of a hardware frame.
// The data array is the first field of the frame struct; per hwaccel
// convention VAAPI carries the VASurfaceID in data[3], VideoToolbox the
// CVPixelBufferRef in data[3], D3D11 the texture in data[0] with the array
// slice in data[1], and CUDA the device pointer in data[0]. Every reference
// to the same pool surface reports the same identity, which is what the
// render-side import cache keys on.
func surfaceIdentity(kind media.SurfaceKind, f *astiav.Frame) (id uintptr, arrayIndex int) {
	d := (*[numDataPointers]uintptr)(f.UnsafePointer())
	switch kind {
	case media.SurfaceVAAPI, media.SurfaceCVPixelBuffer:
		return d[3], 0
	case media.SurfaceD3D11Texture:
		return d[0], int(d[1])
	default:
		return d[0], 0
	}
}

// numDataPointers mirrors the frame data array length.
const numDataPointers = int(astiav.NumDataPointers)

func (s *hwSurface) Kind() media.SurfaceKind { return s.kind }
func (s *hwSurface) SurfaceID() uintptr      { return s.id }
func (s *hwSurface) ArrayIndex() int         { return s.index }

func (s *hwSurface) Retain() {
	s.refs.Add(1)
}

func (s *hwSurface) Release() {
	if s.refs.Add(-1) == 0 {
		s.frame.Free()
		s.frame = nil
	}
}

// Frame exposes the wrapped hardware frame to the render-side importer.
func (s *hwSurface) Frame() *astiav.Frame { return s.frame }

// surfaceKindFor maps a hardware pixel format to the platform surface type.
func surfaceKindFor(pf astiav.PixelFormat) (media.SurfaceKind, bool) {
	switch pf {
	case astiav.PixelFormatVaapi:
		return media.SurfaceVAAPI, true
	case astiav.PixelFormatD3D11:
		return media.SurfaceD3D11Texture, true
	case astiav.PixelFormatVideotoolbox:
		return media.SurfaceCVPixelBuffer, true
	case astiav.PixelFormatCuda:
		return media.SurfaceCUDA, true
	}
	return 0, false
}
