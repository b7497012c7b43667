// Package media defines the decoded-frame types that flow from the decode
// engine to the renderer, and the single-slot mailbox that hands frames
// between the decode and render threads.
package media

import "sync/atomic"

// frameIDCounter issues process-wide frame IDs. The renderer compares IDs
// against the last frame it uploaded to skip redundant GPU work.
var frameIDCounter atomic.Uint64

// NextFrameID returns a new unique, strictly increasing frame ID.
func NextFrameID() uint64 {
	return frameIDCounter.Add(1)
}

// PixelFormat identifies the memory layout of a decoded frame's planes.
type PixelFormat int

const (
	// PixelFormatYUV420P is planar 4:2:0 with separate Y, U and V planes.
	PixelFormatYUV420P PixelFormat = iota
	// PixelFormatNV12 is semi-planar 4:2:0: a full-resolution Y plane plus an
	// interleaved UV plane. Preferred for GPU upload; the V plane is empty.
	PixelFormatNV12
	// PixelFormatP010 is 10-bit semi-planar 4:2:0, samples in 16-bit words.
	PixelFormatP010
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatNV12:
		return "nv12"
	case PixelFormatP010:
		return "p010"
	default:
		return "yuv420p"
	}
}

// ColorRange is the quantization range of the YUV samples.
type ColorRange int

const (
	// ColorRangeLimited is 16-235 luma / 16-240 chroma, standard for video.
	ColorRangeLimited ColorRange = iota
	// ColorRangeFull is 0-255, common for desktop capture content.
	ColorRangeFull
)

// ColorSpace selects the YUV-to-RGB matrix coefficients signaled in the stream.
type ColorSpace int

const (
	ColorSpaceBT709 ColorSpace = iota
	ColorSpaceBT601
	ColorSpaceBT2020
)

func (c ColorSpace) String() string {
	switch c {
	case ColorSpaceBT601:
		return "bt601"
	case ColorSpaceBT2020:
		return "bt2020"
	default:
		return "bt709"
	}
}

// TransferFunction is the stream's electro-optical transfer function.
type TransferFunction int

const (
	// TransferSDR is conventional BT.709/sRGB-class gamma.
	TransferSDR TransferFunction = iota
	// TransferPQ is SMPTE ST 2084 perceptual quantizer (HDR10).
	TransferPQ
	// TransferHLG is ARIB STD-B67 hybrid log-gamma.
	TransferHLG
)

// SurfaceKind names the platform-native type behind a GpuSurfaceHandle.
type SurfaceKind int

const (
	SurfaceVAAPI SurfaceKind = iota
	SurfaceD3D11Texture
	SurfaceCVPixelBuffer
	SurfaceCUDA
)

// GpuSurfaceHandle is a reference-counted wrapper around a decoder-native GPU
// surface. The surface stays out of the decoder's output pool for as long as
// any reference is alive; the last Release returns it. Implementations live
// in the decode package, one per platform surface type.
type GpuSurfaceHandle interface {
	// Kind identifies the platform surface type.
	Kind() SurfaceKind

	// SurfaceID is a stable identity for the underlying surface or texture.
	// The renderer's import cache keys on it to skip re-imports when the
	// decoder recycles a pool surface.
	SurfaceID() uintptr

	// ArrayIndex is the texture-array slice to sample when the decoder
	// returns slices of a shared array texture rather than discrete textures.
	ArrayIndex() int

	// Retain adds a reference.
	Retain()

	// Release drops a reference. The last Release returns the surface to the
	// decoder's pool.
	Release()
}

// VideoFrame is a single decoded picture ready for display. Zero-copy frames
// carry only the GPU surface handle; CPU-path frames carry only plane buffers.
type VideoFrame struct {
	// FrameID is unique and strictly increasing across the process lifetime.
	FrameID uint64

	// Width and Height are display dimensions, not encoder-padded coded size.
	Width  int
	Height int

	// Y, U, V hold the CPU-resident planes. For NV12/P010 frames U holds the
	// interleaved UV data and V is empty.
	Y []byte
	U []byte
	V []byte

	// Plane row pitches. May exceed Width due to GPU upload alignment.
	YStride int
	UStride int
	VStride int

	Format   PixelFormat
	Range    ColorRange
	Space    ColorSpace
	Transfer TransferFunction

	// TimestampUs is the presentation timestamp in microseconds, carried
	// through for latency accounting.
	TimestampUs uint64

	// GPU is set only when the decoder kept the picture in GPU memory.
	// Ownership travels with the frame; whoever drops the frame must Release.
	GPU GpuSurfaceHandle
}

// IsZeroCopy reports whether the pixels live in a GPU surface rather than
// CPU plane buffers.
func (f *VideoFrame) IsZeroCopy() bool {
	return f.GPU != nil
}

// IsHDR reports whether the frame uses an HDR transfer function.
func (f *VideoFrame) IsHDR() bool {
	return f.Transfer == TransferPQ || f.Transfer == TransferHLG
}

// Release drops the frame's GPU surface reference, if any. Safe on CPU-plane
// frames and idempotent per ownership transfer.
func (f *VideoFrame) Release() {
	if f.GPU != nil {
		f.GPU.Release()
		f.GPU = nil
	}
}
