// Package decode owns hardware decoder selection and the asynchronous video
// decode engine. Encoded access units go in on a command channel; decoded
// frames come out through the media.FrameSlot shared with the renderer.
package decode

import "errors"

// Codec identifies the compressed video format of a session.
type Codec int

const (
	CodecH264 Codec = iota
	CodecHEVC
	CodecAV1
)

func (c Codec) String() string {
	switch c {
	case CodecHEVC:
		return "hevc"
	case CodecAV1:
		return "av1"
	default:
		return "h264"
	}
}

// Backend names a concrete decode path.
type Backend int

const (
	BackendSoftware Backend = iota
	BackendVideoToolbox
	BackendD3D11VA
	BackendCUVID
	BackendQSV
	BackendAMF
	BackendVAAPI
)

func (b Backend) String() string {
	switch b {
	case BackendVideoToolbox:
		return "videotoolbox"
	case BackendD3D11VA:
		return "d3d11va"
	case BackendCUVID:
		return "cuvid"
	case BackendQSV:
		return "qsv"
	case BackendAMF:
		return "amf"
	case BackendVAAPI:
		return "vaapi"
	default:
		return "software"
	}
}

// Preference is the user's requested decode path. Auto walks the platform's
// backend priority list; Software skips hardware entirely; anything else
// pins the first attempt to that backend, still falling through on failure.
type Preference int

const (
	PreferAuto Preference = iota
	PreferSoftware
	PreferVideoToolbox
	PreferD3D11VA
	PreferCUVID
	PreferQSV
	PreferVAAPI
)

// Selection is the outcome of backend probing. Once a session selects a
// backend it does not change except by full decoder re-creation.
type Selection struct {
	Backend             Backend
	HardwareAccelerated bool
}

// ErrNoFrame is returned by a decoder's Receive when no picture is ready.
// Frequent during B-frame reordering; not an error condition.
var ErrNoFrame = errors.New("decode: no frame available")

// ErrStopped is returned by engine operations after Stop.
var ErrStopped = errors.New("decode: engine stopped")
