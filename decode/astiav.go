package decode

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/asticode/go-astiav"

	"github.com/zortos293/OpenNOW-sub000/media"
)

// Decoder is one opened decode path. Submit feeds a complete access unit;
// Receive drains decoded pictures until ErrNoFrame. Not safe for concurrent
// use; the engine confines it to the decode goroutine.
type Decoder interface {
	Submit(au []byte) error
	Receive() (*media.VideoFrame, error)
	Close()
}

// Hardware output pool sizing. The pool must hold every in-flight reference
// picture plus the reorder buffer; too small a pool fails mid-decode, so a
// failed init retries once with the larger size before falling back.
const (
	hwPoolSize      = 20
	hwPoolSizeRetry = 32
)

// softwareThreads picks the software decoder thread count. Low-memory
// boards overflow with a full desktop thread pool.
func softwareThreads(caps Capabilities) int {
	if caps.LowMemoryBoard || caps.Vendor == VendorBroadcom {
		return 2
	}
	return 4
}

type astiavDecoder struct {
	log     *slog.Logger
	ctx     *astiav.CodecContext
	hwDev   *astiav.HardwareDeviceContext
	hwPix   astiav.PixelFormat
	kind    media.SurfaceKind
	backend Backend

	pkt     *astiav.Packet
	frame   *astiav.Frame
	swFrame *astiav.Frame

	// reformat converts non-NV12 software output; allocated on first use.
	sws    *astiav.SoftwareScaleContext
	swsDst *astiav.Frame
	swsW   int
	swsH   int
	swsPix astiav.PixelFormat
}

func codecID(c Codec) astiav.CodecID {
	if c == CodecHEVC {
		return astiav.CodecIDHevc
	}
	return astiav.CodecIDH264
}

// av1DecoderNames lists generic AV1 decoders in preference order. The
// bindings expose no AV1 codec ID, so AV1 resolves by decoder name.
var av1DecoderNames = []string{"libdav1d", "dav1d", "libaom-av1", "av1"}

func findDecoder(c Codec) *astiav.Codec {
	if c == CodecAV1 {
		for _, name := range av1DecoderNames {
			if av := astiav.FindDecoderByName(name); av != nil {
				return av
			}
		}
		return nil
	}
	return astiav.FindDecoder(codecID(c))
}

// accelDecoderName returns the dedicated accelerator decoder for vendor
// backends, or "" for backends using the generic decoder plus a device
// context.
func accelDecoderName(c Codec, b Backend) string {
	var suffix string
	switch b {
	case BackendCUVID:
		suffix = "_cuvid"
	case BackendQSV:
		suffix = "_qsv"
	case BackendAMF:
		suffix = "_amf"
	default:
		return ""
	}
	switch c {
	case CodecHEVC:
		return "hevc" + suffix
	case CodecAV1:
		return "av1" + suffix
	default:
		return "h264" + suffix
	}
}

func hwDeviceType(b Backend) (astiav.HardwareDeviceType, astiav.PixelFormat, bool) {
	switch b {
	case BackendVideoToolbox:
		return astiav.HardwareDeviceTypeVideoToolbox, astiav.PixelFormatVideotoolbox, true
	case BackendD3D11VA:
		return astiav.HardwareDeviceTypeD3D11VA, astiav.PixelFormatD3D11, true
	case BackendVAAPI:
		return astiav.HardwareDeviceTypeVAAPI, astiav.PixelFormatVaapi, true
	case BackendCUVID:
		return astiav.HardwareDeviceTypeCUDA, astiav.PixelFormatCuda, true
	}
	return 0, astiav.PixelFormatNone, false
}

// openBackend constructs a decoder on the requested backend. It is the
// opener used by Select outside tests.
func openBackend(codec Codec, backend Backend, caps Capabilities) (Decoder, error) {
	log := slog.With("component", "decoder", "backend", backend.String())

	var av *astiav.Codec
	if name := accelDecoderName(codec, backend); name != "" {
		av = astiav.FindDecoderByName(name)
		if av == nil {
			return nil, fmt.Errorf("decoder %q not present in this FFmpeg build", name)
		}
	} else {
		av = findDecoder(codec)
		if av == nil {
			return nil, fmt.Errorf("no decoder for %s", codec)
		}
	}

	ctx := astiav.AllocCodecContext(av)
	if ctx == nil {
		return nil, errors.New("allocating codec context")
	}

	d := &astiavDecoder{
		log:     log,
		ctx:     ctx,
		hwPix:   astiav.PixelFormatNone,
		backend: backend,
	}

	// Low-delay flags: the host paces the stream, buffering only adds
	// latency.
	ctx.SetFlags(ctx.Flags().Add(astiav.CodecContextFlagLowDelay))
	ctx.SetFlags2(ctx.Flags2().Add(astiav.CodecFlag2Fast))

	if backend == BackendSoftware {
		ctx.SetThreadCount(softwareThreads(caps))
	} else {
		// Multi-threaded hardware decode reorders frames under missing
		// references; one thread keeps output presentation-ordered.
		ctx.SetThreadCount(1)

		if devType, hwPix, ok := hwDeviceType(backend); ok {
			hwDev, err := astiav.CreateHardwareDeviceContext(devType, "", nil, 0)
			if err != nil {
				ctx.Free()
				return nil, fmt.Errorf("creating %s device context: %w", backend, err)
			}
			d.hwDev = hwDev
			d.hwPix = hwPix
			d.kind, _ = surfaceKindFor(hwPix)
			ctx.SetHardwareDeviceContext(hwDev)
			ctx.SetPixelFormatCallback(d.negotiateFormat)
		}
	}

	if err := ctx.Open(av, nil); err != nil {
		d.freeContexts()
		return nil, fmt.Errorf("opening %s decoder: %w", backend, err)
	}

	d.pkt = astiav.AllocPacket()
	d.frame = astiav.AllocFrame()
	d.swFrame = astiav.AllocFrame()
	log.Info("decoder opened", "codec", codec.String(), "name", av.Name())
	return d, nil
}

// negotiateFormat is the get_format callback: prefer the backend's native
// surface format and size its output pool, retrying once with a larger pool
// before settling for a software format.
func (d *astiavDecoder) negotiateFormat(pfs []astiav.PixelFormat) astiav.PixelFormat {
	hwOffered := false
	for _, pf := range pfs {
		if pf == d.hwPix {
			hwOffered = true
			break
		}
	}
	if !hwOffered {
		d.log.Warn("hardware format not offered, decoder will output software frames")
		return firstSoftwareFormat(pfs)
	}

	for _, pool := range []int{hwPoolSize, hwPoolSizeRetry} {
		if err := d.initFramesPool(pool); err != nil {
			d.log.Warn("hardware frame pool init failed", "pool", pool, "error", err)
			continue
		}
		d.log.Info("hardware frame pool ready", "pool", pool)
		return d.hwPix
	}
	d.log.Warn("hardware frame pool exhausted retries, using software format")
	return firstSoftwareFormat(pfs)
}

func (d *astiavDecoder) initFramesPool(pool int) error {
	fc := astiav.AllocHardwareFramesContext(d.hwDev)
	if fc == nil {
		return errors.New("allocating hardware frames context")
	}
	fc.SetWidth(d.ctx.Width())
	fc.SetHeight(d.ctx.Height())
	fc.SetHardwarePixelFormat(d.hwPix)
	fc.SetSoftwarePixelFormat(astiav.PixelFormatNv12)
	fc.SetInitialPoolSize(pool)
	if err := fc.Initialize(); err != nil {
		fc.Free()
		return err
	}
	d.ctx.SetHardwareFramesContext(fc)
	return nil
}

func firstSoftwareFormat(pfs []astiav.PixelFormat) astiav.PixelFormat {
	for _, pf := range pfs {
		if _, hw := surfaceKindFor(pf); !hw {
			return pf
		}
	}
	return astiav.PixelFormatNone
}

// Submit sends one normalized access unit into the decoder.
func (d *astiavDecoder) Submit(au []byte) error {
	if err := d.pkt.FromData(au); err != nil {
		return fmt.Errorf("wrapping access unit: %w", err)
	}
	defer d.pkt.Unref()
	if err := d.ctx.SendPacket(d.pkt); err != nil {
		return fmt.Errorf("sending packet: %w", err)
	}
	return nil
}

// Receive drains one decoded picture, converting it to the frame model.
// Returns ErrNoFrame when the decoder is still buffering.
func (d *astiavDecoder) Receive() (*media.VideoFrame, error) {
	if err := d.ctx.ReceiveFrame(d.frame); err != nil {
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return nil, ErrNoFrame
		}
		return nil, fmt.Errorf("receiving frame: %w", err)
	}
	defer d.frame.Unref()
	return d.convert(d.frame)
}

// convert turns a decoder output frame into a VideoFrame. Hardware frames
// become zero-copy surface handles when possible, with a per-frame CPU
// transfer fallback.
func (d *astiavDecoder) convert(f *astiav.Frame) (*media.VideoFrame, error) {
	if f.PixelFormat() == d.hwPix && d.hwPix != astiav.PixelFormatNone {
		if vf, err := d.wrapHardwareFrame(f); err == nil {
			return vf, nil
		} else {
			d.log.Debug("zero-copy extraction failed, transferring to CPU", "error", err)
		}
		d.swFrame.Unref()
		if err := f.TransferHardwareData(d.swFrame); err != nil {
			return nil, fmt.Errorf("hardware frame transfer: %w", err)
		}
		return d.convertSoftwareFrame(d.swFrame)
	}
	return d.convertSoftwareFrame(f)
}

func (d *astiavDecoder) wrapHardwareFrame(f *astiav.Frame) (*media.VideoFrame, error) {
	ref := astiav.AllocFrame()
	if err := ref.Ref(f); err != nil {
		ref.Free()
		return nil, fmt.Errorf("referencing hardware frame: %w", err)
	}
	vf := d.newFrame(f)
	// Hardware pools are NV12, or its 10-bit twin P010 for HDR streams.
	vf.Format = media.PixelFormatNV12
	if vf.Transfer != media.TransferSDR {
		vf.Format = media.PixelFormatP010
	}
	vf.GPU = newHWSurface(d.kind, ref)
	return vf, nil
}

// newFrame fills the metadata shared by all conversion paths.
func (d *astiavDecoder) newFrame(f *astiav.Frame) *media.VideoFrame {
	vf := &media.VideoFrame{
		FrameID: media.NextFrameID(),
		Width:   f.Width(),
		Height:  f.Height(),
	}
	if f.ColorRange() == astiav.ColorRangeJpeg {
		vf.Range = media.ColorRangeFull
	}
	switch f.ColorSpace() {
	case astiav.ColorSpaceBt470Bg, astiav.ColorSpaceSmpte170M:
		vf.Space = media.ColorSpaceBT601
	case astiav.ColorSpaceBt2020Ncl, astiav.ColorSpaceBt2020Cl:
		vf.Space = media.ColorSpaceBT2020
	default:
		vf.Space = media.ColorSpaceBT709
	}
	switch f.ColorTransferCharacteristic() {
	case astiav.ColorTransferCharacteristicSmpte2084:
		vf.Transfer = media.TransferPQ
	case astiav.ColorTransferCharacteristicAribStdB67:
		vf.Transfer = media.TransferHLG
	default:
		vf.Transfer = media.TransferSDR
	}
	return vf
}

// convertSoftwareFrame copies CPU-resident planes into GPU-upload-aligned
// buffers. Semi-planar output copies straight through with stride
// realignment; anything else reformats to NV12 with a point (non-sampling)
// scale pass, since dimensions never change.
func (d *astiavDecoder) convertSoftwareFrame(f *astiav.Frame) (*media.VideoFrame, error) {
	switch f.PixelFormat() {
	case astiav.PixelFormatNv12:
		return d.packSemiPlanar(f, media.PixelFormatNV12, 1)
	case astiav.PixelFormatP010Le:
		return d.packSemiPlanar(f, media.PixelFormatP010, 2)
	default:
		rf, err := d.reformat(f)
		if err != nil {
			return nil, err
		}
		return d.packSemiPlanar(rf, media.PixelFormatNV12, 1)
	}
}

func (d *astiavDecoder) reformat(f *astiav.Frame) (*astiav.Frame, error) {
	w, h, pf := f.Width(), f.Height(), f.PixelFormat()
	if d.sws == nil || w != d.swsW || h != d.swsH || pf != d.swsPix {
		d.freeScaler()
		sws, err := astiav.CreateSoftwareScaleContext(
			w, h, pf,
			w, h, astiav.PixelFormatNv12,
			astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagPoint),
		)
		if err != nil {
			return nil, fmt.Errorf("creating reformat context %s to nv12: %w", pf, err)
		}
		dst := astiav.AllocFrame()
		dst.SetWidth(w)
		dst.SetHeight(h)
		dst.SetPixelFormat(astiav.PixelFormatNv12)
		if err := dst.AllocBuffer(1); err != nil {
			dst.Free()
			sws.Free()
			return nil, fmt.Errorf("allocating reformat frame: %w", err)
		}
		d.sws = sws
		d.swsDst = dst
		d.swsW, d.swsH, d.swsPix = w, h, pf
	}
	if err := d.sws.ScaleFrame(f, d.swsDst); err != nil {
		return nil, fmt.Errorf("reformatting to nv12: %w", err)
	}
	d.swsDst.SetColorRange(f.ColorRange())
	return d.swsDst, nil
}

// packSemiPlanar copies the Y and interleaved UV planes into buffers whose
// rows are 256-byte aligned, the pitch granularity GPU uploads require.
func (d *astiavDecoder) packSemiPlanar(f *astiav.Frame, format media.PixelFormat, bytesPerSample int) (*media.VideoFrame, error) {
	w, h := f.Width(), f.Height()
	size, err := f.ImageBufferSize(1)
	if err != nil {
		return nil, fmt.Errorf("sizing image buffer: %w", err)
	}
	packed := make([]byte, size)
	if _, err := f.ImageCopyToBuffer(packed, 1); err != nil {
		return nil, fmt.Errorf("copying image planes: %w", err)
	}

	rowBytes := w * bytesPerSample
	aligned := alignedStride(rowBytes)
	ySize := rowBytes * h
	if len(packed) < ySize+rowBytes*(h/2) {
		return nil, fmt.Errorf("short plane buffer: %d bytes for %dx%d", len(packed), w, h)
	}

	vf := d.newFrame(f)
	vf.Format = format
	vf.YStride = aligned
	vf.UStride = aligned
	vf.Y = restride(packed[:ySize], rowBytes, aligned, h)
	vf.U = restride(packed[ySize:ySize+rowBytes*(h/2)], rowBytes, aligned, h/2)
	return vf, nil
}

// alignedStride rounds a row pitch up to 256 bytes.
func alignedStride(rowBytes int) int {
	return (rowBytes + 255) &^ 255
}

// restride copies tightly packed rows into a buffer with the given pitch.
func restride(src []byte, srcStride, dstStride, rows int) []byte {
	if srcStride == dstStride {
		out := make([]byte, len(src))
		copy(out, src)
		return out
	}
	out := make([]byte, dstStride*rows)
	for r := 0; r < rows; r++ {
		copy(out[r*dstStride:], src[r*srcStride:(r+1)*srcStride])
	}
	return out
}

func (d *astiavDecoder) freeScaler() {
	if d.swsDst != nil {
		d.swsDst.Free()
		d.swsDst = nil
	}
	if d.sws != nil {
		d.sws.Free()
		d.sws = nil
	}
}

func (d *astiavDecoder) freeContexts() {
	if d.ctx != nil {
		d.ctx.Free()
		d.ctx = nil
	}
	if d.hwDev != nil {
		d.hwDev.Free()
		d.hwDev = nil
	}
}

// Close releases every FFmpeg resource. Outstanding hardware surface handles
// stay valid; they hold their own frame references.
func (d *astiavDecoder) Close() {
	d.freeScaler()
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	if d.frame != nil {
		d.frame.Free()
		d.frame = nil
	}
	if d.swFrame != nil {
		d.swFrame.Free()
		d.swFrame = nil
	}
	d.freeContexts()
}
