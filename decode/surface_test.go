package decode

import (
	"testing"

	"github.com/asticode/go-astiav"

	"github.com/zortos293/OpenNOW-sub000/media"
)

func bufferedFrame(t *testing.T) *astiav.Frame {
	t.Helper()
	f := astiav.AllocFrame()
	t.Cleanup(f.Free)
	f.SetWidth(64)
	f.SetHeight(64)
	f.SetPixelFormat(astiav.PixelFormatNv12)
	if err := f.AllocBuffer(1); err != nil {
		t.Fatalf("allocating frame buffer: %v", err)
	}
	return f
}

func TestSurfaceIdentityStableAcrossReferences(t *testing.T) {
	t.Parallel()

	f := bufferedFrame(t)
	r1 := astiav.AllocFrame()
	t.Cleanup(r1.Free)
	r2 := astiav.AllocFrame()
	t.Cleanup(r2.Free)
	if err := r1.Ref(f); err != nil {
		t.Fatalf("first reference: %v", err)
	}
	if err := r2.Ref(f); err != nil {
		t.Fatalf("second reference: %v", err)
	}

	id1, _ := surfaceIdentity(media.SurfaceCUDA, r1)
	id2, _ := surfaceIdentity(media.SurfaceCUDA, r2)
	if id1 == 0 {
		t.Fatal("identity is zero for a buffered frame")
	}
	if id1 != id2 {
		t.Errorf("references to one surface got identities %#x and %#x", id1, id2)
	}

	other, _ := surfaceIdentity(media.SurfaceCUDA, bufferedFrame(t))
	if other == id1 {
		t.Errorf("distinct surfaces share identity %#x", other)
	}
}

func TestGenericDecoderResolution(t *testing.T) {
	t.Parallel()

	if got := codecID(CodecH264); got != astiav.CodecIDH264 {
		t.Errorf("codecID(h264) = %v", got)
	}
	if got := codecID(CodecHEVC); got != astiav.CodecIDHevc {
		t.Errorf("codecID(hevc) = %v", got)
	}
	// AV1 has no codec ID in these bindings; lookup runs by decoder name
	// with dav1d preferred.
	if len(av1DecoderNames) == 0 || av1DecoderNames[0] != "libdav1d" {
		t.Errorf("AV1 decoder preference order = %v", av1DecoderNames)
	}
}
