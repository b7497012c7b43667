package render

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/zortos293/OpenNOW-sub000/media"
)

type fakeSurface struct {
	id   uintptr
	kind media.SurfaceKind
	refs atomic.Int32
}

func newFakeSurface(id uintptr, kind media.SurfaceKind) *fakeSurface {
	s := &fakeSurface{id: id, kind: kind}
	s.refs.Store(1)
	return s
}

func (s *fakeSurface) Kind() media.SurfaceKind { return s.kind }
func (s *fakeSurface) SurfaceID() uintptr      { return s.id }
func (s *fakeSurface) ArrayIndex() int         { return 0 }
func (s *fakeSurface) Retain()                 { s.refs.Add(1) }
func (s *fakeSurface) Release()                { s.refs.Add(-1) }

type fakeImporter struct {
	supported media.SurfaceKind
	imports   int
	releases  int
	fail      bool
}

func (i *fakeImporter) Supports(kind media.SurfaceKind) bool { return kind == i.supported }

func (i *fakeImporter) Import(h media.GpuSurfaceHandle, f *media.VideoFrame) (*Texture, error) {
	i.imports++
	if i.fail {
		return nil, errors.New("interop unavailable")
	}
	return &Texture{SurfaceID: h.SurfaceID(), Width: f.Width, Height: f.Height, Format: f.Format}, nil
}

func (i *fakeImporter) Release(surfaceID uintptr) { i.releases++ }
func (i *fakeImporter) Close()                    {}

type fakePresenter struct {
	binds   int
	uploads int
	lastTex *Texture
	err     error
}

func (p *fakePresenter) BindTexture(t *Texture, _ ShaderParams) error {
	p.binds++
	p.lastTex = t
	return p.err
}

func (p *fakePresenter) UploadPlanes(f *media.VideoFrame, _ ShaderParams) error {
	p.uploads++
	return p.err
}

func gpuFrame(id uint64, s *fakeSurface) *media.VideoFrame {
	return &media.VideoFrame{
		FrameID: id,
		Width:   1920,
		Height:  1080,
		Format:  media.PixelFormatNV12,
		GPU:     s,
	}
}

func TestImportCacheReusesBindings(t *testing.T) {
	t.Parallel()

	imp := &fakeImporter{supported: media.SurfaceVAAPI}
	cache := NewImportCache(imp)
	defer cache.Close()

	s := newFakeSurface(7, media.SurfaceVAAPI)
	f1 := gpuFrame(1, s)
	f2 := gpuFrame(2, s)

	if _, err := cache.Import(f1); err != nil {
		t.Fatalf("first import: %v", err)
	}
	if _, err := cache.Import(f2); err != nil {
		t.Fatalf("second import: %v", err)
	}
	if imp.imports != 1 {
		t.Errorf("underlying imports = %d, want 1 for a recycled surface", imp.imports)
	}
	hits, misses := cache.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("cache stats = %d hits / %d misses, want 1/1", hits, misses)
	}
}

func TestImportCacheRetainsSurfaces(t *testing.T) {
	t.Parallel()

	imp := &fakeImporter{supported: media.SurfaceVAAPI}
	cache := NewImportCache(imp)

	s := newFakeSurface(3, media.SurfaceVAAPI)
	if _, err := cache.Import(gpuFrame(1, s)); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got := s.refs.Load(); got != 2 {
		t.Errorf("refs after import = %d, want 2 (caller + cache)", got)
	}

	cache.Invalidate()
	if got := s.refs.Load(); got != 1 {
		t.Errorf("refs after invalidate = %d, want 1", got)
	}
	if imp.releases != 1 {
		t.Errorf("importer releases = %d, want 1", imp.releases)
	}
}

func TestImportCacheEvictsOldestBinding(t *testing.T) {
	t.Parallel()

	imp := &fakeImporter{supported: media.SurfaceVAAPI}
	cache := NewImportCache(imp)
	defer cache.Close()

	first := newFakeSurface(1, media.SurfaceVAAPI)
	if _, err := cache.Import(gpuFrame(1, first)); err != nil {
		t.Fatalf("import: %v", err)
	}
	for i := 2; i <= maxCachedSurfaces+1; i++ {
		s := newFakeSurface(uintptr(i), media.SurfaceVAAPI)
		if _, err := cache.Import(gpuFrame(uint64(i), s)); err != nil {
			t.Fatalf("import %d: %v", i, err)
		}
	}

	// The oldest binding goes; its surface returns to the decoder pool.
	if imp.releases != 1 {
		t.Errorf("importer releases = %d, want 1", imp.releases)
	}
	if got := first.refs.Load(); got != 1 {
		t.Errorf("evicted surface refs = %d, want 1", got)
	}
}

func TestConsumerZeroCopyPath(t *testing.T) {
	t.Parallel()

	slot := media.NewFrameSlot()
	imp := &fakeImporter{supported: media.SurfaceVAAPI}
	pres := &fakePresenter{}
	c := NewConsumer(slot, NewImportCache(imp), pres)

	s := newFakeSurface(11, media.SurfaceVAAPI)
	slot.Write(gpuFrame(5, s))

	rendered, err := c.RenderNext()
	if err != nil || !rendered {
		t.Fatalf("RenderNext = %v, %v", rendered, err)
	}
	if pres.binds != 1 || pres.uploads != 0 {
		t.Errorf("binds=%d uploads=%d, want the surface path", pres.binds, pres.uploads)
	}
	if pres.lastTex.SurfaceID != 11 {
		t.Errorf("bound surface = %d, want 11", pres.lastTex.SurfaceID)
	}
	if c.LastFrameID() != 5 {
		t.Errorf("last frame ID = %d, want 5", c.LastFrameID())
	}
}

func TestConsumerCPUFallbackOnImportFailure(t *testing.T) {
	t.Parallel()

	slot := media.NewFrameSlot()
	imp := &fakeImporter{supported: media.SurfaceVAAPI, fail: true}
	pres := &fakePresenter{}
	c := NewConsumer(slot, NewImportCache(imp), pres)
	c.readback = func(h media.GpuSurfaceHandle) (*media.VideoFrame, error) {
		return &media.VideoFrame{
			FrameID: media.NextFrameID(),
			Width:   1920, Height: 1080,
			Format: media.PixelFormatNV12,
			Y:      make([]byte, 1920*1080),
		}, nil
	}

	slot.Write(gpuFrame(9, newFakeSurface(4, media.SurfaceVAAPI)))

	rendered, err := c.RenderNext()
	if err != nil || !rendered {
		t.Fatalf("RenderNext = %v, %v", rendered, err)
	}
	if pres.uploads != 1 || pres.binds != 0 {
		t.Errorf("binds=%d uploads=%d, want the readback path", pres.binds, pres.uploads)
	}
	_, _, fallbacks := c.Stats()
	if fallbacks != 1 {
		t.Errorf("fallbacks = %d, want 1", fallbacks)
	}
}

func TestConsumerCPUFrameUploads(t *testing.T) {
	t.Parallel()

	slot := media.NewFrameSlot()
	pres := &fakePresenter{}
	c := NewConsumer(slot, NewImportCache(&fakeImporter{supported: media.SurfaceVAAPI}), pres)

	slot.Write(&media.VideoFrame{
		FrameID: 2,
		Width:   1280, Height: 720,
		Format: media.PixelFormatYUV420P,
		Y:      make([]byte, 1280*720),
	})

	rendered, err := c.RenderNext()
	if err != nil || !rendered {
		t.Fatalf("RenderNext = %v, %v", rendered, err)
	}
	if pres.uploads != 1 {
		t.Errorf("uploads = %d, want 1", pres.uploads)
	}
}

func TestConsumerSkipsStaleFrames(t *testing.T) {
	t.Parallel()

	slot := media.NewFrameSlot()
	pres := &fakePresenter{}
	c := NewConsumer(slot, nil, pres)

	slot.Write(&media.VideoFrame{FrameID: 10, Width: 64, Height: 64})
	if rendered, _ := c.RenderNext(); !rendered {
		t.Fatal("fresh frame not rendered")
	}

	// A frame with an older ID must not be presented again.
	slot.Write(&media.VideoFrame{FrameID: 10, Width: 64, Height: 64})
	rendered, err := c.RenderNext()
	if err != nil {
		t.Fatalf("RenderNext: %v", err)
	}
	if rendered {
		t.Error("stale frame ID was rendered twice")
	}

	if rendered, _ := c.RenderNext(); rendered {
		t.Error("empty slot reported a rendered frame")
	}
}

func TestConsumerReleasesFrames(t *testing.T) {
	t.Parallel()

	slot := media.NewFrameSlot()
	imp := &fakeImporter{supported: media.SurfaceVAAPI}
	c := NewConsumer(slot, NewImportCache(imp), &fakePresenter{})

	s := newFakeSurface(21, media.SurfaceVAAPI)
	slot.Write(gpuFrame(1, s))
	if _, err := c.RenderNext(); err != nil {
		t.Fatalf("RenderNext: %v", err)
	}

	// The frame's own reference is dropped; only the cache's retain remains.
	if got := s.refs.Load(); got != 1 {
		t.Errorf("refs after render = %d, want 1 (cache only)", got)
	}
}
