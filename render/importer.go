package render

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/zortos293/OpenNOW-sub000/media"
)

// Texture describes one imported video frame on the GPU side. For zero-copy
// frames Native carries the platform binding (EGLImage, ID3D11Texture2D,
// CVMetalTextureRef); the window layer turns it into shader resource views.
type Texture struct {
	SurfaceID  uintptr
	ArrayIndex int
	Width      int
	Height     int
	Format     media.PixelFormat

	// Native is the platform-specific GPU object produced by the importer.
	Native any
}

// Importer turns decoder-owned GPU surfaces into renderer textures without
// copying pixel data. Implementations are platform and surface-kind specific.
type Importer interface {
	// Supports reports whether this importer can bind the surface kind.
	Supports(kind media.SurfaceKind) bool

	// Import binds one surface. The returned texture stays valid until
	// Release is called with its SurfaceID.
	Import(h media.GpuSurfaceHandle, f *media.VideoFrame) (*Texture, error)

	// Release drops the platform binding for a surface.
	Release(surfaceID uintptr)

	Close()
}

// maxCachedSurfaces bounds the binding cache. Decoder pools top out at 32
// surfaces; a cache past this size is tracking surfaces from a reallocated
// pool and the stale bindings must be let go.
const maxCachedSurfaces = 64

// ImportCache wraps an Importer and reuses bindings across frames. Decoders
// recycle surfaces from a fixed pool, so after the first lap around the pool
// every import is a map hit.
type ImportCache struct {
	log *slog.Logger
	imp Importer

	mu    sync.Mutex
	cache map[uintptr]*cachedTexture
	tick  uint64

	hits   uint64
	misses uint64
}

type cachedTexture struct {
	tex     *Texture
	handle  media.GpuSurfaceHandle
	lastUse uint64
}

func NewImportCache(imp Importer) *ImportCache {
	return &ImportCache{
		log:   slog.With("component", "render"),
		imp:   imp,
		cache: make(map[uintptr]*cachedTexture),
	}
}

// Import returns the cached texture for the frame's surface, binding it on
// first sight. The cache retains the handle so the decoder cannot recycle
// the surface while a binding still points at it.
func (c *ImportCache) Import(f *media.VideoFrame) (*Texture, error) {
	h := f.GPU
	if h == nil {
		return nil, fmt.Errorf("frame %d has no GPU surface", f.FrameID)
	}
	if !c.imp.Supports(h.Kind()) {
		return nil, fmt.Errorf("surface kind %d not importable on this platform", h.Kind())
	}

	c.mu.Lock()
	c.tick++
	if ct, ok := c.cache[h.SurfaceID()]; ok {
		ct.lastUse = c.tick
		c.hits++
		c.mu.Unlock()
		return ct.tex, nil
	}
	c.misses++
	c.mu.Unlock()

	tex, err := c.imp.Import(h, f)
	if err != nil {
		return nil, err
	}
	h.Retain()

	c.mu.Lock()
	c.tick++
	c.cache[h.SurfaceID()] = &cachedTexture{tex: tex, handle: h, lastUse: c.tick}
	var evictID uintptr
	var evict *cachedTexture
	if len(c.cache) > maxCachedSurfaces {
		oldest := c.tick
		for id, ct := range c.cache {
			if ct.lastUse < oldest {
				oldest = ct.lastUse
				evictID, evict = id, ct
			}
		}
		delete(c.cache, evictID)
	}
	c.mu.Unlock()

	if evict != nil {
		c.imp.Release(evictID)
		evict.handle.Release()
		c.log.Debug("evicted stale surface binding", "surface_id", evictID)
	}

	c.log.Debug("imported surface", "surface_id", h.SurfaceID(), "kind", h.Kind())
	return tex, nil
}

// Stats returns cache hit and miss counts.
func (c *ImportCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// Invalidate drops all bindings. Called when the decoder is torn down or
// the stream resolution changes and the surface pool is reallocated.
func (c *ImportCache) Invalidate() {
	c.mu.Lock()
	old := c.cache
	c.cache = make(map[uintptr]*cachedTexture)
	c.mu.Unlock()

	for id, ct := range old {
		c.imp.Release(id)
		ct.handle.Release()
	}
}

// Close invalidates the cache and closes the underlying importer.
func (c *ImportCache) Close() {
	c.Invalidate()
	c.imp.Close()
}
