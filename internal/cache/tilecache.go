// Package cache adapts pkg/tilecache's (owner, x, y) core API to the
// OGC {provider}/{z}/{x}/{y} tile addressing scheme applications actually
// call with, instead of reimplementing eviction independently.
package cache

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"

	"github.com/waltercore/rastercache/pkg/tilecache"
)

// providerImage is the synthetic tilecache.RenderedImage the adapter
// registers one of per (provider, z) pair: tiles at the same zoom level of
// the same provider share an owner and thus a tile grid, keeping the key
// space exactly as large as the OGC {provider}/{z}/{x}/{y} layout it
// replaces.
type providerImage struct {
	provider   string
	z          int
	numX, numY int
}

func (p *providerImage) Identity() tilecache.ImageIdentity {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s/%d", p.provider, p.z)
	return tilecache.ImageIdentity{ID32: h.Sum32()}
}

func (p *providerImage) MinTileX() int  { return 0 }
func (p *providerImage) MinTileY() int  { return 0 }
func (p *providerImage) NumXTiles() int { return p.numX }
func (p *providerImage) NumYTiles() int { return p.numY }

// bytesPayload is a tilecache.RasterPayload wrapping an already-encoded
// tile image (JPEG/PNG/etc.); the cache treats it as an opaque blob.
type bytesPayload struct {
	data []byte
}

func (p *bytesPayload) Size() int      { return len(p.data) }
func (p *bytesPayload) Writable() bool { return true }

// rawSerializer is a tilecache.DiskSerializer that spills bytesPayload
// verbatim to disk: write to a temp file, then rename into place, matching
// the write-then-rename discipline used throughout this repository.
type rawSerializer struct{}

func (rawSerializer) WriteTo(dir string, id tilecache.TileId, payload tilecache.RasterPayload) (string, error) {
	p, ok := payload.(*bytesPayload)
	if !ok {
		return "", fmt.Errorf("cache: payload is not *cache.bytesPayload (%T)", payload)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: create cache dir: %w", err)
	}

	tmp := filepath.Join(dir, id.String()+".tmp")
	final := filepath.Join(dir, id.String()+".tile")
	if err := os.WriteFile(tmp, p.data, 0o644); err != nil {
		return "", fmt.Errorf("cache: write tile: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("cache: commit tile: %w", err)
	}
	return final, nil
}

func (rawSerializer) ReadFrom(path string) (tilecache.RasterPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &bytesPayload{data: data}, nil
}

// TileCache is an OGC-ZXY-aware façade over a single pkg/tilecache.Cache.
type TileCache struct {
	core *tilecache.Cache

	mu     sync.Mutex
	images map[string]*providerImage
}

// NewTileCache constructs a TileCache persisting spilled tiles under
// baseDir, with maxSizeMB as the memory capacity.
func NewTileCache(baseDir string, maxSizeMB int) (*TileCache, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache directory: %w", err)
	}

	core := tilecache.New(tilecache.Options{
		MemCapacity: int64(maxSizeMB) * 1024 * 1024,
		DiskCache:   true,
		Dir:         baseDir,
		Serializer:  rawSerializer{},
	})

	return &TileCache{core: core, images: make(map[string]*providerImage)}, nil
}

// Core exposes the underlying tilecache.Cache, e.g. for internal/diagnostics.
func (c *TileCache) Core() *tilecache.Cache { return c.core }

func (c *TileCache) imageFor(provider string, z int) *providerImage {
	key := fmt.Sprintf("%s/%d", provider, z)

	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.images[key]; ok {
		return img
	}

	n := 1 << uint(z)
	img := &providerImage{provider: provider, z: z, numX: n, numY: n}
	c.images[key] = img
	return img
}

// Get retrieves a tile from cache.
func (c *TileCache) Get(provider string, z, x, y int) ([]byte, bool) {
	img := c.imageFor(provider, z)
	payload, ok := c.core.GetTile(img, x, y)
	if !ok {
		return nil, false
	}
	return payload.(*bytesPayload).data, true
}

// Set stores a tile in cache.
func (c *TileCache) Set(provider string, z, x, y int, data []byte) error {
	img := c.imageFor(provider, z)
	return c.core.Add(img, x, y, &bytesPayload{data: data}, nil)
}

// Stats returns cache statistics.
func (c *TileCache) Stats() (entries int, sizeBytes int64, maxBytes int64) {
	return c.core.GetNumTiles(), c.core.GetCurrentMemory(), c.core.GetMemoryCapacity()
}

// Clear removes all cached tiles, memory and disk alike.
func (c *TileCache) Clear() error {
	c.core.Flush()
	return nil
}

// Close flushes the cache and stops its background workers.
func (c *TileCache) Close() {
	c.core.Close()
}
