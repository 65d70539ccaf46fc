package cache

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/waltercore/rastercache/pkg/tilecache"
)

// dateImage is the synthetic owner for PersistentTileCache: one per
// (provider, z, date) triple, so historical imagery at the same provider
// and zoom but different capture dates never collide. It uses the wide
// identity branch of TileId derivation (more entropy than 32 bits), since
// provider+zoom+date together don't fit comfortably in a uint32.
type dateImage struct {
	provider   string
	z          int
	date       string
	numX, numY int
}

func (d *dateImage) Identity() tilecache.ImageIdentity {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s/%d/%s", d.provider, d.z, d.date)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, h.Sum64())
	return tilecache.ImageIdentity{WideID: buf}
}

func (d *dateImage) MinTileX() int  { return 0 }
func (d *dateImage) MinTileY() int  { return 0 }
func (d *dateImage) NumXTiles() int { return d.numX }
func (d *dateImage) NumYTiles() int { return d.numY }

// ttlPayload carries a creation timestamp alongside the tile bytes, so TTL
// expiry survives a disk round trip without a separate metadata index.
type ttlPayload struct {
	data      []byte
	createdAt time.Time
}

func (p *ttlPayload) Size() int      { return len(p.data) }
func (p *ttlPayload) Writable() bool { return true }

// ttlSerializer spills a ttlPayload as an 8-byte big-endian UnixNano
// timestamp prefix followed by the raw tile bytes.
type ttlSerializer struct{}

func (ttlSerializer) WriteTo(dir string, id tilecache.TileId, payload tilecache.RasterPayload) (string, error) {
	p, ok := payload.(*ttlPayload)
	if !ok {
		return "", fmt.Errorf("cache: payload is not *cache.ttlPayload (%T)", payload)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("cache: create cache dir: %w", err)
	}

	buf := make([]byte, 8+len(p.data))
	binary.BigEndian.PutUint64(buf[:8], uint64(p.createdAt.UnixNano()))
	copy(buf[8:], p.data)

	tmp := filepath.Join(dir, id.String()+".tmp")
	final := filepath.Join(dir, id.String()+".tile")
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return "", fmt.Errorf("cache: write tile: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("cache: commit tile: %w", err)
	}
	return final, nil
}

func (ttlSerializer) ReadFrom(path string) (tilecache.RasterPayload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("cache: corrupt tile file %s", path)
	}
	ts := int64(binary.BigEndian.Uint64(data[:8]))
	return &ttlPayload{data: data[8:], createdAt: time.Unix(0, ts)}, nil
}

// PersistentTileCache is an OGC-ZXY-aware façade, like TileCache, that adds
// a date dimension for historical imagery and lazy TTL-based expiry on top
// of the core's memory/disk eviction.
type PersistentTileCache struct {
	core *tilecache.Cache
	ttl  time.Duration

	mu     sync.Mutex
	images map[string]*dateImage
}

// NewPersistentTileCache constructs a PersistentTileCache persisting
// spilled tiles under baseDir, with maxSizeMB as memory capacity and
// ttlDays as the expiry window (0 disables TTL expiry). The background
// auto-flush scheduler is enabled with a five-minute idle window, releasing
// resident tiles once the cache has gone quiet for that long.
func NewPersistentTileCache(baseDir string, maxSizeMB int, ttlDays int) (*PersistentTileCache, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: create cache directory: %w", err)
	}

	core := tilecache.New(tilecache.Options{
		MemCapacity:       int64(maxSizeMB) * 1024 * 1024,
		DiskCache:         true,
		Dir:               baseDir,
		Serializer:        ttlSerializer{},
		EnableAutoFlush:   true,
		AutoFlushInterval: 5 * time.Minute,
	})

	return &PersistentTileCache{
		core:   core,
		ttl:    time.Duration(ttlDays) * 24 * time.Hour,
		images: make(map[string]*dateImage),
	}, nil
}

// Core exposes the underlying tilecache.Cache, e.g. for internal/diagnostics.
func (c *PersistentTileCache) Core() *tilecache.Cache { return c.core }

func (c *PersistentTileCache) imageFor(provider string, z int, date string) *dateImage {
	key := fmt.Sprintf("%s/%d/%s", provider, z, date)

	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.images[key]; ok {
		return img
	}

	n := 1 << uint(z)
	img := &dateImage{provider: provider, z: z, date: date, numX: n, numY: n}
	c.images[key] = img
	return img
}

// Get retrieves a tile, treating one whose age exceeds the configured TTL
// as absent and evicting it eagerly rather than serving stale imagery.
func (c *PersistentTileCache) Get(provider string, z, x, y int, date string) ([]byte, bool) {
	img := c.imageFor(provider, z, date)
	payload, ok := c.core.GetTile(img, x, y)
	if !ok {
		return nil, false
	}

	tp := payload.(*ttlPayload)
	if c.ttl > 0 && time.Since(tp.createdAt) > c.ttl {
		c.core.Remove(img, x, y)
		return nil, false
	}
	return tp.data, true
}

// Set stores a tile using OGC ZXY structure plus an optional date for
// historical imagery.
func (c *PersistentTileCache) Set(provider string, z, x, y int, date string, data []byte) error {
	img := c.imageFor(provider, z, date)
	return c.core.Add(img, x, y, &ttlPayload{data: data, createdAt: time.Now()}, nil)
}

// Stats returns cache statistics.
func (c *PersistentTileCache) Stats() (entries int, sizeBytes int64, maxBytes int64) {
	return c.core.GetNumTiles(), c.core.GetCurrentMemory(), c.core.GetMemoryCapacity()
}

// Clear removes all cached tiles, memory and disk alike.
func (c *PersistentTileCache) Clear() error {
	c.core.Flush()
	return nil
}

// Close flushes the cache and stops its background workers, including the
// auto-flush scheduler.
func (c *PersistentTileCache) Close() {
	c.core.Close()
}
