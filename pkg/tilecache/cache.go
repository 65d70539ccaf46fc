package tilecache

import (
	"log"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Cache is the public façade: a two-tier (memory + disk) cache of tiles
// belonging to RenderedImages. All exported mutating and reading methods
// acquire a single exclusive lock for the duration of the call.
type Cache struct {
	mu sync.Mutex

	tiles    map[TileId]*diskBackedTile
	resident map[TileId]RasterPayload

	memCapacity  int64
	curMemory    int64
	memThreshold float64

	policy PriorityPolicy
	evict  evictionEngine

	dir            string
	serializer     DiskSerializer
	logger         Logger
	clock          Clock
	diskCacheOnAdd bool

	observerRegistry

	flusher *autoFlushScheduler
}

// New constructs a Cache from Options. The returned Cache owns every disk
// file it creates under opts.Dir and deletes them on Remove/Flush/Close.
func New(opts Options) *Cache {
	opts = opts.normalized()

	dir := opts.Dir
	if dir == "" {
		dir = os.TempDir()
	}

	c := &Cache{
		tiles:        make(map[TileId]*diskBackedTile),
		resident:     make(map[TileId]RasterPayload),
		memCapacity:  opts.MemCapacity,
		memThreshold: opts.MemThreshold,
		policy:       DefaultPolicy(),
		dir:          dir,
		serializer:   opts.Serializer,
		logger:       opts.Logger,
		clock:        opts.Clock,
	}
	c.evict = evictionEngine{c: c}

	c.diskCacheOnAdd = opts.DiskCache
	if opts.EnableAutoFlush {
		c.EnableAutoFlush(opts.AutoFlushInterval)
	}
	return c
}

func (c *Cache) log(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Add registers a new tile for owner at (x,y) holding payload. It is a
// no-op if a tile with the same id is already present. When diskCacheOnAdd
// is set, the payload is written through to disk before Add returns;
// write-through I/O failures are logged, not returned, since Add's
// signature predates checked errors.
func (c *Cache) Add(owner RenderedImage, x, y int, payload RasterPayload, metric interface{}) error {
	if owner == nil || payload == nil {
		return errors.Wrap(ErrInvalidArgument, "Add: owner and payload must be non-nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := idOf(owner.Identity(), x, y, owner.NumXTiles())
	if _, exists := c.tiles[id]; exists {
		return nil
	}

	tile := newDiskBackedTile(id, owner.Identity(), x, y, payload, metric, c.dir, c.serializer)
	tile.setLastAccess(c.clock.Now())
	c.tiles[id] = tile

	if c.diskCacheOnAdd {
		if err := tile.writeData(payload); err != nil {
			c.log("tilecache: write-through failed for tile %s: %v", id, err)
		}
	}

	if c.admit(tile, payload) {
		tile.setAction(ActionAddedResident)
	} else {
		if !c.diskCacheOnAdd {
			if err := tile.writeData(payload); err != nil {
				c.log("tilecache: write-through failed for tile %s: %v", id, err)
			}
		}
		tile.setAction(ActionAdded)
	}
	c.notify(tile)
	c.touch()
	return nil
}

// admit decides whether tile can join the resident set, evicting via the
// policy if needed to make room. Caller must hold c.mu.
func (c *Cache) admit(tile *diskBackedTile, payload RasterPayload) bool {
	size := int64(tile.size)
	if size > c.memCapacity {
		return false
	}

	if size > c.memCapacity-c.curMemory {
		c.evict.memoryControl()
		if size > c.memCapacity-c.curMemory {
			if err := c.evict.makeRoom(size); err != nil {
				return false
			}
		}
	}

	c.resident[tile.id] = payload
	c.curMemory += size
	return true
}

// Remove drops the tile for owner at (x,y), if any. It deletes the disk
// copy and removes both table entries; it is a no-op if the tile is
// absent.
func (c *Cache) Remove(owner RenderedImage, x, y int) {
	if owner == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := idOf(owner.Identity(), x, y, owner.NumXTiles())
	c.removeLocked(id)
}

func (c *Cache) removeLocked(id TileId) {
	tile, ok := c.tiles[id]
	if !ok {
		return
	}

	if _, resident := c.resident[id]; resident {
		c.curMemory -= int64(tile.size)
		delete(c.resident, id)
	}
	tile.deleteDiskCopy()
	delete(c.tiles, id)
	tile.setAction(ActionRemoved)
	c.notify(tile)
}

// GetTile returns the payload for owner at (x,y). If the tile is resident,
// its access time is updated. If it is non-resident, GetTile reads it from
// disk and promotes it via admit; a missing disk copy is a plain cache
// miss (ok=false, not an error).
func (c *Cache) GetTile(owner RenderedImage, x, y int) (payload RasterPayload, ok bool) {
	if owner == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := idOf(owner.Identity(), x, y, owner.NumXTiles())
	tile, exists := c.tiles[id]
	if !exists {
		return nil, false
	}

	if p, resident := c.resident[id]; resident {
		tile.setLastAccess(c.clock.Now())
		tile.setAction(ActionAccessed)
		c.notify(tile)
		c.touch()
		return p, true
	}

	read, err := tile.readData()
	if err != nil {
		c.log("tilecache: read failed for tile %s: %v", id, err)
		return nil, false
	}
	if read == nil {
		return nil, false
	}

	tile.setLastAccess(c.clock.Now())
	if c.admit(tile, read) {
		tile.setAction(ActionResident)
	}
	c.notify(tile)
	c.touch()
	return read, true
}

// GetTiles returns every known tile belonging to owner, reading spilled
// tiles from disk as needed.
func (c *Cache) GetTiles(owner RenderedImage) map[[2]int]RasterPayload {
	result := make(map[[2]int]RasterPayload)
	minX, minY := owner.MinTileX(), owner.MinTileY()
	for y := minY; y < minY+owner.NumYTiles(); y++ {
		for x := minX; x < minX+owner.NumXTiles(); x++ {
			if p, ok := c.GetTile(owner, x, y); ok {
				result[[2]int{x, y}] = p
			}
		}
	}
	return result
}

// AddTiles is a thin loop over Add for a batch of (points[i], payloads[i])
// pairs. It fails with ErrInvalidArgument if the two slices differ in
// length, before making any change.
func (c *Cache) AddTiles(owner RenderedImage, points [][2]int, payloads []RasterPayload, metrics []interface{}) error {
	if len(points) != len(payloads) {
		return errors.Wrap(ErrInvalidArgument, "AddTiles: points and payloads length mismatch")
	}
	if metrics != nil && len(metrics) != len(points) {
		return errors.Wrap(ErrInvalidArgument, "AddTiles: points and metrics length mismatch")
	}

	pairs := lo.Zip2(points, payloads)
	for i, pair := range pairs {
		var metric interface{}
		if metrics != nil {
			metric = metrics[i]
		}
		if err := c.Add(owner, pair.A[0], pair.A[1], pair.B, metric); err != nil {
			return err
		}
	}
	return nil
}

// GetTilesAt is a thin loop over GetTile for an explicit list of points,
// rather than the full owner grid. It returns no error; points that miss
// are absent from the result, and an empty points slice returns an empty
// map.
func (c *Cache) GetTilesAt(owner RenderedImage, points [][2]int) map[[2]int]RasterPayload {
	result := make(map[[2]int]RasterPayload, len(points))
	for _, pt := range points {
		if p, ok := c.GetTile(owner, pt[0], pt[1]); ok {
			result[pt] = p
		}
	}
	return result
}

// RemoveTiles loops Remove over owner's entire tile grid.
func (c *Cache) RemoveTiles(owner RenderedImage) {
	minX, minY := owner.MinTileX(), owner.MinTileY()
	for y := minY; y < minY+owner.NumYTiles(); y++ {
		for x := minX; x < minX+owner.NumXTiles(); x++ {
			c.Remove(owner, x, y)
		}
	}
}

// RemoveNullTiles removes every tile whose owner identity is no longer
// registered as live, per the provided liveness check. Since Go has no
// weak references, callers supply isLive(identity) themselves (e.g. backed
// by their own image registry).
func (c *Cache) RemoveNullTiles(isLive func(ImageIdentity) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var dead []TileId
	for id, tile := range c.tiles {
		if !isLive(tile.owner) {
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		c.removeLocked(id)
	}
}

// Flush evicts all resident tiles without write-back, deletes every disk
// copy, and clears both tables.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

func (c *Cache) flushLocked() {
	for id, tile := range c.tiles {
		tile.deleteDiskCopy()
		tile.setAction(ActionRemoved)
		c.notify(tile)
		delete(c.tiles, id)
	}
	c.resident = make(map[TileId]RasterPayload)
	c.curMemory = 0
}

// FlushMemory empties the resident table without touching disk files.
func (c *Cache) FlushMemory() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushMemoryLocked()
}

func (c *Cache) flushMemoryLocked() {
	for id := range c.resident {
		if tile, ok := c.tiles[id]; ok {
			tile.setAction(ActionNonResident)
			c.notify(tile)
		}
	}
	c.resident = make(map[TileId]RasterPayload)
	c.curMemory = 0
}

// SetMemoryCapacity changes memCapacity. If the new capacity is below
// curMemory, tiles are evicted (with write-back) until curMemory fits. A
// capacity of 0 is equivalent to FlushMemory plus disabling admission
// until capacity is raised again.
func (c *Cache) SetMemoryCapacity(n int64) error {
	if n < 0 {
		return errors.Wrap(ErrInvalidArgument, "SetMemoryCapacity: capacity must be >= 0")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.memCapacity = n
	if n == 0 {
		c.flushMemoryLocked()
		return nil
	}
	if c.curMemory > n {
		c.evict.evictUntil(func() bool { return c.curMemory <= n })
	}
	return nil
}

// SetMemoryThreshold sets memThreshold, clamped to [0,1], and triggers
// memoryControl.
func (c *Cache) SetMemoryThreshold(f float64) {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memThreshold = f
	c.evict.memoryControl()
}

// SetTileComparator replaces the PriorityPolicy. A nil cmp resets to the
// default policy. The resident list is conceptually rebuilt from exactly
// the current resident set, not from every known tile, which would break
// the eviction loop's resident-only invariant.
func (c *Cache) SetTileComparator(cmp PriorityPolicy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cmp == nil {
		cmp = DefaultPolicy()
	}
	c.policy = cmp
}

// SetTileChanged re-serializes the current payload of a resident tile that
// already had a disk copy. It fails with ErrTileNotResident if the tile is
// not currently resident, and surfaces ErrDiskCacheFailed synchronously
// (unlike Add/Remove, which only log I/O failures).
func (c *Cache) SetTileChanged(owner RenderedImage, x, y int) error {
	if owner == nil {
		return errors.Wrap(ErrInvalidArgument, "SetTileChanged: owner must be non-nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	id := idOf(owner.Identity(), x, y, owner.NumXTiles())
	tile, ok := c.tiles[id]
	if !ok {
		return errors.Wrap(ErrTileNotResident, "SetTileChanged: unknown tile")
	}
	payload, resident := c.resident[id]
	if !resident {
		return errors.Wrap(ErrTileNotResident, "SetTileChanged: tile not resident")
	}
	if !tile.hasDiskCopy() {
		return nil
	}
	if err := tile.writeData(payload); err != nil {
		return err
	}
	return nil
}

// ContainsTile reports whether the cache knows about the tile at all
// (resident or on disk).
func (c *Cache) ContainsTile(owner RenderedImage, x, y int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := idOf(owner.Identity(), x, y, owner.NumXTiles())
	_, ok := c.tiles[id]
	return ok
}

// ContainsResidentTile reports whether the tile is currently resident.
func (c *Cache) ContainsResidentTile(owner RenderedImage, x, y int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := idOf(owner.Identity(), x, y, owner.NumXTiles())
	_, ok := c.resident[id]
	return ok
}

func (c *Cache) GetNumTiles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tiles)
}

func (c *Cache) GetNumResidentTiles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resident)
}

func (c *Cache) GetMemoryCapacity() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memCapacity
}

func (c *Cache) GetCurrentMemory() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curMemory
}

func (c *Cache) GetMemoryThreshold() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memThreshold
}

func (c *Cache) GetTileComparator() PriorityPolicy {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy
}

// TileVisitor is invoked once per known tile by Accept, under the cache
// lock.
type TileVisitor interface {
	Visit(tile TileSnapshot, isResident bool)
}

// TileVisitorFunc adapts a function to a TileVisitor.
type TileVisitorFunc func(tile TileSnapshot, isResident bool)

func (f TileVisitorFunc) Visit(tile TileSnapshot, isResident bool) { f(tile, isResident) }

// Accept invokes visitor.Visit once per known tile, under the cache lock.
func (c *Cache) Accept(visitor TileVisitor) error {
	if visitor == nil {
		return errors.Wrap(ErrInvalidArgument, "Accept: visitor must be non-nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, tile := range c.tiles {
		_, resident := c.resident[id]
		visitor.Visit(tile.snapshot(), resident)
	}
	return nil
}

// SetDiagnostics enables or disables observer notifications.
func (c *Cache) SetDiagnostics(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setDiagnostics(enabled)
}

// Subscribe registers an observer and returns an id for later Unsubscribe.
// Observers must not call back into this Cache from OnTileEvent.
func (c *Cache) Subscribe(o CacheObserver) SubscriptionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribe(o)
}

// Unsubscribe removes a previously registered observer. It is a no-op if
// id is unknown or was already removed.
func (c *Cache) Unsubscribe(id SubscriptionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubscribe(id)
}

func (c *Cache) notify(tile *diskBackedTile) {
	c.observerRegistry.notify(TileEvent{Tile: tile.snapshot()})
}

// Close cancels the auto-flush scheduler (if running) and flushes the
// cache on a best-effort basis, mirroring a finalizer/destructor in the
// original design.
func (c *Cache) Close() {
	c.DisableAutoFlush()
	c.Flush()
}
