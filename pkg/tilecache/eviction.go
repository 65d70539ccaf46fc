package tilecache

import (
	"github.com/pkg/errors"
)

// evictionEngine enforces memCapacity/memThreshold by evicting resident
// tiles in PriorityPolicy order. It operates directly on the owning Cache's
// state and must only ever be called while the cache lock is held.
type evictionEngine struct {
	c *Cache
}

// memoryControl trims curMemory down to at most memThreshold*memCapacity.
func (e *evictionEngine) memoryControl() {
	target := int64(float64(e.c.memCapacity) * e.c.memThreshold)
	e.evictUntil(func() bool { return e.c.curMemory <= target })
}

// makeRoom evicts until memCapacity-curMemory >= required. It fails with
// ErrCapacityTooSmall if required alone exceeds the total capacity; admit()
// checks this ahead of time, so callers reaching this error indicates
// internal misuse.
func (e *evictionEngine) makeRoom(required int64) error {
	if required > e.c.memCapacity {
		return errors.Wrapf(ErrCapacityTooSmall, "requested %d, capacity %d", required, e.c.memCapacity)
	}
	e.evictUntil(func() bool { return e.c.memCapacity-e.c.curMemory >= required })
	return nil
}

// evictUntil sorts the resident set by the current PriorityPolicy and
// evicts from the low-priority end until satisfied() reports true or the
// resident set is exhausted.
func (e *evictionEngine) evictUntil(satisfied func() bool) {
	if satisfied() {
		return
	}

	residents := make([]*diskBackedTile, 0, len(e.c.resident))
	for id := range e.c.resident {
		residents = append(residents, e.c.tiles[id])
	}
	e.c.policy.Sort(residents)

	for i := len(residents) - 1; i >= 0 && !satisfied(); i-- {
		e.evictOne(residents[i])
	}
}

// evictOne drops a single tile from memory, writing its payload back to
// disk first if the tile is writable. A write-back failure is logged and
// the loop continues with the next victim, since eviction must make
// progress even when disk I/O is failing for one tile.
func (e *evictionEngine) evictOne(tile *diskBackedTile) {
	payload, ok := e.c.resident[tile.id]
	if !ok {
		return
	}

	delete(e.c.resident, tile.id)
	e.c.curMemory -= int64(tile.size)

	if tile.writable {
		if err := tile.writeData(payload); err != nil {
			e.c.log("tilecache: write-back failed for tile %s: %v", tile.id, err)
		}
	}

	tile.setAction(ActionNonResident)
	e.c.notify(tile)
}
