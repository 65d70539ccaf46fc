package tilecache

import (
	"os"
	"time"

	"github.com/pkg/errors"
)

// TileAction labels a tile's position in the lifecycle state machine.
type TileAction int

const (
	// ActionAdded marks a tile just admitted, not yet resident.
	ActionAdded TileAction = iota
	// ActionAddedResident marks a tile admitted directly into memory.
	ActionAddedResident
	// ActionResident marks a tile promoted from disk back into memory.
	ActionResident
	// ActionAccessed marks a resident tile that was just read.
	ActionAccessed
	// ActionNonResident marks a tile evicted from memory (still on disk if
	// writable, otherwise lost).
	ActionNonResident
	// ActionRemoved marks a tile whose entries have been dropped entirely.
	ActionRemoved
)

func (a TileAction) String() string {
	switch a {
	case ActionAdded:
		return "ADDED"
	case ActionAddedResident:
		return "ADDED_RESIDENT"
	case ActionResident:
		return "RESIDENT"
	case ActionAccessed:
		return "ACCESSED"
	case ActionNonResident:
		return "NON_RESIDENT"
	case ActionRemoved:
		return "REMOVED"
	default:
		return "UNKNOWN"
	}
}

// diskBackedTile is the cache's internal per-tile record. It is never
// exposed directly to callers; TileSnapshot is the read-only view handed to
// observers and visitors.
type diskBackedTile struct {
	id       TileId
	owner    ImageIdentity
	tileX    int
	tileY    int
	size     int
	writable bool
	metric   interface{}

	diskFile   string // empty when no on-disk copy exists
	lastAccess time.Time
	action     TileAction

	dir string
	ser DiskSerializer
}

func newDiskBackedTile(id TileId, owner ImageIdentity, x, y int, payload RasterPayload, metric interface{}, dir string, ser DiskSerializer) *diskBackedTile {
	return &diskBackedTile{
		id:       id,
		owner:    owner,
		tileX:    x,
		tileY:    y,
		size:     payload.Size(),
		writable: payload.Writable(),
		metric:   metric,
		dir:      dir,
		ser:      ser,
	}
}

// writeData serializes payload to a new temporary file under the tile's
// directory, then atomically renames it into place, replacing any previous
// copy. It fails with ErrDiskCacheFailed on I/O error, and the previous
// on-disk copy (if any) is left intact.
func (t *diskBackedTile) writeData(payload RasterPayload) error {
	if t.ser == nil {
		return nil
	}

	path, err := t.ser.WriteTo(t.dir, t.id, payload)
	if err != nil {
		return errors.Wrapf(ErrDiskCacheFailed, "write tile %s: %v", t.id, err)
	}

	old := t.diskFile
	t.diskFile = path
	if old != "" && old != path {
		os.Remove(old)
	}
	return nil
}

// readData reads the payload from disk. It returns (nil, nil), a plain
// cache miss rather than an error, when the tile has no on-disk copy.
func (t *diskBackedTile) readData() (RasterPayload, error) {
	if t.diskFile == "" || t.ser == nil {
		return nil, nil
	}

	payload, err := t.ser.ReadFrom(t.diskFile)
	if err != nil {
		if os.IsNotExist(errors.Cause(err)) {
			t.diskFile = ""
			return nil, nil
		}
		return nil, errors.Wrapf(ErrDiskCacheFailed, "read tile %s: %v", t.id, err)
	}
	return payload, nil
}

// deleteDiskCopy best-effort removes the backing file and clears diskFile
// regardless of whether removal succeeded (the file may already be gone).
func (t *diskBackedTile) deleteDiskCopy() {
	if t.diskFile == "" {
		return
	}
	os.Remove(t.diskFile)
	t.diskFile = ""
}

func (t *diskBackedTile) setAction(a TileAction)     { t.action = a }
func (t *diskBackedTile) setLastAccess(ts time.Time) { t.lastAccess = ts }
func (t *diskBackedTile) hasDiskCopy() bool          { return t.diskFile != "" }

// TileSnapshot is the read-only view of a tile handed to observers and
// Accept visitors. It carries no reference back into the cache, so
// observers cannot mutate cache state through it.
type TileSnapshot struct {
	Id         TileId
	TileX      int
	TileY      int
	Size       int
	Writable   bool
	HasDisk    bool
	LastAccess time.Time
	Action     TileAction
}

func (t *diskBackedTile) snapshot() TileSnapshot {
	return TileSnapshot{
		Id:         t.id,
		TileX:      t.tileX,
		TileY:      t.tileY,
		Size:       t.size,
		Writable:   t.writable,
		HasDisk:    t.hasDiskCopy(),
		LastAccess: t.lastAccess,
		Action:     t.action,
	}
}
