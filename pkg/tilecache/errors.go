package tilecache

import "github.com/pkg/errors"

// Sentinel errors for the cache's error taxonomy. Use errors.Is to test for
// these even after a call to errors.Wrap has attached path/context info.
var (
	// ErrInvalidArgument signals a null image, negative capacity, or
	// mismatched array lengths passed to a public operation.
	ErrInvalidArgument = errors.New("tilecache: invalid argument")

	// ErrTileNotResident is returned by SetTileChanged when the named tile
	// is not currently resident.
	ErrTileNotResident = errors.New("tilecache: tile not resident")

	// ErrDiskCacheFailed wraps an I/O failure reading or writing a tile
	// payload. It is returned synchronously from SetTileChanged and logged
	// (not returned) from Add, Remove, memoryControl, and
	// SetMemoryCapacity, whose signatures predate checked errors.
	ErrDiskCacheFailed = errors.New("tilecache: disk cache operation failed")

	// ErrCapacityTooSmall is returned by makeRoom when asked to free more
	// than the cache's total memory capacity. admit() checks this case
	// before calling makeRoom, so in practice this only guards against
	// internal misuse of makeRoom directly.
	ErrCapacityTooSmall = errors.New("tilecache: requested room exceeds memory capacity")
)
