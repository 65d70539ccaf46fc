package tilecache

import (
	"encoding/binary"
	"math/big"
)

// TileId uniquely identifies a tile within the cache. It is comparable and
// safe to use as a map key.
type TileId struct {
	// wide holds the big.Int-derived id as a decimal string when the owning
	// image exposed a WideID; narrow holds the packed 64-bit id otherwise.
	// Exactly one of the two is meaningful, distinguished by wide != "".
	wide   string
	narrow uint64
}

// idOf derives a TileId for (image, tileX, tileY). It is deterministic: the
// same (identity, x, y) triple always yields the same TileId, and distinct
// triples do not collide in practice.
//
// When the image exposes a WideID, the id is derived by concatenating the
// WideID's big-endian bytes with 8 bytes of the 64-bit tile index
// (tileY*numXTiles + tileX) and treating the result as a big integer. This
// branch is preferred whenever available, since it distinguishes images
// that happen to share a 32-bit ID. Otherwise the 32-bit image id is packed
// into the upper half and the 32-bit tile index into the lower half of a
// 64-bit integer.
func idOf(identity ImageIdentity, tileX, tileY, numXTiles int) TileId {
	tileIndex := uint64(tileY)*uint64(numXTiles) + uint64(tileX)

	if identity.WideID != nil {
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, tileIndex)

		concatenated := make([]byte, 0, len(identity.WideID)+len(buf))
		concatenated = append(concatenated, identity.WideID...)
		concatenated = append(concatenated, buf...)

		n := new(big.Int).SetBytes(concatenated)
		return TileId{wide: n.String()}
	}

	narrow := uint64(identity.ID32)<<32 | (tileIndex & 0xFFFFFFFF)
	return TileId{narrow: narrow}
}

// String returns a debug representation; it is not part of the identity
// contract and must not be used as a cache key substitute.
func (t TileId) String() string {
	if t.wide != "" {
		return t.wide
	}
	return big.NewInt(0).SetUint64(t.narrow).String()
}
