package rc

import "strconv"

// Handle identifies a block within the Arena that issued it. Any number of Handle values may alias
// the same block; each one obtained from Allocate or Share must be passed to Release exactly once.
//
// Handles are never reused by an Arena, so a handle whose block has been freed stays invalid forever
// instead of silently aliasing a newer block.
type Handle uint64

const (
	// NoHandle is the null handle. Release accepts it as a no-op, every other operation rejects it.
	NoHandle Handle = 0
)

func (h Handle) String() string {
	if h == NoHandle {
		return "NoHandle"
	}
	return "#" + strconv.FormatUint(uint64(h), 10)
}
