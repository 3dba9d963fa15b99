package rc

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/sjoeen/rcsim/memutils"
)

const (
	// PayloadAlignment is the granularity block payloads are rounded up to
	PayloadAlignment uint = 8
	// MaxBlockSize is the largest payload a single block may hold
	MaxBlockSize = 1 << 30
)

// blockBookkeepingBytes is charged against the arena budget for every live block, in addition
// to its payload
var blockBookkeepingBytes = int(unsafe.Sizeof(block{}))

type block struct {
	handle   Handle
	refCount int
	size     int
	payload  []byte
}

func (b *block) init(handle Handle, size int) {
	if b.payload != nil {
		panic("attempting to initialize a block that is already in use")
	}

	b.handle = handle
	b.refCount = 1
	b.size = size
	b.payload = make([]byte, memutils.AlignUp(size, PayloadAlignment))
}

func (b *block) footprint() int {
	return len(b.payload) + blockBookkeepingBytes
}

func (b *block) data() []byte {
	return b.payload[:b.size:b.size]
}

// free drops the payload. The block must not be used again afterwards.
func (b *block) free() {
	if b.refCount != 0 {
		panic("attempting to free a block with outstanding references")
	}

	memutils.PoisonPayload(b.payload)
	b.payload = nil
}

func (b *block) Validate() error {
	if b.handle == NoHandle {
		return errors.New("live block has no handle")
	}
	if b.refCount < 1 {
		return errors.Errorf("live block %s has reference count %d", b.handle, b.refCount)
	}
	if b.payload == nil {
		return errors.Errorf("live block %s has no payload", b.handle)
	}
	if b.size < 1 || b.size > len(b.payload) {
		return errors.Errorf("live block %s has size %d but a payload of %d bytes", b.handle, b.size, len(b.payload))
	}
	if len(b.payload)%int(PayloadAlignment) != 0 {
		return errors.Errorf("live block %s has a payload of %d bytes, which is not aligned to %d", b.handle, len(b.payload), PayloadAlignment)
	}

	return nil
}
