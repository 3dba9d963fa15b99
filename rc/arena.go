// Package rc provides a reference-counted arena. Callers allocate blocks, hand out additional
// references with Share, and give every reference back with Release. A block's payload is freed
// synchronously by the Release that drops its count to zero.
//
// Handles carry no count of their own: the arena recovers the count and payload of a block from
// the handle alone, so callers can build graphs of shared snapshots without tracking counts.
//
// Sharing or releasing a block that is no longer live is a programming error. The arena reports
// it as an assertion failure carrying memutils.ErrInvalidHandle instead of corrupting the count.
// Release(NoHandle) is the one tolerated case and does nothing.
package rc

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/sjoeen/rcsim/internal/utils"
	"github.com/sjoeen/rcsim/memutils"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// Arena tracks the reference counts of the blocks it allocates. An Arena and the blocks inside it
// are synchronized internally unless it was created with ArenaCreateExternallySynchronized.
type Arena struct {
	name        string
	logger      *slog.Logger
	createFlags CreateFlags
	mutex       utils.OptionalRWMutex

	maxBytes   int
	usedBytes  int
	nextHandle Handle
	destroyed  bool

	blocks *swiss.Map[Handle, *block]
}

func (a *Arena) Name() string { return a.name }

// Allocate reserves a zeroed payload of size bytes and returns a handle to it with a reference
// count of 1. The handle must eventually be passed to Release.
//
// If the arena's byte limit cannot accommodate the block, or size exceeds MaxBlockSize, Allocate
// returns an error wrapping memutils.ErrOutOfMemory and no block is created.
func (a *Arena) Allocate(size int) (Handle, error) {
	a.logger.Debug("Arena::Allocate")

	if size <= 0 {
		return NoHandle, errors.Wrapf(memutils.ErrInvalidSize, "arena %q was asked for %d bytes", a.name, size)
	}

	handle, err := a.allocate(size)
	if err != nil {
		return NoHandle, err
	}

	memutils.DebugValidate(a)
	return handle, nil
}

func (a *Arena) allocate(size int) (Handle, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return NoHandle, errors.WithAssertionFailure(errors.Wrapf(memutils.ErrArenaDestroyed, "cannot allocate from arena %q", a.name))
	}

	if size > MaxBlockSize {
		return NoHandle, errors.Wrapf(memutils.ErrOutOfMemory,
			"arena %q cannot fit a %d byte block: blocks are limited to %d bytes", a.name, size, MaxBlockSize)
	}

	footprint := memutils.AlignUp(size, PayloadAlignment) + blockBookkeepingBytes
	if a.maxBytes > 0 && footprint > a.maxBytes-a.usedBytes {
		return NoHandle, errors.Wrapf(memutils.ErrOutOfMemory,
			"arena %q cannot fit a %d byte block: %d of %d bytes in use", a.name, footprint, a.usedBytes, a.maxBytes)
	}

	a.nextHandle++
	b := &block{}
	b.init(a.nextHandle, size)

	a.blocks.Put(b.handle, b)
	a.usedBytes += b.footprint()

	return b.handle, nil
}

// Share registers an additional reference to a live block. The caller takes on the obligation to
// Release the handle once more.
//
// Sharing NoHandle, a block that has already been freed, or a handle this arena never issued
// is an assertion failure: the returned error wraps memutils.ErrInvalidHandle and the count is
// left untouched.
func (a *Arena) Share(handle Handle) error {
	a.logger.Debug("Arena::Share")

	err := a.share(handle)
	if err != nil {
		return err
	}

	memutils.DebugValidate(a)
	return nil
}

func (a *Arena) share(handle Handle) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	b, err := a.lookup(handle, "share")
	if err != nil {
		return err
	}

	b.refCount++
	return nil
}

// Release gives up one reference to a block. When the last reference is released, the block is
// freed before Release returns and the handle becomes permanently invalid. While other references
// remain the payload is left intact.
//
// Releasing NoHandle does nothing. Releasing a handle whose block has already been freed, including
// releasing more times than the block was allocated and shared, is an assertion failure wrapping
// memutils.ErrInvalidHandle.
func (a *Arena) Release(handle Handle) error {
	a.logger.Debug("Arena::Release")

	if handle == NoHandle {
		return nil
	}

	err := a.release(handle)
	if err != nil {
		return err
	}

	memutils.DebugValidate(a)
	return nil
}

func (a *Arena) release(handle Handle) error {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	b, err := a.lookup(handle, "release")
	if err != nil {
		return err
	}

	b.refCount--
	if b.refCount > 0 {
		return nil
	}

	a.blocks.Delete(handle)
	a.usedBytes -= b.footprint()
	b.free()

	return nil
}

// MustShare is Share for callers that treat a broken reference count as unrecoverable. It panics
// instead of returning an error.
func (a *Arena) MustShare(handle Handle) {
	err := a.Share(handle)
	if err != nil {
		panic(err)
	}
}

// MustRelease is Release for callers that treat a broken reference count as unrecoverable. It
// panics instead of returning an error.
func (a *Arena) MustRelease(handle Handle) {
	err := a.Release(handle)
	if err != nil {
		panic(err)
	}
}

func (a *Arena) lookup(handle Handle, op string) (*block, error) {
	if a.destroyed {
		return nil, errors.WithAssertionFailure(errors.Wrapf(memutils.ErrArenaDestroyed, "cannot %s %s in arena %q", op, handle, a.name))
	}

	if handle == NoHandle {
		return nil, errors.WithAssertionFailure(errors.Wrapf(memutils.ErrInvalidHandle, "cannot %s NoHandle in arena %q", op, a.name))
	}

	b, ok := a.blocks.Get(handle)
	if !ok {
		if handle > a.nextHandle {
			return nil, errors.WithAssertionFailure(errors.Wrapf(memutils.ErrInvalidHandle,
				"cannot %s %s: it was never issued by arena %q", op, handle, a.name))
		}
		return nil, errors.WithAssertionFailure(errors.Wrapf(memutils.ErrInvalidHandle,
			"cannot %s %s: its block in arena %q has already been freed", op, handle, a.name))
	}

	return b, nil
}

// Bytes returns the payload of a live block. The slice is only valid until the block's last
// reference is released; using it afterward is a contract violation the arena cannot detect.
func (a *Arena) Bytes(handle Handle) ([]byte, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	b, err := a.lookup(handle, "read")
	if err != nil {
		return nil, err
	}

	return b.data(), nil
}

// RefCount returns the number of outstanding references to a live block
func (a *Arena) RefCount(handle Handle) (int, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	b, err := a.lookup(handle, "inspect")
	if err != nil {
		return 0, err
	}

	return b.refCount, nil
}

// Size returns the payload size a live block was allocated with
func (a *Arena) Size(handle Handle) (int, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	b, err := a.lookup(handle, "inspect")
	if err != nil {
		return 0, err
	}

	return b.size, nil
}

// IsLive reports whether handle refers to a block that has not been freed
func (a *Arena) IsLive(handle Handle) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.destroyed || handle == NoHandle {
		return false
	}

	return a.blocks.Has(handle)
}

// BlockCount returns the number of live blocks
func (a *Arena) BlockCount() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.destroyed {
		return 0
	}

	return a.blocks.Count()
}

// UsedBytes returns the combined footprint of all live blocks, bookkeeping included
func (a *Arena) UsedBytes() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.usedBytes
}

// VisitBlocks calls visit once for each live block, in the order the blocks were allocated. visit
// must not call back into the arena. Iteration stops at the first error, which is returned.
func (a *Arena) VisitBlocks(visit func(handle Handle, size int, refCount int) error) error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.destroyed {
		return nil
	}

	for _, b := range a.sortedBlocks() {
		err := visit(b.handle, b.size, b.refCount)
		if err != nil {
			return err
		}
	}

	return nil
}

func (a *Arena) sortedBlocks() []*block {
	blocks := make([]*block, 0, a.blocks.Count())
	a.blocks.Iter(func(_ Handle, b *block) bool {
		blocks = append(blocks, b)
		return false
	})
	slices.SortFunc(blocks, func(left, right *block) int {
		switch {
		case left.handle < right.handle:
			return -1
		case left.handle > right.handle:
			return 1
		}
		return 0
	})

	return blocks
}

// Validate performs internal consistency checks on the arena: every live block has at least one
// reference and a payload, and the byte accounting matches the live blocks.
func (a *Arena) Validate() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.destroyed {
		if a.usedBytes != 0 {
			return errors.Errorf("destroyed arena %q still accounts for %d bytes", a.name, a.usedBytes)
		}
		return nil
	}

	footprint := 0
	var err error
	a.blocks.Iter(func(handle Handle, b *block) bool {
		if handle != b.handle {
			err = errors.Errorf("block %s is filed under handle %s", b.handle, handle)
			return true
		}
		if handle > a.nextHandle {
			err = errors.Errorf("block %s was never issued: the last issued handle is %s", handle, a.nextHandle)
			return true
		}

		err = b.Validate()
		if err != nil {
			return true
		}

		footprint += b.footprint()
		return false
	})
	if err != nil {
		return err
	}

	if footprint != a.usedBytes {
		return errors.Errorf("arena %q accounts for %d bytes but its live blocks occupy %d", a.name, a.usedBytes, footprint)
	}
	if a.maxBytes > 0 && a.usedBytes > a.maxBytes {
		return errors.Errorf("arena %q uses %d bytes, exceeding its limit of %d", a.name, a.usedBytes, a.maxBytes)
	}

	return nil
}

// Destroy tears down the arena. Every block must have been released first: if any remain, each
// one is logged as unreleased memory, an error is returned and the arena stays usable. After a
// successful Destroy, every operation other than Release(NoHandle) fails with
// memutils.ErrArenaDestroyed.
func (a *Arena) Destroy() error {
	a.logger.Debug("Arena::Destroy")

	a.mutex.Lock()
	defer a.mutex.Unlock()

	if a.destroyed {
		return nil
	}

	if a.blocks.Count() > 0 {
		for _, b := range a.sortedBlocks() {
			a.logUnreleasedMemory(b)
		}

		return errors.Newf("%d blocks in arena %q were not released before it was destroyed", a.blocks.Count(), a.name)
	}

	a.destroyed = true
	a.blocks = nil
	return nil
}

func (a *Arena) logUnreleasedMemory(b *block) {
	a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unreleased block",
		slog.String("handle", b.handle.String()),
		slog.Int("size", b.size),
		slog.Int("refCount", b.refCount),
	)
}
