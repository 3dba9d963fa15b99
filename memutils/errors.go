package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is the error returned from CheckPow2 or other methods if the number being tested is not a power of two
var PowerOfTwoError error = errors.New("number must be a power of two")

// ErrInvalidSize is returned when an allocation is requested with a size that is not positive
var ErrInvalidSize error = errors.New("allocation size must be greater than zero")

// ErrOutOfMemory is returned when an allocation cannot be satisfied by the remaining budget
var ErrOutOfMemory error = errors.New("out of memory")

// ErrInvalidHandle marks every use of a handle that does not refer to a live block: shares and
// releases of blocks that were already freed, handles the arena never issued, and over-release.
var ErrInvalidHandle error = errors.New("handle does not refer to a live block")

// ErrArenaDestroyed is returned from any operation on an arena after Destroy succeeded
var ErrArenaDestroyed error = errors.New("arena has been destroyed")
