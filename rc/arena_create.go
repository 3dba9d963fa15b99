package rc

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/sjoeen/rcsim/internal/utils"
	"github.com/sjoeen/rcsim/memutils"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific arena behaviors to activate or deactivate
type CreateFlags uint32

var createFlagsMapping = make(map[CreateFlags]string)

func (f CreateFlags) Register(str string) {
	createFlagsMapping[f] = str
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var names []string
	for bit := CreateFlags(1); bit != 0 && bit <= f; bit <<= 1 {
		if f&bit == 0 {
			continue
		}

		name, registered := createFlagsMapping[bit]
		if !registered {
			name = fmt.Sprintf("CreateFlags(%#x)", uint32(bit))
		}
		names = append(names, name)
	}

	return strings.Join(names, "|")
}

const (
	// ArenaCreateExternallySynchronized ensures that the arena will not be synchronized internally.
	// The consumer must guarantee it is used from only one goroutine at a time or is synchronized by
	// some other mechanism. This is the single-threaded contract the arena was designed around; the
	// internal lock used otherwise is an extension that makes Share and Release safe to race, with
	// exactly one releaser observing a block's final release.
	ArenaCreateExternallySynchronized CreateFlags = 1 << iota
)

func init() {
	ArenaCreateExternallySynchronized.Register("ArenaCreateExternallySynchronized")
}

const (
	// initialTableSize is the number of blocks the handle table is sized for before it first grows
	initialTableSize uint32 = 64
)

// CreateOptions contains optional settings when creating an arena
type CreateOptions struct {
	// Flags indicates specific arena behaviors to activate or deactivate
	Flags CreateFlags
	// MaxBytes limits the combined footprint (payload plus bookkeeping) of all live blocks.
	// Allocations beyond the limit fail with memutils.ErrOutOfMemory. Zero means no limit.
	MaxBytes int
	// Name is included in log output and statistics
	Name string
}

// New creates a new Arena
//
// logger - Receives debug traces of every arena call and error-level reports of blocks that were
// never released
//
// options - Optional parameters: it is valid to leave all the fields blank
func New(logger *slog.Logger, options CreateOptions) (*Arena, error) {
	if logger == nil {
		return nil, errors.New("rc.New requires a logger")
	}
	if options.MaxBytes < 0 {
		return nil, errors.Newf("rc.CreateOptions.MaxBytes must not be negative, but was %d", options.MaxBytes)
	}
	memutils.DebugCheckPow2(PayloadAlignment, "PayloadAlignment")

	name := options.Name
	if name == "" {
		name = "arena"
	}

	arena := &Arena{
		name:        name,
		logger:      logger.With(slog.String("arena", name)),
		createFlags: options.Flags,
		mutex:       utils.OptionalRWMutex{UseMutex: options.Flags&ArenaCreateExternallySynchronized == 0},
		maxBytes:    options.MaxBytes,
		blocks:      swiss.NewMap[Handle, *block](initialTableSize),
	}

	arena.logger.Debug("rc::New", slog.String("flags", options.Flags.String()), slog.Int("maxBytes", options.MaxBytes))

	return arena, nil
}
