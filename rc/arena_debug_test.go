//go:build debug_mem_utils

package rc_test

import (
	"bytes"
	"testing"

	"github.com/sjoeen/rcsim/memutils"
	"github.com/sjoeen/rcsim/rc"
	"github.com/stretchr/testify/require"
)

func TestReleasePoisonsFreedPayload(t *testing.T) {
	arena := readyArena(t, rc.CreateOptions{})

	h, err := arena.Allocate(40)
	require.NoError(t, err)
	require.NoError(t, arena.Share(h))

	stale, err := arena.Bytes(h)
	require.NoError(t, err)
	copy(stale, "still referenced")

	require.NoError(t, arena.Release(h))
	require.Equal(t, []byte("still referenced"), stale[:len("still referenced")])

	require.NoError(t, arena.Release(h))
	require.Equal(t, bytes.Repeat([]byte{memutils.PoisonByte}, 40), stale)
}
