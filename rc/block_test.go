package rc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBlockInitRoundsPayloadUp(t *testing.T) {
	var b block
	b.init(Handle(3), 13)

	require.Equal(t, 1, b.refCount)
	require.Len(t, b.payload, 16)
	require.Len(t, b.data(), 13)
	require.Equal(t, 13, cap(b.data()))
	require.Equal(t, 16+blockBookkeepingBytes, b.footprint())
	require.NoError(t, b.Validate())

	require.Panics(t, func() {
		b.init(Handle(4), 8)
	})
}

func TestBlockFreeRequiresZeroReferences(t *testing.T) {
	var b block
	b.init(Handle(1), 8)

	require.Panics(t, b.free)

	b.refCount = 0
	require.Error(t, b.Validate())
	b.free()
	require.Nil(t, b.payload)
}
