package metrics_test

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sjoeen/rcsim/metrics"
	"github.com/sjoeen/rcsim/rc"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func readyArena(t *testing.T, name string) *rc.Arena {
	arena, err := rc.New(slog.New(slog.NewTextHandler(io.Discard, nil)), rc.CreateOptions{Name: name})
	require.NoError(t, err)
	return arena
}

func TestArenaCollector(t *testing.T) {
	arena := readyArena(t, "genomes")

	first, err := arena.Allocate(64)
	require.NoError(t, err)
	second, err := arena.Allocate(32)
	require.NoError(t, err)
	require.NoError(t, arena.Share(second))
	require.NoError(t, arena.Share(second))

	collector := metrics.NewArenaCollector(arena)
	require.Equal(t, 6, testutil.CollectAndCount(collector))

	expected := fmt.Sprintf(`
# HELP rcsim_arena_blocks Number of live blocks in the arena.
# TYPE rcsim_arena_blocks gauge
rcsim_arena_blocks{arena="genomes"} 2
# HELP rcsim_arena_max_ref_count Highest reference count held by a single live block.
# TYPE rcsim_arena_max_ref_count gauge
rcsim_arena_max_ref_count{arena="genomes"} 3
# HELP rcsim_arena_payload_bytes Combined payload size of the live blocks.
# TYPE rcsim_arena_payload_bytes gauge
rcsim_arena_payload_bytes{arena="genomes"} 96
# HELP rcsim_arena_references Number of outstanding references across all live blocks.
# TYPE rcsim_arena_references gauge
rcsim_arena_references{arena="genomes"} 4
# HELP rcsim_arena_used_bytes Combined footprint of the live blocks, bookkeeping included.
# TYPE rcsim_arena_used_bytes gauge
rcsim_arena_used_bytes{arena="genomes"} %d
`, arena.UsedBytes())
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"rcsim_arena_blocks", "rcsim_arena_max_ref_count", "rcsim_arena_payload_bytes",
		"rcsim_arena_references", "rcsim_arena_used_bytes"))

	require.NoError(t, arena.Release(first))
	for i := 0; i < 3; i++ {
		require.NoError(t, arena.Release(second))
	}

	expected = `
# HELP rcsim_arena_blocks Number of live blocks in the arena.
# TYPE rcsim_arena_blocks gauge
rcsim_arena_blocks{arena="genomes"} 0
`
	require.NoError(t, testutil.CollectAndCompare(collector, strings.NewReader(expected), "rcsim_arena_blocks"))
	require.NoError(t, arena.Destroy())
}

func TestWriteTextfile(t *testing.T) {
	genomes := readyArena(t, "genomes")
	variants := readyArena(t, "variants")

	h, err := variants.Allocate(16)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "rcsim.prom")
	require.NoError(t, metrics.WriteTextfile(path, genomes, variants))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	require.Contains(t, text, `rcsim_arena_blocks{arena="genomes"} 0`)
	require.Contains(t, text, `rcsim_arena_blocks{arena="variants"} 1`)
	require.Contains(t, text, `rcsim_arena_payload_bytes{arena="variants"} 16`)

	require.NoError(t, variants.Release(h))
}

func TestWriteTextfileRejectsDuplicateArenas(t *testing.T) {
	arena := readyArena(t, "genomes")

	err := metrics.WriteTextfile(filepath.Join(t.TempDir(), "rcsim.prom"), arena, arena)
	require.Error(t, err)
}
