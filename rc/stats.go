package rc

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/sjoeen/rcsim/memutils"
)

// AddStatistics sums this arena's live blocks into the statistics currently present in stats
func (a *Arena) AddStatistics(stats *memutils.Statistics) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.destroyed {
		return
	}

	a.blocks.Iter(func(_ Handle, b *block) bool {
		stats.AddBlock(b.footprint(), b.size, b.refCount)
		return false
	})
}

// AddDetailedStatistics sums this arena's live blocks into the statistics currently present in stats
func (a *Arena) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	if a.destroyed {
		return
	}

	a.blocks.Iter(func(_ Handle, b *block) bool {
		stats.AddBlock(b.footprint(), b.size, b.refCount)
		return false
	})
}

// CalculateStatistics returns detailed statistics for this arena alone
func (a *Arena) CalculateStatistics() memutils.DetailedStatistics {
	var stats memutils.DetailedStatistics
	stats.Clear()
	a.AddDetailedStatistics(&stats)
	return stats
}

// BuildStatsString returns a JSON document describing the arena. When detailedMap is true, every
// live block is listed along with its reference count.
func (a *Arena) BuildStatsString(detailedMap bool) string {
	stats := a.CalculateStatistics()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("Name").String(a.name)
	obj.Name("Flags").String(a.createFlags.String())
	obj.Name("MaxBytes").Int(a.maxBytes)

	total := obj.Name("Total").Object()
	printStatistics(&total, &stats)
	total.End()

	if detailedMap {
		a.printDetailedMap(&obj)
	}

	obj.End()
	return string(writer.Bytes())
}

func printStatistics(json *jwriter.ObjectState, stats *memutils.DetailedStatistics) {
	json.Name("BlockCount").Int(stats.BlockCount)
	json.Name("ReferenceCount").Int(stats.ReferenceCount)
	json.Name("BlockBytes").Int(stats.BlockBytes)
	json.Name("PayloadBytes").Int(stats.PayloadBytes)
	json.Name("SharedBlockCount").Int(stats.SharedBlockCount)

	if stats.BlockCount > 0 {
		sizes := json.Name("PayloadSize").Object()
		sizes.Name("Min").Int(stats.PayloadSizeMin)
		sizes.Name("Max").Int(stats.PayloadSizeMax)
		sizes.End()

		json.Name("RefCountMax").Int(stats.RefCountMax)
	}
}

func (a *Arena) printDetailedMap(json *jwriter.ObjectState) {
	arrayState := json.Name("Blocks").Array()
	defer arrayState.End()

	_ = a.VisitBlocks(func(handle Handle, size int, refCount int) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Handle").String(handle.String())
		obj.Name("Size").Int(size)
		obj.Name("RefCount").Int(refCount)
		return nil
	})
}
