// Package metrics exports arena statistics to Prometheus
package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sjoeen/rcsim/memutils"
)

const namespace = "rcsim"

// Source is an arena whose statistics can be collected. *rc.Arena satisfies it.
type Source interface {
	Name() string
	CalculateStatistics() memutils.DetailedStatistics
}

// ArenaCollector reports the live blocks of an arena every time it is scraped
type ArenaCollector struct {
	source Source

	blocks       *prometheus.Desc
	sharedBlocks *prometheus.Desc
	references   *prometheus.Desc
	usedBytes    *prometheus.Desc
	payloadBytes *prometheus.Desc
	maxRefCount  *prometheus.Desc
}

var _ prometheus.Collector = &ArenaCollector{}

func NewArenaCollector(source Source) *ArenaCollector {
	labels := prometheus.Labels{"arena": source.Name()}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "arena", name), help, nil, labels)
	}

	return &ArenaCollector{
		source:       source,
		blocks:       desc("blocks", "Number of live blocks in the arena."),
		sharedBlocks: desc("shared_blocks", "Number of live blocks with more than one reference."),
		references:   desc("references", "Number of outstanding references across all live blocks."),
		usedBytes:    desc("used_bytes", "Combined footprint of the live blocks, bookkeeping included."),
		payloadBytes: desc("payload_bytes", "Combined payload size of the live blocks."),
		maxRefCount:  desc("max_ref_count", "Highest reference count held by a single live block."),
	}
}

func (c *ArenaCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.blocks
	ch <- c.sharedBlocks
	ch <- c.references
	ch <- c.usedBytes
	ch <- c.payloadBytes
	ch <- c.maxRefCount
}

func (c *ArenaCollector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.CalculateStatistics()

	ch <- prometheus.MustNewConstMetric(c.blocks, prometheus.GaugeValue, float64(stats.BlockCount))
	ch <- prometheus.MustNewConstMetric(c.sharedBlocks, prometheus.GaugeValue, float64(stats.SharedBlockCount))
	ch <- prometheus.MustNewConstMetric(c.references, prometheus.GaugeValue, float64(stats.ReferenceCount))
	ch <- prometheus.MustNewConstMetric(c.usedBytes, prometheus.GaugeValue, float64(stats.BlockBytes))
	ch <- prometheus.MustNewConstMetric(c.payloadBytes, prometheus.GaugeValue, float64(stats.PayloadBytes))
	ch <- prometheus.MustNewConstMetric(c.maxRefCount, prometheus.GaugeValue, float64(stats.RefCountMax))
}

// WriteTextfile writes the current statistics of every source to path in the text exposition
// format read by the node exporter's textfile collector
func WriteTextfile(path string, sources ...Source) error {
	registry := prometheus.NewRegistry()
	for _, source := range sources {
		err := registry.Register(NewArenaCollector(source))
		if err != nil {
			return errors.Wrapf(err, "failed to register arena %q", source.Name())
		}
	}

	err := prometheus.WriteToTextfile(path, registry)
	if err != nil {
		return errors.Wrapf(err, "failed to write metrics to %s", path)
	}
	return nil
}
