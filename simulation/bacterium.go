package simulation

import (
	"strings"

	"github.com/sjoeen/rcsim/rc"
)

const (
	baseCount = 4
	// resistantBase is the base whose share of the genome determines resistance
	resistantBase byte = 0
)

var baseLetters = [baseCount]byte{'a', 'c', 'g', 't'}

// Bacterium is a single member of a Population. Its genome block belongs to it alone; its variant
// block may be shared with any number of relatives.
type Bacterium struct {
	genome  rc.Handle
	variant rc.Handle

	// zeroBases counts the resistant bases in the genome
	zeroBases int
	// divergence counts the positions where the genome differs from the variant
	divergence int
}

func (b *Bacterium) Genome() rc.Handle { return b.genome }
func (b *Bacterium) Variant() rc.Handle { return b.variant }
func (b *Bacterium) Divergence() int { return b.divergence }

// Resistance is the fraction of the genome made up of resistant bases
func (b *Bacterium) Resistance(genomeLength int) float64 {
	return float64(b.zeroBases) / float64(genomeLength)
}

func (b *Bacterium) tally(genome, variant []byte) {
	b.zeroBases, b.divergence = tallyBases(genome, variant)
}

func tallyBases(genome, variant []byte) (zeroBases int, divergence int) {
	for i, base := range genome {
		if base == resistantBase {
			zeroBases++
		}
		if base != variant[i] {
			divergence++
		}
	}

	return zeroBases, divergence
}

// setBase writes base at index i and keeps the tallies in step with the change
func (b *Bacterium) setBase(genome, variant []byte, i int, base byte) {
	old := genome[i]
	if old == base {
		return
	}
	genome[i] = base

	if old == resistantBase {
		b.zeroBases--
	} else if base == resistantBase {
		b.zeroBases++
	}

	if old == variant[i] {
		b.divergence++
	} else if base == variant[i] {
		b.divergence--
	}
}

func formatBases(genome []byte) string {
	var sb strings.Builder
	sb.Grow(len(genome))
	for _, base := range genome {
		sb.WriteByte(baseLetters[base%baseCount])
	}
	return sb.String()
}
