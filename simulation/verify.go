package simulation

import (
	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/sjoeen/rcsim/rc"
)

// RefCounter exposes the reference counts VerifyShares checks against. *rc.Arena satisfies it.
type RefCounter interface {
	RefCount(handle rc.Handle) (int, error)
	Bytes(handle rc.Handle) ([]byte, error)
}

// ShareReport summarizes the blocks a population holds
type ShareReport struct {
	Bacteria int
	// Variants is the number of distinct variant blocks referenced by living bacteria
	Variants int
	// SharedVariants is the number of variants referenced by more than one bacterium
	SharedVariants int
	// LargestLineage is the most bacteria referencing a single variant
	LargestLineage int
}

// Blocks is the number of blocks the population should be holding: one genome per bacterium
// plus one per distinct variant
func (r ShareReport) Blocks() int {
	return r.Bacteria + r.Variants
}

// VerifyShares checks the population's references against counter. Every genome must be
// referenced exactly once, every variant exactly as many times as there are bacteria holding it,
// and every bacterium's cached tallies must match its blocks.
func (p *Population) VerifyShares(counter RefCounter) (ShareReport, error) {
	report := ShareReport{Bacteria: p.Size()}
	holders := swiss.NewMap[rc.Handle, int](uint32(p.Size()) + 1)

	var err error
	it := p.bacteria.Iterator()
	for b, ok := it.Next(); ok; b, ok = it.Next() {
		err = p.verifyBacterium(counter, b)
		if err != nil {
			return report, err
		}

		count, _ := holders.Get(b.variant)
		holders.Put(b.variant, count+1)
	}

	holders.Iter(func(variant rc.Handle, count int) bool {
		var refCount int
		refCount, err = counter.RefCount(variant)
		if err != nil {
			err = errors.Wrapf(err, "variant %s is held by %d bacteria", variant, count)
			return true
		}
		if refCount != count {
			err = errors.AssertionFailedf("variant %s is held by %d bacteria but has %d references", variant, count, refCount)
			return true
		}

		report.Variants++
		if count > 1 {
			report.SharedVariants++
		}
		if count > report.LargestLineage {
			report.LargestLineage = count
		}
		return false
	})

	return report, err
}

func (p *Population) verifyBacterium(counter RefCounter, b *Bacterium) error {
	refCount, err := counter.RefCount(b.genome)
	if err != nil {
		return errors.Wrapf(err, "genome %s", b.genome)
	}
	if refCount != 1 {
		return errors.AssertionFailedf("genome %s has %d references, expected 1", b.genome, refCount)
	}

	genome, err := counter.Bytes(b.genome)
	if err != nil {
		return errors.Wrapf(err, "genome %s", b.genome)
	}
	variant, err := counter.Bytes(b.variant)
	if err != nil {
		return errors.Wrapf(err, "variant %s", b.variant)
	}
	if len(genome) != p.config.GenomeLength || len(variant) != p.config.GenomeLength {
		return errors.AssertionFailedf("genome %s and variant %s are %d and %d bases long, expected %d",
			b.genome, b.variant, len(genome), len(variant), p.config.GenomeLength)
	}

	zeroBases, divergence := tallyBases(genome, variant)
	if zeroBases != b.zeroBases || divergence != b.divergence {
		return errors.AssertionFailedf("bacterium with genome %s tracks %d resistant bases and divergence %d, but its blocks hold %d and %d",
			b.genome, b.zeroBases, b.divergence, zeroBases, divergence)
	}

	return nil
}
