// Package simulation runs a population of bacteria under antibiotic pressure. Every bacterium owns
// a private genome block and shares a variant block, a snapshot of the genome its lineage branched
// from, with every relative that has not diverged from it. Both live in an Allocator; the
// population only ever allocates, shares and releases them.
package simulation

//go:generate mockgen -destination mocks/allocator.go -package mock_simulation github.com/sjoeen/rcsim/simulation Allocator

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sjoeen/rcsim/list"
	"github.com/sjoeen/rcsim/rc"
	"golang.org/x/exp/slog"
)

// Allocator is the subset of rc.Arena the population relies on
type Allocator interface {
	Allocate(size int) (rc.Handle, error)
	Share(handle rc.Handle) error
	Release(handle rc.Handle) error
	Bytes(handle rc.Handle) ([]byte, error)
}

// Progress is reported once per generation by Run
type Progress struct {
	Generation    int
	Generations   int
	Population    int
	MaxPopulation int
}

// Population is a set of bacteria along with the allocator holding their genomes and variants.
// It is not safe for concurrent use.
type Population struct {
	logger *slog.Logger
	alloc  Allocator
	config Config
	rng    *rand.Rand

	bacteria   *list.List[*Bacterium]
	generation int
}

// NewPopulation creates an empty population. Call Seed to add the initial bacteria.
func NewPopulation(logger *slog.Logger, alloc Allocator, config Config) (*Population, error) {
	if logger == nil {
		return nil, errors.New("simulation.NewPopulation requires a logger")
	}
	if alloc == nil {
		return nil, errors.New("simulation.NewPopulation requires an allocator")
	}

	err := config.Validate()
	if err != nil {
		return nil, err
	}

	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	return &Population{
		logger:   logger,
		alloc:    alloc,
		config:   config,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		bacteria: list.New[*Bacterium](),
	}, nil
}

func (p *Population) Config() Config { return p.config }
func (p *Population) Size() int { return p.bacteria.Len() }
func (p *Population) Generation() int { return p.generation }

// Bacteria returns the living bacteria, most recently born first
func (p *Population) Bacteria() []*Bacterium {
	return p.bacteria.Items()
}

// Seed adds InitialPopulation bacteria with random genomes. Each one gets a variant of its own,
// also random and unrelated to its genome.
func (p *Population) Seed() error {
	p.logger.Debug("Population::Seed")

	for i := 0; i < p.config.InitialPopulation; i++ {
		b, err := p.randomBacterium()
		if err != nil {
			return err
		}
		p.bacteria.AddFirst(b)
	}

	return nil
}

func (p *Population) randomBacterium() (*Bacterium, error) {
	genomeHandle, err := p.alloc.Allocate(p.config.GenomeLength)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate a genome")
	}
	b := &Bacterium{genome: genomeHandle}

	variantHandle, err := p.alloc.Allocate(p.config.GenomeLength)
	if err != nil {
		p.releaseOrPanic(b)
		return nil, errors.Wrap(err, "failed to allocate a variant")
	}
	b.variant = variantHandle

	genome, variant, err := p.genomeAndVariant(b)
	if err != nil {
		p.releaseOrPanic(b)
		return nil, err
	}

	for i := range genome {
		genome[i] = byte(p.rng.IntN(baseCount))
		variant[i] = byte(p.rng.IntN(baseCount))
	}
	b.tally(genome, variant)

	return b, nil
}

// SurvivesAntibiotic rolls whether b survives this generation's dose. Higher resistance makes
// survival more likely.
func (p *Population) SurvivesAntibiotic(b *Bacterium) bool {
	return p.rng.Float64()*b.Resistance(p.config.GenomeLength) > p.rng.Float64()*p.config.AntibioticStrength
}

// RunGeneration gives every bacterium one turn: survivors divide, the rest die. Offspring join the
// front of the population and do not take a turn until the next generation. A survivor whose
// offspring pushes the population over MaxBacteria dies to make room.
func (p *Population) RunGeneration() error {
	p.logger.Debug("Population::RunGeneration", slog.Int("generation", p.generation+1))

	it := p.bacteria.Iterator()
	for b, ok := it.Next(); ok; b, ok = it.Next() {
		if !p.SurvivesAntibiotic(b) {
			err := p.release(b)
			if err != nil {
				return err
			}
			it.Remove()
			continue
		}

		offspring, err := p.Divide(b)
		if err != nil {
			return err
		}
		p.bacteria.AddFirst(offspring)

		if p.bacteria.Len() > p.config.MaxBacteria {
			err = p.release(b)
			if err != nil {
				return err
			}
			it.Remove()
		}
	}

	p.generation++
	return nil
}

// Divide splits parent in two. parent becomes one of the daughter cells and the other is returned.
// The offspring starts out with a copy of the parent's genome and a shared reference to the
// parent's variant; both cells then mutate independently and branch off new variants if they have
// drifted far enough.
func (p *Population) Divide(parent *Bacterium) (*Bacterium, error) {
	genomeHandle, err := p.alloc.Allocate(p.config.GenomeLength)
	if err != nil {
		return nil, errors.Wrap(err, "failed to allocate an offspring genome")
	}
	offspring := &Bacterium{genome: genomeHandle}

	parentGenome, err := p.alloc.Bytes(parent.genome)
	if err != nil {
		p.releaseOrPanic(offspring)
		return nil, err
	}
	offspringGenome, err := p.alloc.Bytes(offspring.genome)
	if err != nil {
		p.releaseOrPanic(offspring)
		return nil, err
	}
	copy(offspringGenome, parentGenome)

	err = p.alloc.Share(parent.variant)
	if err != nil {
		p.releaseOrPanic(offspring)
		return nil, errors.Wrapf(err, "failed to share variant %s", parent.variant)
	}
	offspring.variant = parent.variant
	offspring.zeroBases = parent.zeroBases
	offspring.divergence = parent.divergence

	for _, b := range []*Bacterium{offspring, parent} {
		err = p.Mutate(b)
		if err == nil {
			err = p.UpdateVariant(b)
		}
		if err != nil {
			p.releaseOrPanic(offspring)
			return nil, err
		}
	}

	return offspring, nil
}

// Mutate replaces each base of b's genome with a random base with probability MutationRate
func (p *Population) Mutate(b *Bacterium) error {
	rate := p.config.MutationRate
	if rate <= 0 {
		return nil
	}

	genome, variant, err := p.genomeAndVariant(b)
	if err != nil {
		return err
	}

	for i := p.nextMutation(-1, rate); i < len(genome); i = p.nextMutation(i, rate) {
		b.setBase(genome, variant, i, byte(p.rng.IntN(baseCount)))
	}

	return nil
}

// nextMutation returns the index of the next base after i to mutate. The gaps between mutated
// bases are geometrically distributed, which is equivalent to rolling every base separately.
func (p *Population) nextMutation(i int, rate float64) int {
	if rate >= 1 {
		return i + 1
	}

	gap := math.Floor(math.Log(1-p.rng.Float64()) / math.Log1p(-rate))
	if gap > math.MaxInt32 {
		return math.MaxInt
	}
	return i + 1 + int(gap)
}

// UpdateVariant branches b off a variant of its own once its genome differs from its current
// variant in at least NewVariantThreshold bases. Relatives still sharing the old variant are
// unaffected.
func (p *Population) UpdateVariant(b *Bacterium) error {
	if b.divergence < p.config.NewVariantThreshold {
		return nil
	}

	variantHandle, err := p.alloc.Allocate(p.config.GenomeLength)
	if err != nil {
		return errors.Wrap(err, "failed to allocate a variant")
	}

	variant, err := p.alloc.Bytes(variantHandle)
	if err == nil {
		var genome []byte
		genome, err = p.alloc.Bytes(b.genome)
		copy(variant, genome)
	}
	if err != nil {
		p.releaseHandleOrPanic(variantHandle)
		return err
	}

	err = p.alloc.Release(b.variant)
	if err != nil {
		p.releaseHandleOrPanic(variantHandle)
		return errors.Wrapf(err, "failed to release variant %s", b.variant)
	}

	p.logger.Debug("Population::UpdateVariant",
		slog.String("old", b.variant.String()),
		slog.String("new", variantHandle.String()),
		slog.Int("divergence", b.divergence))

	b.variant = variantHandle
	b.divergence = 0
	return nil
}

// Kill removes b from the population and releases its genome and its share of its variant
func (p *Population) Kill(b *Bacterium) error {
	if !p.bacteria.Remove(b) {
		return errors.New("attempted to kill a bacterium that is not part of the population")
	}

	return p.release(b)
}

func (p *Population) release(b *Bacterium) error {
	err := p.alloc.Release(b.variant)
	if err != nil {
		return errors.Wrapf(err, "failed to release variant %s", b.variant)
	}
	b.variant = rc.NoHandle

	err = p.alloc.Release(b.genome)
	if err != nil {
		return errors.Wrapf(err, "failed to release genome %s", b.genome)
	}
	b.genome = rc.NoHandle

	return nil
}

// releaseOrPanic backs out a partially built bacterium. A failure here means the reference counts
// are already corrupt.
func (p *Population) releaseOrPanic(b *Bacterium) {
	err := p.release(b)
	if err != nil {
		panic(errors.Wrap(err, "failed to back out a partially created bacterium"))
	}
}

func (p *Population) releaseHandleOrPanic(handle rc.Handle) {
	err := p.alloc.Release(handle)
	if err != nil {
		panic(errors.Wrapf(err, "failed to back out block %s", handle))
	}
}

func (p *Population) genomeAndVariant(b *Bacterium) (genome []byte, variant []byte, err error) {
	genome, err = p.alloc.Bytes(b.genome)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read genome %s", b.genome)
	}

	variant, err = p.alloc.Bytes(b.variant)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read variant %s", b.variant)
	}

	return genome, variant, nil
}

// Run simulates Generations generations, calling progress after each one. It stops early if ctx
// is cancelled or the population dies out.
func (p *Population) Run(ctx context.Context, progress func(Progress)) error {
	p.logger.Info("starting simulation",
		slog.Int("generations", p.config.Generations),
		slog.Int("population", p.Size()),
		slog.Int("maxBacteria", p.config.MaxBacteria))

	for i := 0; i < p.config.Generations; i++ {
		err := ctx.Err()
		if err != nil {
			return errors.Wrapf(err, "simulation interrupted after %d generations", p.generation)
		}

		err = p.RunGeneration()
		if err != nil {
			return errors.Wrapf(err, "generation %d failed", p.generation+1)
		}

		if progress != nil {
			progress(Progress{
				Generation:    i + 1,
				Generations:   p.config.Generations,
				Population:    p.Size(),
				MaxPopulation: p.config.MaxBacteria,
			})
		}

		if p.Size() == 0 {
			p.logger.Warn("population died out", slog.Int("generation", p.generation))
			break
		}
	}

	return nil
}

// AverageResistance returns the mean resistance of the living bacteria, or NaN if there are none
func (p *Population) AverageResistance() float64 {
	if p.Size() == 0 {
		return math.NaN()
	}

	total := 0.0
	it := p.bacteria.Iterator()
	for b, ok := it.Next(); ok; b, ok = it.Next() {
		total += b.Resistance(p.config.GenomeLength)
	}

	return total / float64(p.Size())
}

// Summary returns the average resistance as a multiple of ExpectedResistance, the resistance of
// a population that has not been under selection
func (p *Population) Summary() float64 {
	return p.AverageResistance() / p.config.ExpectedResistance
}

// FormatGenome renders b's genome as a string of acgt bases
func (p *Population) FormatGenome(b *Bacterium) (string, error) {
	genome, err := p.alloc.Bytes(b.genome)
	if err != nil {
		return "", errors.Wrapf(err, "failed to read genome %s", b.genome)
	}

	return formatBases(genome), nil
}

// Destroy kills every bacterium, returning all of their blocks to the allocator
func (p *Population) Destroy() error {
	p.logger.Debug("Population::Destroy")

	it := p.bacteria.Iterator()
	for b, ok := it.Next(); ok; b, ok = it.Next() {
		err := p.release(b)
		if err != nil {
			return err
		}
		it.Remove()
	}

	p.bacteria.Destroy()
	return nil
}
