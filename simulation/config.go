package simulation

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultGenomeLength       = 1024
	defaultMaxBacteria        = 10000
	defaultGenerations        = 500
	defaultAntibioticStrength = 0.15
	defaultInitialPopulation  = 5
	// defaultExpectedResistance is the share of zero bases in a uniformly random genome
	defaultExpectedResistance = 0.25
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds the parameters of a simulation run
type Config struct {
	// GenomeLength is the number of bases in every genome and variant
	GenomeLength int `yaml:"genome_length" validate:"min=1"`
	// MutationRate is the probability that any single base is replaced during a division
	MutationRate float64 `yaml:"mutation_rate" validate:"gte=0,lte=1"`
	// NewVariantThreshold is the number of bases a genome must differ from its variant by before
	// the bacterium branches off a variant of its own
	NewVariantThreshold int `yaml:"new_variant_threshold" validate:"min=1,ltefield=GenomeLength"`
	// MaxBacteria caps the population
	MaxBacteria int `yaml:"max_bacteria" validate:"min=1"`
	// Generations is the number of generations Run simulates
	Generations int `yaml:"generations" validate:"min=0"`
	// AntibioticStrength weighs the antibiotic against a bacterium's resistance in the survival check
	AntibioticStrength float64 `yaml:"antibiotic_strength" validate:"gte=0"`
	// InitialPopulation is the number of random bacteria Seed creates
	InitialPopulation int `yaml:"initial_population" validate:"min=1,ltefield=MaxBacteria"`
	// Seed for the random source. Zero seeds from the clock.
	Seed uint64 `yaml:"seed"`
	// ExpectedResistance is the baseline the summary statistic is normalized against
	ExpectedResistance float64 `yaml:"expected_resistance" validate:"gt=0"`
}

// DefaultConfig returns the parameters the simulation was originally tuned with
func DefaultConfig() Config {
	return Config{
		GenomeLength:        defaultGenomeLength,
		MutationRate:        defaultMutationRate(defaultGenomeLength),
		NewVariantThreshold: defaultVariantThreshold(defaultGenomeLength),
		MaxBacteria:         defaultMaxBacteria,
		Generations:         defaultGenerations,
		AntibioticStrength:  defaultAntibioticStrength,
		InitialPopulation:   defaultInitialPopulation,
		ExpectedResistance:  defaultExpectedResistance,
	}
}

func defaultMutationRate(genomeLength int) float64 {
	return 0.1 / float64(genomeLength)
}

func defaultVariantThreshold(genomeLength int) int {
	threshold := genomeLength / 100
	if threshold < 1 {
		threshold = 1
	}
	return threshold
}

// Validate reports the first field that is out of range
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err != nil {
		return errors.Wrap(err, "invalid simulation config")
	}
	return nil
}

// LoadConfig reads a YAML config file. Keys missing from the file keep their defaults; the
// mutation rate and variant threshold defaults follow genome_length when only it is given.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to read the simulation config %s", path)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to load the simulation config %s", path)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML document over DefaultConfig and validates the result
func ParseConfig(data []byte) (Config, error) {
	var present map[string]yaml.Node
	err := yaml.Unmarshal(data, &present)
	if err != nil {
		return Config{}, errors.Wrap(err, "malformed simulation config")
	}

	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err = decoder.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(err, "malformed simulation config")
	}

	if _, ok := present["mutation_rate"]; !ok {
		cfg.MutationRate = defaultMutationRate(cfg.GenomeLength)
	}
	if _, ok := present["new_variant_threshold"]; !ok {
		cfg.NewVariantThreshold = defaultVariantThreshold(cfg.GenomeLength)
	}

	err = cfg.Validate()
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}
