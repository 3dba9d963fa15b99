package simulation_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sjoeen/rcsim/simulation"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := simulation.DefaultConfig()
	require.NoError(t, cfg.Validate())

	require.Equal(t, 1024, cfg.GenomeLength)
	require.InDelta(t, 0.1/1024, cfg.MutationRate, 1e-12)
	require.Equal(t, 10, cfg.NewVariantThreshold)
	require.Equal(t, 10000, cfg.MaxBacteria)
	require.Equal(t, 500, cfg.Generations)
	require.Equal(t, 0.15, cfg.AntibioticStrength)
	require.Equal(t, 5, cfg.InitialPopulation)
	require.Equal(t, uint64(0), cfg.Seed)
	require.Equal(t, 0.25, cfg.ExpectedResistance)
}

func TestParseConfig(t *testing.T) {
	cfg, err := simulation.ParseConfig([]byte(`
max_bacteria: 200
generations: 20
antibiotic_strength: 0.3
seed: 42
`))
	require.NoError(t, err)

	expected := simulation.DefaultConfig()
	expected.MaxBacteria = 200
	expected.Generations = 20
	expected.AntibioticStrength = 0.3
	expected.Seed = 42
	require.Equal(t, expected, cfg)
}

func TestParseConfigEmptyDocument(t *testing.T) {
	cfg, err := simulation.ParseConfig(nil)
	require.NoError(t, err)
	require.Equal(t, simulation.DefaultConfig(), cfg)
}

func TestParseConfigDerivesFromGenomeLength(t *testing.T) {
	cfg, err := simulation.ParseConfig([]byte("genome_length: 400\n"))
	require.NoError(t, err)
	require.Equal(t, 400, cfg.GenomeLength)
	require.InDelta(t, 0.1/400, cfg.MutationRate, 1e-12)
	require.Equal(t, 4, cfg.NewVariantThreshold)

	cfg, err = simulation.ParseConfig([]byte("genome_length: 50\n"))
	require.NoError(t, err)
	require.Equal(t, 1, cfg.NewVariantThreshold)

	cfg, err = simulation.ParseConfig([]byte("genome_length: 400\nmutation_rate: 0.5\nnew_variant_threshold: 7\n"))
	require.NoError(t, err)
	require.Equal(t, 0.5, cfg.MutationRate)
	require.Equal(t, 7, cfg.NewVariantThreshold)
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	_, err := simulation.ParseConfig([]byte("max_bacterias: 200\n"))
	require.Error(t, err)
}

func TestParseConfigRejectsMalformedYAML(t *testing.T) {
	_, err := simulation.ParseConfig([]byte("max_bacteria: [1, 2"))
	require.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	testCases := map[string]func(cfg *simulation.Config){
		"ZeroGenome":             func(cfg *simulation.Config) { cfg.GenomeLength = 0 },
		"NegativeMutationRate":   func(cfg *simulation.Config) { cfg.MutationRate = -0.1 },
		"MutationRateAboveOne":   func(cfg *simulation.Config) { cfg.MutationRate = 1.5 },
		"ZeroThreshold":          func(cfg *simulation.Config) { cfg.NewVariantThreshold = 0 },
		"ThresholdAboveGenome":   func(cfg *simulation.Config) { cfg.NewVariantThreshold = cfg.GenomeLength + 1 },
		"ZeroMaxBacteria":        func(cfg *simulation.Config) { cfg.MaxBacteria = 0 },
		"NegativeGenerations":    func(cfg *simulation.Config) { cfg.Generations = -1 },
		"NegativeStrength":       func(cfg *simulation.Config) { cfg.AntibioticStrength = -1 },
		"ZeroInitialPopulation":  func(cfg *simulation.Config) { cfg.InitialPopulation = 0 },
		"InitialAboveMax":        func(cfg *simulation.Config) { cfg.InitialPopulation = cfg.MaxBacteria + 1 },
		"ZeroExpectedResistance": func(cfg *simulation.Config) { cfg.ExpectedResistance = 0 },
	}

	for name, mutate := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := simulation.DefaultConfig()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte("initial_population: 12\n"), 0o600))

	cfg, err := simulation.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 12, cfg.InitialPopulation)

	_, err = simulation.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
