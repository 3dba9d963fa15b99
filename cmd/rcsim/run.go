package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-isatty"
	"github.com/sjoeen/rcsim/metrics"
	"github.com/sjoeen/rcsim/rc"
	"github.com/sjoeen/rcsim/simulation"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

type runOptions struct {
	configPath    string
	generations   int
	maxBacteria   int
	seed          uint64
	logLevel      string
	statsJSON     string
	statsDetailed bool
	metricsFile   string
	verify        bool
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation and print the average resistance",
		Long: `The run command seeds a population, simulates the configured number of
generations and reports the population's average resistance relative to an
unselected population.

Example:
  rcsim run
  rcsim run --config sim.yaml --generations 100 --verify
  rcsim run --seed 42 --stats-json stats.json --metrics-file rcsim.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "YAML file with simulation parameters")
	flags.IntVar(&opts.generations, "generations", 0, "Number of generations to simulate (overrides the config)")
	flags.IntVar(&opts.maxBacteria, "max-bacteria", 0, "Population cap (overrides the config)")
	flags.Uint64Var(&opts.seed, "seed", 0, "Random seed, 0 seeds from the clock (overrides the config)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	flags.StringVar(&opts.statsJSON, "stats-json", "", "Write the arena's statistics as JSON to this file")
	flags.BoolVar(&opts.statsDetailed, "stats-detailed", false, "Include every live block in the JSON statistics")
	flags.StringVar(&opts.metricsFile, "metrics-file", "", "Write the arena's statistics as a Prometheus textfile")
	flags.BoolVar(&opts.verify, "verify", false, "Check every reference count against the population after the run")

	return cmd
}

func loadRunConfig(cmd *cobra.Command, opts *runOptions) (simulation.Config, error) {
	cfg := simulation.DefaultConfig()
	if opts.configPath != "" {
		var err error
		cfg, err = simulation.LoadConfig(opts.configPath)
		if err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("generations") {
		cfg.Generations = opts.generations
	}
	if flags.Changed("max-bacteria") {
		cfg.MaxBacteria = opts.maxBacteria
	}
	if flags.Changed("seed") {
		cfg.Seed = opts.seed
	}

	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var levelVar slog.LevelVar
	err := levelVar.UnmarshalText([]byte(level))
	if err != nil {
		return nil, errors.Wrapf(err, "invalid log level %q", level)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: &levelVar})), nil
}

func runSimulation(cmd *cobra.Command, opts *runOptions) error {
	out := cmd.OutOrStdout()

	logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
	if err != nil {
		return err
	}

	cfg, err := loadRunConfig(cmd, opts)
	if err != nil {
		return err
	}

	arena, err := rc.New(logger, rc.CreateOptions{
		Flags: rc.ArenaCreateExternallySynchronized,
		Name:  "population",
	})
	if err != nil {
		return err
	}

	population, err := simulation.NewPopulation(logger, arena, cfg)
	if err != nil {
		return err
	}

	err = population.Seed()
	if err == nil {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		err = population.Run(ctx, newProgressPrinter(out))
		stop()
	}
	if err == nil {
		err = report(out, logger, opts, population, arena)
	}

	destroyErr := population.Destroy()
	if destroyErr == nil {
		destroyErr = arena.Destroy()
	}

	return errors.CombineErrors(err, destroyErr)
}

func report(out io.Writer, logger *slog.Logger, opts *runOptions, population *simulation.Population, arena *rc.Arena) error {
	if opts.verify {
		shares, err := population.VerifyShares(arena)
		if err != nil {
			return errors.Wrap(err, "reference counts do not match the population")
		}
		if shares.Blocks() != arena.BlockCount() {
			return errors.AssertionFailedf("the population holds %d blocks but the arena has %d live blocks",
				shares.Blocks(), arena.BlockCount())
		}

		logger.Info("reference counts verified",
			slog.Int("bacteria", shares.Bacteria),
			slog.Int("variants", shares.Variants),
			slog.Int("sharedVariants", shares.SharedVariants),
			slog.Int("largestLineage", shares.LargestLineage))
	}

	if opts.statsJSON != "" {
		err := os.WriteFile(opts.statsJSON, []byte(arena.BuildStatsString(opts.statsDetailed)), 0o644)
		if err != nil {
			return errors.Wrapf(err, "failed to write statistics to %s", opts.statsJSON)
		}
	}

	if opts.metricsFile != "" {
		err := metrics.WriteTextfile(opts.metricsFile, arena)
		if err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(out, "SUMMARY: Avg antibiotic resistance is %f times the expected amount\n", population.Summary())
	return err
}

// newProgressPrinter redraws a single progress line on terminals and prints one line per
// generation everywhere else
func newProgressPrinter(out io.Writer) func(simulation.Progress) {
	return progressPrinter(out, isTerminal(out))
}

func progressPrinter(out io.Writer, terminal bool) func(simulation.Progress) {
	return func(progress simulation.Progress) {
		line := fmt.Sprintf("simulation progress: %d/%d - bacterial population %d/%d",
			progress.Generation, progress.Generations, progress.Population, progress.MaxPopulation)

		if !terminal {
			fmt.Fprintln(out, line)
			return
		}

		// erase whatever is left of a longer previous line
		fmt.Fprint(out, "\r"+line+clearToEndOfLine)
		if progress.Generation == progress.Generations || progress.Population == 0 {
			fmt.Fprintln(out)
		}
	}
}

const clearToEndOfLine = "\x1b[K"

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
