package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rcsim",
		Short: "Simulate antibiotic resistance on a reference-counted arena",
		Long: `rcsim breeds a population of bacteria under antibiotic pressure. Every bacterium
keeps its genome in a private arena block and shares a variant block with the relatives
it has not diverged from, so the arena's reference counts track the population's lineages.`,
		Version:      "0.1.0",
		SilenceUsage: true,
	}

	cmd.AddCommand(newRunCmd())
	return cmd
}
