package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sjoeen/rcsim/simulation"
	"github.com/stretchr/testify/require"
)

func executeRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, text string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "sim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o600))
	return path
}

func TestRunCommand(t *testing.T) {
	dir := t.TempDir()
	statsPath := filepath.Join(dir, "stats.json")
	metricsPath := filepath.Join(dir, "rcsim.prom")
	configPath := writeConfig(t, `
genome_length: 128
initial_population: 50
max_bacteria: 200
generations: 10
`)

	stdout, _, err := executeRoot(t, "run",
		"--config", configPath,
		"--generations", "3",
		"--seed", "3",
		"--verify",
		"--stats-json", statsPath,
		"--stats-detailed",
		"--metrics-file", metricsPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	require.True(t, strings.HasPrefix(lines[0], "simulation progress: 1/3 - bacterial population "), lines[0])
	require.True(t, strings.HasSuffix(lines[2], "/200"), lines[2])
	require.True(t, strings.HasPrefix(lines[3], "SUMMARY: Avg antibiotic resistance is "), lines[3])
	require.True(t, strings.HasSuffix(lines[3], " times the expected amount"), lines[3])

	data, err := os.ReadFile(statsPath)
	require.NoError(t, err)
	var stats map[string]any
	require.NoError(t, json.Unmarshal(data, &stats))
	require.Equal(t, "population", stats["Name"])
	require.Contains(t, stats, "Blocks")

	data, err = os.ReadFile(metricsPath)
	require.NoError(t, err)
	require.Contains(t, string(data), `rcsim_arena_blocks{arena="population"}`)
}

func TestRunCommandRejectsBadInput(t *testing.T) {
	_, _, err := executeRoot(t, "run", "--log-level", "chatty")
	require.Error(t, err)

	_, _, err = executeRoot(t, "run", "--max-bacteria", "0")
	require.Error(t, err)

	_, _, err = executeRoot(t, "run", "--config", writeConfig(t, "genome_lenght: 10\n"))
	require.Error(t, err)

	_, _, err = executeRoot(t, "run", "unexpected")
	require.Error(t, err)
}

func TestProgressPrinterOnTerminal(t *testing.T) {
	var out bytes.Buffer
	printer := progressPrinter(&out, true)

	printer(simulation.Progress{Generation: 1, Generations: 2, Population: 10000, MaxPopulation: 10000})
	printer(simulation.Progress{Generation: 2, Generations: 2, Population: 999, MaxPopulation: 10000})

	require.Equal(t,
		"\rsimulation progress: 1/2 - bacterial population 10000/10000\x1b[K"+
			"\rsimulation progress: 2/2 - bacterial population 999/10000\x1b[K\n",
		out.String())
}

func TestProgressPrinterWithoutTerminal(t *testing.T) {
	var out bytes.Buffer
	printer := newProgressPrinter(&out)

	printer(simulation.Progress{Generation: 1, Generations: 2, Population: 10, MaxPopulation: 100})
	printer(simulation.Progress{Generation: 2, Generations: 2, Population: 20, MaxPopulation: 100})

	require.Equal(t,
		"simulation progress: 1/2 - bacterial population 10/100\n"+
			"simulation progress: 2/2 - bacterial population 20/100\n",
		out.String())
}
