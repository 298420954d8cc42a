package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyevolve/internal/keyboard"
	"keyevolve/internal/stats"
)

const testCorpusText = "thequickbrownfoxjumpsoverthelazydog\npackmyboxwithfivedozenliquorjugs\nsphinxofblackquartzjudgemyvow\n"

// chdir changes the working directory for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		require.NoError(t, os.Chdir(prev))
	})
}

func writeCorpus(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "pangrams.txt")
	require.NoError(t, os.WriteFile(path, []byte(testCorpusText), 0o644))
	return path
}

func TestRunCommandCreatesArtifactsAndReadCommandsFindThem(t *testing.T) {
	workdir := t.TempDir()
	chdir(t, workdir)
	corpusPath := writeCorpus(t, workdir)
	ctx := context.Background()

	err := run(ctx, []string{
		"run",
		"--store", "memory",
		"--corpus", corpusPath,
		"--seeds", "20",
		"--elites", "4",
		"--offspring", "3",
		"--stagnation", "3",
		"--max-gens", "25",
		"--seed", "11",
		"--workers", "2",
		"--seed-layouts", "colemak",
		"--plot",
		"--log-level", "warn",
	})
	require.NoError(t, err)

	entries, err := stats.ListRunIndex(runsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	runID := entries[0].RunID
	assert.True(t, strings.HasPrefix(runID, "pangrams-11-"), runID)

	for _, file := range []string{"config.json", "series.csv", "fitness.txt", "distance.txt", "top_layouts.json", stats.FitnessPlotFile, stats.DistancePlotFile} {
		_, err := os.Stat(filepath.Join(runsDir, runID, file))
		assert.NoError(t, err, file)
	}

	cfg, ok, err := stats.ReadRunConfig(runsDir, runID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"colemak"}, cfg.SeedLayouts)
	assert.Equal(t, 20, cfg.SeedCount)

	// each command opens a fresh memory store and reads the run directory
	require.NoError(t, run(ctx, []string{"runs", "--limit", "5"}))
	require.NoError(t, run(ctx, []string{"fitness", "--store", "memory", "--latest"}))
	require.NoError(t, run(ctx, []string{"distance", "--store", "memory", "--run-id", runID, "--json"}))
	require.NoError(t, run(ctx, []string{"diagnostics", "--store", "memory", "--latest", "--limit", "2"}))
	require.NoError(t, run(ctx, []string{"top", "--store", "memory", "--latest", "--limit", "2"}))
	require.NoError(t, run(ctx, []string{"plot", "--latest"}))
	require.NoError(t, run(ctx, []string{"export", "--latest", "--out", "out"}))

	_, err = os.Stat(filepath.Join("out", runID, "series.csv"))
	assert.NoError(t, err)
}

func TestRunCommandUsesConfigWithFlagOverrides(t *testing.T) {
	workdir := t.TempDir()
	chdir(t, workdir)
	corpusPath := writeCorpus(t, workdir)

	configPath := filepath.Join(workdir, "run.json")
	require.NoError(t, os.WriteFile(configPath, []byte(`{
		"run_id": "configured",
		"corpus": "`+filepath.ToSlash(corpusPath)+`",
		"seed_count": 12,
		"elite_count": 3,
		"offspring_per_elite": 2,
		"stagnation_limit": 2,
		"max_generations": 4,
		"seed": 5,
		"workers": 1
	}`), 0o644))

	err := run(context.Background(), []string{"run", "--store", "memory", "--config", configPath, "--seed", "6", "--log-level", "error"})
	require.NoError(t, err)

	cfg, ok, err := stats.ReadRunConfig(runsDir, "configured")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(6), cfg.Seed)
	assert.Equal(t, 12, cfg.SeedCount)
	assert.Equal(t, 4, cfg.MaxGenerations)
}

func TestEvaluateAndExtractCommands(t *testing.T) {
	workdir := t.TempDir()
	chdir(t, workdir)
	corpusPath := writeCorpus(t, workdir)
	ctx := context.Background()

	require.NoError(t, run(ctx, []string{"evaluate", "--corpus", corpusPath, "--layout", "colemak,alphabetical"}))
	require.NoError(t, run(ctx, []string{"evaluate", "--corpus", corpusPath, "--json"}))
	assert.Error(t, run(ctx, []string{"evaluate", "--corpus", corpusPath, "--layout", "qwerty"}))
	assert.Error(t, run(ctx, []string{"evaluate"}))

	csvPath := filepath.Join(workdir, "abstracts.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("1,a,\"Hello, World!\"\n2,b,Second line 2\n"), 0o644))
	outPath := filepath.Join(workdir, "corpus", "abstracts.txt")
	require.NoError(t, run(ctx, []string{"extract", "--in", csvPath, "--out", outPath}))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "helloworld\nsecondline\n", string(data))

	require.NoError(t, run(ctx, []string{"evaluate", "--corpus", outPath}))
	assert.Error(t, run(ctx, []string{"extract", "--in", csvPath}))
	assert.Error(t, run(ctx, []string{"extract", "--in", csvPath, "--out", outPath, "--text-col", "abstract"}))
}

func TestCommandValidation(t *testing.T) {
	chdir(t, t.TempDir())
	ctx := context.Background()

	tests := []struct {
		name string
		args []string
	}{
		{"missing command", nil},
		{"unknown command", []string{"train"}},
		{"run without corpus", []string{"run", "--store", "memory"}},
		{"run bad log level", []string{"run", "--log-level", "loud"}},
		{"fitness needs selection", []string{"fitness", "--store", "memory"}},
		{"fitness both selections", []string{"fitness", "--store", "memory", "--run-id", "x", "--latest"}},
		{"top latest without runs", []string{"top", "--store", "memory", "--latest"}},
		{"export unknown run", []string{"export", "--run-id", "missing"}},
		{"runs zero limit", []string{"runs", "--limit", "0"}},
		{"plot needs selection", []string{"plot"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, run(ctx, tc.args))
		})
	}
}

func TestLayoutsCommand(t *testing.T) {
	assert.NoError(t, run(context.Background(), []string{"layouts"}))
}

func TestRenderLayoutPutsFitnessBesideHomeRow(t *testing.T) {
	colemak, err := keyboard.ReferenceLayout("colemak")
	require.NoError(t, err)

	lines := strings.Split(renderLayout(colemak, 12.5), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, " WFPG  JLUY", lines[0])
	assert.Equal(t, "ARSTD  HNEIO - Fitness: 12.500000", lines[1])
	assert.Equal(t, "ZXCV    MKBQ", lines[2])
}

func TestNewLoggerHonoursLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
	assert.Contains(t, buf.String(), "k=1")
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"colemak", "alphabetical"}, splitList(" colemak, ,alphabetical "))
	assert.Nil(t, splitList(""))
}
