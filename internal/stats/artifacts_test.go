package stats

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyevolve/internal/fitness"
	"keyevolve/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	return RunArtifacts{
		Config: RunConfig{
			RunID:             runID,
			Corpus:            "corpus.txt",
			CorpusPolicy:      "strict",
			SeedCount:         50,
			EliteCount:        5,
			OffspringPerElite: 9,
			StagnationLimit:   3,
			SwapDecay:         0.75,
			Weights:           fitness.DefaultWeights(),
			Seed:              42,
			Workers:           2,
		},
		BestByGeneration:     []float64{50.5, 60.25, 60.25},
		DistanceByGeneration: []uint64{4000, 3500, 3500},
		GenerationDiagnostics: []model.GenerationDiagnostics{
			{Generation: 0, BestFitness: 50.5},
			{Generation: 1, BestFitness: 60.25},
			{Generation: 2, BestFitness: 60.25, Stagnation: 1},
		},
		FinalBestFitness:  60.25,
		FinalBestDistance: 3500,
		TopLayouts: []model.TopLayoutRecord{
			{Rank: 1, Layout: model.LayoutRecord{ID: "l1", Keys: "wfpgjluyarstdhneiozxcvmkbq", Fitness: 60.25}},
		},
	}
}

func TestWriteRunArtifactsAndReadBack(t *testing.T) {
	base := t.TempDir()
	runDir, err := WriteRunArtifacts(base, sampleArtifacts("run-a"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-a"), runDir)

	for _, file := range runArtifactFiles {
		_, err := os.Stat(filepath.Join(runDir, file))
		assert.NoError(t, err, file)
	}

	cfg, ok, err := ReadRunConfig(base, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, fitness.DefaultWeights(), cfg.Weights)

	top, ok, err := ReadTopLayouts(base, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "l1", top[0].Layout.ID)

	diags, ok, err := ReadGenerationDiagnostics(base, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, diags, 3)

	fitnessSeries, distanceSeries, ok, err := ReadSeries(base, "run-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []float64{50.5, 60.25, 60.25}, fitnessSeries)
	assert.Equal(t, []uint64{4000, 3500, 3500}, distanceSeries)

	_, ok, err = ReadRunConfig(base, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteRunArtifactsValidates(t *testing.T) {
	_, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{})
	assert.Error(t, err)

	artifacts := sampleArtifacts("run-b")
	artifacts.DistanceByGeneration = artifacts.DistanceByGeneration[:1]
	_, err = WriteRunArtifacts(t.TempDir(), artifacts)
	assert.Error(t, err)
}

func TestTextSeriesUseDecimalComma(t *testing.T) {
	base := t.TempDir()
	runDir, err := WriteRunArtifacts(base, sampleArtifacts("run-c"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(runDir, fitnessTextFile))
	require.NoError(t, err)
	assert.Equal(t, "50,5\n60,25\n60,25\n", string(data))

	data, err = os.ReadFile(filepath.Join(runDir, distanceTextFile))
	require.NoError(t, err)
	assert.Equal(t, "4\n3,5\n3,5\n", string(data))
}

func TestRunIndexNewestFirstAndReplace(t *testing.T) {
	base := t.TempDir()
	require.NoError(t, AppendRunIndex(base, RunIndexEntry{RunID: "old", CreatedAtUTC: "2026-01-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(base, RunIndexEntry{RunID: "new", CreatedAtUTC: "2026-02-01T00:00:00Z"}))
	require.NoError(t, AppendRunIndex(base, RunIndexEntry{RunID: "old", CreatedAtUTC: "2026-01-01T00:00:00Z", Generations: 9}))

	index, err := ListRunIndex(base)
	require.NoError(t, err)
	require.Len(t, index, 2)
	assert.Equal(t, "new", index[0].RunID)
	assert.Equal(t, 9, index[1].Generations)

	latest, err := ResolveRunID(base, "", true)
	require.NoError(t, err)
	assert.Equal(t, "new", latest)

	_, err = ResolveRunID(base, "old", true)
	assert.Error(t, err)
	_, err = ResolveRunID(base, "", false)
	assert.Error(t, err)
	_, err = ResolveRunID(t.TempDir(), "", true)
	assert.Error(t, err)

	assert.Error(t, AppendRunIndex(base, RunIndexEntry{}))
}

func TestExportRunArtifactsCopiesOptionalPlots(t *testing.T) {
	base := t.TempDir()
	runDir, err := WriteRunArtifacts(base, sampleArtifacts("run-d"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(runDir, FitnessPlotFile), []byte("png"), 0o644))

	out := t.TempDir()
	dst, err := ExportRunArtifacts(base, "run-d", out)
	require.NoError(t, err)
	for _, file := range append(runArtifactFiles, FitnessPlotFile) {
		_, err := os.Stat(filepath.Join(dst, file))
		assert.NoError(t, err, file)
	}
	_, err = os.Stat(filepath.Join(dst, DistancePlotFile))
	assert.True(t, os.IsNotExist(err))

	_, err = ExportRunArtifacts(base, "missing", out)
	assert.Error(t, err)
}

func TestWritePlots(t *testing.T) {
	dir := t.TempDir()
	paths, err := WritePlots(dir, []float64{1, 2, 3}, []uint64{3000, 2500, 2000})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	for _, path := range paths {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}

	_, err = WritePlots(dir, nil, nil)
	assert.Error(t, err)
}

func TestFormatDecimalComma(t *testing.T) {
	assert.Equal(t, "58,35", FormatDecimalComma(58.35))
	assert.Equal(t, "3", FormatDecimalComma(3))
	assert.Equal(t, "-0,5", FormatDecimalComma(-0.5))
}
