package keyevolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyevolve/internal/evo"
	"keyevolve/internal/fitness"
	"keyevolve/internal/keyboard"
	"keyevolve/internal/stats"
)

const testCorpusText = "thequickbrownfoxjumpsoverthelazydog\npackmyboxwithfivedozenliquorjugs\nsphinxofblackquartzjudgemyvow\n"

func newTestClient(t *testing.T, base string) *Client {
	t.Helper()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func smallRunRequest() RunRequest {
	return RunRequest{
		CorpusPath:        "pangrams.txt",
		CorpusText:        testCorpusText,
		SeedCount:         24,
		EliteCount:        4,
		OffspringPerElite: 3,
		StagnationLimit:   4,
		MaxGenerations:    30,
		Workers:           2,
		Seed:              7,
		TopN:              3,
	}
}

func TestClientRunRunsAndExport(t *testing.T) {
	base := t.TempDir()
	client := newTestClient(t, base)
	ctx := context.Background()

	req := smallRunRequest()
	req.Plot = true
	summary, err := client.Run(ctx, req)
	require.NoError(t, err)
	require.NotEmpty(t, summary.RunID)
	assert.Contains(t, summary.RunID, "pangrams-7-")
	require.NotEmpty(t, summary.BestByGeneration)
	assert.Len(t, summary.DistanceByGeneration, len(summary.BestByGeneration))
	assert.Equal(t, summary.BestByGeneration[len(summary.BestByGeneration)-1], summary.FinalBestFitness)
	require.NoError(t, summary.BestLayout.Validate())
	assert.Equal(t, summary.FinalBestFitness, summary.BestResult.Fitness)
	assert.Len(t, summary.PlotFiles, 2)

	for _, file := range []string{"config.json", "series.csv", "fitness.txt", "distance.txt", stats.FitnessPlotFile} {
		_, err := os.Stat(filepath.Join(summary.ArtifactsDir, file))
		assert.NoError(t, err, file)
	}

	runs, err := client.Runs(ctx, RunsRequest{Limit: 5})
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, summary.RunID, runs[0].RunID)
	assert.Equal(t, summary.BestLayout.Keys(), runs[0].BestLayout)

	history, err := client.FitnessHistory(ctx, FitnessHistoryRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.BestByGeneration, history)

	distance, err := client.DistanceHistory(ctx, DistanceHistoryRequest{RunID: summary.RunID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, summary.DistanceByGeneration[:2], distance)

	diagnostics, err := client.Diagnostics(ctx, DiagnosticsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.Len(t, diagnostics, summary.Generations)
	assert.Equal(t, req.SeedCount, diagnostics[0].PopulationSize)

	top, err := client.TopLayouts(ctx, TopLayoutsRequest{RunID: summary.RunID})
	require.NoError(t, err)
	require.Len(t, top, req.TopN)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, summary.BestLayout.Keys(), top[0].Layout.Keys)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Layout.Fitness, top[i].Layout.Fitness)
	}

	exported, err := client.Export(ctx, ExportRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, exported.RunID)
	_, err = os.Stat(filepath.Join(exported.Directory, "top_layouts.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(exported.Directory, stats.DistancePlotFile))
	assert.NoError(t, err)
}

func TestClientReadsRunsRecordedByEarlierProcess(t *testing.T) {
	base := t.TempDir()
	ctx := context.Background()

	summary, err := newTestClient(t, base).Run(ctx, smallRunRequest())
	require.NoError(t, err)

	// a fresh memory store knows nothing, so reads come from the run directory
	later := newTestClient(t, base)
	history, err := later.FitnessHistory(ctx, FitnessHistoryRequest{RunID: summary.RunID})
	require.NoError(t, err)
	assert.Equal(t, summary.BestByGeneration, history)

	distance, err := later.DistanceHistory(ctx, DistanceHistoryRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.DistanceByGeneration, distance)

	top, err := later.TopLayouts(ctx, TopLayoutsRequest{Latest: true, Limit: 1})
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, summary.BestLayout.Keys(), top[0].Layout.Keys)

	diagnostics, err := later.Diagnostics(ctx, DiagnosticsRequest{Latest: true})
	require.NoError(t, err)
	assert.Len(t, diagnostics, summary.Generations)

	plotted, err := later.Plot(ctx, PlotRequest{Latest: true})
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, plotted.RunID)
	assert.Len(t, plotted.Files, 2)
}

func TestClientRunIsDeterministicForSeed(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	first := smallRunRequest()
	first.RunID = "first"
	second := smallRunRequest()
	second.RunID = "second"
	second.Workers = 3

	a, err := client.Run(ctx, first)
	require.NoError(t, err)
	b, err := client.Run(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, a.BestByGeneration, b.BestByGeneration)
	assert.Equal(t, a.BestLayout, b.BestLayout)
}

func TestClientRunRejectsBadInput(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	req := smallRunRequest()
	req.CorpusText = "Capital Letters"
	_, err := client.Run(ctx, req)
	assert.Error(t, err)

	req = smallRunRequest()
	req.CorpusPolicy = "lenient"
	_, err = client.Run(ctx, req)
	assert.Error(t, err)

	req = smallRunRequest()
	req.SeedLayouts = []string{"dvorak"}
	_, err = client.Run(ctx, req)
	assert.Error(t, err)

	req = smallRunRequest()
	req.Weights = &fitness.Weights{Distance: -1}
	_, err = client.Run(ctx, req)
	assert.Error(t, err)

	req = smallRunRequest()
	req.Mutation = "crossover"
	_, err = client.Run(ctx, req)
	assert.ErrorIs(t, err, evo.ErrOperatorNotFound)

	req = smallRunRequest()
	req.Selection = "roulette"
	_, err = client.Run(ctx, req)
	assert.ErrorIs(t, err, evo.ErrSelectorNotFound)

	req = smallRunRequest()
	req.CorpusText = ""
	req.CorpusPath = ""
	_, err = client.Run(ctx, req)
	assert.Error(t, err)
}

func TestClientRunFiltersCorpusAndSeedsLayouts(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	req := smallRunRequest()
	req.CorpusText = "The Quick, Brown Fox!\r\nJumps over the lazy dog."
	req.CorpusPolicy = "filter"
	req.SeedCount = 0
	req.SeedLayouts = []string{"colemak", "alphabetical"}
	req.EliteCount = 2
	req.MaxGenerations = 2

	summary, err := client.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Corpus.Lines)
	assert.Len(t, summary.BestByGeneration, 2)
}

func TestClientEvaluate(t *testing.T) {
	client := newTestClient(t, t.TempDir())

	items, err := client.Evaluate(context.Background(), EvaluateRequest{
		Layouts:    []string{"colemak", "alphabetical"},
		CorpusText: testCorpusText,
	})
	require.NoError(t, err)
	require.Len(t, items, 2)

	colemak, err := keyboard.ReferenceLayout("colemak")
	require.NoError(t, err)
	assert.Equal(t, "colemak", items[0].Name)
	assert.Equal(t, colemak, items[0].Layout)

	matrix := keyboard.BuildDistanceMatrix()
	want, err := fitness.Evaluator{Weights: fitness.DefaultWeights()}.Evaluate(colemak, testCorpusText, &matrix)
	require.NoError(t, err)
	assert.Equal(t, want, items[0].Result)

	_, err = client.Evaluate(context.Background(), EvaluateRequest{CorpusText: testCorpusText})
	assert.Error(t, err)
}

func TestClientReadRequestValidation(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t, t.TempDir())

	_, err := client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: "x", Latest: true})
	assert.Error(t, err)
	_, err = client.FitnessHistory(ctx, FitnessHistoryRequest{})
	assert.Error(t, err)
	_, err = client.Diagnostics(ctx, DiagnosticsRequest{RunID: "x", Limit: -1})
	assert.Error(t, err)
	_, err = client.TopLayouts(ctx, TopLayoutsRequest{Latest: true})
	assert.Error(t, err, "no runs recorded yet")
	_, err = client.DistanceHistory(ctx, DistanceHistoryRequest{RunID: "missing"})
	assert.ErrorContains(t, err, "not found")
	_, err = client.Export(ctx, ExportRequest{})
	assert.Error(t, err)
	_, err = client.Plot(ctx, PlotRequest{RunID: "missing"})
	assert.Error(t, err)
}
