package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keyevolve/internal/fitness"
	"keyevolve/pkg/keyevolve"
)

func TestLoadRunRequestFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_config.json")
	payload := map[string]any{
		"run_id":              "abstracts-run",
		"corpus":              "corpus/abstracts.txt",
		"corpus_policy":       "filter",
		"corpus_limit":        100000,
		"seed_count":          10000,
		"seed_layouts":        []any{"colemak", "alphabetical"},
		"elite_count":         100,
		"offspring_per_elite": 9,
		"stagnation_limit":    100,
		"max_generations":     500,
		"mutation":            "swap",
		"selection":           "truncation",
		"swap_decay":          0.5,
		"workers":             8,
		"seed":                77,
		"top":                 20,
		"plot":                true,
		"log_every":           25,
		"weights": map[string]any{
			"distance":  40,
			"deviation": 10.5,
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	req, err := loadRunRequestFromConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "abstracts-run", req.RunID)
	assert.Equal(t, "corpus/abstracts.txt", req.CorpusPath)
	assert.Equal(t, "filter", req.CorpusPolicy)
	assert.Equal(t, 100000, req.CorpusLimit)
	assert.Equal(t, 10000, req.SeedCount)
	assert.Equal(t, []string{"colemak", "alphabetical"}, req.SeedLayouts)
	assert.Equal(t, 100, req.EliteCount)
	assert.Equal(t, 9, req.OffspringPerElite)
	assert.Equal(t, 100, req.StagnationLimit)
	assert.Equal(t, 500, req.MaxGenerations)
	assert.Equal(t, "swap", req.Mutation)
	assert.Equal(t, "truncation", req.Selection)
	assert.Equal(t, 0.5, req.SwapDecay)
	assert.Equal(t, 8, req.Workers)
	assert.Equal(t, int64(77), req.Seed)
	assert.Equal(t, 20, req.TopN)
	assert.True(t, req.Plot)
	assert.Equal(t, 25, req.LogEvery)

	require.NotNil(t, req.Weights)
	want := fitness.DefaultWeights()
	want.Distance = 40
	want.Deviation = 10.5
	assert.Equal(t, want, *req.Weights)
}

func TestLoadRunRequestSeedLayoutsAsString(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run_config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"seed_layouts": "colemak, alphabetical"}`), 0o644))

	req, err := loadRunRequestFromConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"colemak", "alphabetical"}, req.SeedLayouts)
	assert.Nil(t, req.Weights)
}

func TestLoadOrDefaultRunRequest(t *testing.T) {
	req, err := loadOrDefaultRunRequest("")
	require.NoError(t, err)
	assert.Equal(t, keyevolve.RunRequest{}, req)

	_, err = loadOrDefaultRunRequest(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "load config")

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = loadOrDefaultRunRequest(bad)
	assert.Error(t, err)
}

func TestOverrideFromFlagsOnlyTouchesSetFlags(t *testing.T) {
	req := keyevolve.RunRequest{
		CorpusPath: "a.txt",
		SeedCount:  50,
		Seed:       1,
	}
	set := map[string]bool{"seed": true, "w-hand-repeat": true, "json": true}
	values := map[string]any{
		"corpus":        "b.txt",
		"seeds":         10,
		"seed":          int64(9),
		"w-hand-repeat": 3.0,
	}
	require.NoError(t, overrideFromFlags(&req, set, values))

	assert.Equal(t, "a.txt", req.CorpusPath)
	assert.Equal(t, 50, req.SeedCount)
	assert.Equal(t, int64(9), req.Seed)
	require.NotNil(t, req.Weights)
	assert.Equal(t, 3.0, req.Weights.HandRepeat)
	assert.Equal(t, fitness.DefaultWeights().Distance, req.Weights.Distance)
}

func TestOverrideFromFlagsKeepsConfigWeights(t *testing.T) {
	custom := fitness.Weights{Distance: 10, MaxDeviation: 2}
	req := keyevolve.RunRequest{Weights: &custom}
	require.NoError(t, overrideFromFlags(&req, map[string]bool{"workers": true}, map[string]any{"workers": 4}))

	assert.Equal(t, 4, req.Workers)
	assert.Equal(t, &custom, req.Weights)
}
