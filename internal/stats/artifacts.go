package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"keyevolve/internal/fitness"
	"keyevolve/internal/model"
)

const runIndexFile = "run_index.json"

// Files every run directory carries. Plots are optional and copied by
// ExportRunArtifacts only when present.
var (
	runArtifactFiles = []string{
		"config.json",
		"fitness_history.json",
		"distance_history.json",
		"generation_diagnostics.json",
		"top_layouts.json",
		seriesFile,
		fitnessTextFile,
		distanceTextFile,
	}
	optionalArtifactFiles = []string{FitnessPlotFile, DistancePlotFile}
)

type RunConfig struct {
	RunID             string          `json:"run_id"`
	Corpus            string          `json:"corpus"`
	CorpusPolicy      string          `json:"corpus_policy"`
	CorpusLimit       int             `json:"corpus_limit,omitempty"`
	CorpusBytes       int             `json:"corpus_bytes"`
	SeedCount         int             `json:"seed_count"`
	SeedLayouts       []string        `json:"seed_layouts,omitempty"`
	EliteCount        int             `json:"elite_count"`
	OffspringPerElite int             `json:"offspring_per_elite"`
	StagnationLimit   int             `json:"stagnation_limit"`
	MaxGenerations    int             `json:"max_generations"`
	Mutation          string          `json:"mutation"`
	Selection         string          `json:"selection"`
	SwapDecay         float64         `json:"swap_decay"`
	Weights           fitness.Weights `json:"weights"`
	Seed              int64           `json:"seed"`
	Workers           int             `json:"workers"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	DistanceByGeneration  []uint64                      `json:"distance_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestFitness      float64                       `json:"final_best_fitness"`
	FinalBestDistance     uint64                        `json:"final_best_distance"`
	Converged             bool                          `json:"converged"`
	TopLayouts            []model.TopLayoutRecord       `json:"top_layouts"`
}

type RunIndexEntry struct {
	RunID             string  `json:"run_id"`
	Corpus            string  `json:"corpus"`
	SeedCount         int     `json:"seed_count"`
	EliteCount        int     `json:"elite_count"`
	Generations       int     `json:"generations"`
	Converged         bool    `json:"converged"`
	Seed              int64   `json:"seed"`
	Workers           int     `json:"workers"`
	FinalBestFitness  float64 `json:"final_best_fitness"`
	FinalBestDistance uint64  `json:"final_best_distance"`
	BestLayout        string  `json:"best_layout"`
	CreatedAtUTC      string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	if len(artifacts.BestByGeneration) != len(artifacts.DistanceByGeneration) {
		return "", fmt.Errorf("fitness and distance series differ in length: %d != %d", len(artifacts.BestByGeneration), len(artifacts.DistanceByGeneration))
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{
		"best_by_generation": artifacts.BestByGeneration,
		"final_best_fitness": artifacts.FinalBestFitness,
		"converged":          artifacts.Converged,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "distance_history.json"), map[string]any{
		"distance_by_generation": artifacts.DistanceByGeneration,
		"final_best_distance":    artifacts.FinalBestDistance,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.GenerationDiagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "top_layouts.json"), artifacts.TopLayouts); err != nil {
		return "", err
	}
	if err := WriteSeries(runDir, artifacts.BestByGeneration, artifacts.DistanceByGeneration); err != nil {
		return "", err
	}
	if err := WriteTextSeries(runDir, artifacts.BestByGeneration, artifacts.DistanceByGeneration); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the indexed runs, newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// later appends win ties
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range runArtifactFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range optionalArtifactFiles {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err == nil {
			if err := copyFile(path, filepath.Join(dst, file)); err != nil {
				return "", err
			}
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, "config.json"), &cfg)
	return cfg, ok, err
}

func ReadTopLayouts(baseDir, runID string) ([]model.TopLayoutRecord, bool, error) {
	var top []model.TopLayoutRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, "top_layouts.json"), &top)
	return top, ok, err
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, "generation_diagnostics.json"), &diagnostics)
	return diagnostics, ok, err
}

// ResolveRunID returns runID, or the newest indexed run when latest is set.
func ResolveRunID(baseDir, runID string, latest bool) (string, error) {
	runID = strings.TrimSpace(runID)
	if runID != "" && latest {
		return "", fmt.Errorf("use either run id or latest, not both")
	}
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", fmt.Errorf("run id is required")
	}
	index, err := ListRunIndex(baseDir)
	if err != nil {
		return "", err
	}
	if len(index) == 0 {
		return "", fmt.Errorf("no runs found in %s", baseDir)
	}
	return index[0].RunID, nil
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
