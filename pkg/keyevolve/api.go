// Package keyevolve is the programmatic entry point for optimising,
// scoring and inspecting keyboard layouts.
package keyevolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"keyevolve/internal/corpus"
	"keyevolve/internal/evo"
	"keyevolve/internal/fitness"
	"keyevolve/internal/keyboard"
	"keyevolve/internal/model"
	"keyevolve/internal/stats"
	"keyevolve/internal/storage"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "keyevolve.db"
	defaultTopN       = 10
	defaultRunsLimit  = 20

	// fixed width so index timestamps sort lexically
	indexTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	runsDir    string
	exportsDir string

	initMu      sync.Mutex
	initialized bool
}

type RunRequest struct {
	// RunID is generated from the corpus name, seed and start time when empty.
	RunID string
	// CorpusPath names the corpus file. CorpusText, when set, is used
	// instead and CorpusPath only labels the run.
	CorpusPath   string
	CorpusText   string
	CorpusPolicy string
	CorpusLimit  int

	SeedCount         int
	SeedLayouts       []string
	EliteCount        int
	OffspringPerElite int
	StagnationLimit   int
	MaxGenerations    int

	// Mutation and Selection name registered operators and selectors.
	Mutation  string
	Selection string
	SwapDecay float64
	Weights   *fitness.Weights
	Workers   int
	Seed      int64

	TopN      int
	Plot      bool
	LogEvery  int
	Observers []evo.Observer
}

type RunSummary struct {
	RunID                string
	ArtifactsDir         string
	BestByGeneration     []float64
	DistanceByGeneration []uint64
	FinalBestFitness     float64
	FinalBestDistance    uint64
	BestLayout           keyboard.Layout
	BestResult           fitness.Result
	Generations          int
	Converged            bool
	Corpus               corpus.Stats
	PlotFiles            []string
	Elapsed              time.Duration
}

type EvaluateRequest struct {
	// Layouts holds built-in layout names or literal 26-letter orderings.
	Layouts      []string
	CorpusPath   string
	CorpusText   string
	CorpusPolicy string
	CorpusLimit  int
	Weights      *fitness.Weights
}

type EvaluateItem struct {
	Name   string
	Layout keyboard.Layout
	Result fitness.Result
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID             string
	CreatedAtUTC      string
	Corpus            string
	Seed              int64
	SeedCount         int
	EliteCount        int
	Generations       int
	Converged         bool
	FinalBestFitness  float64
	FinalBestDistance uint64
	BestLayout        string
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DistanceHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type TopLayoutsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type PlotRequest struct {
	RunID  string
	Latest bool
}

type PlotSummary struct {
	RunID string
	Files []string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:      store,
		logger:     logger,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.SeedCount == 0 && len(req.SeedLayouts) == 0 {
		req.SeedCount = evo.DefaultSeedCount
	}
	if req.EliteCount == 0 {
		req.EliteCount = min(evo.DefaultEliteCount, req.SeedCount+len(req.SeedLayouts))
	}
	if req.OffspringPerElite == 0 {
		req.OffspringPerElite = evo.DefaultOffspringPerElite
	}
	if req.StagnationLimit == 0 {
		req.StagnationLimit = evo.DefaultStagnationLimit
	}
	if req.SwapDecay == 0 {
		req.SwapDecay = evo.DefaultSwapDecay
	}
	if req.TopN <= 0 {
		req.TopN = defaultTopN
	}
	if req.Workers <= 0 {
		req.Workers = runtime.NumCPU()
	}
	weights := fitness.DefaultWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}
	evaluator, err := fitness.NewEvaluator(weights)
	if err != nil {
		return RunSummary{}, err
	}
	policy, err := corpus.ParsePolicy(req.CorpusPolicy)
	if err != nil {
		return RunSummary{}, err
	}
	text, err := loadCorpus(req.CorpusPath, req.CorpusText, corpus.Options{Policy: policy, Limit: req.CorpusLimit})
	if err != nil {
		return RunSummary{}, err
	}
	seedLayouts, err := resolveLayouts(req.SeedLayouts)
	if err != nil {
		return RunSummary{}, err
	}
	mutation, err := evo.ResolveOperator(req.Mutation, evo.OperatorParams{SwapDecay: req.SwapDecay})
	if err != nil {
		return RunSummary{}, err
	}
	selector, err := evo.ResolveSelector(req.Selection)
	if err != nil {
		return RunSummary{}, err
	}

	started := time.Now().UTC()
	runID := strings.TrimSpace(req.RunID)
	if runID == "" {
		runID = NewRunID(req.CorpusPath, req.Seed, started)
	}
	logger := c.logger.With(slog.String("run_id", runID))

	observers := append([]evo.Observer{evo.LogObserver{Logger: logger, Every: req.LogEvery}}, req.Observers...)
	monitor, err := evo.NewPopulationMonitor(evo.MonitorConfig{
		Corpus:            text,
		Evaluator:         evaluator,
		Mutation:          mutation,
		Selector:          selector,
		SeedCount:         req.SeedCount,
		SeedLayouts:       seedLayouts,
		EliteCount:        req.EliteCount,
		OffspringPerElite: req.OffspringPerElite,
		StagnationLimit:   req.StagnationLimit,
		MaxGenerations:    req.MaxGenerations,
		Workers:           req.Workers,
		Seed:              req.Seed,
		Observers:         observers,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}

	corpusStats := corpus.Describe(text)
	logger.Info("run started",
		slog.Int("corpus_bytes", corpusStats.Bytes),
		slog.Int("seed_count", req.SeedCount),
		slog.Int("elite_count", req.EliteCount),
		slog.Int64("seed", req.Seed),
	)
	result, err := monitor.Run(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	elapsed := time.Since(started)

	best, ok := result.FinalPopulation.Best()
	if !ok {
		return RunSummary{}, errors.New("run produced an empty population")
	}
	top := topLayoutRecords(result.FinalPopulation, req.TopN)

	for _, item := range top {
		if err := c.store.SaveLayout(ctx, item.Layout); err != nil {
			return RunSummary{}, err
		}
	}
	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord:   storage.Versioned(),
		ID:                runID,
		Corpus:            req.CorpusPath,
		CorpusBytes:       corpusStats.Bytes,
		Seed:              req.Seed,
		SeedCount:         req.SeedCount,
		EliteCount:        req.EliteCount,
		OffspringPerElite: req.OffspringPerElite,
		StagnationLimit:   req.StagnationLimit,
		MaxGenerations:    req.MaxGenerations,
		Workers:           req.Workers,
		Generations:       result.Generations,
		Converged:         result.Converged,
		BestLayoutID:      best.ID,
		BestFitness:       best.Fitness,
		BestDistance:      best.TotalDistance,
		StartedAtUnix:     started.Unix(),
		ElapsedMillis:     elapsed.Milliseconds(),
	}); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveFitnessHistory(ctx, runID, result.BestByGeneration); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveDistanceHistory(ctx, runID, result.DistanceByGeneration); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveGenerationDiagnostics(ctx, runID, result.GenerationDiagnostics); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveTopLayouts(ctx, runID, top); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.runsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:             runID,
			Corpus:            req.CorpusPath,
			CorpusPolicy:      string(policy),
			CorpusLimit:       req.CorpusLimit,
			CorpusBytes:       corpusStats.Bytes,
			SeedCount:         req.SeedCount,
			SeedLayouts:       req.SeedLayouts,
			EliteCount:        req.EliteCount,
			OffspringPerElite: req.OffspringPerElite,
			StagnationLimit:   req.StagnationLimit,
			MaxGenerations:    req.MaxGenerations,
			Mutation:          mutation.Name(),
			Selection:         selector.Name(),
			SwapDecay:         req.SwapDecay,
			Weights:           weights,
			Seed:              req.Seed,
			Workers:           req.Workers,
		},
		BestByGeneration:      result.BestByGeneration,
		DistanceByGeneration:  result.DistanceByGeneration,
		GenerationDiagnostics: result.GenerationDiagnostics,
		FinalBestFitness:      best.Fitness,
		FinalBestDistance:     best.TotalDistance,
		Converged:             result.Converged,
		TopLayouts:            top,
	})
	if err != nil {
		return RunSummary{}, err
	}

	var plotFiles []string
	if req.Plot {
		plotFiles, err = stats.WritePlots(runDir, result.BestByGeneration, result.DistanceByGeneration)
		if err != nil {
			return RunSummary{}, err
		}
	}

	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:             runID,
		Corpus:            req.CorpusPath,
		SeedCount:         req.SeedCount,
		EliteCount:        req.EliteCount,
		Generations:       result.Generations,
		Converged:         result.Converged,
		Seed:              req.Seed,
		Workers:           req.Workers,
		FinalBestFitness:  best.Fitness,
		FinalBestDistance: best.TotalDistance,
		BestLayout:        best.Layout.Keys(),
		CreatedAtUTC:      started.Format(indexTimeFormat),
	}); err != nil {
		return RunSummary{}, err
	}

	logger.Info("run finished",
		slog.Int("generations", result.Generations),
		slog.Bool("converged", result.Converged),
		slog.Float64("best_fitness", best.Fitness),
		slog.Duration("elapsed", elapsed),
	)

	return RunSummary{
		RunID:                runID,
		ArtifactsDir:         filepath.Clean(runDir),
		BestByGeneration:     append([]float64(nil), result.BestByGeneration...),
		DistanceByGeneration: append([]uint64(nil), result.DistanceByGeneration...),
		FinalBestFitness:     best.Fitness,
		FinalBestDistance:    best.TotalDistance,
		BestLayout:           best.Layout,
		BestResult:           best.Result,
		Generations:          result.Generations,
		Converged:            result.Converged,
		Corpus:               corpusStats,
		PlotFiles:            plotFiles,
		Elapsed:              elapsed,
	}, nil
}

// Evaluate scores fixed layouts against a corpus without evolving them.
func (c *Client) Evaluate(_ context.Context, req EvaluateRequest) ([]EvaluateItem, error) {
	if len(req.Layouts) == 0 {
		return nil, errors.New("evaluate requires at least one layout")
	}
	weights := fitness.DefaultWeights()
	if req.Weights != nil {
		weights = *req.Weights
	}
	evaluator, err := fitness.NewEvaluator(weights)
	if err != nil {
		return nil, err
	}
	policy, err := corpus.ParsePolicy(req.CorpusPolicy)
	if err != nil {
		return nil, err
	}
	text, err := loadCorpus(req.CorpusPath, req.CorpusText, corpus.Options{Policy: policy, Limit: req.CorpusLimit})
	if err != nil {
		return nil, err
	}
	layouts, err := resolveLayouts(req.Layouts)
	if err != nil {
		return nil, err
	}

	matrix := keyboard.BuildDistanceMatrix()
	out := make([]EvaluateItem, 0, len(layouts))
	for i, layout := range layouts {
		res, err := evaluator.Evaluate(layout, text, &matrix)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", req.Layouts[i], err)
		}
		out = append(out, EvaluateItem{Name: strings.TrimSpace(req.Layouts[i]), Layout: layout, Result: res})
	}
	return out, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}

	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:             e.RunID,
			CreatedAtUTC:      e.CreatedAtUTC,
			Corpus:            e.Corpus,
			Seed:              e.Seed,
			SeedCount:         e.SeedCount,
			EliteCount:        e.EliteCount,
			Generations:       e.Generations,
			Converged:         e.Converged,
			FinalBestFitness:  e.FinalBestFitness,
			FinalBestDistance: e.FinalBestDistance,
			BestLayout:        e.BestLayout,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// FitnessHistory reads from the store and falls back to the run directory,
// so runs recorded by an earlier process stay readable with the memory
// store.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, _, ok, err = stats.ReadSeries(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) DistanceHistory(ctx context.Context, req DistanceHistoryRequest) ([]uint64, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "distance history")
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	history, ok, err := c.store.GetDistanceHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		_, history, ok, err = stats.ReadSeries(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("distance history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]uint64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]model.GenerationDiagnostics, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) TopLayouts(ctx context.Context, req TopLayoutsRequest) ([]model.TopLayoutRecord, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "top layouts")
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}

	top, ok, err := c.store.GetTopLayouts(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		top, ok, err = stats.ReadTopLayouts(c.runsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("top layouts not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	out := make([]model.TopLayoutRecord, len(top))
	copy(out, top)
	return out, nil
}

// Plot renders the fitness and distance charts of a recorded run into its
// run directory.
func (c *Client) Plot(_ context.Context, req PlotRequest) (PlotSummary, error) {
	runID, err := c.resolveRunID(req.RunID, req.Latest, "plot")
	if err != nil {
		return PlotSummary{}, err
	}
	fitnessSeries, distanceSeries, ok, err := stats.ReadSeries(c.runsDir, runID)
	if err != nil {
		return PlotSummary{}, err
	}
	if !ok {
		return PlotSummary{}, fmt.Errorf("series not found for run id: %s", runID)
	}
	files, err := stats.WritePlots(filepath.Join(c.runsDir, runID), fitnessSeries, distanceSeries)
	if err != nil {
		return PlotSummary{}, err
	}
	return PlotSummary{RunID: runID, Files: files}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if strings.TrimSpace(runID) == "" && !latest {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return stats.ResolveRunID(c.runsDir, runID, latest)
}

func (c *Client) ensureStore(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func loadCorpus(path, text string, opts corpus.Options) (string, error) {
	if text != "" {
		return corpus.Normalize(text, opts)
	}
	if path == "" {
		return "", errors.New("corpus path is required")
	}
	return corpus.Load(path, opts)
}

func resolveLayouts(names []string) ([]keyboard.Layout, error) {
	layouts := make([]keyboard.Layout, 0, len(names))
	for _, name := range names {
		layout, err := keyboard.ReferenceLayout(name)
		if err != nil {
			return nil, err
		}
		layouts = append(layouts, layout)
	}
	return layouts, nil
}

// NewRunID names a run after its corpus file, seed and start time.
func NewRunID(corpusPath string, seed int64, at time.Time) string {
	return fmt.Sprintf("%s-%d-%d", corpusLabel(corpusPath), seed, at.Unix())
}

func corpusLabel(path string) string {
	if path == "" {
		return "inline"
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func topLayoutRecords(ranked evo.Population, n int) []model.TopLayoutRecord {
	ranked = ranked.Truncate(n)
	out := make([]model.TopLayoutRecord, 0, len(ranked))
	for i, item := range ranked {
		out = append(out, model.TopLayoutRecord{
			Rank: i + 1,
			Layout: model.LayoutRecord{
				VersionedRecord: storage.Versioned(),
				ID:              item.ID,
				ParentID:        item.ParentID,
				Generation:      item.Generation,
				Origin:          string(item.Origin),
				Keys:            item.Layout.Keys(),
				Fitness:         item.Fitness,
				TotalDistance:   item.TotalDistance,
				Keystrokes:      item.Result.Keystrokes,
				FingerRepeats:   item.Result.FingerRepeats,
				HandRepeats:     item.Result.HandRepeats,
			},
		})
	}
	return out
}
