package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"keyevolve/internal/evo"
	"keyevolve/internal/fitness"
	"keyevolve/internal/keyboard"
	"keyevolve/internal/metrics"
	"keyevolve/internal/stats"
	"keyevolve/internal/storage"
	"keyevolve/pkg/keyevolve"
)

const (
	runsDir       = "runs"
	exportsDir    = "exports"
	defaultDBPath = "keyevolve.db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "extract":
		return runExtract(ctx, args[1:])
	case "layouts":
		return runLayouts(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "distance":
		return runDistance(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "top":
		return runTop(ctx, args[1:])
	case "plot":
		return runPlot(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

type storeFlags struct {
	kind   *string
	dbPath *string
}

func addStoreFlags(fs *flag.FlagSet) storeFlags {
	return storeFlags{
		kind:   fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite"),
		dbPath: fs.String("db-path", defaultDBPath, "sqlite database path"),
	}
}

func (s storeFlags) client(logger *slog.Logger) (*keyevolve.Client, error) {
	return keyevolve.New(keyevolve.Options{
		StoreKind:  *s.kind,
		DBPath:     *s.dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
		Logger:     logger,
	})
}

type runSelectFlags struct {
	runID  *string
	latest *bool
}

func addRunSelectFlags(fs *flag.FlagSet, what string) runSelectFlags {
	return runSelectFlags{
		runID:  fs.String("run-id", "", "run id"),
		latest: fs.Bool("latest", false, fmt.Sprintf("show %s for the most recent run from run index", what)),
	}
}

func (r runSelectFlags) validate(command string) error {
	if *r.runID != "" && *r.latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *r.runID == "" && !*r.latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional JSON run config; explicit flags override it")
	runID := fs.String("run-id", "", "explicit run id (default <corpus>-<seed>-<unix>)")
	corpusPath := fs.String("corpus", "", "corpus text file")
	corpusPolicy := fs.String("corpus-policy", "strict", "corpus character policy: strict|filter")
	corpusLimit := fs.Int("corpus-limit", 0, "truncate the corpus to this many bytes (0 keeps all)")
	seedCount := fs.Int("seeds", evo.DefaultSeedCount, "random layouts in the seed generation")
	seedLayouts := fs.String("seed-layouts", "", "comma-separated reference layouts or 26-letter orderings added to the seed generation")
	eliteCount := fs.Int("elites", evo.DefaultEliteCount, "layouts kept per generation")
	offspring := fs.Int("offspring", evo.DefaultOffspringPerElite, "mutated children per elite")
	stagnation := fs.Int("stagnation", evo.DefaultStagnationLimit, "stop after this many generations without a best-fitness change")
	maxGenerations := fs.Int("max-gens", 0, "cap on generations including the seed generation (0 = until convergence)")
	mutation := fs.String("mutation", "swap", "mutation operator: "+strings.Join(evo.ListOperators(), "|"))
	selection := fs.String("selection", "truncation", "survivor selection: "+strings.Join(evo.ListSelectors(), "|"))
	swapDecay := fs.Float64("swap-decay", evo.DefaultSwapDecay, "probability decay between successive swaps of one mutation")
	defaults := fitness.DefaultWeights()
	wDistance := fs.Float64("w-distance", defaults.Distance, "weight of the distance term")
	wFingerRepeat := fs.Float64("w-finger-repeat", defaults.FingerRepeat, "weight of the same-finger repeat term")
	wHandRepeat := fs.Float64("w-hand-repeat", defaults.HandRepeat, "weight of the same-hand repeat term")
	wDeviation := fs.Float64("w-deviation", defaults.Deviation, "weight of the finger-usage deviation term")
	maxDeviation := fs.Float64("max-deviation", defaults.MaxDeviation, "deviation at which the usage term reaches zero")
	workers := fs.Int("workers", 0, "evaluation workers (0 = number of CPUs)")
	seed := fs.Int64("seed", 1, "random seed")
	topN := fs.Int("top", 10, "layouts kept in the top-layouts record")
	plotOut := fs.Bool("plot", false, "write fitness and distance PNG plots into the run directory")
	logEvery := fs.Int("log-every", 10, "log generation progress at info level every N generations")
	logLevel := fs.String("log-level", "info", "log level: debug|info|warn|error")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address while the run is active")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	logger, err := newLogger(os.Stderr, *logLevel)
	if err != nil {
		return err
	}

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = keyevolve.RunRequest{
			RunID:             *runID,
			CorpusPath:        *corpusPath,
			CorpusPolicy:      *corpusPolicy,
			CorpusLimit:       *corpusLimit,
			SeedCount:         *seedCount,
			SeedLayouts:       splitList(*seedLayouts),
			EliteCount:        *eliteCount,
			OffspringPerElite: *offspring,
			StagnationLimit:   *stagnation,
			MaxGenerations:    *maxGenerations,
			Mutation:          *mutation,
			Selection:         *selection,
			SwapDecay:         *swapDecay,
			Weights: &fitness.Weights{
				Distance:     *wDistance,
				FingerRepeat: *wFingerRepeat,
				HandRepeat:   *wHandRepeat,
				Deviation:    *wDeviation,
				MaxDeviation: *maxDeviation,
			},
			Workers:  *workers,
			Seed:     *seed,
			TopN:     *topN,
			Plot:     *plotOut,
			LogEvery: *logEvery,
		}
	} else {
		err := overrideFromFlags(&req, setFlags, map[string]any{
			"run-id":          *runID,
			"corpus":          *corpusPath,
			"corpus-policy":   *corpusPolicy,
			"corpus-limit":    *corpusLimit,
			"seeds":           *seedCount,
			"seed-layouts":    *seedLayouts,
			"elites":          *eliteCount,
			"offspring":       *offspring,
			"stagnation":      *stagnation,
			"max-gens":        *maxGenerations,
			"mutation":        *mutation,
			"selection":       *selection,
			"swap-decay":      *swapDecay,
			"w-distance":      *wDistance,
			"w-finger-repeat": *wFingerRepeat,
			"w-hand-repeat":   *wHandRepeat,
			"w-deviation":     *wDeviation,
			"max-deviation":   *maxDeviation,
			"workers":         *workers,
			"seed":            *seed,
			"top":             *topN,
			"plot":            *plotOut,
			"log-every":       *logEvery,
		})
		if err != nil {
			return err
		}
	}
	if req.CorpusPath == "" {
		return errors.New("run requires --corpus")
	}

	if *metricsAddr != "" {
		if req.RunID == "" {
			req.RunID = keyevolve.NewRunID(req.CorpusPath, req.Seed, time.Now().UTC())
		}
		observer := metrics.NewObserver(req.RunID)
		req.Observers = append(req.Observers, observer)

		serveCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			defer close(done)
			if err := observer.Serve(serveCtx, *metricsAddr, logger); err != nil {
				logger.Error("metrics server", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			cancel()
			<-done
		}()
	}

	client, err := store.client(logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if *jsonOut {
		return writeJSON(os.Stdout, map[string]any{
			"run_id":                 summary.RunID,
			"artifacts_dir":          summary.ArtifactsDir,
			"generations":            summary.Generations,
			"converged":              summary.Converged,
			"final_best_fitness":     summary.FinalBestFitness,
			"final_best_distance":    summary.FinalBestDistance,
			"best_layout":            summary.BestLayout.Keys(),
			"best_by_generation":     summary.BestByGeneration,
			"distance_by_generation": summary.DistanceByGeneration,
			"plot_files":             summary.PlotFiles,
			"elapsed_ms":             summary.Elapsed.Milliseconds(),
		})
	}

	fmt.Printf("run completed run_id=%s corpus=%s corpus_size=%s seed=%d generations=%d converged=%t elapsed=%s\n",
		summary.RunID,
		req.CorpusPath,
		humanize.Bytes(uint64(summary.Corpus.Bytes)),
		req.Seed,
		summary.Generations,
		summary.Converged,
		summary.Elapsed.Round(time.Millisecond),
	)
	fmt.Println(renderLayout(summary.BestLayout, summary.FinalBestFitness))
	fmt.Printf("final_best_fitness=%.6f final_best_distance=%s keystrokes=%s\n",
		summary.FinalBestFitness,
		humanize.CommafWithDigits(stats.DistanceUnits(summary.FinalBestDistance), 3),
		humanize.Comma(int64(summary.BestResult.Keystrokes)),
	)
	for _, file := range summary.PlotFiles {
		fmt.Printf("plot=%s\n", file)
	}
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	corpusPath := fs.String("corpus", "", "corpus text file")
	corpusPolicy := fs.String("corpus-policy", "strict", "corpus character policy: strict|filter")
	corpusLimit := fs.Int("corpus-limit", 0, "truncate the corpus to this many bytes (0 keeps all)")
	layouts := fs.String("layout", "colemak", "comma-separated reference layouts or 26-letter orderings")
	jsonOut := fs.Bool("json", false, "emit scores as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *corpusPath == "" {
		return errors.New("evaluate requires --corpus")
	}

	client, err := keyevolve.New(keyevolve.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Evaluate(ctx, keyevolve.EvaluateRequest{
		Layouts:      splitList(*layouts),
		CorpusPath:   *corpusPath,
		CorpusPolicy: *corpusPolicy,
		CorpusLimit:  *corpusLimit,
	})
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	if *jsonOut {
		out := make([]map[string]any, 0, len(items))
		for _, item := range items {
			out = append(out, map[string]any{
				"name":   item.Name,
				"keys":   item.Layout.Keys(),
				"result": item.Result,
			})
		}
		return writeJSON(os.Stdout, out)
	}

	for i, item := range items {
		if i > 0 {
			fmt.Println()
		}
		res := item.Result
		fmt.Printf("layout=%s keys=%s\n", item.Name, item.Layout.Keys())
		fmt.Println(renderLayout(item.Layout, res.Fitness))
		fmt.Printf("distance=%s keystrokes=%s finger_repeats=%s hand_repeats=%s\n",
			humanize.CommafWithDigits(stats.DistanceUnits(res.TotalDistance), 3),
			humanize.Comma(int64(res.Keystrokes)),
			humanize.Comma(int64(res.FingerRepeats)),
			humanize.Comma(int64(res.HandRepeats)),
		)
		share := res.UsageShare()
		parts := make([]string, len(share))
		for f, v := range share {
			parts[f] = fmt.Sprintf("%.3f", v)
		}
		fmt.Printf("finger_usage=%s\n", strings.Join(parts, ","))
	}
	return nil
}

func runLayouts(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("layouts", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	for _, name := range keyboard.ReferenceLayoutNames() {
		layout, err := keyboard.ReferenceLayout(name)
		if err != nil {
			return err
		}
		fmt.Printf("layout=%s keys=%s\n", name, layout.Keys())
		fmt.Println(layout.String())
	}
	fmt.Printf("mutations=%s\n", strings.Join(evo.ListOperators(), ","))
	fmt.Printf("selections=%s\n", strings.Join(evo.ListSelectors(), ","))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := keyevolve.New(keyevolve.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, keyevolve.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(os.Stdout, items)
	}
	if len(items) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	for _, item := range items {
		created := item.CreatedAtUTC
		if at, err := time.Parse(time.RFC3339Nano, item.CreatedAtUTC); err == nil {
			created = humanize.Time(at)
		}
		fmt.Printf("run_id=%s created=%q corpus=%s seed=%d seeds=%d elites=%d generations=%d converged=%t best_fitness=%.6f best_distance=%s layout=%s\n",
			item.RunID,
			created,
			item.Corpus,
			item.Seed,
			item.SeedCount,
			item.EliteCount,
			item.Generations,
			item.Converged,
			item.FinalBestFitness,
			humanize.CommafWithDigits(stats.DistanceUnits(item.FinalBestDistance), 3),
			item.BestLayout,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	sel := addRunSelectFlags(fs, "fitness history")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("fitness"); err != nil {
		return err
	}

	client, err := store.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, keyevolve.FitnessHistoryRequest{
		RunID:  *sel.runID,
		Latest: *sel.latest,
		Limit:  max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		return writeJSON(os.Stdout, history)
	}
	for i, best := range history {
		fmt.Printf("generation=%d best_fitness=%.6f\n", i, best)
	}
	return nil
}

func runDistance(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("distance", flag.ContinueOnError)
	sel := addRunSelectFlags(fs, "distance history")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit distance history as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("distance"); err != nil {
		return err
	}

	client, err := store.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.DistanceHistory(ctx, keyevolve.DistanceHistoryRequest{
		RunID:  *sel.runID,
		Latest: *sel.latest,
		Limit:  max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no distance history")
		return nil
	}
	if *jsonOut {
		return writeJSON(os.Stdout, history)
	}
	for i, best := range history {
		fmt.Printf("generation=%d best_distance=%s\n", i, stats.FormatDecimalComma(stats.DistanceUnits(best)))
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	sel := addRunSelectFlags(fs, "diagnostics")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("diagnostics"); err != nil {
		return err
	}

	client, err := store.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, keyevolve.DiagnosticsRequest{
		RunID:  *sel.runID,
		Latest: *sel.latest,
		Limit:  max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(os.Stdout, diagnostics)
	}
	for _, d := range diagnostics {
		fmt.Printf("generation=%d population=%d evaluated=%d best=%.6f mean=%.6f std=%.6f min=%.6f best_distance=%d mean_swaps=%.3f distinct=%d stagnation=%d\n",
			d.Generation,
			d.PopulationSize,
			d.Evaluated,
			d.BestFitness,
			d.MeanFitness,
			d.StdDevFitness,
			d.MinFitness,
			d.BestDistance,
			d.MeanSwaps,
			d.DistinctLayout,
			d.Stagnation,
		)
	}
	return nil
}

func runTop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("top", flag.ContinueOnError)
	sel := addRunSelectFlags(fs, "top layouts")
	limit := fs.Int("limit", 5, "max layouts to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit top layouts as JSON")
	store := addStoreFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("top"); err != nil {
		return err
	}

	client, err := store.client(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	top, err := client.TopLayouts(ctx, keyevolve.TopLayoutsRequest{
		RunID:  *sel.runID,
		Latest: *sel.latest,
		Limit:  max(*limit, 0),
	})
	if err != nil {
		return err
	}
	if len(top) == 0 {
		fmt.Println("no top layouts")
		return nil
	}
	if *jsonOut {
		return writeJSON(os.Stdout, top)
	}
	for _, item := range top {
		layout, err := keyboard.FromFixedMapping(item.Layout.Keys)
		if err != nil {
			return fmt.Errorf("top layout %d: %w", item.Rank, err)
		}
		fmt.Printf("rank=%d id=%s generation=%d origin=%s distance=%s keys=%s\n",
			item.Rank,
			item.Layout.ID,
			item.Layout.Generation,
			item.Layout.Origin,
			humanize.CommafWithDigits(stats.DistanceUnits(item.Layout.TotalDistance), 3),
			item.Layout.Keys,
		)
		fmt.Println(renderLayout(layout, item.Layout.Fitness))
	}
	return nil
}

func runPlot(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("plot", flag.ContinueOnError)
	sel := addRunSelectFlags(fs, "plots")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("plot"); err != nil {
		return err
	}

	client, err := keyevolve.New(keyevolve.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Plot(ctx, keyevolve.PlotRequest{RunID: *sel.runID, Latest: *sel.latest})
	if err != nil {
		return err
	}
	for _, file := range summary.Files {
		fmt.Printf("plotted run_id=%s file=%s\n", summary.RunID, filepath.Clean(file))
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	sel := addRunSelectFlags(fs, "export")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := sel.validate("export"); err != nil {
		return err
	}

	client, err := keyevolve.New(keyevolve.Options{StoreKind: "memory", RunsDir: runsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, keyevolve.ExportRequest{RunID: *sel.runID, Latest: *sel.latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

// renderLayout prints the three key rows with the fitness beside the home
// row.
func renderLayout(layout keyboard.Layout, score float64) string {
	rows := layout.Rows()
	rows[1] += fmt.Sprintf(" - Fitness: %.6f", score)
	return strings.Join(rows[:], "\n")
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: keyevolvectl <run|evaluate|extract|layouts|runs|fitness|distance|diagnostics|top|plot|export> [flags]", msg)
}
