package evo

import (
	"context"
	"log/slog"

	"keyevolve/internal/model"
)

// Observer is notified after every selecting phase, from the controller
// goroutine.
type Observer interface {
	ObserveGeneration(ctx context.Context, diag model.GenerationDiagnostics, best ScoredLayout)
}

// LogObserver writes one structured log line per generation.
type LogObserver struct {
	Logger *slog.Logger
	// Every logs at Info level every Every generations and at Debug
	// otherwise. Zero logs every generation at Info.
	Every int
}

func (o LogObserver) ObserveGeneration(ctx context.Context, diag model.GenerationDiagnostics, best ScoredLayout) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelInfo
	if o.Every > 1 && diag.Generation%o.Every != 0 {
		level = slog.LevelDebug
	}
	logger.Log(ctx, level, "generation",
		slog.Int("generation", diag.Generation),
		slog.Float64("best_fitness", diag.BestFitness),
		slog.Uint64("best_distance", diag.BestDistance),
		slog.Float64("mean_fitness", diag.MeanFitness),
		slog.Int("distinct", diag.DistinctLayout),
		slog.Int("stagnation", diag.Stagnation),
		slog.String("layout", best.Layout.Keys()),
	)
}
