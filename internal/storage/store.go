package storage

import (
	"context"

	"keyevolve/internal/model"
)

// Store defines persistence for runs, their scored layouts and per-generation series.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	SaveLayout(ctx context.Context, layout model.LayoutRecord) error
	GetLayout(ctx context.Context, id string) (model.LayoutRecord, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []float64) error
	GetFitnessHistory(ctx context.Context, runID string) ([]float64, bool, error)
	SaveDistanceHistory(ctx context.Context, runID string, history []uint64) error
	GetDistanceHistory(ctx context.Context, runID string) ([]uint64, bool, error)
	SaveGenerationDiagnostics(ctx context.Context, runID string, diagnostics []model.GenerationDiagnostics) error
	GetGenerationDiagnostics(ctx context.Context, runID string) ([]model.GenerationDiagnostics, bool, error)
	SaveTopLayouts(ctx context.Context, runID string, top []model.TopLayoutRecord) error
	GetTopLayouts(ctx context.Context, runID string) ([]model.TopLayoutRecord, bool, error)
}
