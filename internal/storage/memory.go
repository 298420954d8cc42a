package storage

import (
	"context"
	"sync"

	"keyevolve/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.RunRecord
	layouts     map[string]model.LayoutRecord
	fitness     map[string][]float64
	distance    map[string][]uint64
	diagnostics map[string][]model.GenerationDiagnostics
	topLayouts  map[string][]model.TopLayoutRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}
	s.initialized = true
	s.runs = make(map[string]model.RunRecord)
	s.layouts = make(map[string]model.LayoutRecord)
	s.fitness = make(map[string][]float64)
	s.distance = make(map[string][]uint64)
	s.diagnostics = make(map[string][]model.GenerationDiagnostics)
	s.topLayouts = make(map[string][]model.TopLayoutRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	return run, ok, nil
}

func (s *MemoryStore) SaveLayout(_ context.Context, layout model.LayoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.layouts[layout.ID] = layout
	return nil
}

func (s *MemoryStore) GetLayout(_ context.Context, id string) (model.LayoutRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	layout, ok := s.layouts[id]
	return layout, ok, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.fitness[runID] = append([]float64(nil), history...)
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]float64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.fitness[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]float64(nil), history...), true, nil
}

func (s *MemoryStore) SaveDistanceHistory(_ context.Context, runID string, history []uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.distance[runID] = append([]uint64(nil), history...)
	return nil
}

func (s *MemoryStore) GetDistanceHistory(_ context.Context, runID string) ([]uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.distance[runID]
	if !ok {
		return nil, false, nil
	}
	return append([]uint64(nil), history...), true, nil
}

func (s *MemoryStore) SaveGenerationDiagnostics(_ context.Context, runID string, diagnostics []model.GenerationDiagnostics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	s.diagnostics[runID] = copied
	return nil
}

func (s *MemoryStore) GetGenerationDiagnostics(_ context.Context, runID string) ([]model.GenerationDiagnostics, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	diagnostics, ok := s.diagnostics[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.GenerationDiagnostics, len(diagnostics))
	copy(copied, diagnostics)
	return copied, true, nil
}

func (s *MemoryStore) SaveTopLayouts(_ context.Context, runID string, top []model.TopLayoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	copied := make([]model.TopLayoutRecord, len(top))
	copy(copied, top)
	s.topLayouts[runID] = copied
	return nil
}

func (s *MemoryStore) GetTopLayouts(_ context.Context, runID string) ([]model.TopLayoutRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	top, ok := s.topLayouts[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.TopLayoutRecord, len(top))
	copy(copied, top)
	return copied, true, nil
}
