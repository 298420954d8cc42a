package evo

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"

	"gonum.org/v1/gonum/stat"

	"keyevolve/internal/fitness"
	"keyevolve/internal/keyboard"
	"keyevolve/internal/model"
)

const (
	DefaultSeedCount         = 1000
	DefaultEliteCount        = 100
	DefaultOffspringPerElite = 9
	DefaultStagnationLimit   = 100
)

type RunResult struct {
	BestByGeneration      []float64
	DistanceByGeneration  []uint64
	GenerationDiagnostics []model.GenerationDiagnostics
	FinalPopulation       Population
	Generations           int
	Converged             bool
}

type MonitorConfig struct {
	Corpus            string
	Matrix            *keyboard.DistanceMatrix
	Evaluator         fitness.Evaluator
	Mutation          Operator
	Selector          Selector
	SeedCount         int
	SeedLayouts       []keyboard.Layout
	EliteCount        int
	OffspringPerElite int
	StagnationLimit   int
	// MaxGenerations caps the number of selecting phases, the seeded
	// generation included. Zero runs until convergence.
	MaxGenerations int
	Workers        int
	Seed           int64
	Observers      []Observer
}

// PopulationMonitor drives the generational loop: seed, evaluate, select,
// reproduce, until the best fitness stops changing.
type PopulationMonitor struct {
	cfg MonitorConfig
	rng *rand.Rand
}

func NewPopulationMonitor(cfg MonitorConfig) (*PopulationMonitor, error) {
	if cfg.Corpus == "" {
		return nil, fmt.Errorf("corpus is required")
	}
	if err := cfg.Evaluator.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.Matrix == nil {
		matrix := keyboard.BuildDistanceMatrix()
		cfg.Matrix = &matrix
	}
	if cfg.Mutation == nil {
		cfg.Mutation = SwapMutation{Decay: DefaultSwapDecay}
	}
	if cfg.Selector == nil {
		cfg.Selector = TruncationSelector{}
	}
	if cfg.SeedCount < 0 {
		return nil, fmt.Errorf("seed count must be >= 0")
	}
	if cfg.SeedCount+len(cfg.SeedLayouts) <= 0 {
		return nil, fmt.Errorf("seed count must be > 0")
	}
	for i, layout := range cfg.SeedLayouts {
		if err := layout.Validate(); err != nil {
			return nil, fmt.Errorf("seed layout %d: %w", i, err)
		}
	}
	if cfg.EliteCount <= 0 || cfg.EliteCount > cfg.SeedCount+len(cfg.SeedLayouts) {
		return nil, fmt.Errorf("elite count must be in [1, seeded population size]")
	}
	if cfg.OffspringPerElite <= 0 {
		return nil, fmt.Errorf("offspring per elite must be > 0")
	}
	if cfg.StagnationLimit <= 0 {
		return nil, fmt.Errorf("stagnation limit must be > 0")
	}
	if cfg.MaxGenerations < 0 {
		return nil, fmt.Errorf("max generations must be >= 0")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}

	return &PopulationMonitor{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}, nil
}

func (m *PopulationMonitor) Run(ctx context.Context) (RunResult, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, err
	}

	capacity := max(m.cfg.SeedCount+len(m.cfg.SeedLayouts), m.cfg.EliteCount*m.cfg.OffspringPerElite)
	pool, err := NewPool(m.cfg.Workers, capacity, m.cfg.Corpus, m.cfg.Matrix, m.cfg.Evaluator, m.cfg.Mutation)
	if err != nil {
		return RunResult{}, err
	}
	defer pool.Close()

	population, err := m.evaluate(pool, m.seedTasks())
	if err != nil {
		return RunResult{}, fmt.Errorf("seed population: %w", err)
	}
	evaluated := len(population)

	var (
		bestHistory     []float64
		distanceHistory []uint64
		diagnostics     []model.GenerationDiagnostics
		stagnation      int
		converged       bool
		elites          Population
	)
	for gen := 0; ; gen++ {
		population.Sort()
		best, _ := population.Best()
		if gen > 0 && best.Fitness == bestHistory[len(bestHistory)-1] {
			stagnation++
		} else {
			stagnation = 0
		}
		bestHistory = append(bestHistory, best.Fitness)
		distanceHistory = append(distanceHistory, best.TotalDistance)
		diag := summarizeGeneration(population, gen, stagnation, evaluated)
		diagnostics = append(diagnostics, diag)

		elites, err = m.cfg.Selector.Select(population, m.cfg.EliteCount)
		if err != nil {
			return RunResult{}, fmt.Errorf("select generation %d: %w", gen, err)
		}
		for _, observer := range m.cfg.Observers {
			observer.ObserveGeneration(ctx, diag, best)
		}

		if stagnation >= m.cfg.StagnationLimit {
			converged = true
			break
		}
		if m.cfg.MaxGenerations > 0 && gen+1 >= m.cfg.MaxGenerations {
			break
		}
		if err := ctx.Err(); err != nil {
			return RunResult{}, err
		}

		children, err := m.evaluate(pool, m.offspringTasks(elites, gen+1))
		if err != nil {
			return RunResult{}, fmt.Errorf("generation %d: %w", gen+1, err)
		}
		evaluated = len(children)
		population = make(Population, 0, len(elites)+len(children))
		population = append(population, elites...)
		population = append(population, children...)
	}

	return RunResult{
		BestByGeneration:      bestHistory,
		DistanceByGeneration:  distanceHistory,
		GenerationDiagnostics: diagnostics,
		FinalPopulation:       elites,
		Generations:           len(bestHistory),
		Converged:             converged,
	}, nil
}

// evaluate is the barrier: nothing is returned until every dispatched task
// has reported.
func (m *PopulationMonitor) evaluate(pool *Pool, tasks []Task) (Population, error) {
	if err := pool.Dispatch(tasks); err != nil {
		return nil, err
	}
	return pool.Collect(len(tasks))
}

func (m *PopulationMonitor) seedTasks() []Task {
	tasks := make([]Task, 0, len(m.cfg.SeedLayouts)+m.cfg.SeedCount)
	for _, layout := range m.cfg.SeedLayouts {
		tasks = append(tasks, Task{Index: len(tasks), Origin: OriginSeed, Layout: layout, Seed: m.rng.Int63()})
	}
	for i := 0; i < m.cfg.SeedCount; i++ {
		tasks = append(tasks, Task{Index: len(tasks), Origin: OriginRandom, Seed: m.rng.Int63()})
	}
	return tasks
}

func (m *PopulationMonitor) offspringTasks(elites Population, generation int) []Task {
	tasks := make([]Task, 0, len(elites)*m.cfg.OffspringPerElite)
	for _, parent := range elites {
		for i := 0; i < m.cfg.OffspringPerElite; i++ {
			tasks = append(tasks, Task{
				Index:      len(tasks),
				Generation: generation,
				Origin:     OriginMutation,
				ParentID:   parent.ID,
				Layout:     parent.Layout,
				Seed:       m.rng.Int63(),
			})
		}
	}
	return tasks
}

func summarizeGeneration(ranked Population, generation, stagnation, evaluated int) model.GenerationDiagnostics {
	if len(ranked) == 0 {
		return model.GenerationDiagnostics{Generation: generation, Stagnation: stagnation, Evaluated: evaluated}
	}

	fitnesses := make([]float64, len(ranked))
	distances := make([]float64, len(ranked))
	swaps := make([]float64, len(ranked))
	for i, item := range ranked {
		fitnesses[i] = item.Fitness
		distances[i] = float64(item.TotalDistance)
		swaps[i] = float64(item.Swaps)
	}
	mean, std := stat.MeanStdDev(fitnesses, nil)
	if len(fitnesses) < 2 {
		std = 0
	}

	return model.GenerationDiagnostics{
		Generation:     generation,
		PopulationSize: len(ranked),
		Evaluated:      evaluated,
		BestFitness:    ranked[0].Fitness,
		MeanFitness:    mean,
		StdDevFitness:  std,
		MinFitness:     ranked[len(ranked)-1].Fitness,
		BestDistance:   ranked[0].TotalDistance,
		MeanDistance:   stat.Mean(distances, nil),
		MeanSwaps:      stat.Mean(swaps, nil),
		DistinctLayout: ranked.Distinct(),
		Stagnation:     stagnation,
	}
}
