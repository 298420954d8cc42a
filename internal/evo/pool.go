package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/alitto/pond"
	"github.com/google/uuid"

	"keyevolve/internal/fitness"
	"keyevolve/internal/keyboard"
)

// ErrWorkerFailure reports a task that could not produce a result.
var ErrWorkerFailure = errors.New("worker failure")

// Task is one self-contained unit of work: build a layout and score it.
// Random tasks ignore Layout, seed tasks score it as is, and mutation tasks
// treat it as the parent.
type Task struct {
	Index      int
	Generation int
	Origin     Origin
	ParentID   string
	Layout     keyboard.Layout
	Seed       int64
}

type taskResult struct {
	index  int
	scored ScoredLayout
	err    error
}

// Pool evaluates batches of tasks on a fixed number of workers. The corpus
// and matrix are shared read-only by every task. Dispatch and Collect are
// meant to be called from a single controller goroutine.
type Pool struct {
	workers   *pond.WorkerPool
	corpus    string
	matrix    *keyboard.DistanceMatrix
	evaluator fitness.Evaluator
	mutation  Operator
	results   chan taskResult
	pending   int
}

func NewPool(workers, capacity int, corpus string, matrix *keyboard.DistanceMatrix, evaluator fitness.Evaluator, mutation Operator) (*Pool, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("workers must be > 0")
	}
	if capacity <= 0 {
		return nil, fmt.Errorf("pool capacity must be > 0")
	}
	if matrix == nil {
		return nil, fmt.Errorf("distance matrix is required")
	}
	if mutation == nil {
		return nil, fmt.Errorf("mutation operator is required")
	}
	return &Pool{
		workers:   pond.New(workers, capacity),
		corpus:    corpus,
		matrix:    matrix,
		evaluator: evaluator,
		mutation:  mutation,
		results:   make(chan taskResult, capacity),
	}, nil
}

// Dispatch queues a batch and returns without waiting for it.
func (p *Pool) Dispatch(tasks []Task) error {
	if p.pending+len(tasks) > cap(p.results) {
		return fmt.Errorf("dispatch %d tasks: %d pending, capacity %d", len(tasks), p.pending, cap(p.results))
	}
	for _, task := range tasks {
		task := task
		p.pending++
		p.workers.Submit(func() {
			p.results <- p.run(task)
		})
	}
	return nil
}

// Collect blocks until n results have arrived and returns them ordered by
// task index. Every result is drained even when one of them failed.
func (p *Pool) Collect(n int) (Population, error) {
	if n > p.pending {
		return nil, fmt.Errorf("collect %d results: only %d pending", n, p.pending)
	}
	scored := make(Population, n)
	filled := make([]bool, n)
	var firstErr error
	for i := 0; i < n; i++ {
		res := <-p.results
		p.pending--
		if res.err != nil {
			if firstErr == nil {
				firstErr = res.err
			}
			continue
		}
		if res.index < 0 || res.index >= n || filled[res.index] {
			if firstErr == nil {
				firstErr = fmt.Errorf("%w: unexpected result index %d", ErrWorkerFailure, res.index)
			}
			continue
		}
		filled[res.index] = true
		scored[res.index] = res.scored
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return scored, nil
}

// Close waits for running tasks and stops the workers.
func (p *Pool) Close() {
	p.workers.StopAndWait()
}

func (p *Pool) run(task Task) (res taskResult) {
	res.index = task.Index
	defer func() {
		if r := recover(); r != nil {
			res = taskResult{index: task.Index, err: fmt.Errorf("%w: task %d generation %d: %v", ErrWorkerFailure, task.Index, task.Generation, r)}
		}
	}()

	rng := rand.New(rand.NewSource(task.Seed))
	layout := task.Layout
	swaps := 0
	switch task.Origin {
	case OriginRandom:
		layout = keyboard.RandomLayout(rng)
	case OriginMutation:
		layout, swaps = p.mutation.Mutate(task.Layout, rng)
	case OriginSeed:
	default:
		res.err = fmt.Errorf("%w: task %d has unknown origin %q", ErrWorkerFailure, task.Index, task.Origin)
		return res
	}
	if err := layout.Validate(); err != nil {
		res.err = fmt.Errorf("%s task %d: %w", task.Origin, task.Index, err)
		return res
	}

	result, err := p.evaluator.Evaluate(layout, p.corpus, p.matrix)
	if err != nil {
		res.err = fmt.Errorf("evaluate task %d generation %d: %w", task.Index, task.Generation, err)
		return res
	}
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		res.err = fmt.Errorf("layout id: %w", err)
		return res
	}

	res.scored = ScoredLayout{
		ID:            id.String(),
		ParentID:      task.ParentID,
		Generation:    task.Generation,
		Origin:        task.Origin,
		Swaps:         swaps,
		Layout:        layout,
		Fitness:       result.Fitness,
		TotalDistance: result.TotalDistance,
		Result:        result,
	}
	return res
}
