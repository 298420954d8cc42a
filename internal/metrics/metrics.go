// Package metrics exposes run progress as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"keyevolve/internal/evo"
	"keyevolve/internal/model"
)

// Observer records generation progress labelled by run ID. It implements
// evo.Observer.
type Observer struct {
	registry    *prometheus.Registry
	generations *prometheus.CounterVec
	evaluated   *prometheus.CounterVec
	bestFitness *prometheus.GaugeVec
	bestDist    *prometheus.GaugeVec
	meanFitness *prometheus.GaugeVec
	stagnation  *prometheus.GaugeVec
	distinct    *prometheus.GaugeVec
	runID       string
}

var _ evo.Observer = (*Observer)(nil)

func NewObserver(runID string) *Observer {
	labels := []string{"run_id"}
	o := &Observer{
		registry: prometheus.NewRegistry(),
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keyevolve_generations_total",
			Help: "Selecting phases completed.",
		}, labels),
		evaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "keyevolve_layouts_evaluated_total",
			Help: "Layouts scored by the evaluation pool.",
		}, labels),
		bestFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keyevolve_best_fitness",
			Help: "Best fitness in the current generation.",
		}, labels),
		bestDist: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keyevolve_best_distance_units",
			Help: "Total travel of the best layout, in key widths.",
		}, labels),
		meanFitness: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keyevolve_mean_fitness",
			Help: "Mean fitness of the ranked population.",
		}, labels),
		stagnation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keyevolve_stagnant_generations",
			Help: "Consecutive generations without a change in best fitness.",
		}, labels),
		distinct: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "keyevolve_distinct_layouts",
			Help: "Distinct layouts in the ranked population.",
		}, labels),
		runID: runID,
	}
	o.registry.MustRegister(o.generations, o.evaluated, o.bestFitness, o.bestDist, o.meanFitness, o.stagnation, o.distinct)
	return o
}

func (o *Observer) ObserveGeneration(_ context.Context, diag model.GenerationDiagnostics, _ evo.ScoredLayout) {
	labels := prometheus.Labels{"run_id": o.runID}
	o.generations.With(labels).Inc()
	o.evaluated.With(labels).Add(float64(diag.Evaluated))
	o.bestFitness.With(labels).Set(diag.BestFitness)
	o.bestDist.With(labels).Set(float64(diag.BestDistance) / 1000)
	o.meanFitness.With(labels).Set(diag.MeanFitness)
	o.stagnation.With(labels).Set(float64(diag.Stagnation))
	o.distinct.With(labels).Set(float64(diag.DistinctLayout))
}

func (o *Observer) Registry() *prometheus.Registry {
	return o.registry
}

func (o *Observer) Handler() http.Handler {
	return promhttp.HandlerFor(o.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (o *Observer) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", o.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info("metrics listening", slog.String("addr", addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
