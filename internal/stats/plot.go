package stats

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

const (
	FitnessPlotFile  = "fitness.png"
	DistancePlotFile = "distance.png"

	plotWidth  = 10 * vg.Inch
	plotHeight = 6 * vg.Inch
)

// WritePlots renders the best fitness and best distance trajectories of a
// run into runDir and returns the written paths.
func WritePlots(runDir string, fitness []float64, distance []uint64) ([]string, error) {
	if len(fitness) == 0 {
		return nil, fmt.Errorf("no generations to plot")
	}
	units := make([]float64, len(distance))
	for i, d := range distance {
		units[i] = DistanceUnits(d)
	}

	fitnessPath := filepath.Join(runDir, FitnessPlotFile)
	if err := writeLinePlot(fitnessPath, "Best fitness", "Fitness score", fitness); err != nil {
		return nil, fmt.Errorf("plot fitness: %w", err)
	}
	distancePath := filepath.Join(runDir, DistancePlotFile)
	if err := writeLinePlot(distancePath, "Best layout travel", "Distance moved (key widths)", units); err != nil {
		return nil, fmt.Errorf("plot distance: %w", err)
	}
	return []string{fitnessPath, distancePath}, nil
}

func writeLinePlot(path, title, yLabel string, values []float64) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = yLabel

	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i].X = float64(i)
		pts[i].Y = v
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	p.Add(line, plotter.NewGrid())
	p.Legend.Add(yLabel, line)
	p.Legend.Top = true

	return p.Save(plotWidth, plotHeight, path)
}
