package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"keyevolve/internal/keyboard"
)

const (
	seriesFile       = "series.csv"
	fitnessTextFile  = "fitness.txt"
	distanceTextFile = "distance.txt"
)

// WriteSeries writes the per-generation best fitness and best total distance
// as CSV. Generation 0 is the seeded population.
func WriteSeries(runDir string, fitness []float64, distance []uint64) error {
	if len(fitness) != len(distance) {
		return fmt.Errorf("series length mismatch: fitness=%d distance=%d", len(fitness), len(distance))
	}
	file, err := os.Create(filepath.Join(runDir, seriesFile))
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_fitness", "best_distance"}); err != nil {
		return err
	}
	for i := range fitness {
		if err := writer.Write([]string{
			strconv.Itoa(i),
			strconv.FormatFloat(fitness[i], 'f', -1, 64),
			strconv.FormatUint(distance[i], 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadSeries(baseDir, runID string) ([]float64, []uint64, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, seriesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, false, nil
		}
		return nil, nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, []uint64{}, true, nil
		}
		return nil, nil, false, err
	}
	if len(header) < 3 {
		return nil, nil, false, fmt.Errorf("series header must have at least 3 columns")
	}

	fitness := make([]float64, 0, 128)
	distance := make([]uint64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, false, err
		}
		if len(record) < 3 {
			return nil, nil, false, fmt.Errorf("series row must have at least 3 columns")
		}
		f, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, nil, false, err
		}
		d, err := strconv.ParseUint(record[2], 10, 64)
		if err != nil {
			return nil, nil, false, err
		}
		fitness = append(fitness, f)
		distance = append(distance, d)
	}
	return fitness, distance, true, nil
}

// WriteTextSeries writes fitness.txt and distance.txt, one value per line
// with a decimal comma, for spreadsheet import. Distances are in key units.
func WriteTextSeries(runDir string, fitness []float64, distance []uint64) error {
	var b strings.Builder
	for _, value := range fitness {
		b.WriteString(FormatDecimalComma(value))
		b.WriteByte('\n')
	}
	if err := os.WriteFile(filepath.Join(runDir, fitnessTextFile), []byte(b.String()), 0o644); err != nil {
		return err
	}

	b.Reset()
	for _, value := range distance {
		b.WriteString(FormatDecimalComma(DistanceUnits(value)))
		b.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(runDir, distanceTextFile), []byte(b.String()), 0o644)
}

func FormatDecimalComma(value float64) string {
	return strings.Replace(strconv.FormatFloat(value, 'f', -1, 64), ".", ",", 1)
}

// DistanceUnits converts a total distance to key widths.
func DistanceUnits(distance uint64) float64 {
	return float64(distance) / keyboard.UnitCost
}
