package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord summarises one optimisation run and the settings it used.
type RunRecord struct {
	VersionedRecord
	ID                string  `json:"id"`
	Corpus            string  `json:"corpus"`
	CorpusBytes       int     `json:"corpus_bytes"`
	Seed              int64   `json:"seed"`
	SeedCount         int     `json:"seed_count"`
	EliteCount        int     `json:"elite_count"`
	OffspringPerElite int     `json:"offspring_per_elite"`
	StagnationLimit   int     `json:"stagnation_limit"`
	MaxGenerations    int     `json:"max_generations"`
	Workers           int     `json:"workers"`
	Generations       int     `json:"generations"`
	Converged         bool    `json:"converged"`
	BestLayoutID      string  `json:"best_layout_id"`
	BestFitness       float64 `json:"best_fitness"`
	BestDistance      uint64  `json:"best_distance"`
	StartedAtUnix     int64   `json:"started_at_unix"`
	ElapsedMillis     int64   `json:"elapsed_ms"`
}

// LayoutRecord is a scored layout. Keys lists the letters in position order.
type LayoutRecord struct {
	VersionedRecord
	ID            string  `json:"id"`
	ParentID      string  `json:"parent_id,omitempty"`
	Generation    int     `json:"generation"`
	Origin        string  `json:"origin"`
	Keys          string  `json:"keys"`
	Fitness       float64 `json:"fitness"`
	TotalDistance uint64  `json:"total_distance"`
	Keystrokes    int     `json:"keystrokes"`
	FingerRepeats int     `json:"finger_repeats"`
	HandRepeats   int     `json:"hand_repeats"`
}

type TopLayoutRecord struct {
	Rank   int          `json:"rank"`
	Layout LayoutRecord `json:"layout"`
}

// GenerationDiagnostics describes the ranked population of one generation,
// measured before truncation to the elite set.
type GenerationDiagnostics struct {
	Generation     int     `json:"generation"`
	PopulationSize int     `json:"population_size"`
	Evaluated      int     `json:"evaluated"`
	BestFitness    float64 `json:"best_fitness"`
	MeanFitness    float64 `json:"mean_fitness"`
	StdDevFitness  float64 `json:"stddev_fitness"`
	MinFitness     float64 `json:"min_fitness"`
	BestDistance   uint64  `json:"best_distance"`
	MeanDistance   float64 `json:"mean_distance"`
	MeanSwaps      float64 `json:"mean_swaps"`
	DistinctLayout int     `json:"distinct_layouts"`
	Stagnation     int     `json:"stagnation"`
}
