package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Item is one candidate for inclusion. Catalog order defines chromosome bit order.
type Item struct {
	ID     string  `json:"id"`
	Weight int     `json:"weight"`
	Value  float64 `json:"value"`
}

type RunConfig struct {
	WeightMin            int     `json:"weight_min"`
	WeightMax            int     `json:"weight_max"`
	PopulationSize       int     `json:"population_size"`
	Epochs               int     `json:"epochs"`
	CrossoverRate        float64 `json:"crossover_rate"`
	MutationRate         float64 `json:"mutation_rate"`
	InitialZeroBias      int     `json:"initial_zero_bias"`
	MaxBootstrapAttempts int     `json:"max_bootstrap_attempts"`
	Seed                 int64   `json:"seed"`
}

// RunRecord is the persisted outcome of one optimization run.
type RunRecord struct {
	VersionedRecord
	ID                string    `json:"id"`
	CreatedAtUTC      string    `json:"created_at_utc"`
	Config            RunConfig `json:"config"`
	Items             []Item    `json:"items"`
	Selection         []bool    `json:"selection"`
	BestChromosome    string    `json:"best_chromosome"`
	BestWeight        int       `json:"best_weight"`
	BestValue         float64   `json:"best_value"`
	BootstrapAttempts int       `json:"bootstrap_attempts"`
	FinalZeroBias     int       `json:"final_zero_bias"`
}

type GenerationDiagnostics struct {
	Generation     int     `json:"generation"`
	BestValue      float64 `json:"best_value"`
	BestWeight     int     `json:"best_weight"`
	MeanValue      float64 `json:"mean_value"`
	FeasibleCount  int     `json:"feasible_count"`
	CrossoverPairs int     `json:"crossover_pairs"`
	MutatedBits    int     `json:"mutated_bits"`
	Fallback       bool    `json:"fallback,omitempty"`
}
