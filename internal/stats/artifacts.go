package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"knapga/internal/model"
)

const (
	runIndexFile       = "run_index.json"
	fitnessSeriesFile  = "fitness_history.csv"
	bestSelectionFile  = "best.json"
	runConfigFile      = "config.json"
	fitnessHistoryFile = "fitness_history.json"
	diagnosticsFile    = "generation_diagnostics.json"
)

type RunConfig struct {
	RunID       string          `json:"run_id"`
	CatalogPath string          `json:"catalog_path,omitempty"`
	Items       []model.Item    `json:"items"`
	Config      model.RunConfig `json:"config"`
}

// BestSelection is the decoded outcome written to best.json.
type BestSelection struct {
	Chromosome        string       `json:"chromosome"`
	Selection         []bool       `json:"selection"`
	SelectedItems     []model.Item `json:"selected_items"`
	Weight            int          `json:"weight"`
	Value             float64      `json:"value"`
	BootstrapAttempts int          `json:"bootstrap_attempts"`
	FinalZeroBias     int          `json:"final_zero_bias"`
}

type RunArtifacts struct {
	Config                RunConfig                     `json:"config"`
	BestByGeneration      []float64                     `json:"best_by_generation"`
	GenerationDiagnostics []model.GenerationDiagnostics `json:"generation_diagnostics,omitempty"`
	FinalBestValue        float64                       `json:"final_best_value"`
	Best                  BestSelection                 `json:"best"`
}

type RunIndexEntry struct {
	RunID          string  `json:"run_id"`
	Items          int     `json:"items"`
	WeightMin      int     `json:"weight_min"`
	WeightMax      int     `json:"weight_max"`
	PopulationSize int     `json:"population_size"`
	Epochs         int     `json:"epochs"`
	Seed           int64   `json:"seed"`
	BestChromosome string  `json:"best_chromosome"`
	FinalBestValue float64 `json:"final_best_value"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, runConfigFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, fitnessHistoryFile), map[string]any{"best_by_generation": artifacts.BestByGeneration, "final_best_value": artifacts.FinalBestValue}); err != nil {
		return "", err
	}
	diagnostics := artifacts.GenerationDiagnostics
	if diagnostics == nil {
		diagnostics = []model.GenerationDiagnostics{}
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), diagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, bestSelectionFile), artifacts.Best); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.BestByGeneration); err != nil {
		return "", err
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory to outDir/<runID>. The CSV series is optional.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{runConfigFile, fitnessHistoryFile, diagnosticsFile, bestSelectionFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	seriesPath := filepath.Join(src, fitnessSeriesFile)
	if _, err := os.Stat(seriesPath); err == nil {
		if err := copyFile(seriesPath, filepath.Join(dst, fitnessSeriesFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, runConfigFile), &cfg)
	if err != nil || !ok {
		return RunConfig{}, ok, err
	}
	return cfg, true, nil
}

func ReadBestSelection(baseDir, runID string) (BestSelection, bool, error) {
	var best BestSelection
	ok, err := readJSON(filepath.Join(baseDir, runID, bestSelectionFile), &best)
	if err != nil || !ok {
		return BestSelection{}, ok, err
	}
	return best, true, nil
}

func ReadGenerationDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, diagnosticsFile), &diagnostics)
	if err != nil || !ok {
		return nil, ok, err
	}
	return diagnostics, true, nil
}

func WriteFitnessSeries(runDir string, bestByGeneration []float64) error {
	path := filepath.Join(runDir, fitnessSeriesFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best_value"}); err != nil {
		return err
	}
	for i, best := range bestByGeneration {
		if err := writer.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(best, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(baseDir, runID, fitnessSeriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness series header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness series row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
