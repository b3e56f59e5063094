package knapga

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knapga/internal/catalog"
	"knapga/internal/evo"
	"knapga/internal/map2rec"
	"knapga/internal/model"
	"knapga/internal/platform"
	"knapga/internal/stats"
	"knapga/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "knapga.db"

	// Fixed-width so run timestamps order lexically.
	createdAtLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

type (
	Item                  = model.Item
	RunConfig             = model.RunConfig
	GenerationDiagnostics = model.GenerationDiagnostics
)

var (
	ErrInvalidConfig        = evo.ErrInvalidConfig
	ErrBootstrapExhausted   = evo.ErrBootstrapExhausted
	ErrInfeasiblePopulation = evo.ErrInfeasiblePopulation
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *zap.Logger
}

type Client struct {
	store storage.Store
	polis *platform.Polis
	log   *zap.Logger

	artifactsDir string
	exportsDir   string
}

type RunRequest struct {
	RunID string
	// Items wins over CatalogPath; with neither set the sample catalog is used.
	Items       []Item
	CatalogPath string
	// ReplayRunID reuses the catalog and configuration written for an earlier run.
	ReplayRunID string
	Config      RunConfig
}

type RunSummary struct {
	RunID             string
	ArtifactsDir      string
	Selection         []bool
	SelectedItems     []Item
	BestChromosome    string
	BestWeight        int
	BestValue         float64
	BestByGeneration  []float64
	BootstrapAttempts int
	FinalZeroBias     int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID          string
	CreatedAtUTC   string
	Items          int
	WeightMin      int
	WeightMax      int
	Population     int
	Epochs         int
	Seed           int64
	BestChromosome string
	FinalBestValue float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DiagnosticsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type BestRequest struct {
	RunID  string
	Latest bool
}

type BestSummary struct {
	RunID          string
	Chromosome     string
	Selection      []bool
	SelectedItems  []Item
	Weight         int
	Value          float64
	FinalZeroBias  int
	BootstrapTries int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		log:          logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// Reset deletes every run held by the store. On-disk artifacts are left alone.
func (c *Client) Reset(ctx context.Context) error {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return err
	}
	return p.Reset(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	items, cfg, catalogPath, err := c.resolveRunInput(req)
	if err != nil {
		return RunSummary{}, err
	}
	applyRunDefaults(&cfg)

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	createdAt := time.Now().UTC().Format(createdAtLayout)

	out, err := p.RunOptimization(ctx, platform.OptimizationConfig{
		RunID:        runID,
		CreatedAtUTC: createdAt,
		Items:        items,
		Run:          cfg,
	})
	if err != nil {
		return RunSummary{}, err
	}
	record := out.Record
	selected := selectedItems(items, record.Selection)

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:       runID,
			CatalogPath: catalogPath,
			Items:       items,
			Config:      cfg,
		},
		BestByGeneration:      out.Result.BestByGeneration,
		GenerationDiagnostics: out.Diagnostics,
		FinalBestValue:        record.BestValue,
		Best: stats.BestSelection{
			Chromosome:        record.BestChromosome,
			Selection:         record.Selection,
			SelectedItems:     selected,
			Weight:            record.BestWeight,
			Value:             record.BestValue,
			BootstrapAttempts: record.BootstrapAttempts,
			FinalZeroBias:     record.FinalZeroBias,
		},
	})
	if err != nil {
		return RunSummary{}, err
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:          runID,
		Items:          len(items),
		WeightMin:      cfg.WeightMin,
		WeightMax:      cfg.WeightMax,
		PopulationSize: cfg.PopulationSize,
		Epochs:         cfg.Epochs,
		Seed:           cfg.Seed,
		BestChromosome: record.BestChromosome,
		FinalBestValue: record.BestValue,
		CreatedAtUTC:   createdAt,
	}); err != nil {
		return RunSummary{}, err
	}

	c.log.Info("run stored",
		zap.String("run_id", runID),
		zap.String("artifacts_dir", runDir),
		zap.Float64("best_value", record.BestValue),
		zap.Int("best_weight", record.BestWeight),
	)

	return RunSummary{
		RunID:             runID,
		ArtifactsDir:      filepath.Clean(runDir),
		Selection:         append([]bool(nil), record.Selection...),
		SelectedItems:     selected,
		BestChromosome:    record.BestChromosome,
		BestWeight:        record.BestWeight,
		BestValue:         record.BestValue,
		BestByGeneration:  append([]float64(nil), out.Result.BestByGeneration...),
		BootstrapAttempts: record.BootstrapAttempts,
		FinalZeroBias:     record.FinalZeroBias,
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:          e.RunID,
			CreatedAtUTC:   e.CreatedAtUTC,
			Items:          e.Items,
			WeightMin:      e.WeightMin,
			WeightMax:      e.WeightMax,
			Population:     e.PopulationSize,
			Epochs:         e.Epochs,
			Seed:           e.Seed,
			BestChromosome: e.BestChromosome,
			FinalBestValue: e.FinalBestValue,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// FitnessHistory returns the best-so-far value per generation, read from the
// store or, for runs made by another process, from the run's CSV artifact.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]float64, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "fitness history")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessSeries(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return append([]float64(nil), history...), nil
}

func (c *Client) Diagnostics(ctx context.Context, req DiagnosticsRequest) ([]GenerationDiagnostics, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "diagnostics")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadGenerationDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
	}
	if !ok {
		return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	out := make([]GenerationDiagnostics, len(diagnostics))
	copy(out, diagnostics)
	return out, nil
}

func (c *Client) Best(ctx context.Context, req BestRequest) (BestSummary, error) {
	if req.RunID != "" && req.Latest {
		return BestSummary{}, errors.New("use either run id or latest")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "best")
	if err != nil {
		return BestSummary{}, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return BestSummary{}, err
	}
	record, ok, err := c.store.GetRun(ctx, runID)
	if err != nil {
		return BestSummary{}, err
	}
	if ok {
		return BestSummary{
			RunID:          runID,
			Chromosome:     record.BestChromosome,
			Selection:      record.Selection,
			SelectedItems:  selectedItems(record.Items, record.Selection),
			Weight:         record.BestWeight,
			Value:          record.BestValue,
			FinalZeroBias:  record.FinalZeroBias,
			BootstrapTries: record.BootstrapAttempts,
		}, nil
	}

	best, ok, err := stats.ReadBestSelection(c.artifactsDir, runID)
	if err != nil {
		return BestSummary{}, err
	}
	if !ok {
		return BestSummary{}, fmt.Errorf("best selection not found for run id: %s", runID)
	}
	return BestSummary{
		RunID:          runID,
		Chromosome:     best.Chromosome,
		Selection:      best.Selection,
		SelectedItems:  best.SelectedItems,
		Weight:         best.Weight,
		Value:          best.Value,
		FinalZeroBias:  best.FinalZeroBias,
		BootstrapTries: best.BootstrapAttempts,
	}, nil
}

// Solve runs the genetic search without persisting anything and returns the
// inclusion mask in catalog order. cfg is used as given.
func Solve(ctx context.Context, items []Item, cfg RunConfig, logger *zap.Logger) ([]bool, error) {
	monitor, err := evo.NewPopulationMonitor(items, evo.MonitorConfig{
		WeightMin:            cfg.WeightMin,
		WeightMax:            cfg.WeightMax,
		PopulationSize:       cfg.PopulationSize,
		Epochs:               cfg.Epochs,
		CrossoverRate:        cfg.CrossoverRate,
		MutationRate:         cfg.MutationRate,
		InitialZeroBias:      cfg.InitialZeroBias,
		MaxBootstrapAttempts: cfg.MaxBootstrapAttempts,
		Seed:                 cfg.Seed,
		Logger:               logger,
	})
	if err != nil {
		return nil, err
	}
	result, err := monitor.Run(ctx)
	if err != nil {
		return nil, err
	}
	return result.Selection, nil
}

func DefaultRunConfig() RunConfig {
	return map2rec.DefaultRunConfig()
}

func (c *Client) resolveRunInput(req RunRequest) ([]Item, RunConfig, string, error) {
	cfg := req.Config
	if req.ReplayRunID != "" {
		replay, ok, err := stats.ReadRunConfig(c.artifactsDir, req.ReplayRunID)
		if err != nil {
			return nil, RunConfig{}, "", err
		}
		if !ok {
			return nil, RunConfig{}, "", fmt.Errorf("run config not found for run id: %s", req.ReplayRunID)
		}
		return append([]Item(nil), replay.Items...), replay.Config, replay.CatalogPath, nil
	}

	switch {
	case req.Items != nil:
		return append([]Item(nil), req.Items...), cfg, req.CatalogPath, nil
	case req.CatalogPath != "":
		items, err := catalog.Load(req.CatalogPath)
		if err != nil {
			return nil, RunConfig{}, "", err
		}
		return items, cfg, req.CatalogPath, nil
	default:
		return catalog.Default(), cfg, "", nil
	}
}

func (c *Client) resolveRunID(runID string, latest bool, what string) (string, error) {
	if latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", what)
	}
	return runID, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{Store: c.store, Logger: c.log})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}

// applyRunDefaults fills the search settings only when the caller left all of
// them unset. A partially set config goes to validation as given.
func applyRunDefaults(cfg *RunConfig) {
	if cfg.WeightMin != 0 || cfg.WeightMax != 0 || cfg.PopulationSize != 0 || cfg.Epochs != 0 ||
		cfg.CrossoverRate != 0 || cfg.MutationRate != 0 {
		return
	}
	defaults := map2rec.DefaultRunConfig()
	cfg.WeightMax = defaults.WeightMax
	cfg.PopulationSize = defaults.PopulationSize
	cfg.Epochs = defaults.Epochs
	cfg.CrossoverRate = defaults.CrossoverRate
	cfg.MutationRate = defaults.MutationRate
}

func selectedItems(items []Item, selection []bool) []Item {
	out := make([]Item, 0, len(items))
	for i, include := range selection {
		if include && i < len(items) {
			out = append(out, items[i])
		}
	}
	return out
}
