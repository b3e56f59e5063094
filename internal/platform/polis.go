package platform

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"knapga/internal/evo"
	"knapga/internal/model"
	"knapga/internal/storage"
)

type Config struct {
	Store  storage.Store
	Logger *zap.Logger
}

type OptimizationConfig struct {
	RunID        string
	CreatedAtUTC string
	Items        []model.Item
	Run          model.RunConfig
}

type OptimizationResult struct {
	Record      model.RunRecord
	Result      evo.RunResult
	Diagnostics []model.GenerationDiagnostics
}

// Polis owns the store and runs optimizations against it.
type Polis struct {
	store storage.Store
	log   *zap.Logger

	mu      sync.RWMutex
	started bool
}

func NewPolis(cfg Config) *Polis {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Polis{
		store: cfg.Store,
		log:   logger,
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}
	p.started = true
	return nil
}

// Reset removes every persisted run and leaves the polis started.
func (p *Polis) Reset(ctx context.Context) error {
	if err := p.Init(ctx); err != nil {
		return err
	}
	runs, err := p.store.ListRuns(ctx)
	if err != nil {
		return err
	}
	for _, run := range runs {
		if err := p.store.DeleteRun(ctx, run.ID); err != nil {
			return fmt.Errorf("delete run %s: %w", run.ID, err)
		}
	}
	p.log.Info("store reset", zap.Int("deleted_runs", len(runs)))
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

// RunOptimization runs the genetic search for one catalog and persists the
// run record, the best-so-far history and the generation diagnostics.
func (p *Polis) RunOptimization(ctx context.Context, cfg OptimizationConfig) (OptimizationResult, error) {
	if !p.Started() {
		return OptimizationResult{}, fmt.Errorf("polis is not initialized")
	}
	if cfg.RunID == "" {
		return OptimizationResult{}, fmt.Errorf("run id is required")
	}

	logger := p.log.With(zap.String("run_id", cfg.RunID))
	monitor, err := evo.NewPopulationMonitor(cfg.Items, evo.MonitorConfig{
		WeightMin:            cfg.Run.WeightMin,
		WeightMax:            cfg.Run.WeightMax,
		PopulationSize:       cfg.Run.PopulationSize,
		Epochs:               cfg.Run.Epochs,
		CrossoverRate:        cfg.Run.CrossoverRate,
		MutationRate:         cfg.Run.MutationRate,
		InitialZeroBias:      cfg.Run.InitialZeroBias,
		MaxBootstrapAttempts: cfg.Run.MaxBootstrapAttempts,
		Seed:                 cfg.Run.Seed,
		Logger:               logger,
	})
	if err != nil {
		return OptimizationResult{}, err
	}

	result, err := monitor.Run(ctx)
	if err != nil {
		return OptimizationResult{}, err
	}

	record := model.RunRecord{
		VersionedRecord:   model.VersionedRecord{SchemaVersion: storage.CurrentSchemaVersion, CodecVersion: storage.CurrentCodecVersion},
		ID:                cfg.RunID,
		CreatedAtUTC:      cfg.CreatedAtUTC,
		Config:            cfg.Run,
		Items:             append([]model.Item(nil), cfg.Items...),
		Selection:         append([]bool(nil), result.Selection...),
		BestChromosome:    result.Best.Chromosome.String(),
		BestWeight:        result.Best.Weight,
		BestValue:         result.Best.Value,
		BootstrapAttempts: result.BootstrapAttempts,
		FinalZeroBias:     result.FinalZeroBias,
	}
	if err := p.store.SaveRun(ctx, record); err != nil {
		return OptimizationResult{}, err
	}
	if err := p.store.SaveFitnessHistory(ctx, cfg.RunID, result.BestByGeneration); err != nil {
		return OptimizationResult{}, err
	}
	if err := p.store.SaveGenerationDiagnostics(ctx, cfg.RunID, result.Diagnostics); err != nil {
		return OptimizationResult{}, err
	}

	return OptimizationResult{
		Record:      record,
		Result:      result,
		Diagnostics: result.Diagnostics,
	}, nil
}
