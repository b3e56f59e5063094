package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"knapga/internal/catalog"
	"knapga/internal/model"
	"knapga/internal/platform"
	"knapga/internal/storage"
	"knapga/pkg/knapga"
)

const (
	artifactsDir = "runs"
	exportsDir   = "exports"
	defaultDB    = "knapga.db"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "diagnostics":
		return runDiagnostics(ctx, args[1:])
	case "best":
		return runBest(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "catalog":
		return runCatalog(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDB, "sqlite database path")
	logLevel := fs.String("log-level", "warn", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	polis := platform.NewPolis(platform.Config{Store: store, Logger: logger})
	if err := polis.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDB, "sqlite database path")
	logLevel := fs.String("log-level", "warn", "log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}
	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	store, err := storage.NewStore(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer func() {
		_ = storage.CloseIfSupported(store)
	}()

	polis := platform.NewPolis(platform.Config{Store: store, Logger: logger})
	if err := polis.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", *storeKind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	defaults := knapga.DefaultRunConfig()

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional run config JSON path (map2rec-backed)")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	catalogPath := fs.String("catalog", "", "item catalog path (.json|.csv|.xlsx); sample catalog when empty")
	replayRunID := fs.String("replay", "", "rerun the catalog and config stored for an earlier run id")
	weightMin := fs.Int("weight-min", defaults.WeightMin, "minimum total weight (inclusive)")
	weightMax := fs.Int("weight-max", defaults.WeightMax, "maximum total weight (inclusive)")
	population := fs.Int("population", defaults.PopulationSize, "population size (even)")
	epochs := fs.Int("epochs", defaults.Epochs, "generation count")
	crossoverRate := fs.Float64("crossover-rate", defaults.CrossoverRate, "per-individual crossover probability")
	mutationRate := fs.Float64("mutation-rate", defaults.MutationRate, "per-bit mutation probability")
	zeroBias := fs.Int("zero-bias", 0, "initial code-rule zero count (0 uses the engine default)")
	maxBootstrap := fs.Int("max-bootstrap", 0, "bootstrap attempt ceiling (0 uses the engine default)")
	seed := fs.Int64("seed", 1, "rng seed")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDB, "sqlite database path")
	logLevel := fs.String("log-level", "warn", "log level: debug|info|warn|error")
	jsonOut := fs.Bool("json", false, "emit run summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req, err := loadOrDefaultRunRequest(*configPath)
	if err != nil {
		return err
	}
	if *configPath == "" {
		req = knapga.RunRequest{
			RunID:       *runID,
			CatalogPath: *catalogPath,
			ReplayRunID: *replayRunID,
			Config: model.RunConfig{
				WeightMin:            *weightMin,
				WeightMax:            *weightMax,
				PopulationSize:       *population,
				Epochs:               *epochs,
				CrossoverRate:        *crossoverRate,
				MutationRate:         *mutationRate,
				InitialZeroBias:      *zeroBias,
				MaxBootstrapAttempts: *maxBootstrap,
				Seed:                 *seed,
			},
		}
	} else if err := overrideFromFlags(&req, setFlags, map[string]any{
		"run-id":         *runID,
		"catalog":        *catalogPath,
		"replay":         *replayRunID,
		"weight-min":     *weightMin,
		"weight-max":     *weightMax,
		"population":     *population,
		"epochs":         *epochs,
		"crossover-rate": *crossoverRate,
		"mutation-rate":  *mutationRate,
		"zero-bias":      *zeroBias,
		"max-bootstrap":  *maxBootstrap,
		"seed":           *seed,
	}); err != nil {
		return err
	}

	logger, err := newLogger(*logLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync()
	}()

	client, err := knapga.New(knapga.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(summary)
	}

	fmt.Printf("run completed run_id=%s weight_window=[%d,%d] pop=%d epochs=%d seed=%d bootstrap_attempts=%d\n",
		summary.RunID,
		req.Config.WeightMin,
		req.Config.WeightMax,
		req.Config.PopulationSize,
		req.Config.Epochs,
		req.Config.Seed,
		summary.BootstrapAttempts,
	)
	for _, item := range summary.SelectedItems {
		fmt.Printf("selected id=%s weight=%d value=%g\n", item.ID, item.Weight, item.Value)
	}
	fmt.Printf("chromosome=%s best_weight=%d best_value=%g\n", summary.BestChromosome, summary.BestWeight, summary.BestValue)
	fmt.Printf("artifacts_dir=%s\n", filepath.Clean(summary.ArtifactsDir))
	return nil
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := knapga.New(knapga.Options{ArtifactsDir: artifactsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, knapga.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return writeJSON(runs)
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s items=%d weight_window=[%d,%d] pop=%d epochs=%d seed=%d chromosome=%s final_best_value=%g\n",
			r.RunID,
			r.CreatedAtUTC,
			r.Items,
			r.WeightMin,
			r.WeightMax,
			r.Population,
			r.Epochs,
			r.Seed,
			r.BestChromosome,
			r.FinalBestValue,
		)
	}
	return nil
}

func runFitness(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show fitness history for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDB, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "fitness"); err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := knapga.New(knapga.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, knapga.FitnessHistoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Println("no fitness history")
		return nil
	}
	if *jsonOut {
		return writeJSON(history)
	}

	for i, best := range history {
		fmt.Printf("generation=%d best_value=%g\n", i+1, best)
	}
	return nil
}

func runDiagnostics(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("diagnostics", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show diagnostics for the most recent run from run index")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit diagnostics as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDB, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "diagnostics"); err != nil {
		return err
	}
	if *limit < 0 {
		*limit = 0
	}

	client, err := knapga.New(knapga.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	diagnostics, err := client.Diagnostics(ctx, knapga.DiagnosticsRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(diagnostics) == 0 {
		fmt.Println("no diagnostics")
		return nil
	}
	if *jsonOut {
		return writeJSON(diagnostics)
	}

	for _, d := range diagnostics {
		fmt.Printf("generation=%d best_value=%g best_weight=%d mean_value=%.6f feasible=%d crossover_pairs=%d mutated_bits=%d fallback=%t\n",
			d.Generation,
			d.BestValue,
			d.BestWeight,
			d.MeanValue,
			d.FeasibleCount,
			d.CrossoverPairs,
			d.MutatedBits,
			d.Fallback,
		)
	}
	return nil
}

func runBest(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("best", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the best selection of the most recent run from run index")
	jsonOut := fs.Bool("json", false, "emit best selection as JSON")
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", defaultDB, "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "best"); err != nil {
		return err
	}

	client, err := knapga.New(knapga.Options{
		StoreKind:    *storeKind,
		DBPath:       *dbPath,
		ArtifactsDir: artifactsDir,
		ExportsDir:   exportsDir,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	best, err := client.Best(ctx, knapga.BestRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return writeJSON(best)
	}

	fmt.Printf("run_id=%s chromosome=%s weight=%d value=%g\n", best.RunID, best.Chromosome, best.Weight, best.Value)
	for _, item := range best.SelectedItems {
		fmt.Printf("selected id=%s weight=%d value=%g\n", item.ID, item.Weight, item.Value)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", exportsDir, "export output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkRunSelector(*runID, *latest, "export"); err != nil {
		return err
	}

	client, err := knapga.New(knapga.Options{ArtifactsDir: artifactsDir, ExportsDir: exportsDir})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, knapga.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Printf("exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

// runCatalog prints a catalog and optionally converts it to another format.
func runCatalog(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("catalog", flag.ContinueOnError)
	in := fs.String("in", "", "catalog to read (.json|.csv|.xlsx); sample catalog when empty")
	out := fs.String("out", "", "write the catalog to this path (.json|.xlsx)")
	jsonOut := fs.Bool("json", false, "emit catalog as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	items := catalog.Default()
	if *in != "" {
		loaded, err := catalog.Load(*in)
		if err != nil {
			return err
		}
		items = loaded
	}

	if *out != "" {
		switch strings.ToLower(filepath.Ext(*out)) {
		case ".xlsx":
			if err := catalog.WriteXLSX(*out, items); err != nil {
				return err
			}
		case ".json":
			data, err := catalog.EncodeJSON(items)
			if err != nil {
				return err
			}
			if err := os.WriteFile(*out, data, 0o644); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: %s", catalog.ErrUnsupportedFormat, *out)
		}
		fmt.Printf("wrote catalog items=%d to=%s\n", len(items), filepath.Clean(*out))
		return nil
	}

	if *jsonOut {
		return writeJSON(items)
	}
	for i, item := range items {
		fmt.Printf("bit=%d id=%s weight=%d value=%g\n", i, item.ID, item.Weight, item.Value)
	}
	fmt.Printf("items=%d total_weight=%d\n", len(items), catalog.TotalWeight(items))
	return nil
}

func checkRunSelector(runID string, latest bool, command string) error {
	if runID != "" && latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if runID == "" && !latest {
		return fmt.Errorf("%s requires --run-id or --latest", command)
	}
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: knapgactl <init|reset|run|runs|fitness|diagnostics|best|export|catalog> [flags]", msg)
}
