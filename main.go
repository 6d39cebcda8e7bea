package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/banshee-data/treecrown/internal/config"
	"github.com/banshee-data/treecrown/internal/db"
	"github.com/banshee-data/treecrown/internal/monitoring"
	"github.com/banshee-data/treecrown/internal/pipeline"
	"github.com/banshee-data/treecrown/internal/version"
)

const defaultDBPath = "treecrown.db"

func main() {
	flag.Usage = func() { printUsage(os.Stdout) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	command := flag.Arg(0)
	if err := dispatch(command, flag.Args()[1:], os.Stdout); err != nil {
		monitoring.Logger().Fatal().Err(err).Str("command", command).Msg("command failed")
	}
}

var errUnknownCommand = errors.New("unknown command")

func dispatch(command string, args []string, out io.Writer) error {
	switch command {
	case "run":
		return handleRun(args, out)
	case "runs":
		return handleRuns(args, out)
	case "trees":
		return handleTrees(args, out)
	case "migrate":
		return handleMigrate(args, out)
	case "version":
		fmt.Fprintln(out, version.String())
		return nil
	case "help":
		printUsage(out)
		return nil
	default:
		printUsage(out)
		return fmt.Errorf("%w: %s", errUnknownCommand, command)
	}
}

func printUsage(out io.Writer) {
	fmt.Fprint(out, `treecrown - tree crown segmentation and biomass estimation from a canopy height model

Usage: treecrown <command> [options]

Commands:
  run        Segment a CHM GeoTIFF and estimate per-tree biomass
  runs       List recorded runs
  trees      List the trees of a recorded run
  migrate    Manage the run database schema (up, down, status, force)
  version    Show build information
  help       Show this help message

Examples:
  treecrown run --chm SJER_CHM.tif --training SJER_biomass_training.csv --out out/
  treecrown run --chm SJER_CHM.tif --training train.csv --db treecrown.db --sigma 1.5
  treecrown runs --db treecrown.db
  treecrown trees --db treecrown.db <run_id>
  treecrown migrate --db treecrown.db status
`)
}

// overrides holds CLI values that replace config file settings when set.
type overrides struct {
	sigma, truncate           float64
	window, border, conn      int
	trees, depth, maxFeatures int
	seed                      uint64
	epsg                      int
	nodata                    float64
	massUnits                 string
}

func (o *overrides) register(fs *flag.FlagSet) {
	fs.Float64Var(&o.sigma, "sigma", 2, "Gaussian smoothing sigma in cells")
	fs.Float64Var(&o.truncate, "truncate", 2, "Gaussian kernel truncation in sigmas")
	fs.IntVar(&o.window, "window", 5, "Local maximum window size (odd)")
	fs.IntVar(&o.border, "exclude-border", 1, "Cells along the edge where peaks are ignored")
	fs.IntVar(&o.conn, "connectivity", 8, "Pixel connectivity (4 or 8)")
	fs.IntVar(&o.trees, "trees", 100, "Number of trees in the random forest")
	fs.IntVar(&o.depth, "max-depth", 30, "Maximum depth of each regression tree")
	fs.IntVar(&o.maxFeatures, "max-features", 0, "Features tried per split (0 for all)")
	fs.Uint64Var(&o.seed, "seed", 2, "Random seed for the forest")
	fs.IntVar(&o.epsg, "epsg", 0, "Output EPSG code (0 copies the input projection)")
	fs.Float64Var(&o.nodata, "nodata", -9999, "No-data value for output rasters")
	fs.StringVar(&o.massUnits, "units", "kg", "Additional units for the biomass total")
}

// apply copies every flag the user set onto cfg.
func (o *overrides) apply(fs *flag.FlagSet, cfg *config.PipelineConfig) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sigma":
			cfg.GaussianSigma = &o.sigma
		case "truncate":
			cfg.GaussianTruncate = &o.truncate
		case "window":
			cfg.PeakWindow = &o.window
		case "exclude-border":
			cfg.PeakExcludeBorder = &o.border
		case "connectivity":
			cfg.Connectivity = &o.conn
		case "trees":
			cfg.ForestTrees = &o.trees
		case "max-depth":
			cfg.ForestMaxDepth = &o.depth
		case "max-features":
			cfg.ForestMaxFeatures = &o.maxFeatures
		case "seed":
			cfg.RandomSeed = &o.seed
		case "epsg":
			cfg.OutputEPSG = &o.epsg
		case "nodata":
			cfg.OutputNoData = &o.nodata
		case "units":
			cfg.MassUnits = &o.massUnits
		}
	})
}

func loadConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		return config.DefaultPipelineConfig(), nil
	}
	return config.LoadPipelineConfig(path)
}

func initLogging(level, format string) {
	monitoring.Init(monitoring.Config{Level: level, Format: format, Output: os.Stderr})
}

func handleRun(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	chmPath := fs.String("chm", "", "Canopy height model GeoTIFF (required)")
	trainingPath := fs.String("training", "", "Reference biomass CSV (required)")
	outDir := fs.String("out", "", "Directory for output rasters and the tree CSV")
	configPath := fs.String("config", "", "Pipeline config JSON (defaults built in)")
	dbPath := fs.String("db", "", "Record the run in this SQLite database")
	logLevel := fs.String("log-level", "info", "Log level (debug, info, warn, error)")
	logFormat := fs.String("log-format", "console", "Log format (console or json)")
	var ov overrides
	ov.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	initLogging(*logLevel, *logFormat)

	if *chmPath == "" || *trainingPath == "" {
		fs.Usage()
		return errors.New("--chm and --training are required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	ov.apply(fs, cfg)

	in := pipeline.Inputs{CHMPath: *chmPath, TrainingPath: *trainingPath, OutputDir: *outDir}
	res, err := pipeline.Run(cfg, in)
	if err != nil {
		return err
	}

	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		id, err := pipeline.Record(database.Runs(), in, cfg, res)
		if err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
		monitoring.Logger().Info().Str("run_id", id).Str("db", *dbPath).Msg("run recorded")
	}

	fmt.Fprintln(out, pipeline.SummaryLine(res, cfg.GetMassUnits()))
	return nil
}

func handleRuns(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	limit := fs.Int("limit", 20, "Maximum number of runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	runs, err := database.Runs().ListRuns(*limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tCREATED\tINPUT\tTREES\tORPHAN CELLS\tSUM KG")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.2f\n",
			r.RunID, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.InputPath,
			r.SegmentCount, r.OrphanCells, r.BiomassSum)
	}
	return tw.Flush()
}

func handleTrees(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("trees", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: treecrown trees [--db path] <run_id>")
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	store := database.Runs()
	runID := fs.Arg(0)
	if _, err := store.GetRun(runID); err != nil {
		return err
	}
	trees, err := store.TreesByRun(runID)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tAREA\tMAX HEIGHT\tMAJOR AXIS\tFULL CROWN\tBIOMASS KG")
	for _, t := range trees {
		fmt.Fprintf(tw, "%d\t%.0f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			t.Label, t.Area, t.MaxHeight, t.MajorAxisLength, t.FullCrown, t.BiomassKg)
	}
	return tw.Flush()
}

func handleMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	dbPath := fs.String("db", defaultDBPath, "SQLite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return db.RunMigrateCommand(fs.Args(), *dbPath, out)
}
