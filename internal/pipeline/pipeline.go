package pipeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/banshee-data/treecrown/internal/biomass"
	"github.com/banshee-data/treecrown/internal/config"
	"github.com/banshee-data/treecrown/internal/crown"
	"github.com/banshee-data/treecrown/internal/features"
	"github.com/banshee-data/treecrown/internal/forest"
	"github.com/banshee-data/treecrown/internal/fsutil"
	"github.com/banshee-data/treecrown/internal/monitoring"
	"github.com/banshee-data/treecrown/internal/raster"
	"github.com/banshee-data/treecrown/internal/timeutil"
)

// Inputs names the files of one run.
type Inputs struct {
	CHMPath      string
	TrainingPath string
	OutputDir    string // empty skips writing outputs
}

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage   string
	Elapsed time.Duration
}

// Result carries every intermediate product of a run.
type Result struct {
	Metadata     *raster.Metadata
	CHM          *raster.Grid
	Smoothed     *raster.Grid
	Segmentation *crown.Segmentation
	Trees        []features.TreeFeatures
	Biomass      []float64 // kg, aligned with Trees
	BiomassGrid  *raster.Grid
	Summary      biomass.Summary
	OrphanArea   float64 // squared map units
	Importances  map[string]float64
	Timings      []StageTiming
	StartedAt    time.Time
	Elapsed      time.Duration
	Outputs      OutputPaths
}

// Runner executes the pipeline with one configuration.
type Runner struct {
	Config *config.PipelineConfig
	FS     fsutil.FileSystem
	Clock  timeutil.Clock
	Logger *zerolog.Logger
}

// NewRunner returns a Runner on the OS filesystem and wall clock.
func NewRunner(cfg *config.PipelineConfig) *Runner {
	if cfg == nil {
		cfg = config.EmptyPipelineConfig()
	}
	return &Runner{
		Config: cfg,
		FS:     fsutil.OSFileSystem{},
		Clock:  timeutil.RealClock{},
		Logger: monitoring.Logger(),
	}
}

// Run loads in, processes it, and writes outputs when in.OutputDir is set.
func Run(cfg *config.PipelineConfig, in Inputs) (*Result, error) {
	return NewRunner(cfg).Run(in)
}

// ForestConfig maps the pipeline settings onto forest hyperparameters.
func ForestConfig(cfg *config.PipelineConfig) forest.Config {
	fc := forest.DefaultConfig()
	fc.Trees = cfg.GetForestTrees()
	fc.MaxDepth = cfg.GetForestMaxDepth()
	fc.MinSamplesSplit = cfg.GetForestMinSamplesSplit()
	fc.MaxFeatures = cfg.GetForestMaxFeatures()
	fc.Seed = cfg.GetRandomSeed()
	return fc
}

// Segmenter builds the crown segmenter from the pipeline settings.
func Segmenter(cfg *config.PipelineConfig) crown.Segmenter {
	return crown.Segmenter{
		Window:        cfg.GetPeakWindow(),
		ExcludeBorder: cfg.GetPeakExcludeBorder(),
		Connectivity:  cfg.GetConnectivity(),
	}
}

func (r *Runner) stage(name string, timings *[]StageTiming, fn func() error) error {
	start := r.Clock.Now()
	err := fn()
	elapsed := r.Clock.Since(start)
	*timings = append(*timings, StageTiming{Stage: name, Elapsed: elapsed})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	r.Logger.Debug().Str("stage", name).Dur("elapsed", elapsed).Msg("stage complete")
	return nil
}

// Run executes the full pipeline on files.
func (r *Runner) Run(in Inputs) (*Result, error) {
	if err := r.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	started := r.Clock.Now()
	var timings []StageTiming

	var (
		chm   *raster.Grid
		meta  *raster.Metadata
		table *forest.TrainingTable
	)
	err := r.stage("load", &timings, func() error {
		var err error
		chm, meta, err = raster.Load(in.CHMPath)
		if err != nil {
			return err
		}
		table, err = forest.LoadTrainingTable(r.FS, in.TrainingPath, features.Width)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.Logger.Info().
		Str("path", in.CHMPath).
		Int("rows", meta.Rows).
		Int("cols", meta.Cols).
		Float64("pixel_width", meta.PixelWidth).
		Float64("max_height", meta.Stats.Max).
		Int("reference_trees", table.Len()).
		Msg("inputs loaded")

	res, err := r.process(chm, meta, table, timings)
	if err != nil {
		return nil, err
	}
	res.StartedAt = started

	if in.OutputDir != "" {
		err := r.stage("write", &res.Timings, func() error {
			var err error
			res.Outputs, err = r.WriteOutputs(res, in.OutputDir, Stem(in.CHMPath))
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	res.Elapsed = r.Clock.Since(started)
	return res, nil
}

// Process runs every in-memory stage on an already loaded CHM.
func (r *Runner) Process(chm *raster.Grid, meta *raster.Metadata, table *forest.TrainingTable) (*Result, error) {
	if err := r.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	started := r.Clock.Now()
	res, err := r.process(chm, meta, table, nil)
	if err != nil {
		return nil, err
	}
	res.StartedAt = started
	res.Elapsed = r.Clock.Since(started)
	return res, nil
}

func (r *Runner) process(chm *raster.Grid, meta *raster.Metadata, table *forest.TrainingTable, timings []StageTiming) (*Result, error) {
	cfg := r.Config
	res := &Result{Metadata: meta, CHM: chm}

	err := r.stage("smooth", &timings, func() error {
		var err error
		res.Smoothed, err = crown.Smooth(chm, cfg.GetGaussianSigma(), cfg.GetGaussianTruncate())
		return err
	})
	if err != nil {
		return nil, err
	}

	err = r.stage("segment", &timings, func() error {
		var err error
		res.Segmentation, err = Segmenter(cfg).Segment(res.Smoothed)
		return err
	})
	if err != nil {
		return nil, err
	}
	seg := res.Segmentation
	res.OrphanArea = float64(seg.Orphans.Cells) * meta.CellArea()
	r.Logger.Info().
		Int("markers", seg.MarkerCount).
		Int("segments", seg.Segments).
		Int("mask_cells", seg.Mask.Count()).
		Msg("crowns segmented")
	if seg.Orphans.Cells > 0 {
		r.Logger.Warn().
			Int("orphan_cells", seg.Orphans.Cells).
			Int("orphan_components", seg.Orphans.Components).
			Float64("orphan_area", res.OrphanArea).
			Msg("vegetation without a crown seed excluded from biomass")
	}

	err = r.stage("features", &timings, func() error {
		var err error
		res.Trees, err = features.Extract(chm, seg.Labels, cfg.GetCrownPercentiles())
		return err
	})
	if err != nil {
		return nil, err
	}

	est := biomass.NewEstimator(ForestConfig(cfg))
	err = r.stage("fit", &timings, func() error {
		return est.Fit(table)
	})
	if err != nil {
		return nil, err
	}
	res.Importances = est.Importances()
	st := est.ModelStats()
	r.Logger.Debug().
		Int("trees", st.Trees).
		Int("width", st.Width).
		Int("max_depth", st.MaxDepth).
		Float64("mean_depth", st.MeanDepth).
		Int("leaves", st.Leaves).
		Interface("importances", res.Importances).
		Msg("forest fitted")

	err = r.stage("estimate", &timings, func() error {
		var err error
		res.Biomass, err = est.Estimate(res.Trees)
		if err != nil {
			return err
		}
		res.BiomassGrid, err = biomass.Scatter(seg.Labels, features.Labels(res.Trees), res.Biomass, cfg.GetOutputNoData())
		return err
	})
	if err != nil {
		return nil, err
	}

	res.Summary = biomass.Summarize(res.Biomass)
	res.Timings = timings
	r.Logger.Info().
		Int("trees", res.Summary.Count).
		Float64("mean_kg", res.Summary.Mean).
		Float64("std_kg", res.Summary.StdDev).
		Float64("min_kg", res.Summary.Min).
		Float64("max_kg", res.Summary.Max).
		Float64("sum_kg", res.Summary.Sum).
		Msg("biomass estimated")
	return res, nil
}
