package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/treecrown/internal/fsutil"
	"github.com/banshee-data/treecrown/internal/units"
)

// DefaultConfigPath is the path to the canonical pipeline defaults file.
const DefaultConfigPath = "config/pipeline.defaults.json"

// PipelineConfig holds every tunable of a biomass run. Nil fields fall
// back to the defaults returned by the Get* accessors, so partial files
// are safe.
type PipelineConfig struct {
	// Smoothing
	GaussianSigma    *float64 `json:"gaussian_sigma,omitempty"`
	GaussianTruncate *float64 `json:"gaussian_truncate,omitempty"`

	// Segmentation
	PeakWindow        *int `json:"peak_window,omitempty"`
	PeakExcludeBorder *int `json:"peak_exclude_border,omitempty"`
	Connectivity      *int `json:"connectivity,omitempty"`

	// Features
	CrownPercentiles []float64 `json:"crown_percentiles,omitempty"`

	// Forest
	ForestTrees           *int    `json:"forest_trees,omitempty"`
	ForestMaxDepth        *int    `json:"forest_max_depth,omitempty"`
	ForestMinSamplesSplit *int    `json:"forest_min_samples_split,omitempty"`
	ForestMaxFeatures     *int    `json:"forest_max_features,omitempty"`
	RandomSeed            *uint64 `json:"random_seed,omitempty"`

	// Output
	OutputNoData *float64 `json:"output_nodata,omitempty"`
	OutputEPSG   *int     `json:"output_epsg,omitempty"` // 0 copies the input projection
	MassUnits    *string  `json:"mass_units,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }
func ptrUint64(v uint64) *uint64    { return &v }
func ptrString(v string) *string    { return &v }

// EmptyPipelineConfig returns a config with every field unset.
func EmptyPipelineConfig() *PipelineConfig {
	return &PipelineConfig{}
}

// DefaultPipelineConfig returns a config with every field populated.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		GaussianSigma:         ptrFloat64(2.0),
		GaussianTruncate:      ptrFloat64(2.0),
		PeakWindow:            ptrInt(5),
		PeakExcludeBorder:     ptrInt(1),
		Connectivity:          ptrInt(8),
		CrownPercentiles:      []float64{50, 60, 70},
		ForestTrees:           ptrInt(100),
		ForestMaxDepth:        ptrInt(30),
		ForestMinSamplesSplit: ptrInt(2),
		ForestMaxFeatures:     ptrInt(0),
		RandomSeed:            ptrUint64(2),
		OutputNoData:          ptrFloat64(-9999),
		OutputEPSG:            ptrInt(0),
		MassUnits:             ptrString("kg"),
	}
}

// LoadPipelineConfig loads a PipelineConfig from a JSON file on disk.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	return LoadPipelineConfigFS(fsutil.OSFileSystem{}, path)
}

// LoadPipelineConfigFS loads a PipelineConfig from fsys. The file must
// have a .json extension and be under 1 MB.
func LoadPipelineConfigFS(fsys fsutil.FileSystem, path string) (*PipelineConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := fsys.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := fsys.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyPipelineConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory
// or one of its parents. Panics if the file cannot be loaded; intended for
// tests.
func MustLoadDefaultConfig() *PipelineConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from cmd/tools/synth-chm/
	}
	for _, path := range candidates {
		if cfg, err := LoadPipelineConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that any set values are usable.
func (c *PipelineConfig) Validate() error {
	if c.GaussianSigma != nil && *c.GaussianSigma <= 0 {
		return fmt.Errorf("gaussian_sigma must be positive, got %g", *c.GaussianSigma)
	}
	if c.GaussianTruncate != nil && *c.GaussianTruncate <= 0 {
		return fmt.Errorf("gaussian_truncate must be positive, got %g", *c.GaussianTruncate)
	}
	if c.PeakWindow != nil && (*c.PeakWindow < 3 || *c.PeakWindow%2 == 0) {
		return fmt.Errorf("peak_window must be odd and at least 3, got %d", *c.PeakWindow)
	}
	if c.PeakExcludeBorder != nil && *c.PeakExcludeBorder < 0 {
		return fmt.Errorf("peak_exclude_border must be non-negative, got %d", *c.PeakExcludeBorder)
	}
	if c.Connectivity != nil && *c.Connectivity != 4 && *c.Connectivity != 8 {
		return fmt.Errorf("connectivity must be 4 or 8, got %d", *c.Connectivity)
	}
	if c.CrownPercentiles != nil {
		if len(c.CrownPercentiles) != 3 {
			return fmt.Errorf("crown_percentiles must have exactly 3 values, got %d", len(c.CrownPercentiles))
		}
		prev := 0.0
		for _, p := range c.CrownPercentiles {
			if p <= prev || p > 100 {
				return fmt.Errorf("crown_percentiles must be strictly increasing within (0, 100], got %v", c.CrownPercentiles)
			}
			prev = p
		}
	}
	if c.ForestTrees != nil && *c.ForestTrees < 1 {
		return fmt.Errorf("forest_trees must be at least 1, got %d", *c.ForestTrees)
	}
	if c.ForestMaxDepth != nil && *c.ForestMaxDepth < 1 {
		return fmt.Errorf("forest_max_depth must be at least 1, got %d", *c.ForestMaxDepth)
	}
	if c.ForestMinSamplesSplit != nil && *c.ForestMinSamplesSplit < 2 {
		return fmt.Errorf("forest_min_samples_split must be at least 2, got %d", *c.ForestMinSamplesSplit)
	}
	if c.ForestMaxFeatures != nil && *c.ForestMaxFeatures < 0 {
		return fmt.Errorf("forest_max_features must be non-negative, got %d", *c.ForestMaxFeatures)
	}
	if c.OutputEPSG != nil && *c.OutputEPSG < 0 {
		return fmt.Errorf("output_epsg must be non-negative, got %d", *c.OutputEPSG)
	}
	if c.MassUnits != nil && !units.IsValidMass(*c.MassUnits) {
		return fmt.Errorf("mass_units must be one of %s, got %q", units.GetValidMassUnitsString(), *c.MassUnits)
	}
	return nil
}

// GetGaussianSigma returns the gaussian_sigma value or the default.
func (c *PipelineConfig) GetGaussianSigma() float64 {
	if c.GaussianSigma == nil {
		return 2.0 // default
	}
	return *c.GaussianSigma
}

// GetGaussianTruncate returns the gaussian_truncate value or the default.
func (c *PipelineConfig) GetGaussianTruncate() float64 {
	if c.GaussianTruncate == nil {
		return 2.0 // default
	}
	return *c.GaussianTruncate
}

// GetPeakWindow returns the peak_window value or the default.
func (c *PipelineConfig) GetPeakWindow() int {
	if c.PeakWindow == nil {
		return 5 // default
	}
	return *c.PeakWindow
}

// GetPeakExcludeBorder returns the peak_exclude_border value or the default.
func (c *PipelineConfig) GetPeakExcludeBorder() int {
	if c.PeakExcludeBorder == nil {
		return 1 // default
	}
	return *c.PeakExcludeBorder
}

// GetConnectivity returns the connectivity value or the default.
func (c *PipelineConfig) GetConnectivity() int {
	if c.Connectivity == nil {
		return 8 // default
	}
	return *c.Connectivity
}

// GetCrownPercentiles returns the crown_percentiles or the default 50/60/70.
func (c *PipelineConfig) GetCrownPercentiles() [3]float64 {
	if len(c.CrownPercentiles) != 3 {
		return [3]float64{50, 60, 70}
	}
	return [3]float64{c.CrownPercentiles[0], c.CrownPercentiles[1], c.CrownPercentiles[2]}
}

// GetForestTrees returns the forest_trees value or the default.
func (c *PipelineConfig) GetForestTrees() int {
	if c.ForestTrees == nil {
		return 100 // default
	}
	return *c.ForestTrees
}

// GetForestMaxDepth returns the forest_max_depth value or the default.
func (c *PipelineConfig) GetForestMaxDepth() int {
	if c.ForestMaxDepth == nil {
		return 30 // default
	}
	return *c.ForestMaxDepth
}

// GetForestMinSamplesSplit returns the forest_min_samples_split value or the default.
func (c *PipelineConfig) GetForestMinSamplesSplit() int {
	if c.ForestMinSamplesSplit == nil {
		return 2 // default
	}
	return *c.ForestMinSamplesSplit
}

// GetForestMaxFeatures returns the forest_max_features value or the default.
func (c *PipelineConfig) GetForestMaxFeatures() int {
	if c.ForestMaxFeatures == nil {
		return 0 // default: all features
	}
	return *c.ForestMaxFeatures
}

// GetRandomSeed returns the random_seed value or the default.
func (c *PipelineConfig) GetRandomSeed() uint64 {
	if c.RandomSeed == nil {
		return 2 // default
	}
	return *c.RandomSeed
}

// GetOutputNoData returns the output_nodata value or the default.
func (c *PipelineConfig) GetOutputNoData() float64 {
	if c.OutputNoData == nil {
		return -9999 // default
	}
	return *c.OutputNoData
}

// GetOutputEPSG returns the output_epsg value or the default.
func (c *PipelineConfig) GetOutputEPSG() int {
	if c.OutputEPSG == nil {
		return 0 // default: copy input
	}
	return *c.OutputEPSG
}

// GetMassUnits returns the mass_units value or the default.
func (c *PipelineConfig) GetMassUnits() string {
	if c.MassUnits == nil {
		return units.KG // default
	}
	return *c.MassUnits
}
