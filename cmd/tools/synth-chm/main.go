// Command synth-chm writes a synthetic canopy height model and a matching
// reference biomass table for exercising the pipeline offline.
package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/banshee-data/treecrown/internal/monitoring"
	"github.com/banshee-data/treecrown/internal/raster"
)

func main() {
	outDir := flag.String("out", ".", "output directory")
	stem := flag.String("name", "SYNTH_CHM", "output file stem")
	opts := defaultOptions()
	flag.IntVar(&opts.Rows, "rows", opts.Rows, "raster rows")
	flag.IntVar(&opts.Cols, "cols", opts.Cols, "raster columns")
	flag.IntVar(&opts.Crowns, "crowns", opts.Crowns, "number of crowns to place")
	flag.IntVar(&opts.Reference, "reference", opts.Reference, "number of reference trees in the training table")
	flag.Float64Var(&opts.MinHeight, "min-height", opts.MinHeight, "shortest crown apex in metres")
	flag.Float64Var(&opts.MaxHeight, "max-height", opts.MaxHeight, "tallest crown apex in metres")
	flag.Uint64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	epsg := flag.Int("epsg", 32611, "EPSG code of the output raster (0 leaves it unset)")
	flag.Parse()

	log := monitoring.Logger()

	chm, table, err := generate(opts)
	if err != nil {
		log.Fatal().Err(err).Msg("generate")
	}

	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create output dir")
	}
	ref := raster.GeoRef{GeoTransform: [6]float64{256000, 1, 0, 4106000, 0, -1}}
	if *epsg != 0 {
		if ref.Projection, err = raster.EPSGToWKT(*epsg); err != nil {
			log.Fatal().Err(err).Msg("resolve projection")
		}
	}
	chmPath := filepath.Join(*outDir, *stem+".tif")
	if err := raster.Write(chmPath, chm, ref, -9999); err != nil {
		log.Fatal().Err(err).Msg("write chm")
	}

	trainPath := filepath.Join(*outDir, *stem+"_training.csv")
	f, err := os.Create(trainPath)
	if err != nil {
		log.Fatal().Err(err).Msg("create training table")
	}
	if err := table.WriteCSV(f); err != nil {
		log.Fatal().Err(err).Msg("write training table")
	}
	if err := f.Close(); err != nil {
		log.Fatal().Err(err).Msg("close training table")
	}

	log.Info().
		Str("chm", chmPath).
		Str("training", trainPath).
		Int("rows", chm.Rows).
		Int("cols", chm.Cols).
		Int("reference_trees", table.Len()).
		Msg("synthetic data written")
}
