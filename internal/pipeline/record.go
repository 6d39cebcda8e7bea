package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/treecrown/internal/config"
	"github.com/banshee-data/treecrown/internal/db"
	"github.com/banshee-data/treecrown/internal/units"
)

// Recorder persists a finished run and its trees as one unit.
// *db.RunStore implements it.
type Recorder interface {
	InsertRunWithTrees(run *db.Run, trees []db.Tree) error
}

type runParams struct {
	Config      *config.PipelineConfig `json:"config"`
	Importances map[string]float64     `json:"feature_importances"`
	Outputs     OutputPaths            `json:"outputs"`
}

// Record stores res and its trees, returning the new run id.
func Record(rec Recorder, in Inputs, cfg *config.PipelineConfig, res *Result) (string, error) {
	params, err := json.Marshal(runParams{Config: cfg, Importances: res.Importances, Outputs: res.Outputs})
	if err != nil {
		return "", fmt.Errorf("encode run params: %w", err)
	}
	seg := res.Segmentation
	run := &db.Run{
		CreatedAt:        res.StartedAt,
		InputPath:        in.CHMPath,
		TrainingPath:     in.TrainingPath,
		ParamsJSON:       string(params),
		Rows:             res.CHM.Rows,
		Cols:             res.CHM.Cols,
		SegmentCount:     seg.Segments,
		OrphanCells:      seg.Orphans.Cells,
		OrphanComponents: seg.Orphans.Components,
		OrphanArea:       res.OrphanArea,
		BiomassMean:      res.Summary.Mean,
		BiomassStd:       res.Summary.StdDev,
		BiomassMin:       res.Summary.Min,
		BiomassMax:       res.Summary.Max,
		BiomassSum:       res.Summary.Sum,
		ElapsedMs:        res.Elapsed.Milliseconds(),
	}
	trees := make([]db.Tree, len(res.Trees))
	for i, t := range res.Trees {
		trees[i] = db.Tree{
			Label:           t.Label,
			Area:            t.Area,
			MajorAxisLength: t.MajorAxisLength,
			MaxHeight:       t.MaxHeight,
			MinHeight:       t.MinHeight,
			P50:             t.Percentiles[0],
			P60:             t.Percentiles[1],
			P70:             t.Percentiles[2],
			FullCrown:       t.FullCrown,
			Crown50:         t.Crown[0],
			Crown60:         t.Crown[1],
			Crown70:         t.Crown[2],
			BiomassKg:       res.Biomass[i],
		}
	}
	if err := rec.InsertRunWithTrees(run, trees); err != nil {
		return "", err
	}
	return run.RunID, nil
}

// SummaryLine is the console total for res. Totals in units other than
// kg are appended in parentheses.
func SummaryLine(res *Result, massUnits string) string {
	line := fmt.Sprintf("Sum of biomass is %.2f kg", res.Summary.Sum)
	if massUnits != "" && massUnits != units.KG {
		line += fmt.Sprintf(" (%.4g %s)", units.ConvertMass(res.Summary.Sum, massUnits), massUnits)
	}
	return line
}
