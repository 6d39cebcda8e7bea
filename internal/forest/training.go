package forest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/banshee-data/treecrown/internal/fsutil"
)

// TrainingTable holds reference trees: one biomass target per row and the
// matching feature vector.
type TrainingTable struct {
	Biomass  []float64
	Features [][]float64
}

// Len is the number of reference trees.
func (t *TrainingTable) Len() int { return len(t.Biomass) }

// LoadTrainingTable reads a headerless CSV whose first column is biomass
// and whose next width columns are features.
func LoadTrainingTable(fsys fsutil.FileSystem, path string, width int) (*TrainingTable, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open training table: %w", err)
	}
	defer f.Close()

	table, err := ReadTrainingTable(f, width)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// ReadTrainingTable parses the training CSV from r.
func ReadTrainingTable(r io.Reader, width int) (*TrainingTable, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	table := &TrainingTable{}
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse training table: %w", err)
		}
		line++
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		if len(rec) != width+1 {
			return nil, fmt.Errorf("%w: line %d has %d columns, want %d", ErrWidthMismatch, line, len(rec), width+1)
		}
		vals := make([]float64, len(rec))
		for i, s := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			vals[i] = v
		}
		table.Biomass = append(table.Biomass, vals[0])
		table.Features = append(table.Features, vals[1:])
	}
	if table.Len() == 0 {
		return nil, ErrEmptyTable
	}
	return table, nil
}

// WriteCSV writes the table in the headerless layout ReadTrainingTable
// accepts.
func (t *TrainingTable) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	for i, target := range t.Biomass {
		rec := make([]string, 0, len(t.Features[i])+1)
		rec = append(rec, strconv.FormatFloat(target, 'g', -1, 64))
		for _, v := range t.Features[i] {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
