package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("db: run not found")

// Run is one pipeline execution.
type Run struct {
	RunID            string    `json:"run_id"`
	CreatedAt        time.Time `json:"created_at"`
	InputPath        string    `json:"input_path"`
	TrainingPath     string    `json:"training_path"`
	ParamsJSON       string    `json:"params_json"`
	Rows             int       `json:"rows"`
	Cols             int       `json:"cols"`
	SegmentCount     int       `json:"segment_count"`
	OrphanCells      int       `json:"orphan_cells"`
	OrphanComponents int       `json:"orphan_components"`
	OrphanArea       float64   `json:"orphan_area"`
	BiomassMean      float64   `json:"biomass_mean"`
	BiomassStd       float64   `json:"biomass_std"`
	BiomassMin       float64   `json:"biomass_min"`
	BiomassMax       float64   `json:"biomass_max"`
	BiomassSum       float64   `json:"biomass_sum"`
	ElapsedMs        int64     `json:"elapsed_ms"`
}

// Tree is one segmented crown of a run with its prediction.
type Tree struct {
	RunID           string  `json:"run_id"`
	Label           int32   `json:"label"`
	Area            float64 `json:"area"`
	MajorAxisLength float64 `json:"major_axis_length"`
	MaxHeight       float64 `json:"max_height"`
	MinHeight       float64 `json:"min_height"`
	P50             float64 `json:"p50"`
	P60             float64 `json:"p60"`
	P70             float64 `json:"p70"`
	FullCrown       float64 `json:"full_crown"`
	Crown50         float64 `json:"crown50"`
	Crown60         float64 `json:"crown60"`
	Crown70         float64 `json:"crown70"`
	BiomassKg       float64 `json:"biomass_kg"`
}

// RunStore persists runs and their trees.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

const runColumns = `
	run_id, created_unix_nanos, input_path, training_path, params_json,
	raster_rows, raster_cols, segment_count, orphan_cells, orphan_components, orphan_area,
	biomass_mean, biomass_std, biomass_min, biomass_max, biomass_sum, elapsed_ms`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	Prepare(query string) (*sql.Stmt, error)
}

// InsertRun stores a run. If run.RunID is empty, a new UUID is generated;
// a zero CreatedAt is set to now.
func (s *RunStore) InsertRun(run *Run) error {
	return insertRun(s.db, run)
}

// InsertTrees stores the trees of runID in one transaction.
func (s *RunStore) InsertTrees(runID string, trees []Tree) error {
	return s.inTx("insert trees", func(tx *sql.Tx) error {
		return insertTrees(tx, runID, trees)
	})
}

// InsertRunWithTrees stores a run and its trees atomically; if any tree
// fails, the run row is not kept either.
func (s *RunStore) InsertRunWithTrees(run *Run, trees []Tree) error {
	return s.inTx("insert run", func(tx *sql.Tx) error {
		if err := insertRun(tx, run); err != nil {
			return err
		}
		return insertTrees(tx, run.RunID, trees)
	})
}

func (s *RunStore) inTx(op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin %s: %w", op, err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", op, err)
	}
	return nil
}

func insertRun(ex execer, run *Run) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	if run.ParamsJSON == "" {
		run.ParamsJSON = "{}"
	}

	query := `INSERT INTO runs (` + runColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := ex.Exec(query,
		run.RunID,
		run.CreatedAt.UnixNano(),
		run.InputPath,
		run.TrainingPath,
		run.ParamsJSON,
		run.Rows,
		run.Cols,
		run.SegmentCount,
		run.OrphanCells,
		run.OrphanComponents,
		run.OrphanArea,
		run.BiomassMean,
		run.BiomassStd,
		run.BiomassMin,
		run.BiomassMax,
		run.BiomassSum,
		run.ElapsedMs,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func insertTrees(ex execer, runID string, trees []Tree) error {
	stmt, err := ex.Prepare(`
		INSERT INTO trees (
			run_id, label, area, major_axis_length, max_height, min_height,
			p50, p60, p70, full_crown, crown50, crown60, crown70, biomass_kg
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert trees: %w", err)
	}
	defer stmt.Close()

	for _, t := range trees {
		_, err := stmt.Exec(runID, t.Label, t.Area, t.MajorAxisLength, t.MaxHeight, t.MinHeight,
			t.P50, t.P60, t.P70, t.FullCrown, t.Crown50, t.Crown60, t.Crown70, t.BiomassKg)
		if err != nil {
			return fmt.Errorf("insert tree %d: %w", t.Label, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	r := &Run{}
	var created int64
	err := sc.Scan(
		&r.RunID, &created, &r.InputPath, &r.TrainingPath, &r.ParamsJSON,
		&r.Rows, &r.Cols, &r.SegmentCount, &r.OrphanCells, &r.OrphanComponents, &r.OrphanArea,
		&r.BiomassMean, &r.BiomassStd, &r.BiomassMin, &r.BiomassMax, &r.BiomassSum, &r.ElapsedMs,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, created)
	return r, nil
}

// GetRun returns the run with the given id.
func (s *RunStore) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. A non-positive limit
// returns all runs.
func (s *RunStore) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY created_unix_nanos DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// TreesByRun returns the trees of a run ordered by label.
func (s *RunStore) TreesByRun(runID string) ([]Tree, error) {
	rows, err := s.db.Query(`
		SELECT run_id, label, area, major_axis_length, max_height, min_height,
		       p50, p60, p70, full_crown, crown50, crown60, crown70, biomass_kg
		FROM trees
		WHERE run_id = ?
		ORDER BY label
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list trees: %w", err)
	}
	defer rows.Close()

	var trees []Tree
	for rows.Next() {
		var t Tree
		err := rows.Scan(&t.RunID, &t.Label, &t.Area, &t.MajorAxisLength, &t.MaxHeight, &t.MinHeight,
			&t.P50, &t.P60, &t.P70, &t.FullCrown, &t.Crown50, &t.Crown60, &t.Crown70, &t.BiomassKg)
		if err != nil {
			return nil, fmt.Errorf("scan tree: %w", err)
		}
		trees = append(trees, t)
	}
	return trees, rows.Err()
}

// DeleteRun removes a run and, through the foreign key, its trees.
func (s *RunStore) DeleteRun(runID string) error {
	result, err := s.db.Exec("DELETE FROM runs WHERE run_id = ?", runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
