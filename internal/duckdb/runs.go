package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sort"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"
)

// Run is one recorded conversion.
type Run struct {
	ID           int64
	Input        FileFingerprint
	Prefix       string
	SampleID     string
	LinesRead    int64
	Variants     int64
	Dropped      int64
	MissingCalls int64
	HetCalls     int64
	Duration     time.Duration
	ConvertedAt  time.Time
	Chromosomes  map[int]int64 // written by RecordRun; load with RunChromosomes
}

// RecordRun inserts a run and its per-chromosome totals and returns the new run ID.
// If the totals cannot be written the run row is removed again.
func (s *Store) RecordRun(run *Run) (int64, error) {
	if run.ConvertedAt.IsZero() {
		run.ConvertedAt = time.Now()
	}

	var id int64
	err := s.db.QueryRow(`INSERT INTO conversion_runs (
		input_path, input_size, input_modtime_ns, output_prefix, sample_id,
		lines_read, variants, dropped, missing_calls, het_calls,
		duration_ms, converted_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		run.Input.Path, run.Input.Size, run.Input.ModTime.UnixNano(), run.Prefix, run.SampleID,
		run.LinesRead, run.Variants, run.Dropped, run.MissingCalls, run.HetCalls,
		run.Duration.Milliseconds(), run.ConvertedAt.UTC(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	run.ID = id

	if err := s.writeChromosomes(id, run.Chromosomes); err != nil {
		run.ID = 0
		s.db.Exec(`DELETE FROM run_chromosomes WHERE run_id=?`, id) //nolint:errcheck
		if _, derr := s.db.Exec(`DELETE FROM conversion_runs WHERE id=?`, id); derr != nil {
			return 0, errors.Join(err, fmt.Errorf("remove run %d: %w", id, derr))
		}
		return 0, err
	}
	return id, nil
}

// writeChromosomes batch-inserts per-chromosome totals using the Appender API.
func (s *Store) writeChromosomes(runID int64, counts map[int]int64) error {
	if len(counts) == 0 {
		return nil
	}

	chroms := make([]int, 0, len(counts))
	for c := range counts {
		chroms = append(chroms, c)
	}
	sort.Ints(chroms)

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "run_chromosomes")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, c := range chroms {
		if err := appender.AppendRow(runID, int32(c), counts[c]); err != nil {
			return fmt.Errorf("append chromosome count: %w", err)
		}
	}

	return appender.Flush()
}

const runColumns = `id, input_path, input_size, input_modtime_ns, output_prefix, sample_id,
	lines_read, variants, dropped, missing_calls, het_calls, duration_ms, converted_at`

// ListRuns returns the most recent runs, newest first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM conversion_runs ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FindRun returns the latest run of the same input into the same prefix, or
// nil if there is none.
func (s *Store) FindRun(input FileFingerprint, prefix string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM conversion_runs
		WHERE input_path=? AND input_size=? AND input_modtime_ns=? AND output_prefix=?
		ORDER BY id DESC LIMIT 1`,
		input.Path, input.Size, input.ModTime.UnixNano(), prefix)

	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RunChromosomes returns per-chromosome variant totals of a run.
func (s *Store) RunChromosomes(runID int64) (map[int]int64, error) {
	rows, err := s.db.Query(`SELECT chrom, variants FROM run_chromosomes WHERE run_id=? ORDER BY chrom`, runID)
	if err != nil {
		return nil, fmt.Errorf("query chromosomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int64)
	for rows.Next() {
		var chrom int32
		var n int64
		if err := rows.Scan(&chrom, &n); err != nil {
			return nil, fmt.Errorf("scan chromosome count: %w", err)
		}
		counts[int(chrom)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chromosomes: %w", err)
	}
	return counts, nil
}

func scanRun(row interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		r          Run
		modtimeNS  int64
		durationMS int64
	)
	if err := row.Scan(
		&r.ID, &r.Input.Path, &r.Input.Size, &modtimeNS, &r.Prefix, &r.SampleID,
		&r.LinesRead, &r.Variants, &r.Dropped, &r.MissingCalls, &r.HetCalls,
		&durationMS, &r.ConvertedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan run: %w", err)
	}
	r.Input.ModTime = time.Unix(0, modtimeNS)
	r.Duration = time.Duration(durationMS) * time.Millisecond
	return r, nil
}
