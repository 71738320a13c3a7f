// Package store persists optimization runs and their cost traces in sqlite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/fumin/vqe/mat"
)

const (
	tableRun   = "run"
	tableTrace = "trace"
)

var (
	ErrNotFound = errors.New("not found")
)

// Run is a persisted optimization.
type Run struct {
	ID          string
	Name        string
	Hamiltonian *mat.COO
	Steps       int
	StepSize    float64
	Seed        uint64
	// Exact is the smallest eigenvalue of the Hamiltonian.
	Exact float64
	// Energy is NaN until the run is finished.
	Energy  float64
	Created time.Time
}

type Store struct {
	Path string
	db   *sql.DB
}

// Open opens the database at path, creating the tables if needed.
func Open(path string) (*Store, error) {
	s := &Store{Path: path}
	var err error
	s.db, err = newDB(path)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return s, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}

// CreateRun inserts r with a fresh ID and returns the ID.
func (s *Store) CreateRun(ctx context.Context, r Run) (string, error) {
	r.ID = uuid.NewString()
	if r.Created.IsZero() {
		r.Created = time.Now()
	}
	h, err := formatMatrix(r.Hamiltonian)
	if err != nil {
		return "", errors.Wrap(err, "")
	}
	var energy sql.NullFloat64
	if !math.IsNaN(r.Energy) {
		energy = sql.NullFloat64{Float64: r.Energy, Valid: true}
	}

	sqlStr := fmt.Sprintf(`INSERT INTO %s (id, name, hamiltonian, steps, stepsize, seed, exact, energy, created) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, tableRun)
	args := []any{r.ID, r.Name, h, r.Steps, r.StepSize, int64(r.Seed), r.Exact, energy, r.Created.UnixNano()}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return r.ID, nil
}

// AppendCost records the cost at the start of a step.
func (s *Store) AppendCost(ctx context.Context, id string, step int, cost float64) error {
	sqlStr := fmt.Sprintf(`INSERT OR REPLACE INTO %s (run_id, step, cost) VALUES (?, ?, ?)`, tableTrace)
	args := []any{id, step, cost}
	if _, err := s.db.ExecContext(ctx, sqlStr, args...); err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %#v", sqlStr, args))
	}
	return nil
}

// Finish sets the final energy of a run.
func (s *Store) Finish(ctx context.Context, id string, energy float64) error {
	sqlStr := fmt.Sprintf(`UPDATE %s SET energy=? WHERE id=?`, tableRun)
	res, err := s.db.ExecContext(ctx, sqlStr, energy, id)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("%s %s", sqlStr, id))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "")
	}
	if n == 0 {
		return errors.Wrap(ErrNotFound, id)
	}
	return nil
}

func (s *Store) Run(ctx context.Context, id string) (Run, error) {
	sqlStr := fmt.Sprintf(`SELECT id, name, hamiltonian, steps, stepsize, seed, exact, energy, created FROM %s WHERE id=?`, tableRun)
	r, err := scanRun(s.db.QueryRowContext(ctx, sqlStr, id))
	switch {
	case err == sql.ErrNoRows:
		return Run{}, errors.Wrap(ErrNotFound, id)
	case err != nil:
		return Run{}, errors.Wrap(err, "")
	}
	return r, nil
}

// Runs returns all runs, oldest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	sqlStr := fmt.Sprintf(`SELECT id, name, hamiltonian, steps, stepsize, seed, exact, energy, created FROM %s ORDER BY created, id`, tableRun)
	rows, err := s.db.QueryContext(ctx, sqlStr)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return runs, nil
}

// Trace returns the costs of a run ordered by step.
func (s *Store) Trace(ctx context.Context, id string) ([]float64, error) {
	sqlStr := fmt.Sprintf(`SELECT cost FROM %s WHERE run_id=? ORDER BY step`, tableTrace)
	rows, err := s.db.QueryContext(ctx, sqlStr, id)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	defer rows.Close()

	trace := make([]float64, 0)
	for rows.Next() {
		var cost float64
		if err := rows.Scan(&cost); err != nil {
			return nil, errors.Wrap(err, "")
		}
		trace = append(trace, cost)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	return trace, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var r Run
	var h string
	var seed, created int64
	var energy sql.NullFloat64
	if err := row.Scan(&r.ID, &r.Name, &h, &r.Steps, &r.StepSize, &seed, &r.Exact, &energy, &created); err != nil {
		return Run{}, err
	}
	var err error
	r.Hamiltonian, err = parseMatrix(h)
	if err != nil {
		return Run{}, errors.Wrap(err, r.ID)
	}
	r.Seed = uint64(seed)
	r.Energy = math.NaN()
	if energy.Valid {
		r.Energy = energy.Float64
	}
	r.Created = time.Unix(0, created)
	return r, nil
}

// formatMatrix writes a square matrix as comma separated entries in row major order.
func formatMatrix(m *mat.COO) (string, error) {
	if m == nil || m.Rows() != m.Cols() {
		return "", errors.Wrap(mat.ErrShape, fmt.Sprintf("%v", m))
	}
	entries := make([]string, 0, m.Rows()*m.Cols())
	for _, row := range m.Dense() {
		for _, v := range row {
			entries = append(entries, mat.FormatNumpy(v))
		}
	}
	return strings.Join(entries, ","), nil
}

func parseMatrix(s string) (*mat.COO, error) {
	entries := strings.Split(s, ",")
	flat := make([]complex128, 0, len(entries))
	for _, e := range entries {
		v, err := mat.ParseNumpy(e)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		flat = append(flat, v)
	}
	m, err := mat.Square(flat)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return m, nil
}

func newDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on", dbPath))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	if err := prepareDB(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "")
	}

	return db, nil
}

func prepareDB(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sqlStrs := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			hamiltonian TEXT NOT NULL,
			steps INTEGER NOT NULL,
			stepsize REAL NOT NULL,
			seed INTEGER NOT NULL,
			exact REAL NOT NULL,
			energy REAL,
			created INTEGER NOT NULL) STRICT`, tableRun),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			run_id TEXT NOT NULL REFERENCES %s (id),
			step INTEGER NOT NULL,
			cost REAL NOT NULL,
			PRIMARY KEY (run_id, step)) STRICT`, tableTrace, tableRun),
	}
	for _, sqlStr := range sqlStrs {
		if _, err := db.ExecContext(ctx, sqlStr); err != nil {
			return errors.Wrap(err, sqlStr)
		}
	}
	return nil
}
