// Package store persists scan history in a local SQLite database. Each run
// is recorded with its result set so later invocations can diff against the
// most recent stored baseline instead of a loose JSON file.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/netip"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	// SQLite driver registration.
	_ "github.com/mattn/go-sqlite3"

	"github.com/kallerud/driftscan/internal/errors"
	"github.com/kallerud/driftscan/internal/scan"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id TEXT PRIMARY KEY,
	network TEXT NOT NULL,
	started_at TIMESTAMP NOT NULL,
	completed_at TIMESTAMP NOT NULL,
	hosts_found INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS scan_records (
	run_id TEXT NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
	ip TEXT NOT NULL,
	open_ports TEXT NOT NULL,
	scanned_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scan_records_run ON scan_records(run_id);
`

// Run is one recorded scan invocation.
type Run struct {
	ID          uuid.UUID `db:"id"`
	Network     string    `db:"network"`
	StartedAt   time.Time `db:"started_at"`
	CompletedAt time.Time `db:"completed_at"`
	HostsFound  int       `db:"hosts_found"`
}

// Store provides access to the scan history database.
type Store struct {
	db *sqlx.DB
}

// Open opens (or creates) the history database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, errors.WrapConfigError(errors.CodeStorage,
			"failed to open history database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.WrapConfigError(errors.CodeStorage,
			"failed to initialize history schema", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing database handle. Used by tests.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun records one completed scan run with its full result set in a
// single transaction and returns the stored run.
func (s *Store) SaveRun(ctx context.Context, network string, startedAt time.Time,
	results scan.ResultSet) (*Run, error) {
	run := &Run{
		ID:          uuid.New(),
		Network:     network,
		StartedAt:   startedAt,
		CompletedAt: time.Now(),
		HostsFound:  len(results),
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO scan_runs (id, network, started_at, completed_at, hosts_found)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Network, run.StartedAt, run.CompletedAt, run.HostsFound)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	for i := range results {
		rec := &results[i]
		ports, merr := json.Marshal(rec.OpenPorts)
		if merr != nil {
			err = fmt.Errorf("failed to encode port set: %w", merr)
			return nil, err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO scan_records (run_id, ip, open_ports, scanned_at)
			 VALUES (?, ?, ?, ?)`,
			run.ID, rec.Host.String(), string(ports), rec.ScannedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert record: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	var runs []*Run
	err := s.db.SelectContext(ctx, &runs,
		`SELECT id, network, started_at, completed_at, hosts_found
		 FROM scan_runs ORDER BY completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recent run for the given network, or nil when
// the history has none.
func (s *Store) LatestRun(ctx context.Context, network string) (*Run, error) {
	var run Run
	err := s.db.GetContext(ctx, &run,
		`SELECT id, network, started_at, completed_at, hosts_found
		 FROM scan_runs WHERE network = ?
		 ORDER BY completed_at DESC LIMIT 1`, network)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest run: %w", err)
	}
	return &run, nil
}

// RunResults loads the result set stored for a run, ordered ascending by
// host address.
func (s *Store) RunResults(ctx context.Context, runID uuid.UUID) (scan.ResultSet, error) {
	rows, err := s.db.QueryxContext(ctx,
		`SELECT ip, open_ports, scanned_at FROM scan_records WHERE run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run records: %w", err)
	}
	defer rows.Close()

	var results scan.ResultSet
	for rows.Next() {
		var (
			ip        string
			portsJSON string
			scannedAt time.Time
		)
		if err := rows.Scan(&ip, &portsJSON, &scannedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record row: %w", err)
		}
		host, err := netip.ParseAddr(ip)
		if err != nil {
			return nil, fmt.Errorf("corrupt host address in history: %w", err)
		}
		var ports []int
		if err := json.Unmarshal([]byte(portsJSON), &ports); err != nil {
			return nil, fmt.Errorf("corrupt port set in history: %w", err)
		}
		results = append(results, scan.Record{
			Host:      host,
			OpenPorts: ports,
			ScannedAt: scannedAt,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading record rows: %w", err)
	}

	results.Sort()
	return results, nil
}

// LatestBaseline returns the result set of the most recent run for the
// network, or nil when no prior run exists.
func (s *Store) LatestBaseline(ctx context.Context, network string) (scan.ResultSet, error) {
	run, err := s.LatestRun(ctx, network)
	if err != nil || run == nil {
		return nil, err
	}
	return s.RunResults(ctx, run.ID)
}
