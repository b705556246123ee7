// Package store persists finished assessment reports to SQLite so score
// history survives across runs. The engine itself never touches the store;
// the CLI saves reports after a scan and reads them back for history
// listings. Reports are kept whole as JSON blobs with a few indexed columns
// for lookup and ordering.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"assay/internal/logging"
	"assay/internal/types"
)

// ErrNotFound is returned when no report exists for a scan id.
var ErrNotFound = errors.New("report not found")

// defaultListLimit bounds history listings when the caller passes no limit.
const defaultListLimit = 20

// Store is a SQLite-backed report archive. Safe for concurrent use.
type Store struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// New opens (creating if needed) the report database at path.
func New(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "open")
	defer timer.Stop()
	log := logging.L(logging.CategoryStore)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// WAL with NORMAL sync keeps single-writer saves fast; failures here
	// degrade performance, not correctness.
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			log.Debug("pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("report store ready", zap.String("path", path))
	return s, nil
}

// initialize creates the reports table and its indexes.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS reports (
		scan_id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		status TEXT NOT NULL,
		overall REAL NOT NULL,
		grade TEXT NOT NULL,
		generated_at INTEGER NOT NULL,
		report_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_reports_root ON reports(root);
	CREATE INDEX IF NOT EXISTS idx_reports_generated ON reports(generated_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create reports table: %w", err)
	}
	return nil
}

// Save persists one report, replacing any earlier save of the same scan id.
func (s *Store) Save(rep *types.AssessmentReport) error {
	timer := logging.StartTimer(logging.CategoryStore, "save")
	defer timer.Stop()

	blob, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("failed to encode report %s: %w", rep.ScanID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO reports
			(scan_id, root, status, overall, grade, generated_at, report_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.ScanID,
		rep.Repository.Root,
		string(rep.Status),
		rep.OverallScore,
		rep.Grade,
		rep.GeneratedAt.UnixNano(),
		string(blob),
	)
	if err != nil {
		return fmt.Errorf("failed to save report %s: %w", rep.ScanID, err)
	}

	logging.L(logging.CategoryStore).Debug("report saved",
		zap.String("scan_id", rep.ScanID),
		zap.String("root", rep.Repository.Root),
		zap.String("grade", rep.Grade))
	return nil
}

// Get loads one report by scan id.
func (s *Store) Get(scanID string) (*types.AssessmentReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var blob string
	err := s.db.QueryRow(
		`SELECT report_json FROM reports WHERE scan_id = ?`, scanID).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, scanID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", scanID, err)
	}
	return decodeReport(blob)
}

// ListByRoot returns the most recent reports for a repository root, newest
// first. A non-positive limit falls back to the default.
func (s *Store) ListByRoot(root string, limit int) ([]*types.AssessmentReport, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT report_json FROM reports
		WHERE root = ?
		ORDER BY generated_at DESC, scan_id
		LIMIT ?`, root, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports for %s: %w", root, err)
	}
	defer rows.Close()

	var out []*types.AssessmentReport
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		rep, err := decodeReport(blob)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reports: %w", err)
	}
	return out, nil
}

// Count returns how many reports are stored.
func (s *Store) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM reports`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return n, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func decodeReport(blob string) (*types.AssessmentReport, error) {
	var rep types.AssessmentReport
	if err := json.Unmarshal([]byte(blob), &rep); err != nil {
		return nil, fmt.Errorf("failed to decode stored report: %w", err)
	}
	return &rep, nil
}
