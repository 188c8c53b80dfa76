// Package store persists analyzed calls to SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ErrStoreUnavailable is returned by store methods called before Open (or
// after Close). Callers log it and keep the analysis in memory.
var ErrStoreUnavailable = errors.New("sqlite store is not initialized")

const createCallsTableSQL = `
CREATE TABLE IF NOT EXISTS calls (
	call_id TEXT NOT NULL PRIMARY KEY,
	run_id TEXT NOT NULL,
	status TEXT NOT NULL,
	transcript TEXT NOT NULL,
	analysis_json TEXT NOT NULL DEFAULT '{}',
	qa_score REAL NOT NULL DEFAULT 0,
	sop_score REAL NOT NULL DEFAULT 0,
	sentiment_score REAL NOT NULL DEFAULT 0,
	risk_detected INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	started_at_utc TEXT NOT NULL,
	ended_at_utc TEXT NOT NULL DEFAULT '',
	model TEXT NOT NULL DEFAULT ''
)`

var createCallsIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_calls_status ON calls(status)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_run_id ON calls(run_id)`,
	`CREATE INDEX IF NOT EXISTS idx_calls_risk_detected ON calls(risk_detected)`,
}

const dropCallsSQL = `DROP TABLE IF EXISTS calls`

const upsertCallSQL = `
INSERT INTO calls (
	call_id,
	run_id,
	status,
	transcript,
	analysis_json,
	qa_score,
	sop_score,
	sentiment_score,
	risk_detected,
	error,
	started_at_utc,
	ended_at_utc,
	model
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(call_id) DO UPDATE SET
	run_id = excluded.run_id,
	status = excluded.status,
	transcript = excluded.transcript,
	analysis_json = excluded.analysis_json,
	qa_score = excluded.qa_score,
	sop_score = excluded.sop_score,
	sentiment_score = excluded.sentiment_score,
	risk_detected = excluded.risk_detected,
	error = excluded.error,
	ended_at_utc = excluded.ended_at_utc,
	model = excluded.model`

const markFailedSQL = `
UPDATE calls SET status = ?, error = ?, ended_at_utc = ? WHERE call_id = ?`

const selectCallSQL = `
SELECT call_id, run_id, status, transcript, analysis_json,
	qa_score, sop_score, sentiment_score, risk_detected,
	error, started_at_utc, ended_at_utc, model
FROM calls WHERE call_id = ?`

const summarySQL = `
SELECT
	COUNT(*),
	COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
	COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0),
	COALESCE(AVG(CASE WHEN status = 'completed' THEN qa_score END), 0),
	COALESCE(AVG(CASE WHEN status = 'completed' THEN sop_score END), 0),
	COALESCE(AVG(CASE WHEN status = 'completed' THEN sentiment_score END), 0),
	COALESCE(SUM(risk_detected), 0)
FROM calls`

// CallRow is one persisted call analysis.
type CallRow struct {
	CallID         string
	RunID          string
	Status         string
	Transcript     string
	AnalysisJSON   string
	QAScore        float64
	SOPScore       float64
	SentimentScore float64
	RiskDetected   bool
	Error          string
	StartedAtUTC   string
	EndedAtUTC     string
	Model          string
}

// Summary aggregates the persisted calls for reporting.
type Summary struct {
	Total            int
	Completed        int
	Failed           int
	AvgQAScore       float64
	AvgSOPScore      float64
	AvgSentiment     float64
	RiskFlaggedCalls int
}

// Store wraps the calls table.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	if err := ensureCallsSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Upsert writes a call row, replacing any previous row for the same call id.
// Last write wins; started_at_utc keeps the first value for a call.
func (s *Store) Upsert(row CallRow) error {
	if s == nil || s.db == nil {
		return ErrStoreUnavailable
	}
	if strings.TrimSpace(row.CallID) == "" {
		return fmt.Errorf("call id is required")
	}
	if strings.TrimSpace(row.StartedAtUTC) == "" {
		row.StartedAtUTC = time.Now().UTC().Format(time.RFC3339)
	}
	if strings.TrimSpace(row.AnalysisJSON) == "" {
		row.AnalysisJSON = "{}"
	}

	if _, err := s.db.Exec(
		upsertCallSQL,
		row.CallID,
		row.RunID,
		row.Status,
		row.Transcript,
		row.AnalysisJSON,
		row.QAScore,
		row.SOPScore,
		row.SentimentScore,
		boolToInt(row.RiskDetected),
		row.Error,
		row.StartedAtUTC,
		row.EndedAtUTC,
		row.Model,
	); err != nil {
		return fmt.Errorf("upsert call: %w", err)
	}
	return nil
}

// MarkFailed flags an existing call row as failed with the given reason.
func (s *Store) MarkFailed(callID, reason string) error {
	if s == nil || s.db == nil {
		return ErrStoreUnavailable
	}
	now := time.Now().UTC().Format(time.RFC3339)
	if _, err := s.db.Exec(markFailedSQL, StatusFailed, reason, now, callID); err != nil {
		return fmt.Errorf("mark call failed: %w", err)
	}
	return nil
}

// FindOne loads a call row by id. A missing call returns sql.ErrNoRows.
func (s *Store) FindOne(callID string) (CallRow, error) {
	if s == nil || s.db == nil {
		return CallRow{}, ErrStoreUnavailable
	}
	var row CallRow
	var risk int
	err := s.db.QueryRow(selectCallSQL, callID).Scan(
		&row.CallID,
		&row.RunID,
		&row.Status,
		&row.Transcript,
		&row.AnalysisJSON,
		&row.QAScore,
		&row.SOPScore,
		&row.SentimentScore,
		&risk,
		&row.Error,
		&row.StartedAtUTC,
		&row.EndedAtUTC,
		&row.Model,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return CallRow{}, err
		}
		return CallRow{}, fmt.Errorf("select call: %w", err)
	}
	row.RiskDetected = risk != 0
	return row, nil
}

// Summarize aggregates all persisted calls.
func (s *Store) Summarize() (Summary, error) {
	if s == nil || s.db == nil {
		return Summary{}, ErrStoreUnavailable
	}
	var sum Summary
	if err := s.db.QueryRow(summarySQL).Scan(
		&sum.Total,
		&sum.Completed,
		&sum.Failed,
		&sum.AvgQAScore,
		&sum.AvgSOPScore,
		&sum.AvgSentiment,
		&sum.RiskFlaggedCalls,
	); err != nil {
		return Summary{}, fmt.Errorf("summarize calls: %w", err)
	}
	return sum, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

func ensureCallsSchema(db *sql.DB) error {
	if _, err := db.Exec(createCallsTableSQL); err != nil {
		return fmt.Errorf("create calls table: %w", err)
	}

	missing, err := missingTableColumns(db, "calls", requiredCallColumns())
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf(
			"incompatible calls schema, missing columns: %s; run `callanalyzer setup --db <path>`",
			strings.Join(missing, ", "),
		)
	}

	for _, stmt := range createCallsIndexesSQL {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("create calls index: %w", err)
		}
	}
	return nil
}

func requiredCallColumns() []string {
	return []string{
		"call_id",
		"run_id",
		"status",
		"transcript",
		"analysis_json",
		"qa_score",
		"sop_score",
		"sentiment_score",
		"risk_detected",
		"error",
		"started_at_utc",
		"ended_at_utc",
		"model",
	}
}

func missingTableColumns(db *sql.DB, tableName string, required []string) ([]string, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, tableName))
	if err != nil {
		return nil, fmt.Errorf("inspect %s schema: %w", tableName, err)
	}
	defer rows.Close()

	existing := map[string]struct{}{}
	for rows.Next() {
		var cid int
		var name string
		var colType string
		var notNull int
		var defaultValue sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scan %s schema: %w", tableName, err)
		}
		existing[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s schema: %w", tableName, err)
	}

	var missing []string
	for _, col := range required {
		if _, ok := existing[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing, nil
}

// Setup drops and recreates the schema at dbPath, creating the parent
// directory when needed.
func Setup(dbPath string) error {
	if strings.TrimSpace(dbPath) == "" {
		return fmt.Errorf("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	db, err := openSQLite(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(dropCallsSQL); err != nil {
		return fmt.Errorf("drop calls table: %w", err)
	}
	return ensureCallsSchema(db)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
