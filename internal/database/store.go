package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/Olivier7017/abiconv/internal/events"
	"github.com/Olivier7017/abiconv/internal/model"
)

// DBFile is the SQLite file name inside the store directory.
const DBFile = "abiconv.db"

// Store provides SQLite-based storage for run results and study reports.
// It manages connection pooling and provides methods for CRUD operations.
//
// Design decision: We use a single database file for all flows rather
// than one file per flow directory. Runs of the same study stay
// comparable across rebuilt flows, and the history command needs no
// directory walking.
type Store struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures Store behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a Store at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*Store, error) {
	dbPath := filepath.Join(dbDir, DBFile)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite takes the mode in the DSN: rw refuses to create
	// new files, rwc allows it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a scheduler cycle is the sole
	// writer in practice, so a single connection avoids lock churn.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (s *Store) createTables() error {
	schema := `
	-- One row per flow directory; rebuilt flows reuse their row
	CREATE TABLE IF NOT EXISTS flows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		workdir TEXT NOT NULL,
		formula TEXT,
		natom INTEGER,
		tolerance_mev REAL,
		created DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(workdir)
	);

	CREATE INDEX IF NOT EXISTS idx_flows_name ON flows(name);

	-- One row per task per scheduler run
	CREATE TABLE IF NOT EXISTS task_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		flow_id INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		ngkpt TEXT NOT NULL,
		nkpt INTEGER,
		status TEXT NOT NULL,
		restarts INTEGER DEFAULT 0,
		etotal_ha REAL,
		wall_time_sec REAL,
		cpu_time_sec REAL,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(flow_id, run_id, task_id),
		FOREIGN KEY(flow_id) REFERENCES flows(id)
	);

	CREATE INDEX IF NOT EXISTS idx_results_flow ON task_results(flow_id);
	CREATE INDEX IF NOT EXISTS idx_results_run ON task_results(run_id);

	-- Engine diagnostics per task per run
	CREATE TABLE IF NOT EXISTS task_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		flow_id INTEGER NOT NULL,
		run_id TEXT NOT NULL,
		task_id TEXT NOT NULL,
		severity TEXT NOT NULL,
		tag TEXT,
		message TEXT NOT NULL,
		src_file TEXT,
		src_line INTEGER,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(flow_id) REFERENCES flows(id)
	);

	CREATE INDEX IF NOT EXISTS idx_events_flow ON task_events(flow_id);
	CREATE INDEX IF NOT EXISTS idx_events_run ON task_events(run_id);

	-- Assembled study reports as JSON
	CREATE TABLE IF NOT EXISTS study_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		flow_id INTEGER NOT NULL,
		run_id TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		converged INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL,
		FOREIGN KEY(flow_id) REFERENCES flows(id)
	);

	CREATE INDEX IF NOT EXISTS idx_reports_flow ON study_reports(flow_id);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON study_reports(timestamp);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// FlowRecord is one flow directory's row.
type FlowRecord struct {
	ID           int64
	Name         string
	Workdir      string
	Formula      string
	NumAtoms     int
	ToleranceMeV float64
	Created      time.Time
}

// UpsertFlow inserts or updates the row for the flow's workdir and
// returns its ID. Rebuilding a flow in the same directory keeps its
// history attached.
func (s *Store) UpsertFlow(ctx context.Context, rec *FlowRecord) (int64, error) {
	query := `
	INSERT INTO flows (name, workdir, formula, natom, tolerance_mev)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(workdir) DO UPDATE SET
		name = excluded.name,
		formula = excluded.formula,
		natom = excluded.natom,
		tolerance_mev = excluded.tolerance_mev
	`

	if _, err := s.db.ExecContext(ctx, query,
		rec.Name,
		rec.Workdir,
		rec.Formula,
		rec.NumAtoms,
		rec.ToleranceMeV,
	); err != nil {
		return 0, fmt.Errorf("failed to upsert flow: %w", err)
	}

	// LastInsertId is unreliable under ON CONFLICT DO UPDATE, so read
	// the ID back by the unique key.
	var id int64
	if err := s.db.QueryRowContext(ctx, "SELECT id FROM flows WHERE workdir = ?", rec.Workdir).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read flow ID back: %w", err)
	}
	rec.ID = id
	return id, nil
}

// FlowByWorkdir retrieves a flow row by its directory.
// Returns nil without error when the flow has never been recorded.
func (s *Store) FlowByWorkdir(ctx context.Context, workdir string) (*FlowRecord, error) {
	query := `
	SELECT id, name, workdir, formula, natom, tolerance_mev, created
	FROM flows
	WHERE workdir = ?
	`

	var rec FlowRecord
	var created string
	err := s.db.QueryRowContext(ctx, query, workdir).Scan(
		&rec.ID,
		&rec.Name,
		&rec.Workdir,
		&rec.Formula,
		&rec.NumAtoms,
		&rec.ToleranceMeV,
		&created,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get flow: %w", err)
	}
	rec.Created = parseTimestamp(created)
	return &rec, nil
}

// ListFlows returns all recorded flows, most recent first.
func (s *Store) ListFlows(ctx context.Context) ([]FlowRecord, error) {
	query := `
	SELECT id, name, workdir, formula, natom, tolerance_mev, created
	FROM flows
	ORDER BY created DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list flows: %w", err)
	}
	defer rows.Close()

	var results []FlowRecord
	for rows.Next() {
		var rec FlowRecord
		var created string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Workdir, &rec.Formula,
			&rec.NumAtoms, &rec.ToleranceMeV, &created); err != nil {
			return nil, fmt.Errorf("failed to scan flow: %w", err)
		}
		rec.Created = parseTimestamp(created)
		results = append(results, rec)
	}

	return results, rows.Err()
}

// TaskResult is one task's outcome in one scheduler run.
type TaskResult struct {
	ID          int64
	FlowID      int64
	RunID       string
	TaskID      string
	Ngkpt       [3]int
	Nkpt        int
	Status      string
	Restarts    int
	EtotalHa    *float64
	WallTimeSec float64
	CPUTimeSec  float64
	Timestamp   time.Time
}

// SaveTaskResult inserts or updates a task result.
// Uses UPSERT so repeated polls of the same run overwrite in place.
func (s *Store) SaveTaskResult(ctx context.Context, res *TaskResult) error {
	query := `
	INSERT INTO task_results (flow_id, run_id, task_id, ngkpt, nkpt, status, restarts, etotal_ha, wall_time_sec, cpu_time_sec)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(flow_id, run_id, task_id) DO UPDATE SET
		ngkpt = excluded.ngkpt,
		nkpt = excluded.nkpt,
		status = excluded.status,
		restarts = excluded.restarts,
		etotal_ha = excluded.etotal_ha,
		wall_time_sec = excluded.wall_time_sec,
		cpu_time_sec = excluded.cpu_time_sec,
		timestamp = CURRENT_TIMESTAMP
	`

	var etotal sql.NullFloat64
	if res.EtotalHa != nil {
		etotal = sql.NullFloat64{Float64: *res.EtotalHa, Valid: true}
	}

	if _, err := s.db.ExecContext(ctx, query,
		res.FlowID,
		res.RunID,
		res.TaskID,
		formatNgkpt(res.Ngkpt),
		res.Nkpt,
		res.Status,
		res.Restarts,
		etotal,
		res.WallTimeSec,
		res.CPUTimeSec,
	); err != nil {
		return fmt.Errorf("failed to save task result: %w", err)
	}
	return nil
}

// TaskResults retrieves the results of one run, coarsest task first.
func (s *Store) TaskResults(ctx context.Context, flowID int64, runID string) ([]TaskResult, error) {
	query := `
	SELECT id, flow_id, run_id, task_id, ngkpt, nkpt, status, restarts, etotal_ha, wall_time_sec, cpu_time_sec, timestamp
	FROM task_results
	WHERE flow_id = ? AND run_id = ?
	ORDER BY task_id
	`

	rows, err := s.db.QueryContext(ctx, query, flowID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task results: %w", err)
	}
	defer rows.Close()

	var results []TaskResult
	for rows.Next() {
		var res TaskResult
		var ngkpt, timestamp string
		var etotal sql.NullFloat64

		if err := rows.Scan(
			&res.ID,
			&res.FlowID,
			&res.RunID,
			&res.TaskID,
			&ngkpt,
			&res.Nkpt,
			&res.Status,
			&res.Restarts,
			&etotal,
			&res.WallTimeSec,
			&res.CPUTimeSec,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan task result: %w", err)
		}

		res.Ngkpt = parseNgkpt(ngkpt)
		res.Timestamp = parseTimestamp(timestamp)
		if etotal.Valid {
			v := etotal.Float64
			res.EtotalHa = &v
		}
		results = append(results, res)
	}

	return results, rows.Err()
}

// SaveEvents stores the parsed engine events of one task in one run.
// The task's previous events for the same run are replaced, so repeated
// reaps after a restart do not duplicate rows.
func (s *Store) SaveEvents(ctx context.Context, flowID int64, runID, taskID string, evs []events.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback after commit is a no-op

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM task_events WHERE flow_id = ? AND run_id = ? AND task_id = ?",
		flowID, runID, taskID,
	); err != nil {
		return fmt.Errorf("failed to clear previous events: %w", err)
	}

	query := `
	INSERT INTO task_events (flow_id, run_id, task_id, severity, tag, message, src_file, src_line)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	for _, ev := range evs {
		if _, err := tx.ExecContext(ctx, query,
			flowID,
			runID,
			taskID,
			ev.Severity.String(),
			ev.Tag,
			ev.Message,
			ev.SrcFile,
			ev.SrcLine,
		); err != nil {
			return fmt.Errorf("failed to insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	return nil
}

// EventRecord is one stored engine diagnostic.
type EventRecord struct {
	ID        int64
	TaskID    string
	Severity  string
	Tag       string
	Message   string
	SrcFile   string
	SrcLine   int
	Timestamp time.Time
}

// ListEvents retrieves the events of one run in insertion order.
func (s *Store) ListEvents(ctx context.Context, flowID int64, runID string) ([]EventRecord, error) {
	query := `
	SELECT id, task_id, severity, tag, message, src_file, src_line, timestamp
	FROM task_events
	WHERE flow_id = ? AND run_id = ?
	ORDER BY id
	`

	rows, err := s.db.QueryContext(ctx, query, flowID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var results []EventRecord
	for rows.Next() {
		var rec EventRecord
		var timestamp string
		if err := rows.Scan(&rec.ID, &rec.TaskID, &rec.Severity, &rec.Tag,
			&rec.Message, &rec.SrcFile, &rec.SrcLine, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		rec.Timestamp = parseTimestamp(timestamp)
		results = append(results, rec)
	}

	return results, rows.Err()
}

// SaveStudyReport saves an assembled study report as JSON.
func (s *Store) SaveStudyReport(ctx context.Context, flowID int64, report *model.StudyReport) error {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	converged := 0
	if report.Converged {
		converged = 1
	}

	query := `
	INSERT INTO study_reports (flow_id, run_id, converged, report_json)
	VALUES (?, ?, ?, ?)
	`

	if _, err := s.db.ExecContext(ctx, query,
		flowID,
		report.RunID,
		converged,
		string(reportJSON),
	); err != nil {
		return fmt.Errorf("failed to save study report: %w", err)
	}
	return nil
}

// LatestStudyReport retrieves the most recent report for a flow.
// Returns nil without error when no report has been saved yet.
func (s *Store) LatestStudyReport(ctx context.Context, flowID int64) (*model.StudyReport, error) {
	query := `
	SELECT report_json FROM study_reports
	WHERE flow_id = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := s.db.QueryRowContext(ctx, query, flowID).Scan(&reportJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get study report: %w", err)
	}

	var report model.StudyReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// RunMetadata summarizes one scheduler run for the history listing.
// This avoids loading full reports when only the outline is needed.
type RunMetadata struct {
	// RunID identifies the scheduler run.
	RunID string

	// Started is the earliest task result timestamp of the run.
	Started time.Time

	// StatusCounts maps final task status labels to their counts.
	StatusCounts map[string]int

	// Converged is true when the run's saved report reached convergence.
	// False when no report was saved.
	Converged bool

	// HasReport is true when a study report was saved for the run.
	HasReport bool
}

// RunHistory summarizes all runs of a flow, most recent first.
func (s *Store) RunHistory(ctx context.Context, flowID int64) ([]RunMetadata, error) {
	query := `
	SELECT run_id, status, COUNT(*), MIN(timestamp)
	FROM task_results
	WHERE flow_id = ?
	GROUP BY run_id, status
	`

	rows, err := s.db.QueryContext(ctx, query, flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	byRun := make(map[string]*RunMetadata)
	for rows.Next() {
		var runID, status, started string
		var count int
		if err := rows.Scan(&runID, &status, &count, &started); err != nil {
			return nil, fmt.Errorf("failed to scan run history: %w", err)
		}
		meta, ok := byRun[runID]
		if !ok {
			meta = &RunMetadata{RunID: runID, StatusCounts: make(map[string]int)}
			byRun[runID] = meta
		}
		meta.StatusCounts[status] += count
		if ts := parseTimestamp(started); meta.Started.IsZero() || ts.Before(meta.Started) {
			meta.Started = ts
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reportRows, err := s.db.QueryContext(ctx,
		"SELECT run_id, converged FROM study_reports WHERE flow_id = ?", flowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query report verdicts: %w", err)
	}
	defer reportRows.Close()

	for reportRows.Next() {
		var runID string
		var converged int
		if err := reportRows.Scan(&runID, &converged); err != nil {
			return nil, fmt.Errorf("failed to scan report verdict: %w", err)
		}
		if meta, ok := byRun[runID]; ok {
			meta.HasReport = true
			meta.Converged = converged != 0
		}
	}
	if err := reportRows.Err(); err != nil {
		return nil, err
	}

	results := make([]RunMetadata, 0, len(byRun))
	for _, meta := range byRun {
		results = append(results, *meta)
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].Started.Equal(results[j].Started) {
			return results[i].Started.After(results[j].Started)
		}
		return results[i].RunID < results[j].RunID
	})
	return results, nil
}

// formatNgkpt renders mesh divisions as the "6 6 6" text column.
func formatNgkpt(ngkpt [3]int) string {
	return fmt.Sprintf("%d %d %d", ngkpt[0], ngkpt[1], ngkpt[2])
}

// parseNgkpt reads the "6 6 6" column back. Malformed columns yield a
// zero mesh rather than an error; the report layer treats those as
// unusable points.
func parseNgkpt(s string) [3]int {
	var out [3]int
	if _, err := fmt.Sscanf(s, "%d %d %d", &out[0], &out[1], &out[2]); err != nil {
		return [3]int{}
	}
	return out
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
