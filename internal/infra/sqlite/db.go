// Package sqlite keeps the governor's recent cycle and event journal in
// an in-memory SQLite database. Nothing is written to disk, so the
// journal starts empty on every process start.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/tutu-network/aigov/internal/domain"
)

// DefaultMaxRows is how many rows each table keeps before pruning.
const DefaultMaxRows = 1000

// DB wraps the in-memory journal.
type DB struct {
	db      *sql.DB
	maxRows int
	logger  zerolog.Logger
}

// Stats summarizes the journal.
type Stats struct {
	Cycles         int64 `json:"cycles"`
	Admitted       int64 `json:"admitted"`
	Late           int64 `json:"late"`
	Failed         int64 `json:"failed"`
	ManualTriggers int64 `json:"manual_triggers"`
	SensorFaults   int64 `json:"sensor_faults"`
}

// Open creates a fresh in-memory journal keeping at most maxRows rows per
// table (DefaultMaxRows if maxRows <= 0).
func Open(maxRows int) (*DB, error) {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Every connection to :memory: is a separate database, so pin the
	// pool to a single connection that never expires.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d := &DB{db: db, maxRows: maxRows, logger: zerolog.Nop()}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return d, nil
}

// SetLogger sets where observer failures are reported.
func (d *DB) SetLogger(l zerolog.Logger) { d.logger = l }

// Close releases the database; the journal is gone afterwards.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS cycles (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT NOT NULL UNIQUE,
			at              INTEGER NOT NULL,
			temperature_c   REAL NOT NULL,
			cpu_load_pct    REAL NOT NULL,
			mode            INTEGER NOT NULL,
			band            TEXT NOT NULL,
			threads         INTEGER NOT NULL,
			poll_ms         INTEGER NOT NULL,
			admitted        BOOLEAN NOT NULL,
			elapsed_ms      INTEGER,
			within_deadline BOOLEAN,
			engine_error    TEXT,
			manual_trigger  BOOLEAN NOT NULL DEFAULT 0,
			sensor_fault    BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			seq    INTEGER PRIMARY KEY AUTOINCREMENT,
			id     TEXT NOT NULL UNIQUE,
			at     INTEGER NOT NULL,
			kind   TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind)`,
	}
	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// ─── Cycles ─────────────────────────────────────────────────────────────────

// RecordCycle appends one control cycle and prunes old rows.
func (d *DB) RecordCycle(c domain.Cycle) error {
	var elapsed sql.NullInt64
	var within sql.NullBool
	var engineErr sql.NullString
	if o := c.Outcome; o != nil {
		elapsed = sql.NullInt64{Int64: o.ElapsedMillis, Valid: true}
		within = sql.NullBool{Bool: o.WithinDeadline, Valid: true}
		if o.Err != nil {
			engineErr = sql.NullString{String: o.Err.Error(), Valid: true}
		}
	}

	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := d.db.Exec(
		`INSERT INTO cycles (id, at, temperature_c, cpu_load_pct, mode, band, threads, poll_ms, admitted,
			elapsed_ms, within_deadline, engine_error, manual_trigger, sensor_fault)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, c.At.UnixNano(), c.TemperatureC, c.CPULoadPercent, int(c.Mode), string(c.Decision.Band),
		c.Decision.ThreadBudget, c.Decision.PollInterval.Milliseconds(), c.Decision.Admitted,
		elapsed, within, engineErr, c.ManualTrigger, c.SensorFault,
	)
	if err != nil {
		return fmt.Errorf("insert cycle: %w", err)
	}
	return d.prune("cycles")
}

// RecentCycles returns up to limit cycles, newest first.
func (d *DB) RecentCycles(limit int) ([]domain.Cycle, error) {
	rows, err := d.db.Query(
		`SELECT id, at, temperature_c, cpu_load_pct, mode, band, threads, poll_ms, admitted,
			elapsed_ms, within_deadline, engine_error, manual_trigger, sensor_fault
		 FROM cycles ORDER BY seq DESC LIMIT ?`, clampLimit(limit, d.maxRows),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []domain.Cycle
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, err
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// ObserveCycle journals a cycle plus the events it implies. Failures are
// logged; the control loop never waits on the journal's health.
func (d *DB) ObserveCycle(c domain.Cycle) {
	if err := d.RecordCycle(c); err != nil {
		d.logger.Warn().Err(err).Msg("journal cycle")
	}
	if c.ManualTrigger {
		d.recordEventQuiet(domain.EventTriggerHonored, fmt.Sprintf("admitted=%t", c.Decision.Admitted))
	}
	if c.SensorFault {
		d.recordEventQuiet(domain.EventSensorFault, "substituted last known reading")
	}
	if o := c.Outcome; o != nil && o.Err == nil && !o.WithinDeadline {
		d.recordEventQuiet(domain.EventDeadlineMiss, fmt.Sprintf("elapsed_ms=%d", o.ElapsedMillis))
	}
}

// ─── Events ─────────────────────────────────────────────────────────────────

// RecordEvent appends an event and prunes old rows.
func (d *DB) RecordEvent(kind, detail string) error {
	_, err := d.db.Exec(
		`INSERT INTO events (id, at, kind, detail) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), time.Now().UnixNano(), kind, detail,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return d.prune("events")
}

func (d *DB) recordEventQuiet(kind, detail string) {
	if err := d.RecordEvent(kind, detail); err != nil {
		d.logger.Warn().Err(err).Str("kind", kind).Msg("journal event")
	}
}

// RecentEvents returns up to limit events, newest first. An empty kind
// matches every event.
func (d *DB) RecentEvents(kind string, limit int) ([]domain.Event, error) {
	rows, err := d.db.Query(
		`SELECT id, at, kind, detail FROM events
		 WHERE ? = '' OR kind = ?
		 ORDER BY seq DESC LIMIT ?`, kind, kind, clampLimit(limit, d.maxRows),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		var e domain.Event
		var at int64
		if err := rows.Scan(&e.ID, &at, &e.Kind, &e.Detail); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, at)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Stats aggregates the retained cycles.
func (d *DB) Stats() (Stats, error) {
	var s Stats
	err := d.db.QueryRow(
		`SELECT COUNT(*),
			COALESCE(SUM(admitted), 0),
			COALESCE(SUM(CASE WHEN within_deadline = 0 AND engine_error IS NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN engine_error IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(manual_trigger), 0),
			COALESCE(SUM(sensor_fault), 0)
		 FROM cycles`,
	).Scan(&s.Cycles, &s.Admitted, &s.Late, &s.Failed, &s.ManualTriggers, &s.SensorFaults)
	return s, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

func (d *DB) prune(table string) error {
	_, err := d.db.Exec(
		`DELETE FROM `+table+` WHERE seq <= (SELECT MAX(seq) FROM `+table+`) - ?`, d.maxRows,
	)
	if err != nil {
		return fmt.Errorf("prune %s: %w", table, err)
	}
	return nil
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCycle(s scanner) (domain.Cycle, error) {
	var c domain.Cycle
	var at, pollMS int64
	var mode int
	var band string
	var elapsed sql.NullInt64
	var within sql.NullBool
	var engineErr sql.NullString

	err := s.Scan(&c.ID, &at, &c.TemperatureC, &c.CPULoadPercent, &mode, &band,
		&c.Decision.ThreadBudget, &pollMS, &c.Decision.Admitted,
		&elapsed, &within, &engineErr, &c.ManualTrigger, &c.SensorFault)
	if err != nil {
		return c, err
	}

	c.At = time.Unix(0, at)
	c.Mode = domain.Mode(mode)
	c.Decision.Band = domain.Band(band)
	c.Decision.PollInterval = time.Duration(pollMS) * time.Millisecond
	if elapsed.Valid {
		o := &domain.InferenceOutcome{
			ElapsedMillis:  elapsed.Int64,
			Elapsed:        time.Duration(elapsed.Int64) * time.Millisecond,
			WithinDeadline: within.Bool,
		}
		if engineErr.Valid {
			o.Err = fmt.Errorf("%w: %s", domain.ErrEngineFailed, engineErr.String)
		}
		c.Outcome = o
	}
	return c, nil
}
