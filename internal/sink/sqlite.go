// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/pdiddy/epistemic-audit/pkg/types"
)

const dbFile = "audit.db"

// ErrUnknownSession is returned by readers for a session ID with no rows.
var ErrUnknownSession = errors.New("unknown session")

// Session is one stored audit session.
type Session struct {
	ID        string            `json:"id" yaml:"id"`
	Config    types.AuditConfig `json:"config" yaml:"config"`
	State     types.EngineState `json:"state" yaml:"state"`
	LastCycle int               `json:"last_cycle" yaml:"last_cycle"`
	StartedAt time.Time         `json:"started_at" yaml:"started_at"`
	UpdatedAt time.Time         `json:"updated_at" yaml:"updated_at"`
}

// SQLite persists audit progress in a SQLite database at dataDir/audit.db.
type SQLite struct {
	db      *sql.DB
	dataDir string
	logger  *zap.Logger
}

// NewSQLite opens or creates the progress database and its schema.
func NewSQLite(dataDir string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &SQLite{db: db, dataDir: dataDir, logger: logger}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return filepath.Join(s.dataDir, dbFile)
}

func (s *SQLite) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			topic TEXT NOT NULL,
			country TEXT,
			discipline TEXT,
			config TEXT NOT NULL,
			state TEXT NOT NULL,
			last_cycle INTEGER NOT NULL,
			started_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			cycle INTEGER NOT NULL,
			state TEXT NOT NULL,
			coverage REAL NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (session_id, cycle)
		)`,
		`CREATE TABLE IF NOT EXISTS findings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			source_key TEXT NOT NULL,
			language TEXT NOT NULL,
			cycle INTEGER NOT NULL,
			data TEXT NOT NULL,
			UNIQUE (session_id, source_key, language)
		)`,
		`CREATE TABLE IF NOT EXISTS anomalies (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id),
			cycle INTEGER NOT NULL,
			gap_type TEXT NOT NULL,
			severity INTEGER NOT NULL,
			subject TEXT,
			data TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_anomalies_session_cycle ON anomalies(session_id, cycle)`,
		`CREATE TABLE IF NOT EXISTS postulates (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			key TEXT NOT NULL,
			confidence REAL NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (session_id, key)
		)`,
		`CREATE TABLE IF NOT EXISTS arbiter (
			session_id TEXT NOT NULL REFERENCES sessions(id),
			cycle INTEGER NOT NULL,
			combined_coverage REAL NOT NULL,
			blindness_gap REAL NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (session_id, cycle)
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Record stores one cycle of progress in a single transaction. Findings are
// inserted once per identity; anomalies of the cycle replace any earlier
// record of the same cycle.
func (s *SQLite) Record(ctx context.Context, p Progress) error {
	if p.SessionID == "" {
		return fmt.Errorf("recording progress: empty session ID")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	cfg, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO sessions (id, topic, country, discipline, config, state, last_cycle, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET state = excluded.state, last_cycle = excluded.last_cycle, updated_at = excluded.updated_at`,
		p.SessionID, p.Config.Topic, p.Config.Country, p.Config.Discipline, string(cfg),
		string(p.Snapshot.State), p.Snapshot.Cycle, now, now,
	); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}

	snap, err := json.Marshal(p.Snapshot)
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (session_id, cycle, state, coverage, data) VALUES (?, ?, ?, ?, ?)`,
		p.SessionID, p.Snapshot.Cycle, string(p.Snapshot.State), p.Snapshot.Coverage, string(snap),
	); err != nil {
		return fmt.Errorf("inserting snapshot: %w", err)
	}

	for _, f := range p.Findings {
		data, err := json.Marshal(f)
		if err != nil {
			return fmt.Errorf("marshaling finding: %w", err)
		}
		k := f.Key()
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO findings (session_id, source_key, language, cycle, data) VALUES (?, ?, ?, ?, ?)`,
			p.SessionID, k.Source, k.Language, f.Cycle, string(data),
		); err != nil {
			return fmt.Errorf("inserting finding: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM anomalies WHERE session_id = ? AND cycle = ?`, p.SessionID, p.Snapshot.Cycle,
	); err != nil {
		return fmt.Errorf("clearing anomalies: %w", err)
	}
	for _, a := range p.Anomalies {
		data, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshaling anomaly: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO anomalies (id, session_id, cycle, gap_type, severity, subject, data) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), p.SessionID, p.Snapshot.Cycle, string(a.Gap), int(a.Severity), a.Subject, string(data),
		); err != nil {
			return fmt.Errorf("inserting anomaly: %w", err)
		}
	}

	for _, w := range p.Postulates {
		data, err := json.Marshal(w)
		if err != nil {
			return fmt.Errorf("marshaling postulate: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO postulates (session_id, key, confidence, data) VALUES (?, ?, ?, ?)
			 ON CONFLICT(session_id, key) DO UPDATE SET confidence = excluded.confidence, data = excluded.data`,
			p.SessionID, w.Key, w.Confidence, string(data),
		); err != nil {
			return fmt.Errorf("upserting postulate: %w", err)
		}
	}

	if p.Arbiter != nil {
		data, err := json.Marshal(p.Arbiter)
		if err != nil {
			return fmt.Errorf("marshaling arbiter result: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO arbiter (session_id, cycle, combined_coverage, blindness_gap, data) VALUES (?, ?, ?, ?, ?)`,
			p.SessionID, p.Snapshot.Cycle, p.Arbiter.CombinedCoverage, p.Arbiter.BlindnessGap, string(data),
		); err != nil {
			return fmt.Errorf("inserting arbiter result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing progress: %w", err)
	}
	s.logger.Debug("recorded progress",
		zap.String("session", p.SessionID),
		zap.Int("cycle", p.Snapshot.Cycle),
		zap.Int("findings", len(p.Findings)),
		zap.Int("anomalies", len(p.Anomalies)),
	)
	return nil
}

// Sessions lists stored sessions, most recently updated first.
func (s *SQLite) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, config, state, last_cycle, started_at, updated_at FROM sessions ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Session returns one stored session.
func (s *SQLite) Session(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, config, state, last_cycle, started_at, updated_at FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return sess, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (Session, error) {
	var (
		sess             Session
		cfg, state       string
		started, updated string
	)
	if err := sc.Scan(&sess.ID, &cfg, &state, &sess.LastCycle, &started, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("scanning session: %w", err)
	}
	if err := json.Unmarshal([]byte(cfg), &sess.Config); err != nil {
		return Session{}, fmt.Errorf("decoding session config: %w", err)
	}
	sess.State = types.EngineState(state)
	sess.StartedAt, _ = time.Parse(time.RFC3339, started)
	sess.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
	return sess, nil
}

// Snapshots returns the session's cycle snapshots in cycle order.
func (s *SQLite) Snapshots(ctx context.Context, session string) ([]types.CycleSnapshot, error) {
	return queryJSON[types.CycleSnapshot](ctx, s.db,
		`SELECT data FROM snapshots WHERE session_id = ? ORDER BY cycle`, session)
}

// Findings returns the session's findings in arrival order.
func (s *SQLite) Findings(ctx context.Context, session string) ([]types.Finding, error) {
	return queryJSON[types.Finding](ctx, s.db,
		`SELECT data FROM findings WHERE session_id = ? ORDER BY id`, session)
}

// Anomalies returns the anomalies recorded for cycle, most severe first. A
// negative cycle selects the latest recorded cycle.
func (s *SQLite) Anomalies(ctx context.Context, session string, cycle int) ([]types.Anomaly, error) {
	if cycle < 0 {
		var latest sql.NullInt64
		if err := s.db.QueryRowContext(ctx,
			`SELECT MAX(cycle) FROM snapshots WHERE session_id = ?`, session,
		).Scan(&latest); err != nil {
			return nil, fmt.Errorf("querying latest cycle: %w", err)
		}
		if !latest.Valid {
			return nil, nil
		}
		cycle = int(latest.Int64)
	}
	return queryJSON[types.Anomaly](ctx, s.db,
		`SELECT data FROM anomalies WHERE session_id = ? AND cycle = ? ORDER BY severity DESC, gap_type, rowid`,
		session, cycle)
}

// Postulates returns the latest state of every weighted postulate, most
// confident first.
func (s *SQLite) Postulates(ctx context.Context, session string) ([]types.WeightedPostulate, error) {
	return queryJSON[types.WeightedPostulate](ctx, s.db,
		`SELECT data FROM postulates WHERE session_id = ? ORDER BY confidence DESC, key`, session)
}

// Arbiter returns the latest arbiter result of the session, or nil when the
// session ran a single perspective.
func (s *SQLite) Arbiter(ctx context.Context, session string) (*types.ArbiterResult, error) {
	res, err := queryJSON[types.ArbiterResult](ctx, s.db,
		`SELECT data FROM arbiter WHERE session_id = ? ORDER BY cycle DESC LIMIT 1`, session)
	if err != nil || len(res) == 0 {
		return nil, err
	}
	return &res[0], nil
}

func queryJSON[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying: %w", err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, fmt.Errorf("decoding row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
