// Package journal persists authorization decisions to SQLite so operators
// can query who was granted what, when, from which surface. The engine
// never reads the journal; it is operator tooling, not a decision cache.
package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/grantpath/grantpath/internal/trail"
)

// Decision is one recorded authorization decision.
type Decision struct {
	ID        string `json:"id"`
	Timestamp string `json:"ts"`
	Source    string `json:"source"`
	From      string `json:"from"`
	Target    string `json:"target"`
	Granted   bool   `json:"granted"`
	Context   string `json:"context"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// Filter selects decisions for Query.
type Filter struct {
	Target     string
	Source     string
	OnlyDenied bool
	Since      time.Time
	Limit      int
}

// Stats summarizes the journal contents.
type Stats struct {
	Total   int `json:"total"`
	Granted int `json:"granted"`
	Denied  int `json:"denied"`
}

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	ts TEXT NOT NULL,
	source TEXT NOT NULL,
	origin TEXT NOT NULL,
	target TEXT NOT NULL,
	granted INTEGER NOT NULL,
	context TEXT NOT NULL,
	elapsed_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_target ON decisions(target);
CREATE INDEX IF NOT EXISTS idx_decisions_ts ON decisions(ts);
`

// Journal is a SQLite-backed decision store. Safe for concurrent use.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database and applies the schema.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}
	return &Journal{db: db}, nil
}

// Record inserts a decision. Empty ID and Timestamp are filled in.
func (j *Journal) Record(d Decision) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Timestamp == "" {
		d.Timestamp = trail.UTCNowISO()
	}
	_, err := j.db.Exec(
		`INSERT INTO decisions (id, ts, source, origin, target, granted, context, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Timestamp, d.Source, d.From, d.Target, d.Granted, d.Context, d.ElapsedMS,
	)
	if err != nil {
		return fmt.Errorf("journal: insert decision: %w", err)
	}
	return nil
}

// Query returns decisions matching the filter, newest first.
func (j *Journal) Query(f Filter) ([]Decision, error) {
	var where []string
	var args []any
	if f.Target != "" {
		where = append(where, "target = ?")
		args = append(args, f.Target)
	}
	if f.Source != "" {
		where = append(where, "source = ?")
		args = append(args, f.Source)
	}
	if f.OnlyDenied {
		where = append(where, "granted = 0")
	}
	if !f.Since.IsZero() {
		where = append(where, "ts >= ?")
		args = append(args, f.Since.UTC().Format("2006-01-02T15:04:05.000Z"))
	}

	q := "SELECT id, ts, source, origin, target, granted, context, elapsed_ms FROM decisions"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY ts DESC, id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: query decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		if err := rows.Scan(&d.ID, &d.Timestamp, &d.Source, &d.From, &d.Target, &d.Granted, &d.Context, &d.ElapsedMS); err != nil {
			return nil, fmt.Errorf("journal: scan decision: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: iterate decisions: %w", err)
	}
	return out, nil
}

// Summarize returns grant/deny counts across the whole journal.
func (j *Journal) Summarize() (Stats, error) {
	var s Stats
	row := j.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(granted), 0) FROM decisions")
	if err := row.Scan(&s.Total, &s.Granted); err != nil {
		return Stats{}, fmt.Errorf("journal: summarize: %w", err)
	}
	s.Denied = s.Total - s.Granted
	return s, nil
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
