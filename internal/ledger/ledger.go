// Package ledger keeps a SQLite record of lookups that did not resolve, so a
// name that was tried and failed can be told apart from one never attempted.
package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/citycache/internal/model"
	"github.com/sells-group/citycache/internal/resilience"
)

// Entry is one unresolved name.
type Entry struct {
	ID        string
	RunID     string
	GroupKey  string
	Name      string
	Kind      resilience.Kind
	Error     string
	Attempts  int
	FirstSeen time.Time
	LastSeen  time.Time
}

// Filter narrows List and Clear. Zero values match everything.
type Filter struct {
	GroupKey string
	Kind     resilience.Kind
	Limit    int
}

// Ledger is backed by modernc.org/sqlite.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger database at path and applies
// the schema.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "ledger: exec %s", pragma)
		}
	}
	l := &Ledger{db: db}
	if err := l.migrate(ctx); err != nil {
		db.Close() //nolint:errcheck
		return nil, err
	}
	return l, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS failures (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL,
	group_key  TEXT NOT NULL,
	name       TEXT NOT NULL,
	name_key   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	error      TEXT NOT NULL DEFAULT '',
	attempts   INTEGER NOT NULL DEFAULT 1,
	first_seen DATETIME NOT NULL,
	last_seen  DATETIME NOT NULL,
	UNIQUE (group_key, name_key)
);

CREATE INDEX IF NOT EXISTS idx_failures_kind ON failures(kind);
CREATE INDEX IF NOT EXISTS idx_failures_last_seen ON failures(last_seen);
`

func (l *Ledger) migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "ledger: migrate")
}

// Close releases the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record notes a failed lookup. A name already in the ledger for the group
// has its attempt count bumped and its latest error kept.
func (l *Ledger) Record(ctx context.Context, runID, groupKey, name string, kind resilience.Kind, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	now := time.Now().UTC()
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO failures (id, run_id, group_key, name, name_key, kind, error, attempts, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT (group_key, name_key) DO UPDATE SET
			run_id    = excluded.run_id,
			name      = excluded.name,
			kind      = excluded.kind,
			error     = excluded.error,
			attempts  = failures.attempts + 1,
			last_seen = excluded.last_seen`,
		uuid.New().String(), runID, groupKey, name, model.NormalizeName(name), string(kind), msg, now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: record %s/%s", groupKey, name)
	}
	return nil
}

// Resolve drops a name from the ledger once it has been cached.
func (l *Ledger) Resolve(ctx context.Context, groupKey, name string) error {
	_, err := l.db.ExecContext(ctx,
		`DELETE FROM failures WHERE group_key = ? AND name_key = ?`,
		groupKey, model.NormalizeName(name),
	)
	return eris.Wrapf(err, "ledger: resolve %s/%s", groupKey, name)
}

// List returns entries, most recent first.
func (l *Ledger) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, run_id, group_key, name, kind, error, attempts, first_seen, last_seen
		FROM failures WHERE (? = '' OR group_key = ?) AND (? = '' OR kind = ?)
		ORDER BY last_seen DESC, group_key, name`
	args := []any{f.GroupKey, f.GroupKey, string(f.Kind), string(f.Kind)}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: list")
	}
	defer rows.Close() //nolint:errcheck

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			kind string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.GroupKey, &e.Name, &kind, &e.Error, &e.Attempts, &e.FirstSeen, &e.LastSeen); err != nil {
			return nil, eris.Wrap(err, "ledger: scan entry")
		}
		e.Kind = resilience.Kind(kind)
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "ledger: iterate entries")
}

// Counts returns the number of entries per kind.
func (l *Ledger) Counts(ctx context.Context) (map[resilience.Kind]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM failures GROUP BY kind`)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: count")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[resilience.Kind]int)
	for rows.Next() {
		var (
			kind string
			n    int
		)
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, eris.Wrap(err, "ledger: scan count")
		}
		out[resilience.Kind(kind)] = n
	}
	return out, eris.Wrap(rows.Err(), "ledger: iterate counts")
}

// Clear deletes entries matching f (Limit is ignored) and returns how many
// were removed.
func (l *Ledger) Clear(ctx context.Context, f Filter) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM failures WHERE (? = '' OR group_key = ?) AND (? = '' OR kind = ?)`,
		f.GroupKey, f.GroupKey, string(f.Kind), string(f.Kind),
	)
	if err != nil {
		return 0, eris.Wrap(err, "ledger: clear")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "ledger: rows affected")
	}
	return n, nil
}
