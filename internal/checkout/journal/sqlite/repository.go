// Package sqlite provides a SQLite-backed implementation of journal.Repository.
//
// WAL mode is enabled on Open so that readers never block writers and vice
// versa — the checkout machine writes while a back-office status endpoint
// may be reading.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jcmexdev/storefront-checkout/internal/checkout/journal"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids CGO,
	// which keeps Alpine-based container builds simple.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. The table is append-only: each
// row is an immutable event in the session's lifecycle.
const schema = `
CREATE TABLE IF NOT EXISTS checkout_journal (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Checkout session id; multiple rows per session, one per transition.
    session_id   TEXT NOT NULL,

    -- Transition kind (STARTED, STEP_ENTERED, SUBMIT_ATTEMPTED, ...).
    status       TEXT NOT NULL,

    -- Checkout step at the time of the transition.
    step         TEXT NOT NULL DEFAULT '',

    -- Order id on SUBMITTED, error text on SUBMIT_FAILED.
    detail       TEXT NOT NULL DEFAULT '',

    -- W3C trace/span ids from the active OTel span, for trace correlation.
    trace_id     TEXT NOT NULL DEFAULT '',
    span_id      TEXT NOT NULL DEFAULT '',

    -- RFC3339 stored as TEXT, the SQLite idiom.
    recorded_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_checkout_journal_session
    ON checkout_journal(session_id, recorded_at);

CREATE INDEX IF NOT EXISTS idx_checkout_journal_trace
    ON checkout_journal(trace_id);
`

// Repository is the SQLite implementation of journal.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	// _pragma query parameters configure connection state for the pure-Go
	// driver. busy_timeout waits for locks instead of failing immediately.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection. Call it with defer in main().
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts a new journal entry. Safe for concurrent use.
func (r *Repository) Save(ctx context.Context, entry *journal.Entry) error {
	const q = `
		INSERT INTO checkout_journal
			(session_id, status, step, detail, trace_id, span_id, recorded_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		entry.SessionID,
		string(entry.Status),
		entry.Step,
		entry.Detail,
		entry.TraceID,
		entry.SpanID,
		entry.RecordedAt.UTC().Format("2006-01-02T15:04:05.999999999Z"),
	)
	if err != nil {
		return fmt.Errorf("sqlite: save journal entry for %q: %w", entry.SessionID, err)
	}
	return nil
}

// ListBySession returns all entries for a session in transition order.
func (r *Repository) ListBySession(ctx context.Context, sessionID string) ([]journal.Entry, error) {
	const q = `
		SELECT session_id, status, step, detail, trace_id, span_id, recorded_at
		FROM   checkout_journal
		WHERE  session_id = ?
		ORDER  BY recorded_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list journal for %q: %w", sessionID, err)
	}
	defer rows.Close()

	var out []journal.Entry
	for rows.Next() {
		var entry journal.Entry
		var recordedAt string
		if err := rows.Scan(
			&entry.SessionID,
			&entry.Status,
			&entry.Step,
			&entry.Detail,
			&entry.TraceID,
			&entry.SpanID,
			&recordedAt,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scan journal row: %w", err)
		}
		entry.RecordedAt, err = parseRFC3339(recordedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// Latest returns the most recent entry for a session, or nil when the
// session has no journal rows.
func (r *Repository) Latest(ctx context.Context, sessionID string) (*journal.Entry, error) {
	const q = `
		SELECT session_id, status, step, detail, trace_id, span_id, recorded_at
		FROM   checkout_journal
		WHERE  session_id = ?
		ORDER  BY recorded_at DESC, id DESC
		LIMIT  1`

	row := r.db.QueryRowContext(ctx, q, sessionID)

	var entry journal.Entry
	var recordedAt string
	err := row.Scan(
		&entry.SessionID,
		&entry.Status,
		&entry.Step,
		&entry.Detail,
		&entry.TraceID,
		&entry.SpanID,
		&recordedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: latest journal entry for %q: %w", sessionID, err)
	}

	entry.RecordedAt, err = parseRFC3339(recordedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
