// Package archive persists encoded snapshots in a SQLite database so a run
// can be inspected, replayed, or resumed after the process exits.
package archive

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/jerry-samek/tick-frame-space-sub008/internal/snapshot"
)

// schemaVersion is the current archive schema version.
const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS snapshots (
    tick INTEGER PRIMARY KEY,
    dim INTEGER NOT NULL,
    entity_count INTEGER NOT NULL,
    compressed INTEGER NOT NULL,
    payload BLOB NOT NULL,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// ErrNotFound reports a tick with no archived snapshot.
var ErrNotFound = errors.New("archive: snapshot not found")

// Options tune how snapshots are written.
type Options struct {
	// Compress gzips payloads before they are stored. Reads do not care
	// either way; the codec sniffs the payload.
	Compress bool
}

// Archive is a SQLite-backed snapshot store: one row per snapshot, keyed by
// tick. Writing a tick that already exists replaces the earlier row.
type Archive struct {
	db       *sql.DB
	path     string
	compress bool
}

// Open creates or opens the archive database at path.
func Open(path string, opts Options) (*Archive, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	// SQLite works best with a single writer.
	db.SetMaxOpenConns(1)

	if err := initSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return &Archive{db: db, path: path, compress: opts.Compress}, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("archive: begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("archive: create tables: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, ?)`,
		schemaVersion, time.Now().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("archive: record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("archive: commit schema: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (a *Archive) Path() string {
	return a.path
}

// Put encodes and stores one snapshot. The returned size is the stored
// payload in bytes, after compression when enabled.
func (a *Archive) Put(ctx context.Context, snap snapshot.Snapshot) (int, error) {
	var buf bytes.Buffer
	if err := snapshot.Encode(&buf, snap, a.compress); err != nil {
		return 0, fmt.Errorf("archive: encode tick %d: %w", snap.Tick, err)
	}
	payload := buf.Bytes()

	_, err := a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO snapshots (tick, dim, entity_count, compressed, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(snap.Tick), snap.Dim, len(snap.Entities), a.compress, payload,
		time.Now().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("archive: store tick %d: %w", snap.Tick, err)
	}
	return len(payload), nil
}

// Get loads the snapshot archived for the given tick.
func (a *Archive) Get(ctx context.Context, tick uint64) (snapshot.Snapshot, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE tick = ?`, int64(tick))
	return scanSnapshot(row)
}

// Latest loads the snapshot with the highest tick.
func (a *Archive) Latest(ctx context.Context) (snapshot.Snapshot, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots ORDER BY tick DESC LIMIT 1`)
	return scanSnapshot(row)
}

func scanSnapshot(row *sql.Row) (snapshot.Snapshot, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return snapshot.Snapshot{}, ErrNotFound
		}
		return snapshot.Snapshot{}, fmt.Errorf("archive: load snapshot: %w", err)
	}
	snap, err := snapshot.Decode(bytes.NewReader(payload))
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("archive: decode stored snapshot: %w", err)
	}
	return snap, nil
}

// Ticks lists archived ticks, newest first. A non-positive limit lists all.
func (a *Archive) Ticks(ctx context.Context, limit int) ([]uint64, error) {
	query := `SELECT tick FROM snapshots ORDER BY tick DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("archive: list ticks: %w", err)
	}
	defer rows.Close()

	var ticks []uint64
	for rows.Next() {
		var tick int64
		if err := rows.Scan(&tick); err != nil {
			return nil, fmt.Errorf("archive: scan tick: %w", err)
		}
		ticks = append(ticks, uint64(tick))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: list ticks: %w", err)
	}
	return ticks, nil
}

// Prune deletes every snapshot except the newest keep rows. It reports how
// many rows went away and the oldest tick still archived.
func (a *Archive) Prune(ctx context.Context, keep int64) (deleted int64, oldest uint64, err error) {
	if keep < 0 {
		keep = 0
	}
	res, err := a.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE tick NOT IN (
		   SELECT tick FROM snapshots ORDER BY tick DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, 0, fmt.Errorf("archive: prune: %w", err)
	}
	deleted, err = res.RowsAffected()
	if err != nil {
		return 0, 0, fmt.Errorf("archive: prune: %w", err)
	}

	var min sql.NullInt64
	if err := a.db.QueryRowContext(ctx, `SELECT MIN(tick) FROM snapshots`).Scan(&min); err != nil {
		return deleted, 0, fmt.Errorf("archive: prune: %w", err)
	}
	if min.Valid {
		oldest = uint64(min.Int64)
	}
	return deleted, oldest, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}
