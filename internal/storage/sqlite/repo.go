package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"trackloader/internal/storage"
	"trackloader/internal/track"
)

// Repo implements storage.Repository for SQLite.
//
// Key design points vs Postgres:
//   - database/sql instead of pgx; the DSN is a file path or file: URI.
//   - SQLite supports the same upsert shape
//     (INSERT ... ON CONFLICT(id) DO UPDATE) since 3.24.
//   - database/sql has no nested transactions, so per-record isolation uses
//     explicit SAVEPOINT statements on the transaction.
type Repo struct {
	db    *sql.DB
	table string
}

func init() {
	storage.RegisterKind("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, table: cfg.Table}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTable creates the track table when it does not exist. Idempotent.
func (r *Repo) EnsureTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, buildCreateTableSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// UpsertTracks applies all records in a single transaction.
//
// Each record runs between SAVEPOINT and RELEASE; a failing record is rolled
// back to its savepoint and recorded, and the loop continues. The commit at
// the end is the only durable write.
func (r *Repo) UpsertTracks(ctx context.Context, recs []track.Track) (*storage.BatchResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, buildUpsertSQL(r.table))
	if err != nil {
		return nil, fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	res := &storage.BatchResult{}

	for i, rec := range recs {
		sp := fmt.Sprintf("rec_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return nil, fmt.Errorf("savepoint for record %d: %w", i, err)
		}

		_, execErr := stmt.ExecContext(ctx, rec.ID, rec.Name, rec.Variant, rec.PlatformID)
		if execErr != nil {
			if _, err := tx.ExecContext(ctx, "ROLLBACK TO "+sp); err != nil {
				return nil, fmt.Errorf("rollback savepoint for record %d: %w", i, err)
			}
			if _, err := tx.ExecContext(ctx, "RELEASE "+sp); err != nil {
				return nil, fmt.Errorf("release savepoint for record %d: %w", i, err)
			}
			res.Failed = append(res.Failed, storage.RecordError{
				ID:    rec.Label(),
				Index: i,
				Err:   execErr,
			})
			continue
		}

		if _, err := tx.ExecContext(ctx, "RELEASE "+sp); err != nil {
			return nil, fmt.Errorf("release savepoint for record %d: %w", i, err)
		}
		res.Applied++
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// CountTracks returns the total row count of the track table.
func (r *Repo) CountTracks(ctx context.Context) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + sqlIdent(r.table)
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}

/* ---------- SQL builders ---------- */

func buildUpsertSQL(table string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(sqlIdent(table))
	b.WriteString(" (id, name, variant, platform_id) VALUES (?, ?, ?, ?)")
	b.WriteString(" ON CONFLICT(id) DO UPDATE SET")
	b.WriteString(" name = excluded.name,")
	b.WriteString(" variant = excluded.variant,")
	b.WriteString(" platform_id = excluded.platform_id")
	return b.String()
}

func buildCreateTableSQL(table string) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id INTEGER PRIMARY KEY, name TEXT NOT NULL, variant TEXT, platform_id INTEGER);`,
		sqlIdent(table),
	)
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
