package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"trackloader/internal/storage"
	"trackloader/internal/track"
)

// Repo implements storage.Repository for SQL Server.
//
// Notes:
//   - SQL Server has no ON CONFLICT; the upsert is a single-row MERGE keyed
//     on id, which matches the Postgres semantics (update the three non-key
//     attributes when the key exists).
//   - With default session settings (XACT_ABORT OFF), a constraint error
//     fails only its statement and leaves the surrounding transaction
//     usable, so per-record isolation needs no savepoints here.
type Repo struct {
	db    *sql.DB
	table string
}

func init() {
	storage.RegisterKind("mssql", New)
}

// New constructs a Repo using database/sql and the "sqlserver" driver, and
// validates connectivity via PingContext.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, table: cfg.Table}, nil
}

// Close releases database resources held by this repository.
func (r *Repo) Close() {
	if r == nil || r.db == nil {
		return
	}
	_ = r.db.Close()
}

// EnsureTable creates the track table when it does not exist.
//
// The CREATE is wrapped in an OBJECT_ID guard because SQL Server has no
// CREATE TABLE IF NOT EXISTS. Idempotent.
func (r *Repo) EnsureTable(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, buildCreateTableSQL(r.table)); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", r.table, err)
	}
	return nil
}

// UpsertTracks applies all records in a single transaction, committing once
// at the end. A failing record is recorded and skipped; a batch-level error
// rolls back via the deferred Rollback and aborts.
func (r *Repo) UpsertTracks(ctx context.Context, recs []track.Track) (*storage.BatchResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	q := buildMergeSQL(r.table)
	res := &storage.BatchResult{}

	for i, rec := range recs {
		_, execErr := tx.ExecContext(ctx, q,
			sql.Named("id", rec.ID),
			sql.Named("name", rec.Name),
			sql.Named("variant", rec.Variant),
			sql.Named("platform_id", rec.PlatformID),
		)
		if execErr != nil {
			res.Failed = append(res.Failed, storage.RecordError{
				ID:    rec.Label(),
				Index: i,
				Err:   execErr,
			})
			continue
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
	q := "SELECT COUNT(*) FROM " + mssqlIdent(r.table)
	if err := r.db.QueryRowContext(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("mssql: count %s: %w", r.table, err)
	}
	return n, nil
}

/* ---------- SQL builders ---------- */

// buildMergeSQL constructs the single-row MERGE upsert.
//
// Pure and deterministic so the statement shape is unit-testable without a
// SQL Server instance.
func buildMergeSQL(table string) string {
	ident := mssqlIdent(table)

	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(ident)
	b.WriteString(" AS t")
	b.WriteString(" USING (SELECT @id AS id, @name AS name, @variant AS variant, @platform_id AS platform_id) AS s")
	b.WriteString(" ON t.id = s.id")
	b.WriteString(" WHEN MATCHED THEN UPDATE SET name = s.name, variant = s.variant, platform_id = s.platform_id")
	b.WriteString(" WHEN NOT MATCHED THEN INSERT (id, name, variant, platform_id)")
	b.WriteString(" VALUES (s.id, s.name, s.variant, s.platform_id);")
	return b.String()
}

// buildCreateTableSQL renders guarded DDL for the track table.
func buildCreateTableSQL(table string) string {
	defs := "id BIGINT PRIMARY KEY, name NVARCHAR(400) NOT NULL, variant NVARCHAR(400) NULL, platform_id BIGINT NULL"
	return fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		table,
		mssqlIdent(table),
		defs,
	)
}

// mssqlIdent brackets an identifier for SQL Server.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}
