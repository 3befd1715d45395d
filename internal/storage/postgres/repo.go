package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"trackloader/internal/storage"
	"trackloader/internal/track"
)

/*
Repo implements storage.Repository for Postgres.

Idempotency comes from INSERT ... ON CONFLICT (id) DO UPDATE: re-applying the
same export leaves the table unchanged, and a changed record overwrites name,
variant and platform_id in place.
*/
type Repo struct {
	pool  *pgxpool.Pool
	table string
}

// New creates a new Postgres-backed Repo and validates connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool, table: cfg.Table}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the track table when it does not exist.
//
// If the table name is schema-qualified, the schema is created first. This
// method is idempotent and safe to run on every invocation.
func (r *Repo) EnsureTable(ctx context.Context) error {
	if schema, _ := splitQualifiedName(r.table); schema != "" {
		ddl := fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
		if _, err := r.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create schema for %s: %w", r.table, err)
		}
	}

	if _, err := r.pool.Exec(ctx, buildCreateTableSQL(r.table)); err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// UpsertTracks applies all records in a single transaction.
//
// Per-record isolation:
//   - In Postgres, a failed statement poisons the surrounding transaction,
//     so each record runs inside a nested Begin (a SAVEPOINT under the
//     hood). A failing record rolls back only its savepoint; the outer
//     transaction and all prior records survive.
//
// Batch failure (connection loss, commit error) rolls everything back via
// the deferred Rollback and aborts the run.
func (r *Repo) UpsertTracks(ctx context.Context, recs []track.Track) (*storage.BatchResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	sql := buildUpsertSQL(r.table)
	res := &storage.BatchResult{}

	for i, rec := range recs {
		sp, err := tx.Begin(ctx)
		if err != nil {
			return nil, fmt.Errorf("savepoint for record %d: %w", i, err)
		}

		_, execErr := sp.Exec(ctx, sql, rec.ID, rec.Name, rec.Variant, rec.PlatformID)
		if execErr != nil {
			if err := sp.Rollback(ctx); err != nil {
				return nil, fmt.Errorf("rollback savepoint for record %d: %w", i, err)
			}
			res.Failed = append(res.Failed, storage.RecordError{
				ID:    rec.Label(),
				Index: i,
				Err:   execErr,
			})
			continue
		}

		if err := sp.Commit(ctx); err != nil {
			return nil, fmt.Errorf("release savepoint for record %d: %w", i, err)
		}
		res.Applied++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return res, nil
}

// CountTracks returns the total row count of the track table.
func (r *Repo) CountTracks(ctx context.Context) (int64, error) {
	var n int64
	q := "SELECT COUNT(*) FROM " + tableIdent(r.table)
	if err := r.pool.QueryRow(ctx, q).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", r.table, err)
	}
	return n, nil
}

/* ---------- SQL builders ---------- */

// buildUpsertSQL constructs the per-record upsert statement.
//
// Why this exists:
//   - It is pure and deterministic, so we can unit test correctness
//     (especially the ON CONFLICT clause and placeholder numbering) without
//     a database.
func buildUpsertSQL(table string) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (id, name, variant, platform_id) VALUES ($1, $2, $3, $4)")
	b.WriteString(" ON CONFLICT (id) DO UPDATE SET")
	b.WriteString(" name = EXCLUDED.name,")
	b.WriteString(" variant = EXCLUDED.variant,")
	b.WriteString(" platform_id = EXCLUDED.platform_id")
	return b.String()
}

// buildCreateTableSQL renders the idempotent DDL for the track table.
func buildCreateTableSQL(table string) string {
	return fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (id BIGINT PRIMARY KEY, name TEXT NOT NULL, variant TEXT, platform_id BIGINT);`,
		tableIdent(table),
	)
}

// pgIdent quotes a single identifier for Postgres.
func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// tableIdent quotes a possibly schema-qualified table name.
func tableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgIdent(table)
	}
	return pgIdent(schema) + "." + pgIdent(table)
}

// splitQualifiedName splits a schema-qualified name into (schema, table).
//
// This helper is intentionally conservative: it only handles a single dot.
// Anything more complex is treated as unqualified.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}
