// Package storage defines the backend-agnostic track repository and the
// backend registry.
package storage

import (
	"context"
	"fmt"
	"sync"

	"trackloader/internal/track"
)

// Config is the minimal configuration needed to create a repository.
//
// Edge cases:
//   - Kind must be non-empty and must match a registered backend kind.
//   - DSN is passed through to the backend factory; validation is
//     backend-specific.
//   - Table must be a plain (optionally schema-qualified) identifier; each
//     backend quotes it.
type Config struct {
	Kind  string
	DSN   string
	Table string
}

// RecordError is one per-record upsert failure.
//
// Per-record failures are explicit values, not control flow: the executor
// accumulates them into the run report and continues with the next record.
type RecordError struct {
	// ID is the offending track id, or "unknown" when the record had none.
	ID string

	// Index is the record's zero-based position in the input.
	Index int

	Err error
}

func (e RecordError) Error() string {
	return fmt.Sprintf("track %s (input #%d): %v", e.ID, e.Index, e.Err)
}

// BatchResult reports the outcome of one upsert batch.
type BatchResult struct {
	// Applied counts records successfully inserted or updated.
	Applied int64

	// Failed holds per-record failures that were isolated and skipped.
	Failed []RecordError
}

// Repository is the backend-agnostic interface for the track table.
//
// IMPORTANT: This interface is intentionally minimal and focused on the
// operations the loader needs. Each backend implements the semantics in its
// own idiomatic way (Postgres ON CONFLICT, SQLite upsert, MSSQL MERGE).
type Repository interface {
	// Close releases backend resources. Call once at process shutdown.
	Close()

	// EnsureTable creates the track table if it does not exist. Idempotent.
	EnsureTable(ctx context.Context) error

	// UpsertTracks applies all records in a single transaction.
	//
	// Per-record semantics:
	//   - a failing record is isolated (savepoint where the engine needs
	//     it), recorded in BatchResult.Failed, and skipped
	//   - the transaction commits once at the end
	//
	// A non-nil error means the batch itself failed (connection loss,
	// commit failure); the transaction has been rolled back and nothing
	// was applied.
	UpsertTracks(ctx context.Context, recs []track.Track) (*BatchResult, error)

	// CountTracks returns the total row count of the track table.
	CountTracks(ctx context.Context) (int64, error)
}

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// RegisterKind registers a backend under a kind (e.g. "postgres", "sqlite").
//
// Call RegisterKind from an init() function in a backend package; the kind
// string becomes the lookup key used by New.
//
// Panics:
//   - If kind is empty.
//   - If f is nil.
//   - If kind is already registered. This is intentional to fail fast and
//     avoid ambiguous backend selection.
func RegisterKind(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: RegisterKind called with empty kind")
	}
	if f == nil {
		panic("storage: RegisterKind called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
//
// Errors:
//   - Returns an error if cfg.Kind is empty or unsupported, or if cfg.Table
//     is empty.
//   - Returns whatever error the registered factory returns.
//
// Concurrency:
//   - Safe for concurrent use with RegisterKind; New takes a read lock while
//     selecting the factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing Kind")
	}
	if cfg.Table == "" {
		return nil, fmt.Errorf("storage: missing Table")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
