// Package loader drives one upsert run: validate records, apply them through
// a storage.Repository, verify the final count, and assemble the run report.
package loader

import (
	"context"
	"fmt"
	"log"
	"time"

	"trackloader/internal/metrics"
	"trackloader/internal/storage"
	"trackloader/internal/track"
)

// Logger is the minimal logging interface used by the loader.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Report is the outcome of one run.
//
// Per-record failures live here as values; they never abort the run and
// never surface as errors. A Loader.Run error means the run itself failed
// (configuration, database phase) and nothing was committed.
type Report struct {
	// Loaded is the number of records read from the input.
	Loaded int

	// Applied counts records successfully inserted or updated.
	Applied int64

	// Failed holds per-record failures, validation rejects first and
	// then isolated upsert errors. Index always refers to the input.
	Failed []storage.RecordError

	// Total is the table row count after commit.
	Total int64
}

// Loader executes the upsert phase against a repository.
type Loader struct {
	Repo storage.Repository

	// Logger receives stage and per-record failure lines. When nil,
	// output is discarded (useful in tests).
	Logger Logger

	// EnsureTable controls whether the track table is created when
	// missing before the upsert.
	EnsureTable bool
}

// Run applies recs and returns the report.
//
// Phases:
//  1. optional DDL (create-if-missing)
//  2. validation: records without a usable id or name become per-record
//     failures up front, so the store only sees upsertable rows
//  3. one transactional upsert batch (per-record isolation inside)
//  4. post-commit count
//
// Failure indices always refer to positions in the original input.
func (l *Loader) Run(ctx context.Context, recs []track.Track) (*Report, error) {
	if l.Repo == nil {
		return nil, fmt.Errorf("loader: Repo is required")
	}

	logf := l.logger()
	start := time.Now()
	rep := &Report{Loaded: len(recs)}

	if l.EnsureTable {
		ddlStart := time.Now()
		if err := l.Repo.EnsureTable(ctx); err != nil {
			return nil, err
		}
		logf("stage=ddl ok duration=%s", durMS(ddlStart))
	}

	// Validation pass. origIdx maps positions in the filtered batch back
	// to positions in the input so failure reports stay meaningful.
	valid := make([]track.Track, 0, len(recs))
	origIdx := make([]int, 0, len(recs))
	for i, rec := range recs {
		if err := rec.Validate(); err != nil {
			rep.Failed = append(rep.Failed, storage.RecordError{
				ID:    rec.Label(),
				Index: i,
				Err:   err,
			})
			continue
		}
		valid = append(valid, rec)
		origIdx = append(origIdx, i)
	}

	res, err := l.Repo.UpsertTracks(ctx, valid)
	if err != nil {
		return nil, fmt.Errorf("upsert batch: %w", err)
	}
	rep.Applied = res.Applied
	for _, fe := range res.Failed {
		fe.Index = origIdx[fe.Index]
		rep.Failed = append(rep.Failed, fe)
	}

	for _, fe := range rep.Failed {
		logf("stage=upsert record failed id=%s index=%d err=%v", fe.ID, fe.Index, fe.Err)
	}
	logf("stage=upsert ok applied=%d failed=%d duration=%s", rep.Applied, len(rep.Failed), durMS(start))

	total, err := l.Repo.CountTracks(ctx)
	if err != nil {
		return nil, fmt.Errorf("verify count: %w", err)
	}
	rep.Total = total

	metrics.IncCounter("tracks_loaded", float64(rep.Loaded), nil)
	metrics.IncCounter("tracks_upserted", float64(rep.Applied), nil)
	metrics.IncCounter("tracks_failed", float64(len(rep.Failed)), nil)
	metrics.ObserveHistogram("run_duration_seconds", time.Since(start).Seconds(), nil)

	return rep, nil
}

func (l *Loader) logger() func(format string, v ...any) {
	if l.Logger == nil {
		d := log.New(discardWriter{}, "", 0)
		return d.Printf
	}
	return l.Logger.Printf
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func durMS(start time.Time) time.Duration {
	return time.Since(start).Truncate(time.Millisecond)
}
