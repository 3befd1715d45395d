package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"trackloader/internal/config"
	"trackloader/internal/loader"
	"trackloader/internal/metrics"
	"trackloader/internal/metrics/datadog"
	"trackloader/internal/source"
	"trackloader/internal/storage"
	"trackloader/internal/track"

	// register all backends with the storage factory.
	// the DSN decides which one is used but support for all of them is built in.
	_ "trackloader/internal/storage/all"
)

// main is the entry point for the trackloader binary. It resolves the
// database settings, reads the track export, and runs one upsert pass.
func main() {
	var (
		filePath       string
		format         string
		kindFlg        string
		tableFlg       string
		ensureTable    bool
		metricsBackend string
	)

	flag.StringVar(&filePath, "file", "database-data/garage61-all-tracks.json", "track export to load")
	flag.StringVar(&format, "format", "json", "input format (json, html)")
	flag.StringVar(&kindFlg, "kind", "", "storage backend (postgres, sqlite, mssql; default inferred from DATABASE_URL)")
	flag.StringVar(&tableFlg, "table", "", "destination table (overrides env "+config.EnvTable+")")
	flag.BoolVar(&ensureTable, "ensure-table", true, "create the track table when missing")
	flag.StringVar(&metricsBackend, "metrics-backend", "none", "metrics backend to use (datadog, none)")
	verbose := flag.Bool("v", false, "enable verbose logs")

	flag.Parse()

	// Optional .env file; the environment always wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("dotenv: %v", err)
	}

	// Resolve configuration before touching the input file or the network,
	// so a missing DATABASE_URL aborts with no side effects.
	settings, err := config.Resolve()
	if err != nil {
		fatalf("config: %v", err)
	}
	if tableFlg != "" {
		settings.Table = tableFlg
	}
	if kindFlg != "" {
		settings.Kind = kindFlg
	}

	if *verbose {
		log.Printf("config: kind=%s table=%s sslmode=%s",
			settings.Kind, settings.Table, sslmodeOf(settings))
	}

	metricsDone := setupMetrics(metricsBackend, *verbose)
	defer metricsDone()

	recs, err := readTracks(filePath, format)
	if err != nil {
		fatalf("read %s: %v", filePath, err)
	}
	log.Printf("stage=load ok file=%s records=%d", filePath, len(recs))

	ctx := context.Background()
	start := time.Now()

	repo, err := storage.New(ctx, storage.Config{
		Kind:  settings.Kind,
		DSN:   settings.DSN,
		Table: settings.Table,
	})
	if err != nil {
		fatalf("connect %s: %v", settings.Kind, err)
	}
	defer repo.Close()

	l := &loader.Loader{
		Repo:        repo,
		Logger:      log.Default(),
		EnsureTable: ensureTable,
	}
	rep, err := l.Run(ctx, recs)
	if err != nil {
		fatalf("run: %v", err)
	}

	log.Printf("stage=done ok applied=%d failed=%d total=%d duration=%s",
		rep.Applied, len(rep.Failed), rep.Total, time.Since(start).Truncate(time.Millisecond))
	fmt.Printf("Upserted %d tracks (%d failed). Table now holds %d rows.\n",
		rep.Applied, len(rep.Failed), rep.Total)
}

func readTracks(path, format string) ([]track.Track, error) {
	switch format {
	case "json":
		return source.LoadTracks(path)
	case "html":
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return source.ExtractTracks(f)
	default:
		return nil, fmt.Errorf("unknown format %q (want json or html)", format)
	}
}

// setupMetrics wires the requested metrics backend and returns the shutdown
// hook. The nop backend stays in place when metrics are disabled or
// initialization fails.
func setupMetrics(backendName string, verbose bool) func() {
	if backendName == "" {
		backendName = os.Getenv("METRICS_BACKEND")
	}
	switch backendName {
	case "datadog":
		jobName := os.Getenv("METRICS_JOB")
		if jobName == "" {
			jobName = "trackloader"
		}
		extraTags := datadog.ParseTagsCSV(os.Getenv("METRICS_TAGS"))

		b, err := datadog.NewBackend(context.Background(), datadog.Options{
			JobName:    jobName,
			Tags:       extraTags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			break
		}
		log.Printf("metrics: backend=%v job_name=%v tags=%v", backendName, jobName, extraTags)
		metrics.SetBackend(b)

		// Close() stops the flush loop and performs a final Flush().
		return func() {
			if err := b.Close(); err != nil {
				log.Printf("metrics: datadog close/flush error: %v", err)
			}
		}

	case "", "none":
		if verbose {
			log.Printf("metrics: disabled (backend=%q)", backendName)
		}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", backendName)
	}
	return func() {}
}

func sslmodeOf(s *config.Settings) string {
	if s.Conn == nil {
		return "n/a"
	}
	return s.Conn.SSLMode
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}
