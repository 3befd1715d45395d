package datadog

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"

	"trackloader/internal/metrics"
)

// fakeSubmitter records payloads instead of performing HTTP.
type fakeSubmitter struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
}

func (f *fakeSubmitter) SubmitMetrics(_ context.Context, body datadogV2.MetricPayload, _ ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, nil
}

func (f *fakeSubmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.payloads)
}

// newTestBackend builds a Backend with all seams stubbed: fixed clock, a
// ticker that never fires (tests drive Flush/Close explicitly), and a fake
// submitter.
func newTestBackend(t *testing.T) (*Backend, *fakeSubmitter) {
	t.Helper()

	fake := &fakeSubmitter{}
	b, err := NewBackend(context.Background(), Options{
		JobName: "test",
		now:     func() time.Time { return time.Unix(1700000000, 0) },
		newTicker: func(time.Duration) *time.Ticker {
			return time.NewTicker(time.Hour)
		},
		submitter: fake,
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b, fake
}

func TestFlushSubmitsBufferedCounters(t *testing.T) {
	b, fake := newTestBackend(t)
	defer b.Close()

	b.IncCounter("tracks_loaded", 10, nil)
	b.IncCounter("tracks_loaded", 5, nil)
	b.IncCounter("tracks_failed", 1, metrics.Labels{"reason": "missing_id"})

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fake.count() != 1 {
		t.Fatalf("payloads=%d, want 1", fake.count())
	}

	series := fake.payloads[0].Series
	if len(series) != 2 {
		t.Fatalf("series=%d, want 2 (merged counter + labelled counter)", len(series))
	}

	// Sorted by metric name: tracks_failed before tracks_loaded.
	if series[0].Metric != "trackloader.tracks_failed" {
		t.Errorf("series[0].Metric=%q, want trackloader.tracks_failed", series[0].Metric)
	}
	if got := *series[1].Points[0].Value; got != 15 {
		t.Errorf("tracks_loaded value=%v, want 15 (deltas merged)", got)
	}
	if got := *series[1].Points[0].Timestamp; got != 1700000000 {
		t.Errorf("timestamp=%d, want fixed test clock", got)
	}

	found := false
	for _, tag := range series[0].Tags {
		if tag == "reason:missing_id" {
			found = true
		}
	}
	if !found {
		t.Errorf("labelled counter tags=%v, want reason:missing_id", series[0].Tags)
	}
}

func TestFlushEmptyIsNoop(t *testing.T) {
	b, fake := newTestBackend(t)
	defer b.Close()

	if err := b.Flush(); err != nil {
		t.Fatalf("Flush() err=%v", err)
	}
	if fake.count() != 0 {
		t.Fatalf("payloads=%d, want 0 for empty buffers", fake.count())
	}
}

func TestCloseFlushesTail(t *testing.T) {
	b, fake := newTestBackend(t)

	b.ObserveHistogram("run_duration_seconds", 1.5, nil)
	b.ObserveHistogram("run_duration_seconds", 0.5, nil)

	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if fake.count() != 1 {
		t.Fatalf("payloads=%d, want 1 (tail flush on Close)", fake.count())
	}

	series := fake.payloads[0].Series
	if len(series) != 1 || series[0].Metric != "trackloader.run_duration_seconds.max" {
		t.Fatalf("series=%+v, want one run_duration_seconds.max gauge", series)
	}
	if got := *series[0].Points[0].Value; got != 1.5 {
		t.Errorf("max=%v, want 1.5", got)
	}
}

func TestBufferKeyRoundTrip(t *testing.T) {
	key := bufferKey("tracks_failed", metrics.Labels{"b": "2", "a": "1"})
	if key != "tracks_failed|a:1,b:2" {
		t.Fatalf("bufferKey()=%q, want sorted labels", key)
	}

	name, tags := splitBufferKey(key)
	if name != "tracks_failed" || len(tags) != 2 || tags[0] != "a:1" || tags[1] != "b:2" {
		t.Fatalf("splitBufferKey()=%q/%v, want name + sorted tags", name, tags)
	}
}
