package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFixture(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestReadTracksJSON(t *testing.T) {
	path := writeFixture(t, "tracks.json",
		`[{"id": 7, "name": "Spa", "variant": "Endurance", "platform_id": 1}]`)

	recs, err := readTracks(path, "json")
	if err != nil {
		t.Fatalf("readTracks: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != 7 || recs[0].Name != "Spa" {
		t.Errorf("recs = %+v, want one Spa record", recs)
	}
}

func TestReadTracksHTML(t *testing.T) {
	path := writeFixture(t, "tracks.html", `<html><body><table>
<thead><tr><th>ID</th><th>Name</th></tr></thead>
<tbody><tr><td>7</td><td>Spa</td></tr></tbody>
</table></body></html>`)

	recs, err := readTracks(path, "html")
	if err != nil {
		t.Fatalf("readTracks: %v", err)
	}
	if len(recs) != 1 || recs[0].ID != 7 {
		t.Errorf("recs = %+v, want one record with id 7", recs)
	}
}

func TestReadTracksUnknownFormat(t *testing.T) {
	if _, err := readTracks("whatever.csv", "csv"); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestReadTracksMissingFile(t *testing.T) {
	if _, err := readTracks(filepath.Join(t.TempDir(), "nope.json"), "json"); !os.IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestSetupMetricsDisabled(t *testing.T) {
	for _, name := range []string{"none", "bogus"} {
		done := setupMetrics(name, false)
		if done == nil {
			t.Fatalf("setupMetrics(%q) returned nil hook", name)
		}
		done()
	}
}
