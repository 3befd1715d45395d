package postgres

import (
	"strings"
	"testing"
)

func TestBuildUpsertSQL(t *testing.T) {
	// The upsert contract: one row of four placeholders, and the conflict
	// clause overwrites exactly the three non-key attributes.
	got := buildUpsertSQL("tracks")
	want := `INSERT INTO "tracks" (id, name, variant, platform_id) VALUES ($1, $2, $3, $4)` +
		` ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, variant = EXCLUDED.variant, platform_id = EXCLUDED.platform_id`
	if got != want {
		t.Fatalf("buildUpsertSQL()=\n%s\nwant\n%s", got, want)
	}
}

func TestBuildUpsertSQL_QualifiedTable(t *testing.T) {
	got := buildUpsertSQL("racing.tracks")
	if !strings.HasPrefix(got, `INSERT INTO "racing"."tracks" `) {
		t.Fatalf("buildUpsertSQL()=%q, want schema-qualified quoted table", got)
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	got := buildCreateTableSQL("tracks")
	want := `CREATE TABLE IF NOT EXISTS "tracks" (id BIGINT PRIMARY KEY, name TEXT NOT NULL, variant TEXT, platform_id BIGINT);`
	if got != want {
		t.Fatalf("buildCreateTableSQL()=\n%s\nwant\n%s", got, want)
	}
}

func TestTableIdent(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"tracks", `"tracks"`},
		{"racing.tracks", `"racing"."tracks"`},
		{`odd"name`, `"odd""name"`},
		{"a.b.c", `"a.b.c"`}, // more than one dot: treated as unqualified
	}
	for _, tc := range cases {
		if got := tableIdent(tc.in); got != tc.want {
			t.Errorf("tableIdent(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}
