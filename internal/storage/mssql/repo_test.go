package mssql

import (
	"strings"
	"testing"
)

func TestBuildMergeSQL(t *testing.T) {
	got := buildMergeSQL("tracks")

	// MERGE must key on id and update exactly the three non-key attributes.
	for _, frag := range []string{
		"MERGE INTO [tracks] AS t",
		"ON t.id = s.id",
		"WHEN MATCHED THEN UPDATE SET name = s.name, variant = s.variant, platform_id = s.platform_id",
		"WHEN NOT MATCHED THEN INSERT (id, name, variant, platform_id)",
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("buildMergeSQL() missing %q in:\n%s", frag, got)
		}
	}
	if !strings.HasSuffix(got, ";") {
		t.Errorf("buildMergeSQL() must end with a semicolon (MERGE requires it): %q", got)
	}
}

func TestBuildCreateTableSQL_Guarded(t *testing.T) {
	got := buildCreateTableSQL("tracks")
	if !strings.HasPrefix(got, "IF OBJECT_ID(N'tracks', N'U') IS NULL BEGIN CREATE TABLE [tracks] ") {
		t.Fatalf("buildCreateTableSQL()=%q, want OBJECT_ID-guarded CREATE", got)
	}
}

func TestMssqlIdent(t *testing.T) {
	if got := mssqlIdent("tracks"); got != "[tracks]" {
		t.Errorf("mssqlIdent()=%q, want [tracks]", got)
	}
	if got := mssqlIdent("odd]name"); got != "[odd]]name]" {
		t.Errorf("mssqlIdent()=%q, want [odd]]name]", got)
	}
}
