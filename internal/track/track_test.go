package track

import (
	"encoding/json"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		in      Track
		wantErr bool
	}{
		{"valid full", Track{ID: 1, Name: "Spa", Variant: strPtr("GP")}, false},
		{"valid sparse", Track{ID: 2, Name: "Monza"}, false},
		{"missing id", Track{Name: "Spa"}, true},
		{"missing name", Track{ID: 3}, true},
		{"blank name", Track{ID: 4, Name: "   "}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.in.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate()=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}

func TestLabel(t *testing.T) {
	if got := (Track{ID: 42, Name: "x"}).Label(); got != "42" {
		t.Fatalf("Label()=%q, want %q", got, "42")
	}
	if got := (Track{Name: "x"}).Label(); got != "unknown" {
		t.Fatalf("Label()=%q, want %q", got, "unknown")
	}
}

func TestJSONNullFields(t *testing.T) {
	// The export writes explicit nulls for tracks without a variant or
	// platform mapping. Those must decode to nil, not zero values, so the
	// upsert writes SQL NULL.
	var tr Track
	if err := json.Unmarshal([]byte(`{"id":1,"name":"Spa","variant":null,"platform_id":null}`), &tr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tr.Variant != nil {
		t.Fatalf("Variant=%v, want nil", *tr.Variant)
	}
	if tr.PlatformID != nil {
		t.Fatalf("PlatformID=%v, want nil", *tr.PlatformID)
	}
}
