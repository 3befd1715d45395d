// Package track defines the track record loaded into the tracks table.
package track

import (
	"fmt"
	"strings"
)

// Track is one track record as it appears in the input export.
//
// Variant and PlatformID are pointers because the export uses JSON null for
// tracks without a layout variant or a platform mapping; nil round-trips to
// SQL NULL in every backend.
type Track struct {
	ID         int64   `json:"id"`
	Name       string  `json:"name"`
	Variant    *string `json:"variant"`
	PlatformID *int64  `json:"platform_id"`
}

// Validate reports whether the record can be upserted at all.
//
// Rules:
//   - ID must be set (zero means the input object had no usable id).
//   - Name must be non-blank after trimming.
//
// Records failing validation are reported per-item by the loader; they never
// abort the run.
func (t Track) Validate() error {
	if t.ID == 0 {
		return fmt.Errorf("missing id")
	}
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("missing name (id=%d)", t.ID)
	}
	return nil
}

// Label returns the identifier used in per-record failure reporting.
// Records without an id are labelled "unknown".
func (t Track) Label() string {
	if t.ID == 0 {
		return "unknown"
	}
	return fmt.Sprintf("%d", t.ID)
}
