// Package source reads track records from local input files.
//
// Two formats are supported:
//   - JSON: the primary export format (a JSON array of track objects, or an
//     envelope object carrying such an array under "tracks").
//   - HTML: a saved track-listing page, extracted via goquery (see html.go).
//
// The whole document is decoded in one pass; inputs are a few thousand
// records at most, so there is no streaming layer here.
package source

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"trackloader/internal/track"
)

// LoadTracks opens path and decodes it as a JSON track export.
//
// Failure modes:
//   - missing file: the os.Open error is returned untouched so callers can
//     report the path; nothing else has happened at that point.
//   - parse error: wrapped with the path for context.
//
// Either way the caller aborts before the database is contacted.
func LoadTracks(path string) ([]track.Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recs, err := DecodeTracks(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// DecodeTracks decodes a JSON track export from r.
//
// Accepted shapes:
//   - a root array of track objects (null elements are skipped)
//   - an envelope object whose "tracks" field is such an array
//
// The input passes through a BOM-aware decoder first, so exports written by
// Windows tooling (UTF-8 BOM, UTF-16 LE/BE) decode unchanged.
func DecodeTracks(r io.Reader) ([]track.Track, error) {
	// BOMOverride keeps plain UTF-8 untouched and only kicks in when a BOM
	// announces a different encoding.
	utf8 := unicode.UTF8.NewDecoder()
	dec := json.NewDecoder(transform.NewReader(r, unicode.BOMOverride(utf8)))

	tok, err := dec.Token()
	if err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("json: empty input")
		}
		return nil, fmt.Errorf("json: read first token: %w", err)
	}

	d, ok := tok.(json.Delim)
	if !ok {
		return nil, fmt.Errorf("json: unsupported root token %T (want array or object)", tok)
	}

	switch d {
	case '[':
		return decodeArray(dec)

	case '{':
		return decodeEnvelope(dec)

	default:
		return nil, fmt.Errorf("json: unsupported root delimiter %q", d)
	}
}

// decodeArray decodes track elements after '[' has been consumed.
// nil elements are skipped, matching the export's occasional "null" rows.
func decodeArray(dec *json.Decoder) ([]track.Track, error) {
	var out []track.Track
	idx := 0

	for dec.More() {
		var rec *track.Track
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("json: decode element %d: %w", idx, err)
		}
		idx++
		if rec == nil {
			continue
		}
		out = append(out, *rec)
	}

	if end, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("json: read array end: %w", err)
	} else if end != json.Delim(']') {
		return nil, fmt.Errorf("json: expected array end ']', got %v", end)
	}

	return out, nil
}

// decodeEnvelope handles a root object carrying the array under "tracks".
// Other fields of the envelope are ignored.
func decodeEnvelope(dec *json.Decoder) ([]track.Track, error) {
	var out []track.Track
	found := false

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("json: read envelope key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("json: envelope key not a string (got %T)", keyTok)
		}

		if key != "tracks" || found {
			// Skip the value without materializing it.
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("json: skip envelope field %q: %w", key, err)
			}
			continue
		}

		open, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("json: read tracks value: %w", err)
		}
		if open != json.Delim('[') {
			return nil, fmt.Errorf("json: envelope field \"tracks\" is not an array")
		}

		out, err = decodeArray(dec)
		if err != nil {
			return nil, err
		}
		found = true
	}

	if end, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("json: read envelope end: %w", err)
	} else if end != json.Delim('}') {
		return nil, fmt.Errorf("json: expected object end '}', got %v", end)
	}

	if !found {
		return nil, fmt.Errorf("json: envelope object has no \"tracks\" array")
	}
	return out, nil
}
