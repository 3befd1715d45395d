package source

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"trackloader/internal/track"
)

// ExtractTracks parses a saved HTML page and extracts track records from the
// first table whose header row carries an "id" and a "name" column.
//
// Column matching is by normalized header text:
//   - "id"                        -> Track.ID
//   - "name" / "track"            -> Track.Name
//   - "variant" / "layout"        -> Track.Variant
//   - "platform" / "platform id"  -> Track.PlatformID
//
// Rows that fail cell parsing are skipped rather than failing the page; the
// loader applies its own per-record validation afterwards.
func ExtractTracks(r io.Reader) ([]track.Track, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var (
		out     []track.Track
		matched bool
	)

	doc.Find("table").EachWithBreak(func(_ int, tbl *goquery.Selection) bool {
		cols := headerColumns(tbl)
		if _, ok := cols["id"]; !ok {
			return true // keep looking
		}
		if _, ok := cols["name"]; !ok {
			return true
		}

		matched = true
		tbl.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			if rec, ok := rowToTrack(row, cols); ok {
				out = append(out, rec)
			}
		})
		return false // first matching table wins
	})

	if !matched {
		return nil, fmt.Errorf("html: no table with id/name header columns found")
	}
	return out, nil
}

// headerColumns maps canonical field names to header cell positions.
func headerColumns(tbl *goquery.Selection) map[string]int {
	cols := make(map[string]int)

	tbl.Find("thead th").Each(func(i int, th *goquery.Selection) {
		switch normalizeHeader(th.Text()) {
		case "id":
			cols["id"] = i
		case "name", "track":
			cols["name"] = i
		case "variant", "layout":
			cols["variant"] = i
		case "platform", "platformid":
			cols["platform_id"] = i
		}
	})

	return cols
}

// normalizeHeader lowercases a header label and strips spaces/underscores so
// "Platform ID" and "platform_id" match the same column.
func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// rowToTrack extracts one record from a body row using the header positions.
//
// A row is rejected (ok=false) when the id cell is absent or non-numeric.
// Optional cells that are empty become nil, mirroring JSON nulls.
func rowToTrack(row *goquery.Selection, cols map[string]int) (track.Track, bool) {
	cells := row.Find("td").Map(func(_ int, td *goquery.Selection) string {
		return strings.TrimSpace(td.Text())
	})

	cell := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(cells) {
			return "", false
		}
		return cells[i], true
	}

	var rec track.Track

	idText, ok := cell("id")
	if !ok || idText == "" {
		return rec, false
	}
	id, err := strconv.ParseInt(idText, 10, 64)
	if err != nil {
		return rec, false
	}
	rec.ID = id

	if name, ok := cell("name"); ok {
		rec.Name = name
	}
	if v, ok := cell("variant"); ok && v != "" {
		rec.Variant = &v
	}
	if p, ok := cell("platform_id"); ok && p != "" {
		if pid, err := strconv.ParseInt(p, 10, 64); err == nil {
			rec.PlatformID = &pid
		}
	}

	return rec, true
}
