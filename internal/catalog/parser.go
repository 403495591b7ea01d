package catalog

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

//go:embed data/bright_stars.csv
var embeddedCSV []byte

// requiredColumns are the header names Parse looks up. Extra columns are ignored.
var requiredColumns = []string{
	"hip", "proper_name", "ra_hours", "dec_degrees",
	"ra_mas_per_year", "dec_mas_per_year", "parallax_mas", "magnitude",
}

// Parse reads a star catalog in CSV form from r. The first row is a header;
// column order is free. Malformed rows are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Star, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading catalog header: empty input")
		}
		return nil, fmt.Errorf("reading catalog header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("catalog header missing column %q", name)
		}
	}
	constIdx, hasConst := cols["constellation"]

	var stars []Star
	line := 1
	for {
		rec, err := cr.Read()
		line++
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.Warn("skipping unreadable catalog row", "line", line, "error", err)
			continue
		}

		field := func(name string) string {
			i := cols[name]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		hip, err := strconv.Atoi(field("hip"))
		if err != nil {
			logger.Warn("skipping catalog row with invalid HIP number", "line", line, "hip", field("hip"))
			continue
		}

		if missing := firstEmpty(field, "ra_hours", "dec_degrees", "magnitude"); missing != "" {
			logger.Warn("skipping catalog row with missing value", "line", line, "hip", hip, "column", missing)
			continue
		}

		nums, bad := parseFloats(field, "ra_hours", "dec_degrees", "ra_mas_per_year", "dec_mas_per_year", "parallax_mas", "magnitude")
		if bad != "" {
			logger.Warn("skipping catalog row with invalid number", "line", line, "hip", hip, "column", bad)
			continue
		}
		ra, dec := nums[0], nums[1]
		if ra < 0 || ra >= 24 || dec < -90 || dec > 90 {
			logger.Warn("skipping catalog row with out-of-range coordinates", "line", line, "hip", hip, "ra_hours", ra, "dec_degrees", dec)
			continue
		}

		name := field("proper_name")
		if name == "" {
			name = fmt.Sprintf("HIP %d", hip)
		}
		constellation := "Unknown"
		if hasConst && constIdx < len(rec) && strings.TrimSpace(rec[constIdx]) != "" {
			constellation = strings.TrimSpace(rec[constIdx])
		}

		stars = append(stars, Star{
			HIP:           hip,
			Name:          name,
			RAHours:       ra,
			DecDeg:        dec,
			PMRA:          nums[2],
			PMDec:         nums[3],
			ParallaxMas:   nums[4],
			Magnitude:     nums[5],
			Constellation: constellation,
		})
	}

	return stars, nil
}

// parseFloats parses the named columns; bad names the first column that failed.
func parseFloats(field func(string) string, names ...string) ([]float64, string) {
	out := make([]float64, len(names))
	for i, n := range names {
		v := field(n)
		if v == "" {
			// Missing astrometry (e.g. no proper motion) reads as zero.
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, n
		}
		out[i] = f
	}
	return out, ""
}

func firstEmpty(field func(string) string, names ...string) string {
	for _, n := range names {
		if field(n) == "" {
			return n
		}
	}
	return ""
}

// Embedded returns the catalog compiled into the binary.
func Embedded(logger *slog.Logger) (*Dataset, error) {
	stars, err := Parse(bytes.NewReader(embeddedCSV), logger)
	if err != nil {
		return nil, fmt.Errorf("parsing embedded catalog: %w", err)
	}
	return &Dataset{
		Source:   "embedded",
		LoadedAt: time.Now(),
		Stars:    stars,
	}, nil
}
