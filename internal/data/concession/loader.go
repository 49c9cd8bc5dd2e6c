// Package concession loads concession points from a CSV source.
package concession

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/se-atlas/server/internal/geo"
)

// ErrMissingColumn is returned when a coordinate column is absent.
var ErrMissingColumn = errors.New("missing column")

// Source provides raw dataset bytes for a URL.
type Source interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Options names the coordinate columns.
type Options struct {
	LatColumn string
	LonColumn string
}

// DefaultOptions matches the concession export layout.
func DefaultOptions() Options {
	return Options{LatColumn: "LAT", LonColumn: "LON"}
}

// Dataset is the result of loading one point source.
type Dataset struct {
	URL         string
	Columns     []string
	Concessions []geo.Concession
	Dropped     int
}

// Load fetches url and returns the rows with usable coordinates.
func Load(ctx context.Context, src Source, url string, opts Options) (*Dataset, error) {
	data, err := src.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	ds, err := Parse(data, opts)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	ds.URL = url
	return ds, nil
}

// Parse reads CSV with a header row. Rows whose latitude or longitude is not
// a finite number are dropped and counted.
func Parse(data []byte, opts Options) (*Dataset, error) {
	if opts.LatColumn == "" {
		opts.LatColumn = DefaultOptions().LatColumn
	}
	if opts.LonColumn == "" {
		opts.LonColumn = DefaultOptions().LonColumn
	}

	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\ufeff"))))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty csv", ErrMissingColumn)
		}
		return nil, err
	}
	columns := uniqueColumns(header)

	latIdx, lonIdx := indexOf(columns, opts.LatColumn), indexOf(columns, opts.LonColumn)
	if latIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, opts.LatColumn)
	}
	if lonIdx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, opts.LonColumn)
	}

	ds := &Dataset{Columns: columns, Concessions: make([]geo.Concession, 0, 1024)}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		lat, okLat := field(rec, latIdx)
		lon, okLon := field(rec, lonIdx)
		if !okLat || !okLon {
			ds.Dropped++
			continue
		}

		attrs := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(rec) {
				attrs[col] = rec[i]
			}
		}
		ds.Concessions = append(ds.Concessions, geo.NewConcession(lat, lon, attrs))
	}
	return ds, nil
}

func field(rec []string, idx int) (float64, bool) {
	if idx >= len(rec) {
		return 0, false
	}
	return geo.ParseFinite(rec[idx])
}

func indexOf(columns []string, name string) int {
	for i, c := range columns {
		if c == name {
			return i
		}
	}
	return -1
}

// uniqueColumns suffixes repeated header names with .1, .2, ... so that every
// attribute stays addressable.
func uniqueColumns(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}
