// Package sezone loads SE enumeration-area polygons from a GeoJSON source.
package sezone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"

	"github.com/se-atlas/server/internal/geo"
)

// Property names after normalization.
const (
	PropRegion        = "region"
	PropCercle        = "cercle"
	PropCommune       = "commune"
	PropZoneID        = "idse_new"
	PropPopTotal      = "pop_se"
	PropPopConcession = "pop_se_ct"
)

// renames maps raw (lowercased, trimmed) source names to canonical ones.
var renames = map[string]string{
	"lregion":  PropRegion,
	"lcercle":  PropCercle,
	"lcommune": PropCommune,
}

// ErrUnsupportedCRS is returned when the source declares a CRS that cannot
// be brought to WGS84.
var ErrUnsupportedCRS = errors.New("unsupported crs")

// Source provides raw dataset bytes for a URL.
type Source interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Dataset is the result of loading one polygon source.
type Dataset struct {
	URL     string
	Zones   []geo.Zone
	Dropped int
}

type featureCollection struct {
	Type     string            `json:"type"`
	CRS      *crsMember        `json:"crs"`
	Features []json.RawMessage `json:"features"`
}

type crsMember struct {
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

// Load fetches url and returns its valid polygons with normalized attributes.
func Load(ctx context.Context, src Source, url string) (*Dataset, error) {
	data, err := src.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	ds, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", url, err)
	}
	ds.URL = url
	return ds, nil
}

// Parse decodes a GeoJSON FeatureCollection. Features whose geometry is
// missing, malformed or invalid are dropped and counted.
func Parse(data []byte) (*Dataset, error) {
	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, err
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("expected FeatureCollection, got %q", fc.Type)
	}

	toWGS84, err := projectionFor(fc.CRS)
	if err != nil {
		return nil, err
	}

	ds := &Dataset{Zones: make([]geo.Zone, 0, len(fc.Features))}
	for _, raw := range fc.Features {
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil || f.Geometry == nil {
			ds.Dropped++
			continue
		}
		g := f.Geometry
		if toWGS84 != nil {
			g = project.Geometry(g, toWGS84)
		}
		if !geo.IsValid(g) {
			ds.Dropped++
			continue
		}
		ds.Zones = append(ds.Zones, newZone(normalize(f.Properties), g))
	}
	return ds, nil
}

// projectionFor returns nil when coordinates are already WGS84.
func projectionFor(crs *crsMember) (orb.Projection, error) {
	if crs == nil {
		return nil, nil
	}
	name := strings.ToUpper(crs.Properties.Name)
	switch {
	case name == "",
		strings.HasSuffix(name, "CRS84"),
		strings.HasSuffix(name, "EPSG::4326"),
		strings.HasSuffix(name, "EPSG:4326"):
		return nil, nil
	case strings.HasSuffix(name, "EPSG::3857"),
		strings.HasSuffix(name, "EPSG:3857"),
		strings.HasSuffix(name, "EPSG::900913"),
		strings.HasSuffix(name, "EPSG:900913"):
		return project.Mercator.ToWGS84, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCRS, crs.Properties.Name)
	}
}

// normalize lowercases and trims property names, then applies renames.
func normalize(props geojson.Properties) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		key := strings.TrimSpace(strings.ToLower(k))
		if canon, ok := renames[key]; ok {
			key = canon
		}
		out[key] = v
	}
	for _, k := range []string{PropRegion, PropCercle, PropCommune, PropZoneID} {
		if _, ok := out[k]; !ok {
			out[k] = ""
		}
	}
	for _, k := range []string{PropPopTotal, PropPopConcession} {
		if _, ok := out[k]; !ok {
			out[k] = 0.0
		}
	}
	return out
}

func newZone(props map[string]any, g orb.Geometry) geo.Zone {
	return geo.Zone{
		Region:        stringValue(props[PropRegion]),
		Cercle:        stringValue(props[PropCercle]),
		Commune:       stringValue(props[PropCommune]),
		ZoneID:        stringValue(props[PropZoneID]),
		PopTotal:      numberValue(props[PropPopTotal]),
		PopConcession: numberValue(props[PropPopConcession]),
		Geometry:      g,
		Properties:    props,
	}
}

func stringValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case json.Number:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func numberValue(v any) float64 {
	switch x := v.(type) {
	case float64:
		if !math.IsNaN(x) && !math.IsInf(x, 0) {
			return x
		}
	case int:
		return float64(x)
	case string:
		if f, ok := geo.ParseFinite(x); ok {
			return f
		}
	case json.Number:
		if f, ok := geo.ParseFinite(x.String()); ok {
			return f
		}
	}
	return 0
}
