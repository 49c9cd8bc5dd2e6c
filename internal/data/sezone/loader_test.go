package sezone

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature",
     "properties": {" LRegion ": "Bamako", "LCERCLE": "Bamako", "LCommune": "Commune I", "IDSE_NEW": "Z1", "Pop_SE": 100, "pop_se_ct": "80", "index_right": 2},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature",
     "properties": {"lregion": "Kayes", "idse_new": 42},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[2,2],[3,2],[3,3],[2,3],[2,2]]]]}},
    {"type": "Feature",
     "properties": {"lregion": "Bowtie"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,1],[1,0],[0,1],[0,0]]]}},
    {"type": "Feature",
     "properties": {"lregion": "NoGeometry"},
     "geometry": null},
    {"type": "Feature",
     "properties": {"lregion": "Point"},
     "geometry": {"type": "Point", "coordinates": [0, 0]}},
    {"type": "Feature",
     "properties": {"lregion": "Broken"},
     "geometry": {"type": "Polygon", "coordinates": "nope"}}
  ]
}`

func TestParseNormalizesAndFilters(t *testing.T) {
	ds, err := Parse([]byte(sample))
	require.NoError(t, err)
	require.Len(t, ds.Zones, 2)
	assert.Equal(t, 4, ds.Dropped)

	z := ds.Zones[0]
	assert.Equal(t, "Bamako", z.Region)
	assert.Equal(t, "Bamako", z.Cercle)
	assert.Equal(t, "Commune I", z.Commune)
	assert.Equal(t, "Z1", z.ZoneID)
	assert.Equal(t, 100.0, z.PopTotal)
	assert.Equal(t, 80.0, z.PopConcession)
	assert.Contains(t, z.Properties, "region")
	assert.Contains(t, z.Properties, "index_right")
	assert.NotContains(t, z.Properties, "lregion")

	defaulted := ds.Zones[1]
	assert.Equal(t, "Kayes", defaulted.Region)
	assert.Equal(t, "", defaulted.Cercle)
	assert.Equal(t, "", defaulted.Commune)
	assert.Equal(t, "42", defaulted.ZoneID)
	assert.Equal(t, 0.0, defaulted.PopTotal)
	assert.Equal(t, 0.0, defaulted.PopConcession)
	_, ok := defaulted.Geometry.(orb.MultiPolygon)
	assert.True(t, ok)
}

func TestParseReprojectsWebMercator(t *testing.T) {
	doc := `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::3857"}},
  "features": [
    {"type": "Feature", "properties": {"idse_new": "M"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[111319.49,0],[111319.49,111325.14],[0,111325.14],[0,0]]]}}
  ]
}`
	ds, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, ds.Zones, 1)

	b := ds.Zones[0].Bound()
	assert.InDelta(t, 1.0, b.Max[0], 1e-3)
	assert.InDelta(t, 1.0, b.Max[1], 1e-3)
	assert.False(t, math.IsNaN(b.Min[0]))
}

func TestParseRejectsUnknownCRS(t *testing.T) {
	doc := `{"type":"FeatureCollection","crs":{"type":"name","properties":{"name":"EPSG:32630"}},"features":[]}`
	_, err := Parse([]byte(doc))
	assert.ErrorIs(t, err, ErrUnsupportedCRS)
}

func TestParseRejectsNonCollection(t *testing.T) {
	_, err := Parse([]byte(`{"type":"Feature"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

type stubSource struct {
	body []byte
	err  error
}

func (s stubSource) Fetch(context.Context, string) ([]byte, error) {
	return s.body, s.err
}

func TestLoad(t *testing.T) {
	ds, err := Load(context.Background(), stubSource{body: []byte(sample)}, "https://example.com/SE.geojson")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/SE.geojson", ds.URL)
	assert.Len(t, ds.Zones, 2)

	boom := errors.New("unreachable")
	_, err = Load(context.Background(), stubSource{err: boom}, "https://example.com/SE.geojson")
	assert.ErrorIs(t, err, boom)
}
