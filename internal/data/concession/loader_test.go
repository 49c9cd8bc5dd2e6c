package concession

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDropsUnparseableCoordinates(t *testing.T) {
	data := "\ufeffLAT,LON,Masculin,Feminin\n" +
		"12.6,-8.0,5,3\n" +
		"abc,-8.0,1,1\n" +
		"12.6,,1,1\n" +
		"NaN,-8.0,1,1\n" +
		"12.6,inf,1,1\n" +
		" 12.7 , -8.1 ,0,2\n" +
		"12.8\n"

	ds, err := Parse([]byte(data), DefaultOptions())
	require.NoError(t, err)
	require.Len(t, ds.Concessions, 2)
	assert.Equal(t, 5, ds.Dropped)

	first := ds.Concessions[0]
	assert.Equal(t, 12.6, first.Lat)
	assert.Equal(t, -8.0, first.Lon)
	assert.Equal(t, "5", first.Attributes["Masculin"])

	second := ds.Concessions[1]
	assert.Equal(t, 12.7, second.Lat)
	assert.Equal(t, -8.1, second.Lon)
	assert.Equal(t, 2.0, second.Number("Feminin"))
}

func TestParseSurvivalIffFiniteCoordinates(t *testing.T) {
	cases := []struct {
		lat, lon string
		keep     bool
	}{
		{"1", "2", true},
		{"-1.5e1", "2.25", true},
		{"", "2", false},
		{"1", "x", false},
		{"+Inf", "2", false},
		{"1", "-inf", false},
		{"nan", "2", false},
	}
	for _, c := range cases {
		ds, err := Parse([]byte("LAT,LON\n"+c.lat+","+c.lon+"\n"), DefaultOptions())
		require.NoError(t, err)
		assert.Equal(t, c.keep, len(ds.Concessions) == 1, "lat=%q lon=%q", c.lat, c.lon)
	}
}

func TestParseMissingColumn(t *testing.T) {
	_, err := Parse([]byte("LATITUDE,LON\n1,2\n"), DefaultOptions())
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = Parse([]byte(""), DefaultOptions())
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestParseCustomColumnsAndDuplicates(t *testing.T) {
	ds, err := Parse([]byte("y,x,note,note\n1,2,a,b\n"), Options{LatColumn: "y", LonColumn: "x"})
	require.NoError(t, err)
	require.Len(t, ds.Concessions, 1)
	assert.Equal(t, []string{"y", "x", "note", "note.1"}, ds.Columns)
	assert.Equal(t, "a", ds.Concessions[0].Attributes["note"])
	assert.Equal(t, "b", ds.Concessions[0].Attributes["note.1"])
}

type stubSource []byte

func (s stubSource) Fetch(context.Context, string) ([]byte, error) { return s, nil }

func TestLoad(t *testing.T) {
	ds, err := Load(context.Background(), stubSource("LAT,LON\n1,2\n"), "mem://points", DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "mem://points", ds.URL)
	assert.Len(t, ds.Concessions, 1)
}
