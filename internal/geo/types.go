// Package geo holds the SE-zone and concession records and the spatial
// predicates used to relate them.
package geo

import (
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// Zone is one SE (enumeration area) polygon with its administrative attributes.
type Zone struct {
	Region        string         `json:"region"`
	Cercle        string         `json:"cercle"`
	Commune       string         `json:"commune"`
	ZoneID        string         `json:"idse_new"`
	PopTotal      float64        `json:"pop_se"`
	PopConcession float64        `json:"pop_se_ct"`
	Geometry      orb.Geometry   `json:"-"`
	Properties    map[string]any `json:"-"`
}

// Bound returns the bounding box of the zone geometry.
func (z Zone) Bound() orb.Bound {
	if z.Geometry == nil {
		return orb.Bound{}
	}
	return z.Geometry.Bound()
}

// Concession is a geocoded household location. Attributes keeps every CSV
// column as read, demographic fields included.
type Concession struct {
	Lat        float64           `json:"lat"`
	Lon        float64           `json:"lon"`
	Point      orb.Point         `json:"-"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// NewConcession builds a concession located at lat/lon.
func NewConcession(lat, lon float64, attrs map[string]string) Concession {
	return Concession{
		Lat:        lat,
		Lon:        lon,
		Point:      orb.Point{lon, lat},
		Attributes: attrs,
	}
}

// Number returns the numeric value of field, or 0 when the field is
// missing, unparseable or not finite.
func (c Concession) Number(field string) float64 {
	raw, ok := c.Attributes[field]
	if !ok {
		return 0
	}
	v, ok := ParseFinite(raw)
	if !ok {
		return 0
	}
	return v
}

// ParseFinite parses s as a float and reports whether it is a finite number.
func ParseFinite(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// TotalBound returns the union of the zone bounds (the "total bounds" of a
// subset). ok is false when zones is empty.
func TotalBound(zones []Zone) (orb.Bound, bool) {
	if len(zones) == 0 {
		return orb.Bound{}, false
	}
	b := zones[0].Bound()
	for _, z := range zones[1:] {
		b = b.Union(z.Bound())
	}
	return b, true
}
