package geo

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidGeometry is returned for geometries that cannot be used as zones
// or drawn query polygons.
var ErrInvalidGeometry = errors.New("invalid geometry")

// Validate reports why g is not a valid, non-empty polygonal geometry.
// Holes are checked ring by ring; the relative placement of rings is not.
func Validate(g orb.Geometry) error {
	switch g := g.(type) {
	case nil:
		return fmt.Errorf("%w: empty", ErrInvalidGeometry)
	case orb.Polygon:
		return validatePolygon(g)
	case orb.MultiPolygon:
		if len(g) == 0 {
			return fmt.Errorf("%w: empty multipolygon", ErrInvalidGeometry)
		}
		for i, p := range g {
			if err := validatePolygon(p); err != nil {
				return fmt.Errorf("part %d: %w", i, err)
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: unsupported type %s", ErrInvalidGeometry, g.GeoJSONType())
	}
}

// IsValid is Validate as a predicate.
func IsValid(g orb.Geometry) bool {
	return Validate(g) == nil
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty polygon", ErrInvalidGeometry)
	}
	for i, ring := range p {
		if err := validateRing(ring); err != nil {
			return fmt.Errorf("ring %d: %w", i, err)
		}
	}
	return nil
}

func validateRing(r orb.Ring) error {
	if len(r) < 4 {
		return fmt.Errorf("%w: ring has %d positions", ErrInvalidGeometry, len(r))
	}
	for _, pt := range r {
		if !finite(pt[0]) || !finite(pt[1]) {
			return fmt.Errorf("%w: non-finite coordinate", ErrInvalidGeometry)
		}
	}
	if !r.Closed() {
		return fmt.Errorf("%w: ring not closed", ErrInvalidGeometry)
	}
	if planar.Area(r) == 0 {
		return fmt.Errorf("%w: zero-area ring", ErrInvalidGeometry)
	}
	if selfIntersects(dedupe(r)) {
		return fmt.Errorf("%w: self-intersection", ErrInvalidGeometry)
	}
	return nil
}

// ValidateDrawn checks a user-drawn query geometry. Drawn shapes only need
// closed rings; the draw widget never produces self-touching outlines.
func ValidateDrawn(g orb.Geometry) error {
	var polys []orb.Polygon
	switch g := g.(type) {
	case orb.Polygon:
		polys = []orb.Polygon{g}
	case orb.MultiPolygon:
		polys = g
	case nil:
		return fmt.Errorf("%w: empty", ErrInvalidGeometry)
	default:
		return fmt.Errorf("%w: drawing must be a polygon, got %s", ErrInvalidGeometry, g.GeoJSONType())
	}
	if len(polys) == 0 {
		return fmt.Errorf("%w: empty", ErrInvalidGeometry)
	}
	for _, p := range polys {
		if len(p) == 0 {
			return fmt.Errorf("%w: empty polygon", ErrInvalidGeometry)
		}
		for _, r := range p {
			if len(r) < 4 || !r.Closed() {
				return fmt.Errorf("%w: ring must be closed with at least 4 positions", ErrInvalidGeometry)
			}
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// dedupe drops consecutive repeated positions so that adjacency below is
// measured between real edges.
func dedupe(r orb.Ring) orb.Ring {
	out := make(orb.Ring, 0, len(r))
	for i, pt := range r {
		if i > 0 && pt.Equal(r[i-1]) {
			continue
		}
		out = append(out, pt)
	}
	return out
}

// selfIntersects reports whether two non-adjacent edges of a closed ring
// touch. O(n^2) in the number of edges.
func selfIntersects(r orb.Ring) bool {
	n := len(r) - 1
	if n < 3 {
		return true
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if segmentsIntersect(r[i], r[i+1], r[j], r[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := orientation(p3, p4, p1)
	d2 := orientation(p3, p4, p2)
	d3 := orientation(p1, p2, p3)
	d4 := orientation(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	switch {
	case d1 == 0 && onSegment(p3, p4, p1):
		return true
	case d2 == 0 && onSegment(p3, p4, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, p3):
		return true
	case d4 == 0 && onSegment(p1, p2, p4):
		return true
	}
	return false
}

// orientation is the cross product of (b-a) x (c-a).
func orientation(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

// onSegment assumes c is collinear with a-b.
func onSegment(a, b, c orb.Point) bool {
	return math.Min(a[0], b[0]) <= c[0] && c[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= c[1] && c[1] <= math.Max(a[1], b[1])
}
