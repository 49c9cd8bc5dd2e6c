package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Location classifies a point against a polygonal geometry.
type Location int

const (
	Exterior Location = iota
	Boundary
	Interior
)

func (l Location) String() string {
	switch l {
	case Interior:
		return "interior"
	case Boundary:
		return "boundary"
	default:
		return "exterior"
	}
}

// boundaryTolerance is the distance, in degrees, under which a point is
// considered to lie on an edge. It widens the boundary into a band about
// 1e-7 m wide: an interior point that close to an edge intersects the
// polygon but is not within it.
const boundaryTolerance = 1e-12

// Locate returns where pt lies relative to g. Non-polygonal geometries have
// no interior: a point is on their boundary only when it coincides with them.
func Locate(pt orb.Point, g orb.Geometry) Location {
	switch g := g.(type) {
	case orb.Polygon:
		return locatePolygon(pt, g)
	case orb.MultiPolygon:
		loc := Exterior
		for _, p := range g {
			switch locatePolygon(pt, p) {
			case Interior:
				return Interior
			case Boundary:
				loc = Boundary
			}
		}
		return loc
	case orb.Bound:
		return locatePolygon(pt, g.ToPolygon())
	case orb.Point:
		if g.Equal(pt) {
			return Boundary
		}
	}
	return Exterior
}

// Intersects is true when pt shares any point with g, boundary included.
func Intersects(pt orb.Point, g orb.Geometry) bool {
	return Locate(pt, g) != Exterior
}

// Within is true only when pt lies strictly inside g.
func Within(pt orb.Point, g orb.Geometry) bool {
	return Locate(pt, g) == Interior
}

func locatePolygon(pt orb.Point, p orb.Polygon) Location {
	if len(p) == 0 || len(p[0]) == 0 {
		return Exterior
	}
	if !p.Bound().Contains(pt) {
		return Exterior
	}
	for _, ring := range p {
		if onRing(pt, ring) {
			return Boundary
		}
	}
	if !planar.RingContains(p[0], pt) {
		return Exterior
	}
	for _, hole := range p[1:] {
		if planar.RingContains(hole, pt) {
			return Exterior
		}
	}
	return Interior
}

func onRing(pt orb.Point, r orb.Ring) bool {
	n := len(r)
	if n == 0 {
		return false
	}
	tol := boundaryTolerance * boundaryTolerance
	for i := 0; i < n-1; i++ {
		if planar.DistanceFromSegmentSquared(r[i], r[i+1], pt) <= tol {
			return true
		}
	}
	if !r.Closed() {
		return planar.DistanceFromSegmentSquared(r[n-1], r[0], pt) <= tol
	}
	return false
}
