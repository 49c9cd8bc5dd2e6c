package geo

import (
	"strings"

	"github.com/paulmach/orb"
)

// Match is one row of an inner spatial join: a concession paired with a zone
// it intersects. A concession on an edge shared by two zones yields two rows.
type Match struct {
	Concession Concession
	Zone       Zone
}

// indexPrefix marks join bookkeeping columns left behind by earlier joins.
const indexPrefix = "index_"

// StripIndexColumns returns z with every index_* property removed. The
// receiver's property map is not modified.
func StripIndexColumns(z Zone) Zone {
	if len(z.Properties) == 0 {
		return z
	}
	props := make(map[string]any, len(z.Properties))
	for k, v := range z.Properties {
		if strings.HasPrefix(k, indexPrefix) {
			continue
		}
		props[k] = v
	}
	z.Properties = props
	return z
}

// JoinIntersects pairs every concession with every zone it intersects
// (boundary contact included). Concession order is preserved; for a given
// concession, matches follow zone order.
func JoinIntersects(points []Concession, zones []Zone) []Match {
	if len(points) == 0 || len(zones) == 0 {
		return []Match{}
	}

	type candidate struct {
		zone  Zone
		bound orb.Bound
	}
	cands := make([]candidate, 0, len(zones))
	for _, z := range zones {
		if z.Geometry == nil {
			continue
		}
		cands = append(cands, candidate{zone: StripIndexColumns(z), bound: z.Bound()})
	}

	out := make([]Match, 0)
	for _, p := range points {
		for _, c := range cands {
			if !c.bound.Contains(p.Point) {
				continue
			}
			if Intersects(p.Point, c.zone.Geometry) {
				out = append(out, Match{Concession: p, Zone: c.zone})
			}
		}
	}
	return out
}

// SelectWithin returns the concessions lying strictly inside g. Points on
// the outline of g are excluded.
func SelectWithin(points []Concession, g orb.Geometry) []Concession {
	out := make([]Concession, 0)
	if g == nil {
		return out
	}
	b := g.Bound()
	for _, p := range points {
		if !b.Contains(p.Point) {
			continue
		}
		if Within(p.Point, g) {
			out = append(out, p)
		}
	}
	return out
}

// Concessions projects join rows back to their concessions, one per row.
func Concessions(matches []Match) []Concession {
	out := make([]Concession, len(matches))
	for i, m := range matches {
		out[i] = m.Concession
	}
	return out
}
