package service

import (
	"errors"
	"fmt"
	"sort"

	"github.com/se-atlas/server/internal/geo"
)

// NoFilter is the zone-level choice that keeps the whole commune.
const NoFilter = "No filter"

// ErrInvalidSelection is returned when a level names a value that is not a
// candidate under its parent.
var ErrInvalidSelection = errors.New("invalid selection")

// Selection is the cascading attribute query Region > Cercle > Commune > SE.
type Selection struct {
	Region  string `json:"region"`
	Cercle  string `json:"cercle"`
	Commune string `json:"commune"`
	ZoneID  string `json:"zone"`
}

// AllZones reports whether the selection keeps every zone of its commune.
func (s Selection) AllZones() bool {
	return s.ZoneID == NoFilter
}

// Options lists the candidates of every level for a resolved selection.
type Options struct {
	Regions  []string `json:"regions"`
	Cercles  []string `json:"cercles"`
	Communes []string `json:"communes"`
	ZoneIDs  []string `json:"zones"`
}

// Filter narrows an immutable zone set by a Selection.
type Filter struct {
	zones []geo.Zone
}

// NewFilter creates a filter over zones. The slice must not be modified
// afterwards.
func NewFilter(zones []geo.Zone) *Filter {
	return &Filter{zones: zones}
}

// Regions returns the sorted distinct regions.
func (f *Filter) Regions() []string {
	return distinct(f.zones, func(z geo.Zone) string { return z.Region })
}

// Cercles returns the sorted distinct cercles of region.
func (f *Filter) Cercles(region string) []string {
	return distinct(f.byRegion(region), func(z geo.Zone) string { return z.Cercle })
}

// Communes returns the sorted distinct communes of region/cercle.
func (f *Filter) Communes(region, cercle string) []string {
	return distinct(f.byCercle(region, cercle), func(z geo.Zone) string { return z.Commune })
}

// ZoneIDs returns NoFilter followed by the sorted distinct zone ids of the
// commune. Zones without an id cannot be chosen on their own; they are
// only part of the NoFilter subset.
func (f *Filter) ZoneIDs(region, cercle, commune string) []string {
	ids := distinct(f.byCommune(region, cercle, commune), func(z geo.Zone) string { return z.ZoneID })
	out := make([]string, 0, len(ids)+1)
	out = append(out, NoFilter)
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// Resolve validates sel level by level. An empty level takes the first
// candidate; an empty zone level takes NoFilter.
func (f *Filter) Resolve(sel Selection) (Selection, Options, error) {
	var (
		out  Selection
		opts Options
		err  error
	)

	opts.Regions = f.Regions()
	if out.Region, err = pick("region", sel.Region, opts.Regions); err != nil {
		return Selection{}, Options{}, err
	}
	opts.Cercles = f.Cercles(out.Region)
	if out.Cercle, err = pick("cercle", sel.Cercle, opts.Cercles); err != nil {
		return Selection{}, Options{}, err
	}
	opts.Communes = f.Communes(out.Region, out.Cercle)
	if out.Commune, err = pick("commune", sel.Commune, opts.Communes); err != nil {
		return Selection{}, Options{}, err
	}
	opts.ZoneIDs = f.ZoneIDs(out.Region, out.Cercle, out.Commune)
	if out.ZoneID, err = pick("zone", sel.ZoneID, opts.ZoneIDs); err != nil {
		return Selection{}, Options{}, err
	}
	return out, opts, nil
}

// Apply resolves sel and returns the selected zones: the whole commune for
// NoFilter, otherwise the zones carrying that id.
func (f *Filter) Apply(sel Selection) ([]geo.Zone, Selection, error) {
	resolved, _, err := f.Resolve(sel)
	if err != nil {
		return nil, Selection{}, err
	}
	commune := f.byCommune(resolved.Region, resolved.Cercle, resolved.Commune)
	if resolved.AllZones() {
		return commune, resolved, nil
	}
	out := make([]geo.Zone, 0, 1)
	for _, z := range commune {
		if z.ZoneID == resolved.ZoneID {
			out = append(out, z)
		}
	}
	return out, resolved, nil
}

func (f *Filter) byRegion(region string) []geo.Zone {
	return where(f.zones, func(z geo.Zone) bool { return z.Region == region })
}

func (f *Filter) byCercle(region, cercle string) []geo.Zone {
	return where(f.byRegion(region), func(z geo.Zone) bool { return z.Cercle == cercle })
}

func (f *Filter) byCommune(region, cercle, commune string) []geo.Zone {
	return where(f.byCercle(region, cercle), func(z geo.Zone) bool { return z.Commune == commune })
}

func pick(level, value string, candidates []string) (string, error) {
	if value == "" {
		if len(candidates) == 0 {
			return "", nil
		}
		return candidates[0], nil
	}
	for _, c := range candidates {
		if c == value {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: %s %q is not available", ErrInvalidSelection, level, value)
}

func where(zones []geo.Zone, keep func(geo.Zone) bool) []geo.Zone {
	out := make([]geo.Zone, 0, len(zones))
	for _, z := range zones {
		if keep(z) {
			out = append(out, z)
		}
	}
	return out
}

func distinct(zones []geo.Zone, key func(geo.Zone) string) []string {
	seen := make(map[string]struct{}, len(zones))
	out := make([]string, 0)
	for _, z := range zones {
		k := key(z)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
