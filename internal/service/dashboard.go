// Package service runs the dashboard pipeline: filter, spatial join and
// aggregation over the loaded datasets.
package service

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/paulmach/orb"

	"github.com/se-atlas/server/internal/cache"
	"github.com/se-atlas/server/internal/geo"
	"github.com/se-atlas/server/internal/metrics"
)

// Messages shown in place of statistics.
const (
	MsgSelectZone = "Select SE."
	MsgNoPointsIn = "No points inside drawn polygon."
)

// DashboardConfig contains dashboard configuration.
type DashboardConfig struct {
	Zones         []geo.Zone
	Concessions   []geo.Concession
	MaleField     string
	FeminineField string
	Cache         *cache.Manager
}

// Dashboard answers attribute and drawn-polygon queries. It holds no
// per-user state; callers pass the selection or drawing on every call.
type Dashboard struct {
	filter        *Filter
	concessions   []geo.Concession
	maleField     string
	feminineField string
	cache         *cache.Manager
}

// NewDashboard creates a dashboard over immutable datasets.
func NewDashboard(cfg DashboardConfig) *Dashboard {
	if cfg.MaleField == "" {
		cfg.MaleField = DefaultMaleField
	}
	if cfg.FeminineField == "" {
		cfg.FeminineField = DefaultFeminineField
	}
	return &Dashboard{
		filter:        NewFilter(cfg.Zones),
		concessions:   cfg.Concessions,
		maleField:     cfg.MaleField,
		feminineField: cfg.FeminineField,
		cache:         cfg.Cache,
	}
}

// Fields returns the male and feminine column names.
func (d *Dashboard) Fields() (string, string) {
	return d.maleField, d.feminineField
}

// Concessions returns every loaded concession.
func (d *Dashboard) Concessions() []geo.Concession {
	return d.concessions
}

// Options resolves sel and returns the candidates of every level.
func (d *Dashboard) Options(sel Selection) (Selection, Options, error) {
	return d.filter.Resolve(sel)
}

// ZoneSubset is the outcome of the attribute filter.
type ZoneSubset struct {
	Selection Selection
	Zones     []geo.Zone
	Bound     orb.Bound
	HasBound  bool
}

// Subset applies sel to the zone set.
func (d *Dashboard) Subset(sel Selection) (*ZoneSubset, error) {
	zones, resolved, err := d.filter.Apply(sel)
	if err != nil {
		return nil, err
	}
	b, ok := geo.TotalBound(zones)
	return &ZoneSubset{Selection: resolved, Zones: zones, Bound: b, HasBound: ok}, nil
}

// ZoneStats is the attribute-query statistics panel.
type ZoneStats struct {
	Selection  Selection `json:"selection"`
	Ready      bool      `json:"ready"`
	Message    string    `json:"message,omitempty"`
	Population []MeltRow `json:"population"`
	Sex        Totals    `json:"sex"`
	Matches    int       `json:"matches"`
}

// ZoneStats computes population rows and the sex breakdown of the
// concessions intersecting the selected zones. Statistics are only produced
// once a single SE is chosen; with NoFilter the result carries MsgSelectZone.
func (d *Dashboard) ZoneStats(sel Selection) (*ZoneStats, error) {
	start := time.Now()
	defer metrics.ObservePipeline("zone", start)

	subset, err := d.Subset(sel)
	if err != nil {
		return nil, err
	}
	resolved := subset.Selection
	if resolved.AllZones() {
		return &ZoneStats{Selection: resolved, Message: MsgSelectZone, Population: []MeltRow{}}, nil
	}

	key := cache.SelectionKey("zone", resolved.Region, resolved.Cercle, resolved.Commune, resolved.ZoneID)
	if cached, ok := d.cachedZoneStats(key); ok {
		return cached, nil
	}

	matches := geo.JoinIntersects(d.concessions, subset.Zones)
	stats := &ZoneStats{
		Selection:  resolved,
		Ready:      true,
		Population: Melt(subset.Zones),
		Sex:        Aggregate(geo.Concessions(matches), d.maleField, d.feminineField),
		Matches:    len(matches),
	}
	d.storeZoneStats(key, stats)
	return stats, nil
}

func (d *Dashboard) cachedZoneStats(key string) (*ZoneStats, bool) {
	if d.cache == nil {
		return nil, false
	}
	data, ok := d.cache.GetQuery(key)
	metrics.CacheLookup("query", ok)
	if !ok {
		return nil, false
	}
	var stats ZoneStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, false
	}
	return &stats, true
}

func (d *Dashboard) storeZoneStats(key string, stats *ZoneStats) {
	if d.cache == nil {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		log.Printf("[Dashboard] failed to encode zone stats: %v", err)
		return
	}
	d.cache.SetQuery(key, data)
}

// DrawnStats is the drawn-polygon statistics panel.
type DrawnStats struct {
	Empty   bool   `json:"empty"`
	Message string `json:"message,omitempty"`
	Sex     Totals `json:"sex"`
}

// DrawnStats aggregates the concessions lying strictly inside g.
func (d *Dashboard) DrawnStats(g orb.Geometry) (*DrawnStats, error) {
	start := time.Now()
	defer metrics.ObservePipeline("drawn", start)

	if err := geo.ValidateDrawn(g); err != nil {
		return nil, fmt.Errorf("drawn polygon: %w", err)
	}
	inside := geo.SelectWithin(d.concessions, g)
	stats := &DrawnStats{Sex: Aggregate(inside, d.maleField, d.feminineField)}
	if len(inside) == 0 {
		stats.Empty = true
		stats.Message = MsgNoPointsIn
	}
	return stats, nil
}

// DrawnConcessions returns the concessions strictly inside g.
func (d *Dashboard) DrawnConcessions(g orb.Geometry) ([]geo.Concession, error) {
	if err := geo.ValidateDrawn(g); err != nil {
		return nil, fmt.Errorf("drawn polygon: %w", err)
	}
	return geo.SelectWithin(d.concessions, g), nil
}
