package service

import (
	"github.com/se-atlas/server/internal/data/sezone"
	"github.com/se-atlas/server/internal/geo"
)

// Demographic column names of the concession export.
const (
	DefaultMaleField     = "Masculin"
	DefaultFeminineField = "Feminin"
)

// Totals is the sex breakdown of a set of concessions.
type Totals struct {
	Male        float64 `json:"male"`
	Feminine    float64 `json:"feminine"`
	Total       float64 `json:"total"`
	MalePct     float64 `json:"male_pct"`
	FemininePct float64 `json:"feminine_pct"`
	Count       int     `json:"count"`
}

// Aggregate sums the male and feminine fields over points. Missing or
// non-numeric values count as zero; no points yields all zeros.
func Aggregate(points []geo.Concession, maleField, feminineField string) Totals {
	var t Totals
	for _, p := range points {
		t.Male += p.Number(maleField)
		t.Feminine += p.Number(feminineField)
	}
	t.Count = len(points)
	t.Total = t.Male + t.Feminine
	if t.Total > 0 {
		t.MalePct = t.Male / t.Total * 100
		t.FemininePct = t.Feminine / t.Total * 100
	}
	return t
}

// MeltRow is one (zone, variable, value) row of the long population table.
type MeltRow struct {
	ZoneID   string  `json:"idse_new"`
	Variable string  `json:"type"`
	Value    float64 `json:"population"`
}

// Melt turns the two population columns of zones into long rows: every
// pop_se row in zone order, then every pop_se_ct row.
func Melt(zones []geo.Zone) []MeltRow {
	rows := make([]MeltRow, 0, 2*len(zones))
	for _, z := range zones {
		rows = append(rows, MeltRow{ZoneID: z.ZoneID, Variable: sezone.PropPopTotal, Value: z.PopTotal})
	}
	for _, z := range zones {
		rows = append(rows, MeltRow{ZoneID: z.ZoneID, Variable: sezone.PropPopConcession, Value: z.PopConcession})
	}
	return rows
}
