package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/paulmach/orb"

	"github.com/se-atlas/server/internal/cache"
	"github.com/se-atlas/server/internal/metrics"
	"github.com/se-atlas/server/internal/service"
)

// Pie labels of the two statistics panels.
var (
	zonePieLabels  = [2]string{"M", "F"}
	drawnPieLabels = [2]string{"Masculin", "Feminin"}
)

// cachedImage serves key from the image cache or renders and stores it.
func cachedImage(w http.ResponseWriter, r *http.Request, cm *cache.Manager, key string, renderFn func() ([]byte, error)) {
	if data, ok := cm.GetImage(key); ok {
		metrics.CacheLookup("image", true)
		writePNG(w, data)
		return
	}
	metrics.CacheLookup("image", false)

	data, err := renderFn()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := cm.SetImage(key, data); err != nil {
		log.Printf("[API] image %s not cached: %v", key, err)
	}
	writePNG(w, data)
}

// populationChartHandler renders the melt rows of the selected SE.
func populationChartHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := cfg.Dashboard.ZoneStats(requestSelection(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !stats.Ready {
			writeError(w, http.StatusNotFound, stats.Message)
			return
		}

		parts := make([]string, 0, 3*len(stats.Population))
		for _, row := range stats.Population {
			parts = append(parts, row.ZoneID, row.Variable, formatFloat(row.Value))
		}
		key := cache.ImageKey("population", parts...)
		cachedImage(w, r, cfg.Cache, key, func() ([]byte, error) {
			return cfg.Charts.PopulationBars(stats.Population)
		})
	}
}

// sexChartHandler renders the sex pie of the zone (source=zone, default) or
// drawn (source=drawn) statistics.
func sexChartHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			totals service.Totals
			labels [2]string
		)
		switch source := r.URL.Query().Get("source"); source {
		case "", "zone":
			stats, err := cfg.Dashboard.ZoneStats(requestSelection(r))
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			if !stats.Ready {
				writeError(w, http.StatusNotFound, stats.Message)
				return
			}
			totals, labels = stats.Sex, zonePieLabels
		case "drawn":
			sess := getSession(r)
			if !sess.HasDrawing() {
				writeError(w, http.StatusNotFound, "no drawn polygon")
				return
			}
			stats, err := cfg.Dashboard.DrawnStats(sess.Drawn)
			if err != nil {
				writeServiceError(w, r, err)
				return
			}
			if stats.Empty {
				writeError(w, http.StatusNotFound, stats.Message)
				return
			}
			totals, labels = stats.Sex, drawnPieLabels
		default:
			writeError(w, http.StatusBadRequest, "source must be zone or drawn")
			return
		}

		key := cache.ImageKey("sex", labels[0], labels[1], formatFloat(totals.Male), formatFloat(totals.Feminine))
		cachedImage(w, r, cfg.Cache, key, func() ([]byte, error) {
			return cfg.Charts.SexPie(labels, totals)
		})
	}
}

// mapHandler renders the map snapshot: the selected zones, every
// concession and the session drawing, framed on the zone subset.
func mapHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subset, err := cfg.Dashboard.Subset(requestSelection(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		drawn := getSession(r).Drawn

		frame := subset.Bound
		if !subset.HasBound && drawn != nil {
			frame = drawn.Bound()
		}

		sel := subset.Selection
		width, height := cfg.MapView.Size()
		key := cache.ImageKey("map",
			cache.SelectionKey("map", sel.Region, sel.Cercle, sel.Commune, sel.ZoneID),
			drawingKey(drawn),
			strconv.Itoa(width), strconv.Itoa(height),
		)
		cachedImage(w, r, cfg.Cache, key, func() ([]byte, error) {
			return cfg.MapView.Render(subset.Zones, cfg.Dashboard.Concessions(), drawn, frame)
		})
	}
}

func drawingKey(g orb.Geometry) string {
	if g == nil {
		return ""
	}
	return g.GeoJSONType() + fmt.Sprint(g)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
