package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/paulmach/orb/geojson"

	"github.com/se-atlas/server/internal/auth"
	"github.com/se-atlas/server/internal/cache"
	"github.com/se-atlas/server/internal/geo"
	"github.com/se-atlas/server/internal/metrics"
	"github.com/se-atlas/server/internal/service"
)

const maxDrawingBytes = 4 << 20

type filtersResponse struct {
	Selection service.Selection `json:"selection"`
	Options   service.Options   `json:"options"`
}

// filtersHandler resolves the cascade and returns the candidates of every
// drop-down level.
func filtersHandler(dash *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sel, opts, err := dash.Options(requestSelection(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, filtersResponse{Selection: sel, Options: opts})
	}
}

// selectionHandler validates and stores a selection in the session.
func selectionHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.Selection
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		sel, opts, err := cfg.Dashboard.Options(req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if _, err := cfg.Sessions.Update(getSession(r).ID, func(s *auth.Session) {
			s.Selection = sel
		}); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, filtersResponse{Selection: sel, Options: opts})
	}
}

// zonesHandler returns the selected zone subset as a FeatureCollection with
// its total bounds as bbox.
func zonesHandler(dash *service.Dashboard, cm *cache.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		subset, err := dash.Subset(requestSelection(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		sel := subset.Selection
		key := cache.SelectionKey("zones", sel.Region, sel.Cercle, sel.Commune, sel.ZoneID)
		if data, ok := cm.GetQuery(key); ok {
			metrics.CacheLookup("query", true)
			writeGeoJSON(w, data)
			return
		}
		metrics.CacheLookup("query", false)

		fc := geojson.NewFeatureCollection()
		for _, z := range subset.Zones {
			fc.Append(zoneFeature(z))
		}
		if subset.HasBound {
			fc.BBox = geojson.NewBBox(subset.Bound)
		}
		data, err := json.Marshal(fc)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		cm.SetQuery(key, data)
		writeGeoJSON(w, data)
	}
}

// pointsHandler returns every concession as a FeatureCollection.
func pointsHandler(dash *service.Dashboard, cm *cache.Manager) http.HandlerFunc {
	const key = "points:all"
	return func(w http.ResponseWriter, r *http.Request) {
		if data, ok := cm.GetQuery(key); ok {
			metrics.CacheLookup("query", true)
			writeGeoJSON(w, data)
			return
		}
		metrics.CacheLookup("query", false)

		fc := geojson.NewFeatureCollection()
		for _, c := range dash.Concessions() {
			f := geojson.NewFeature(c.Point)
			for k, v := range c.Attributes {
				f.Properties[k] = v
			}
			fc.Append(f)
		}
		data, err := json.Marshal(fc)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		cm.SetQuery(key, data)
		writeGeoJSON(w, data)
	}
}

func zoneFeature(z geo.Zone) *geojson.Feature {
	f := geojson.NewFeature(z.Geometry)
	for k, v := range z.Properties {
		f.Properties[k] = v
	}
	f.Properties["region"] = z.Region
	f.Properties["cercle"] = z.Cercle
	f.Properties["commune"] = z.Commune
	f.Properties["idse_new"] = z.ZoneID
	f.Properties["pop_se"] = z.PopTotal
	f.Properties["pop_se_ct"] = z.PopConcession
	return f
}

func writeGeoJSON(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// zoneStatsHandler serves the intersects-path statistics panel.
func zoneStatsHandler(dash *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := dash.ZoneStats(requestSelection(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// drawnStatsHandler serves the within-path statistics for the stored
// drawing.
func drawnStatsHandler(dash *service.Dashboard) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := getSession(r)
		if !sess.HasDrawing() {
			writeError(w, http.StatusNotFound, "no drawn polygon")
			return
		}
		stats, err := dash.DrawnStats(sess.Drawn)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

// drawnSubmitHandler replaces the session drawing and returns its
// statistics.
func drawnSubmitHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDrawingBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "drawing too large")
			return
		}
		g, err := geo.ParseDrawing(body)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		stats, err := cfg.Dashboard.DrawnStats(g)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if _, err := cfg.Sessions.Update(getSession(r).ID, func(s *auth.Session) {
			s.Drawn = g
		}); err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func drawnClearHandler(cfg RouterConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := cfg.Sessions.Update(getSession(r).ID, func(s *auth.Session) {
			s.Drawn = nil
		}); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
