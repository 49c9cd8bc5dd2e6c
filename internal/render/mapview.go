// Package render draws map snapshots with fogleman/gg and statistics charts
// with go-chart.
package render

import (
	"bytes"
	"image/png"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/se-atlas/server/internal/geo"
	"github.com/se-atlas/server/pkg/colormap"
)

// Layer styles.
const (
	zoneFillOpacity = 0.15
	zoneLineWidth   = 2
	pointRadius     = 3
	pointOpacity    = 0.8
	drawnLineWidth  = 2
)

// minSpan is the smallest projected frame extent, in meters, so that a
// single point or degenerate subset still renders at street scale.
const minSpan = 200.0

// MapConfig contains map snapshot configuration.
type MapConfig struct {
	Width   int
	Height  int
	Padding int
}

// MapView renders the zone subset, the concessions and the drawn polygon
// into a PNG framed on the subset's total bounds.
type MapView struct {
	config      MapConfig
	contextPool sync.Pool
	bufferPool  sync.Pool
}

// NewMapView creates a new map renderer.
func NewMapView(cfg MapConfig) *MapView {
	if cfg.Width <= 0 {
		cfg.Width = 800
	}
	if cfg.Height <= 0 {
		cfg.Height = 500
	}
	if cfg.Padding < 0 {
		cfg.Padding = 0
	}
	return &MapView{
		config: cfg,
		contextPool: sync.Pool{
			New: func() interface{} {
				return gg.NewContext(cfg.Width, cfg.Height)
			},
		},
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 64*1024))
			},
		},
	}
}

// Size returns the snapshot dimensions.
func (v *MapView) Size() (int, int) {
	return v.config.Width, v.config.Height
}

// Render draws zones filled blue, points as red dots and drawn outlined in
// green. frame is in WGS84; points outside it are clipped.
func (v *MapView) Render(zones []geo.Zone, points []geo.Concession, drawn orb.Geometry, frame orb.Bound) ([]byte, error) {
	dc := v.contextPool.Get().(*gg.Context)
	defer v.contextPool.Put(dc)

	dc.ClearPath()
	dc.SetColor(colormap.Background)
	dc.Clear()
	dc.SetFillRuleEvenOdd()

	tr := v.newTransform(frame)

	for _, z := range zones {
		if !tracePolygonal(dc, tr, z.Geometry) {
			continue
		}
		dc.SetColor(colormap.WithAlpha(colormap.ZoneColor, zoneFillOpacity))
		dc.FillPreserve()
		dc.SetColor(colormap.ZoneColor)
		dc.SetLineWidth(zoneLineWidth)
		dc.Stroke()
	}

	dc.SetColor(colormap.WithAlpha(colormap.PointColor, pointOpacity))
	for _, p := range points {
		x, y := tr.apply(p.Point)
		if x < -pointRadius || y < -pointRadius || x > float64(v.config.Width)+pointRadius || y > float64(v.config.Height)+pointRadius {
			continue
		}
		dc.DrawCircle(x, y, pointRadius)
		dc.Fill()
	}

	if drawn != nil && tracePolygonal(dc, tr, drawn) {
		dc.SetColor(colormap.WithAlpha(colormap.DrawnColor, 0.2))
		dc.FillPreserve()
		dc.SetColor(colormap.DrawnColor)
		dc.SetLineWidth(drawnLineWidth)
		dc.Stroke()
	}

	return v.encodeContext(dc)
}

func (v *MapView) encodeContext(dc *gg.Context) ([]byte, error) {
	buf := v.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		v.bufferPool.Put(buf)
	}()

	encoder := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := encoder.Encode(buf, dc.Image()); err != nil {
		return nil, err
	}

	// Copy buffer contents (buffer will be reused)
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

// transform maps WGS84 coordinates to pixels through Web Mercator.
type transform struct {
	minX, maxY float64
	scale      float64
	offX, offY float64
}

func (v *MapView) newTransform(frame orb.Bound) transform {
	lo := project.WGS84.ToMercator(frame.Min)
	hi := project.WGS84.ToMercator(frame.Max)
	if !finite(lo) || !finite(hi) {
		lo, hi = orb.Point{-minSpan, -minSpan}, orb.Point{minSpan, minSpan}
	}

	cx, cy := (lo[0]+hi[0])/2, (lo[1]+hi[1])/2
	w := math.Max(hi[0]-lo[0], minSpan)
	h := math.Max(hi[1]-lo[1], minSpan)
	lo = orb.Point{cx - w/2, cy - h/2}
	hi = orb.Point{cx + w/2, cy + h/2}

	pad := float64(v.config.Padding)
	availW := math.Max(float64(v.config.Width)-2*pad, 1)
	availH := math.Max(float64(v.config.Height)-2*pad, 1)
	scale := math.Min(availW/w, availH/h)

	return transform{
		minX:  lo[0],
		maxY:  hi[1],
		scale: scale,
		offX:  (float64(v.config.Width) - w*scale) / 2,
		offY:  (float64(v.config.Height) - h*scale) / 2,
	}
}

func (t transform) apply(p orb.Point) (float64, float64) {
	m := project.WGS84.ToMercator(p)
	return t.offX + (m[0]-t.minX)*t.scale, t.offY + (t.maxY-m[1])*t.scale
}

// tracePolygonal adds the rings of g to the current path. It reports false
// when g has nothing to draw.
func tracePolygonal(dc *gg.Context, tr transform, g orb.Geometry) bool {
	switch g := g.(type) {
	case orb.Polygon:
		return tracePolygon(dc, tr, g)
	case orb.MultiPolygon:
		drew := false
		for _, p := range g {
			if tracePolygon(dc, tr, p) {
				drew = true
			}
		}
		return drew
	default:
		return false
	}
}

func tracePolygon(dc *gg.Context, tr transform, p orb.Polygon) bool {
	drew := false
	for _, ring := range p {
		if len(ring) < 3 {
			continue
		}
		dc.NewSubPath()
		for i, pt := range ring {
			x, y := tr.apply(pt)
			if i == 0 {
				dc.MoveTo(x, y)
				continue
			}
			dc.LineTo(x, y)
		}
		dc.ClosePath()
		drew = true
	}
	return drew
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
