package render

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"sync"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/se-atlas/server/internal/data/sezone"
	"github.com/se-atlas/server/internal/service"
	"github.com/se-atlas/server/pkg/colormap"
)

// ErrNoData is returned when there is nothing to chart.
var ErrNoData = errors.New("no data to chart")

// ChartConfig contains chart configuration.
type ChartConfig struct {
	PieSize   int
	BarWidth  int
	BarHeight int
}

// Charts renders the statistics panel charts as PNG.
type Charts struct {
	config     ChartConfig
	bufferPool sync.Pool
}

// NewCharts creates a chart renderer.
func NewCharts(cfg ChartConfig) *Charts {
	if cfg.PieSize <= 0 {
		cfg.PieSize = 300
	}
	if cfg.BarWidth <= 0 {
		cfg.BarWidth = 480
	}
	if cfg.BarHeight <= 0 {
		cfg.BarHeight = 240
	}
	return &Charts{
		config: cfg,
		bufferPool: sync.Pool{
			New: func() interface{} {
				return bytes.NewBuffer(make([]byte, 0, 16*1024))
			},
		},
	}
}

// SexPie renders a two-slice pie of the male and feminine totals. Slice
// labels carry the share with one decimal.
func (c *Charts) SexPie(labels [2]string, totals service.Totals) ([]byte, error) {
	if totals.Total <= 0 {
		return nil, ErrNoData
	}
	pie := chart.PieChart{
		Width:  c.config.PieSize,
		Height: c.config.PieSize,
		Values: []chart.Value{
			{Value: totals.Male, Label: fmt.Sprintf("%s %.1f%%", labels[0], totals.MalePct), Style: sliceStyle(0)},
			{Value: totals.Feminine, Label: fmt.Sprintf("%s %.1f%%", labels[1], totals.FemininePct), Style: sliceStyle(1)},
		},
	}
	return c.encode(func(buf *bytes.Buffer) error { return pie.Render(chart.PNG, buf) })
}

// PopulationBars renders one bar per melt row, colored by variable.
func (c *Charts) PopulationBars(rows []service.MeltRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	bars := make([]chart.Value, 0, len(rows))
	top := 0.0
	for _, r := range rows {
		series := 0
		if r.Variable == sezone.PropPopConcession {
			series = 1
		}
		bars = append(bars, chart.Value{
			Value: r.Value,
			Label: r.ZoneID + " " + r.Variable,
			Style: sliceStyle(series),
		})
		if r.Value > top {
			top = r.Value
		}
	}
	if top <= 0 {
		top = 1
	}

	bc := chart.BarChart{
		Width:    c.config.BarWidth,
		Height:   c.config.BarHeight,
		BarWidth: barWidth(c.config.BarWidth, len(bars)),
		Background: chart.Style{
			Padding: chart.Box{Top: 20, Left: 10, Right: 10, Bottom: 10},
		},
		YAxis: chart.YAxis{
			Name:  "Population",
			Range: &chart.ContinuousRange{Min: 0, Max: top * 1.1},
		},
		Bars: bars,
	}
	return c.encode(func(buf *bytes.Buffer) error { return bc.Render(chart.PNG, buf) })
}

func (c *Charts) encode(render func(*bytes.Buffer) error) ([]byte, error) {
	buf := c.bufferPool.Get().(*bytes.Buffer)
	defer func() {
		buf.Reset()
		c.bufferPool.Put(buf)
	}()

	if err := render(buf); err != nil {
		return nil, fmt.Errorf("render chart: %w", err)
	}
	result := make([]byte, buf.Len())
	copy(result, buf.Bytes())
	return result, nil
}

func sliceStyle(series int) chart.Style {
	col := toDrawing(colormap.Tableau.RGBA(series))
	return chart.Style{FillColor: col, StrokeColor: col, StrokeWidth: 1}
}

func toDrawing(c color.RGBA) drawing.Color {
	return drawing.Color{R: c.R, G: c.G, B: c.B, A: c.A}
}

func barWidth(width, n int) int {
	w := (width - 40) / (2 * n)
	if w < 4 {
		return 4
	}
	if w > 60 {
		return 60
	}
	return w
}
