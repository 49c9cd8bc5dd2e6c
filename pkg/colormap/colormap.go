// Package colormap provides the color schemes used by the map and charts.
package colormap

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Colormap maps normalized values [0, 1] and series indexes to colors.
type Colormap interface {
	At(t float64) color.Color
	AtIndex(i int) color.Color
}

// CategoricalColormap provides distinct colors for categories.
type CategoricalColormap struct {
	colors []color.RGBA
}

// At returns color at position t.
func (c CategoricalColormap) At(t float64) color.Color {
	if t <= 0 {
		return c.colors[0]
	}
	idx := int(t * float64(len(c.colors)))
	if idx >= len(c.colors) {
		idx = len(c.colors) - 1
	}
	return c.colors[idx]
}

// AtIndex returns color at index (wraps around).
func (c CategoricalColormap) AtIndex(i int) color.Color {
	if i < 0 {
		i = -i
	}
	return c.colors[i%len(c.colors)]
}

// RGBA returns the color at index i as color.RGBA.
func (c CategoricalColormap) RGBA(i int) color.RGBA {
	return c.AtIndex(i).(color.RGBA)
}

// Len returns the number of distinct colors.
func (c CategoricalColormap) Len() int {
	return len(c.colors)
}

// Tableau is the ten-color categorical palette used for chart series.
var Tableau = CategoricalColormap{
	colors: []color.RGBA{
		{76, 120, 168, 255},  // Blue
		{245, 133, 24, 255},  // Orange
		{228, 87, 86, 255},   // Red
		{114, 183, 178, 255}, // Teal
		{84, 162, 75, 255},   // Green
		{238, 202, 59, 255},  // Yellow
		{178, 121, 162, 255}, // Purple
		{255, 157, 166, 255}, // Pink
		{157, 117, 93, 255},  // Brown
		{186, 176, 172, 255}, // Gray
	},
}

// Map layer colors.
var (
	ZoneColor  = color.RGBA{0, 0, 255, 255}
	PointColor = color.RGBA{255, 0, 0, 255}
	DrawnColor = color.RGBA{0, 128, 0, 255}
	Background = color.RGBA{255, 255, 255, 255}
)

// WithAlpha returns c with its alpha channel set to a (0-1).
func WithAlpha(c color.RGBA, a float64) color.NRGBA {
	if a < 0 {
		a = 0
	}
	if a > 1 {
		a = 1
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(a*255 + 0.5)}
}

// ParseHex parses "#rrggbb", "rrggbb" or the short "#rgb" form.
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}
