package geo

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseDrawing decodes a drawn query shape. It accepts a bare GeoJSON
// geometry, a Feature, a FeatureCollection or the draw widget envelope
// {"all_drawings": [...]}. For collections the most recent drawing wins.
func ParseDrawing(data []byte) (orb.Geometry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidGeometry)
	}

	var head struct {
		Type        string            `json:"type"`
		AllDrawings []json.RawMessage `json:"all_drawings"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
	}

	switch {
	case head.AllDrawings != nil:
		if len(head.AllDrawings) == 0 {
			return nil, fmt.Errorf("%w: no drawings", ErrInvalidGeometry)
		}
		return ParseDrawing(head.AllDrawings[len(head.AllDrawings)-1])
	case head.Type == "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		if len(fc.Features) == 0 {
			return nil, fmt.Errorf("%w: no drawings", ErrInvalidGeometry)
		}
		last := fc.Features[len(fc.Features)-1]
		if last.Geometry == nil {
			return nil, fmt.Errorf("%w: feature has no geometry", ErrInvalidGeometry)
		}
		return last.Geometry, nil
	case head.Type == "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		if f.Geometry == nil {
			return nil, fmt.Errorf("%w: feature has no geometry", ErrInvalidGeometry)
		}
		return f.Geometry, nil
	case head.Type == "":
		return nil, fmt.Errorf("%w: missing type", ErrInvalidGeometry)
	default:
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGeometry, err)
		}
		return g.Geometry(), nil
	}
}
