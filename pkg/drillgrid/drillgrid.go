// Package drillgrid lays out rectangular drill patterns and encodes them
// as GeoJSON point features.
package drillgrid

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/kass/go-blast-survey/pkg/models"
)

// GridHole is one planned hole of a drill pattern
type GridHole struct {
	Row  int     `json:"row"`
	Col  int     `json:"col"`
	Name string  `json:"name"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// HoleName returns the label of the hole at the zero-based row and column
func HoleName(row, col int) string {
	return fmt.Sprintf("H%d-%d", row+1, col+1)
}

// Holes lays out the pattern row by row. Rows or columns below one give
// an empty (non-nil) slice.
func Holes(spec models.GridSpec) []GridHole {
	if spec.Rows <= 0 || spec.Cols <= 0 {
		return []GridHole{}
	}

	holes := make([]GridHole, 0, spec.Rows*spec.Cols)
	for r := 0; r < spec.Rows; r++ {
		for c := 0; c < spec.Cols; c++ {
			holes = append(holes, GridHole{
				Row:  r,
				Col:  c,
				Name: HoleName(r, c),
				X:    spec.OriginX + float64(c)*spec.Spacing,
				Y:    spec.OriginY + float64(r)*spec.Burden,
			})
		}
	}
	return holes
}

// Validate checks a pattern requested by a user. Generation itself
// accepts any spec.
func Validate(spec models.GridSpec) error {
	switch {
	case spec.Rows < 1 || spec.Cols < 1:
		return eris.Errorf("drillgrid: rows and cols must be at least 1, got %dx%d", spec.Rows, spec.Cols)
	case !(spec.Burden > 0) || !(spec.Spacing > 0):
		return eris.Errorf("drillgrid: burden and spacing must be positive, got %v and %v", spec.Burden, spec.Spacing)
	}
	return nil
}

// Feature converts a planned hole to a GeoJSON point feature
func (h GridHole) Feature() *geojson.Feature {
	return &geojson.Feature{
		Geometry: geom.NewPointFlat(geom.XY, []float64{h.X, h.Y}),
		Properties: map[string]interface{}{
			"row":  h.Row,
			"col":  h.Col,
			"name": h.Name,
		},
	}
}

// Generate returns the pattern as a feature collection, one point per
// cell in row-major order
func Generate(spec models.GridSpec) *geojson.FeatureCollection {
	holes := Holes(spec)
	fc := &geojson.FeatureCollection{
		Features: make([]*geojson.Feature, 0, len(holes)),
	}
	for _, h := range holes {
		fc.Features = append(fc.Features, h.Feature())
	}
	return fc
}

// Marshal encodes the generated pattern as GeoJSON
func Marshal(spec models.GridSpec) ([]byte, error) {
	data, err := json.Marshal(Generate(spec))
	if err != nil {
		return nil, eris.Wrap(err, "drillgrid: encode geojson")
	}
	return data, nil
}

// Decode reads a feature collection written by Marshal back into holes
func Decode(data []byte) ([]GridHole, error) {
	var fc geojson.FeatureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, eris.Wrap(err, "drillgrid: decode geojson")
	}

	holes := make([]GridHole, 0, len(fc.Features))
	for i, f := range fc.Features {
		pt, ok := f.Geometry.(*geom.Point)
		if !ok {
			return nil, eris.Errorf("drillgrid: feature %d is not a point", i)
		}

		row, err := intProperty(f.Properties, "row")
		if err != nil {
			return nil, eris.Wrapf(err, "drillgrid: feature %d", i)
		}
		col, err := intProperty(f.Properties, "col")
		if err != nil {
			return nil, eris.Wrapf(err, "drillgrid: feature %d", i)
		}
		name, _ := f.Properties["name"].(string)
		if name == "" {
			name = HoleName(row, col)
		}

		holes = append(holes, GridHole{
			Row:  row,
			Col:  col,
			Name: name,
			X:    pt.X(),
			Y:    pt.Y(),
		})
	}
	return holes, nil
}

func intProperty(props map[string]interface{}, key string) (int, error) {
	switch v := props[key].(type) {
	case float64:
		if v != math.Trunc(v) || math.IsInf(v, 0) {
			return 0, eris.Errorf("property %q is not an integer: %v", key, v)
		}
		return int(v), nil
	case int:
		return v, nil
	case nil:
		return 0, eris.Errorf("missing property %q", key)
	default:
		return 0, eris.Errorf("property %q has type %T", key, v)
	}
}
