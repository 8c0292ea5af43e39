package drillgrid

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/kass/go-blast-survey/pkg/models"
)

var exampleSpec = models.GridSpec{
	OriginX: 0,
	OriginY: 0,
	Rows:    2,
	Cols:    3,
	Burden:  5,
	Spacing: 3,
}

func TestHoles(t *testing.T) {
	holes := Holes(exampleSpec)
	require.Len(t, holes, 6)

	expected := []GridHole{
		{Row: 0, Col: 0, Name: "H1-1", X: 0, Y: 0},
		{Row: 0, Col: 1, Name: "H1-2", X: 3, Y: 0},
		{Row: 0, Col: 2, Name: "H1-3", X: 6, Y: 0},
		{Row: 1, Col: 0, Name: "H2-1", X: 0, Y: 5},
		{Row: 1, Col: 1, Name: "H2-2", X: 3, Y: 5},
		{Row: 1, Col: 2, Name: "H2-3", X: 6, Y: 5},
	}
	assert.Equal(t, expected, holes)
}

func TestHolesOffsetOrigin(t *testing.T) {
	spec := models.GridSpec{OriginX: 500100.5, OriginY: 7200000, Rows: 3, Cols: 4, Burden: 2.5, Spacing: 3}
	holes := Holes(spec)
	require.Len(t, holes, 12)

	last := holes[len(holes)-1]
	assert.Equal(t, "H3-4", last.Name)
	assert.InDelta(t, 500109.5, last.X, 1e-9)
	assert.InDelta(t, 7200005, last.Y, 1e-9)
}

func TestEmptyGrid(t *testing.T) {
	testCases := []struct {
		name       string
		rows, cols int
	}{
		{"zero rows", 0, 5},
		{"zero cols", 5, 0},
		{"negative rows", -1, 5},
		{"both zero", 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			spec := models.GridSpec{Rows: tc.rows, Cols: tc.cols, Burden: 5, Spacing: 3}
			assert.Empty(t, Holes(spec))

			fc := Generate(spec)
			require.NotNil(t, fc)
			assert.Empty(t, fc.Features)

			data, err := json.Marshal(fc)
			require.NoError(t, err)
			assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
		})
	}
}

func TestGenerate(t *testing.T) {
	fc := Generate(exampleSpec)
	require.Len(t, fc.Features, 6)

	for i, f := range fc.Features {
		row, col := i/3, i%3
		assert.Equal(t, row, f.Properties["row"])
		assert.Equal(t, col, f.Properties["col"])
		assert.Equal(t, HoleName(row, col), f.Properties["name"])
	}

	f := fc.Features[5]
	pt, ok := f.Geometry.(*geom.Point)
	require.True(t, ok)
	assert.Equal(t, 6.0, pt.X())
	assert.Equal(t, 5.0, pt.Y())
	assert.Equal(t, "H2-3", f.Properties["name"])
}

func TestMarshalShape(t *testing.T) {
	data, err := Marshal(models.GridSpec{Rows: 1, Cols: 2, Burden: 5, Spacing: 3})
	require.NoError(t, err)

	expected := `{
		"type": "FeatureCollection",
		"features": [
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, 0]}, "properties": {"row": 0, "col": 0, "name": "H1-1"}},
			{"type": "Feature", "geometry": {"type": "Point", "coordinates": [3, 0]}, "properties": {"row": 0, "col": 1, "name": "H1-2"}}
		]
	}`
	assert.JSONEq(t, expected, string(data))
}

func TestDecodeRoundTrip(t *testing.T) {
	data, err := Marshal(exampleSpec)
	require.NoError(t, err)

	holes, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, Holes(exampleSpec), holes)
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"wrong type", `{"type":"Feature","features":[]}`},
		{"not a point", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{"row":0,"col":0}}]}`},
		{"missing row", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"col":0}}]}`},
		{"fractional row", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"row":1.5,"col":0}}]}`},
		{"bad col", `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[0,0]},"properties":{"row":0,"col":"a"}}]}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data))
			assert.Error(t, err)
		})
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(exampleSpec))

	testCases := []struct {
		name string
		spec models.GridSpec
	}{
		{"zero rows", models.GridSpec{Rows: 0, Cols: 3, Burden: 5, Spacing: 3}},
		{"zero cols", models.GridSpec{Rows: 2, Cols: 0, Burden: 5, Spacing: 3}},
		{"zero burden", models.GridSpec{Rows: 2, Cols: 3, Burden: 0, Spacing: 3}},
		{"negative spacing", models.GridSpec{Rows: 2, Cols: 3, Burden: 5, Spacing: -3}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Error(t, Validate(tc.spec))
		})
	}
}

func TestGenerateIdempotent(t *testing.T) {
	a, err := Marshal(exampleSpec)
	require.NoError(t, err)
	b, err := Marshal(exampleSpec)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func BenchmarkGenerate(b *testing.B) {
	spec := models.GridSpec{Rows: 100, Cols: 100, Burden: 3, Spacing: 3.5}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Generate(spec)
	}
}
