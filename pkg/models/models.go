package models

import (
	"encoding/json"
	"time"
)

// Location represents a point in project (planar) coordinates, in metres
type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	BottomLeft Location
	TopRight   Location
}

// Hole is one surveyed blast hole. Every measurement is optional: a nil
// field was not recorded and must never be read as zero.
type Hole struct {
	HoleID               string   `json:"hole_id"`
	Burden               *float64 `json:"burden,omitempty"`
	Spacing              *float64 `json:"spacing,omitempty"`
	DiameterMM           *float64 `json:"diameter_mm,omitempty"`
	HoleDepthM           *float64 `json:"hole_depth_m,omitempty"`
	StemmingM            *float64 `json:"stemming_m,omitempty"`
	ExplosiveDensityKgM3 *float64 `json:"explosive_density_kg_m3,omitempty"`
	ExplosiveColumnM     *float64 `json:"explosive_column_m,omitempty"`
}

// Complete reports whether the hole carries every field the powder factor
// formula needs. Depth and stemming are not required.
func (h Hole) Complete() bool {
	return h.DiameterMM != nil &&
		h.ExplosiveDensityKgM3 != nil &&
		h.ExplosiveColumnM != nil &&
		h.Burden != nil &&
		h.Spacing != nil
}

// Blast is a named set of surveyed holes on one bench
type Blast struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Bench       string    `json:"bench,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Holes       []Hole    `json:"holes"`
}

// BenchContext holds the rock and bench parameters shared by every hole
// in one powder factor request
type BenchContext struct {
	RockDensityTM3 float64 `json:"rock_density_t_m3"`
	BenchHeightM   float64 `json:"bench_height_m"`
}

const (
	DefaultRockDensityTM3 = 2.7
	DefaultBenchHeightM   = 10.0
)

// DefaultBenchContext returns the values callers fall back to when the
// user does not supply them
func DefaultBenchContext() BenchContext {
	return BenchContext{
		RockDensityTM3: DefaultRockDensityTM3,
		BenchHeightM:   DefaultBenchHeightM,
	}
}

// GridSpec describes a rectangular drill pattern. Burden is the step
// between rows (along Y), spacing the step between columns (along X).
type GridSpec struct {
	OriginX float64 `json:"origin_x" yaml:"origin_x"`
	OriginY float64 `json:"origin_y" yaml:"origin_y"`
	Rows    int     `json:"rows" yaml:"rows"`
	Cols    int     `json:"cols" yaml:"cols"`
	Burden  float64 `json:"burden" yaml:"burden"`
	Spacing float64 `json:"spacing" yaml:"spacing"`
}

// DrillPlan is a stored drill pattern together with its generated grid
type DrillPlan struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Bench       string    `json:"bench,omitempty"`
	Grid        GridSpec  `json:"grid"`
	GridGeoJSON []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// DefaultLayerType is the layer type used when none is given
const DefaultLayerType = "feature"

// MapLayer is a named GeoJSON overlay shown alongside blasts and plans,
// such as pit outlines, haul roads or exclusion zones
type MapLayer struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	LayerType string          `json:"layer_type"`
	GeoJSON   json.RawMessage `json:"geojson"`
	CreatedAt time.Time       `json:"created_at"`
}

// Float returns a pointer to v, for building optional measurements
func Float(v float64) *float64 {
	return &v
}
