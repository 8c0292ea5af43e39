package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-blast-survey/pkg/drillgrid"
	"github.com/kass/go-blast-survey/pkg/models"
	"github.com/kass/go-blast-survey/pkg/rtree"
	"github.com/kass/go-blast-survey/pkg/store"
)

const surveyCSV = `hole_id,burden,spacing,diameter_mm,hole_depth_m,stemming_m,explosive_density_kg_m3,explosive_column_m
A1,3.0,3.5,115,11,3,1200,8
A2,4.0,,115,11,3,1200,8
A3,,4.5,,,,,
`

// run executes blastctl in a scratch directory against a SQLite file
func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--dsn", filepath.Join(dir, "survey.db"), "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestGridCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := run(t, dir, "grid", "--rows", "2", "--cols", "3", "--burden", "5", "--spacing", "3")
	require.NoError(t, err)

	holes, err := drillgrid.Decode([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, drillgrid.Holes(models.GridSpec{Rows: 2, Cols: 3, Burden: 5, Spacing: 3}), holes)
}

func TestGridCommandEmpty(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := run(t, dir, "grid", "--rows", "0", "--cols", "3")
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, out)
}

func TestGridCommandToFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "grid.geojson")

	out, err := run(t, dir, "grid", "--rows", "3", "--cols", "2", "--burden", "4", "--spacing", "4", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 6 holes")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	holes, err := drillgrid.Decode(data)
	require.NoError(t, err)
	assert.Len(t, holes, 6)
}

func TestImportAndAnalyse(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	csvPath := filepath.Join(dir, "bench410.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(surveyCSV), 0o644))

	out, err := run(t, dir, "--json", "import", csvPath, "--bench", "410")
	require.NoError(t, err)
	var imported map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &imported))
	assert.Equal(t, "bench410", imported["name"])
	assert.Equal(t, 3.0, imported["holes"])
	assert.Equal(t, 1.0, imported["complete_holes"])

	out, err = run(t, dir, "--json", "summary", "1")
	require.NoError(t, err)
	var summary struct {
		Burden struct {
			Min, Max, Avg float64
			Count         int
		} `json:"burden"`
		Spacing struct {
			Count int
		} `json:"spacing"`
		Holes int `json:"holes"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 3, summary.Holes)
	assert.Equal(t, 2, summary.Burden.Count)
	assert.Equal(t, 3.0, summary.Burden.Min)
	assert.Equal(t, 4.0, summary.Burden.Max)
	assert.Equal(t, 2, summary.Spacing.Count)

	// A2 has no spacing so only A1 is complete
	out, err = run(t, dir, "--json", "powder-factor", "1")
	require.NoError(t, err)
	var pf struct {
		Avg        float64 `json:"avg_powder_factor"`
		HolesUsed  int     `json:"holes_used"`
		HolesTotal int     `json:"holes_total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &pf))
	assert.InDelta(t, 0.9495, pf.Avg, 1e-3)
	assert.Equal(t, 1, pf.HolesUsed)
	assert.Equal(t, 3, pf.HolesTotal)

	out, err = run(t, dir, "powder-factor", "1", "--bench-height", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "1.899")
	assert.Contains(t, out, "1 of 3")

	out, err = run(t, dir, "blasts")
	require.NoError(t, err)
	assert.Contains(t, out, "bench410")
	assert.Contains(t, out, "3 holes")
}

func TestSummaryUnknownBlast(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := run(t, dir, "migrate")
	require.NoError(t, err)

	_, err = run(t, dir, "summary", "7")
	assert.Error(t, err)

	_, err = run(t, dir, "summary", "abc")
	assert.Error(t, err)
}

func TestLookupsOnFreshDatabase(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	for _, args := range [][]string{
		{"summary", "1"},
		{"powder-factor", "1"},
		{"nearest", "--plan", "1"},
		{"plan", "index", "1"},
	} {
		_, err := run(t, dir, args...)
		assert.True(t, errors.Is(err, store.ErrNotFound), "%v: %v", args, err)
	}
}

func TestPlanNearest(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := run(t, dir, "plan", "create", "--name", "P1",
		"--rows", "2", "--cols", "3", "--burden", "5", "--spacing", "3")
	require.NoError(t, err)

	out, err := run(t, dir, "plan", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "P1")
	assert.Contains(t, out, "2x3")

	out, err = run(t, dir, "nearest", "--plan", "1", "-x", "6.5", "-y", "4.5", "-k", "2")
	require.NoError(t, err)
	assert.Equal(t, "H2-3 0.707\nH2-2 3.536\n", out)

	indexPath := filepath.Join(dir, "holes.gob")
	_, err = run(t, dir, "plan", "index", "1", "-o", indexPath)
	require.NoError(t, err)

	out, err = run(t, dir, "--json", "nearest", "--index", indexPath, "-x", "3", "-y", "0", "--radius", "3")
	require.NoError(t, err)
	var neighbors []rtree.Neighbor
	require.NoError(t, json.Unmarshal([]byte(out), &neighbors))
	require.Len(t, neighbors, 3)
	assert.Equal(t, "H1-2", neighbors[0].Name)
	assert.Equal(t, 0.0, neighbors[0].DistanceM)
	assert.Equal(t, 3.0, neighbors[1].DistanceM)
}

func TestPlanCreateValidation(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := run(t, dir, "plan", "create", "--name", "bad", "--rows", "0", "--cols", "3", "--burden", "5", "--spacing", "3")
	assert.Error(t, err)

	_, err = run(t, dir, "plan", "create", "--rows", "1", "--cols", "3", "--burden", "5", "--spacing", "3")
	assert.Error(t, err)
}

func TestNearestRequiresSource(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	_, err := run(t, dir, "nearest", "-x", "1")
	assert.Error(t, err)
}

func TestLayerCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "crest.geojson")
	crest := `{"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0,0],[50,10]]}, "properties": {"rl": 410}}`
	require.NoError(t, os.WriteFile(path, []byte(crest), 0o644))

	out, err := run(t, dir, "layer", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No map layers stored")

	out, err = run(t, dir, "layer", "create", "--name", "Crest 410", "--type", "crest", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, `Created map layer 1 "Crest 410" (crest)`)

	out, err = run(t, dir, "layer", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Crest 410")
	assert.Contains(t, out, "#1 crest")

	out, err = run(t, dir, "layer", "show", "1")
	require.NoError(t, err)
	assert.JSONEq(t, crest, out)

	out, err = run(t, dir, "--json", "layer", "show", "1")
	require.NoError(t, err)
	var layer models.MapLayer
	require.NoError(t, json.Unmarshal([]byte(out), &layer))
	assert.Equal(t, "Crest 410", layer.Name)
	assert.JSONEq(t, crest, string(layer.GeoJSON))

	_, err = run(t, dir, "layer", "show", "2")
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestLayerCreateRejectsInvalidGeoJSON(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "bad.geojson")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"Triangle"}`), 0o644))

	_, err := run(t, dir, "layer", "create", "--name", "bad", "--file", path)
	assert.Error(t, err)

	_, err = run(t, dir, "layer", "create", "--name", "missing", "--file", filepath.Join(dir, "nope.geojson"))
	assert.Error(t, err)

	out, err := run(t, dir, "--json", "layer", "list")
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, out)
}

func TestRunBenchmark(t *testing.T) {
	idx := rtree.NewHoleIndexWithPartitions(4)
	require.NoError(t, idx.IndexHoles(drillgrid.Holes(models.GridSpec{Rows: 20, Cols: 20, Burden: 3, Spacing: 3})))

	for _, queryType := range []string{"box", "radius", "nearest", "mixed"} {
		t.Run(queryType, func(t *testing.T) {
			result, err := runBenchmark(idx, benchOptions{
				QueryType: queryType, Queries: 60, Workers: 3, BoxSize: 6, Radius: 4, K: 4, Seed: 1,
			})
			require.NoError(t, err)
			assert.Equal(t, 60, result.TotalQueries)
			assert.Equal(t, queryType, result.QueryType)
			assert.Greater(t, result.TotalResults, int64(0))
			assert.LessOrEqual(t, result.MinDuration, result.MaxDuration)
		})
	}

	_, err := runBenchmark(idx, benchOptions{QueryType: "spiral", Queries: 1})
	assert.Error(t, err)
	_, err = runBenchmark(rtree.NewHoleIndex(), benchOptions{QueryType: "box", Queries: 1})
	assert.Error(t, err)
}
