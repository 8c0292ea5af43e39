// Package survey reads hole survey exports into hole records.
package survey

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kass/go-blast-survey/pkg/models"
)

// Header names tried, in order, for the hole identifier
var holeIDColumns = []string{"hole_id", "Hole", "id"}

// ParseHolesCSV reads a survey export with a header row. Unknown columns
// are ignored. Blank or unparsable numbers are stored as missing.
func ParseHolesCSV(r io.Reader) ([]models.Hole, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, eris.New("survey: csv has no header row")
	}
	if err != nil {
		return nil, eris.Wrap(err, "survey: read header")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var holes []models.Hole
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "survey: read line %d", line)
		}

		row := rowReader{record: record, columns: columns, line: line}
		holes = append(holes, models.Hole{
			HoleID:               row.holeID(),
			Burden:               row.float("burden"),
			Spacing:              row.float("spacing"),
			DiameterMM:           row.float("diameter_mm"),
			HoleDepthM:           row.float("hole_depth_m"),
			StemmingM:            row.float("stemming_m"),
			ExplosiveDensityKgM3: row.float("explosive_density_kg_m3"),
			ExplosiveColumnM:     row.float("explosive_column_m"),
		})
	}

	return holes, nil
}

type rowReader struct {
	record  []string
	columns map[string]int
	line    int
}

func (r rowReader) get(column string) string {
	i, ok := r.columns[column]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r rowReader) holeID() string {
	for _, column := range holeIDColumns {
		if v := r.get(column); v != "" {
			return v
		}
	}
	return ""
}

func (r rowReader) float(column string) *float64 {
	raw := r.get(column)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		zap.L().Debug("survey: unparsable or non-finite value treated as missing",
			zap.Int("line", r.line), zap.String("column", column), zap.String("value", raw))
		return nil
	}
	return &v
}
