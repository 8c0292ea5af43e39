// Package pattern summarizes the burden and spacing distribution of a blast.
package pattern

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kass/go-blast-survey/pkg/models"
)

// SummaryStats describes a sample of measurements. All values are 0 when
// the sample had no recorded entries; Count is the number of entries that
// were actually summarized.
type SummaryStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	Count int     `json:"count"`
}

// Summarize returns the min, max and mean of the non-nil values
func Summarize(values []*float64) SummaryStats {
	filtered := make([]float64, 0, len(values))
	for _, v := range values {
		if v != nil {
			filtered = append(filtered, *v)
		}
	}

	if len(filtered) == 0 {
		return SummaryStats{}
	}

	return SummaryStats{
		Min:   floats.Min(filtered),
		Max:   floats.Max(filtered),
		Avg:   stat.Mean(filtered, nil),
		Count: len(filtered),
	}
}

// Burdens collects the burden of every hole, nil where it was not recorded
func Burdens(holes []models.Hole) []*float64 {
	out := make([]*float64, len(holes))
	for i, h := range holes {
		out[i] = h.Burden
	}
	return out
}

// Spacings collects the spacing of every hole, nil where it was not recorded
func Spacings(holes []models.Hole) []*float64 {
	out := make([]*float64, len(holes))
	for i, h := range holes {
		out[i] = h.Spacing
	}
	return out
}
