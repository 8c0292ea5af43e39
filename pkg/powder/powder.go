// Package powder computes blast powder factors: the mass of explosive
// loaded per cubic metre of rock broken.
package powder

import (
	"math"

	"github.com/kass/go-blast-survey/pkg/models"
)

// ComputePowderFactor returns the powder factor (kg/m³) of a single hole.
//
// The charge is treated as a right cylinder of the hole diameter and the
// explosive column length. The rock broken by the hole is the prism
// burden × spacing × bench height. A non-positive rock volume yields 0.
// Rock density is part of the call contract but does not enter the ratio.
func ComputePowderFactor(rockDensityTM3, explosiveDensityKgM3, explosiveColumnM, holeDiameterMM, burdenM, spacingM, benchHeightM float64) float64 {
	radiusM := (holeDiameterMM / 1000.0) / 2.0
	columnVolumeM3 := math.Pi * radiusM * radiusM * explosiveColumnM
	explosiveMassKg := explosiveDensityKgM3 * columnVolumeM3

	rockVolumeM3 := burdenM * spacingM * benchHeightM
	if rockVolumeM3 <= 0 {
		return 0.0
	}

	return explosiveMassKg / rockVolumeM3
}

// HolePowderFactor applies ComputePowderFactor to a hole. The second
// result is false when the hole is incomplete and was not computed.
func HolePowderFactor(h models.Hole, bench models.BenchContext) (float64, bool) {
	if !h.Complete() {
		return 0, false
	}
	return ComputePowderFactor(
		bench.RockDensityTM3,
		*h.ExplosiveDensityKgM3,
		*h.ExplosiveColumnM,
		*h.DiameterMM,
		*h.Burden,
		*h.Spacing,
		bench.BenchHeightM,
	), true
}

// BlastAggregate is the average powder factor over the complete holes of
// a blast. AvgPowderFactor is 0 both when no hole was complete and when
// every complete hole had a zero factor; HolesUsed tells the two apart.
type BlastAggregate struct {
	AvgPowderFactor float64 `json:"avg_powder_factor"`
	HolesUsed       int     `json:"holes_used"`
	HolesTotal      int     `json:"holes_total"`
}

// HasData reports whether at least one hole contributed to the average
func (a BlastAggregate) HasData() bool {
	return a.HolesUsed > 0
}

// AggregateBlast averages the per-hole powder factor over every complete
// hole. Incomplete holes are skipped silently.
func AggregateBlast(holes []models.Hole, bench models.BenchContext) BlastAggregate {
	agg := BlastAggregate{HolesTotal: len(holes)}

	var sum float64
	for _, h := range holes {
		pf, ok := HolePowderFactor(h, bench)
		if !ok {
			continue
		}
		sum += pf
		agg.HolesUsed++
	}

	if agg.HolesUsed == 0 {
		return agg
	}
	agg.AvgPowderFactor = sum / float64(agg.HolesUsed)
	return agg
}
