package main

import (
	"fmt"
	"log"

	"github.com/kass/go-blast-survey/pkg/drillgrid"
	"github.com/kass/go-blast-survey/pkg/models"
	"github.com/kass/go-blast-survey/pkg/pattern"
	"github.com/kass/go-blast-survey/pkg/powder"
	"github.com/kass/go-blast-survey/pkg/rtree"
)

func main() {
	// A surveyed blast: one fully measured hole, two with gaps
	holes := []models.Hole{
		{
			HoleID:               "A1",
			Burden:               models.Float(3.0),
			Spacing:              models.Float(3.5),
			DiameterMM:           models.Float(115),
			ExplosiveDensityKgM3: models.Float(1200),
			ExplosiveColumnM:     models.Float(8),
		},
		{HoleID: "A2", Burden: models.Float(4.0)},
		{HoleID: "A3", Spacing: models.Float(4.5)},
	}

	// Example 1: single hole powder factor
	pf := powder.ComputePowderFactor(2.7, 1200, 8, 115, 3.0, 3.5, 10.0)
	fmt.Printf("Powder factor of A1: %.4f kg/m³\n\n", pf)

	// Example 2: blast average over complete holes only
	agg := powder.AggregateBlast(holes, models.DefaultBenchContext())
	fmt.Printf("Blast average: %.4f kg/m³ from %d of %d holes\n\n",
		agg.AvgPowderFactor, agg.HolesUsed, agg.HolesTotal)

	// Example 3: burden and spacing summary
	burden := pattern.Summarize(pattern.Burdens(holes))
	spacing := pattern.Summarize(pattern.Spacings(holes))
	fmt.Printf("Burden:  min %.2f max %.2f avg %.2f (%d values)\n", burden.Min, burden.Max, burden.Avg, burden.Count)
	fmt.Printf("Spacing: min %.2f max %.2f avg %.2f (%d values)\n\n", spacing.Min, spacing.Max, spacing.Avg, spacing.Count)

	// Example 4: lay out a 2x3 drill plan
	spec := models.GridSpec{Rows: 2, Cols: 3, Burden: 5, Spacing: 3}
	data, err := drillgrid.Marshal(spec)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Drill grid GeoJSON:\n%s\n\n", data)

	// Example 5: match a surveyed collar to the nearest planned hole
	index := rtree.NewHoleIndex()
	if err := index.IndexHoles(drillgrid.Holes(spec)); err != nil {
		log.Fatal(err)
	}
	collar := models.Location{X: 3.4, Y: 5.3}
	for _, n := range index.NearestNeighbors(collar, 2) {
		fmt.Printf("  %s at (%.1f, %.1f), %.2f m away\n", n.Name, n.X, n.Y, n.DistanceM)
	}
}
