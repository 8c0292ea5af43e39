// Package analysis answers the per-blast questions asked of stored survey
// data: pattern summaries and average powder factor.
package analysis

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kass/go-blast-survey/pkg/models"
	"github.com/kass/go-blast-survey/pkg/pattern"
	"github.com/kass/go-blast-survey/pkg/powder"
)

// BlastSource loads a blast with its holes
type BlastSource interface {
	GetBlast(ctx context.Context, id int64) (*models.Blast, error)
}

// BlastSummary describes the drilled pattern of a blast
type BlastSummary struct {
	BlastID int64                `json:"blast_id"`
	Burden  pattern.SummaryStats `json:"burden"`
	Spacing pattern.SummaryStats `json:"spacing"`
	Holes   int                  `json:"holes"`
}

// PowderFactorReport is the blast-level powder factor with the bench
// values it was computed for
type PowderFactorReport struct {
	BlastID int64               `json:"blast_id"`
	Bench   models.BenchContext `json:"bench"`
	powder.BlastAggregate
}

// Service computes blast analyses over a BlastSource
type Service struct {
	source   BlastSource
	defaults models.BenchContext
}

// NewService creates a service. Zero fields in defaults fall back to
// models.DefaultBenchContext.
func NewService(source BlastSource, defaults models.BenchContext) *Service {
	return &Service{
		source:   source,
		defaults: fillBench(defaults, models.DefaultBenchContext()),
	}
}

// Summary returns burden and spacing statistics for a blast
func (s *Service) Summary(ctx context.Context, blastID int64) (BlastSummary, error) {
	blast, err := s.source.GetBlast(ctx, blastID)
	if err != nil {
		return BlastSummary{}, eris.Wrapf(err, "analysis: summary of blast %d", blastID)
	}

	summary := BlastSummary{
		BlastID: blast.ID,
		Burden:  pattern.Summarize(pattern.Burdens(blast.Holes)),
		Spacing: pattern.Summarize(pattern.Spacings(blast.Holes)),
		Holes:   len(blast.Holes),
	}

	zap.L().Debug("analysis: summary",
		zap.Int64("blast_id", blastID),
		zap.Int("holes", summary.Holes),
		zap.Int("burden_values", summary.Burden.Count),
		zap.Int("spacing_values", summary.Spacing.Count))
	return summary, nil
}

// PowderFactor returns the average powder factor of a blast. Zero fields
// in bench are taken from the service defaults.
func (s *Service) PowderFactor(ctx context.Context, blastID int64, bench models.BenchContext) (PowderFactorReport, error) {
	bench = fillBench(bench, s.defaults)

	blast, err := s.source.GetBlast(ctx, blastID)
	if err != nil {
		return PowderFactorReport{}, eris.Wrapf(err, "analysis: powder factor of blast %d", blastID)
	}

	agg := powder.AggregateBlast(blast.Holes, bench)
	if !agg.HasData() {
		zap.L().Warn("analysis: no complete holes for powder factor",
			zap.Int64("blast_id", blastID), zap.Int("holes", agg.HolesTotal))
	}

	return PowderFactorReport{
		BlastID:        blast.ID,
		Bench:          bench,
		BlastAggregate: agg,
	}, nil
}

func fillBench(bench, defaults models.BenchContext) models.BenchContext {
	if bench.RockDensityTM3 == 0 {
		bench.RockDensityTM3 = defaults.RockDensityTM3
	}
	if bench.BenchHeightM == 0 {
		bench.BenchHeightM = defaults.BenchHeightM
	}
	return bench
}
