package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/go-blast-survey/pkg/models"
)

var errMissing = errors.New("missing")

type fakeSource map[int64]*models.Blast

func (f fakeSource) GetBlast(_ context.Context, id int64) (*models.Blast, error) {
	b, ok := f[id]
	if !ok {
		return nil, eris.Wrapf(errMissing, "blast %d", id)
	}
	return b, nil
}

func fullHole(id string, burden, spacing float64) models.Hole {
	return models.Hole{
		HoleID:               id,
		Burden:               models.Float(burden),
		Spacing:              models.Float(spacing),
		DiameterMM:           models.Float(115),
		ExplosiveDensityKgM3: models.Float(1200),
		ExplosiveColumnM:     models.Float(8),
	}
}

func testSource() fakeSource {
	return fakeSource{
		1: {
			ID:   1,
			Name: "north",
			Holes: []models.Hole{
				fullHole("A1", 3.0, 3.5),
				{HoleID: "A2", Burden: models.Float(4.0)},
				{HoleID: "A3", Spacing: models.Float(4.5)},
			},
		},
		2: {ID: 2, Name: "empty", Holes: []models.Hole{}},
		3: {
			ID:    3,
			Name:  "unloaded",
			Holes: []models.Hole{{HoleID: "B1", Burden: models.Float(3), Spacing: models.Float(3)}},
		},
	}
}

func TestSummary(t *testing.T) {
	svc := NewService(testSource(), models.BenchContext{})

	s, err := svc.Summary(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), s.BlastID)
	assert.Equal(t, 3, s.Holes)

	assert.Equal(t, 2, s.Burden.Count)
	assert.Equal(t, 3.0, s.Burden.Min)
	assert.Equal(t, 4.0, s.Burden.Max)
	assert.InDelta(t, 3.5, s.Burden.Avg, 1e-12)

	assert.Equal(t, 2, s.Spacing.Count)
	assert.Equal(t, 3.5, s.Spacing.Min)
	assert.Equal(t, 4.5, s.Spacing.Max)
	assert.InDelta(t, 4.0, s.Spacing.Avg, 1e-12)
}

func TestSummaryEmptyBlast(t *testing.T) {
	svc := NewService(testSource(), models.BenchContext{})

	s, err := svc.Summary(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Holes)
	assert.Equal(t, 0, s.Burden.Count)
	assert.Equal(t, 0.0, s.Burden.Avg)
	assert.Equal(t, 0, s.Spacing.Count)
}

func TestSummaryUnknownBlast(t *testing.T) {
	svc := NewService(testSource(), models.BenchContext{})

	_, err := svc.Summary(context.Background(), 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errMissing))
}

func TestPowderFactor(t *testing.T) {
	svc := NewService(testSource(), models.BenchContext{})

	r, err := svc.PowderFactor(context.Background(), 1, models.BenchContext{})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultBenchContext(), r.Bench)
	assert.Equal(t, 1, r.HolesUsed)
	assert.Equal(t, 3, r.HolesTotal)
	assert.InDelta(t, 0.9495, r.AvgPowderFactor, 1e-3)
}

func TestPowderFactorBenchOverride(t *testing.T) {
	svc := NewService(testSource(), models.BenchContext{RockDensityTM3: 2.5, BenchHeightM: 12})

	r, err := svc.PowderFactor(context.Background(), 1, models.BenchContext{BenchHeightM: 5})
	require.NoError(t, err)
	assert.Equal(t, 2.5, r.Bench.RockDensityTM3)
	assert.Equal(t, 5.0, r.Bench.BenchHeightM)
	// halving the bench height doubles the factor
	assert.InDelta(t, 0.9495*2, r.AvgPowderFactor, 2e-3)
}

func TestPowderFactorNoCompleteHoles(t *testing.T) {
	svc := NewService(testSource(), models.BenchContext{})

	for _, id := range []int64{2, 3} {
		r, err := svc.PowderFactor(context.Background(), id, models.BenchContext{})
		require.NoError(t, err)
		assert.Equal(t, 0.0, r.AvgPowderFactor)
		assert.False(t, r.HasData())
	}
}

func TestPowderFactorUnknownBlast(t *testing.T) {
	svc := NewService(testSource(), models.BenchContext{})

	_, err := svc.PowderFactor(context.Background(), 9, models.BenchContext{})
	assert.True(t, errors.Is(err, errMissing))
}
