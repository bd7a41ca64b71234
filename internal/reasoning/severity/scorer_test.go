package severity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeights_NormalizeSumsToOne(t *testing.T) {
	w := Weights{Duration: 1, Zone: 1, Class: 1, Speed: 1, Time: 1, Crowd: 1, History: 1}
	n, err := w.Normalize()
	require.NoError(t, err)
	sum := n.Duration + n.Zone + n.Class + n.Speed + n.Time + n.Crowd + n.History
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestWeights_NormalizeRejectsZeroSum(t *testing.T) {
	_, err := Weights{}.Normalize()
	require.Error(t, err)
}

func TestScorer_PersonLongDwellInRestrictedZone(t *testing.T) {
	w, err := DefaultWeights().Normalize()
	require.NoError(t, err)
	s := New(w)

	score := s.Score(Input{
		DwellTimeSeconds: 60,
		ZoneWeight:       3.0,
		Class:            "person",
		Speed:            0,
		BaselineSpeed:    0,
		Timestamp:        time.Date(2026, 1, 1, 14, 0, 0, 0, time.UTC),
	})
	assert.GreaterOrEqual(t, score.Score, 0.6)
	assert.LessOrEqual(t, score.Score, 1.0)
}

func TestScorer_ScoreWithinUnitInterval(t *testing.T) {
	w, _ := DefaultWeights().Normalize()
	s := New(w)
	score := s.Score(Input{
		DwellTimeSeconds: 1000,
		ZoneWeight:       10,
		Class:            "person",
		Speed:            500,
		BaselineSpeed:    10,
		Occupancy:        50,
		Capacity:         5,
		PriorViolations:  100,
		Timestamp:        time.Now(),
	})
	assert.GreaterOrEqual(t, score.Score, 0.0)
	assert.LessOrEqual(t, score.Score, 1.0)
}
