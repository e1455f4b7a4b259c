package bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpectedDelayPiecewise(t *testing.T) {
	c := DefaultDelayCurve()

	assert.Equal(t, c.MeanOnTimeDelay, c.ExpectedDelay(0.05))
	assert.Equal(t, c.MeanOnTimeDelay, c.ExpectedDelay(c.ThresholdProb))
	assert.InDelta(t, c.MeanLateDelay, c.ExpectedDelay(1), 1e-9)

	mid := c.ExpectedDelay(0.65)
	assert.Greater(t, mid, c.MeanOnTimeDelay)
	assert.Less(t, mid, c.MeanLateDelay)
}

func TestExpectedDelayMonotonic(t *testing.T) {
	c := DefaultDelayCurve()
	prev := c.ExpectedDelay(0)
	for p := 0.01; p <= 1.0; p += 0.01 {
		cur := c.ExpectedDelay(p)
		assert.GreaterOrEqual(t, cur, prev)
		prev = cur
	}
}

func TestThresholdProbabilitiesMonotonicDecay(t *testing.T) {
	c := DefaultDelayCurve()
	for _, p15 := range []float64{0.05, 0.2, 0.5, 0.8, 0.95} {
		tp := c.ThresholdProbabilities(p15)
		assert.Equal(t, p15, tp.P15)
		assert.Less(t, tp.P30, tp.P15, "p15=%v", p15)
		assert.Less(t, tp.P45, tp.P30, "p15=%v", p15)
		assert.Less(t, tp.P60, tp.P45, "p15=%v", p15)
		assert.GreaterOrEqual(t, tp.P60, 0.0)
	}
}

func TestThresholdProbabilitiesLowRisk(t *testing.T) {
	// Below the curve threshold the expected delay is sub-15min, so the
	// higher thresholds collapse to fixed fractions.
	c := DefaultDelayCurve()
	tp := c.ThresholdProbabilities(0.1)
	assert.InDelta(t, 0.03, tp.P30, 1e-9)
	assert.InDelta(t, 0.01, tp.P45, 1e-9)
	assert.InDelta(t, 0.005, tp.P60, 1e-9)
}
