package bayes

import "math"

// DelayCurve maps a late probability to expected delay minutes and to the
// probabilities of exceeding higher delay thresholds. Piecewise linear:
// flat at MeanOnTimeDelay below ThresholdProb, rising linearly to
// MeanLateDelay at probability 1.
type DelayCurve struct {
	MeanOnTimeDelay float64
	MeanLateDelay   float64
	ThresholdProb   float64
}

// DefaultDelayCurve returns curve parameters tuned on historic BTS data.
func DefaultDelayCurve() *DelayCurve {
	return &DelayCurve{
		MeanOnTimeDelay: 0.5,
		MeanLateDelay:   25,
		ThresholdProb:   0.3,
	}
}

// ExpectedDelay returns the expected delay minutes for a late probability.
// Monotonic non-decreasing and bounded by [MeanOnTimeDelay, MeanLateDelay].
func (c *DelayCurve) ExpectedDelay(pLate float64) float64 {
	if pLate <= c.ThresholdProb {
		return c.MeanOnTimeDelay
	}
	progress := (pLate - c.ThresholdProb) / (1 - c.ThresholdProb)
	return c.MeanOnTimeDelay + progress*(c.MeanLateDelay-c.MeanOnTimeDelay)
}

// ThresholdProbs holds the probability of departing at least 15/30/45/60
// minutes late. Monotonic non-increasing across thresholds.
type ThresholdProbs struct {
	P15 float64 `json:"p_late"`
	P30 float64 `json:"p_late_30"`
	P45 float64 `json:"p_late_45"`
	P60 float64 `json:"p_late_60"`
}

// ThresholdProbabilities derives the higher-threshold probabilities from the
// base 15-minute probability using an exponential survival assumption:
// P(delay >= t) = P(delay >= 15) * exp(-lambda * (t - 15)), with lambda set
// so the expected delay has 50% survival. Each threshold is capped at 80% of
// the previous one, which forces strict monotonic decay even when the
// survival model is flat.
func (c *DelayCurve) ThresholdProbabilities(p15 float64) ThresholdProbs {
	expected := c.ExpectedDelay(p15)

	if expected < 15 {
		return ThresholdProbs{
			P15: p15,
			P30: p15 * 0.3,
			P45: p15 * 0.1,
			P60: p15 * 0.05,
		}
	}

	lambda := math.Ln2 / (expected - 15 + 1e-6)

	p30 := p15 * math.Exp(-lambda*15)
	p45 := p15 * math.Exp(-lambda*30)
	p60 := p15 * math.Exp(-lambda*45)

	p30 = math.Min(p30, p15*0.8)
	p45 = math.Min(p45, p30*0.8)
	p60 = math.Min(p60, p45*0.8)

	return ThresholdProbs{P15: p15, P30: p30, P45: p45, P60: p60}
}
