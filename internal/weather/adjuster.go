// Package weather maps weather snapshots to delay-risk adjustments.
//
// Two strategies exist on purpose: the online Beta-Binomial model composes
// risk multiplicatively, the hierarchical model adds absolute probability
// bumps. They are compared as different model families downstream, so they
// are kept as distinct tagged variants rather than unified.
package weather

import (
	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/model"
)

// Strategy selects how adjustments compose with the base probability.
type Strategy string

const (
	StrategyMultiplicative Strategy = "multiplicative"
	StrategyAdditive       Strategy = "additive"
)

// Probability clipping bounds. Never exactly 0 or 1, which would produce
// degenerate log loss.
const (
	MinProbability = 0.01
	MaxProbability = 0.99
)

// Config holds the tunable thresholds and bump sizes. The values are
// empirically tuned; monotonicity (worse weather never lowers risk) is the
// invariant, not the exact constants.
type Config struct {
	ColdTempC    float64 // below this, temperature risk applies
	HotTempC     float64 // above this, temperature risk applies
	WindKt       float64 // at or above this, wind risk applies
	PrecipMultMM float64 // above this, precipitation risk applies (multiplicative)
	PrecipAddMM  float64 // at or above this, precipitation risk applies (additive)

	TempMult   float64
	WindMult   float64
	PrecipMult float64

	TempAdd   float64
	WindAdd   float64
	PrecipAdd float64

	MaxExpectedDelayMin float64
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		ColdTempC:    0,
		HotTempC:     33,
		WindKt:       25,
		PrecipMultMM: 5,
		PrecipAddMM:  10,

		TempMult:   1.3,
		WindMult:   1.4,
		PrecipMult: 1.5,

		TempAdd:   0.15,
		WindAdd:   0.15,
		PrecipAdd: 0.30,

		MaxExpectedDelayMin: 180,
	}
}

// Adjuster applies one strategy's weather adjustment to probabilities and
// expected-delay minutes. Stateless apart from configuration; safe for
// concurrent use.
type Adjuster struct {
	strategy Strategy
	cfg      Config
	log      *zap.Logger
}

// NewAdjuster builds an adjuster for the given strategy.
func NewAdjuster(strategy Strategy, cfg Config) *Adjuster {
	return &Adjuster{strategy: strategy, cfg: cfg, log: zap.L().Named("weather")}
}

// Strategy returns the composition rule this adjuster applies.
func (a *Adjuster) Strategy() Strategy { return a.strategy }

// Clip bounds a probability to [MinProbability, MaxProbability].
func Clip(p float64) float64 {
	if p < MinProbability {
		return MinProbability
	}
	if p > MaxProbability {
		return MaxProbability
	}
	return p
}

// Adjust maps a base delay probability through the weather adjustment and
// clips the result. Nil or all-unknown weather is the identity (modulo
// clipping). The emitted log event never alters the numeric result.
func (a *Adjuster) Adjust(base float64, wx *model.WeatherSnapshot) float64 {
	adjusted := base
	switch a.strategy {
	case StrategyAdditive:
		adjusted = base + a.delta(wx)
	default:
		adjusted = base * a.factor(wx)
	}
	adjusted = Clip(adjusted)

	if adjusted != Clip(base) {
		a.log.Debug("weather adjustment applied",
			zap.String("strategy", string(a.strategy)),
			zap.Float64("base", base),
			zap.Float64("adjusted", adjusted),
			zap.Float64("delta", adjusted-base),
			zap.Any("weather", wx),
		)
	}
	return adjusted
}

// AdjustExpectedDelay maps expected-delay minutes through the same weather
// signal. Multiplicative scales the minutes; additive converts its
// probability bump into minutes on a 30-minute scale. Bounded by
// MaxExpectedDelayMin and monotonic in each weather input.
func (a *Adjuster) AdjustExpectedDelay(baseMinutes float64, wx *model.WeatherSnapshot) float64 {
	var adjusted float64
	switch a.strategy {
	case StrategyAdditive:
		adjusted = baseMinutes + 30*a.delta(wx)
	default:
		adjusted = baseMinutes * a.factor(wx)
	}
	if adjusted > a.cfg.MaxExpectedDelayMin {
		adjusted = a.cfg.MaxExpectedDelayMin
	}
	if adjusted < 0 {
		adjusted = 0
	}
	return adjusted
}

// factor is the combined multiplicative risk factor, 1.0 for benign or
// unknown weather.
func (a *Adjuster) factor(wx *model.WeatherSnapshot) float64 {
	if wx == nil {
		return 1
	}
	f := 1.0
	if wx.TempC != nil && (*wx.TempC < a.cfg.ColdTempC || *wx.TempC > a.cfg.HotTempC) {
		f *= a.cfg.TempMult
	}
	if wx.WindKt != nil && *wx.WindKt >= a.cfg.WindKt {
		f *= a.cfg.WindMult
	}
	if wx.PrecipMM != nil && *wx.PrecipMM > a.cfg.PrecipMultMM {
		f *= a.cfg.PrecipMult
	}
	return f
}

// delta is the combined additive probability bump, 0 for benign or unknown
// weather.
func (a *Adjuster) delta(wx *model.WeatherSnapshot) float64 {
	if wx == nil {
		return 0
	}
	d := 0.0
	if wx.TempC != nil && (*wx.TempC < a.cfg.ColdTempC || *wx.TempC > a.cfg.HotTempC) {
		d += a.cfg.TempAdd
	}
	if wx.WindKt != nil && *wx.WindKt >= a.cfg.WindKt {
		d += a.cfg.WindAdd
	}
	if wx.PrecipMM != nil && *wx.PrecipMM >= a.cfg.PrecipAddMM {
		d += a.cfg.PrecipAdd
	}
	return d
}
