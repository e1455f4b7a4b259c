package hier

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/model"
	"github.com/sells-group/delaycast/internal/weather"
)

// Defaults for the pooled logit fit.
const (
	// DefaultMinTrain is the smallest training set Fit accepts.
	DefaultMinTrain = 50
	// DefaultShrinkage is the pseudo-count weight pulling sparse routes
	// toward the global late rate.
	DefaultShrinkage = 20
)

// PooledLogit is an empirical-Bayes partially-pooled logistic model: a
// global intercept on the logit scale plus per-route random effects shrunk
// toward the global rate, with the additive weather strategy applied at
// predict time. It replaces the original MCMC sampler with a closed-form
// fit while keeping the same random-effects-by-route structure.
type PooledLogit struct {
	MinTrain     int
	Shrinkage    float64
	ThresholdMin int

	adj *weather.Adjuster
	log *zap.Logger
}

// NewPooledLogit builds the model with the additive weather adjuster the
// contract requires.
func NewPooledLogit(adj *weather.Adjuster) *PooledLogit {
	return &PooledLogit{
		MinTrain:     DefaultMinTrain,
		Shrinkage:    DefaultShrinkage,
		ThresholdMin: model.Threshold15,
		adj:          adj,
		log:          zap.L().Named("hier"),
	}
}

type routeCounts struct {
	n, k int
}

// Fit estimates the global rate and per-route effects from resolved
// training rows. Returns *TrainingFailure when there is too little data to
// beat the prior.
func (m *PooledLogit) Fit(ctx context.Context, train []model.Observation) (Predictor, error) {
	if err := ctx.Err(); err != nil {
		return nil, &TrainingFailure{Reason: "context cancelled", Err: err}
	}

	counts := make(map[model.RouteKey]routeCounts)
	total, late := 0, 0
	for _, obs := range train {
		isLate, ok := obs.Late(m.ThresholdMin)
		if !ok {
			continue // unresolved rows never train
		}
		c := counts[obs.Route()]
		c.n++
		total++
		if isLate {
			c.k++
			late++
		}
		counts[obs.Route()] = c
	}

	if total < m.MinTrain {
		return nil, &TrainingFailure{Reason: "insufficient resolved training observations"}
	}

	global := weather.Clip(float64(late) / float64(total))
	intercept := logit(global)

	effects := make(map[model.RouteKey]float64, len(counts))
	for key, c := range counts {
		shrunk := (float64(c.k) + m.Shrinkage*global) / (float64(c.n) + m.Shrinkage)
		effects[key] = logit(weather.Clip(shrunk)) - intercept
	}

	m.log.Debug("pooled logit fitted",
		zap.Int("train_rows", total),
		zap.Int("routes", len(effects)),
		zap.Float64("global_late_rate", global),
	)

	return &pooledPredictor{
		intercept: intercept,
		effects:   effects,
		adj:       m.adj,
	}, nil
}

type pooledPredictor struct {
	intercept float64
	effects   map[model.RouteKey]float64
	adj       *weather.Adjuster
}

// Predict returns one probability per test row, in input order. Unseen
// routes fall back to the global intercept alone.
func (p *pooledPredictor) Predict(ctx context.Context, test []model.Observation) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]float64, len(test))
	for i, obs := range test {
		z := p.intercept + p.effects[obs.Route()]
		out[i] = p.adj.Adjust(sigmoid(z), obs.Weather)
	}
	return out, nil
}

func logit(p float64) float64 { return math.Log(p / (1 - p)) }

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }
