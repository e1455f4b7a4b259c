// Package bayes implements the online conjugate delay model: per-route
// Beta-Binomial posteriors, the registry that owns them, and the delay curve
// mapping probabilities to expected minutes.
package bayes

import (
	"sync"

	"github.com/sells-group/delaycast/internal/model"
	"github.com/sells-group/delaycast/internal/weather"
)

// Prior holds Beta shape parameters used to initialize new posteriors.
type Prior struct {
	Alpha float64
	Beta  float64
}

// JeffreysPrior is the default non-informative prior for unseen routes.
func JeffreysPrior() Prior { return Prior{Alpha: 0.5, Beta: 0.5} }

// Posterior is the per-route Beta(alpha, beta) state. Alpha counts late
// flights, beta on-time flights; both stay strictly positive, so the mean is
// always in (0,1). Mutated only by Update. Concurrent Predict calls are safe
// at any time; Update serializes writes on the same route.
type Posterior struct {
	key   model.RouteKey
	adj   *weather.Adjuster
	curve *DelayCurve

	mu    sync.RWMutex
	alpha float64
	beta  float64
	n     int
}

// NewPosterior builds a posterior starting from the given prior.
// Non-positive shape parameters fall back to Jeffreys.
func NewPosterior(key model.RouteKey, prior Prior, adj *weather.Adjuster, curve *DelayCurve) *Posterior {
	if prior.Alpha <= 0 || prior.Beta <= 0 {
		prior = JeffreysPrior()
	}
	return &Posterior{key: key, adj: adj, curve: curve, alpha: prior.Alpha, beta: prior.Beta}
}

// Key returns the route this posterior models.
func (p *Posterior) Key() model.RouteKey { return p.key }

// Update applies one Bernoulli conjugate update. Each call represents exactly
// one observation; callers must not replay an event.
func (p *Posterior) Update(late bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if late {
		p.alpha++
	} else {
		p.beta++
	}
	p.n++
}

// Mean is the posterior predictive probability of a late departure, before
// any weather adjustment.
func (p *Posterior) Mean() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.alpha / (p.alpha + p.beta)
}

// Predict returns the weather-adjusted late probability, clipped to
// [0.01, 0.99].
func (p *Posterior) Predict(wx *model.WeatherSnapshot) float64 {
	return weather.Clip(p.adj.Adjust(p.Mean(), wx))
}

// PredictExpectedDelayMinutes maps the predicted probability through the
// delay curve and applies the expected-delay weather adjustment.
func (p *Posterior) PredictExpectedDelayMinutes(wx *model.WeatherSnapshot) float64 {
	base := p.curve.ExpectedDelay(p.Predict(wx))
	return p.adj.AdjustExpectedDelay(base, wx)
}

// Shape returns the current (alpha, beta).
func (p *Posterior) Shape() (alpha, beta float64) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.alpha, p.beta
}

// Observations returns how many updates this posterior has absorbed.
func (p *Posterior) Observations() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.n
}
