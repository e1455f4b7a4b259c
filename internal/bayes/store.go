package bayes

import (
	"sync"

	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/model"
	"github.com/sells-group/delaycast/internal/weather"
)

// ForecastStore is the registry of live posteriors, at most one per
// RouteKey. Posteriors are created lazily with the configured default prior.
// The serving process holds one long-lived store; the validator builds a
// fresh store per fold to keep folds leakage-free.
type ForecastStore struct {
	prior Prior
	adj   *weather.Adjuster
	curve *DelayCurve
	log   *zap.Logger

	mu         sync.RWMutex
	posteriors map[model.RouteKey]*Posterior
}

// NewForecastStore builds an empty registry.
func NewForecastStore(prior Prior, adj *weather.Adjuster, curve *DelayCurve) *ForecastStore {
	return &ForecastStore{
		prior:      prior,
		adj:        adj,
		curve:      curve,
		log:        zap.L().Named("forecast-store"),
		posteriors: make(map[model.RouteKey]*Posterior),
	}
}

// GetOrCreate returns the posterior for the route, creating it with the
// store's default prior on first use.
func (s *ForecastStore) GetOrCreate(key model.RouteKey) *Posterior {
	return s.GetOrCreateWithPrior(key, s.prior)
}

// GetOrCreateWithPrior returns the posterior for the route, creating it with
// the given prior on first use. The prior only applies at creation; an
// existing posterior is returned unchanged, preserving at-most-one live
// posterior per key.
func (s *ForecastStore) GetOrCreateWithPrior(key model.RouteKey, prior Prior) *Posterior {
	s.mu.RLock()
	p, ok := s.posteriors[key]
	s.mu.RUnlock()
	if ok {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.posteriors[key]; ok {
		return p
	}
	p = NewPosterior(key, prior, s.adj, s.curve)
	s.posteriors[key] = p
	s.log.Debug("posterior created",
		zap.String("route", key.String()),
		zap.Float64("alpha0", prior.Alpha),
		zap.Float64("beta0", prior.Beta),
	)
	return p
}

// Get returns the posterior for the route if one exists.
func (s *ForecastStore) Get(key model.RouteKey) (*Posterior, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posteriors[key]
	return p, ok
}

// Len returns the number of live posteriors.
func (s *ForecastStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.posteriors)
}

// Reset discards all posteriors. Used only when starting a new validation
// fold, never on the serving path.
func (s *ForecastStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posteriors = make(map[model.RouteKey]*Posterior)
}
