// Package forecast serves per-flight delay forecasts backed by the online
// Beta posterior store.
package forecast

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/bayes"
	"github.com/sells-group/delaycast/internal/model"
	"github.com/sells-group/delaycast/internal/monitoring"
	"github.com/sells-group/delaycast/internal/store"
	"github.com/sells-group/delaycast/internal/weather"
)

// ErrClosed is returned after the engine lifecycle has ended.
var ErrClosed = eris.New("forecast: engine closed")

// StatusProvider looks up the current record for one flight on one service
// date: origin, destination, scheduled time, and the actual departure once
// the flight has resolved.
type StatusProvider interface {
	FlightObservation(ctx context.Context, carrier, flightNumber string, date time.Time) (*model.Observation, error)
}

// PriorSource supplies historical route counts for seeding posteriors.
type PriorSource interface {
	CountsForRoute(ctx context.Context, key model.RouteKey, thresholdMin int) (store.RouteCounts, error)
}

// Forecast is one served prediction for a flight.
type Forecast struct {
	Carrier      string  `json:"carrier"`
	FlightNumber string  `json:"flight_number"`
	Date         string  `json:"date"`
	Origin       string  `json:"origin"`
	Dest         string  `json:"dest"`
	PLate        float64 `json:"p_late"`
	PLate30      float64 `json:"p_late_30"`
	PLate45      float64 `json:"p_late_45"`
	PLate60      float64 `json:"p_late_60"`
	ExpDelayMin  float64 `json:"exp_delay_min"`
	Alpha        float64 `json:"alpha"`
	Beta         float64 `json:"beta"`
	Updated      bool    `json:"updated"`
}

// Engine owns the process-scoped posterior store and applies at most one
// conjugate update per flight instance, no matter how often it is queried.
type Engine struct {
	status       StatusProvider
	priors       PriorSource
	posteriors   *bayes.ForecastStore
	curve        *bayes.DelayCurve
	thresholdMin int
	log          *zap.Logger

	mu      sync.Mutex
	applied map[string]struct{}
	closed  bool
}

// New builds a serving engine. Posteriors are created lazily, seeded from
// historical route counts on first access.
func New(status StatusProvider, priors PriorSource, adj *weather.Adjuster, curve *bayes.DelayCurve, thresholdMin int) *Engine {
	if curve == nil {
		curve = bayes.DefaultDelayCurve()
	}
	if thresholdMin <= 0 {
		thresholdMin = model.Threshold15
	}
	return &Engine{
		status:       status,
		priors:       priors,
		posteriors:   bayes.NewForecastStore(bayes.JeffreysPrior(), adj, curve),
		curve:        curve,
		thresholdMin: thresholdMin,
		log:          zap.L().Named("forecast"),
		applied:      make(map[string]struct{}),
	}
}

// Forecast produces the current prediction for a flight on a service date.
// If the flight has resolved since the posterior was last touched, its
// outcome is folded in first and Updated is set.
func (e *Engine) Forecast(ctx context.Context, carrier, flightNumber string, date time.Time) (*Forecast, error) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed {
		monitoring.RecordForecast(ErrClosed)
		return nil, ErrClosed
	}

	obs, err := e.status.FlightObservation(ctx, carrier, flightNumber, date)
	if err != nil {
		monitoring.RecordForecast(err)
		return nil, eris.Wrapf(err, "forecast: flight %s %s", carrier, flightNumber)
	}

	key := obs.Route()
	posterior, err := e.posterior(ctx, key)
	if err != nil {
		monitoring.RecordForecast(err)
		return nil, err
	}

	updated := e.applyOutcome(posterior, *obs)

	p15 := posterior.Predict(obs.Weather)
	thresholds := e.curve.ThresholdProbabilities(p15)
	alpha, beta := posterior.Shape()

	f := &Forecast{
		Carrier:      obs.Carrier,
		FlightNumber: obs.FlightNumber,
		Date:         obs.ScheduledDeparture.UTC().Format("2006-01-02"),
		Origin:       obs.Origin,
		Dest:         obs.Dest,
		PLate:        thresholds.P15,
		PLate30:      thresholds.P30,
		PLate45:      thresholds.P45,
		PLate60:      thresholds.P60,
		ExpDelayMin:  posterior.PredictExpectedDelayMinutes(obs.Weather),
		Alpha:        alpha,
		Beta:         beta,
		Updated:      updated,
	}
	monitoring.RecordForecast(nil)
	e.log.Debug("forecast served",
		zap.String("route", key.String()),
		zap.String("flight", flightNumber),
		zap.Float64("p_late", f.PLate),
		zap.Bool("updated", updated))
	return f, nil
}

// posterior returns the live posterior for a route, creating it with a
// history-seeded prior on first access. A route with no history falls back
// to the Jeffreys prior, which is exactly the zero-count seed.
func (e *Engine) posterior(ctx context.Context, key model.RouteKey) (*bayes.Posterior, error) {
	if p, ok := e.posteriors.Get(key); ok {
		return p, nil
	}

	counts, err := e.priors.CountsForRoute(ctx, key, e.thresholdMin)
	if err != nil {
		return nil, eris.Wrapf(err, "forecast: seed prior %s", key)
	}
	prior := bayes.Prior{
		Alpha: 0.5 + float64(counts.Late),
		Beta:  0.5 + float64(counts.Flights-counts.Late),
	}
	p := e.posteriors.GetOrCreateWithPrior(key, prior)
	monitoring.ActivePosteriors.Set(float64(e.posteriors.Len()))
	e.log.Info("posterior seeded",
		zap.String("route", key.String()),
		zap.Int64("flights", counts.Flights),
		zap.Int64("late", counts.Late))
	return p, nil
}

// applyOutcome folds a resolved flight into its route posterior exactly
// once per flight instance.
func (e *Engine) applyOutcome(posterior *bayes.Posterior, obs model.Observation) bool {
	late, ok := obs.Late(e.thresholdMin)
	if !ok {
		return false
	}

	id := obs.Carrier + "|" + obs.FlightNumber + "|" + obs.ScheduledDeparture.UTC().Format("2006-01-02")
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, seen := e.applied[id]; seen {
		return false
	}
	e.applied[id] = struct{}{}

	posterior.Update(late)
	monitoring.PosteriorUpdates.Inc()
	return true
}

// Posteriors exposes the live store for status surfaces.
func (e *Engine) Posteriors() *bayes.ForecastStore {
	return e.posteriors
}

// Close ends the engine lifecycle; subsequent Forecast calls fail.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.log.Info("engine closed", zap.Int("posteriors", e.posteriors.Len()))
}
