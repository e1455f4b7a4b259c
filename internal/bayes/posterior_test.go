package bayes

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/delaycast/internal/model"
	"github.com/sells-group/delaycast/internal/weather"
)

var testRoute = model.RouteKey{Carrier: "DL", Origin: "JFK", Dest: "ATL"}

func newTestPosterior(prior Prior) *Posterior {
	adj := weather.NewAdjuster(weather.StrategyMultiplicative, weather.DefaultConfig())
	return NewPosterior(testRoute, prior, adj, DefaultDelayCurve())
}

func TestPosteriorSingleLateUpdate(t *testing.T) {
	// Unseen route with Jeffreys prior: one late observation moves
	// (0.5, 0.5) to (1.5, 0.5) and the no-weather prediction to 0.75.
	p := newTestPosterior(JeffreysPrior())
	p.Update(true)

	alpha, beta := p.Shape()
	assert.Equal(t, 1.5, alpha)
	assert.Equal(t, 0.5, beta)
	assert.InDelta(t, 0.75, p.Predict(nil), 1e-9)
	assert.Equal(t, 1, p.Observations())
}

func TestPosteriorUpdateOrderIrrelevant(t *testing.T) {
	// Counts commute: any permutation of the same outcomes yields the same
	// final shape.
	outcomes := []bool{true, true, false, true, false, false, false, true}

	ref := newTestPosterior(JeffreysPrior())
	for _, late := range outcomes {
		ref.Update(late)
	}
	refAlpha, refBeta := ref.Shape()

	for i := 0; i < 10; i++ {
		shuffled := append([]bool(nil), outcomes...)
		rand.New(rand.NewSource(int64(i))).Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		p := newTestPosterior(JeffreysPrior())
		for _, late := range shuffled {
			p.Update(late)
		}
		alpha, beta := p.Shape()
		assert.Equal(t, refAlpha, alpha)
		assert.Equal(t, refBeta, beta)
	}
}

func TestPosteriorMeanStaysInOpenInterval(t *testing.T) {
	p := newTestPosterior(JeffreysPrior())
	for i := 0; i < 5000; i++ {
		p.Update(true)
		m := p.Mean()
		require.Greater(t, m, 0.0)
		require.Less(t, m, 1.0)
	}
	for i := 0; i < 5000; i++ {
		p.Update(false)
		m := p.Mean()
		require.Greater(t, m, 0.0)
		require.Less(t, m, 1.0)
	}
}

func TestPosteriorPredictClippedUnderExtremeWeather(t *testing.T) {
	cold := -40.0
	wind := 90.0
	precip := 60.0
	wx := &model.WeatherSnapshot{TempC: &cold, WindKt: &wind, PrecipMM: &precip}

	p := newTestPosterior(JeffreysPrior())
	for i := 0; i < 100; i++ {
		p.Update(true)
	}
	got := p.Predict(wx)
	assert.LessOrEqual(t, got, weather.MaxProbability)
	assert.GreaterOrEqual(t, got, weather.MinProbability)
}

func TestPosteriorInvalidPriorFallsBackToJeffreys(t *testing.T) {
	p := newTestPosterior(Prior{Alpha: -1, Beta: 0})
	alpha, beta := p.Shape()
	assert.Equal(t, 0.5, alpha)
	assert.Equal(t, 0.5, beta)
}

func TestPosteriorExpectedDelayMonotonic(t *testing.T) {
	low := newTestPosterior(Prior{Alpha: 1, Beta: 99})
	high := newTestPosterior(Prior{Alpha: 99, Beta: 1})

	lowDelay := low.PredictExpectedDelayMinutes(nil)
	highDelay := high.PredictExpectedDelayMinutes(nil)

	assert.InDelta(t, 0.5, lowDelay, 0.01, "near-certain on-time flight sits at the on-time mean")
	assert.Greater(t, highDelay, 10.0, "near-certain late flight reaches two-digit minutes")
	assert.Greater(t, highDelay, lowDelay)
}

func TestForecastStoreSingleInstancePerKey(t *testing.T) {
	adj := weather.NewAdjuster(weather.StrategyMultiplicative, weather.DefaultConfig())
	s := NewForecastStore(JeffreysPrior(), adj, DefaultDelayCurve())

	a := s.GetOrCreate(testRoute)
	b := s.GetOrCreate(testRoute)
	assert.Same(t, a, b)
	assert.Equal(t, 1, s.Len())

	// A seeded prior never replaces a live posterior.
	c := s.GetOrCreateWithPrior(testRoute, Prior{Alpha: 10, Beta: 2})
	assert.Same(t, a, c)
}

func TestForecastStoreReset(t *testing.T) {
	adj := weather.NewAdjuster(weather.StrategyMultiplicative, weather.DefaultConfig())
	s := NewForecastStore(JeffreysPrior(), adj, DefaultDelayCurve())

	s.GetOrCreate(testRoute).Update(true)
	s.Reset()
	assert.Equal(t, 0, s.Len())

	fresh := s.GetOrCreate(testRoute)
	alpha, beta := fresh.Shape()
	assert.Equal(t, 0.5, alpha)
	assert.Equal(t, 0.5, beta)
}

func TestForecastStoreConcurrentUpdatesNoLostCounts(t *testing.T) {
	adj := weather.NewAdjuster(weather.StrategyMultiplicative, weather.DefaultConfig())
	s := NewForecastStore(JeffreysPrior(), adj, DefaultDelayCurve())

	const workers = 16
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(late bool) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				s.GetOrCreate(testRoute).Update(late)
				_ = s.GetOrCreate(testRoute).Predict(nil)
			}
		}(w%2 == 0)
	}
	wg.Wait()

	p := s.GetOrCreate(testRoute)
	alpha, beta := p.Shape()
	assert.Equal(t, workers*perWorker, p.Observations())
	assert.InDelta(t, 0.5+workers/2*perWorker, alpha, 1e-9)
	assert.InDelta(t, 0.5+workers/2*perWorker, beta, 1e-9)
}
