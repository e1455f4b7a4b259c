package eval

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/delaycast/internal/model"
)

func TestRunBacktestSeedsPriorFromEarlierYears(t *testing.T) {
	reader := &memReader{obs: spanObs(2020, 2022, 40, 10)}

	report, err := RunBacktest(context.Background(), reader, nil, nil, BacktestConfig{
		Key:  model.RouteKey{Carrier: "DL", Origin: "JFK", Dest: "ATL"},
		Year: 2022,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(80), report.TrainFlights, "2020 and 2021 feed the prior")
	assert.Equal(t, int64(20), report.TrainLate)
	assert.Equal(t, 40, report.Flights)
	// Final posterior: seeded 20.5/60.5 plus the replayed year's 10/30.
	assert.InDelta(t, 30.5, report.Alpha, 1e-9)
	assert.InDelta(t, 90.5, report.Beta, 1e-9)
}

func TestRunBacktestPredictsBeforeUpdating(t *testing.T) {
	// Single flight with no history: the prediction must be the Jeffreys
	// mean, not the post-outcome value.
	reader := &memReader{obs: yearObs(2022, 1, 1)}

	report, err := RunBacktest(context.Background(), reader, nil, nil, BacktestConfig{
		Key:  model.RouteKey{Carrier: "DL", Origin: "JFK", Dest: "ATL"},
		Year: 2022,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Flights)
	// Brier for a single late outcome predicted at 0.5.
	assert.InDelta(t, 0.25, report.Metrics.Brier, 1e-9)
	assert.InDelta(t, 1.5, report.Alpha, 1e-9)
}

func TestRunBacktestReliabilityTable(t *testing.T) {
	reader := &memReader{obs: spanObs(2020, 2022, 40, 10)}

	report, err := RunBacktest(context.Background(), reader, nil, nil, BacktestConfig{
		Key:  model.RouteKey{Carrier: "DL", Origin: "JFK", Dest: "ATL"},
		Year: 2022,
	})
	require.NoError(t, err)
	require.Len(t, report.Reliability, 10)

	total := 0
	for i, bin := range report.Reliability {
		assert.InDelta(t, float64(i)/10, bin.Low, 1e-9)
		total += bin.Count
		if bin.Count > 0 {
			assert.GreaterOrEqual(t, bin.MeanPredicted, bin.Low)
			assert.Less(t, bin.MeanPredicted, bin.High+1e-9)
		}
	}
	assert.Equal(t, report.Flights, total, "every prediction lands in a bin")
}

func TestRunBacktestNoFlights(t *testing.T) {
	reader := &memReader{obs: yearObs(2021, 40, 10)}

	_, err := RunBacktest(context.Background(), reader, nil, nil, BacktestConfig{
		Key:  model.RouteKey{Carrier: "UA", Origin: "SFO", Dest: "DEN"},
		Year: 2021,
	})
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInsufficientData))
}

func TestRunBacktestRequiresYear(t *testing.T) {
	_, err := RunBacktest(context.Background(), &memReader{}, nil, nil, BacktestConfig{
		Key: model.RouteKey{Carrier: "DL", Origin: "JFK", Dest: "ATL"},
	})
	require.Error(t, err)
}
