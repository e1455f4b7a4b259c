package eval

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/delaycast/internal/bayes"
	"github.com/sells-group/delaycast/internal/metrics"
	"github.com/sells-group/delaycast/internal/model"
	"github.com/sells-group/delaycast/internal/weather"
)

const reliabilityBins = 10

// BacktestConfig selects one route and test year for a chronological replay.
type BacktestConfig struct {
	Key          model.RouteKey
	Year         int
	EarliestYear int
	ThresholdMin int
}

// ReliabilityBin is one row of the calibration table: predictions falling in
// [Low, High) against the rate actually observed for them.
type ReliabilityBin struct {
	Low           float64 `json:"low" yaml:"low"`
	High          float64 `json:"high" yaml:"high"`
	Count         int     `json:"count" yaml:"count"`
	MeanPredicted float64 `json:"mean_predicted" yaml:"mean_predicted"`
	ObservedRate  float64 `json:"observed_rate" yaml:"observed_rate"`
}

// BacktestReport is the result of replaying one route through one year.
type BacktestReport struct {
	Route        string           `json:"route" yaml:"route"`
	Year         int              `json:"year" yaml:"year"`
	TrainFlights int64            `json:"train_flights" yaml:"train_flights"`
	TrainLate    int64            `json:"train_late" yaml:"train_late"`
	Flights      int              `json:"flights" yaml:"flights"`
	Metrics      metrics.Summary  `json:"metrics" yaml:"metrics"`
	Reliability  []ReliabilityBin `json:"reliability" yaml:"reliability"`
	Alpha        float64          `json:"alpha" yaml:"alpha"`
	Beta         float64          `json:"beta" yaml:"beta"`
}

// RunBacktest replays one route chronologically through a year: the prior is
// seeded from all earlier years, then each flight is predicted before its
// outcome is revealed to the posterior.
func RunBacktest(ctx context.Context, reader ObservationReader, adj *weather.Adjuster, curve *bayes.DelayCurve, cfg BacktestConfig) (*BacktestReport, error) {
	if cfg.Year <= 0 {
		return nil, eris.New("eval: backtest year required")
	}
	if cfg.EarliestYear <= 0 || cfg.EarliestYear >= cfg.Year {
		cfg.EarliestYear = cfg.Year - 10
	}
	if cfg.ThresholdMin <= 0 {
		cfg.ThresholdMin = model.Threshold15
	}
	if adj == nil {
		adj = weather.NewAdjuster(weather.StrategyMultiplicative, weather.DefaultConfig())
	}
	if curve == nil {
		curve = bayes.DefaultDelayCurve()
	}
	log := zap.L().Named("backtest")

	yearStart := time.Date(cfg.Year, 1, 1, 0, 0, 0, 0, time.UTC)
	trainStart := time.Date(cfg.EarliestYear, 1, 1, 0, 0, 0, 0, time.UTC)

	history, err := reader.ObservationsBetween(ctx, trainStart, yearStart)
	if err != nil {
		return nil, eris.Wrap(err, "eval: load backtest history")
	}
	var n, k int64
	for _, o := range history {
		if o.Route() != cfg.Key {
			continue
		}
		late, ok := o.Late(cfg.ThresholdMin)
		if !ok {
			continue
		}
		n++
		if late {
			k++
		}
	}
	if n == 0 {
		log.Warn("no route history, starting from the reference prior",
			zap.String("route", cfg.Key.String()))
	}
	prior := bayes.Prior{Alpha: 0.5 + float64(k), Beta: 0.5 + float64(n-k)}

	test, err := reader.ObservationsBetween(ctx, yearStart, yearStart.AddDate(1, 0, 0))
	if err != nil {
		return nil, eris.Wrap(err, "eval: load backtest year")
	}
	var flights []model.Observation
	for _, o := range test {
		if o.Route() == cfg.Key && o.Resolved() {
			flights = append(flights, o)
		}
	}
	if len(flights) == 0 {
		return nil, eris.Wrapf(model.ErrInsufficientData,
			"no resolved flights for %s in %d", cfg.Key, cfg.Year)
	}
	sort.SliceStable(flights, func(i, j int) bool {
		return flights[i].ScheduledDeparture.Before(flights[j].ScheduledDeparture)
	})

	posterior := bayes.NewPosterior(cfg.Key, prior, adj, curve)
	preds := make([]float64, 0, len(flights))
	outcomes := make([]bool, 0, len(flights))
	for _, o := range flights {
		late, _ := o.Late(cfg.ThresholdMin)
		preds = append(preds, posterior.Predict(o.Weather))
		outcomes = append(outcomes, late)
		posterior.Update(late)
	}

	alpha, beta := posterior.Shape()
	report := &BacktestReport{
		Route:        cfg.Key.String(),
		Year:         cfg.Year,
		TrainFlights: n,
		TrainLate:    k,
		Flights:      len(flights),
		Metrics:      metrics.Evaluate(preds, outcomes),
		Reliability:  reliabilityTable(preds, outcomes),
		Alpha:        alpha,
		Beta:         beta,
	}
	log.Info("backtest complete",
		zap.String("route", cfg.Key.String()),
		zap.Int("year", cfg.Year),
		zap.Int("flights", report.Flights),
		zap.Float64("brier", report.Metrics.Brier))
	return report, nil
}

// reliabilityTable bins predictions into ten equal-width intervals. A
// prediction of exactly 1.0 lands in the top bin.
func reliabilityTable(preds []float64, outcomes []bool) []ReliabilityBin {
	bins := make([]ReliabilityBin, reliabilityBins)
	sums := make([]float64, reliabilityBins)
	lates := make([]int, reliabilityBins)

	for i := range bins {
		bins[i].Low = float64(i) / reliabilityBins
		bins[i].High = float64(i+1) / reliabilityBins
	}

	for i, p := range preds {
		b := int(p * reliabilityBins)
		if b >= reliabilityBins {
			b = reliabilityBins - 1
		}
		bins[b].Count++
		sums[b] += p
		if outcomes[i] {
			lates[b]++
		}
	}

	for i := range bins {
		if bins[i].Count == 0 {
			continue
		}
		bins[i].MeanPredicted = sums[i] / float64(bins[i].Count)
		bins[i].ObservedRate = float64(lates[i]) / float64(bins[i].Count)
	}
	return bins
}
