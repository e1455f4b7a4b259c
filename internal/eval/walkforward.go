// Package eval implements expanding-window walk-forward validation: it
// trains and scores the online Beta-Binomial baseline and the hierarchical
// candidate across chronological folds and decides, by fixed acceptance
// criteria, whether the richer model wins.
package eval

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/delaycast/internal/bayes"
	"github.com/sells-group/delaycast/internal/hier"
	"github.com/sells-group/delaycast/internal/metrics"
	"github.com/sells-group/delaycast/internal/model"
	"github.com/sells-group/delaycast/internal/weather"
)

// Acceptance criteria for the hierarchical model.
const (
	AcceptMeanBrier = 0.125
	AcceptWinRate   = 0.80
)

// Winner labels recorded per fold.
const (
	WinnerBaseline     = "baseline"
	WinnerHierarchical = "hierarchical"
)

// State tracks the run through its lifecycle. Terminal state is
// StateVerdictEmitted.
type State string

const (
	StateConfigured       State = "CONFIGURED"
	StateFoldBuilt        State = "FOLD_BUILT"
	StateBothModelsScored State = "BOTH_MODELS_SCORED"
	StateAggregated       State = "AGGREGATED"
	StateVerdictEmitted   State = "VERDICT_EMITTED"
)

// Config holds the validation run parameters. Bad year ranges are the only
// fatal errors; everything downstream degrades per fold.
type Config struct {
	StartYear    int // first test year
	EndYear      int // last test year, inclusive
	EarliestYear int // training window lower bound
	ThresholdMin int // lateness threshold in minutes
	Prior        bayes.Prior
	MaxParallel  int           // concurrent folds; 0 picks a default
	Timeout      time.Duration // run-level; expired runs report PARTIAL
}

// ObservationReader supplies observations in chronological order. The
// persistent store satisfies it; tests use an in-memory reader.
type ObservationReader interface {
	ObservationsBetween(ctx context.Context, start, end time.Time) ([]model.Observation, error)
}

// Fold is one expanding-window slice: train on everything strictly before
// the test year, test on the test year. Immutable once built.
type Fold struct {
	ID             string
	TrainStartYear int
	TrainEndYear   int // inclusive
	TestYear       int
	Train          []model.Observation
	Test           []model.Observation // resolved rows only, chronological
	PendingTest    int                 // unresolved test rows, counted not scored
}

// Validator drives both models through all folds and emits the verdict.
type Validator struct {
	cfg     Config
	reader  ObservationReader
	trainer hier.Trainer
	adj     *weather.Adjuster // multiplicative, for the online baseline
	curve   *bayes.DelayCurve
	log     *zap.Logger
	state   State
}

// New validates the configuration and builds a validator. The baseline
// always uses the multiplicative weather strategy; the trainer is expected
// to apply the additive one internally.
func New(cfg Config, reader ObservationReader, trainer hier.Trainer) (*Validator, error) {
	if reader == nil {
		return nil, eris.New("eval: observation reader is required")
	}
	if trainer == nil {
		return nil, eris.New("eval: hierarchical trainer is required")
	}
	if cfg.StartYear > cfg.EndYear {
		return nil, eris.Errorf("eval: start year %d after end year %d", cfg.StartYear, cfg.EndYear)
	}
	if cfg.EarliestYear >= cfg.StartYear {
		return nil, eris.Errorf("eval: earliest training year %d must precede first test year %d", cfg.EarliestYear, cfg.StartYear)
	}
	if cfg.ThresholdMin <= 0 {
		cfg.ThresholdMin = model.Threshold15
	}
	if cfg.Prior.Alpha <= 0 || cfg.Prior.Beta <= 0 {
		cfg.Prior = bayes.JeffreysPrior()
	}
	folds := cfg.EndYear - cfg.StartYear + 1
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = folds
		if cfg.MaxParallel > 4 {
			cfg.MaxParallel = 4
		}
	}

	return &Validator{
		cfg:     cfg,
		reader:  reader,
		trainer: trainer,
		adj:     weather.NewAdjuster(weather.StrategyMultiplicative, weather.DefaultConfig()),
		curve:   bayes.DefaultDelayCurve(),
		log:     zap.L().Named("walkforward"),
		state:   StateConfigured,
	}, nil
}

// State returns the current lifecycle state.
func (v *Validator) State() State { return v.state }

// Run executes every fold and returns the aggregated report. Folds are
// logically independent and evaluated in parallel, each with its own
// forecast store and model handle. A run-level timeout yields a PARTIAL
// report with the folds that completed; it never silently discards them.
func (v *Validator) Run(ctx context.Context) (*Report, error) {
	started := time.Now()

	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}

	folds, skippedInvalid, err := v.buildFolds(ctx)
	if err != nil {
		return nil, err
	}
	v.state = StateFoldBuilt

	results := make([]*FoldResult, len(folds))
	g := new(errgroup.Group)
	g.SetLimit(v.cfg.MaxParallel)
	for i, fold := range folds {
		g.Go(func() error {
			if ctx.Err() != nil {
				v.log.Warn("fold skipped: run deadline reached", zap.Int("test_year", fold.TestYear))
				return nil
			}
			results[i] = v.runFold(ctx, fold)
			return nil
		})
	}
	_ = g.Wait() // fold errors are recorded in-results, never propagated
	v.state = StateBothModelsScored

	report := v.aggregate(results, skippedInvalid)
	v.state = StateAggregated

	report.RunID = uuid.New().String()
	report.StartYear = v.cfg.StartYear
	report.EndYear = v.cfg.EndYear
	report.PlannedFolds = len(folds)
	report.Elapsed = time.Since(started)
	v.state = StateVerdictEmitted

	v.log.Info("validation complete",
		zap.String("run_id", report.RunID),
		zap.String("verdict", report.Verdict),
		zap.Bool("partial", report.Partial),
		zap.Int("folds", len(report.Folds)),
		zap.Float64("hier_mean_brier", report.Hierarchical.MeanBrier),
		zap.Float64("win_rate", report.WinRate),
	)
	return report, nil
}

// buildFolds loads the full year range once and slices it chronologically.
// Malformed rows are dropped and counted; unresolved rows are excluded from
// training sets and from scoring but counted as pending.
func (v *Validator) buildFolds(ctx context.Context) ([]Fold, int, error) {
	start := time.Date(v.cfg.EarliestYear, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(v.cfg.EndYear+1, 1, 1, 0, 0, 0, 0, time.UTC)

	all, err := v.reader.ObservationsBetween(ctx, start, end)
	if err != nil {
		return nil, 0, eris.Wrap(err, "eval: load observations")
	}

	skippedInvalid := 0
	valid := all[:0]
	for _, obs := range all {
		if err := obs.Valid(); err != nil {
			skippedInvalid++
			continue
		}
		valid = append(valid, obs)
	}
	sort.SliceStable(valid, func(a, b int) bool {
		return valid[a].ScheduledDeparture.Before(valid[b].ScheduledDeparture)
	})

	folds := make([]Fold, 0, v.cfg.EndYear-v.cfg.StartYear+1)
	for testYear := v.cfg.StartYear; testYear <= v.cfg.EndYear; testYear++ {
		fold := Fold{
			ID:             uuid.New().String(),
			TrainStartYear: v.cfg.EarliestYear,
			TrainEndYear:   testYear - 1,
			TestYear:       testYear,
		}
		testEnd := time.Date(testYear+1, 1, 1, 0, 0, 0, 0, time.UTC)
		testStart := time.Date(testYear, 1, 1, 0, 0, 0, 0, time.UTC)

		for _, obs := range valid {
			switch {
			case obs.ScheduledDeparture.Before(testStart):
				if obs.Resolved() {
					fold.Train = append(fold.Train, obs)
				}
			case obs.ScheduledDeparture.Before(testEnd):
				if obs.Resolved() {
					fold.Test = append(fold.Test, obs)
				} else {
					fold.PendingTest++
				}
			}
		}
		folds = append(folds, fold)

		v.log.Debug("fold built",
			zap.Int("test_year", testYear),
			zap.Int("train_size", len(fold.Train)),
			zap.Int("test_size", len(fold.Test)),
			zap.Int("pending", fold.PendingTest),
		)
	}
	return folds, skippedInvalid, nil
}

// runFold scores both models on one fold. Never returns an error: model
// failures degrade to sentinel metrics so the run always completes.
func (v *Validator) runFold(ctx context.Context, fold Fold) *FoldResult {
	result := &FoldResult{
		ID:             fold.ID,
		TrainStartYear: fold.TrainStartYear,
		TrainEndYear:   fold.TrainEndYear,
		TestYear:       fold.TestYear,
		TrainSize:      len(fold.Train),
		TestSize:       len(fold.Test),
		PendingTest:    fold.PendingTest,
	}

	outcomes := make([]bool, len(fold.Test))
	for i, obs := range fold.Test {
		late, _ := obs.Late(v.cfg.ThresholdMin) // fold.Test holds resolved rows only
		outcomes[i] = late
	}

	basePreds := v.scoreBaseline(fold)
	result.Baseline = metrics.Evaluate(basePreds, outcomes)

	hierPreds, err := v.scoreHierarchical(ctx, fold)
	switch {
	case err != nil:
		if !hier.IsTrainingFailure(err) {
			v.log.Warn("hierarchical model error treated as training failure",
				zap.Int("test_year", fold.TestYear), zap.Error(err))
		}
		result.Hierarchical = SentinelSummary()
		result.Degraded = true
	case len(hierPreds) != len(outcomes):
		v.log.Warn("hierarchical prediction length mismatch",
			zap.Int("test_year", fold.TestYear),
			zap.Int("got", len(hierPreds)), zap.Int("want", len(outcomes)))
		result.Hierarchical = SentinelSummary()
		result.Degraded = true
	default:
		result.Hierarchical = metrics.Evaluate(hierPreds, outcomes)
	}

	// Lower Brier wins; ties and undefined scores go to the baseline.
	result.Winner = WinnerBaseline
	if !result.Degraded &&
		result.Hierarchical.Brier != metrics.NoData &&
		result.Baseline.Brier != metrics.NoData &&
		result.Hierarchical.Brier < result.Baseline.Brier {
		result.Winner = WinnerHierarchical
	}

	v.log.Info("fold scored",
		zap.Int("test_year", fold.TestYear),
		zap.Float64("baseline_brier", result.Baseline.Brier),
		zap.Float64("hier_brier", result.Hierarchical.Brier),
		zap.String("winner", result.Winner),
		zap.Bool("degraded", result.Degraded),
	)
	return result
}

// scoreBaseline replays the fold through a fresh forecast store: absorb the
// training window, then walk the test window chronologically, scoring each
// flight before revealing its outcome. The online-during-test updating is
// intentional: it mirrors production, where the store keeps learning as
// flights resolve, and each prediction only ever uses information available
// strictly before its own resolution.
func (v *Validator) scoreBaseline(fold Fold) []float64 {
	store := bayes.NewForecastStore(v.cfg.Prior, v.adj, v.curve)

	for _, obs := range fold.Train {
		late, _ := obs.Late(v.cfg.ThresholdMin)
		store.GetOrCreate(obs.Route()).Update(late)
	}

	preds := make([]float64, 0, len(fold.Test))
	for _, obs := range fold.Test {
		post := store.GetOrCreate(obs.Route())
		preds = append(preds, post.Predict(obs.Weather))

		late, _ := obs.Late(v.cfg.ThresholdMin)
		post.Update(late)
	}
	return preds
}

// scoreHierarchical fits on the training window and predicts the test
// window in one batch, no online refresh.
func (v *Validator) scoreHierarchical(ctx context.Context, fold Fold) ([]float64, error) {
	predictor, err := v.trainer.Fit(ctx, fold.Train)
	if err != nil {
		return nil, err
	}
	return predictor.Predict(ctx, fold.Test)
}

// SentinelSummary is the fixed worst-case record for a fold whose
// hierarchical fit failed: the Brier score of a coin-flip predictor, so a
// failed fit can never look better than an honest one.
func SentinelSummary() metrics.Summary {
	return metrics.Summary{Brier: 0.25, LogLoss: math.Ln2, AUC: 0.5, ECE: 0.25}
}
